package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ChangeKind tells how a cost change was requested
type ChangeKind string

const (
	ChangeKindManual       ChangeKind = "manual"
	ChangeKindBulkCategory ChangeKind = "bulk_category"
)

// SyncStatus of a ledger entry. The only transition is pending -> synced.
type SyncStatus string

const (
	SyncStatusPending SyncStatus = "pending"
	SyncStatusSynced  SyncStatus = "synced"
)

// LedgerEntry records a single product's cost change. Entries are immutable
// apart from the one-way pending -> synced transition.
type LedgerEntry struct {
	ID           int64               `json:"id"`
	ProductID    int64               `json:"product_external_id"`
	ProductName  string              `json:"product_name"`
	OldCost      decimal.NullDecimal `json:"old_cost"`
	NewCost      decimal.Decimal     `json:"new_cost"`
	Kind         ChangeKind          `json:"change_kind"`
	CategoryID   *int64              `json:"category_external_id"`
	CategoryName *string             `json:"category_name"`
	Status       SyncStatus          `json:"sync_status"`
	CreatedAt    time.Time           `json:"created_at"`
	SyncedAt     *time.Time          `json:"synced_at"`

	// CurrentCost is the product's present cost at read time. Not persisted.
	CurrentCost decimal.NullDecimal `json:"current_cost"`
}

// LedgerOrder selects the listing direction
type LedgerOrder int

const (
	NewestFirst LedgerOrder = iota
	OldestFirst
)

// LedgerFilter narrows ledger listings. Zero value lists everything newest-first.
type LedgerFilter struct {
	Status     *SyncStatus
	CategoryID *int64
	Order      LedgerOrder
}

// PendingFilter is the filter Outbound Sync reads with.
func PendingFilter() LedgerFilter {
	status := SyncStatusPending
	return LedgerFilter{Status: &status, Order: OldestFirst}
}

// BulkEditResult is returned by a category-wide cost edit.
type BulkEditResult struct {
	CategoryID int64          `json:"category_external_id"`
	NewCost    string         `json:"new_cost"`
	Affected   int64          `json:"affected"`
	Entries    []*LedgerEntry `json:"entries"`
}
