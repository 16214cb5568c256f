package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"catalog-mirror/internal/domain"

	"github.com/shopspring/decimal"
)

// LedgerRepository is the append-only change ledger. Entries are never
// updated except for the pending -> synced transition.
type LedgerRepository interface {
	Append(ctx context.Context, entry *domain.LedgerEntry) (int64, error)
	List(ctx context.Context, filter domain.LedgerFilter) ([]*domain.LedgerEntry, error)
	// MarkSynced transitions the given pending entries to synced with one
	// shared timestamp. Unknown and already synced ids are skipped; the
	// returned count says how many entries actually transitioned.
	MarkSynced(ctx context.Context, ids []int64, at time.Time) (int64, error)
}

type ledgerRepository struct {
	db DBTX
}

// NewLedgerRepository creates a new instance of LedgerRepository
func NewLedgerRepository(db DBTX) LedgerRepository {
	return &ledgerRepository{db: db}
}

// Append stores entry as pending and fills in its generated id and status.
func (r *ledgerRepository) Append(ctx context.Context, entry *domain.LedgerEntry) (int64, error) {
	query := `
		INSERT INTO change_ledger (
			product_external_id, product_name, old_cost, new_cost, change_kind,
			category_external_id, category_name, sync_status, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending', $8)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(
		ctx,
		query,
		entry.ProductID,
		entry.ProductName,
		entry.OldCost,
		entry.NewCost,
		string(entry.Kind),
		nullInt64(entry.CategoryID),
		nullString(entry.CategoryName),
		entry.CreatedAt,
	).Scan(&id)

	if err != nil {
		return 0, writeError("append", "ledger entry", err)
	}

	entry.ID = id
	entry.Status = domain.SyncStatusPending
	entry.SyncedAt = nil
	return id, nil
}

// List reads entries with the product's current cost joined in
func (r *ledgerRepository) List(ctx context.Context, filter domain.LedgerFilter) ([]*domain.LedgerEntry, error) {
	var (
		conditions []string
		args       []interface{}
	)

	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		conditions = append(conditions, fmt.Sprintf("l.sync_status = $%d", len(args)))
	}

	if filter.CategoryID != nil {
		args = append(args, *filter.CategoryID)
		conditions = append(conditions, fmt.Sprintf("l.category_external_id = $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	order := "l.created_at DESC, l.id DESC"
	if filter.Order == domain.OldestFirst {
		order = "l.created_at ASC, l.id ASC"
	}

	query := fmt.Sprintf(`
		SELECT l.id, l.product_external_id, l.product_name, l.old_cost, l.new_cost, l.change_kind,
		       l.category_external_id, l.category_name, l.sync_status, l.created_at, l.synced_at,
		       p.cost
		FROM change_ledger l
		LEFT JOIN products p ON p.external_id = l.product_external_id
		%s
		ORDER BY %s
	`, where, order)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer rows.Close()

	entries := []*domain.LedgerEntry{}
	for rows.Next() {
		var (
			entry        domain.LedgerEntry
			kind, status string
			categoryID   sql.NullInt64
			categoryName sql.NullString
			syncedAt     sql.NullTime
			currentCost  decimal.NullDecimal
		)

		err := rows.Scan(
			&entry.ID,
			&entry.ProductID,
			&entry.ProductName,
			&entry.OldCost,
			&entry.NewCost,
			&kind,
			&categoryID,
			&categoryName,
			&status,
			&entry.CreatedAt,
			&syncedAt,
			&currentCost,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}

		entry.Kind = domain.ChangeKind(kind)
		entry.Status = domain.SyncStatus(status)
		entry.CategoryID = int64Ptr(categoryID)
		entry.CategoryName = stringPtr(categoryName)
		entry.CreatedAt = entry.CreatedAt.UTC()
		entry.CurrentCost = currentCost
		if syncedAt.Valid {
			t := syncedAt.Time.UTC()
			entry.SyncedAt = &t
		}

		entries = append(entries, &entry)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger entries: %w", err)
	}

	return entries, nil
}

func (r *ledgerRepository) MarkSynced(ctx context.Context, ids []int64, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query := `
		UPDATE change_ledger
		SET sync_status = 'synced', synced_at = $1
		WHERE id = ANY($2) AND sync_status = 'pending'
	`

	result, err := r.db.ExecContext(ctx, query, at, ids)
	if err != nil {
		return 0, writeError("mark synced", "ledger entries", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}
