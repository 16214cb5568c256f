package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is the local mirror of a remote product, keyed by its external id.
type Product struct {
	ExternalID   int64           `json:"external_id"`
	Code         string          `json:"code"`
	Name         string          `json:"name"`
	CategoryID   *int64          `json:"category_id"`
	CategoryName *string         `json:"category_name"`
	Cost         decimal.Decimal `json:"cost"`
	LastUpdated  time.Time       `json:"last_updated"`
}

// Category is the local mirror of a remote category. ParentID may reference
// a category that has not been pulled yet.
type Category struct {
	ExternalID  int64     `json:"external_id"`
	Name        string    `json:"name"`
	ParentID    *int64    `json:"parent_id"`
	LastUpdated time.Time `json:"last_updated"`
}

// CategoryWithCount pairs a category with the number of products referencing it.
type CategoryWithCount struct {
	Category
	ProductCount int64 `json:"product_count"`
}

// ProductFilter narrows product listings
type ProductFilter struct {
	CategoryID *int64
}

// UpsertOutcome tells what an insert-or-replace actually did.
type UpsertOutcome int

const (
	UpsertUnchanged UpsertOutcome = iota
	UpsertInserted
	UpsertUpdated
)

func (o UpsertOutcome) String() string {
	switch o {
	case UpsertInserted:
		return "inserted"
	case UpsertUpdated:
		return "updated"
	default:
		return "unchanged"
	}
}

// MaxCost is the largest value a NUMERIC(12,2) cost column holds.
var MaxCost = decimal.RequireFromString("9999999999.99")

// ValidateCost rejects costs the store cannot hold exactly: negative values,
// values above MaxCost and values with more than two decimals.
func ValidateCost(cost decimal.Decimal) error {
	switch {
	case cost.IsNegative():
		return NewValidationError("new_cost", cost.String(), "cost must be greater than or equal to 0")
	case cost.GreaterThan(MaxCost):
		return NewValidationError("new_cost", cost.String(), "cost must not exceed "+MaxCost.StringFixed(2))
	case !cost.Equal(cost.Round(2)):
		return NewValidationError("new_cost", cost.String(), "cost must have at most two decimals")
	}
	return nil
}
