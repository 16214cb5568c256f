package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"catalog-mirror/internal/domain"

	"github.com/shopspring/decimal"
)

const (
	modelProduct  = "product.template"
	modelCategory = "product.category"
)

// ProductRecord is one remote product as returned by search_read.
type ProductRecord struct {
	ID           int64
	Code         string
	Name         string
	CategoryID   *int64
	CategoryName *string
	Cost         decimal.Decimal
}

// CategoryRecord is one remote category as returned by search_read.
type CategoryRecord struct {
	ID       int64
	Name     string
	ParentID *int64
}

// Product converts the record into a store row stamped with at.
func (r ProductRecord) Product(at time.Time) *domain.Product {
	return &domain.Product{
		ExternalID:   r.ID,
		Code:         r.Code,
		Name:         r.Name,
		CategoryID:   r.CategoryID,
		CategoryName: r.CategoryName,
		Cost:         r.Cost,
		LastUpdated:  at,
	}
}

// Category converts the record into a store row stamped with at.
func (r CategoryRecord) Category(at time.Time) *domain.Category {
	return &domain.Category{
		ExternalID:  r.ID,
		Name:        r.Name,
		ParentID:    r.ParentID,
		LastUpdated: at,
	}
}

// FetchCategories reads every remote category.
func (c *Client) FetchCategories(ctx context.Context) ([]CategoryRecord, error) {
	raw, err := c.Call(ctx, modelCategory, "search_read",
		[]interface{}{[]interface{}{}, []string{"id", "name", "parent_id"}}, nil)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		ID       int64    `json:"id"`
		Name     odooText `json:"name"`
		ParentID many2one `json:"parent_id"`
	}
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, &domain.RemoteError{Model: modelCategory, Method: "search_read", Message: "undecodable categories", Err: err}
	}

	out := make([]CategoryRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, CategoryRecord{ID: row.ID, Name: string(row.Name), ParentID: row.ParentID.ID})
	}
	return out, nil
}

// FetchProducts reads one page of remote products. Pages are ordered by id
// so consecutive offsets neither skip nor repeat records.
func (c *Client) FetchProducts(ctx context.Context, limit, offset int) ([]ProductRecord, error) {
	raw, err := c.Call(ctx, modelProduct, "search_read",
		[]interface{}{[]interface{}{}, []string{"id", "default_code", "name", "categ_id", "standard_price"}},
		map[string]interface{}{"limit": limit, "offset": offset, "order": "id"})
	if err != nil {
		return nil, err
	}

	var rows []struct {
		ID            int64       `json:"id"`
		DefaultCode   odooText    `json:"default_code"`
		Name          odooText    `json:"name"`
		CategID       many2one    `json:"categ_id"`
		StandardPrice json.Number `json:"standard_price"`
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&rows); err != nil {
		return nil, &domain.RemoteError{Model: modelProduct, Method: "search_read", Message: "undecodable products", Err: err}
	}

	out := make([]ProductRecord, 0, len(rows))
	for _, row := range rows {
		cost := decimal.Zero
		if row.StandardPrice != "" {
			cost, err = decimal.NewFromString(row.StandardPrice.String())
			if err != nil {
				return nil, &domain.RemoteError{
					Model:   modelProduct,
					Method:  "search_read",
					Message: fmt.Sprintf("invalid standard_price for product %d", row.ID),
					Err:     err,
				}
			}
		}
		out = append(out, ProductRecord{
			ID:           row.ID,
			Code:         string(row.DefaultCode),
			Name:         string(row.Name),
			CategoryID:   row.CategID.ID,
			CategoryName: row.CategID.Name,
			Cost:         cost,
		})
	}
	return out, nil
}

// PushCost writes one product's cost to the remote.
func (c *Client) PushCost(ctx context.Context, productID int64, cost decimal.Decimal) error {
	raw, err := c.Call(ctx, modelProduct, "write",
		[]interface{}{[]int64{productID}, map[string]interface{}{"standard_price": json.Number(cost.StringFixed(2))}}, nil)
	if err != nil {
		return err
	}

	var ok bool
	if err := json.Unmarshal(raw, &ok); err != nil || !ok {
		return &domain.RemoteError{
			Model:   modelProduct,
			Method:  "write",
			Message: fmt.Sprintf("write of product %d not acknowledged: %s", productID, truncate(raw, 100)),
		}
	}
	return nil
}

// CountCategories is a cheap authenticated call used as a connection probe.
func (c *Client) CountCategories(ctx context.Context) (int64, error) {
	raw, err := c.Call(ctx, modelCategory, "search_count", []interface{}{[]interface{}{}}, nil)
	if err != nil {
		return 0, err
	}

	var n int64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, &domain.RemoteError{Model: modelCategory, Method: "search_count", Message: "undecodable count", Err: err}
	}
	return n, nil
}

// odooText decodes a char field, treating false as empty.
type odooText string

func (t *odooText) UnmarshalJSON(b []byte) error {
	if string(b) == "false" || string(b) == "null" {
		*t = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*t = odooText(s)
	return nil
}

// many2one decodes [id, "display name"] or false.
type many2one struct {
	ID   *int64
	Name *string
}

func (m *many2one) UnmarshalJSON(b []byte) error {
	if string(b) == "false" || string(b) == "null" {
		*m = many2one{}
		return nil
	}

	var pair []json.RawMessage
	if err := json.Unmarshal(b, &pair); err != nil {
		var id int64
		if err2 := json.Unmarshal(b, &id); err2 != nil {
			return err
		}
		m.ID = &id
		return nil
	}
	if len(pair) == 0 {
		return nil
	}

	var id int64
	if err := json.Unmarshal(pair[0], &id); err != nil {
		return err
	}
	m.ID = &id

	if len(pair) > 1 {
		var name string
		if err := json.Unmarshal(pair[1], &name); err == nil {
			m.Name = &name
		}
	}
	return nil
}
