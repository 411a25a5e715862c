package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Product is the catalog representation served by /api/products/{id}.
type Product struct {
	ID            ProductID       `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	Price         decimal.Decimal `json:"price"`
	ImageURL      string          `json:"image_url,omitempty"`
	Sizes         string          `json:"sizes,omitempty"`
	CategoryName  string          `json:"category_name,omitempty"`
	StockQuantity int             `json:"stock_quantity"`
	CreatedAt     string          `json:"created_at,omitempty"`
}

// SizeOptions splits the comma-separated sizes field. A product without
// variants returns nil and is sold as DefaultSize.
func (p Product) SizeOptions() []string {
	if strings.TrimSpace(p.Sizes) == "" {
		return nil
	}
	parts := strings.Split(p.Sizes, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (p Product) InStock() bool {
	return p.StockQuantity > 0
}

var createdAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// CreatedTime parses CreatedAt leniently; unparseable values yield the zero time.
func (p Product) CreatedTime() time.Time {
	raw := strings.TrimSpace(p.CreatedAt)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range createdAtLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}
