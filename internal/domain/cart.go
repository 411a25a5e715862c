package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultSize labels products sold without variants.
const DefaultSize = "One Size"

// LineItem is one locally persisted cart entry.
type LineItem struct {
	ProductID ProductID `json:"productId" bson:"product_id"`
	Size      string    `json:"size" bson:"size"`
	Quantity  int       `json:"quantity" bson:"quantity"`
	AddedAt   time.Time `json:"addedAt" bson:"added_at"`
}

// LineKey is the identity of a cart entry.
type LineKey struct {
	ProductID ProductID
	Size      string
}

func (l LineItem) Key() LineKey {
	return LineKey{ProductID: l.ProductID, Size: l.Size}
}

func (l LineItem) Valid() bool {
	return strings.TrimSpace(string(l.ProductID)) != "" && l.Quantity > 0
}

// NormalizeSize maps an empty selector to DefaultSize.
func NormalizeSize(size string) string {
	if s := strings.TrimSpace(size); s != "" {
		return s
	}
	return DefaultSize
}

// NormalizeItems drops invalid entries and merges duplicate keys, keeping the
// position and AddedAt of the first occurrence.
func NormalizeItems(items []LineItem) []LineItem {
	out := make([]LineItem, 0, len(items))
	index := make(map[LineKey]int, len(items))
	for _, item := range items {
		item.Size = NormalizeSize(item.Size)
		if !item.Valid() {
			continue
		}
		if pos, ok := index[item.Key()]; ok {
			out[pos].Quantity += item.Quantity
			continue
		}
		index[item.Key()] = len(out)
		out = append(out, item)
	}
	return out
}

// TotalQuantity sums quantities across items.
func TotalQuantity(items []LineItem) int {
	total := 0
	for _, item := range items {
		total += item.Quantity
	}
	return total
}

// ResolvedItem is a LineItem joined with live catalog data.
type ResolvedItem struct {
	LineItem
	Name          string
	UnitPrice     decimal.Decimal
	ImageURL      string
	CategoryName  string
	StockQuantity int
}

// Resolve merges catalog fields into a line item without touching its identity,
// quantity or AddedAt.
func Resolve(item LineItem, p Product) ResolvedItem {
	return ResolvedItem{
		LineItem:      item,
		Name:          p.Name,
		UnitPrice:     p.Price,
		ImageURL:      p.ImageURL,
		CategoryName:  p.CategoryName,
		StockQuantity: p.StockQuantity,
	}
}

func (r ResolvedItem) LineTotal() decimal.Decimal {
	return r.UnitPrice.Mul(decimal.NewFromInt(int64(r.Quantity)))
}

func (r ResolvedItem) Available() bool {
	return r.StockQuantity > 0
}

// PricedCart is the result of a reconciliation pass.
type PricedCart struct {
	Items    []ResolvedItem
	Subtotal decimal.Decimal
}

func (c PricedCart) LineItems() []LineItem {
	out := make([]LineItem, 0, len(c.Items))
	for _, item := range c.Items {
		out = append(out, item.LineItem)
	}
	return out
}

func (c PricedCart) TotalQuantity() int {
	return TotalQuantity(c.LineItems())
}
