// Package importer loads saved carts into a session's cart store. It reads
// either CSV exports or the JSON array a browser kept under its "cart"
// storage key.
package importer

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"storefront/internal/domain"
)

// CartWriter is the part of the cart store the importer needs.
type CartWriter interface {
	Merge(ctx context.Context, items []domain.LineItem) error
}

// RowError reports a malformed input row. Row counts data rows from 1.
type RowError struct {
	Row int
	Err error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

var (
	errMissingProduct = errors.New("missing product id")
	errBadQuantity    = errors.New("quantity must be a positive integer")
)

// Importer appends parsed lines to a cart, merging with what is already there.
type Importer struct {
	cart CartWriter
	now  func() time.Time
}

func New(cart CartWriter) *Importer {
	return &Importer{cart: cart, now: time.Now}
}

// ImportCSV reads a header row followed by cart lines. Recognised columns are
// productId (or product_id), size, quantity and addedAt; others are ignored.
func (i *Importer) ImportCSV(ctx context.Context, r io.Reader) (int, error) {
	lines, err := i.parseCSV(r)
	if err != nil {
		return 0, err
	}
	return i.apply(ctx, lines)
}

// ImportJSON reads an array of {productId, size, quantity, addedAt} objects.
func (i *Importer) ImportJSON(ctx context.Context, r io.Reader) (int, error) {
	var raw []struct {
		ProductID domain.ProductID `json:"productId"`
		Size      string           `json:"size"`
		Quantity  *int             `json:"quantity"`
		AddedAt   string           `json:"addedAt"`
	}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return 0, fmt.Errorf("decode cart json: %w", err)
	}
	lines := make([]domain.LineItem, 0, len(raw))
	for n, item := range raw {
		qty := 1
		if item.Quantity != nil {
			qty = *item.Quantity
		}
		line, err := i.line(string(item.ProductID), item.Size, qty, item.AddedAt)
		if err != nil {
			return 0, &RowError{Row: n + 1, Err: err}
		}
		lines = append(lines, line)
	}
	return i.apply(ctx, lines)
}

func (i *Importer) parseCSV(r io.Reader) ([]domain.LineItem, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)
	if _, ok := index["productid"]; !ok {
		if _, ok := index["product_id"]; !ok {
			return nil, errors.New("csv header must include productId")
		}
	}

	var lines []domain.LineItem
	for row := 1; ; row++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &RowError{Row: row, Err: err}
		}
		if blank(record) {
			continue
		}

		productID := pick(record, index, "productid", "product_id")
		qty := 1
		if raw := pick(record, index, "quantity"); raw != "" {
			qty, err = strconv.Atoi(raw)
			if err != nil {
				return nil, &RowError{Row: row, Err: errBadQuantity}
			}
		}
		line, err := i.line(productID, pick(record, index, "size"), qty, pick(record, index, "addedat", "added_at"))
		if err != nil {
			return nil, &RowError{Row: row, Err: err}
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func (i *Importer) line(productID, size string, qty int, addedAt string) (domain.LineItem, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.LineItem{}, errMissingProduct
	}
	if qty <= 0 {
		return domain.LineItem{}, errBadQuantity
	}
	added := i.now().UTC()
	if t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(addedAt)); err == nil {
		added = t.UTC()
	}
	return domain.LineItem{
		ProductID: domain.ProductID(productID),
		Size:      domain.NormalizeSize(size),
		Quantity:  qty,
		AddedAt:   added,
	}, nil
}

// apply appends lines after the current contents; duplicates merge into the
// existing entry.
func (i *Importer) apply(ctx context.Context, lines []domain.LineItem) (int, error) {
	if len(lines) == 0 {
		return 0, nil
	}
	if err := i.cart.Merge(ctx, lines); err != nil {
		return 0, fmt.Errorf("save cart: %w", err)
	}
	return len(lines), nil
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	return idx
}

func pick(record []string, index map[string]int, keys ...string) string {
	for _, key := range keys {
		pos, ok := index[key]
		if ok && pos < len(record) {
			return strings.TrimSpace(record[pos])
		}
	}
	return ""
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
