// Package admin backs the order console: dashboard stats, order listing and
// status changes.
package admin

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	adminclient "storefront/internal/admin"
	"storefront/internal/domain"
)

// CriticalStock marks low-stock products that need attention first.
const CriticalStock = 5

var ErrInvalidStatus = errors.New("invalid order status")

type backend interface {
	Stats(ctx context.Context) (*adminclient.Stats, error)
	ListOrders(ctx context.Context) ([]domain.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) error
}

type Service struct {
	backend backend
}

func New(backend backend) *Service {
	return &Service{backend: backend}
}

type LowStockProduct struct {
	domain.Product
	Critical bool `json:"critical"`
}

type Dashboard struct {
	TotalSales  decimal.Decimal   `json:"totalSales"`
	TotalOrders int               `json:"totalOrders"`
	LowStock    []LowStockProduct `json:"lowStockProducts"`
}

func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	stats, err := s.backend.Stats(ctx)
	if err != nil {
		return nil, err
	}
	d := &Dashboard{
		TotalSales:  stats.TotalSales,
		TotalOrders: stats.TotalOrders,
		LowStock:    make([]LowStockProduct, 0, len(stats.LowStockProducts)),
	}
	for _, p := range stats.LowStockProducts {
		d.LowStock = append(d.LowStock, LowStockProduct{Product: p, Critical: p.StockQuantity < CriticalStock})
	}
	return d, nil
}

// Orders lists orders, optionally keeping only one status.
func (s *Service) Orders(ctx context.Context, status string) ([]domain.Order, error) {
	filter := domain.OrderStatus(strings.ToLower(strings.TrimSpace(status)))
	if filter != "" && !filter.Valid() {
		return nil, ErrInvalidStatus
	}
	orders, err := s.backend.ListOrders(ctx)
	if err != nil {
		return nil, err
	}
	if filter == "" {
		return orders, nil
	}
	out := make([]domain.Order, 0, len(orders))
	for _, o := range orders {
		if o.Status == filter {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *Service) UpdateOrderStatus(ctx context.Context, orderID, status string) error {
	next := domain.OrderStatus(strings.ToLower(strings.TrimSpace(status)))
	if !next.Valid() {
		return ErrInvalidStatus
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.ErrNotFound
	}
	return s.backend.UpdateOrderStatus(ctx, orderID, next)
}
