// Package admin wraps the backend's admin endpoints.
package admin

import (
	"context"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"
	"storefront/internal/domain"
	"storefront/internal/restclient"
)

type Stats struct {
	TotalSales       decimal.Decimal  `json:"totalSales"`
	TotalOrders      int              `json:"totalOrders"`
	LowStockProducts []domain.Product `json:"lowStockProducts"`
}

type Client struct {
	rest *restclient.Client
}

func New(rest *restclient.Client) *Client {
	return &Client{rest: rest}
}

func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	var s Stats
	if err := c.rest.Do(ctx, http.MethodGet, "/api/admin/stats", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) ListOrders(ctx context.Context) ([]domain.Order, error) {
	var out []domain.Order
	if err := c.rest.Do(ctx, http.MethodGet, "/api/admin/orders", nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.Order{}
	}
	return out, nil
}

func (c *Client) UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) error {
	body := struct {
		Status domain.OrderStatus `json:"status"`
	}{Status: status}
	err := c.rest.Do(ctx, http.MethodPut, "/api/admin/orders/"+url.PathEscape(orderID), body, nil)
	if restclient.IsNotFound(err) {
		return domain.ErrNotFound
	}
	return err
}
