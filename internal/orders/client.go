// Package orders creates orders through the backend REST API.
package orders

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"storefront/internal/domain"
	"storefront/internal/restclient"
)

// ErrMissingOrderID is returned when the backend answers 2xx without an id.
var ErrMissingOrderID = errors.New("backend response carried no order id")

type Client struct {
	rest *restclient.Client
}

func New(rest *restclient.Client) *Client {
	return &Client{rest: rest}
}

type createOrderRequest struct {
	CustomerName    string      `json:"customerName"`
	CustomerEmail   string      `json:"customerEmail"`
	CustomerAddress string      `json:"customerAddress"`
	Items           []orderLine `json:"items"`
	TotalAmount     json.Number `json:"totalAmount"`
}

type orderLine struct {
	ProductID domain.ProductID `json:"productId"`
	Quantity  int              `json:"quantity"`
	Size      string           `json:"size"`
	Price     json.Number      `json:"price"`
}

type createOrderResponse struct {
	OrderID domain.OrderID `json:"orderId"`
}

// CreateOrder posts the request and returns the backend's order id. The
// backend has no phone column, so the phone rides along in the address.
func (c *Client) CreateOrder(ctx context.Context, req domain.OrderRequest) (string, error) {
	body := createOrderRequest{
		CustomerName:    req.Customer.Name,
		CustomerEmail:   req.Customer.Email,
		CustomerAddress: req.Customer.Address + "\nPhone: " + req.Customer.Phone,
		Items:           make([]orderLine, 0, len(req.Items)),
		TotalAmount:     json.Number(req.TotalAmount.String()),
	}
	for _, item := range req.Items {
		body.Items = append(body.Items, orderLine{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Size:      item.Size,
			Price:     json.Number(item.UnitPrice.String()),
		})
	}

	var resp createOrderResponse
	if err := c.rest.Do(ctx, http.MethodPost, "/api/orders", body, &resp); err != nil {
		return "", err
	}
	id := strings.TrimSpace(resp.OrderID.String())
	if id == "" {
		return "", ErrMissingOrderID
	}
	return id, nil
}
