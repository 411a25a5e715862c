package httpserver

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"storefront/internal/catalog"
	"storefront/internal/domain"
	cartrepo "storefront/internal/repository/cart"
	"storefront/internal/repository/idempotency"
	"storefront/internal/restclient"
	adminsvc "storefront/internal/service/admin"
	cartsvc "storefront/internal/service/cart"
	productsvc "storefront/internal/service/product"
)

type errorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

type cartLineResponse struct {
	ProductID        domain.ProductID `json:"productId"`
	Size             string           `json:"size"`
	Quantity         int              `json:"quantity"`
	AddedAt          time.Time        `json:"addedAt"`
	Name             string           `json:"name"`
	ImageURL         string           `json:"imageUrl,omitempty"`
	CategoryName     string           `json:"categoryName,omitempty"`
	UnitPrice        string           `json:"unitPrice"`
	LineTotal        string           `json:"lineTotal"`
	LineTotalDisplay string           `json:"lineTotalDisplay"`
	Available        bool             `json:"available"`
}

type cartResponse struct {
	Items           []cartLineResponse `json:"items"`
	ItemCount       int                `json:"itemCount"`
	Subtotal        string             `json:"subtotal"`
	SubtotalDisplay string             `json:"subtotalDisplay"`
	Currency        string             `json:"currency"`
}

type productResponse struct {
	domain.Product
	SizeOptions []string `json:"sizeOptions"`
	InStock     bool     `json:"inStock"`
}

func toCartResponse(priced domain.PricedCart, currency string) cartResponse {
	resp := cartResponse{
		Items:           make([]cartLineResponse, 0, len(priced.Items)),
		ItemCount:       priced.TotalQuantity(),
		Subtotal:        priced.Subtotal.StringFixed(2),
		SubtotalDisplay: domain.FormatMoney(currency, priced.Subtotal),
		Currency:        currency,
	}
	for _, item := range priced.Items {
		total := item.LineTotal()
		resp.Items = append(resp.Items, cartLineResponse{
			ProductID:        item.ProductID,
			Size:             item.Size,
			Quantity:         item.Quantity,
			AddedAt:          item.AddedAt,
			Name:             item.Name,
			ImageURL:         item.ImageURL,
			CategoryName:     item.CategoryName,
			UnitPrice:        item.UnitPrice.StringFixed(2),
			LineTotal:        total.StringFixed(2),
			LineTotalDisplay: domain.FormatMoney(currency, total),
			Available:        item.Available(),
		})
	}
	return resp
}

func toProductResponse(p domain.Product) productResponse {
	sizes := p.SizeOptions()
	if sizes == nil {
		sizes = []string{domain.DefaultSize}
	}
	return productResponse{Product: p, SizeOptions: sizes, InStock: p.InStock()}
}

func toProductResponses(products []domain.Product) []productResponse {
	out := make([]productResponse, 0, len(products))
	for _, p := range products {
		out = append(out, toProductResponse(p))
	}
	return out
}

func money(d decimal.Decimal) string { return d.StringFixed(2) }

func abortError(c *gin.Context, status int, code, msg string, details any) {
	c.AbortWithStatusJSON(status, errorResponse{Error: msg, Code: code, Details: details})
}

// writeError maps service errors onto HTTP responses.
func writeError(c *gin.Context, err error) {
	_ = c.Error(err)

	var (
		validation *domain.ValidationError
		recErr     *domain.ReconciliationError
		subErr     *domain.OrderSubmissionError
		status     *restclient.StatusError
	)
	switch {
	case errors.As(err, &validation):
		abortError(c, http.StatusUnprocessableEntity, "validation_failed", validation.Error(), gin.H{"fields": validation.Fields})
	case errors.Is(err, idempotency.ErrInFlight):
		abortError(c, http.StatusConflict, "submission_in_progress", "an order with this idempotency key is still being placed", nil)
	case errors.Is(err, domain.ErrEmptyCart):
		abortError(c, http.StatusConflict, "empty_cart", "cart has no items to check out", nil)
	case errors.As(err, &recErr), errors.Is(err, catalog.ErrUnavailable):
		abortError(c, http.StatusServiceUnavailable, "catalog_unavailable", "product catalog is unavailable, try again shortly", nil)
	case errors.As(err, &subErr):
		abortError(c, http.StatusBadGateway, "order_submission_failed", "order could not be placed, try again", nil)
	case errors.Is(err, domain.ErrNotFound):
		abortError(c, http.StatusNotFound, "not_found", "not found", nil)
	case errors.Is(err, cartsvc.ErrInvalidQuantity),
		errors.Is(err, cartsvc.ErrInvalidProduct),
		errors.Is(err, cartrepo.ErrInvalidSession),
		errors.Is(err, productsvc.ErrUnknownSort),
		errors.Is(err, adminsvc.ErrInvalidStatus):
		abortError(c, http.StatusBadRequest, "bad_request", err.Error(), nil)
	case errors.As(err, &status) && (status.StatusCode == http.StatusUnauthorized || status.StatusCode == http.StatusForbidden):
		abortError(c, status.StatusCode, "unauthorized", "backend rejected the credential", nil)
	case errors.As(err, &status):
		abortError(c, http.StatusBadGateway, "backend_error", "backend request failed", nil)
	default:
		abortError(c, http.StatusInternalServerError, "internal_error", "internal error", nil)
	}
}
