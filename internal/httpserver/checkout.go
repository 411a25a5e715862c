package httpserver

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"storefront/internal/domain"
	"storefront/internal/service/checkout"
)

type checkoutRequest struct {
	CustomerName    string `json:"customerName"`
	CustomerEmail   string `json:"customerEmail"`
	CustomerPhone   string `json:"customerPhone"`
	CustomerAddress string `json:"customerAddress"`
}

func (r checkoutRequest) customer() domain.Customer {
	return domain.Customer{
		Name:    r.CustomerName,
		Email:   r.CustomerEmail,
		Phone:   r.CustomerPhone,
		Address: r.CustomerAddress,
	}
}

type messageCheckoutResponse struct {
	Channel string `json:"channel"`
	URL     string `json:"url"`
	Message string `json:"message"`
	Total   string `json:"total"`
}

type orderCheckoutResponse struct {
	Channel  string `json:"channel"`
	OrderID  string `json:"orderId"`
	Total    string `json:"total,omitempty"`
	Replayed bool   `json:"replayed,omitempty"`
}

// prepareOrder validates the form before any catalog call, then prices the
// cart and builds the order.
func (h *handlers) prepareOrder(c *gin.Context) (domain.OrderRequest, bool) {
	var body checkoutRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		abortError(c, http.StatusBadRequest, "bad_request", "invalid json body", nil)
		return domain.OrderRequest{}, false
	}
	customer := body.customer()
	if err := checkout.ValidateCustomer(customer); err != nil {
		writeError(c, err)
		return domain.OrderRequest{}, false
	}
	priced, err := h.deps.Reconciler.Reconcile(c.Request.Context(), h.store(c))
	if err != nil {
		writeError(c, err)
		return domain.OrderRequest{}, false
	}
	req, err := checkout.BuildOrderRequest(priced.Items, customer)
	if err != nil {
		writeError(c, err)
		return domain.OrderRequest{}, false
	}
	return req, true
}

func (h *handlers) checkoutMessage(c *gin.Context) {
	req, ok := h.prepareOrder(c)
	if !ok {
		return
	}
	receipt, err := h.deps.Checkout.SubmitViaMessageChannel(c.Request.Context(), h.store(c), req)
	if err != nil {
		h.logger.Error("message checkout failed", zap.Error(err))
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, messageCheckoutResponse{
		Channel: "message",
		URL:     receipt.URL,
		Message: receipt.Text,
		Total:   money(req.TotalAmount),
	})
}

// checkoutOrder answers a retried Idempotency-Key with the original order
// before touching the cart, which the first success already cleared.
func (h *handlers) checkoutOrder(c *gin.Context) {
	key := strings.TrimSpace(c.GetHeader(idempotencyHeader))
	if orderID, ok := h.deps.Checkout.ReplayedOrder(c.Request.Context(), h.store(c), key); ok {
		c.JSON(http.StatusCreated, orderCheckoutResponse{Channel: "backend", OrderID: orderID, Replayed: true})
		return
	}
	req, ok := h.prepareOrder(c)
	if !ok {
		return
	}
	orderID, err := h.deps.Checkout.SubmitViaBackend(c.Request.Context(), h.store(c), req, key)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, orderCheckoutResponse{
		Channel: "backend",
		OrderID: orderID,
		Total:   money(req.TotalAmount),
	})
}
