package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"storefront/internal/domain"
	cartsvc "storefront/internal/service/cart"
)

type addItemRequest struct {
	ProductID domain.ProductID `json:"productId"`
	Size      string           `json:"size"`
	Quantity  *int             `json:"quantity"`
}

type changeQuantityRequest struct {
	ProductID domain.ProductID `json:"productId"`
	Size      string           `json:"size"`
	Delta     int              `json:"delta"`
}

type removeItemRequest struct {
	ProductID domain.ProductID `json:"productId" form:"productId"`
	Size      string           `json:"size" form:"size"`
}

type countResponse struct {
	ItemCount int `json:"itemCount"`
}

func (h *handlers) store(c *gin.Context) *cartsvc.Store {
	return h.deps.Carts.Store(c.GetString(sessionCtxKey))
}

func (h *handlers) getCart(c *gin.Context) {
	priced, err := h.deps.Reconciler.Reconcile(c.Request.Context(), h.store(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCartResponse(priced, h.deps.CurrencySymbol))
}

func (h *handlers) cartCount(c *gin.Context) {
	h.respondCount(c, h.store(c), http.StatusOK)
}

func (h *handlers) addItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "bad_request", "invalid json body", nil)
		return
	}
	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}
	st := h.store(c)
	if err := st.Add(c.Request.Context(), req.ProductID, req.Size, qty); err != nil {
		writeError(c, err)
		return
	}
	h.respondCount(c, st, http.StatusOK)
}

func (h *handlers) changeQuantity(c *gin.Context) {
	var req changeQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "bad_request", "invalid json body", nil)
		return
	}
	st := h.store(c)
	if err := st.ChangeQuantity(c.Request.Context(), req.ProductID, req.Size, req.Delta); err != nil {
		writeError(c, err)
		return
	}
	h.respondCount(c, st, http.StatusOK)
}

// removeItem reads the line from the JSON body or, for clients that cannot
// send a DELETE body, from the query string.
func (h *handlers) removeItem(c *gin.Context) {
	var req removeItemRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			abortError(c, http.StatusBadRequest, "bad_request", "invalid json body", nil)
			return
		}
	} else {
		req.ProductID = domain.ProductID(c.Query("productId"))
		req.Size = c.Query("size")
	}
	if req.ProductID == "" {
		writeError(c, cartsvc.ErrInvalidProduct)
		return
	}
	st := h.store(c)
	if err := st.Remove(c.Request.Context(), req.ProductID, req.Size); err != nil {
		writeError(c, err)
		return
	}
	h.respondCount(c, st, http.StatusOK)
}

func (h *handlers) respondCount(c *gin.Context, st *cartsvc.Store, status int) {
	total, err := st.TotalQuantity(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(status, countResponse{ItemCount: total})
}
