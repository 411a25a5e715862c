package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type updateStatusRequest struct {
	Status string `json:"status"`
}

type statsResponse struct {
	TotalSales       string            `json:"totalSales"`
	TotalOrders      int               `json:"totalOrders"`
	LowStockCount    int               `json:"lowStockCount"`
	LowStockProducts []lowStockProduct `json:"lowStockProducts"`
}

type lowStockProduct struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	StockQuantity int    `json:"stockQuantity"`
	Critical      bool   `json:"critical"`
}

func (h *handlers) adminStats(c *gin.Context) {
	d, err := h.deps.Admin.Dashboard(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	resp := statsResponse{
		TotalSales:       money(d.TotalSales),
		TotalOrders:      d.TotalOrders,
		LowStockCount:    len(d.LowStock),
		LowStockProducts: make([]lowStockProduct, 0, len(d.LowStock)),
	}
	for _, p := range d.LowStock {
		resp.LowStockProducts = append(resp.LowStockProducts, lowStockProduct{
			ID:            p.ID.String(),
			Name:          p.Name,
			StockQuantity: p.StockQuantity,
			Critical:      p.Critical,
		})
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handlers) adminOrders(c *gin.Context) {
	orders, err := h.deps.Admin.Orders(c.Request.Context(), c.Query("status"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *handlers) adminUpdateOrder(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "bad_request", "invalid json body", nil)
		return
	}
	if err := h.deps.Admin.UpdateOrderStatus(c.Request.Context(), c.Param("id"), req.Status); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "order status updated", "status": req.Status})
}
