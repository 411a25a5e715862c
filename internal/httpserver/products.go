package httpserver

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"storefront/internal/domain"
	productsvc "storefront/internal/service/product"
)

func (h *handlers) listProducts(c *gin.Context) {
	if featured, _ := strconv.ParseBool(c.Query("featured")); featured {
		products, err := h.deps.Products.Featured(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, toProductResponses(products))
		return
	}

	products, err := h.deps.Products.List(c.Request.Context(), productsvc.ListInput{
		Category: c.Query("category"),
		Query:    c.Query("q"),
		Sort:     c.Query("sort"),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProductResponses(products))
}

func (h *handlers) getProduct(c *gin.Context) {
	p, err := h.deps.Products.Get(c.Request.Context(), domain.ProductID(c.Param("id")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProductResponse(*p))
}
