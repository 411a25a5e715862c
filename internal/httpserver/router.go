package httpserver

import (
	"context"
	"errors"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"storefront/internal/domain"
	adminsvc "storefront/internal/service/admin"
	cartsvc "storefront/internal/service/cart"
	"storefront/internal/service/checkout"
	productsvc "storefront/internal/service/product"
	"storefront/internal/service/reconcile"
)

const (
	sessionHeader     = "X-Cart-Session"
	idempotencyHeader = "Idempotency-Key"
)

type SessionService interface {
	Issue(ctx context.Context) (token, sessionID string, err error)
	Lookup(ctx context.Context, token string) (string, error)
	TTLSeconds() int
}

type CartService interface {
	Store(sessionID string) *cartsvc.Store
}

type Reconciler interface {
	Reconcile(ctx context.Context, store reconcile.CartStore) (domain.PricedCart, error)
}

type CheckoutService interface {
	SubmitViaMessageChannel(ctx context.Context, cart checkout.Cart, req domain.OrderRequest) (checkout.MessageReceipt, error)
	SubmitViaBackend(ctx context.Context, cart checkout.Cart, req domain.OrderRequest, idempotencyKey string) (string, error)
	ReplayedOrder(ctx context.Context, cart checkout.Cart, idempotencyKey string) (string, bool)
}

type ProductService interface {
	List(ctx context.Context, in productsvc.ListInput) ([]domain.Product, error)
	Featured(ctx context.Context) ([]domain.Product, error)
	Get(ctx context.Context, id domain.ProductID) (*domain.Product, error)
}

type AdminService interface {
	Dashboard(ctx context.Context) (*adminsvc.Dashboard, error)
	Orders(ctx context.Context, status string) ([]domain.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID, status string) error
}

type Deps struct {
	Sessions   SessionService
	Carts      CartService
	Reconciler Reconciler
	Checkout   CheckoutService
	Products   ProductService
	Admin      AdminService
	// Ready is pinged by /readyz when set.
	Ready          Pinger
	CurrencySymbol string
	CORSOrigins    []string
}

type handlers struct {
	deps   Deps
	logger *zap.Logger
}

// buildRouter wires routes for the storefront API.
func buildRouter(logger *zap.Logger, deps Deps) (*gin.Engine, error) {
	if deps.Sessions == nil || deps.Carts == nil || deps.Reconciler == nil || deps.Checkout == nil {
		return nil, errors.New("sessions, carts, reconciler and checkout are required")
	}
	if deps.CurrencySymbol == "" {
		deps.CurrencySymbol = checkout.DefaultCurrencySymbol
	}
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(requestLogger(logger), gin.Recovery(), cors.New(corsConfig(deps.CORSOrigins)), bearerMiddleware())

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(deps.Ready))

	h := &handlers{deps: deps, logger: logger}
	api := router.Group("/api")
	api.POST("/session", h.issueSession)

	if deps.Products != nil {
		api.GET("/products", h.listProducts)
		api.GET("/products/:id", h.getProduct)
	}

	carts := api.Group("", sessionMiddleware(deps.Sessions))
	carts.GET("/cart", h.getCart)
	carts.GET("/cart/count", h.cartCount)
	carts.POST("/cart/items", h.addItem)
	carts.PATCH("/cart/items", h.changeQuantity)
	carts.DELETE("/cart/items", h.removeItem)
	carts.POST("/checkout/message", h.checkoutMessage)
	carts.POST("/checkout/order", h.checkoutOrder)

	if deps.Admin != nil {
		admin := api.Group("/admin", requireBearer())
		admin.GET("/stats", h.adminStats)
		admin.GET("/orders", h.adminOrders)
		admin.PUT("/orders/:id", h.adminUpdateOrder)
	}

	return router, nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", sessionHeader, idempotencyHeader},
		ExposeHeaders: []string{sessionHeader},
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}
