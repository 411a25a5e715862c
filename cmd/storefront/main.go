package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	adminclient "storefront/internal/admin"
	"storefront/internal/bootstrap"
	"storefront/internal/catalog"
	"storefront/internal/config"
	"storefront/internal/events"
	"storefront/internal/httpserver"
	"storefront/internal/logging"
	"storefront/internal/messaging"
	"storefront/internal/orders"
	"storefront/internal/restclient"
	adminsvc "storefront/internal/service/admin"
	cartsvc "storefront/internal/service/cart"
	"storefront/internal/service/checkout"
	productsvc "storefront/internal/service/product"
	"storefront/internal/service/reconcile"
	"storefront/internal/service/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel, "storefront")
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	stores, err := bootstrap.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("open stores", zap.Error(err))
	}
	defer stores.Close()

	rest := restclient.New(cfg.BackendBaseURL, restclient.WithToken(cfg.BackendToken))
	catalogClient := catalog.New(rest, logger.Named("catalog"), catalog.DefaultBreakerSettings(),
		catalog.WithFetchTimeout(cfg.LookupTimeout))

	var publisher events.Publisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.CheckoutTopic, "storefront")
		defer func() { _ = kp.Close() }()
		publisher = kp
	}

	sessions, err := session.New([]byte(cfg.SessionSecret), cfg.SessionTTL)
	if err != nil {
		logger.Fatal("init sessions", zap.Error(err))
	}
	if cfg.SessionSecret == "" {
		logger.Warn("SESSION_SECRET not set, sessions will not survive a restart")
	}

	coordinator := checkout.New(orders.New(rest), messaging.NewWhatsApp(), checkout.Settings{
		ShopName:       cfg.ShopName,
		CurrencySymbol: cfg.CurrencySymbol,
		Destination:    cfg.WhatsAppNumber,
		SubmitTimeout:  cfg.SubmitTimeout,
	}, logger.Named("checkout"), checkout.WithPublisher(publisher), checkout.WithDeduper(stores.Idempotency))

	deps := httpserver.Deps{
		Sessions: sessions,
		Carts:    cartsvc.New(stores.Carts, logger.Named("cart")),
		Reconciler: reconcile.New(catalogClient, logger.Named("reconcile"),
			reconcile.WithLookupTimeout(cfg.LookupTimeout),
			reconcile.WithMaxConcurrency(cfg.ReconcileMaxConcurrency)),
		Checkout:       coordinator,
		Products:       productsvc.New(catalogClient),
		Admin:          adminsvc.New(adminclient.New(rest)),
		CurrencySymbol: cfg.CurrencySymbol,
		CORSOrigins:    cfg.CORSOrigins,
	}
	if stores.Ready != nil {
		deps.Ready = stores.Ready
	}

	srv, err := httpserver.New(cfg.HTTPAddr, logger, deps)
	if err != nil {
		logger.Fatal("init server", zap.Error(err))
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting http server", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	} else {
		logger.Info("server stopped")
	}
}
