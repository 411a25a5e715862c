// Package catalog reads products from the backend REST API.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"storefront/internal/domain"
	"storefront/internal/restclient"
)

// ErrUnavailable wraps lookups rejected by the open circuit breaker.
var ErrUnavailable = errors.New("catalog unavailable")

type BreakerSettings struct {
	// ConsecutiveFailures trips the breaker.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
}

func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{ConsecutiveFailures: 5, OpenTimeout: 30 * time.Second}
}

// DefaultFetchTimeout bounds a shared product request.
const DefaultFetchTimeout = 5 * time.Second

type Client struct {
	rest         *restclient.Client
	logger       *zap.Logger
	product      *gobreaker.CircuitBreaker[*domain.Product]
	list         *gobreaker.CircuitBreaker[[]domain.Product]
	group        singleflight.Group
	fetchTimeout time.Duration
}

type Option func(*Client)

// WithFetchTimeout bounds the request shared by coalesced product lookups.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.fetchTimeout = d
		}
	}
}

func New(rest *restclient.Client, logger *zap.Logger, bs BreakerSettings, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if bs.ConsecutiveFailures == 0 {
		bs = DefaultBreakerSettings()
	}
	c := &Client{rest: rest, logger: logger, fetchTimeout: DefaultFetchTimeout}
	for _, opt := range opts {
		opt(c)
	}
	c.product = gobreaker.NewCircuitBreaker[*domain.Product](c.settings("catalog-product", bs))
	c.list = gobreaker.NewCircuitBreaker[[]domain.Product](c.settings("catalog-list", bs))
	return c
}

func (c *Client) settings(name string, bs BreakerSettings) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     bs.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= bs.ConsecutiveFailures
		},
		// A missing product is an answer, not an outage. A cancelled request
		// says nothing about the catalog either.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrNotFound) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}
}

// GetProduct fetches one product. A 404 maps to domain.ErrNotFound.
// Concurrent lookups of the same id share one request. The shared request is
// detached from every caller's cancellation and bounded by the fetch timeout;
// each caller still stops waiting when its own ctx ends.
func (c *Client) GetProduct(ctx context.Context, id domain.ProductID) (*domain.Product, error) {
	key := strings.TrimSpace(string(id))
	if key == "" {
		return nil, domain.ErrNotFound
	}
	ch := c.group.DoChan(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()
		return c.product.Execute(func() (*domain.Product, error) {
			return c.fetchProduct(fctx, key)
		})
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, c.wrap(res.Err)
		}
		p := *res.Val.(*domain.Product)
		return &p, nil
	}
}

func (c *Client) fetchProduct(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	if err := c.rest.Do(ctx, http.MethodGet, "/api/products/"+url.PathEscape(id), nil, &p); err != nil {
		if restclient.IsNotFound(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if p.ID == "" {
		p.ID = domain.ProductID(id)
	}
	return &p, nil
}

// ListProducts returns the full catalog in backend order.
func (c *Client) ListProducts(ctx context.Context) ([]domain.Product, error) {
	products, err := c.list.Execute(func() ([]domain.Product, error) {
		var out []domain.Product
		if err := c.rest.Do(ctx, http.MethodGet, "/api/products", nil, &out); err != nil {
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		return nil, c.wrap(err)
	}
	if products == nil {
		products = []domain.Product{}
	}
	return products, nil
}

func (c *Client) wrap(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return err
}
