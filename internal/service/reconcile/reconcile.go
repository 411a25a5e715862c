// Package reconcile prices a cart against the live catalog and drops lines
// that no longer resolve.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"storefront/internal/domain"
)

const (
	DefaultLookupTimeout  = 5 * time.Second
	DefaultMaxConcurrency = 8
)

type Catalog interface {
	GetProduct(ctx context.Context, id domain.ProductID) (*domain.Product, error)
}

// CartStore is the slice of the cart store the reconciler needs.
type CartStore interface {
	Snapshot(ctx context.Context) ([]domain.LineItem, error)
	Drop(ctx context.Context, keys []domain.LineKey) error
}

type Reconciler struct {
	catalog        Catalog
	logger         *zap.Logger
	lookupTimeout  time.Duration
	maxConcurrency int
}

type Option func(*Reconciler)

func WithLookupTimeout(d time.Duration) Option {
	return func(r *Reconciler) {
		if d > 0 {
			r.lookupTimeout = d
		}
	}
}

func WithMaxConcurrency(n int) Option {
	return func(r *Reconciler) {
		if n > 0 {
			r.maxConcurrency = n
		}
	}
}

func New(catalog Catalog, logger *zap.Logger, opts ...Option) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Reconciler{
		catalog:        catalog,
		logger:         logger,
		lookupTimeout:  DefaultLookupTimeout,
		maxConcurrency: DefaultMaxConcurrency,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type lookupResult struct {
	product *domain.Product
	err     error
}

// Reconcile resolves every line concurrently, removes the unresolvable ones
// from the store and returns the priced cart. When every lookup failed and
// none of them was a definitive not-found, the catalog is treated as
// unreachable: a *domain.ReconciliationError is returned and the store is
// not touched.
func (r *Reconciler) Reconcile(ctx context.Context, store CartStore) (domain.PricedCart, error) {
	items, err := store.Snapshot(ctx)
	if err != nil {
		return domain.PricedCart{}, &domain.ReconciliationError{Err: fmt.Errorf("read cart: %w", err)}
	}
	if len(items) == 0 {
		return domain.PricedCart{Items: []domain.ResolvedItem{}, Subtotal: decimal.Zero}, nil
	}

	results := make([]lookupResult, len(items))
	var g errgroup.Group
	g.SetLimit(r.maxConcurrency)
	for i, item := range items {
		g.Go(func() error {
			results[i] = r.lookup(ctx, item.ProductID)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return domain.PricedCart{}, &domain.ReconciliationError{Err: err}
	}

	resolved := make([]domain.ResolvedItem, 0, len(items))
	var (
		dropped  []domain.LineKey
		notFound int
		firstErr error
	)
	for i, res := range results {
		if res.err != nil {
			dropped = append(dropped, items[i].Key())
			if errors.Is(res.err, domain.ErrNotFound) {
				notFound++
			}
			if firstErr == nil {
				firstErr = res.err
			}
			r.logger.Warn("dropping unresolvable cart line",
				zap.String("product_id", items[i].ProductID.String()),
				zap.String("size", items[i].Size),
				zap.Error(res.err))
			continue
		}
		resolved = append(resolved, domain.Resolve(items[i], *res.product))
	}

	if len(dropped) == len(items) && notFound == 0 {
		return domain.PricedCart{}, &domain.ReconciliationError{Err: fmt.Errorf("catalog unreachable: %w", firstErr)}
	}

	priced := domain.PricedCart{Items: resolved, Subtotal: decimal.Zero}
	for _, item := range resolved {
		priced.Subtotal = priced.Subtotal.Add(item.LineTotal())
	}

	// Drop works on the store's current contents, so lines added while the
	// lookups ran are kept.
	if len(dropped) > 0 {
		if err := store.Drop(ctx, dropped); err != nil {
			return domain.PricedCart{}, &domain.ReconciliationError{Err: fmt.Errorf("write back cart: %w", err)}
		}
		r.logger.Info("cart reconciled with dropped lines",
			zap.Int("dropped", len(dropped)),
			zap.Int("kept", len(resolved)))
	}
	return priced, nil
}

func (r *Reconciler) lookup(ctx context.Context, id domain.ProductID) lookupResult {
	lctx, cancel := context.WithTimeout(ctx, r.lookupTimeout)
	defer cancel()

	p, err := r.catalog.GetProduct(lctx, id)
	if err != nil {
		return lookupResult{err: err}
	}
	if p == nil {
		return lookupResult{err: domain.ErrNotFound}
	}
	return lookupResult{product: p}
}
