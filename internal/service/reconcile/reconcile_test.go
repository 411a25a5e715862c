package reconcile

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"storefront/internal/domain"
	cartrepo "storefront/internal/repository/cart"
	"storefront/internal/service/cart"
)

type stubCatalog struct {
	mu       sync.Mutex
	products map[domain.ProductID]domain.Product
	errs     map[domain.ProductID]error
	delay    func(id domain.ProductID) time.Duration
	calls    atomic.Int32
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (s *stubCatalog) GetProduct(ctx context.Context, id domain.ProductID) (*domain.Product, error) {
	s.calls.Add(1)
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}

	if s.delay != nil {
		select {
		case <-time.After(s.delay(id)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.errs[id]; ok {
		return nil, err
	}
	p, ok := s.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

type countingStore struct {
	*cart.Store
	dropCalls int
}

func (c *countingStore) Drop(ctx context.Context, keys []domain.LineKey) error {
	c.dropCalls++
	return c.Store.Drop(ctx, keys)
}

func newStore(t *testing.T, lines ...domain.LineItem) *countingStore {
	t.Helper()
	repo := cartrepo.NewMemory()
	require.NoError(t, repo.Save(context.Background(), "s", lines))
	return &countingStore{Store: cart.New(repo, nil).Store("s")}
}

func price(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestReconcileDropsMissingAndWritesBack(t *testing.T) {
	ctx := context.Background()
	store := newStore(t,
		domain.LineItem{ProductID: "A", Size: "M", Quantity: 2},
		domain.LineItem{ProductID: "B", Size: "L", Quantity: 1},
	)
	catalog := &stubCatalog{products: map[domain.ProductID]domain.Product{
		"A": {ID: "A", Name: "Cap", Price: price("100.00"), StockQuantity: 3},
	}}

	priced, err := New(catalog, nil).Reconcile(ctx, store)
	require.NoError(t, err)

	require.Len(t, priced.Items, 1)
	assert.Equal(t, domain.ProductID("A"), priced.Items[0].ProductID)
	assert.Equal(t, 2, priced.Items[0].Quantity)
	assert.Equal(t, "Cap", priced.Items[0].Name)
	assert.Equal(t, "200.00", priced.Subtotal.StringFixed(2))

	items, err := store.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, domain.LineKey{ProductID: "A", Size: "M"}, items[0].Key())
	assert.Equal(t, 2, items[0].Quantity)
	assert.Equal(t, 1, store.dropCalls)
}

func TestReconcileEmptyCartMakesNoLookups(t *testing.T) {
	store := newStore(t)
	catalog := &stubCatalog{}

	priced, err := New(catalog, nil).Reconcile(context.Background(), store)
	require.NoError(t, err)
	assert.Empty(t, priced.Items)
	assert.NotNil(t, priced.Items)
	assert.True(t, priced.Subtotal.IsZero())
	assert.Zero(t, catalog.calls.Load())
}

func TestReconcileIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newStore(t,
		domain.LineItem{ProductID: "A", Size: "M", Quantity: 2},
		domain.LineItem{ProductID: "gone", Size: "S", Quantity: 1},
		domain.LineItem{ProductID: "B", Size: "S", Quantity: 3},
	)
	catalog := &stubCatalog{products: map[domain.ProductID]domain.Product{
		"A": {ID: "A", Name: "Cap", Price: price("100")},
		"B": {ID: "B", Name: "Tee", Price: price("49.99")},
	}}
	r := New(catalog, nil)

	first, err := r.Reconcile(ctx, store)
	require.NoError(t, err)
	second, err := r.Reconcile(ctx, store)
	require.NoError(t, err)

	assert.Equal(t, first.LineItems(), second.LineItems())
	assert.True(t, first.Subtotal.Equal(second.Subtotal))
	assert.Equal(t, "349.97", second.Subtotal.String())
	assert.Equal(t, 1, store.dropCalls, "second pass has nothing to drop")
}

func TestReconcileUnreachableCatalogLeavesStore(t *testing.T) {
	ctx := context.Background()
	lines := []domain.LineItem{
		{ProductID: "A", Size: "M", Quantity: 2},
		{ProductID: "B", Size: "L", Quantity: 1},
	}
	store := newStore(t, lines...)
	down := errors.New("connection refused")
	catalog := &stubCatalog{errs: map[domain.ProductID]error{"A": down, "B": down}}

	_, err := New(catalog, nil).Reconcile(ctx, store)
	var recErr *domain.ReconciliationError
	require.ErrorAs(t, err, &recErr)
	assert.ErrorIs(t, err, down)

	items, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Zero(t, store.dropCalls)
}

func TestReconcileAllNotFoundEmptiesCart(t *testing.T) {
	ctx := context.Background()
	store := newStore(t,
		domain.LineItem{ProductID: "A", Size: "M", Quantity: 2},
		domain.LineItem{ProductID: "B", Size: "L", Quantity: 1},
	)

	priced, err := New(&stubCatalog{}, nil).Reconcile(ctx, store)
	require.NoError(t, err)
	assert.Empty(t, priced.Items)

	total, err := store.TotalQuantity(ctx)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestReconcileDropsTransientFailureWhenOthersResolve(t *testing.T) {
	ctx := context.Background()
	store := newStore(t,
		domain.LineItem{ProductID: "A", Size: "M", Quantity: 1},
		domain.LineItem{ProductID: "B", Size: "M", Quantity: 1},
	)
	catalog := &stubCatalog{
		products: map[domain.ProductID]domain.Product{"A": {ID: "A", Price: price("10")}},
		errs:     map[domain.ProductID]error{"B": errors.New("502 bad gateway")},
	}

	priced, err := New(catalog, nil).Reconcile(ctx, store)
	require.NoError(t, err)
	require.Len(t, priced.Items, 1)
	assert.Equal(t, domain.ProductID("A"), priced.Items[0].ProductID)
}

func TestReconcileLookupTimeoutCountsAsFailure(t *testing.T) {
	ctx := context.Background()
	store := newStore(t,
		domain.LineItem{ProductID: "fast", Size: "M", Quantity: 1},
		domain.LineItem{ProductID: "slow", Size: "M", Quantity: 1},
	)
	catalog := &stubCatalog{
		products: map[domain.ProductID]domain.Product{
			"fast": {ID: "fast", Price: price("5")},
			"slow": {ID: "slow", Price: price("5")},
		},
		delay: func(id domain.ProductID) time.Duration {
			if id == "slow" {
				return time.Second
			}
			return 0
		},
	}

	priced, err := New(catalog, nil, WithLookupTimeout(30*time.Millisecond)).Reconcile(ctx, store)
	require.NoError(t, err)
	require.Len(t, priced.Items, 1)
	assert.Equal(t, domain.ProductID("fast"), priced.Items[0].ProductID)
}

func TestReconcileCancelledContextKeepsCart(t *testing.T) {
	store := newStore(t,
		domain.LineItem{ProductID: "A", Size: "M", Quantity: 1},
		domain.LineItem{ProductID: "B", Size: "M", Quantity: 1},
	)
	catalog := &stubCatalog{
		products: map[domain.ProductID]domain.Product{"A": {ID: "A"}, "B": {ID: "B"}},
		delay: func(id domain.ProductID) time.Duration {
			if id == "B" {
				return time.Second
			}
			return 0
		},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := New(catalog, nil).Reconcile(ctx, store)
	var recErr *domain.ReconciliationError
	require.ErrorAs(t, err, &recErr)

	items, err := store.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestReconcileOrderIndependentOfCompletion(t *testing.T) {
	ctx := context.Background()
	var lines []domain.LineItem
	products := map[domain.ProductID]domain.Product{}
	for _, id := range []domain.ProductID{"1", "2", "3", "4", "5", "6"} {
		lines = append(lines, domain.LineItem{ProductID: id, Size: "M", Quantity: 1})
		products[id] = domain.Product{ID: id, Price: price("1")}
	}
	store := newStore(t, lines...)
	rng := rand.New(rand.NewSource(1))
	delays := map[domain.ProductID]time.Duration{}
	for id := range products {
		delays[id] = time.Duration(rng.Intn(20)) * time.Millisecond
	}
	catalog := &stubCatalog{products: products, delay: func(id domain.ProductID) time.Duration { return delays[id] }}

	priced, err := New(catalog, nil, WithMaxConcurrency(3)).Reconcile(ctx, store)
	require.NoError(t, err)
	require.Len(t, priced.Items, 6)
	for i, item := range priced.Items {
		assert.Equal(t, lines[i].ProductID, item.ProductID)
	}
	assert.LessOrEqual(t, catalog.peak.Load(), int32(3))
	assert.Equal(t, "6", priced.Subtotal.String())
}

type failingSnapshot struct{ CartStore }

func (failingSnapshot) Snapshot(context.Context) ([]domain.LineItem, error) {
	return nil, errors.New("redis down")
}

func TestReconcileSnapshotFailure(t *testing.T) {
	_, err := New(&stubCatalog{}, nil).Reconcile(context.Background(), failingSnapshot{})
	var recErr *domain.ReconciliationError
	assert.ErrorAs(t, err, &recErr)
}

func TestReconcileKeepsLinesAddedDuringLookups(t *testing.T) {
	ctx := context.Background()
	store := newStore(t,
		domain.LineItem{ProductID: "A", Size: "M", Quantity: 1},
		domain.LineItem{ProductID: "B", Size: "L", Quantity: 1},
	)
	catalog := &stubCatalog{
		products: map[domain.ProductID]domain.Product{"A": {ID: "A", Price: price("10")}},
		delay:    func(domain.ProductID) time.Duration { return 100 * time.Millisecond },
	}

	done := make(chan error, 1)
	go func() {
		_, err := New(catalog, nil).Reconcile(ctx, store)
		done <- err
	}()
	time.Sleep(30 * time.Millisecond)
	require.NoError(t, store.Add(ctx, "C", "S", 2))
	require.NoError(t, store.ChangeQuantity(ctx, "A", "M", 1))
	require.NoError(t, <-done)

	items, err := store.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, domain.LineKey{ProductID: "A", Size: "M"}, items[0].Key())
	assert.Equal(t, 2, items[0].Quantity)
	assert.Equal(t, domain.LineKey{ProductID: "C", Size: "S"}, items[1].Key())
	assert.Equal(t, 2, items[1].Quantity)
}
