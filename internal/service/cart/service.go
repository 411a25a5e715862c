package cart

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"storefront/internal/domain"
	cartrepo "storefront/internal/repository/cart"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrInvalidProduct  = errors.New("product id required")
)

// Service hands out per-session Stores over a shared persistence backend.
// Mutations for one session are serialised inside this process.
type Service struct {
	repo   cartRepo
	logger *zap.Logger
	now    func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

type cartRepo interface {
	Load(ctx context.Context, sessionID string) ([]domain.LineItem, error)
	Save(ctx context.Context, sessionID string, items []domain.LineItem) error
	Delete(ctx context.Context, sessionID string) error
}

type Option func(*Service)

// WithClock overrides the AddedAt time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(repo cartrepo.Repository, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		repo:   repo,
		logger: logger,
		now:    time.Now,
		locks:  make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the cart bound to sessionID.
func (s *Service) Store(sessionID string) *Store {
	return &Store{svc: s, sessionID: sessionID}
}

func (s *Service) sessionLock(sessionID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[sessionID] = l
	}
	return l
}

// Store is the single owner of one session's cart. Every operation is one
// load-modify-save under the session lock.
type Store struct {
	svc       *Service
	sessionID string
}

func (st *Store) SessionID() string { return st.sessionID }

// Add increments an existing (productID, size) entry or appends a new one.
func (st *Store) Add(ctx context.Context, productID domain.ProductID, size string, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	key := lineKey(productID, size)
	if key.ProductID == "" {
		return ErrInvalidProduct
	}
	return st.mutate(ctx, "add", func(items []domain.LineItem) ([]domain.LineItem, bool) {
		if i := indexOf(items, key); i >= 0 {
			items[i].Quantity += quantity
			return items, true
		}
		return append(items, domain.LineItem{
			ProductID: key.ProductID,
			Size:      key.Size,
			Quantity:  quantity,
			AddedAt:   st.svc.now().UTC(),
		}), true
	})
}

// ChangeQuantity applies delta to an existing entry. An entry whose quantity
// drops to zero or below is removed; an absent entry is left alone.
func (st *Store) ChangeQuantity(ctx context.Context, productID domain.ProductID, size string, delta int) error {
	key := lineKey(productID, size)
	return st.mutate(ctx, "change_quantity", func(items []domain.LineItem) ([]domain.LineItem, bool) {
		i := indexOf(items, key)
		if i < 0 || delta == 0 {
			return items, false
		}
		if next := items[i].Quantity + delta; next > 0 {
			items[i].Quantity = next
			return items, true
		}
		return append(items[:i], items[i+1:]...), true
	})
}

func (st *Store) Remove(ctx context.Context, productID domain.ProductID, size string) error {
	key := lineKey(productID, size)
	return st.mutate(ctx, "remove", func(items []domain.LineItem) ([]domain.LineItem, bool) {
		i := indexOf(items, key)
		if i < 0 {
			return items, false
		}
		return append(items[:i], items[i+1:]...), true
	})
}

// Drop removes every entry whose key is listed, judged against the contents
// at the time of the call. Entries added after a caller's snapshot survive.
func (st *Store) Drop(ctx context.Context, keys []domain.LineKey) error {
	if len(keys) == 0 {
		return nil
	}
	drop := make(map[domain.LineKey]struct{}, len(keys))
	for _, k := range keys {
		drop[lineKey(k.ProductID, k.Size)] = struct{}{}
	}
	return st.mutate(ctx, "drop", func(items []domain.LineItem) ([]domain.LineItem, bool) {
		out := items[:0]
		for _, item := range items {
			if _, ok := drop[item.Key()]; ok {
				continue
			}
			out = append(out, item)
		}
		return out, len(out) != len(items)
	})
}

// Merge appends items after the current contents; entries sharing a key with
// an existing one are folded into it.
func (st *Store) Merge(ctx context.Context, items []domain.LineItem) error {
	if len(items) == 0 {
		return nil
	}
	return st.mutate(ctx, "merge", func(current []domain.LineItem) ([]domain.LineItem, bool) {
		return domain.NormalizeItems(append(current, items...)), true
	})
}

// ReplaceAll overwrites the cart with a normalised copy of items.
func (st *Store) ReplaceAll(ctx context.Context, items []domain.LineItem) error {
	next := domain.NormalizeItems(items)
	return st.mutate(ctx, "replace_all", func([]domain.LineItem) ([]domain.LineItem, bool) {
		return next, true
	})
}

// Clear deletes the persisted cart record.
func (st *Store) Clear(ctx context.Context) error {
	lock := st.svc.sessionLock(st.sessionID)
	lock.Lock()
	defer lock.Unlock()

	if err := st.svc.repo.Delete(ctx, st.sessionID); err != nil {
		return err
	}
	st.svc.logger.Debug("cart cleared", zap.String("session_id", st.sessionID))
	return nil
}

// Snapshot returns a copy of the current items.
func (st *Store) Snapshot(ctx context.Context) ([]domain.LineItem, error) {
	lock := st.svc.sessionLock(st.sessionID)
	lock.Lock()
	defer lock.Unlock()

	items, err := st.svc.repo.Load(ctx, st.sessionID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.LineItem, len(items))
	copy(out, items)
	return out, nil
}

func (st *Store) TotalQuantity(ctx context.Context) (int, error) {
	items, err := st.Snapshot(ctx)
	if err != nil {
		return 0, err
	}
	return domain.TotalQuantity(items), nil
}

func (st *Store) mutate(ctx context.Context, op string, fn func([]domain.LineItem) ([]domain.LineItem, bool)) error {
	lock := st.svc.sessionLock(st.sessionID)
	lock.Lock()
	defer lock.Unlock()

	items, err := st.svc.repo.Load(ctx, st.sessionID)
	if err != nil {
		return err
	}
	current := make([]domain.LineItem, len(items))
	copy(current, items)

	next, changed := fn(current)
	if !changed {
		return nil
	}
	if err := st.svc.repo.Save(ctx, st.sessionID, next); err != nil {
		return err
	}
	st.svc.logger.Debug("cart updated",
		zap.String("op", op),
		zap.String("session_id", st.sessionID),
		zap.Int("lines", len(next)))
	return nil
}

func lineKey(productID domain.ProductID, size string) domain.LineKey {
	return domain.LineKey{
		ProductID: domain.ProductID(strings.TrimSpace(string(productID))),
		Size:      domain.NormalizeSize(size),
	}
}

func indexOf(items []domain.LineItem, key domain.LineKey) int {
	for i, item := range items {
		if item.Key() == key {
			return i
		}
	}
	return -1
}
