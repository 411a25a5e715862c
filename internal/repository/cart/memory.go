package cart

import (
	"context"
	"sync"

	"storefront/internal/domain"
)

// Memory keeps carts in process memory.
type Memory struct {
	mu    sync.RWMutex
	carts map[string][]domain.LineItem
}

func NewMemory() *Memory {
	return &Memory{carts: make(map[string][]domain.LineItem)}
}

func (m *Memory) Load(_ context.Context, sessionID string) ([]domain.LineItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	items, ok := m.carts[sessionID]
	if !ok {
		return []domain.LineItem{}, nil
	}
	return cloneItems(items), nil
}

func (m *Memory) Save(_ context.Context, sessionID string, items []domain.LineItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[sessionID] = cloneItems(items)
	return nil
}

func (m *Memory) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, sessionID)
	return nil
}

// Exists reports whether a record is stored for the session.
func (m *Memory) Exists(sessionID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.carts[sessionID]
	return ok
}
