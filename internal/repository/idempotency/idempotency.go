// Package idempotency remembers which order an Idempotency-Key produced.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultTTL = 24 * time.Hour
	// ClaimTTL bounds how long an unfinished submission holds its key.
	ClaimTTL = time.Minute
)

const keyOrderCreate = "idem:order:create:%s"

// pendingMarker is stored under a claimed key until the order id is known.
const pendingMarker = "pending"

// ErrInFlight reports that another submission holds the key.
var ErrInFlight = errors.New("submission with this idempotency key is in progress")

type Store interface {
	// Lookup returns the order id of a completed submission.
	Lookup(ctx context.Context, key string) (orderID string, ok bool, err error)
	// Claim reserves key for a new submission. When the key already
	// completed it returns that order id with claimed false; when another
	// submission holds it, ErrInFlight.
	Claim(ctx context.Context, key string) (orderID string, claimed bool, err error)
	Remember(ctx context.Context, key, orderID string) error
	// Release frees a claimed key after a failed submission.
	Release(ctx context.Context, key string) error
}

type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) Lookup(ctx context.Context, key string) (string, bool, error) {
	id, err := r.client.Get(ctx, fmt.Sprintf(keyOrderCreate, key)).Result()
	if errors.Is(err, redis.Nil) || id == pendingMarker {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get failed: %w", err)
	}
	return id, true, nil
}

func (r *Redis) Claim(ctx context.Context, key string) (string, bool, error) {
	k := fmt.Sprintf(keyOrderCreate, key)
	// Two attempts: the holder's claim may expire between SETNX and GET.
	for attempt := 0; attempt < 2; attempt++ {
		ok, err := r.client.SetNX(ctx, k, pendingMarker, ClaimTTL).Result()
		if err != nil {
			return "", false, fmt.Errorf("redis setnx failed: %w", err)
		}
		if ok {
			return "", true, nil
		}
		id, err := r.client.Get(ctx, k).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return "", false, fmt.Errorf("redis get failed: %w", err)
		}
		if id == pendingMarker {
			return "", false, ErrInFlight
		}
		return id, false, nil
	}
	return "", false, ErrInFlight
}

func (r *Redis) Remember(ctx context.Context, key, orderID string) error {
	if err := r.client.Set(ctx, fmt.Sprintf(keyOrderCreate, key), orderID, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *Redis) Release(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, fmt.Sprintf(keyOrderCreate, key)).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}

type memoryEntry struct {
	orderID string
	pending bool
	expires time.Time
}

type Memory struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{ttl: ttl, now: time.Now, entries: make(map[string]memoryEntry)}
}

// live returns the unexpired entry for key. Callers hold m.mu.
func (m *Memory) live(key string) (memoryEntry, bool) {
	e, ok := m.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if m.now().After(e.expires) {
		delete(m.entries, key)
		return memoryEntry{}, false
	}
	return e, true
}

func (m *Memory) Lookup(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(key)
	if !ok || e.pending {
		return "", false, nil
	}
	return e.orderID, true, nil
}

func (m *Memory) Claim(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.live(key); ok {
		if e.pending {
			return "", false, ErrInFlight
		}
		return e.orderID, false, nil
	}
	m.entries[key] = memoryEntry{pending: true, expires: m.now().Add(ClaimTTL)}
	return "", true, nil
}

func (m *Memory) Remember(_ context.Context, key, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{orderID: orderID, expires: m.now().Add(m.ttl)}
	return nil
}

func (m *Memory) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}
