// Package bootstrap opens the configured backing stores for the binaries.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"storefront/internal/config"
	"storefront/internal/db"
	"storefront/internal/migrate"
	cartrepo "storefront/internal/repository/cart"
	"storefront/internal/repository/idempotency"
)

// Stores holds the opened backends. Close releases every connection.
type Stores struct {
	Carts       cartrepo.Repository
	Idempotency idempotency.Store
	// Ready is nil for the in-memory cart store.
	Ready interface {
		Ping(ctx context.Context) error
	}

	closers []func()
}

func (s *Stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// Open connects the cart store chosen by CART_STORE and the idempotency store.
func Open(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Stores, error) {
	s := &Stores{}
	var rdb *redis.Client
	redisClient := func() (*redis.Client, error) {
		if rdb != nil {
			return rdb, nil
		}
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			_ = rdb.Close()
			rdb = nil
			return nil, fmt.Errorf("ping redis %s: %w", cfg.RedisAddr, err)
		}
		c := rdb
		s.closers = append(s.closers, func() { _ = c.Close() })
		return rdb, nil
	}

	switch cfg.CartStore {
	case config.CartStoreMemory:
		s.Carts = cartrepo.NewMemory()
	case config.CartStoreFile:
		repo, err := cartrepo.NewFile(cfg.CartFileDir, logger)
		if err != nil {
			return nil, err
		}
		s.Carts, s.Ready = repo, repo
	case config.CartStoreRedis:
		client, err := redisClient()
		if err != nil {
			return nil, err
		}
		repo := cartrepo.NewRedis(client, cfg.CartTTL, logger)
		s.Carts, s.Ready = repo, repo
	case config.CartStorePostgres:
		pool, err := db.Connect(ctx, cfg.DBConnString)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		s.closers = append(s.closers, pool.Close)
		if err := migrate.Apply(ctx, pool); err != nil {
			s.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
		repo := cartrepo.NewPostgres(pool, logger)
		s.Carts, s.Ready = repo, repo
	case config.CartStoreMongo:
		database, err := cartrepo.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() {
			dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = database.Client().Disconnect(dctx)
		})
		repo := cartrepo.NewMongo(database, logger)
		s.Carts, s.Ready = repo, repo
	default:
		return nil, fmt.Errorf("unknown cart store %q", cfg.CartStore)
	}

	switch cfg.IdempotencyStore {
	case config.CartStoreRedis:
		client, err := redisClient()
		if err != nil {
			s.Close()
			return nil, err
		}
		s.Idempotency = idempotency.NewRedis(client, idempotency.DefaultTTL)
	default:
		s.Idempotency = idempotency.NewMemory(idempotency.DefaultTTL)
	}

	logger.Info("stores opened",
		zap.String("cart_store", cfg.CartStore),
		zap.String("idempotency_store", cfg.IdempotencyStore))
	return s, nil
}
