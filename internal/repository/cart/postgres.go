package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"storefront/internal/domain"
)

// Postgres stores each cart as a JSONB document in the carts table.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) *Postgres {
	return &Postgres{pool: pool, logger: orNop(logger)}
}

func (r *Postgres) Load(ctx context.Context, sessionID string) ([]domain.LineItem, error) {
	const q = `SELECT items FROM carts WHERE session_id = $1`
	var data []byte
	if err := r.pool.QueryRow(ctx, q, sessionID).Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return []domain.LineItem{}, nil
		}
		return nil, fmt.Errorf("load cart: %w", err)
	}
	return decodeOrEmpty(r.logger, "postgres", sessionID, data), nil
}

func (r *Postgres) Save(ctx context.Context, sessionID string, items []domain.LineItem) error {
	const q = `
INSERT INTO carts (session_id, items, updated_at)
VALUES ($1, $2::jsonb, now())
ON CONFLICT (session_id) DO UPDATE
SET items = EXCLUDED.items,
    updated_at = EXCLUDED.updated_at
`
	data, err := encodeItems(items)
	if err != nil {
		return err
	}
	if _, err := r.pool.Exec(ctx, q, sessionID, string(data)); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

func (r *Postgres) Delete(ctx context.Context, sessionID string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM carts WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	return nil
}

func (r *Postgres) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
