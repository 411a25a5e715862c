package cart

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
	"storefront/internal/domain"
)

// Repository persists one cart per session. Load returns an empty cart when
// nothing is stored or the stored record cannot be decoded.
type Repository interface {
	Load(ctx context.Context, sessionID string) ([]domain.LineItem, error)
	Save(ctx context.Context, sessionID string, items []domain.LineItem) error
	Delete(ctx context.Context, sessionID string) error
}

func encodeItems(items []domain.LineItem) ([]byte, error) {
	if items == nil {
		items = []domain.LineItem{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encode cart: %w", err)
	}
	return data, nil
}

func decodeItems(data []byte) ([]domain.LineItem, error) {
	var items []domain.LineItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	return domain.NormalizeItems(items), nil
}

// decodeOrEmpty turns a corrupt record into an empty cart and logs it.
func decodeOrEmpty(logger *zap.Logger, backend, sessionID string, data []byte) []domain.LineItem {
	items, err := decodeItems(data)
	if err != nil {
		logger.Warn("cart store: corrupt cart treated as empty",
			zap.String("backend", backend),
			zap.String("session_id", sessionID),
			zap.Error(err))
		return []domain.LineItem{}
	}
	return items
}

func cloneItems(items []domain.LineItem) []domain.LineItem {
	out := make([]domain.LineItem, len(items))
	copy(out, items)
	return out
}

func orNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
