// Package events publishes checkout facts for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"storefront/internal/domain"
)

const EventCheckoutCompleted = "CheckoutCompleted"

const (
	ChannelMessage = "message"
	ChannelBackend = "backend"
)

// Envelope wraps every published payload.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

type CheckoutCompleted struct {
	Channel       string             `json:"channel"`
	SessionID     string             `json:"session_id"`
	OrderID       string             `json:"order_id,omitempty"`
	CustomerEmail string             `json:"customer_email"`
	Items         []domain.OrderItem `json:"items"`
	TotalAmount   decimal.Decimal    `json:"total_amount"`
	CompletedAt   time.Time          `json:"completed_at"`
}

// correlationID keys the event: the order id when there is one.
func (e CheckoutCompleted) correlationID() string {
	if e.OrderID != "" {
		return e.OrderID
	}
	return e.SessionID
}

type Publisher interface {
	PublishCheckoutCompleted(ctx context.Context, evt CheckoutCompleted) error
}

func newEnvelope(producer string, evt CheckoutCompleted) (Envelope, error) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode payload: %w", err)
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     EventCheckoutCompleted,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		CorrelationID: evt.correlationID(),
		Payload:       payload,
	}, nil
}

// Nop discards events. Used when no broker is configured.
type Nop struct{}

func (Nop) PublishCheckoutCompleted(context.Context, CheckoutCompleted) error { return nil }
