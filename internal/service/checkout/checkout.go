// Package checkout turns a reconciled cart into an order hand-off.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"storefront/internal/domain"
	"storefront/internal/events"
	"storefront/internal/messaging"
	"storefront/internal/repository/idempotency"
)

const (
	DefaultSubmitTimeout  = 10 * time.Second
	DefaultCurrencySymbol = "R"
)

// Cart is the part of the cart store checkout touches.
type Cart interface {
	SessionID() string
	Clear(ctx context.Context) error
}

type OrderCreator interface {
	CreateOrder(ctx context.Context, req domain.OrderRequest) (string, error)
}

type Channel interface {
	Handoff(ctx context.Context, destination, text string) (messaging.Handoff, error)
}

// Deduper guards backend submissions keyed by Idempotency-Key. Claim returns
// an error wrapping idempotency.ErrInFlight while another submission holds
// the key.
type Deduper interface {
	Lookup(ctx context.Context, key string) (string, bool, error)
	Claim(ctx context.Context, key string) (string, bool, error)
	Remember(ctx context.Context, key, orderID string) error
	Release(ctx context.Context, key string) error
}

type Settings struct {
	ShopName       string
	CurrencySymbol string
	Destination    string
	SubmitTimeout  time.Duration
}

// MessageReceipt describes a completed message-channel hand-off.
type MessageReceipt struct {
	URL  string
	Text string
}

type Coordinator struct {
	orders    OrderCreator
	channel   Channel
	publisher events.Publisher
	deduper   Deduper
	settings  Settings
	logger    *zap.Logger
	now       func() time.Time
}

type Option func(*Coordinator)

func WithPublisher(p events.Publisher) Option {
	return func(c *Coordinator) { c.publisher = p }
}

func WithDeduper(d Deduper) Option {
	return func(c *Coordinator) { c.deduper = d }
}

func New(orders OrderCreator, channel Channel, settings Settings, logger *zap.Logger, opts ...Option) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if settings.CurrencySymbol == "" {
		settings.CurrencySymbol = DefaultCurrencySymbol
	}
	if settings.SubmitTimeout <= 0 {
		settings.SubmitTimeout = DefaultSubmitTimeout
	}
	c := &Coordinator{
		orders:    orders,
		channel:   channel,
		publisher: events.Nop{},
		settings:  settings,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ValidateCustomer reports every blank field in form order.
func ValidateCustomer(customer domain.Customer) error {
	c := customer.Trimmed()
	var missing []string
	if c.Name == "" {
		missing = append(missing, "name")
	}
	if c.Email == "" {
		missing = append(missing, "email")
	}
	if c.Phone == "" {
		missing = append(missing, "phone")
	}
	if c.Address == "" {
		missing = append(missing, "address")
	}
	if len(missing) > 0 {
		return &domain.ValidationError{Fields: missing}
	}
	return nil
}

// BuildOrderRequest validates the customer, then the items, and computes the
// total once.
func BuildOrderRequest(items []domain.ResolvedItem, customer domain.Customer) (domain.OrderRequest, error) {
	if err := ValidateCustomer(customer); err != nil {
		return domain.OrderRequest{}, err
	}
	if len(items) == 0 {
		return domain.OrderRequest{}, domain.ErrEmptyCart
	}

	req := domain.OrderRequest{
		Customer:    customer.Trimmed(),
		Items:       make([]domain.OrderItem, 0, len(items)),
		TotalAmount: decimal.Zero,
	}
	for _, item := range items {
		line := domain.OrderItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Size:      item.Size,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		}
		req.Items = append(req.Items, line)
		req.TotalAmount = req.TotalAmount.Add(line.LineTotal())
	}
	return req, nil
}

// FormatOrderMessage renders the human-readable order summary.
func FormatOrderMessage(req domain.OrderRequest, shopName, currency string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "NEW ORDER from %s\n\n", shopName)
	fmt.Fprintf(&b, "Customer: %s\n", req.Customer.Name)
	fmt.Fprintf(&b, "Email: %s\n", req.Customer.Email)
	fmt.Fprintf(&b, "Phone: %s\n\n", req.Customer.Phone)
	b.WriteString("ITEMS:\n")
	for _, item := range req.Items {
		fmt.Fprintf(&b, "- %s (Size: %s) x%d - %s\n",
			item.Name, item.Size, item.Quantity, domain.FormatMoney(currency, item.LineTotal()))
	}
	fmt.Fprintf(&b, "\nTOTAL: %s\n\n", domain.FormatMoney(currency, req.TotalAmount))
	fmt.Fprintf(&b, "DELIVERY ADDRESS:\n%s\n\n", req.Customer.Address)
	b.WriteString("Please confirm this order and provide payment instructions.")
	return b.String()
}

// SubmitViaMessageChannel hands the summary to the chat channel and clears
// the cart as soon as the hand-off succeeds. Delivery itself happens on the
// shopper's device and is not confirmed.
func (c *Coordinator) SubmitViaMessageChannel(ctx context.Context, cart Cart, req domain.OrderRequest) (MessageReceipt, error) {
	if len(req.Items) == 0 {
		return MessageReceipt{}, domain.ErrEmptyCart
	}
	text := FormatOrderMessage(req, c.settings.ShopName, c.settings.CurrencySymbol)
	handoff, err := c.channel.Handoff(ctx, c.settings.Destination, text)
	if err != nil {
		return MessageReceipt{}, fmt.Errorf("message hand-off: %w", err)
	}

	c.clear(ctx, cart, events.ChannelMessage)
	c.publish(ctx, cart, events.ChannelMessage, "", req)
	c.logger.Info("checkout handed off to message channel",
		zap.String("session_id", cart.SessionID()),
		zap.Int("items", len(req.Items)),
		zap.String("total", req.TotalAmount.StringFixed(2)))
	return MessageReceipt{URL: handoff.URL, Text: text}, nil
}

// SubmitViaBackend creates the order on the backend. The cart is cleared only
// after the backend returns an order id. A non-empty idempotencyKey makes a
// repeated submission return the original order id.
func (c *Coordinator) SubmitViaBackend(ctx context.Context, cart Cart, req domain.OrderRequest, idempotencyKey string) (string, error) {
	if len(req.Items) == 0 {
		return "", domain.ErrEmptyCart
	}

	dedupeKey := ""
	if key := strings.TrimSpace(idempotencyKey); key != "" && c.deduper != nil {
		dedupeKey = scopedKey(cart.SessionID(), key)
		id, claimed, err := c.deduper.Claim(ctx, dedupeKey)
		switch {
		case errors.Is(err, idempotency.ErrInFlight):
			return "", fmt.Errorf("submit order: %w", err)
		case err != nil:
			c.logger.Warn("idempotency claim failed", zap.Error(err))
			dedupeKey = ""
		case !claimed:
			c.logger.Info("duplicate order submission", zap.String("order_id", id))
			c.clear(ctx, cart, events.ChannelBackend)
			return id, nil
		}
	}

	sctx, cancel := context.WithTimeout(ctx, c.settings.SubmitTimeout)
	defer cancel()
	orderID, err := c.orders.CreateOrder(sctx, req)
	if err == nil && strings.TrimSpace(orderID) == "" {
		err = errors.New("backend response carried no order id")
	}
	if err != nil {
		c.logger.Error("order submission failed",
			zap.String("session_id", cart.SessionID()),
			zap.Error(err))
		if dedupeKey != "" {
			if rerr := c.deduper.Release(ctx, dedupeKey); rerr != nil {
				c.logger.Warn("idempotency release failed", zap.Error(rerr))
			}
		}
		return "", &domain.OrderSubmissionError{Err: err}
	}

	if dedupeKey != "" {
		if err := c.deduper.Remember(ctx, dedupeKey, orderID); err != nil {
			c.logger.Warn("idempotency remember failed", zap.Error(err))
		}
	}
	c.clear(ctx, cart, events.ChannelBackend)
	c.publish(ctx, cart, events.ChannelBackend, orderID, req)
	c.logger.Info("order created",
		zap.String("session_id", cart.SessionID()),
		zap.String("order_id", orderID),
		zap.String("total", req.TotalAmount.StringFixed(2)))
	return orderID, nil
}

// ReplayedOrder reports the order a completed submission with the same key
// produced for this cart's session.
func (c *Coordinator) ReplayedOrder(ctx context.Context, cart Cart, idempotencyKey string) (string, bool) {
	key := strings.TrimSpace(idempotencyKey)
	if key == "" || c.deduper == nil {
		return "", false
	}
	id, ok, err := c.deduper.Lookup(ctx, scopedKey(cart.SessionID(), key))
	if err != nil {
		c.logger.Warn("idempotency lookup failed", zap.Error(err))
		return "", false
	}
	return id, ok
}

func scopedKey(sessionID, key string) string {
	return sessionID + ":" + key
}

// clear failures are logged only: the order already exists and reporting a
// failure would invite a duplicate submission.
func (c *Coordinator) clear(ctx context.Context, cart Cart, channel string) {
	if err := cart.Clear(ctx); err != nil {
		c.logger.Error("clear cart after checkout",
			zap.String("channel", channel),
			zap.String("session_id", cart.SessionID()),
			zap.Error(err))
	}
}

func (c *Coordinator) publish(ctx context.Context, cart Cart, channel, orderID string, req domain.OrderRequest) {
	evt := events.CheckoutCompleted{
		Channel:       channel,
		SessionID:     cart.SessionID(),
		OrderID:       orderID,
		CustomerEmail: req.Customer.Email,
		Items:         req.Items,
		TotalAmount:   req.TotalAmount,
		CompletedAt:   c.now().UTC(),
	}
	if err := c.publisher.PublishCheckoutCompleted(ctx, evt); err != nil {
		c.logger.Warn("publish checkout event", zap.String("channel", channel), zap.Error(err))
	}
}
