package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	DefaultTopic   = "order-placed"
	DefaultGroupID = "storefront-consumer"

	readErrorBackoff = time.Second
	maxRetryBackoff  = 30 * time.Second
)

var ErrInvalidEvent = errors.New("invalid order event")

// OrderPlacedEvent is published by the backend for every accepted order.
type OrderPlacedEvent struct {
	UserID    string `json:"user_id"`
	CartID    string `json:"cart_id"`
	OrderCode string `json:"order_code"`
}

// CartResetter empties a user's cart if it is still the one the order was placed from.
type CartResetter interface {
	ResetCartIfCurrent(ctx context.Context, userID, cartID string) (bool, error)
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Config struct {
	Brokers []string
	Topic   string
	GroupID string
}

// Poller resets carts for orders placed through other channels. An offset is committed
// only after its event was handled, so a failed reset is retried rather than dropped.
type Poller struct {
	reader   messageReader
	resetter CartResetter
	logger   *zap.Logger
	backoff  time.Duration
}

func NewPoller(cfg Config, resetter CartResetter, logger *zap.Logger) *Poller {
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.GroupID == "" {
		cfg.GroupID = DefaultGroupID
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MaxBytes: 10e6, // 10MB
	})
	return &Poller{reader: reader, resetter: resetter, logger: logger, backoff: readErrorBackoff}
}

// Run consumes events until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		m, err := p.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Warn("error fetching message", zap.Error(err))
			if !p.wait(ctx, p.backoff) {
				return
			}
			continue
		}
		if !p.process(ctx, m) {
			return
		}
		if err := p.reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
			p.logger.Warn("error committing offset", zap.Int64("offset", m.Offset), zap.Error(err))
		}
	}
}

// process handles m, retrying with growing backoff until it succeeds or the event is
// found invalid. It returns false if ctx ended first.
func (p *Poller) process(ctx context.Context, m kafka.Message) bool {
	backoff := p.backoff
	for {
		err := p.handleMessage(ctx, m)
		if err == nil {
			return true
		}
		if errors.Is(err, ErrInvalidEvent) {
			p.logger.Error("skipping invalid order event",
				zap.Int64("offset", m.Offset),
				zap.Int("partition", m.Partition),
				zap.Error(err))
			return true
		}
		p.logger.Warn("failed to handle order event, retrying",
			zap.Int64("offset", m.Offset),
			zap.Int("partition", m.Partition),
			zap.Duration("backoff", backoff),
			zap.Error(err))
		if !p.wait(ctx, backoff) {
			return false
		}
		backoff = min(backoff*2, maxRetryBackoff)
	}
}

func (p *Poller) wait(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func (p *Poller) Close() {
	if err := p.reader.Close(); err != nil {
		p.logger.Warn("error closing reader", zap.Error(err))
	}
}

func (p *Poller) handleMessage(ctx context.Context, m kafka.Message) error {
	var event OrderPlacedEvent
	if err := json.Unmarshal(m.Value, &event); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if event.UserID == "" {
		return fmt.Errorf("%w: missing user_id", ErrInvalidEvent)
	}

	reset, err := p.resetter.ResetCartIfCurrent(ctx, event.UserID, event.CartID)
	if err != nil {
		return fmt.Errorf("reset cart for %s: %w", event.UserID, err)
	}
	p.logger.Info("order event processed",
		zap.String("user_id", event.UserID),
		zap.String("cart_id", event.CartID),
		zap.String("order_code", event.OrderCode),
		zap.Bool("cart_reset", reset))
	return nil
}
