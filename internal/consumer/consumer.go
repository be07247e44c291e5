// Package consumer checks out carts when the order service reports a placed order.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"storefront-cart/internal/domain"
	"storefront-cart/internal/events"

	"github.com/cenkalti/backoff/v5"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

type cartCheckout interface {
	CheckoutCart(ctx context.Context, userID string) error
}

// Consumer reads order events and checks out the ordering user's cart. A
// message is committed once it has been handled or found unusable. A message
// whose handling fails is retried in place: no later message of the stream is
// fetched or committed until it succeeds, because a commit covers every earlier
// offset of the partition.
type Consumer struct {
	reader      messageReader
	carts       cartCheckout
	logger      *zap.Logger
	maxAttempts uint
	newBackOff  func() backoff.BackOff
}

type Option func(*Consumer)

func WithMaxAttempts(n int) Option {
	return func(c *Consumer) {
		if n > 0 {
			c.maxAttempts = uint(n)
		}
	}
}

func WithBackOff(fn func() backoff.BackOff) Option {
	return func(c *Consumer) { c.newBackOff = fn }
}

func New(reader messageReader, carts cartCheckout, logger *zap.Logger, opts ...Option) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Consumer{
		reader:      reader,
		carts:       carts,
		logger:      logger,
		maxAttempts: 5,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 100 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			return b
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewKafkaReader builds a consumer-group reader. Offsets are committed
// explicitly by Run.
func NewKafkaReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 1 << 20,
		MaxWait:  500 * time.Millisecond,
	})
}

// Run consumes until ctx is cancelled. It returns nil on cancellation.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("consumer started")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopped")
				return nil
			}
			c.logger.Warn("fetch message failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		if !c.process(ctx, msg) {
			c.logger.Info("consumer stopped")
			return nil
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Warn("commit failed", zap.Int64("offset", msg.Offset), zap.Error(err))
		}
	}
}

// process handles msg until it succeeds. It returns false once ctx is done.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) bool {
	b := c.newBackOff()
	for {
		err := c.Handle(ctx, msg)
		if err == nil {
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		wait := b.NextBackOff()
		if wait == backoff.Stop {
			wait = time.Second
		}
		c.logger.Error("order event not handled",
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Duration("retry_in", wait),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(wait):
		}
	}
}

// Handle processes one message. A nil return means the message may be committed.
func (c *Consumer) Handle(ctx context.Context, msg kafka.Message) error {
	eventType := events.Header(msg.Headers, events.HeaderEventType)
	if events.Type(eventType) != events.OrderPlaced {
		c.logger.Debug("skipping event", zap.String("event_type", eventType))
		return nil
	}

	var evt events.OrderPlacedEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		c.logger.Warn("dropping malformed order event", zap.Int64("offset", msg.Offset), zap.Error(err))
		return nil
	}

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := c.carts.CheckoutCart(ctx, evt.UserID)
		if err == nil || errors.Is(err, domain.ErrInternal) {
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	},
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(c.maxAttempts),
	)
	switch {
	case err == nil:
		c.logger.Info("cart checked out",
			zap.String("order_id", evt.OrderID),
			zap.String("user_id", evt.UserID),
			zap.Int("attempts", attempt),
		)
		return nil
	case errors.Is(err, domain.ErrInternal), ctx.Err() != nil:
		return err
	default:
		// The event can never succeed, e.g. a malformed user id.
		c.logger.Warn("dropping order event",
			zap.String("order_id", evt.OrderID),
			zap.String("user_id", evt.UserID),
			zap.Error(err),
		)
		return nil
	}
}
