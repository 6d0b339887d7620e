package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/feral-file/ff-mint-reconciler/internal/adapter"
	"github.com/feral-file/ff-mint-reconciler/internal/domain"
	"github.com/feral-file/ff-mint-reconciler/internal/logger"
	"github.com/feral-file/ff-mint-reconciler/internal/metrics"
	"github.com/feral-file/ff-mint-reconciler/internal/minting"
	"github.com/feral-file/ff-mint-reconciler/internal/store"
	"github.com/feral-file/ff-mint-reconciler/internal/webhook"
)

// Consumer defines the interface for the reconciliation event consumer
type Consumer interface {
	// Run consumes events until ctx is canceled
	Run(ctx context.Context) error
	// Close closes the consumer and cleans up resources
	Close()
}

type consumer struct {
	nc      adapter.NatsConn
	js      adapter.JetStream
	store   store.Store
	metrics *metrics.Metrics
	config  Config
}

// NewConsumer creates a consumer applying webhook events to the store
func NewConsumer(cfg Config, nc adapter.NatsConn, js adapter.JetStream, st store.Store, m *metrics.Metrics) Consumer {
	return &consumer{
		nc:      nc,
		js:      js,
		store:   st,
		metrics: m,
		config:  cfg,
	}
}

// Run binds the durable consumer and processes messages until ctx is canceled
func (c *consumer) Run(ctx context.Context) error {
	logger.InfoCtx(ctx, "Starting reconciliation consumer",
		zap.String("stream", c.config.StreamName),
		zap.String("consumer", c.config.ConsumerName),
	)

	if err := c.js.EnsureStream(ctx, c.config.StreamName, []string{SUBJECT_PREFIX + ".>"}); err != nil {
		return fmt.Errorf("failed to ensure stream %s: %w", c.config.StreamName, err)
	}

	consumerConfig := jetstream.ConsumerConfig{
		Durable:       c.config.ConsumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       c.config.AckWait,
		MaxDeliver:    c.config.MaxDeliver,
		FilterSubject: SUBJECT_PREFIX + ".>",
	}

	stop, err := c.js.Consume(ctx, c.config.StreamName, consumerConfig, func(msg adapter.Message) {
		c.handleMessage(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("failed to consume: %w", err)
	}
	defer stop()

	logger.InfoCtx(ctx, "Started consuming messages")

	<-ctx.Done()
	logger.InfoCtx(ctx, "Shutting down reconciliation consumer")
	return ctx.Err()
}

// handleMessage processes a single message. Malformed events are terminated since a
// redelivery cannot fix them; store failures are negatively acknowledged for a retry.
func (c *consumer) handleMessage(ctx context.Context, msg adapter.Message) {
	var deliveries uint64
	if md, err := msg.Metadata(); err == nil && md != nil {
		deliveries = md.NumDelivered
	}

	var event webhook.Event
	if err := json.Unmarshal(msg.Data(), &event); err != nil {
		logger.ErrorCtx(ctx, fmt.Errorf("failed to unmarshal event: %w", err), zap.String("subject", msg.Subject()))
		c.metrics.Event(metrics.EventMalformed)
		if err := msg.Term(); err != nil {
			logger.ErrorCtx(ctx, fmt.Errorf("failed to terminate message: %w", err))
		}
		return
	}

	logger.DebugCtx(ctx, "Received event",
		zap.String("event_id", event.EventID),
		zap.String("event_name", event.EventName),
		zap.Uint64("delivery_count", deliveries),
	)

	result, err := minting.ProcessMint(ctx, c.store, event)
	switch {
	case errors.Is(err, domain.ErrMalformedWebhookEvent):
		logger.ErrorCtx(ctx, err, zap.String("event_id", event.EventID))
		c.metrics.Event(metrics.EventMalformed)
		if err := msg.Term(); err != nil {
			logger.ErrorCtx(ctx, fmt.Errorf("failed to terminate message: %w", err))
		}

	case err != nil:
		logger.ErrorCtx(ctx, err,
			zap.String("event_id", event.EventID),
			zap.Uint64("delivery_count", deliveries),
		)
		if err := msg.Nak(); err != nil {
			logger.ErrorCtx(ctx, fmt.Errorf("failed to NAK message: %w", err))
		}

	default:
		c.metrics.Event(string(result))
		if err := msg.Ack(); err != nil {
			logger.ErrorCtx(ctx, fmt.Errorf("failed to ACK message: %w", err))
		}
	}
}

// Close closes the NATS connection
func (c *consumer) Close() {
	if c.nc == nil {
		return
	}

	c.nc.Close()
}
