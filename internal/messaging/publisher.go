package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/feral-file/ff-mint-reconciler/internal/adapter"
	"github.com/feral-file/ff-mint-reconciler/internal/logger"
	"github.com/feral-file/ff-mint-reconciler/internal/webhook"
)

// Publisher defines the interface for handing webhook events over to the reconciler
type Publisher interface {
	// PublishEvent publishes a webhook event to the message broker
	PublishEvent(ctx context.Context, event *webhook.Event) error
	// Close closes the connection
	Close()
}

type publisher struct {
	nc adapter.NatsConn
	js adapter.JetStream
}

// NewPublisher creates a new NATS JetStream publisher and makes sure the stream exists
func NewPublisher(ctx context.Context, cfg Config, nc adapter.NatsConn, js adapter.JetStream) (Publisher, error) {
	if err := js.EnsureStream(ctx, cfg.StreamName, []string{SUBJECT_PREFIX + ".>"}); err != nil {
		return nil, fmt.Errorf("failed to ensure stream %s: %w", cfg.StreamName, err)
	}

	return &publisher{nc: nc, js: js}, nil
}

// PublishEvent publishes an event with its id as the message id, so the server drops
// redeliveries of the same webhook inside the stream's duplicate window
func (p *publisher) PublishEvent(ctx context.Context, event *webhook.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	subject := Subject(event.EventName)
	ack, err := p.js.Publish(ctx, subject, data, jetstream.WithMsgID(event.EventID))
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	logger.DebugCtx(ctx, "Published webhook event",
		zap.String("subject", subject),
		zap.String("event_id", event.EventID),
		zap.Bool("duplicate", ack != nil && ack.Duplicate),
	)

	return nil
}

// Close drains and closes the NATS connection
func (p *publisher) Close() {
	if p.nc == nil {
		return
	}

	if err := p.nc.Drain(); err != nil {
		logger.Error(err, zap.String("message", "Failed to drain NATS connection"))
		p.nc.Close()
	}
}
