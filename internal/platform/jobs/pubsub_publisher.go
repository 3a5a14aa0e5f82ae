package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// PriceRefreshMessage is published after a successful market-data refresh so
// storefront components rendering cached prices can invalidate them.
type PriceRefreshMessage struct {
	EventID   string    `json:"eventId"`
	Provider  string    `json:"provider"`
	Value     float64   `json:"value"`
	Source    string    `json:"source"`
	FetchedAt time.Time `json:"fetchedAt"`
	EmittedAt time.Time `json:"emittedAt"`
}

// RefreshPublisher emits market-data refresh events.
type RefreshPublisher interface {
	PublishPriceRefresh(ctx context.Context, msg PriceRefreshMessage) error
}

// RefreshPublisherFunc adapts a function to RefreshPublisher.
type RefreshPublisherFunc func(ctx context.Context, msg PriceRefreshMessage) error

// PublishPriceRefresh invokes the wrapped function.
func (f RefreshPublisherFunc) PublishPriceRefresh(ctx context.Context, msg PriceRefreshMessage) error {
	if f == nil {
		return nil
	}
	return f(ctx, msg)
}

// PubSubRefreshPublisher publishes refresh events to a Pub/Sub topic.
type PubSubRefreshPublisher struct {
	topic  *pubsub.Topic
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

// PublisherOption customises PubSubRefreshPublisher behaviour.
type PublisherOption func(*PubSubRefreshPublisher)

// WithPublisherLogger sets the logger used for publish diagnostics.
func WithPublisherLogger(logger *zap.Logger) PublisherOption {
	return func(p *PubSubRefreshPublisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithPublisherClock injects a custom time source (useful for tests).
func WithPublisherClock(now func() time.Time) PublisherOption {
	return func(p *PubSubRefreshPublisher) {
		if now != nil {
			p.now = now
		}
	}
}

// NewPubSubRefreshPublisher constructs a publisher bound to the given topic.
func NewPubSubRefreshPublisher(client *pubsub.Client, topicID string, opts ...PublisherOption) (*PubSubRefreshPublisher, error) {
	if client == nil {
		return nil, errors.New("jobs: pubsub client is required")
	}
	if topicID == "" {
		return nil, errors.New("jobs: topic id is required")
	}

	publisher := &PubSubRefreshPublisher{
		topic:  client.Topic(topicID),
		logger: zap.NewNop(),
		now:    time.Now,
		newID: func() string {
			return ulid.Make().String()
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(publisher)
		}
	}
	return publisher, nil
}

// PublishPriceRefresh publishes the refresh event and waits for the server acknowledgement.
func (p *PubSubRefreshPublisher) PublishPriceRefresh(ctx context.Context, msg PriceRefreshMessage) error {
	if msg.EventID == "" {
		msg.EventID = p.newID()
	}
	if msg.EmittedAt.IsZero() {
		msg.EmittedAt = p.now().UTC()
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("jobs: encode refresh event: %w", err)
	}

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"event":    "market_data.refreshed",
			"provider": msg.Provider,
			"source":   msg.Source,
		},
	})

	id, err := result.Get(ctx)
	if err != nil {
		return fmt.Errorf("jobs: publish refresh event: %w", err)
	}

	p.logger.Debug("refresh event published",
		zap.String("message_id", id),
		zap.String("provider", msg.Provider),
		zap.String("source", msg.Source),
	)
	return nil
}

// Stop flushes outstanding messages. Call during shutdown.
func (p *PubSubRefreshPublisher) Stop() {
	if p != nil && p.topic != nil {
		p.topic.Stop()
	}
}
