package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/lavandowski/internal/domain"
)

// ErrClosed is returned when publishing to or subscribing on a closed bus.
var ErrClosed = errors.New("bus is closed")

// DefaultQueueGroup is the NATS queue group shared by run workers.
const DefaultQueueGroup = "lavandowski-workers"

// Queued reports whether a topic is work to be taken by a single subscriber.
// Other topics are events fanned out to every subscriber.
func Queued(topic string) bool {
	return topic == domain.TopicRunRequested
}

// New creates a new event bus based on configuration.
// "channel" returns an in-process ChannelBus; "nats" returns a NATSBus.
func New(cfg domain.EventBusConfig) (domain.EventBus, error) {
	switch cfg.Type {
	case "channel":
		return NewChannelBus(cfg.ChannelBufferSize), nil

	case "nats":
		b, err := NewNATSBus(cfg)
		if err != nil {
			return nil, err
		}
		return b, nil

	default:
		return nil, fmt.Errorf("unsupported event bus type: %s", cfg.Type)
	}
}

type metadataKey struct{}

// WithMetadata returns a context whose published messages carry key=value.
func WithMetadata(ctx context.Context, key, value string) context.Context {
	prev, _ := ctx.Value(metadataKey{}).(map[string]string)
	md := make(map[string]string, len(prev)+1)
	for k, v := range prev {
		md[k] = v
	}
	md[key] = value
	return context.WithValue(ctx, metadataKey{}, md)
}

// newMessage builds the envelope for payload, copying metadata from ctx.
func newMessage(ctx context.Context, topic string, payload []byte) *domain.Message {
	md := make(map[string]string)
	if prev, ok := ctx.Value(metadataKey{}).(map[string]string); ok {
		for k, v := range prev {
			md[k] = v
		}
	}
	return &domain.Message{
		ID:        uuid.New().String(),
		Topic:     topic,
		Payload:   payload,
		Metadata:  md,
		Timestamp: time.Now().UnixNano(),
	}
}

// dispatch runs handler, logging its error. A panicking handler is logged
// and the subscription keeps consuming.
func dispatch(ctx context.Context, handler domain.MessageHandler, msg *domain.Message) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("handler panicked",
				"topic", msg.Topic,
				"message_id", msg.ID,
				"panic", rec,
			)
		}
	}()
	if err := handler(ctx, msg); err != nil {
		slog.Error("handler error",
			"topic", msg.Topic,
			"message_id", msg.ID,
			"error", err,
		)
	}
}

// PublishJSON encodes v and publishes it on topic.
func PublishJSON(ctx context.Context, b domain.EventBus, topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", topic, err)
	}
	return b.Publish(ctx, topic, payload)
}

// Decode unmarshals a message payload into v.
func Decode(msg *domain.Message, v any) error {
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		return fmt.Errorf("failed to decode %s event: %w", msg.Topic, err)
	}
	return nil
}
