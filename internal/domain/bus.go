package domain

import (
	"context"
)

// EventBus defines the interface for event-driven communication.
// Supports Go channels (local) or NATS (production).
type EventBus interface {
	// Publish sends a message to a topic.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe registers a handler for a topic.
	// Returns a subscription that can be used to unsubscribe.
	Subscribe(ctx context.Context, topic string, handler MessageHandler) (Subscription, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// MessageHandler processes incoming messages.
type MessageHandler func(ctx context.Context, msg *Message) error

// Message represents an event message.
type Message struct {
	ID        string            `json:"id"`
	Topic     string            `json:"topic"`
	Payload   []byte            `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	Timestamp int64             `json:"timestamp"`
}

// Subscription represents an active subscription.
type Subscription interface {
	// Unsubscribe stops receiving messages.
	Unsubscribe() error

	// Topic returns the subscribed topic.
	Topic() string
}

// EventBusConfig holds configuration for event bus initialization.
type EventBusConfig struct {
	// Type is the bus type: "channel" or "nats"
	Type string `json:"type" yaml:"type" toml:"type"`

	// Channel settings
	ChannelBufferSize int `json:"channel_buffer_size" yaml:"channel_buffer_size" toml:"channel_buffer_size"`

	// NATS settings
	NATSUrl           string `json:"nats_url" yaml:"nats_url" toml:"nats_url"`
	NATSToken         string `json:"nats_token" yaml:"nats_token" toml:"nats_token"`
	NATSMaxReconnects int    `json:"nats_max_reconnects" yaml:"nats_max_reconnects" toml:"nats_max_reconnects"`
	NATSReconnectWait int    `json:"nats_reconnect_wait" yaml:"nats_reconnect_wait" toml:"nats_reconnect_wait"` // seconds

	// NATSQueueGroup is shared by every serve instance so a run request
	// is executed once per deployment.
	NATSQueueGroup string `json:"nats_queue_group" yaml:"nats_queue_group" toml:"nats_queue_group"`
}

// Standard topic names for the triage pipeline.
const (
	TopicRunRequested  = "lavandowski.run.requested"
	TopicCaseAnalyzed  = "lavandowski.case.analyzed"
	TopicCaseFailed    = "lavandowski.case.failed"
	TopicBatchStarted  = "lavandowski.batch.started"
	TopicBatchComplete = "lavandowski.batch.completed"
)
