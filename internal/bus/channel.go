// Package bus provides event bus implementations for run requests and case events.
package bus

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/opensource-finance/lavandowski/internal/domain"
)

// ErrWorkersBusy is returned when every worker queue for a run topic is full.
var ErrWorkersBusy = errors.New("all run workers are busy")

// ChannelBus implements EventBus using Go channels.
// Used by the single-process run command, serve without NATS, and tests.
//
// Event topics fan out to every subscriber. Queued topics (run requests)
// go to exactly one subscriber, rotating between them.
type ChannelBus struct {
	mu         sync.Mutex
	bufferSize int
	topics     map[string]*topicSubscribers
	closed     bool
}

// topicSubscribers keeps registration order so queued topics rotate fairly.
type topicSubscribers struct {
	subs []*channelSubscription
	next int
}

type channelSubscription struct {
	id      string
	topic   string
	handler domain.MessageHandler
	inbox   chan *domain.Message
	ctx     context.Context
	cancel  context.CancelFunc
	bus     *ChannelBus
}

// NewChannelBus creates a new channel-based event bus.
func NewChannelBus(bufferSize int) *ChannelBus {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	return &ChannelBus{
		bufferSize: bufferSize,
		topics:     make(map[string]*topicSubscribers),
	}
}

// Publish hands the message to the topic's subscribers without blocking.
// A fan-out subscriber whose buffer is full misses the message; a queued
// message that no worker can take fails with ErrWorkersBusy.
func (b *ChannelBus) Publish(ctx context.Context, topic string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	ts := b.topics[topic]
	if ts == nil || len(ts.subs) == 0 {
		return nil
	}
	msg := newMessage(ctx, topic, payload)

	if Queued(topic) {
		return ts.dispatchOne(msg)
	}
	for _, sub := range ts.subs {
		if !sub.offer(msg) {
			slog.Warn("subscriber buffer full, dropping event",
				"topic", topic,
				"subscription_id", sub.id,
			)
		}
	}
	return nil
}

func (ts *topicSubscribers) dispatchOne(msg *domain.Message) error {
	n := len(ts.subs)
	for i := 0; i < n; i++ {
		sub := ts.subs[(ts.next+i)%n]
		if sub.offer(msg) {
			ts.next = (ts.next + i + 1) % n
			return nil
		}
	}
	return ErrWorkersBusy
}

func (s *channelSubscription) offer(msg *domain.Message) bool {
	select {
	case s.inbox <- msg:
		return true
	default:
		return false
	}
}

// Subscribe registers a handler for a topic. Messages are handled sequentially per subscription.
func (b *ChannelBus) Subscribe(ctx context.Context, topic string, handler domain.MessageHandler) (domain.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &channelSubscription{
		id:      uuid.New().String(),
		topic:   topic,
		handler: handler,
		inbox:   make(chan *domain.Message, b.bufferSize),
		ctx:     subCtx,
		cancel:  cancel,
		bus:     b,
	}

	ts := b.topics[topic]
	if ts == nil {
		ts = &topicSubscribers{}
		b.topics[topic] = ts
	}
	ts.subs = append(ts.subs, sub)

	go sub.loop()

	return sub, nil
}

func (s *channelSubscription) loop() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case msg := <-s.inbox:
			dispatch(s.ctx, s.handler, msg)
		}
	}
}

// Ping reports ErrClosed after Close.
func (b *ChannelBus) Ping(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	return nil
}

// Close cancels every subscription. Messages still buffered are discarded.
func (b *ChannelBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for _, ts := range b.topics {
		for _, sub := range ts.subs {
			sub.cancel()
		}
	}
	b.topics = make(map[string]*topicSubscribers)
	return nil
}

// Unsubscribe stops receiving messages.
func (s *channelSubscription) Unsubscribe() error {
	s.cancel()

	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	ts := s.bus.topics[s.topic]
	if ts == nil {
		return nil
	}
	for i, sub := range ts.subs {
		if sub.id == s.id {
			ts.subs = append(ts.subs[:i], ts.subs[i+1:]...)
			break
		}
	}
	if ts.next >= len(ts.subs) {
		ts.next = 0
	}
	return nil
}

// Topic returns the subscribed topic.
func (s *channelSubscription) Topic() string {
	return s.topic
}
