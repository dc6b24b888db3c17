package bus

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/JuruSysadmin/JuruConnect-sub001/internal/telemetry"
)

const defaultSubscriberBuffer = 64

// Event is the unit delivered through the broker.
type Event struct {
	Topic       string
	Payload     any
	PublishedAt time.Time
}

// Subscription is one subscriber's handle on a topic.
type Subscription struct {
	id    uuid.UUID
	topic string
	ch    chan Event
}

// Topic returns the topic this subscription is registered on.
func (s *Subscription) Topic() string { return s.topic }

// Events exposes the delivery channel. The channel is closed on unsubscribe.
func (s *Subscription) Events() <-chan Event { return s.ch }

// Broker is a topic-partitioned in-memory publish/subscribe bus. Publishing
// never blocks: each subscriber owns a bounded buffer and a full buffer
// drops the event for that subscriber only.
type Broker struct {
	mu     sync.RWMutex
	topics map[string]map[uuid.UUID]*Subscription
	buffer int
	closed bool
	logger zerolog.Logger
}

// NewBroker constructs a broker. bufferSize bounds each subscriber queue.
func NewBroker(bufferSize int, logger zerolog.Logger) *Broker {
	if bufferSize <= 0 {
		bufferSize = defaultSubscriberBuffer
	}
	return &Broker{
		topics: make(map[string]map[uuid.UUID]*Subscription),
		buffer: bufferSize,
		logger: logger.With().Str("component", "broker").Logger(),
	}
}

// Subscribe registers a new subscription on topic. Late joiners receive no
// backlog: only events published after registration are delivered.
func (b *Broker) Subscribe(topic string) *Subscription {
	sub := &Subscription{
		id:    uuid.New(),
		topic: topic,
		ch:    make(chan Event, b.buffer),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(sub.ch)
		return sub
	}

	subs, ok := b.topics[topic]
	if !ok {
		subs = make(map[uuid.UUID]*Subscription)
		b.topics[topic] = subs
	}
	subs[sub.id] = sub

	telemetry.Subscribers.WithLabelValues(topic).Set(float64(len(subs)))
	return sub
}

// Unsubscribe removes a subscription and closes its channel. Calling it
// again for the same subscription is a no-op.
func (b *Broker) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.topics[sub.topic]
	if !ok {
		return
	}
	if _, present := subs[sub.id]; !present {
		return
	}

	delete(subs, sub.id)
	close(sub.ch)
	if len(subs) == 0 {
		delete(b.topics, sub.topic)
	}

	telemetry.Subscribers.WithLabelValues(sub.topic).Set(float64(len(subs)))
}

// Publish delivers payload to every subscriber currently registered on
// topic, in publish order per subscriber. Fire-and-forget: a slow subscriber
// loses events instead of blocking the publisher.
func (b *Broker) Publish(topic string, payload any) {
	evt := Event{Topic: topic, Payload: payload, PublishedAt: time.Now().UTC()}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	telemetry.EventsPublished.WithLabelValues(topic).Inc()

	for _, sub := range b.topics[topic] {
		select {
		case sub.ch <- evt:
		default:
			telemetry.EventsDropped.WithLabelValues(topic).Inc()
			b.logger.Warn().Str("topic", topic).Msg("subscriber buffer full, event dropped")
		}
	}
}

// SubscriberCount reports how many subscribers a topic currently has.
func (b *Broker) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

// Close shuts the broker down, closing every subscriber channel. Publish and
// Subscribe become no-ops afterwards.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for topic, subs := range b.topics {
		for _, sub := range subs {
			close(sub.ch)
		}
		delete(b.topics, topic)
	}
}
