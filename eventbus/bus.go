// Package eventbus stamps deltas from producers and fans them out to
// subscribers.
//
// Producers call Bus.HandleMessage with their source id. The Hub overwrites
// timestamp and $source on every update, defaults the context to
// vessels.self, and hands the stamped delta to each subscriber's bounded
// queue. A subscriber whose queue is full misses that delta; the producer is
// never blocked. Forwarder additionally publishes every stamped delta to NATS.
package eventbus

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/c360/marinestreams/delta"
	"github.com/c360/marinestreams/metric"
)

// Bus accepts deltas from producers.
type Bus interface {
	HandleMessage(sourceID string, d delta.Delta)
}

// DefaultQueueSize is used by Subscribe when size is not positive.
const DefaultQueueSize = 64

// Hub is the in-process Bus implementation.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]*Subscription

	now     func() time.Time
	logger  *slog.Logger
	metrics *metric.Metrics
}

var _ Bus = (*Hub)(nil)

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the hub logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithMetrics records published and dropped deltas.
func WithMetrics(m *metric.Metrics) Option {
	return func(h *Hub) { h.metrics = m }
}

// WithClock replaces time.Now for stamping.
func WithClock(now func() time.Time) Option {
	return func(h *Hub) {
		if now != nil {
			h.now = now
		}
	}
}

// NewHub creates an empty hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		subs:   make(map[string]*Subscription),
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With("component", "eventbus")
	return h
}

// HandleMessage stamps d and delivers it to every subscriber.
func (h *Hub) HandleMessage(sourceID string, d delta.Delta) {
	h.Publish(sourceID, d)
}

// Publish is HandleMessage returning the stamped delta.
func (h *Hub) Publish(sourceID string, d delta.Delta) delta.Delta {
	stamped := d.Stamp(delta.SourceRef(sourceID), h.now())
	h.metrics.RecordDeltaPublished()

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subs {
		select {
		case sub.ch <- stamped:
		default:
			if sub.dropped.Add(1) == 1 {
				h.logger.Warn("Subscriber queue full, dropping deltas", "subscription", sub.id)
			}
			h.metrics.RecordDeltaDropped()
		}
	}
	return stamped
}

// Subscribe registers a subscriber with a queue of size deltas. The
// subscription ends when ctx is done or Close is called.
func (h *Hub) Subscribe(ctx context.Context, size int) *Subscription {
	if size <= 0 {
		size = DefaultQueueSize
	}
	sub := &Subscription{
		id:   uuid.NewString(),
		ch:   make(chan delta.Delta, size),
		hub:  h,
		done: make(chan struct{}),
	}

	h.mu.Lock()
	h.subs[sub.id] = sub
	h.mu.Unlock()

	h.logger.Debug("Subscriber added", "subscription", sub.id, "queue", size)

	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.done:
		}
	}()
	return sub
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close ends every subscription.
func (h *Hub) Close() {
	h.mu.RLock()
	subs := make([]*Subscription, 0, len(h.subs))
	for _, sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	for _, sub := range subs {
		sub.Close()
	}
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	delete(h.subs, sub.id)
	close(sub.ch)
	h.mu.Unlock()
	h.logger.Debug("Subscriber removed", "subscription", sub.id, "dropped", sub.dropped.Load())
}

// Subscription is one consumer's view of the hub.
type Subscription struct {
	id      string
	ch      chan delta.Delta
	hub     *Hub
	dropped atomic.Int64
	once    sync.Once
	done    chan struct{}
}

// ID returns the subscription id.
func (s *Subscription) ID() string { return s.id }

// C returns the delivery channel. It is closed when the subscription ends.
func (s *Subscription) C() <-chan delta.Delta { return s.ch }

// Dropped returns how many deltas this subscriber missed on a full queue.
func (s *Subscription) Dropped() int64 { return s.dropped.Load() }

// Close ends the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		close(s.done)
		s.hub.remove(s)
	})
}
