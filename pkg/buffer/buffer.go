package buffer

import (
	"sync"

	"github.com/c360/marinestreams/errors"
)

// OverflowPolicy defines how the ring behaves when it reaches capacity.
type OverflowPolicy int

const (
	// DropOldest removes the oldest item to make room for new items.
	DropOldest OverflowPolicy = iota

	// DropNewest drops new items when the ring is full.
	DropNewest
)

// String returns a human-readable representation of the overflow policy.
func (p OverflowPolicy) String() string {
	switch p {
	case DropOldest:
		return "DropOldest"
	case DropNewest:
		return "DropNewest"
	default:
		return "Unknown"
	}
}

// DropCallback is called outside the lock for every item the ring sheds.
type DropCallback[T any] func(item T)

// Ring is a thread-safe bounded FIFO. Push never blocks: on overflow the
// configured policy sheds either the oldest queued item or the new one.
type Ring[T any] struct {
	mu       sync.Mutex
	items    []T
	capacity int
	size     int
	head     int // next write position
	tail     int // next read position
	closed   bool

	stats   *Statistics
	metrics *ringMetrics
	opts    *ringOptions[T]
}

// New creates a ring with the given capacity (minimum 1).
// Returns an error only if metrics were requested and registration failed.
func New[T any](capacity int, options ...Option[T]) (*Ring[T], error) {
	if capacity <= 0 {
		capacity = 1
	}
	opts := applyOptions(options...)

	var metrics *ringMetrics
	if opts.metricsReg != nil {
		var err error
		metrics, err = newRingMetrics(opts.metricsReg, opts.metricsPrefix)
		if err != nil {
			return nil, errors.WrapTransient(err, "Ring", "New", "metrics registration")
		}
	}

	return &Ring[T]{
		items:    make([]T, capacity),
		capacity: capacity,
		stats:    NewStatistics(),
		metrics:  metrics,
		opts:     opts,
	}, nil
}

// Push appends item. It reports whether the new item was accepted: false
// means DropNewest shed it. Pushing to a closed ring returns ErrShuttingDown.
func (r *Ring[T]) Push(item T) (bool, error) {
	r.mu.Lock()

	if r.closed {
		r.mu.Unlock()
		return false, errors.WrapInvalid(errors.ErrShuttingDown, "Ring", "Push", "ring closed")
	}

	var dropped T
	shed := false

	if r.size == r.capacity {
		shed = true
		r.stats.drop()
		r.metrics.recordDrop()

		if r.opts.overflowPolicy == DropNewest {
			r.mu.Unlock()
			if r.opts.dropCallback != nil {
				r.opts.dropCallback(item)
			}
			return false, nil
		}

		var zero T
		dropped = r.items[r.tail]
		r.items[r.tail] = zero
		r.tail = (r.tail + 1) % r.capacity
		r.size--
	}

	r.items[r.head] = item
	r.head = (r.head + 1) % r.capacity
	r.size++

	r.stats.write(r.size)
	r.metrics.recordWrite(r.size)
	r.mu.Unlock()

	if shed && r.opts.dropCallback != nil {
		r.opts.dropCallback(dropped)
	}
	return true, nil
}

// Pop removes and returns the oldest item.
func (r *Ring[T]) Pop() (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero T
	if r.size == 0 {
		return zero, false
	}

	item := r.items[r.tail]
	r.items[r.tail] = zero
	r.tail = (r.tail + 1) % r.capacity
	r.size--

	r.stats.read(r.size)
	r.metrics.recordSize(r.size)
	return item, true
}

// Len returns the current number of items.
func (r *Ring[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

// Stats returns a snapshot of the ring's counters.
func (r *Ring[T]) Stats() StatsSummary {
	return r.stats.Summary(r.capacity)
}

// Close clears the ring, rejects further pushes and unregisters its metrics.
// Closing twice is a no-op.
func (r *Ring[T]) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	clear(r.items)
	r.head, r.tail, r.size = 0, 0, 0
	r.mu.Unlock()

	r.metrics.unregister()
	return nil
}
