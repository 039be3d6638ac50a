package natsclient

import (
	"sync"
	"time"
)

const initialBackoff = time.Second

// breaker counts connect failures. Every threshold failures it trips and
// hands back the wait before the next attempt, doubling the wait for the
// following trip up to maxBackoff.
type breaker struct {
	mu         sync.Mutex
	threshold  int32
	maxBackoff time.Duration
	backoff    time.Duration
	round      int32
	total      int32
	last       time.Time
}

func newBreaker(threshold int32, maxBackoff time.Duration) *breaker {
	return &breaker{threshold: threshold, maxBackoff: maxBackoff, backoff: initialBackoff}
}

// fail records one failure. tripped reports whether this failure completed a
// round; wait is then the time the circuit must stay open.
func (b *breaker) fail(now time.Time) (wait time.Duration, tripped bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.total++
	b.round++
	b.last = now
	if b.round < b.threshold {
		return 0, false
	}

	wait = b.backoff
	b.backoff = min(b.backoff*2, b.maxBackoff)
	b.round = 0
	return wait, true
}

func (b *breaker) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.total, b.round = 0, 0
	b.backoff = initialBackoff
	b.last = time.Time{}
}

func (b *breaker) snapshot() (failures int32, backoff time.Duration, last time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total, b.backoff, b.last
}
