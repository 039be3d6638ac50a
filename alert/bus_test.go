package alert

import (
	"sync"

	"github.com/c360/marinestreams/delta"
)

type emitted struct {
	source string
	path   string
	value  delta.Notification
}

// recordingBus captures everything alerts emit.
type recordingBus struct {
	mu     sync.Mutex
	events []emitted
}

func (b *recordingBus) HandleMessage(sourceID string, d delta.Delta) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, u := range d.Updates {
		for _, v := range u.Values {
			b.events = append(b.events, emitted{source: sourceID, path: v.Path, value: v.Value.(delta.Notification)})
		}
	}
}

func (b *recordingBus) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

func (b *recordingBus) last() emitted {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.events[len(b.events)-1]
}
