package buffer

import (
	"sync/atomic"
	"time"
)

// Statistics tracks ring activity. Counters are always on, independent of
// whether Prometheus metrics were requested.
type Statistics struct {
	writes    atomic.Int64
	reads     atomic.Int64
	drops     atomic.Int64
	size      atomic.Int64
	maxSize   atomic.Int64
	startTime time.Time
}

// NewStatistics creates a new statistics tracker.
func NewStatistics() *Statistics {
	return &Statistics{startTime: time.Now()}
}

func (s *Statistics) write(size int) {
	s.writes.Add(1)
	s.setSize(size)
}

func (s *Statistics) read(size int) {
	s.reads.Add(1)
	s.setSize(size)
}

func (s *Statistics) drop() {
	s.drops.Add(1)
}

func (s *Statistics) setSize(size int) {
	n := int64(size)
	s.size.Store(n)
	for {
		current := s.maxSize.Load()
		if n <= current || s.maxSize.CompareAndSwap(current, n) {
			return
		}
	}
}

// StatsSummary is a point-in-time copy of the counters.
type StatsSummary struct {
	Writes      int64         `json:"writes"`
	Reads       int64         `json:"reads"`
	Drops       int64         `json:"drops"`
	CurrentSize int64         `json:"current_size"`
	MaxSize     int64         `json:"max_size"`
	Utilization float64       `json:"utilization"`
	DropRate    float64       `json:"drop_rate"`
	Uptime      time.Duration `json:"uptime"`
}

// Summary returns a snapshot of all statistics for a ring of the given capacity.
func (s *Statistics) Summary(capacity int) StatsSummary {
	summary := StatsSummary{
		Writes:      s.writes.Load(),
		Reads:       s.reads.Load(),
		Drops:       s.drops.Load(),
		CurrentSize: s.size.Load(),
		MaxSize:     s.maxSize.Load(),
		Uptime:      time.Since(s.startTime),
	}
	if capacity > 0 {
		summary.Utilization = float64(summary.CurrentSize) / float64(capacity)
	}
	if attempts := summary.Writes + summary.Drops; attempts > 0 {
		summary.DropRate = float64(summary.Drops) / float64(attempts)
	}
	return summary
}
