package stream

import (
	"log/slog"
	"time"

	"github.com/c360/marinestreams/metric"
)

// Defaults for the slow consumer policy and ring size.
const (
	DefaultBufferedFrames      = 100
	DefaultMaxBufferedBytes    = 256 * 1024
	DefaultMaxConsecutiveDrops = 30
	DefaultLogEvery            = 500
)

type settings struct {
	bufferedFrames   int
	maxBufferedBytes int
	maxDrops         int
	logEvery         int
	now              func() time.Time
	logger           *slog.Logger
	metrics          *metric.Metrics
	registry         *metric.MetricsRegistry
}

// Option configures a Manager.
type Option func(*settings)

// WithBufferedFrames sets the per-stream ring capacity.
func WithBufferedFrames(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.bufferedFrames = n
		}
	}
}

// WithSlowConsumerPolicy sets the queued-bytes threshold and how many frames
// in a row may be skipped before the client is disconnected.
func WithSlowConsumerPolicy(maxBufferedBytes, maxConsecutiveDrops int) Option {
	return func(s *settings) {
		if maxBufferedBytes > 0 {
			s.maxBufferedBytes = maxBufferedBytes
		}
		if maxConsecutiveDrops > 0 {
			s.maxDrops = maxConsecutiveDrops
		}
	}
}

// WithLogEvery sets how often EmitData writes a debug line.
func WithLogEvery(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.logEvery = n
		}
	}
}

// WithClock replaces time.Now for client connect times.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records frame and client counters.
func WithMetrics(m *metric.Metrics) Option {
	return func(s *settings) { s.metrics = m }
}

// WithBufferMetrics registers ring metrics for every stream buffer. They live
// as long as the buffer and are unregistered when the stream is cleaned up.
func WithBufferMetrics(registry *metric.MetricsRegistry) Option {
	return func(s *settings) { s.registry = registry }
}
