package alert

import (
	"log/slog"
	"time"

	"github.com/c360/marinestreams/metric"
)

// DefaultSilenceDuration is how long Silence mutes an alarm.
const DefaultSilenceDuration = 30 * time.Second

type settings struct {
	silenceFor    time.Duration
	escalateAfter time.Duration
	now           func() time.Time
	logger        *slog.Logger
	metrics       *metric.Metrics
}

func newSettings(opts []Option) *settings {
	s := &settings{
		silenceFor: DefaultSilenceDuration,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Option configures alerts and the Manager that creates them.
type Option func(*settings)

// WithSilenceDuration overrides how long Silence lasts. Non-positive values
// are ignored.
func WithSilenceDuration(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.silenceFor = d
		}
	}
}

// WithEscalation re-prioritises an unacknowledged warning to alarm after d.
// Zero disables escalation.
func WithEscalation(d time.Duration) Option {
	return func(s *settings) {
		if d >= 0 {
			s.escalateAfter = d
		}
	}
}

// WithClock replaces time.Now for created/resolved timestamps.
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

// WithMetrics records transitions, notifications and the live alert count.
func WithMetrics(m *metric.Metrics) Option {
	return func(s *settings) { s.metrics = m }
}
