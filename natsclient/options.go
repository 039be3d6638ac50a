package natsclient

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	"github.com/c360/marinestreams/metric"
)

// settings is everything a ClientOption can change.
type settings struct {
	name           string
	maxReconnects  int
	reconnectWait  time.Duration
	pingInterval   time.Duration
	timeout        time.Duration
	drainTimeout   time.Duration
	handlerTimeout time.Duration

	circuitThreshold int32
	maxBackoff       time.Duration

	username string
	password string
	token    string
	tls      *tls.Config

	logger         *slog.Logger
	metrics        *metric.Metrics
	onHealthChange func(healthy bool)
}

func defaultSettings() settings {
	return settings{
		maxReconnects:    -1,
		reconnectWait:    2 * time.Second,
		pingInterval:     30 * time.Second,
		timeout:          5 * time.Second,
		drainTimeout:     30 * time.Second,
		handlerTimeout:   30 * time.Second,
		circuitThreshold: 5,
		maxBackoff:       time.Minute,
		logger:           slog.Default(),
	}
}

// ClientOption configures a Client.
type ClientOption func(*settings) error

// WithName sets the connection name shown in the server's monitoring.
func WithName(name string) ClientOption {
	return func(s *settings) error {
		s.name = name
		return nil
	}
}

// WithMaxReconnects bounds automatic reconnects after a connection is lost.
// -1 reconnects forever.
func WithMaxReconnects(n int) ClientOption {
	return func(s *settings) error {
		s.maxReconnects = n
		return nil
	}
}

func WithReconnectWait(d time.Duration) ClientOption {
	return func(s *settings) error {
		s.reconnectWait = d
		return nil
	}
}

func WithPingInterval(d time.Duration) ClientOption {
	return func(s *settings) error {
		s.pingInterval = d
		return nil
	}
}

// WithTimeout bounds a single dial.
func WithTimeout(d time.Duration) ClientOption {
	return func(s *settings) error {
		s.timeout = d
		return nil
	}
}

// WithDrainTimeout bounds Close when ctx carries no earlier deadline.
func WithDrainTimeout(d time.Duration) ClientOption {
	return func(s *settings) error {
		s.drainTimeout = d
		return nil
	}
}

// WithHandlerTimeout bounds the context handed to each subscription handler.
func WithHandlerTimeout(d time.Duration) ClientOption {
	return func(s *settings) error {
		if d <= 0 {
			return fmt.Errorf("handler timeout must be positive, got %v", d)
		}
		s.handlerTimeout = d
		return nil
	}
}

// WithCircuitBreakerThreshold sets how many failed connects trip the breaker.
func WithCircuitBreakerThreshold(n int32) ClientOption {
	return func(s *settings) error {
		if n < 1 {
			return fmt.Errorf("circuit breaker threshold must be >= 1, got %d", n)
		}
		s.circuitThreshold = n
		return nil
	}
}

// WithMaxBackoff caps how long the breaker stays open.
func WithMaxBackoff(d time.Duration) ClientOption {
	return func(s *settings) error {
		if d < initialBackoff {
			return fmt.Errorf("max backoff must be at least %v, got %v", initialBackoff, d)
		}
		s.maxBackoff = d
		return nil
	}
}

// WithCredentials authenticates with user and password. Both must be set.
func WithCredentials(username, password string) ClientOption {
	return func(s *settings) error {
		s.username, s.password = username, password
		return nil
	}
}

func WithToken(token string) ClientOption {
	return func(s *settings) error {
		s.token = token
		return nil
	}
}

// WithTLSConfig secures the connection. A nil config leaves TLS to the URL
// scheme.
func WithTLSConfig(cfg *tls.Config) ClientOption {
	return func(s *settings) error {
		s.tls = cfg
		return nil
	}
}

// WithLogger sets the logger; nil keeps slog.Default().
func WithLogger(logger *slog.Logger) ClientOption {
	return func(s *settings) error {
		if logger != nil {
			s.logger = logger
		}
		return nil
	}
}

// WithMetrics records connection state and reconnects. Nil disables.
func WithMetrics(m *metric.Metrics) ClientOption {
	return func(s *settings) error {
		s.metrics = m
		return nil
	}
}

// WithHealthChangeCallback is called, on its own goroutine, whenever the
// connection comes up or goes down.
func WithHealthChangeCallback(fn func(healthy bool)) ClientOption {
	return func(s *settings) error {
		s.onHealthChange = fn
		return nil
	}
}
