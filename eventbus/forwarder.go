package eventbus

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/c360/marinestreams/delta"
)

// Publisher is the subset of natsclient.Client the forwarder needs.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// Forwarder is a Bus that publishes through a Hub and mirrors each stamped
// delta to <prefix>.delta.<source>.
type Forwarder struct {
	hub     *Hub
	pub     Publisher
	prefix  string
	timeout time.Duration
	logger  *slog.Logger
}

var _ Bus = (*Forwarder)(nil)

// NewForwarder wraps hub. A nil logger uses slog.Default().
func NewForwarder(hub *Hub, pub Publisher, prefix string, logger *slog.Logger) *Forwarder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Forwarder{
		hub:     hub,
		pub:     pub,
		prefix:  prefix,
		timeout: 2 * time.Second,
		logger:  logger.With("component", "eventbus.forwarder"),
	}
}

// HandleMessage publishes to the hub, then to NATS. NATS failures are logged.
func (f *Forwarder) HandleMessage(sourceID string, d delta.Delta) {
	stamped := f.hub.Publish(sourceID, d)

	data, err := json.Marshal(stamped)
	if err != nil {
		f.logger.Error("Failed to encode delta", "source", sourceID, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()

	subject := f.Subject(sourceID)
	if err := f.pub.Publish(ctx, subject, data); err != nil {
		f.logger.Warn("Failed to forward delta", "subject", subject, "error", err)
	}
}

var subjectReplacer = strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_")

// Subject returns the NATS subject deltas from sourceID are forwarded on.
func (f *Forwarder) Subject(sourceID string) string {
	token := subjectReplacer.Replace(sourceID)
	if token == "" {
		token = "unknown"
	}
	return f.prefix + ".delta." + token
}
