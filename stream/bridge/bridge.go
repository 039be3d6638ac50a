// Package bridge feeds stream frames published on NATS into a stream
// manager, so producers can run outside the hub process.
//
// Frames arrive on <prefix>.frames.<stream id tokens>; dots in the suffix
// map to slashes, so marinestreams.frames.radars.radar-0 feeds
// radars/radar-0. A message on <prefix>.ended carrying a stream id ends that
// stream and disconnects its clients.
package bridge

import (
	"context"
	"log/slog"
	"strings"

	"github.com/c360/marinestreams/errors"
	"github.com/c360/marinestreams/natsclient"
)

// Subscriber is the part of natsclient.Client the bridge uses.
type Subscriber interface {
	Subscribe(ctx context.Context, subject string, handler natsclient.Handler) error
}

// Sink receives frames and end-of-stream signals.
type Sink interface {
	EmitData(streamID string, frame []byte)
	CleanupStream(streamID string)
}

// Bridge connects NATS subjects to a Sink.
type Bridge struct {
	sub    Subscriber
	sink   Sink
	prefix string
	logger *slog.Logger
}

// New creates a bridge for subjects under prefix.
func New(sub Subscriber, sink Sink, prefix string, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		sub:    sub,
		sink:   sink,
		prefix: prefix,
		logger: logger.With("component", "stream.bridge"),
	}
}

// FramesSubject is the wildcard subject frames are published under.
func (b *Bridge) FramesSubject() string { return b.prefix + ".frames.>" }

// EndedSubject carries end-of-stream signals.
func (b *Bridge) EndedSubject() string { return b.prefix + ".ended" }

// FrameSubject returns the subject a producer publishes streamID frames to.
func (b *Bridge) FrameSubject(streamID string) string {
	return b.prefix + ".frames." + strings.ReplaceAll(strings.Trim(streamID, "/"), "/", ".")
}

// Start subscribes to both subjects. Subscriptions live until the NATS
// client is closed.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.sub.Subscribe(ctx, b.FramesSubject(), b.handleFrame); err != nil {
		return errors.Wrap(err, "Bridge", "Start", "subscribe frames")
	}
	if err := b.sub.Subscribe(ctx, b.EndedSubject(), b.handleEnded); err != nil {
		return errors.Wrap(err, "Bridge", "Start", "subscribe ended")
	}
	b.logger.Info("Stream bridge started", "frames", b.FramesSubject(), "ended", b.EndedSubject())
	return nil
}

func (b *Bridge) handleFrame(_ context.Context, subject string, data []byte) {
	id, ok := b.streamID(subject)
	if !ok {
		b.logger.Debug("Ignoring frame on unexpected subject", "subject", subject)
		return
	}
	b.sink.EmitData(id, data)
}

func (b *Bridge) handleEnded(_ context.Context, _ string, data []byte) {
	id := strings.TrimSpace(string(data))
	if id == "" {
		b.logger.Warn("Ignoring end-of-stream without a stream id")
		return
	}
	b.sink.CleanupStream(id)
}

// streamID maps a frames subject back to its stream id.
func (b *Bridge) streamID(subject string) (string, bool) {
	suffix, ok := strings.CutPrefix(subject, b.prefix+".frames.")
	if !ok || suffix == "" {
		return "", false
	}
	return strings.ReplaceAll(suffix, ".", "/"), true
}
