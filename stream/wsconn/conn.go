// Package wsconn adapts a gorilla websocket to the stream.Conn capability.
//
// Send never blocks: frames go into a bounded outbound queue drained by a
// writer goroutine, and BufferedBytes reports the bytes still queued. That is
// the figure the stream manager uses to detect slow consumers. A reader
// goroutine discards inbound messages and answers pings; Done is closed when
// either side ends the connection.
package wsconn

import (
	stderrors "errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/c360/marinestreams/errors"
	"github.com/c360/marinestreams/pkg/buffer"
)

// Defaults for the connection loops.
const (
	DefaultWriteTimeout = 10 * time.Second
	DefaultPingInterval = 30 * time.Second
	DefaultQueueFrames  = 1024
)

type config struct {
	writeTimeout time.Duration
	pingInterval time.Duration
	queueFrames  int
	messageType  int
	logger       *slog.Logger
}

// Option configures a Conn.
type Option func(*config)

// WithWriteTimeout bounds each frame write.
func WithWriteTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.writeTimeout = d
		}
	}
}

// WithPingInterval sets the keepalive period. The read deadline is twice
// this value.
func WithPingInterval(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.pingInterval = d
		}
	}
}

// WithQueueFrames caps how many frames may wait in the outbound queue.
func WithQueueFrames(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.queueFrames = n
		}
	}
}

// WithTextMessages sends frames as text instead of binary messages.
func WithTextMessages() Option {
	return func(c *config) { c.messageType = websocket.TextMessage }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Conn is a websocket with a non-blocking outbound queue.
type Conn struct {
	ws     *websocket.Conn
	cfg    config
	logger *slog.Logger

	queue    *buffer.Ring[[]byte]
	buffered atomic.Int64
	wake     chan struct{}

	closed    atomic.Bool
	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// Upgrade upgrades the request and starts the connection loops.
func Upgrade(w http.ResponseWriter, r *http.Request, upgrader *websocket.Upgrader, opts ...Option) (*Conn, error) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, errors.WrapInvalid(err, "wsconn", "Upgrade", "upgrade websocket")
	}
	return New(ws, opts...), nil
}

// New wraps an established websocket and starts its reader and writer.
func New(ws *websocket.Conn, opts ...Option) *Conn {
	cfg := config{
		writeTimeout: DefaultWriteTimeout,
		pingInterval: DefaultPingInterval,
		queueFrames:  DefaultQueueFrames,
		messageType:  websocket.BinaryMessage,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	c := &Conn{
		ws:     ws,
		cfg:    cfg,
		logger: cfg.logger.With("component", "wsconn", "remote", ws.RemoteAddr().String()),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	// DropNewest so a full queue rejects the new frame instead of silently
	// discarding one already written to the peer; the rejected frame's
	// bytes are released from the buffered count.
	c.queue, _ = buffer.New(cfg.queueFrames,
		buffer.WithOverflowPolicy[[]byte](buffer.DropNewest),
		buffer.WithDropCallback[[]byte](func(frame []byte) { c.buffered.Add(-int64(len(frame))) }))

	c.wg.Add(2)
	go c.readLoop()
	go c.writeLoop()
	return c
}

// BufferedBytes reports bytes queued but not yet written.
func (c *Conn) BufferedBytes() int {
	return int(max(c.buffered.Load(), 0))
}

// Send queues frame for the writer. It fails with ErrConnectionClosed after
// Close and with ErrSlowConsumer when the queue is full.
func (c *Conn) Send(frame []byte) error {
	if c.closed.Load() {
		return errors.WrapTransient(errors.ErrConnectionClosed, "wsconn", "Send", "queue frame")
	}

	c.buffered.Add(int64(len(frame)))
	accepted, err := c.queue.Push(frame)
	if err != nil {
		c.buffered.Add(-int64(len(frame)))
		return errors.WrapTransient(errors.ErrConnectionClosed, "wsconn", "Send", "queue frame")
	}
	if !accepted {
		return errors.WrapTransient(errors.ErrSlowConsumer, "wsconn", "Send", "queue frame")
	}

	select {
	case c.wake <- struct{}{}:
	default:
	}
	return nil
}

// Close writes a close frame with code and reason, then tears the socket
// down. Queued frames are discarded. Safe to call more than once.
func (c *Conn) Close(code int, reason string) error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		msg := websocket.FormatCloseMessage(code, reason)
		if werr := c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.cfg.writeTimeout)); werr != nil &&
			!stderrors.Is(werr, websocket.ErrCloseSent) {
			c.logger.Debug("Close frame not delivered", "code", code, "error", werr)
		}
		close(c.done)
		err = c.ws.Close()
		_ = c.queue.Close()
		c.buffered.Store(0)
	})
	if err != nil {
		return errors.WrapTransient(err, "wsconn", "Close", "close socket")
	}
	return nil
}

// Done is closed once the connection has ended from either side.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Wait blocks until the reader and writer have exited.
func (c *Conn) Wait() { c.wg.Wait() }

// readLoop discards inbound data; its only job is to notice the peer
// leaving and to keep the pong deadline moving.
func (c *Conn) readLoop() {
	defer c.wg.Done()
	defer func() { _ = c.Close(websocket.CloseNormalClosure, "") }()

	deadline := 2 * c.cfg.pingInterval
	_ = c.ws.SetReadDeadline(time.Now().Add(deadline))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(deadline))
	})

	for {
		if _, _, err := c.ws.NextReader(); err != nil {
			if !c.closed.Load() && websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				c.logger.Debug("Websocket read ended", "error", err)
			}
			return
		}
	}
}

func (c *Conn) writeLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.writeTimeout)); err != nil {
				c.logger.Debug("Websocket ping failed", "error", err)
				_ = c.Close(websocket.CloseGoingAway, "")
				return
			}
		case <-c.wake:
			if err := c.flush(); err != nil {
				c.logger.Debug("Websocket write failed", "error", err)
				_ = c.Close(websocket.CloseInternalServerErr, "")
				return
			}
		}
	}
}

// flush writes every queued frame.
func (c *Conn) flush() error {
	for {
		frame, ok := c.queue.Pop()
		if !ok {
			return nil
		}
		if c.closed.Load() {
			return nil
		}
		_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.writeTimeout))
		err := c.ws.WriteMessage(c.cfg.messageType, frame)
		c.buffered.Add(-int64(len(frame)))
		if err != nil {
			return err
		}
	}
}
