package natsclient

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/c360/marinestreams/errors"
	"github.com/c360/marinestreams/pkg/retry"
)

// ConnectionStatus is the client's view of its connection.
type ConnectionStatus int32

const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
	StatusCircuitOpen
)

var statusNames = [...]string{
	StatusDisconnected: "disconnected",
	StatusConnecting:   "connecting",
	StatusConnected:    "connected",
	StatusReconnecting: "reconnecting",
	StatusCircuitOpen:  "circuit_open",
}

func (s ConnectionStatus) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "unknown"
	}
	return statusNames[s]
}

// ErrNotConnected is returned by Publish and Subscribe without a live connection.
var ErrNotConnected = stderrors.New("not connected to NATS")

// Stats is a point-in-time view of the client.
type Stats struct {
	Status      ConnectionStatus
	Failures    int32
	LastFailure time.Time
	Reconnects  int32
	RTT         time.Duration
}

// Handler receives the payload of one message. The subject is passed so a
// wildcard subscription can route on it.
type Handler func(ctx context.Context, subject string, data []byte)

// Client is a NATS connection guarded by a circuit breaker.
type Client struct {
	url    string
	cfg    settings
	logger *slog.Logger

	state      atomic.Int32
	reconnects atomic.Int32
	breaker    *breaker

	mu   sync.RWMutex
	conn *nats.Conn
	subs []*nats.Subscription

	closeMu sync.Mutex
	closed  atomic.Bool
}

// NewClient prepares a client for url, which may list several servers
// separated by commas. Nothing is dialled until Connect.
func NewClient(url string, opts ...ClientOption) (*Client, error) {
	cfg := defaultSettings()
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, errors.WrapInvalid(err, "Client", "NewClient", "apply option")
		}
	}

	return &Client{
		url:     url,
		cfg:     cfg,
		logger:  cfg.logger.With("component", "natsclient", "url", url),
		breaker: newBreaker(cfg.circuitThreshold, cfg.maxBackoff),
	}, nil
}

func (c *Client) URL() string { return c.url }

func (c *Client) Status() ConnectionStatus {
	return ConnectionStatus(c.state.Load())
}

func (c *Client) setStatus(s ConnectionStatus) {
	c.state.Store(int32(s))
	c.cfg.metrics.RecordNATSStatus(s == StatusConnected)
}

func (c *Client) swapStatus(from, to ConnectionStatus) bool {
	if !c.state.CompareAndSwap(int32(from), int32(to)) {
		return false
	}
	c.cfg.metrics.RecordNATSStatus(to == StatusConnected)
	return true
}

func (c *Client) IsHealthy() bool {
	return c.Status() == StatusConnected
}

// Failures counts connect failures since the last successful connect.
func (c *Client) Failures() int32 {
	n, _, _ := c.breaker.snapshot()
	return n
}

// Backoff is how long the breaker will stay open when it next trips.
func (c *Client) Backoff() time.Duration {
	_, d, _ := c.breaker.snapshot()
	return d
}

// Stats reports the current status, failure counters and, when connected,
// the server round trip.
func (c *Client) Stats() Stats {
	failures, _, last := c.breaker.snapshot()
	s := Stats{
		Status:      c.Status(),
		Failures:    failures,
		LastFailure: last,
		Reconnects:  c.reconnects.Load(),
	}
	if rtt, err := c.RTT(); err == nil {
		s.RTT = rtt
	}
	return s
}

func (c *Client) recordFailure() {
	wait, tripped := c.breaker.fail(time.Now())
	if !tripped {
		return
	}

	prev := c.Status()
	if prev == StatusCircuitOpen {
		c.logger.Warn("Circuit breaker still open", "retry_in", wait)
		return
	}
	if c.swapStatus(prev, StatusCircuitOpen) {
		c.logger.Warn("Circuit breaker opened", "failures", c.Failures(), "retry_in", wait)
		time.AfterFunc(wait, c.halfOpen)
	}
}

func (c *Client) resetCircuit() {
	c.breaker.reset()
	c.swapStatus(StatusCircuitOpen, StatusDisconnected)
}

// halfOpen lets the next Connect through after the breaker's wait.
func (c *Client) halfOpen() {
	if c.swapStatus(StatusCircuitOpen, StatusDisconnected) {
		c.logger.Debug("Circuit breaker half-open")
	}
}

func (c *Client) buildConnectionOptions() []nats.Option {
	opts := []nats.Option{
		nats.MaxReconnects(c.cfg.maxReconnects),
		nats.ReconnectWait(c.cfg.reconnectWait),
		nats.PingInterval(c.cfg.pingInterval),
		nats.Timeout(c.cfg.timeout),
		nats.DrainTimeout(c.cfg.drainTimeout),
		nats.DisconnectErrHandler(c.handleDisconnect),
		nats.ReconnectHandler(c.handleReconnect),
		nats.ClosedHandler(c.handleClosed),
		nats.ErrorHandler(c.handleError),
	}
	if c.cfg.name != "" {
		opts = append(opts, nats.Name(c.cfg.name))
	}
	if c.cfg.username != "" && c.cfg.password != "" {
		opts = append(opts, nats.UserInfo(c.cfg.username, c.cfg.password))
	}
	if c.cfg.token != "" {
		opts = append(opts, nats.Token(c.cfg.token))
	}
	if c.cfg.tls != nil {
		opts = append(opts, nats.Secure(c.cfg.tls))
	}
	return opts
}

// Connect dials the servers. While the breaker is open it fails fast with a
// transient ErrCircuitOpen.
func (c *Client) Connect(ctx context.Context) error {
	if c.Status() == StatusCircuitOpen {
		return errors.WrapTransient(errors.ErrCircuitOpen, "Client", "Connect", "circuit check")
	}

	c.setStatus(StatusConnecting)
	c.logger.Info("Connecting to NATS")

	type result struct {
		conn *nats.Conn
		err  error
	}
	dialled := make(chan result, 1)
	opts := c.buildConnectionOptions()
	go func() {
		conn, err := nats.Connect(c.url, opts...)
		dialled <- result{conn, err}
	}()

	var err error
	select {
	case r := <-dialled:
		if err = r.err; err == nil {
			c.mu.Lock()
			c.conn = r.conn
			c.mu.Unlock()
		}
	case <-ctx.Done():
		err = ctx.Err()
		go func() {
			if r := <-dialled; r.conn != nil {
				r.conn.Close()
			}
		}()
	}

	if err != nil {
		c.recordFailure()
		if c.Status() == StatusCircuitOpen {
			return errors.WrapTransient(errors.ErrCircuitOpen, "Client", "Connect", "establish connection")
		}
		c.setStatus(StatusDisconnected)
		return errors.WrapTransient(err, "Client", "Connect", "establish connection")
	}

	c.setStatus(StatusConnected)
	c.resetCircuit()
	c.logger.Info("Connected to NATS")
	c.notifyHealth(true)
	return nil
}

// ConnectWithRetry calls Connect with backoff until it succeeds, the retry
// budget is spent or ctx is done. Rejected credentials end it at once.
func (c *Client) ConnectWithRetry(ctx context.Context, cfg retry.Config) error {
	return retry.Do(ctx, cfg, func() error {
		err := c.Connect(ctx)
		if err == nil {
			return nil
		}
		if stderrors.Is(err, nats.ErrAuthorization) || stderrors.Is(err, nats.ErrAuthExpired) {
			return retry.Permanent(err)
		}
		c.logger.Warn("NATS connect attempt failed", "error", err)
		return err
	})
}

// Close unsubscribes, drains the connection and forgets the credentials.
// Calling it again is a no-op.
func (c *Client) Close(ctx context.Context) error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if c.closed.Swap(true) {
		return nil
	}

	c.mu.Lock()
	subs, conn := c.subs, c.conn
	c.subs, c.conn = nil, nil
	c.mu.Unlock()

	var errs []error
	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil && !stderrors.Is(err, nats.ErrConnectionClosed) {
			errs = append(errs, errors.Wrap(err, "Client", "Close", "unsubscribe "+sub.Subject))
		}
	}
	if conn != nil {
		if err := c.drain(ctx, conn); err != nil {
			errs = append(errs, err)
		}
		conn.Close()
	}

	c.cfg.username, c.cfg.password, c.cfg.token = "", "", ""
	c.setStatus(StatusDisconnected)
	return stderrors.Join(errs...)
}

func (c *Client) drain(ctx context.Context, conn *nats.Conn) error {
	limit := c.cfg.drainTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left > 0 && left < limit {
			limit = left
		}
	}

	drained := make(chan error, 1)
	go func() { drained <- conn.Drain() }()

	select {
	case err := <-drained:
		if err != nil && !stderrors.Is(err, nats.ErrConnectionClosed) {
			return errors.Wrap(err, "Client", "Close", "drain connection")
		}
		return nil
	case <-time.After(limit):
		return errors.WrapTransient(fmt.Errorf("drain timeout after %v", limit), "Client", "Close", "drain")
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "Client", "Close", "drain")
	}
}

func (c *Client) liveConn() *nats.Conn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.conn == nil || !c.conn.IsConnected() {
		return nil
	}
	return c.conn
}

// RTT measures the round trip to the connected server.
func (c *Client) RTT() (time.Duration, error) {
	conn := c.liveConn()
	if conn == nil {
		return 0, ErrNotConnected
	}
	return conn.RTT()
}

// Subscribe registers handler for subject. Each message gets a context derived
// from ctx bounded by the handler timeout.
func (c *Client) Subscribe(ctx context.Context, subject string, handler Handler) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || !c.conn.IsConnected() {
		return errors.WrapTransient(ErrNotConnected, "Client", "Subscribe", "subscribe "+subject)
	}

	timeout := c.cfg.handlerTimeout
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		msgCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		handler(msgCtx, msg.Subject, msg.Data)
	})
	if err != nil {
		return errors.WrapTransient(
			stderrors.Join(errors.ErrSubscriptionFailed, err), "Client", "Subscribe", "subscribe "+subject)
	}

	c.subs = append(c.subs, sub)
	return nil
}

func (c *Client) Publish(_ context.Context, subject string, data []byte) error {
	conn := c.liveConn()
	if conn == nil {
		return errors.WrapTransient(ErrNotConnected, "Client", "Publish", "publish "+subject)
	}
	return conn.Publish(subject, data)
}

// Flush round-trips to the server so prior publishes and subscriptions are
// known to have been processed.
func (c *Client) Flush(ctx context.Context) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}
	return conn.FlushWithContext(ctx)
}

func (c *Client) notifyHealth(healthy bool) {
	if fn := c.cfg.onHealthChange; fn != nil {
		go fn(healthy)
	}
}

func (c *Client) handleDisconnect(_ *nats.Conn, err error) {
	if c.closed.Load() {
		return
	}
	c.setStatus(StatusReconnecting)
	c.logger.Warn("NATS disconnected", "error", err)
	c.notifyHealth(false)
}

func (c *Client) handleReconnect(_ *nats.Conn) {
	c.setStatus(StatusConnected)
	c.resetCircuit()
	c.reconnects.Add(1)
	c.cfg.metrics.RecordNATSReconnect()
	c.logger.Info("NATS reconnected")
	c.notifyHealth(true)
}

func (c *Client) handleClosed(_ *nats.Conn) {
	c.setStatus(StatusDisconnected)
	c.notifyHealth(false)
}

func (c *Client) handleError(_ *nats.Conn, sub *nats.Subscription, err error) {
	subject := ""
	if sub != nil {
		subject = sub.Subject
	}
	c.logger.Error("NATS async error", "subject", subject, "error", err)
}
