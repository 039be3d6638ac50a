package stream

import (
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/c360/marinestreams/pkg/buffer"
)

// Info summarises one stream for diagnostics.
type Info struct {
	ID             string `json:"id"`
	Clients        int    `json:"clients"`
	BufferedFrames int    `json:"bufferedFrames"`
	// frames aged out of the buffer since the stream started
	ExpiredFrames int64 `json:"expiredFrames"`
}

// shard is the state of one stream id.
type shard struct {
	mu      sync.Mutex
	id      string
	clients map[Conn]*Client
	frames  *buffer.Ring[[]byte]
	closed  bool
}

// Manager routes binary frames to stream clients.
type Manager struct {
	mu      sync.Mutex
	streams map[string]*shard

	emits   atomic.Int64
	sampler rate.Sometimes

	cfg    *settings
	logger *slog.Logger
}

// NewManager creates an empty manager.
func NewManager(opts ...Option) *Manager {
	cfg := &settings{
		bufferedFrames:   DefaultBufferedFrames,
		maxBufferedBytes: DefaultMaxBufferedBytes,
		maxDrops:         DefaultMaxConsecutiveDrops,
		logEvery:         DefaultLogEvery,
		now:              time.Now,
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &Manager{
		streams: make(map[string]*shard),
		sampler: rate.Sometimes{Every: cfg.logEvery},
		cfg:     cfg,
		logger:  cfg.logger.With("component", "stream.manager"),
	}
}

// shard returns the shard for id, creating it when create is set.
func (m *Manager) shard(id string, create bool) *shard {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.streams[id]
	if ok || !create {
		return s
	}
	s = &shard{id: id, frames: m.newRing(id)}
	m.streams[id] = s
	return s
}

func (m *Manager) newRing(id string) *buffer.Ring[[]byte] {
	opts := []buffer.Option[[]byte]{buffer.WithOverflowPolicy[[]byte](buffer.DropOldest)}
	if m.cfg.registry != nil {
		opts = append(opts, buffer.WithMetrics[[]byte](m.cfg.registry, "stream:"+id))
	}
	ring, err := buffer.New(m.cfg.bufferedFrames, opts...)
	if err != nil {
		m.logger.Warn("Stream buffer metrics unavailable", "stream", id, "error", err)
		ring, _ = buffer.New(m.cfg.bufferedFrames, buffer.WithOverflowPolicy[[]byte](buffer.DropOldest))
	}
	return ring
}

// EmitData buffers frame and sends it to every client of streamID. The
// frame is retained by the ring and the client queues without copying, so
// the caller must not modify or reuse it afterwards.
func (m *Manager) EmitData(streamID string, frame []byte) {
	n := m.emits.Add(1)
	m.cfg.metrics.RecordFrameEmitted(streamID)

	for {
		s := m.shard(streamID, true)
		evicted, ok := m.emit(s, frame)
		if !ok {
			// cleaned up concurrently; retry on a fresh shard
			continue
		}
		m.closeSlow(streamID, evicted)

		m.sampler.Do(func() {
			m.logger.Debug("Stream emit",
				"emit", n, "stream", streamID, "bytes", len(frame), "clients", m.ClientCount(streamID))
		})
		return
	}
}

func (m *Manager) emit(s *shard, frame []byte) ([]*Client, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, false
	}
	if _, err := s.frames.Push(frame); err != nil {
		m.logger.Debug("Stream buffer rejected frame", "stream", s.id, "error", err)
	}

	var evicted []*Client
	for conn, c := range s.clients {
		if m.sendToClient(c, frame) {
			continue
		}
		delete(s.clients, conn)
		evicted = append(evicted, c)
	}
	if len(evicted) > 0 {
		m.cfg.metrics.SetStreamClients(s.id, len(s.clients))
	}
	return evicted, true
}

// sendToClient delivers frame unless the connection is backed up. It returns
// false when the client has been backed up for too long and must be evicted.
// Called with the shard lock held.
func (m *Manager) sendToClient(c *Client, frame []byte) bool {
	if c.Conn.BufferedBytes() > m.cfg.maxBufferedBytes {
		c.consecutiveDrops++
		m.cfg.metrics.RecordFrameDropped(c.StreamID)
		return c.consecutiveDrops <= m.cfg.maxDrops
	}

	c.consecutiveDrops = 0
	if err := c.Conn.Send(frame); err != nil {
		m.cfg.metrics.RecordSendError(c.StreamID)
		m.logger.Debug("Stream send failed", "stream", c.StreamID, "principal", c.Principal.Identifier, "error", err)
		return true
	}
	m.cfg.metrics.RecordFrameSent(c.StreamID)
	return true
}

func (m *Manager) closeSlow(streamID string, evicted []*Client) {
	for _, c := range evicted {
		m.cfg.metrics.RecordEviction(streamID)
		m.logger.Info("Disconnecting slow stream client",
			"stream", streamID, "principal", c.Principal.Identifier, "dropped", c.consecutiveDrops)
		if err := c.Conn.Close(ClosePolicyViolation, ReasonSlowConsumer); err != nil {
			m.logger.Debug("Closing slow client failed", "stream", streamID, "error", err)
		}
	}
}

// AddClient subscribes conn to streamID. Buffered frames are not replayed.
func (m *Manager) AddClient(streamID string, conn Conn, principal Principal) {
	for {
		s := m.shard(streamID, true)
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			continue
		}
		if s.clients == nil {
			s.clients = make(map[Conn]*Client)
		}
		s.clients[conn] = &Client{
			StreamID:    streamID,
			Conn:        conn,
			Principal:   principal,
			ConnectedAt: m.cfg.now(),
		}
		n := len(s.clients)
		s.mu.Unlock()

		m.cfg.metrics.SetStreamClients(streamID, n)
		m.logger.Debug("Stream client added", "stream", streamID, "principal", principal.Identifier, "clients", n)
		return
	}
}

// RemoveClient unsubscribes conn. When the last client leaves, the client set
// and its gauge series are dropped; the buffer and its ring metrics stay until
// CleanupStream.
func (m *Manager) RemoveClient(streamID string, conn Conn) {
	s := m.shard(streamID, false)
	if s == nil {
		return
	}

	s.mu.Lock()
	if _, ok := s.clients[conn]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.clients, conn)
	n := len(s.clients)
	if n == 0 {
		s.clients = nil
	}
	s.mu.Unlock()

	m.cfg.metrics.SetStreamClients(streamID, n)
	m.logger.Debug("Stream client removed", "stream", streamID, "remaining", n)
}

// CleanupStream closes every client of streamID with CloseGoingAway and
// discards the stream's clients and buffer.
func (m *Manager) CleanupStream(streamID string) {
	m.mu.Lock()
	s, ok := m.streams[streamID]
	delete(m.streams, streamID)
	m.mu.Unlock()
	if !ok {
		return
	}

	s.mu.Lock()
	s.closed = true
	clients := s.clients
	s.clients = nil
	s.mu.Unlock()

	for _, c := range clients {
		if err := c.Conn.Close(CloseGoingAway, ReasonStreamEnded); err != nil {
			m.logger.Debug("Closing stream client failed", "stream", streamID, "error", err)
		}
	}
	if err := s.frames.Close(); err != nil {
		m.logger.Debug("Closing stream buffer failed", "stream", streamID, "error", err)
	}
	m.cfg.metrics.ForgetStream(streamID)
	m.logger.Info("Stream cleaned up", "stream", streamID, "clients_closed", len(clients))
}

// BufferSize returns how many frames streamID currently buffers.
func (m *Manager) BufferSize(streamID string) int {
	s := m.shard(streamID, false)
	if s == nil {
		return 0
	}
	return s.frames.Len()
}

// ClientCount returns how many clients streamID has.
func (m *Manager) ClientCount(streamID string) int {
	s := m.shard(streamID, false)
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Streams lists every known stream sorted by id.
func (m *Manager) Streams() []Info {
	m.mu.Lock()
	shards := make([]*shard, 0, len(m.streams))
	for _, s := range m.streams {
		shards = append(shards, s)
	}
	m.mu.Unlock()

	out := make([]Info, 0, len(shards))
	for _, s := range shards {
		s.mu.Lock()
		out = append(out, Info{
			ID:             s.id,
			Clients:        len(s.clients),
			BufferedFrames: s.frames.Len(),
			ExpiredFrames:  s.frames.Stats().Drops,
		})
		s.mu.Unlock()
	}
	slices.SortFunc(out, func(a, b Info) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// Close ends every stream.
func (m *Manager) Close() {
	for _, info := range m.Streams() {
		m.CleanupStream(info.ID)
	}
}
