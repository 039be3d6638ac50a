package stream

import "time"

// Websocket close codes used by the manager.
const (
	CloseGoingAway       = 1001
	ClosePolicyViolation = 1008
)

// Close reasons sent with the close codes above.
const (
	ReasonStreamEnded  = "Stream ended"
	ReasonSlowConsumer = "Client cannot keep up with data rate"
)

// Conn is the capability the manager needs from a client connection.
// Implementations must be comparable since connections are tracked by
// identity; pointer receivers satisfy this.
type Conn interface {
	// BufferedBytes reports bytes queued but not yet written to the peer.
	BufferedBytes() int
	// Send queues one binary frame. It must not block on the network and
	// must not modify frame, which is shared between clients.
	Send(frame []byte) error
	// Close sends a close frame with code and reason and releases the
	// connection.
	Close(code int, reason string) error
}

// Principal identifies who opened a stream connection.
type Principal struct {
	Identifier string `json:"identifier"`
}

// Client is one connection subscribed to a stream.
type Client struct {
	StreamID    string
	Conn        Conn
	Principal   Principal
	ConnectedAt time.Time

	consecutiveDrops int
}
