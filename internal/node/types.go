package node

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected  = errors.New("not connected")
	ErrAlreadyClosed = errors.New("already closed")
	ErrSessionClosed = errors.New("session closed")
	ErrTimeout       = errors.New("operation timeout")

	// ErrUpstream means a call failed after bounded retries. Callers
	// must treat it as "temporarily unavailable" and degrade
	// gracefully, e.g. skip one update cycle.
	ErrUpstream = errors.New("upstream call abandoned after repeated failures")
)

// Retry policy for the Request Correlator.
const (
	reconnectEvery = 3  // force reconnect on every Nth consecutive failure
	abandonAfter   = 15 // give up and return an empty result
	maxBackoffUnit = 60 // cap, in backoff units
)

// TimestampedMessage wraps raw frame data with a receive timestamp.
type TimestampedMessage struct {
	Data       []byte
	ReceivedAt time.Time
}

// Transport is one message-oriented connection to an upstream node.
type Transport interface {
	// Send writes raw bytes to the connection.
	Send(data []byte) error

	// Messages returns a channel of raw inbound frames.
	Messages() <-chan TimestampedMessage

	// Errors returns a channel of connection errors.
	Errors() <-chan error

	// Close closes the connection.
	Close() error

	// IsConnected returns current connection state.
	IsConnected() bool
}

// DialFunc establishes a Transport to one node URL.
type DialFunc func(ctx context.Context, url string) (Transport, error)

// Request is one upstream RPC frame.
type Request struct {
	Method  string `json:"method"`
	Params  [3]any `json:"params"` // namespace, procedure, args
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
}

// Response is one upstream RPC response frame, correlated by ID.
type Response struct {
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  json.RawMessage `json:"error"`
}

// Config configures the Connection Manager.
type Config struct {
	URLs             []string      // candidate upstream node addresses
	HandshakeTimeout time.Duration // per-attempt connect timeout
	ProbeInterval    time.Duration // keepalive probe interval
	CallTimeout      time.Duration // per-attempt response wait
	WriteTimeout     time.Duration // transport write deadline
	BufferSize       int           // transport message channel size
	BackoffUnit      time.Duration // one backoff unit (tests shrink it)
	Dial             DialFunc      // nil = websocket dialer
}

// DefaultConfig returns sensible defaults for a node pool.
func DefaultConfig(urls []string) Config {
	return Config{
		URLs:             urls,
		HandshakeTimeout: 10 * time.Second,
		ProbeInterval:    10 * time.Second,
		CallTimeout:      30 * time.Second,
		WriteTimeout:     5 * time.Second,
		BufferSize:       1000,
		BackoffUnit:      time.Second,
	}
}
