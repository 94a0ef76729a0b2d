package node

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// wsTransport implements Transport over a WebSocket connection.
type wsTransport struct {
	cfg    Config
	logger *slog.Logger

	conn *websocket.Conn

	// Output channels
	messages chan TimestampedMessage
	errors   chan error
	done     chan struct{}

	// Write serialization
	writeMu sync.Mutex

	// State
	mu        sync.RWMutex
	connected bool
	closed    bool
}

// websocketDialer returns the default DialFunc for a config.
func websocketDialer(cfg Config) DialFunc {
	return func(ctx context.Context, url string) (Transport, error) {
		dialer := websocket.Dialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
		}

		conn, _, err := dialer.DialContext(ctx, url, nil)
		if err != nil {
			return nil, err
		}

		t := &wsTransport{
			cfg:       cfg,
			logger:    slog.Default().With("node", url),
			conn:      conn,
			messages:  make(chan TimestampedMessage, cfg.BufferSize),
			errors:    make(chan error, 1),
			done:      make(chan struct{}),
			connected: true,
		}
		go t.readLoop()
		return t, nil
	}
}

// Send writes raw bytes to the connection.
func (t *wsTransport) Send(data []byte) error {
	t.mu.RLock()
	if !t.connected {
		t.mu.RUnlock()
		return ErrNotConnected
	}
	t.mu.RUnlock()

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	t.conn.SetWriteDeadline(time.Now().Add(t.cfg.WriteTimeout))
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

// Messages returns the inbound frame channel.
func (t *wsTransport) Messages() <-chan TimestampedMessage {
	return t.messages
}

// Errors returns the connection error channel.
func (t *wsTransport) Errors() <-chan error {
	return t.errors
}

// IsConnected returns the current connection state.
func (t *wsTransport) IsConnected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.connected
}

// Close closes the connection. Close-time errors are suppressed; the
// session is being replaced anyway.
func (t *wsTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.connected = false
	t.mu.Unlock()

	close(t.done)

	t.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	t.conn.Close()
	return nil
}

// readLoop reads frames and forwards them to the messages channel.
func (t *wsTransport) readLoop() {
	defer func() {
		t.mu.Lock()
		t.connected = false
		t.mu.Unlock()
	}()

	for {
		select {
		case <-t.done:
			return
		default:
		}

		_, data, err := t.conn.ReadMessage()
		receivedAt := time.Now()

		if err != nil {
			// Ignore errors after Close() is called
			select {
			case <-t.done:
				return
			default:
				select {
				case t.errors <- err:
				default:
				}
				return
			}
		}

		msg := TimestampedMessage{Data: data, ReceivedAt: receivedAt}

		select {
		case t.messages <- msg:
		case <-t.done:
			return
		default:
			t.logger.Warn("message buffer full, dropping frame")
		}
	}
}
