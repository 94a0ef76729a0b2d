package node

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// Session is one live connection to exactly one upstream node. It owns
// a background demux loop that matches inbound frames to pending calls
// purely by nonce. Sessions are replaced on failure, never repaired.
type Session struct {
	transport Transport
	logger    *slog.Logger

	pendingMu sync.Mutex
	pending   map[int64]chan Response

	closeOnce sync.Once
	done      chan struct{}
}

func newSession(transport Transport, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		transport: transport,
		logger:    logger,
		pending:   make(map[int64]chan Response),
		done:      make(chan struct{}),
	}
	go s.demux()
	return s
}

// Alive reports whether the session can still serve calls.
func (s *Session) Alive() bool {
	select {
	case <-s.done:
		return false
	default:
		return s.transport.IsConnected()
	}
}

// Close tears the session down. All pending calls fail with
// ErrSessionClosed. Transport close errors are suppressed.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.transport.Close()
	})
}

// call sends one request frame and waits for the response matching its
// nonce. Many calls may be in flight concurrently; completion order is
// not guaranteed.
func (s *Session) call(ctx context.Context, req Request, timeout time.Duration) (Response, error) {
	respCh := make(chan Response, 1)

	s.pendingMu.Lock()
	s.pending[req.ID] = respCh
	s.pendingMu.Unlock()

	defer func() {
		s.pendingMu.Lock()
		delete(s.pending, req.ID)
		s.pendingMu.Unlock()
	}()

	data, err := json.Marshal(req)
	if err != nil {
		return Response{}, err
	}
	if err := s.transport.Send(data); err != nil {
		return Response{}, err
	}

	select {
	case <-ctx.Done():
		return Response{}, ctx.Err()
	case <-s.done:
		return Response{}, ErrSessionClosed
	case <-time.After(timeout):
		return Response{}, ErrTimeout
	case resp := <-respCh:
		return resp, nil
	}
}

// demux routes inbound frames to waiting callers by response id.
func (s *Session) demux() {
	for {
		select {
		case <-s.done:
			return

		case err := <-s.transport.Errors():
			s.logger.Warn("session transport failed", "error", err)
			s.Close()
			return

		case msg, ok := <-s.transport.Messages():
			if !ok {
				s.Close()
				return
			}

			var resp Response
			if err := json.Unmarshal(msg.Data, &resp); err != nil {
				s.logger.Debug("unparseable frame dropped", "error", err)
				continue
			}

			s.pendingMu.Lock()
			ch, ok := s.pending[resp.ID]
			if ok {
				delete(s.pending, resp.ID)
			}
			s.pendingMu.Unlock()

			if ok {
				select {
				case ch <- resp:
				default:
				}
			}
		}
	}
}
