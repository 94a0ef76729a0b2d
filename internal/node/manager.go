package node

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/squidKid-deluxe/bitshares-dex-ux/internal/nonce"
)

// nullOrEmpty reports whether a raw response member is absent or an
// explicit JSON null. Upstream nodes emit both forms interchangeably,
// so they must classify the same way.
func nullOrEmpty(r json.RawMessage) bool {
	return len(r) == 0 || bytes.Equal(r, []byte("null"))
}

// Manager produces one healthy upstream session at a time and carries
// the retry policy for logical calls made through it.
type Manager struct {
	cfg    Config
	nonces *nonce.Allocator
	logger *slog.Logger
	dial   DialFunc

	mu     sync.Mutex
	sess   *Session
	closed bool

	// serializes session replacement so concurrent failures cause one
	// reconnect, not a stampede
	swapMu sync.Mutex
}

// NewManager creates a Connection Manager over the configured node pool.
func NewManager(cfg Config, nonces *nonce.Allocator, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if nonces == nil {
		nonces = nonce.NewAllocator()
	}
	dial := cfg.Dial
	if dial == nil {
		dial = websocketDialer(cfg)
	}
	return &Manager{
		cfg:    cfg,
		nonces: nonces,
		logger: logger,
		dial:   dial,
	}
}

// Acquire blocks until a session is established against some node in
// the pool, picking uniformly at random per attempt. It never returns a
// failed session; only context cancellation stops the retry loop.
func (m *Manager) Acquire(ctx context.Context) (*Session, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		url := m.cfg.URLs[rand.Intn(len(m.cfg.URLs))]

		dialCtx, cancel := context.WithTimeout(ctx, m.cfg.HandshakeTimeout)
		transport, err := m.dial(dialCtx, url)
		cancel()
		if err != nil {
			m.logger.Warn("handshake failed, trying again", "node", url, "error", err)
			continue
		}

		m.logger.Info("node session established", "node", url)
		return newSession(transport, m.logger.With("node", url)), nil
	}
}

// Session returns the current healthy session, establishing one on
// first use or after failure.
func (m *Manager) Session(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	s := m.sess
	m.mu.Unlock()

	if s != nil && s.Alive() {
		return s, nil
	}
	return m.swap(ctx, s)
}

// Reconnect forces replacement of the current session.
func (m *Manager) Reconnect(ctx context.Context) error {
	m.mu.Lock()
	cur := m.sess
	m.mu.Unlock()

	_, err := m.swap(ctx, cur)
	return err
}

// swap acquires a fresh session and installs it, closing the replaced
// one. If another caller already swapped past old, its session is kept.
func (m *Manager) swap(ctx context.Context, old *Session) (*Session, error) {
	m.swapMu.Lock()
	defer m.swapMu.Unlock()

	m.mu.Lock()
	cur := m.sess
	closed := m.closed
	m.mu.Unlock()

	if closed {
		return nil, ErrAlreadyClosed
	}
	if cur != nil && cur != old && cur.Alive() {
		return cur, nil
	}

	next, err := m.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sess = next
	m.mu.Unlock()

	if cur != nil {
		cur.Close()
	}
	return next, nil
}

// Close releases the current session.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	s := m.sess
	m.sess = nil
	m.mu.Unlock()

	if s != nil {
		s.Close()
	}
}

// StartProber issues a lightweight keepalive on a fixed interval and
// replaces the session when a probe goes unanswered. It returns when
// ctx is cancelled.
func (m *Manager) StartProber(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(m.cfg.ProbeInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := m.probe(ctx); err != nil {
					m.logger.Warn("no response from node, replacing session", "error", err)
					if err := m.Reconnect(ctx); err != nil {
						return
					}
				}
			}
		}
	}()
}

// probe issues a single keepalive request with no retry policy.
func (m *Manager) probe(ctx context.Context) error {
	sess, err := m.Session(ctx)
	if err != nil {
		return err
	}

	req := Request{
		Method:  "call",
		Params:  [3]any{"database", "get_objects", []any{[]string{"2.8.0"}}},
		JSONRPC: "2.0",
		ID:      m.nonces.Next(),
	}
	resp, err := sess.call(ctx, req, m.cfg.ProbeInterval)
	if err != nil {
		return err
	}
	if nullOrEmpty(resp.Result) {
		return fmt.Errorf("empty probe result")
	}
	return nil
}

// Call issues one logical request, retrying per the correlator policy:
// quadratic backoff, forced reconnect on every 3rd consecutive failure,
// abandonment with an empty result after 15. An empty result means
// "temporarily unavailable", never a valid empty answer.
func (m *Manager) Call(ctx context.Context, namespace, procedure string, args any) ([]byte, error) {
	failures := 0
	for {
		sess, err := m.Session(ctx)
		if err != nil {
			return nil, err
		}

		req := Request{
			Method:  "call",
			Params:  [3]any{namespace, procedure, args},
			JSONRPC: "2.0",
			ID:      m.nonces.Next(),
		}

		resp, callErr := sess.call(ctx, req, m.cfg.CallTimeout)
		if callErr == nil && nullOrEmpty(resp.Error) {
			return resp.Result, nil
		}
		if callErr == nil {
			callErr = fmt.Errorf("upstream error: %s", resp.Error)
		}

		failures++
		m.logger.Warn("upstream call failed",
			"namespace", namespace,
			"procedure", procedure,
			"failures", failures,
			"error", callErr,
		)

		if failures >= abandonAfter {
			m.logger.Error("abandoning upstream call",
				"namespace", namespace,
				"procedure", procedure,
			)
			return nil, ErrUpstream
		}

		if err := m.backoff(ctx, failures); err != nil {
			return nil, err
		}

		if failures%reconnectEvery == 0 {
			m.logger.Info("forcing reconnect after repeated call failures",
				"failures", failures,
			)
			if _, err := m.swap(ctx, sess); err != nil {
				return nil, err
			}
		}
	}
}

// backoff sleeps (n/2)^2 units, capped.
func (m *Manager) backoff(ctx context.Context, n int) error {
	unit := m.cfg.BackoffUnit
	if unit <= 0 {
		unit = time.Second
	}

	half := float64(n) / 2
	units := half * half
	if units > maxBackoffUnit {
		units = maxBackoffUnit
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Duration(units * float64(unit))):
		return nil
	}
}
