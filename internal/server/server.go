package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/squidKid-deluxe/bitshares-dex-ux/internal/candles"
	"github.com/squidKid-deluxe/bitshares-dex-ux/internal/config"
	"github.com/squidKid-deluxe/bitshares-dex-ux/internal/node"
	"github.com/squidKid-deluxe/bitshares-dex-ux/internal/nonce"
	"github.com/squidKid-deluxe/bitshares-dex-ux/internal/store"
	"github.com/squidKid-deluxe/bitshares-dex-ux/internal/supervisor"
)

// Server accepts client WebSocket connections and gives each one its
// own upstream session and job supervisor.
type Server struct {
	cfg    config.Config
	store  *store.Store
	ticks  candles.TickSource
	cache  *store.PayloadCache
	nonces *nonce.Allocator
	logger *slog.Logger

	upgrader websocket.Upgrader
}

// New wires a Server from shared infrastructure. cache may be nil.
func New(cfg config.Config, st *store.Store, ticks candles.TickSource, cache *store.PayloadCache, nonces *nonce.Allocator, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:    cfg,
		store:  st,
		ticks:  ticks,
		cache:  cache,
		nonces: nonces,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The frontend is served from arbitrary gateways.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Routes returns the HTTP mux for the listener.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// handleWS owns one client connection for its whole lifetime.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer conn.Close()

	id := uuid.NewString()
	logger := s.logger.With("client", id)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	nodes := node.NewManager(s.nodeConfig(), s.nonces, logger)
	defer nodes.Close()
	nodes.StartProber(ctx)

	jobs := supervisor.New(ctx, logger)
	defer jobs.CancelAll()

	charts := candles.NewService(s.cfg.History, s.store, s.ticks, nodes, s.cache, logger)

	c := &client{
		id:     id,
		conn:   conn,
		nodes:  nodes,
		jobs:   jobs,
		charts: charts,
		assets: s.store,
		cfg:    s.cfg.Server,
		logger: logger,
	}

	logger.Info("client connected", "remote", r.RemoteAddr)
	c.run(ctx, fromQuery(r.URL.Query()))
	logger.Info("client disconnected")
}

// nodeConfig maps the yaml node settings onto the connection manager.
func (s *Server) nodeConfig() node.Config {
	cfg := node.DefaultConfig(s.cfg.Nodes.URLs)
	if v := s.cfg.Nodes.HandshakeTimeout; v > 0 {
		cfg.HandshakeTimeout = v
	}
	if v := s.cfg.Nodes.ProbeInterval; v > 0 {
		cfg.ProbeInterval = v
	}
	if v := s.cfg.Nodes.CallTimeout; v > 0 {
		cfg.CallTimeout = v
	}
	if v := s.cfg.Nodes.WriteTimeout; v > 0 {
		cfg.WriteTimeout = v
	}
	if v := s.cfg.Nodes.BufferSize; v > 0 {
		cfg.BufferSize = v
	}
	return cfg
}
