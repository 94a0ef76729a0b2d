package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/squidKid-deluxe/bitshares-dex-ux/internal/candles"
	"github.com/squidKid-deluxe/bitshares-dex-ux/internal/config"
	"github.com/squidKid-deluxe/bitshares-dex-ux/internal/model"
	"github.com/squidKid-deluxe/bitshares-dex-ux/internal/node"
	"github.com/squidKid-deluxe/bitshares-dex-ux/internal/store"
	"github.com/squidKid-deluxe/bitshares-dex-ux/internal/supervisor"
)

// reply is the envelope for every frame sent to a client.
type reply struct {
	Resource string `json:"resource"`
	Payload  any    `json:"payload"`
}

// client is the state of one WebSocket connection.
type client struct {
	id     string
	conn   *websocket.Conn
	nodes  *node.Manager
	jobs   *supervisor.Supervisor
	charts *candles.Service
	assets *store.Store
	cfg    config.ServerConfig
	logger *slog.Logger

	writeMu sync.Mutex
}

// send writes one reply frame. Concurrent jobs serialize here.
func (c *client) send(resource string, payload any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return c.conn.WriteJSON(reply{Resource: resource, Payload: payload})
}

// run dispatches the connect-time request, then serves JSON request
// frames until the client goes away.
func (c *client) run(ctx context.Context, initial Request) {
	c.dispatch(ctx, initial)

	for {
		var req Request
		if err := c.conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("client read failed", "error", err)
			}
			return
		}
		c.dispatch(ctx, req)
	}
}

// dispatch turns a request into a supervised job. Candle requests also
// get a synchronous cached reply before the refresh job runs; stale is
// ok, bad UX is not.
func (c *client) dispatch(ctx context.Context, req Request) {
	req = req.normalize(c.cfg.DefaultPair)
	key := req.identity()

	var err error
	switch req.Resource {
	case "blocknum":
		err = c.jobs.Launch("blocknum", "", func(ctx context.Context) { c.serveBlocknum(ctx) })
	case "ticker":
		err = c.jobs.Launch("ticker", key, func(ctx context.Context) { c.serveTicker(ctx, req) })
	case "book":
		err = c.jobs.Launch("book", key, func(ctx context.Context) { c.serveBook(ctx, req) })
	case "candles":
		c.serveCachedCandles(ctx, req)
		err = c.jobs.Launch("candles", key, func(ctx context.Context) { c.serveCandles(ctx, req) })
	case "list_assets":
		err = c.jobs.Launch("list_assets", key, func(ctx context.Context) { c.serveAssets(ctx, req) })
	default:
		c.logger.Warn("unknown resource", "resource", req.Resource)
		return
	}
	if err != nil {
		c.logger.Debug("request after shutdown dropped", "resource", req.Resource)
	}
}

func (c *client) serveBlocknum(ctx context.Context) {
	head, err := c.nodes.HeadBlockNumber(ctx)
	if err != nil {
		c.logger.Warn("head block unavailable", "error", err)
		return
	}
	c.send("blocknum", head)
}

func (c *client) serveTicker(ctx context.Context, req Request) {
	// Pools have no 24h ticker upstream; the frontend expects an empty
	// payload for them.
	if model.IsPool(req.Contract) {
		c.send("ticker", "")
		return
	}

	asset, currency := req.split()
	ticker, err := c.nodes.Ticker(ctx, asset, currency)
	if err != nil {
		c.logger.Warn("ticker unavailable", "pair", req.Pair, "error", err)
		return
	}
	c.send("ticker", json.RawMessage(ticker))
}

func (c *client) serveBook(ctx context.Context, req Request) {
	asset, currency := req.split()

	var book model.Book
	if model.IsPool(req.Contract) {
		pool, err := c.assets.Pool(ctx, asset, currency, req.Contract)
		if err != nil {
			c.logger.Warn("pool lookup failed", "contract", req.Contract, "error", err)
			return
		}
		book = PoolBook(pool.BalanceA, pool.BalanceB)
	} else {
		var err error
		book, err = c.nodes.OrderBook(ctx, asset, currency, req.Depth)
		if err != nil {
			c.logger.Warn("orderbook unavailable", "pair", req.Pair, "error", err)
			return
		}
	}
	c.send("book", book)
}

// chartRequest maps a client request onto the candle service. A pool
// contract overrides the symbol pair as the market key.
func (r Request) chartRequest() candles.Request {
	market := r.Pair
	if r.Contract != "1.0.0" {
		market = r.Contract
	}
	return candles.Request{
		Market:     market,
		ChartType:  r.ChartType,
		Resolution: r.CandleSize,
	}
}

func (c *client) serveCachedCandles(ctx context.Context, req Request) {
	if data, ok := c.charts.CachedChart(ctx, req.chartRequest()); ok {
		c.send("candles", json.RawMessage(data))
	}
}

func (c *client) serveCandles(ctx context.Context, req Request) {
	payload, err := c.charts.Chart(ctx, req.chartRequest())
	if err != nil {
		c.logger.Warn("candle refresh failed", "pair", req.Pair, "error", err)
		return
	}
	c.send("candles", payload)
}

func (c *client) serveAssets(ctx context.Context, req Request) {
	entries, err := c.assets.ListAssets(ctx, req.Search, req.typeFilter())
	if err != nil {
		c.logger.Warn("asset listing failed", "search", req.Search, "error", err)
		return
	}
	c.send("list_assets", entries)
}
