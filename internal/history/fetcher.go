package history

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/squidKid-deluxe/bitshares-dex-ux/internal/config"
	"github.com/squidKid-deluxe/bitshares-dex-ux/internal/model"
)

// Watermark reports how fresh the cached data for a pair is.
type Watermark interface {
	EndUnix(ctx context.Context, pair string) (int64, error)
}

// Fetcher pulls trade history for one pair out of the archive.
type Fetcher struct {
	cfg    config.HistoryConfig
	http   *resty.Client
	assets AssetInfo
	marks  Watermark
	logger *slog.Logger
}

// NewFetcher creates a Fetcher against the configured archive.
func NewFetcher(cfg config.HistoryConfig, assets AssetInfo, marks Watermark, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.URL, "/")).
		SetHeader("Content-Type", "application/json").
		SetTimeout(30 * time.Second)
	return &Fetcher{
		cfg:    cfg,
		http:   client,
		assets: assets,
		marks:  marks,
		logger: logger,
	}
}

// Fetch returns all trade events for pair in [start, stop] seconds,
// ascending by time. When the cached watermark is fresher than the
// staleness threshold it returns nothing and the caller keeps serving
// from cache. A degraded archive yields whatever partial window was
// collected before the failure.
func (f *Fetcher) Fetch(ctx context.Context, pair string, start, stop int64) ([]model.TradeTick, error) {
	mark, err := f.marks.EndUnix(ctx, pair)
	if err != nil {
		return nil, err
	}
	if stop-mark < int64(f.cfg.Staleness.Seconds()) {
		f.logger.Debug("cached candles fresh enough, skipping archive", "pair", pair)
		return nil, nil
	}

	startMS := start * 1000
	stopMS := stop * 1000

	var final []model.TradeTick
	var prevBody []byte
	for {
		body, err := f.search(ctx, pair, startMS, stopMS)
		if err != nil {
			f.logger.Warn("archive query failed", "pair", pair, "error", err)
			break
		}

		var reply page
		if err := json.Unmarshal(body, &reply); err != nil {
			f.logger.Warn("unparseable archive reply", "pair", pair, "error", err)
			break
		}

		// No new data, a repeated page, or the batch cap: done.
		if len(reply.Hits.Hits) <= 1 || bytes.Equal(body, prevBody) || len(final) >= f.cfg.BatchCap {
			break
		}
		prevBody = body

		ticks := f.normalizePage(ctx, reply.Hits.Hits)
		if len(ticks) == 0 {
			break
		}
		final = append(final, ticks...)

		// Narrow the window to just before this page's earliest event
		// and walk further back.
		earliest := ticks[0].UnixMS
		for _, t := range ticks[1:] {
			if t.UnixMS < earliest {
				earliest = t.UnixMS
			}
		}
		stopMS = earliest

		f.logger.Debug("archive page collected", "pair", pair, "total", len(final))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.cfg.PageDelay):
		}
	}

	sort.Slice(final, func(i, j int) bool { return final[i].UnixMS < final[j].UnixMS })
	return final, nil
}

// search runs one archive query. Pool pairs query exchange operations,
// symbol pairs query orderbook fills.
func (f *Fetcher) search(ctx context.Context, pair string, startMS, stopMS int64) ([]byte, error) {
	var query map[string]any
	if model.IsPool(pair) {
		query = SwapsQuery(pair, startMS, stopMS, f.cfg.PageSize)
	} else {
		query = FillsQuery(pair, startMS, stopMS, f.cfg.PageSize)
	}

	resp, err := f.http.R().
		SetContext(ctx).
		SetBody(query).
		Post("/" + f.cfg.Index + "/_search")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("archive returned %s", resp.Status())
	}
	return resp.Body(), nil
}
