package candles

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/squidKid-deluxe/bitshares-dex-ux/internal/config"
	"github.com/squidKid-deluxe/bitshares-dex-ux/internal/model"
	"github.com/squidKid-deluxe/bitshares-dex-ux/internal/store"
)

// TickSource provides trade events for a pair and time window. A nil
// slice with nil error means the cached data is fresh enough.
type TickSource interface {
	Fetch(ctx context.Context, pair string, start, stop int64) ([]model.TradeTick, error)
}

// Repository is the slice of the cache store the service needs.
type Repository interface {
	Ensure(ctx context.Context, pair string, endUnix int64) error
	Get(ctx context.Context, pair string) (*store.Record, bool, error)
	Update(ctx context.Context, rec *store.Record) error
	AssetID(ctx context.Context, symbol string) (string, error)
}

// NameSource resolves account ids to names for hover annotations.
type NameSource interface {
	LookupAccountNames(ctx context.Context, accountIDs []string) (map[string]string, error)
}

// Request selects one chart: a market in either orientation, the
// charting library flavor, and a resolution column or "discrete".
type Request struct {
	Market     string // "1.3.0:1.3.861" or a pool id "1.19.x"
	ChartType  string
	Resolution string // "c900".."c86400" or "discrete"
}

// Service reconciles cached candle records against the trade archive
// and shapes them for the frontend.
type Service struct {
	cfg    config.HistoryConfig
	repo   Repository
	ticks  TickSource
	names  NameSource          // nil = hover names left empty
	cache  *store.PayloadCache // nil = no hot payload cache
	logger *slog.Logger
	now    func() time.Time
}

// NewService wires a candle service.
func NewService(cfg config.HistoryConfig, repo Repository, ticks TickSource, names NameSource, cache *store.PayloadCache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:    cfg,
		repo:   repo,
		ticks:  ticks,
		names:  names,
		cache:  cache,
		logger: logger,
		now:    time.Now,
	}
}

// resolve maps a requested market onto its canonical storage pair and
// reports whether the requested orientation is inverted. Pool ids are
// their own storage key and never inverted.
func (s *Service) resolve(ctx context.Context, market string) (string, bool, error) {
	if model.IsPool(market) {
		return market, false, nil
	}

	m, err := model.ParseMarket(market)
	if err != nil {
		return "", false, err
	}
	if !strings.HasPrefix(m.Base, "1.3.") {
		if m.Base, err = s.repo.AssetID(ctx, m.Base); err != nil {
			return "", false, err
		}
	}
	if !strings.HasPrefix(m.Quote, "1.3.") {
		if m.Quote, err = s.repo.AssetID(ctx, m.Quote); err != nil {
			return "", false, err
		}
	}

	canonical, inverted, err := m.Canonical()
	if err != nil {
		return "", false, err
	}
	return canonical.Pair(), inverted, nil
}

// parseResolution validates a resolution column name. discrete is true
// for the raw trade window.
func parseResolution(resolution string) (res int64, discrete bool, err error) {
	if resolution == ResolutionDiscrete {
		return 0, true, nil
	}
	if !strings.HasPrefix(resolution, "c") {
		return 0, false, fmt.Errorf("unknown resolution %q", resolution)
	}
	res, err = strconv.ParseInt(resolution[1:], 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("unknown resolution %q", resolution)
	}
	for _, known := range model.Resolutions {
		if res == known {
			return res, false, nil
		}
	}
	return 0, false, fmt.Errorf("unknown resolution %q", resolution)
}

// Chart runs the full refresh pipeline for one request: fetch the
// missing archive window, reconcile it into the cached record, persist,
// and shape the reply. A degraded archive serves whatever the cache
// already holds.
func (s *Service) Chart(ctx context.Context, req Request) (ChartPayload, error) {
	if _, _, err := parseResolution(req.Resolution); err != nil {
		return ChartPayload{}, err
	}

	pair, inverted, err := s.resolve(ctx, req.Market)
	if err != nil {
		return ChartPayload{}, err
	}

	now := s.now().Unix()
	staleness := int64(s.cfg.Staleness.Seconds())

	rec, ok, err := s.repo.Get(ctx, pair)
	if err != nil {
		return ChartPayload{}, err
	}

	var start, oldEnd int64
	if !ok {
		// First sight of this market: backfill the full depth and set
		// the watermark so the fetch below is never skipped.
		oldEnd = now - staleness
		if err := s.repo.Ensure(ctx, pair, oldEnd); err != nil {
			return ChartPayload{}, err
		}
		rec = store.NewRecord(pair, oldEnd)
		start = now - int64(s.cfg.Depth.Seconds())
	} else {
		oldEnd = rec.EndUnix
		start = oldEnd - int64(s.cfg.Overlap.Seconds())
	}
	// Query slightly into the future so clock skew cannot hide the
	// newest trades.
	stop := now + 10

	fresh, err := s.ticks.Fetch(ctx, pair, start, stop)
	if err != nil {
		s.logger.Warn("archive fetch failed, serving cached data", "pair", pair, "error", err)
		fresh = nil
	}

	Reconcile(rec, fresh)

	// Only advance the watermark when the fetch was actually due, so a
	// skipped fetch cannot mark stale data fresh.
	if stop-oldEnd >= staleness {
		rec.EndUnix = stop
	} else {
		rec.EndUnix = oldEnd
	}

	if err := s.repo.Update(ctx, rec); err != nil {
		return ChartPayload{}, err
	}

	payload, err := s.buildPayload(ctx, rec, req, inverted)
	if err != nil {
		return ChartPayload{}, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(payload); err == nil {
			s.cache.Set(ctx, store.ChartKey(req.Market, req.ChartType, req.Resolution), data)
		}
	}
	return payload, nil
}

// CachedChart answers from the hot payload cache, or failing that from
// the persisted record without touching the archive. ok is false when
// nothing cached can serve the request.
func (s *Service) CachedChart(ctx context.Context, req Request) (json.RawMessage, bool) {
	key := store.ChartKey(req.Market, req.ChartType, req.Resolution)
	if s.cache != nil {
		if data, ok := s.cache.Get(ctx, key); ok {
			return data, true
		}
	}

	pair, inverted, err := s.resolve(ctx, req.Market)
	if err != nil {
		return nil, false
	}
	rec, ok, err := s.repo.Get(ctx, pair)
	if err != nil || !ok {
		return nil, false
	}
	payload, err := s.buildPayload(ctx, rec, req, inverted)
	if err != nil {
		return nil, false
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, false
	}
	return data, true
}

// buildPayload shapes one record for the requested chart type,
// resolution, and orientation.
func (s *Service) buildPayload(ctx context.Context, rec *store.Record, req Request, inverted bool) (ChartPayload, error) {
	res, discrete, err := parseResolution(req.Resolution)
	if err != nil {
		return ChartPayload{}, err
	}

	if discrete {
		ticks := rec.Discrete
		if inverted {
			ticks = InvertTicks(ticks)
		}
		return ChartPayload{
			ChartType:  req.ChartType,
			Series:     DiscreteSeries(ticks, s.accountNames(ctx, ticks)),
			Resolution: req.Resolution,
		}, nil
	}

	series := rec.Series[res]
	if inverted {
		series = InvertCandles(series)
	}
	formatted, err := FormatSeries(req.ChartType, series)
	if err != nil {
		return ChartPayload{}, err
	}
	return ChartPayload{
		ChartType:  req.ChartType,
		Series:     formatted,
		Resolution: req.Resolution,
	}, nil
}

// accountNames resolves the unique trading accounts of a window. Name
// lookup failures degrade to empty names.
func (s *Service) accountNames(ctx context.Context, ticks []model.TradeTick) map[string]string {
	if s.names == nil || len(ticks) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(ticks))
	var ids []string
	for _, t := range ticks {
		if t.Account == "" {
			continue
		}
		if _, dup := seen[t.Account]; dup {
			continue
		}
		seen[t.Account] = struct{}{}
		ids = append(ids, t.Account)
	}

	names, err := s.names.LookupAccountNames(ctx, ids)
	if err != nil {
		s.logger.Warn("account name lookup failed", "error", err)
		return nil
	}
	return names
}
