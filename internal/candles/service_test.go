package candles

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/squidKid-deluxe/bitshares-dex-ux/internal/config"
	"github.com/squidKid-deluxe/bitshares-dex-ux/internal/model"
	"github.com/squidKid-deluxe/bitshares-dex-ux/internal/store"
)

type fakeRepo struct {
	records map[string]*store.Record
	ids     map[string]string

	ensuredPair string
	ensuredEnd  int64
	updated     *store.Record
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		records: make(map[string]*store.Record),
		ids: map[string]string{
			"BTS":          "1.3.0",
			"HONEST.MONEY": "1.3.5640",
		},
	}
}

func (r *fakeRepo) Ensure(ctx context.Context, pair string, endUnix int64) error {
	r.ensuredPair, r.ensuredEnd = pair, endUnix
	return nil
}

func (r *fakeRepo) Get(ctx context.Context, pair string) (*store.Record, bool, error) {
	rec, ok := r.records[pair]
	return rec, ok, nil
}

func (r *fakeRepo) Update(ctx context.Context, rec *store.Record) error {
	r.updated = rec
	r.records[rec.Pair] = rec
	return nil
}

func (r *fakeRepo) AssetID(ctx context.Context, symbol string) (string, error) {
	id, ok := r.ids[symbol]
	if !ok {
		return "", fmt.Errorf("%s: %w", symbol, store.ErrUnknownAsset)
	}
	return id, nil
}

type fakeTicks struct {
	ticks       []model.TradeTick
	fetchedPair string
	start, stop int64
	calls       int
}

func (f *fakeTicks) Fetch(ctx context.Context, pair string, start, stop int64) ([]model.TradeTick, error) {
	f.calls++
	f.fetchedPair, f.start, f.stop = pair, start, stop
	return f.ticks, nil
}

const testNow = int64(1_700_000_000)

func testService(repo *fakeRepo, ticks *fakeTicks) *Service {
	cfg := config.HistoryConfig{
		Staleness: 300 * time.Second,
		Depth:     365 * 24 * time.Hour,
		Overlap:   48 * time.Hour,
	}
	svc := NewService(cfg, repo, ticks, nil, nil, nil)
	svc.now = func() time.Time { return time.Unix(testNow, 0) }
	return svc
}

func TestChartFirstSightBackfillsFullDepth(t *testing.T) {
	repo := newFakeRepo()
	ticks := &fakeTicks{ticks: []model.TradeTick{
		{UnixMS: (testNow - 60) * 1000, Price: 4, Volume: 1, OpID: "1.11.1"},
	}}
	svc := testService(repo, ticks)

	payload, err := svc.Chart(context.Background(), Request{
		Market: "BTS:HONEST.MONEY", ChartType: ChartLine, Resolution: "c900",
	})
	if err != nil {
		t.Fatalf("Chart() error = %v", err)
	}

	if repo.ensuredPair != "1.3.0:1.3.5640" {
		t.Errorf("ensured pair = %q, want canonical 1.3.0:1.3.5640", repo.ensuredPair)
	}
	if want := testNow - 300; repo.ensuredEnd != want {
		t.Errorf("ensured watermark = %d, want %d", repo.ensuredEnd, want)
	}
	if want := testNow - 365*86400; ticks.start != want {
		t.Errorf("fetch start = %d, want full depth %d", ticks.start, want)
	}
	if want := testNow + 10; ticks.stop != want {
		t.Errorf("fetch stop = %d, want %d", ticks.stop, want)
	}
	if repo.updated == nil || repo.updated.EndUnix != testNow+10 {
		t.Fatalf("updated watermark = %+v, want %d", repo.updated, testNow+10)
	}

	points := payload.Series.([]linePoint)
	if len(points) != 1 || points[0].Value != 4 {
		t.Errorf("series = %+v, want one point at 4", points)
	}
}

func TestChartResumesFromOverlapWindow(t *testing.T) {
	repo := newFakeRepo()
	rec := store.NewRecord("1.3.0:1.3.5640", testNow-3600)
	repo.records[rec.Pair] = rec
	ticks := &fakeTicks{}
	svc := testService(repo, ticks)

	if _, err := svc.Chart(context.Background(), Request{
		Market: "BTS:HONEST.MONEY", ChartType: ChartLine, Resolution: "c900",
	}); err != nil {
		t.Fatalf("Chart() error = %v", err)
	}

	if want := testNow - 3600 - 48*3600; ticks.start != want {
		t.Errorf("fetch start = %d, want watermark minus overlap %d", ticks.start, want)
	}
	if repo.ensuredPair != "" {
		t.Errorf("Ensure called for an existing record")
	}
}

func TestChartKeepsWatermarkWhenFresh(t *testing.T) {
	repo := newFakeRepo()
	rec := store.NewRecord("1.3.0:1.3.5640", testNow-60)
	repo.records[rec.Pair] = rec
	ticks := &fakeTicks{}
	svc := testService(repo, ticks)

	if _, err := svc.Chart(context.Background(), Request{
		Market: "BTS:HONEST.MONEY", ChartType: ChartLine, Resolution: "c900",
	}); err != nil {
		t.Fatalf("Chart() error = %v", err)
	}

	// stop minus the old watermark is under the staleness threshold, so
	// the watermark must not advance.
	if repo.updated.EndUnix != testNow-60 {
		t.Errorf("watermark = %d, want unchanged %d", repo.updated.EndUnix, testNow-60)
	}
}

func TestChartInvertsRequestedOrientation(t *testing.T) {
	repo := newFakeRepo()
	ticks := &fakeTicks{ticks: []model.TradeTick{
		{UnixMS: (testNow - 60) * 1000, Price: 4, Volume: 1, OpID: "1.11.1"},
	}}
	svc := testService(repo, ticks)

	payload, err := svc.Chart(context.Background(), Request{
		Market: "HONEST.MONEY:BTS", ChartType: ChartLine, Resolution: "c900",
	})
	if err != nil {
		t.Fatalf("Chart() error = %v", err)
	}

	// Storage stays canonical, the reply is flipped.
	if ticks.fetchedPair != "1.3.0:1.3.5640" {
		t.Errorf("fetched pair = %q, want canonical", ticks.fetchedPair)
	}
	points := payload.Series.([]linePoint)
	if len(points) != 1 || points[0].Value != 0.25 {
		t.Errorf("series = %+v, want reciprocal 0.25", points)
	}
}

func TestChartPoolPassthrough(t *testing.T) {
	repo := newFakeRepo()
	ticks := &fakeTicks{}
	svc := testService(repo, ticks)

	if _, err := svc.Chart(context.Background(), Request{
		Market: "1.19.305", ChartType: ChartCandle, Resolution: "c3600",
	}); err != nil {
		t.Fatalf("Chart() error = %v", err)
	}
	if ticks.fetchedPair != "1.19.305" {
		t.Errorf("fetched pair = %q, want the pool id as-is", ticks.fetchedPair)
	}
}

func TestChartRejectsBadRequests(t *testing.T) {
	svc := testService(newFakeRepo(), &fakeTicks{})

	cases := []Request{
		{Market: "BTS:HONEST.MONEY", ChartType: ChartLine, Resolution: "c42"},
		{Market: "BTS:HONEST.MONEY", ChartType: ChartLine, Resolution: "weekly"},
		{Market: "NOSUCH:BTS", ChartType: ChartLine, Resolution: "c900"},
		{Market: "BTS", ChartType: ChartLine, Resolution: "c900"},
	}
	for _, req := range cases {
		if _, err := svc.Chart(context.Background(), req); err == nil {
			t.Errorf("Chart(%+v) error = nil, want error", req)
		}
	}
}

func TestCachedChartMissWithoutRecord(t *testing.T) {
	svc := testService(newFakeRepo(), &fakeTicks{})

	if _, ok := svc.CachedChart(context.Background(), Request{
		Market: "BTS:HONEST.MONEY", ChartType: ChartLine, Resolution: "c900",
	}); ok {
		t.Error("CachedChart() ok = true, want miss with no record")
	}
}

func TestCachedChartServesPersistedRecord(t *testing.T) {
	repo := newFakeRepo()
	rec := store.NewRecord("1.3.0:1.3.5640", testNow)
	rec.Series[900] = []model.Candle{{Time: testNow * 1000, Close: 2}}
	repo.records[rec.Pair] = rec
	ticks := &fakeTicks{}
	svc := testService(repo, ticks)

	data, ok := svc.CachedChart(context.Background(), Request{
		Market: "BTS:HONEST.MONEY", ChartType: ChartLine, Resolution: "c900",
	})
	if !ok {
		t.Fatal("CachedChart() ok = false, want hit from the persisted record")
	}
	if len(data) == 0 {
		t.Error("CachedChart() returned empty payload")
	}
	if ticks.calls != 0 {
		t.Errorf("archive fetches = %d, want 0 on the fast path", ticks.calls)
	}
}
