package history

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/squidKid-deluxe/bitshares-dex-ux/internal/config"
)

type fakeAssets map[string]int

func (f fakeAssets) Precision(ctx context.Context, assetID string) (int, error) {
	p, ok := f[assetID]
	if !ok {
		return 0, fmt.Errorf("unknown asset %s", assetID)
	}
	return p, nil
}

type fakeMarks int64

func (f fakeMarks) EndUnix(ctx context.Context, pair string) (int64, error) {
	return int64(f), nil
}

func testFetcher(assets fakeAssets, mark int64) *Fetcher {
	cfg := config.HistoryConfig{Staleness: 300 * time.Second, BatchCap: 50000, PageSize: 10000}
	return NewFetcher(cfg, assets, fakeMarks(mark), slog.Default())
}

func mustHit(t *testing.T, raw string) hit {
	t.Helper()
	var h hit
	if err := json.Unmarshal([]byte(raw), &h); err != nil {
		t.Fatalf("bad test hit: %v", err)
	}
	return h
}

func TestNormalizeFillHit(t *testing.T) {
	f := testFetcher(fakeAssets{"1.3.0": 5, "1.3.5640": 4}, 0)

	h := mustHit(t, `{
		"sort": [1700000000000],
		"fields": {
			"operation_history.op": ["[4,{\"pays\":{\"amount\":\"1000000\",\"asset_id\":\"1.3.0\"},\"receives\":{\"amount\":\"500\",\"asset_id\":\"1.3.5640\"}}]"],
			"account_history.account.keyword": ["1.2.100"],
			"account_history.operation_id": ["1.11.999"],
			"block_data.block_num": [12345]
		}
	}`)

	tick, err := f.normalizeHit(context.Background(), h)
	if err != nil {
		t.Fatalf("normalizeHit() error = %v", err)
	}
	if tick.UnixMS != 1700000000000 {
		t.Errorf("UnixMS = %d, want 1700000000000", tick.UnixMS)
	}
	// 10 units of the lower asset paid for 0.05 of the higher, so the
	// canonical price is 200.
	if math.Abs(tick.Price-200) > 1e-9 {
		t.Errorf("Price = %v, want 200", tick.Price)
	}
	if math.Abs(tick.Volume-0.05) > 1e-12 {
		t.Errorf("Volume = %v, want 0.05", tick.Volume)
	}
	if tick.Account != "1.2.100" || tick.OpID != "1.11.999" || tick.BlockNum != 12345 {
		t.Errorf("metadata = %q %q %d, want 1.2.100 1.11.999 12345", tick.Account, tick.OpID, tick.BlockNum)
	}
}

func TestNormalizeSwapHitUsesResultFallback(t *testing.T) {
	f := testFetcher(fakeAssets{"1.3.0": 5, "1.3.1": 4}, 0)

	// Pool swaps carry the payload in the operation result, with the
	// paid side wrapped in an array.
	h := mustHit(t, `{
		"sort": [1700000500000],
		"fields": {
			"operation_history.operation_result.keyword": ["[63,{\"paid\":[{\"amount\":200000,\"asset_id\":\"1.3.1\"}],\"received\":{\"amount\":\"400000\",\"asset_id\":\"1.3.0\"}}]"],
			"account_history.account.keyword": ["1.2.7"],
			"account_history.operation_id": ["1.11.1000"],
			"block_data.block_num": [500]
		}
	}`)

	tick, err := f.normalizeHit(context.Background(), h)
	if err != nil {
		t.Fatalf("normalizeHit() error = %v", err)
	}
	// paid 20 of the higher asset, received 4 of the lower: price is
	// received/paid in canonical orientation.
	if math.Abs(tick.Price-0.2) > 1e-12 {
		t.Errorf("Price = %v, want 0.2", tick.Price)
	}
	if math.Abs(tick.Volume-4) > 1e-12 {
		t.Errorf("Volume = %v, want 4", tick.Volume)
	}
}

func TestNormalizePageDropsMalformedHits(t *testing.T) {
	f := testFetcher(fakeAssets{"1.3.0": 5, "1.3.5640": 4}, 0)

	good := mustHit(t, `{
		"sort": [1700000000000],
		"fields": {
			"operation_history.op": ["[4,{\"pays\":{\"amount\":\"1000000\",\"asset_id\":\"1.3.0\"},\"receives\":{\"amount\":\"500\",\"asset_id\":\"1.3.5640\"}}]"],
			"account_history.account.keyword": ["1.2.100"],
			"account_history.operation_id": ["1.11.999"],
			"block_data.block_num": [1]
		}
	}`)
	noPayload := mustHit(t, `{"sort": [1700000001000], "fields": {}}`)
	badJSON := mustHit(t, `{
		"sort": [1700000002000],
		"fields": {"operation_history.op": ["[4,{broken"]}
	}`)

	ticks := f.normalizePage(context.Background(), []hit{good, noPayload, badJSON})
	if len(ticks) != 1 {
		t.Fatalf("len(ticks) = %d, want 1", len(ticks))
	}
	if ticks[0].UnixMS != 1700000000000 {
		t.Errorf("kept wrong hit: %v", ticks[0])
	}
}

func TestNormalizeRejectsZeroAmounts(t *testing.T) {
	f := testFetcher(fakeAssets{"1.3.0": 5, "1.3.5640": 4}, 0)

	h := mustHit(t, `{
		"sort": [1700000000000],
		"fields": {
			"operation_history.op": ["[4,{\"pays\":{\"amount\":\"0\",\"asset_id\":\"1.3.0\"},\"receives\":{\"amount\":\"500\",\"asset_id\":\"1.3.5640\"}}]"]
		}
	}`)

	if _, err := f.normalizeHit(context.Background(), h); err == nil {
		t.Error("normalizeHit() error = nil, want error for zero amount")
	}
}
