package candles

import (
	"fmt"
	"sort"

	"github.com/squidKid-deluxe/bitshares-dex-ux/internal/model"
	"github.com/squidKid-deluxe/bitshares-dex-ux/internal/store"
)

// Bucket groups trade events into fixed-size candles of the given
// resolution in seconds. An event lands in the bucket whose boundary is
// the first one strictly after its timestamp. Open and close follow
// event order within the bucket, so callers pass events sorted by time.
func Bucket(ticks []model.TradeTick, resolution int64) []model.Candle {
	if len(ticks) == 0 {
		return nil
	}
	size := resolution * 1000

	minT, maxT := ticks[0].UnixMS, ticks[0].UnixMS
	for _, t := range ticks[1:] {
		if t.UnixMS < minT {
			minT = t.UnixMS
		}
		if t.UnixMS > maxT {
			maxT = t.UnixMS
		}
	}
	start := size * (minT / size)
	stop := size * (maxT / size)

	// Boundaries pad one interval past each end so every event has a
	// boundary strictly after it.
	var breaks []int64
	for b := start - 2*size; b < stop+2*size; b += size {
		breaks = append(breaks, b)
	}

	buckets := make(map[int64][]model.TradeTick)
	for _, tick := range ticks {
		i := sort.Search(len(breaks), func(i int) bool { return breaks[i] > tick.UnixMS })
		buckets[breaks[i]] = append(buckets[breaks[i]], tick)
	}

	candles := make([]model.Candle, 0, len(buckets))
	for boundary, group := range buckets {
		c := model.Candle{
			Time: boundary,
			Open: group[0].Price,
			High: group[0].Price,
			Low:  group[0].Price,
		}
		for _, t := range group {
			if t.Price > c.High {
				c.High = t.Price
			}
			if t.Price < c.Low {
				c.Low = t.Price
			}
			c.Volume += t.Volume
		}
		c.Close = group[len(group)-1].Price
		candles = append(candles, c)
	}
	sort.Slice(candles, func(i, j int) bool { return candles[i].Time < candles[j].Time })
	return candles
}

// MergeCandles combines a cached series with a freshly computed one.
// At a shared timestamp the fresh candle wins. The result is sorted and
// clipped to the newest ClipBound entries.
func MergeCandles(old, fresh []model.Candle) []model.Candle {
	merged := make(map[int64]model.Candle, len(old)+len(fresh))
	for _, c := range old {
		merged[c.Time] = c
	}
	for _, c := range fresh {
		merged[c.Time] = c
	}

	out := make([]model.Candle, 0, len(merged))
	for _, c := range merged {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	if len(out) > model.ClipBound {
		out = out[len(out)-model.ClipBound:]
	}
	return out
}

// MergeTicks combines cached trade events with fresh ones, dropping
// duplicates by operation id. The result is sorted ascending and
// clipped to the newest ClipBound entries.
func MergeTicks(old, fresh []model.TradeTick) []model.TradeTick {
	key := func(t model.TradeTick) string {
		if t.OpID != "" {
			return t.OpID
		}
		return fmt.Sprintf("%d|%s|%g|%g", t.UnixMS, t.Account, t.Price, t.Volume)
	}

	seen := make(map[string]struct{}, len(old)+len(fresh))
	out := make([]model.TradeTick, 0, len(old)+len(fresh))
	for _, batch := range [][]model.TradeTick{old, fresh} {
		for _, t := range batch {
			k := key(t)
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, t)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].UnixMS < out[j].UnixMS })
	if len(out) > model.ClipBound {
		out = out[len(out)-model.ClipBound:]
	}
	return out
}

// Reconcile folds fresh trade events into a cached record: the event
// window is merged first, then every resolution is re-bucketed from the
// merged window and merged with its cached series. Reconciling the same
// events twice leaves the record unchanged.
func Reconcile(rec *store.Record, fresh []model.TradeTick) {
	rec.Discrete = MergeTicks(rec.Discrete, fresh)

	for _, res := range model.Resolutions {
		var computed []model.Candle
		if len(rec.Discrete) > 0 {
			computed = Bucket(rec.Discrete, res)
		}
		rec.Series[res] = MergeCandles(rec.Series[res], computed)
	}
}
