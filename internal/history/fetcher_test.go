package history

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/squidKid-deluxe/bitshares-dex-ux/internal/config"
)

func fillHitJSON(unixMS int64, pays, receives string) string {
	op := fmt.Sprintf(`[4,{\"pays\":%s,\"receives\":%s}]`, pays, receives)
	return fmt.Sprintf(`{
		"sort": [%d],
		"fields": {
			"operation_history.op": ["%s"],
			"account_history.account.keyword": ["1.2.100"],
			"account_history.operation_id": ["1.11.%d"],
			"block_data.block_num": [1]
		}
	}`, unixMS, op, unixMS)
}

func pageJSON(hits ...string) string {
	out := `{"hits":{"hits":[`
	for i, h := range hits {
		if i > 0 {
			out += ","
		}
		out += h
	}
	return out + `]}}`
}

const (
	paysBTS    = `{\"amount\":\"1000000\",\"asset_id\":\"1.3.0\"}`
	recvHonest = `{\"amount\":\"500\",\"asset_id\":\"1.3.5640\"}`
)

func archiveFetcher(t *testing.T, handler http.HandlerFunc, mark int64) *Fetcher {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.HistoryConfig{
		URL:       srv.URL,
		Index:     "bitshares-test",
		Staleness: 300 * time.Second,
		BatchCap:  50000,
		PageSize:  10000,
		PageDelay: time.Millisecond,
	}
	assets := fakeAssets{"1.3.0": 5, "1.3.5640": 4}
	return NewFetcher(cfg, assets, fakeMarks(mark), nil)
}

func TestFetchWalksBackwardsAndReturnsAscending(t *testing.T) {
	var requests atomic.Int64

	handler := func(w http.ResponseWriter, r *http.Request) {
		var query map[string]any
		json.NewDecoder(r.Body).Decode(&query)

		switch requests.Add(1) {
		case 1:
			fmt.Fprint(w, pageJSON(
				fillHitJSON(3000000, paysBTS, recvHonest),
				fillHitJSON(2000000, paysBTS, recvHonest),
			))
		default:
			// Single hit ends pagination.
			fmt.Fprint(w, pageJSON(fillHitJSON(1000000, paysBTS, recvHonest)))
		}
	}

	f := archiveFetcher(t, handler, 0)
	ticks, err := f.Fetch(context.Background(), "BTS:HONEST.MONEY", 0, 4000)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if got := requests.Load(); got != 2 {
		t.Errorf("requests = %d, want 2", got)
	}
	if len(ticks) != 2 {
		t.Fatalf("len(ticks) = %d, want 2", len(ticks))
	}
	if ticks[0].UnixMS != 2000000 || ticks[1].UnixMS != 3000000 {
		t.Errorf("tick order = %d, %d, want ascending 2000000, 3000000", ticks[0].UnixMS, ticks[1].UnixMS)
	}
}

func TestFetchNarrowsWindowToEarliestEvent(t *testing.T) {
	var stops []string

	handler := func(w http.ResponseWriter, r *http.Request) {
		var query struct {
			Query struct {
				Bool struct {
					Filter []json.RawMessage `json:"filter"`
				} `json:"bool"`
			} `json:"query"`
		}
		json.NewDecoder(r.Body).Decode(&query)
		for _, f := range query.Query.Bool.Filter {
			var rangeFilter struct {
				Range map[string]struct {
					LTE string `json:"lte"`
				} `json:"range"`
			}
			if json.Unmarshal(f, &rangeFilter) == nil && len(rangeFilter.Range) > 0 {
				stops = append(stops, rangeFilter.Range["block_data.block_time"].LTE)
			}
		}

		if len(stops) == 1 {
			fmt.Fprint(w, pageJSON(
				fillHitJSON(3600000000, paysBTS, recvHonest),
				fillHitJSON(3000000000, paysBTS, recvHonest),
			))
			return
		}
		fmt.Fprint(w, pageJSON())
	}

	f := archiveFetcher(t, handler, 0)
	if _, err := f.Fetch(context.Background(), "BTS:HONEST.MONEY", 0, 7200); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if len(stops) != 2 {
		t.Fatalf("len(stops) = %d, want 2", len(stops))
	}
	// The second query's upper bound is the first page's earliest
	// event, 3000000 seconds into the epoch.
	if want := "1970-02-04T17:20:00"; stops[1] != want {
		t.Errorf("narrowed stop = %q, want %q", stops[1], want)
	}
}

func TestFetchStopsOnRepeatedPage(t *testing.T) {
	var requests atomic.Int64

	handler := func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		fmt.Fprint(w, pageJSON(
			fillHitJSON(3000000, paysBTS, recvHonest),
			fillHitJSON(2000000, paysBTS, recvHonest),
		))
	}

	f := archiveFetcher(t, handler, 0)
	ticks, err := f.Fetch(context.Background(), "BTS:HONEST.MONEY", 0, 4000)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if got := requests.Load(); got != 2 {
		t.Errorf("requests = %d, want 2 (second identical page ends the walk)", got)
	}
	if len(ticks) != 2 {
		t.Errorf("len(ticks) = %d, want 2", len(ticks))
	}
}

func TestFetchSkipsWhenCacheIsFresh(t *testing.T) {
	var requests atomic.Int64
	handler := func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		fmt.Fprint(w, pageJSON())
	}

	stop := int64(10000)
	f := archiveFetcher(t, handler, stop-100)

	ticks, err := f.Fetch(context.Background(), "BTS:HONEST.MONEY", 0, stop)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if ticks != nil {
		t.Errorf("ticks = %v, want nil", ticks)
	}
	if got := requests.Load(); got != 0 {
		t.Errorf("requests = %d, want 0", got)
	}
}

func TestFetchDegradesOnArchiveFailure(t *testing.T) {
	var requests atomic.Int64
	handler := func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			fmt.Fprint(w, pageJSON(
				fillHitJSON(3000000, paysBTS, recvHonest),
				fillHitJSON(2000000, paysBTS, recvHonest),
			))
			return
		}
		http.Error(w, "shard failure", http.StatusInternalServerError)
	}

	f := archiveFetcher(t, handler, 0)
	ticks, err := f.Fetch(context.Background(), "BTS:HONEST.MONEY", 0, 4000)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(ticks) != 2 {
		t.Errorf("len(ticks) = %d, want the partial window of 2", len(ticks))
	}
}
