package server

import (
	"math"
	"testing"

	"github.com/squidKid-deluxe/bitshares-dex-ux/internal/model"
)

func TestPoolBookShape(t *testing.T) {
	book := PoolBook(100, 200)

	if len(book.Asks) != 98 || len(book.Bids) != 98 {
		t.Fatalf("levels = %d asks / %d bids, want 98 / 98", len(book.Asks), len(book.Bids))
	}

	for i := 1; i < len(book.Asks); i++ {
		if book.Asks[i].Price <= book.Asks[i-1].Price {
			t.Fatalf("asks not ascending at %d", i)
		}
	}
	for i := 1; i < len(book.Bids); i++ {
		if book.Bids[i].Price >= book.Bids[i-1].Price {
			t.Fatalf("bids not descending at %d", i)
		}
	}

	// The spread must straddle the spot price A/B.
	spot := 100.0 / 200.0
	if book.Bids[0].Price >= spot || book.Asks[0].Price <= spot {
		t.Errorf("spread [%v, %v] does not straddle spot %v",
			book.Bids[0].Price, book.Asks[0].Price, spot)
	}
}

func TestPoolBookInvariantPricing(t *testing.T) {
	book := PoolBook(100, 200)

	// First ask: adding 1% of A to the pool yields 200-20000/101 of B.
	wantAsk := 1.0 / (200 - 20000.0/101)
	if math.Abs(book.Asks[0].Price-wantAsk) > 1e-12 {
		t.Errorf("best ask = %v, want %v", book.Asks[0].Price, wantAsk)
	}

	wantBid := 1.0 / (20000.0/99 - 200)
	if math.Abs(book.Bids[0].Price-wantBid) > 1e-12 {
		t.Errorf("best bid = %v, want %v", book.Bids[0].Price, wantBid)
	}

	// Every level consumes the same slice of the A balance.
	for _, side := range [][]model.BookLevel{book.Asks, book.Bids} {
		for _, level := range side {
			if level.BaseVolume != 1 {
				t.Fatalf("BaseVolume = %v, want the 1%% step of 1", level.BaseVolume)
			}
			if math.Abs(level.QuoteVolume-1/level.Price) > 1e-12 {
				t.Fatalf("QuoteVolume = %v, want volume/price", level.QuoteVolume)
			}
		}
	}
}
