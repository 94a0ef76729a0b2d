package server

import (
	"math"
	"sort"

	"github.com/squidKid-deluxe/bitshares-dex-ux/internal/model"
)

// PoolBook synthesizes an orderbook from constant-product pool
// balances: 98 levels per side, each consuming one more percent of the
// A-side balance, priced by the invariant x*y=k.
func PoolBook(balanceA, balanceB float64) model.Book {
	k := balanceA * balanceB
	step := 0.01 * balanceA

	var book model.Book
	for i := 1; i < 99; i++ {
		deltaA := float64(i) * step

		// Buying into the pool grows balance A.
		askB := k / (balanceA + deltaA)
		askDeltaB := math.Abs(balanceB - askB)
		askPrice := deltaA / askDeltaB
		book.Asks = append(book.Asks, model.BookLevel{
			Price:       askPrice,
			BaseVolume:  step,
			QuoteVolume: step / askPrice,
		})

		// Selling out of the pool shrinks it.
		bidB := k / (balanceA - deltaA)
		bidDeltaB := math.Abs(balanceB - bidB)
		bidPrice := deltaA / bidDeltaB
		book.Bids = append(book.Bids, model.BookLevel{
			Price:       bidPrice,
			BaseVolume:  step,
			QuoteVolume: step / bidPrice,
		})
	}

	sort.Slice(book.Asks, func(i, j int) bool { return book.Asks[i].Price < book.Asks[j].Price })
	sort.Slice(book.Bids, func(i, j int) bool { return book.Bids[i].Price > book.Bids[j].Price })
	return book
}
