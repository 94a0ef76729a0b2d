package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Resolutions are the seven fixed candle bucket widths, in seconds.
var Resolutions = []int64{900, 1800, 3600, 7200, 14400, 43200, 86400}

// ClipBound is the maximum retained length of a cached candle series or
// discrete tick window.
const ClipBound = 2000

// PoolPrefix marks liquidity pool object ids.
const PoolPrefix = "1.19."

// IsPool reports whether the contract id refers to a liquidity pool.
func IsPool(id string) bool {
	return strings.HasPrefix(id, PoolPrefix)
}

// AssetInstance extracts the numeric instance from an asset object id
// such as "1.3.861".
func AssetInstance(id string) (int64, error) {
	parts := strings.Split(id, ".")
	if len(parts) != 3 {
		return 0, fmt.Errorf("malformed asset id %q", id)
	}
	n, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed asset id %q: %w", id, err)
	}
	return n, nil
}

// Market is an ordered pair of asset ids as the caller requested it.
type Market struct {
	Base  string // asset id, e.g. "1.3.0"
	Quote string // asset id, e.g. "1.3.861"
}

// ParseMarket splits a "base:quote" pair string.
func ParseMarket(pair string) (Market, error) {
	parts := strings.SplitN(pair, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Market{}, fmt.Errorf("malformed market pair %q", pair)
	}
	return Market{Base: parts[0], Quote: parts[1]}, nil
}

// Pair renders the market as "base:quote".
func (m Market) Pair() string {
	return m.Base + ":" + m.Quote
}

// Canonical returns the market with assets ordered by ascending instance
// id, and whether the requested order differs from canonical. All stored
// data is keyed by the canonical pair; inverted responses flip
// price-bearing fields only.
func (m Market) Canonical() (Market, bool, error) {
	base, err := AssetInstance(m.Base)
	if err != nil {
		return Market{}, false, err
	}
	quote, err := AssetInstance(m.Quote)
	if err != nil {
		return Market{}, false, err
	}
	if base > quote {
		return Market{Base: m.Quote, Quote: m.Base}, true, nil
	}
	return m, false, nil
}

// TradeTick is one normalized trade event. Immutable once produced.
type TradeTick struct {
	UnixMS   int64   `json:"unix"`
	Price    float64 `json:"price"`
	Volume   float64 `json:"volume"`
	Account  string  `json:"account"`
	BlockNum int64   `json:"block"`
	OpID     string  `json:"op_id"`
}

// Candle is an OHLCV aggregate over one fixed time bucket. Time is the
// bucket boundary in milliseconds.
type Candle struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// SeriesColumn names the cache store column for a resolution ("c900").
func SeriesColumn(resolution int64) string {
	return "c" + strconv.FormatInt(resolution, 10)
}

// Book holds one side-sorted orderbook: bids descending, asks ascending
// by price. Each level is (price, base volume, quote volume).
type Book struct {
	Bids []BookLevel `json:"bids"`
	Asks []BookLevel `json:"asks"`
}

// BookLevel is a single price level of an orderbook.
type BookLevel struct {
	Price       float64 `json:"price"`
	BaseVolume  float64 `json:"base_volume"`
	QuoteVolume float64 `json:"quote_volume"`
}
