package candles

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/squidKid-deluxe/bitshares-dex-ux/internal/model"
)

// Chart types understood by the frontend charting libraries.
const (
	ChartLine     = "line"
	ChartCandle   = "candle"
	ChartAdvanced = "advanced"
)

// ResolutionDiscrete selects the raw trade window instead of a candle
// series.
const ResolutionDiscrete = "discrete"

// ChartPayload is one candles reply. It serializes as the three-element
// array the frontend expects: chart type, series, resolution.
type ChartPayload struct {
	ChartType  string
	Series     any
	Resolution string
}

func (p ChartPayload) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{p.ChartType, p.Series, p.Resolution})
}

type linePoint struct {
	Time  float64 `json:"time"`
	Value float64 `json:"value"`
}

type candlePoint struct {
	Time   float64 `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

type advancedPoint struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// FormatSeries shapes a candle series for one charting library. Line
// and candle charts take seconds, the advanced chart keeps millisecond
// timestamps.
func FormatSeries(chartType string, series []model.Candle) (any, error) {
	switch chartType {
	case ChartLine:
		out := make([]linePoint, len(series))
		for i, c := range series {
			out[i] = linePoint{Time: float64(c.Time) / 1000, Value: c.Close}
		}
		return out, nil

	case ChartCandle:
		out := make([]candlePoint, len(series))
		for i, c := range series {
			out[i] = candlePoint{
				Time: float64(c.Time) / 1000,
				Open: c.Open, High: c.High, Low: c.Low, Close: c.Close,
				Volume: c.Volume,
			}
		}
		return out, nil

	case ChartAdvanced:
		out := make([]advancedPoint, len(series))
		for i, c := range series {
			out[i] = advancedPoint{
				Timestamp: c.Time,
				Open:      c.Open, High: c.High, Low: c.Low, Close: c.Close,
				Volume: c.Volume,
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("unknown chart type %q", chartType)
}

// InvertCandles flips a series into the opposite market orientation.
// Prices become their reciprocals; time and volume are untouched.
func InvertCandles(series []model.Candle) []model.Candle {
	out := make([]model.Candle, len(series))
	for i, c := range series {
		out[i] = model.Candle{
			Time:   c.Time,
			Open:   1 / c.Open,
			High:   1 / c.High,
			Low:    1 / c.Low,
			Close:  1 / c.Close,
			Volume: c.Volume,
		}
	}
	return out
}

// InvertTicks flips trade events into the opposite orientation. Only
// the price is reciprocal; volume stays in the received asset.
func InvertTicks(ticks []model.TradeTick) []model.TradeTick {
	out := make([]model.TradeTick, len(ticks))
	for i, t := range ticks {
		t.Price = 1 / t.Price
		out[i] = t
	}
	return out
}

// DiscreteSeries shapes the raw trade window column-wise, with a hover
// annotation per trade. names maps account ids to account names; ids
// with no entry render with an empty name.
func DiscreteSeries(ticks []model.TradeTick, names map[string]string) []any {
	n := len(ticks)
	var (
		times    = make([]int64, n)
		prices   = make([]float64, n)
		volumes  = make([]float64, n)
		accounts = make([]string, n)
		blocks   = make([]int64, n)
		opIDs    = make([]string, n)
		hovers   = make([]string, n)
	)
	for i, t := range ticks {
		times[i] = t.UnixMS
		prices[i] = t.Price
		volumes[i] = t.Volume
		accounts[i] = t.Account
		blocks[i] = t.BlockNum
		opIDs[i] = t.OpID
		hovers[i] = onHover(t, names[t.Account])
	}
	return []any{times, prices, volumes, accounts, blocks, opIDs, hovers}
}

// onHover renders the tooltip for one trade: who, where on chain, when,
// and how much.
func onHover(t model.TradeTick, name string) string {
	utc := time.UnixMilli(t.UnixMS).UTC().Format("2006-01-02T15:04:05")
	baseAmt := t.Volume / t.Price
	return fmt.Sprintf("%s<br>%s<br>%s<br>%d<br>%d<br>%s<br>%g<br>%g<br>%g",
		name, t.Account, t.OpID, t.BlockNum, t.UnixMS, utc, t.Volume, baseAmt, t.Price)
}
