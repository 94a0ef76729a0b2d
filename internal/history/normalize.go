package history

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/squidKid-deluxe/bitshares-dex-ux/internal/model"
)

// AssetInfo resolves on-chain asset metadata needed for scaling.
type AssetInfo interface {
	Precision(ctx context.Context, assetID string) (int, error)
}

// page is the envelope of one archive search reply.
type page struct {
	Hits struct {
		Hits []hit `json:"hits"`
	} `json:"hits"`
}

// hit is one archived operation. Every field arrives as a
// single-element array, and the op payload is a JSON string.
type hit struct {
	Sort   []float64            `json:"sort"`
	Fields map[string][]rawCell `json:"fields"`
}

type rawCell struct {
	raw json.RawMessage
}

func (c *rawCell) UnmarshalJSON(data []byte) error {
	c.raw = append(c.raw[:0], data...)
	return nil
}

func (h hit) field(name string) (json.RawMessage, bool) {
	cells, ok := h.Fields[name]
	if !ok || len(cells) == 0 {
		return nil, false
	}
	return cells[0].raw, true
}

func (h hit) stringField(name string) (string, bool) {
	raw, ok := h.field(name)
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// chainAmount is one side of an exchange as the chain records it, in
// integer satoshis of the asset.
type chainAmount struct {
	Amount  json.Number `json:"amount"`
	AssetID string      `json:"asset_id"`
}

// opBody tolerates both the fill and the swap spelling of the two
// exchange sides. Some archive entries wrap a side in an array.
type opBody struct {
	Pays     json.RawMessage `json:"pays"`
	Receives json.RawMessage `json:"receives"`
	Paid     json.RawMessage `json:"paid"`
	Received json.RawMessage `json:"received"`
}

func decodeAmount(raw json.RawMessage) (chainAmount, error) {
	var amt chainAmount
	if err := json.Unmarshal(raw, &amt); err == nil && amt.AssetID != "" {
		return amt, nil
	}
	var list []chainAmount
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return list[0], nil
	}
	return chainAmount{}, fmt.Errorf("unrecognized amount shape: %s", raw)
}

func firstRaw(candidates ...json.RawMessage) (json.RawMessage, bool) {
	for _, c := range candidates {
		if len(c) > 0 {
			return c, true
		}
	}
	return nil, false
}

// normalizeHit converts one archived operation into a trade event with
// human-unit amounts and the canonical price orientation.
func (f *Fetcher) normalizeHit(ctx context.Context, h hit) (model.TradeTick, error) {
	var tick model.TradeTick

	if len(h.Sort) == 0 {
		return tick, fmt.Errorf("hit missing sort timestamp")
	}
	tick.UnixMS = int64(h.Sort[0])

	op, ok := h.stringField("operation_history.op")
	if !ok {
		op, ok = h.stringField("operation_history.operation_result.keyword")
	}
	if !ok {
		return tick, fmt.Errorf("hit missing operation payload")
	}
	op = strings.ReplaceAll(op, `\`, "")

	// op is "[code, {...}]"
	var envelope []json.RawMessage
	if err := json.Unmarshal([]byte(op), &envelope); err != nil || len(envelope) < 2 {
		return tick, fmt.Errorf("malformed operation payload: %s", op)
	}
	var body opBody
	if err := json.Unmarshal(envelope[1], &body); err != nil {
		return tick, fmt.Errorf("malformed operation body: %w", err)
	}

	paidRaw, okPaid := firstRaw(body.Paid, body.Pays)
	receivedRaw, okReceived := firstRaw(body.Received, body.Receives)
	if !okPaid || !okReceived {
		return tick, fmt.Errorf("operation missing exchange sides")
	}
	paid, err := decodeAmount(paidRaw)
	if err != nil {
		return tick, err
	}
	received, err := decodeAmount(receivedRaw)
	if err != nil {
		return tick, err
	}

	paidAmt, err := f.humanAmount(ctx, paid)
	if err != nil {
		return tick, err
	}
	receivedAmt, err := f.humanAmount(ctx, received)
	if err != nil {
		return tick, err
	}
	if paidAmt == 0 || receivedAmt == 0 {
		return tick, fmt.Errorf("zero amount exchange")
	}

	lowID, highID, err := canonicalOrder(paid.AssetID, received.AssetID)
	if err != nil {
		return tick, err
	}
	switch {
	case paid.AssetID == lowID && received.AssetID == highID:
		tick.Price = paidAmt / receivedAmt
	case paid.AssetID == highID && received.AssetID == lowID:
		tick.Price = receivedAmt / paidAmt
	default:
		return tick, fmt.Errorf("exchange sides share an asset: %s", paid.AssetID)
	}
	tick.Volume = receivedAmt

	tick.Account, _ = h.stringField("account_history.account.keyword")
	tick.OpID, _ = h.stringField("account_history.operation_id")
	if raw, ok := h.field("block_data.block_num"); ok {
		json.Unmarshal(raw, &tick.BlockNum)
	}
	return tick, nil
}

// humanAmount scales a chain integer amount by its asset precision.
func (f *Fetcher) humanAmount(ctx context.Context, amt chainAmount) (float64, error) {
	precision, err := f.assets.Precision(ctx, amt.AssetID)
	if err != nil {
		return 0, fmt.Errorf("precision of %s: %w", amt.AssetID, err)
	}
	v, err := amt.Amount.Float64()
	if err != nil {
		return 0, fmt.Errorf("amount of %s: %w", amt.AssetID, err)
	}
	return v / math.Pow10(precision), nil
}

// canonicalOrder returns the two asset ids sorted by instance number,
// the orientation all stored prices use.
func canonicalOrder(a, b string) (low, high string, err error) {
	ai, err := model.AssetInstance(a)
	if err != nil {
		return "", "", err
	}
	bi, err := model.AssetInstance(b)
	if err != nil {
		return "", "", err
	}
	if ai < bi {
		return a, b, nil
	}
	return b, a, nil
}

// normalizePage converts a page of hits, dropping malformed entries
// with a warning rather than failing the whole fetch.
func (f *Fetcher) normalizePage(ctx context.Context, hits []hit) []model.TradeTick {
	ticks := make([]model.TradeTick, 0, len(hits))
	for _, h := range hits {
		tick, err := f.normalizeHit(ctx, h)
		if err != nil {
			f.logger.Warn("dropping malformed archive entry", "error", err)
			continue
		}
		ticks = append(ticks, tick)
	}
	return ticks
}
