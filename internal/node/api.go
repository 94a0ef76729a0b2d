package node

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/squidKid-deluxe/bitshares-dex-ux/internal/model"
)

// Typed wrappers over the raw correlator for the RPC surface the
// backend uses. All of them degrade with ErrUpstream when the node
// pool is temporarily unavailable.

// GetObjects returns chain objects keyed by requested id. Missing
// objects are omitted.
func (m *Manager) GetObjects(ctx context.Context, ids []string) (map[string]json.RawMessage, error) {
	raw, err := m.Call(ctx, "database", "get_objects", []any{ids})
	if err != nil {
		return nil, err
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("get_objects: %w", err)
	}

	objects := make(map[string]json.RawMessage, len(items))
	for idx, item := range items {
		if idx >= len(ids) || string(item) == "null" || len(item) == 0 {
			continue
		}
		objects[ids[idx]] = item
	}
	return objects, nil
}

// HeadBlockNumber returns the current head block of the chain.
func (m *Manager) HeadBlockNumber(ctx context.Context) (int64, error) {
	objects, err := m.GetObjects(ctx, []string{"2.1.0"})
	if err != nil {
		return 0, err
	}

	var props struct {
		HeadBlockNumber int64 `json:"head_block_number"`
	}
	raw, ok := objects["2.1.0"]
	if !ok {
		return 0, fmt.Errorf("head block: missing dynamic global properties")
	}
	if err := json.Unmarshal(raw, &props); err != nil {
		return 0, fmt.Errorf("head block: %w", err)
	}
	return props.HeadBlockNumber, nil
}

// Ticker returns the 24h market ticker for asset:currency (symbols).
func (m *Manager) Ticker(ctx context.Context, asset, currency string) (json.RawMessage, error) {
	raw, err := m.Call(ctx, "database", "get_ticker", []any{currency, asset, false})
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// rawOrder is one order of a get_order_book reply. Amounts arrive as
// strings in human units.
type rawOrder struct {
	Price string `json:"price"`
	Quote string `json:"quote"`
	Base  string `json:"base"`
}

// OrderBook fetches the depth-limited orderbook for asset:currency
// (symbols), sorted bids descending / asks ascending by price.
func (m *Manager) OrderBook(ctx context.Context, asset, currency string, depth int) (model.Book, error) {
	raw, err := m.Call(ctx, "database", "get_order_book", []any{currency, asset, depth})
	if err != nil {
		return model.Book{}, err
	}

	var reply struct {
		Asks []rawOrder `json:"asks"`
		Bids []rawOrder `json:"bids"`
	}
	if err := json.Unmarshal(raw, &reply); err != nil {
		return model.Book{}, fmt.Errorf("get_order_book: %w", err)
	}

	book := model.Book{
		Asks: bookSide(m, reply.Asks, asset+":"+currency),
		Bids: bookSide(m, reply.Bids, asset+":"+currency),
	}
	sort.Slice(book.Asks, func(i, j int) bool { return book.Asks[i].Price < book.Asks[j].Price })
	sort.Slice(book.Bids, func(i, j int) bool { return book.Bids[i].Price > book.Bids[j].Price })
	return book, nil
}

func bookSide(m *Manager, orders []rawOrder, pair string) []model.BookLevel {
	levels := make([]model.BookLevel, 0, len(orders))
	for _, o := range orders {
		price, err := strconv.ParseFloat(o.Price, 64)
		if err != nil {
			m.logger.Warn("unparseable order price", "pair", pair, "price", o.Price)
			continue
		}
		if price == 0 {
			m.logger.Warn("zero price in orderbook", "pair", pair)
		}
		quote, err := strconv.ParseFloat(o.Quote, 64)
		if err != nil {
			m.logger.Warn("unparseable order volume", "pair", pair, "quote", o.Quote)
			continue
		}
		levels = append(levels, model.BookLevel{
			Price:       price,
			BaseVolume:  quote,
			QuoteVolume: quote * price,
		})
	}
	return levels
}

// LookupAssetSymbol resolves an asset symbol to its object id.
func (m *Manager) LookupAssetSymbol(ctx context.Context, symbol string) (string, error) {
	raw, err := m.Call(ctx, "database", "lookup_asset_symbols", []any{[]string{symbol}})
	if err != nil {
		return "", err
	}

	var assets []struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &assets); err != nil {
		return "", fmt.Errorf("lookup_asset_symbols: %w", err)
	}
	if len(assets) == 0 || assets[0].ID == "" {
		return "", fmt.Errorf("lookup_asset_symbols: no match for %s", symbol)
	}
	return assets[0].ID, nil
}

// ListAssets lists up to depth assets starting at the given symbol
// prefix.
func (m *Manager) ListAssets(ctx context.Context, prefix string, depth int) (json.RawMessage, error) {
	return m.Call(ctx, "database", "list_assets", []any{prefix, depth})
}

// LookupAccountNames resolves account ids to names in chunks of 100.
func (m *Manager) LookupAccountNames(ctx context.Context, accountIDs []string) (map[string]string, error) {
	names := make(map[string]string, len(accountIDs))

	for start := 0; start < len(accountIDs); start += 100 {
		end := start + 100
		if end > len(accountIDs) {
			end = len(accountIDs)
		}
		chunk := accountIDs[start:end]

		objects, err := m.GetObjects(ctx, chunk)
		if err != nil {
			return nil, err
		}
		for id, raw := range objects {
			var account struct {
				Name string `json:"name"`
			}
			if err := json.Unmarshal(raw, &account); err != nil {
				continue
			}
			names[id] = account.Name
		}
	}
	return names, nil
}
