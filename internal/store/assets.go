package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
)

// ErrUnknownAsset is returned when an id or symbol has no assets row.
var ErrUnknownAsset = errors.New("unknown asset")

// Asset is one row of the asset registry.
type Asset struct {
	ID         string  `json:"id"`
	Symbol     string  `json:"symbol"`
	Precision  int     `json:"precision"`
	DynamicID  string  `json:"dynamic_id"`
	PoolID     string  `json:"pool_id"`
	BitassetID string  `json:"bitasset_id"`
	MakerFee   float64 `json:"maker_fee"`
	TakerFee   float64 `json:"taker_fee"`
}

// Pool is one liquidity pool row.
type Pool struct {
	ID             string  `json:"id"`
	AssetA         string  `json:"asset_a"`
	AssetB         string  `json:"asset_b"`
	AssetAName     string  `json:"asset_a_name"`
	AssetBName     string  `json:"asset_b_name"`
	BalanceA       float64 `json:"balance_a"`
	BalanceB       float64 `json:"balance_b"`
	ShareAsset     string  `json:"share_asset"`
	ShareAssetName string  `json:"share_asset_name"`
	XYK            string  `json:"xyk"`
}

// precisions are immutable chain data, memoized after first lookup.
var (
	precisionMu  sync.RWMutex
	precisionMap = make(map[string]int)
)

// Precision returns the decimal precision of an asset id.
func (s *Store) Precision(ctx context.Context, assetID string) (int, error) {
	precisionMu.RLock()
	p, ok := precisionMap[assetID]
	precisionMu.RUnlock()
	if ok {
		return p, nil
	}

	err := s.db.QueryRow(ctx,
		`SELECT "precision" FROM assets WHERE id=$1`, assetID,
	).Scan(&p)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("precision of %s: %w", assetID, ErrUnknownAsset)
	}
	if err != nil {
		return 0, fmt.Errorf("precision of %s: %w", assetID, err)
	}

	precisionMu.Lock()
	precisionMap[assetID] = p
	precisionMu.Unlock()
	return p, nil
}

// AssetID resolves a symbol to its asset id.
func (s *Store) AssetID(ctx context.Context, symbol string) (string, error) {
	var id string
	err := s.db.QueryRow(ctx,
		"SELECT id FROM assets WHERE symbol=$1", symbol,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("asset id of %s: %w", symbol, ErrUnknownAsset)
	}
	if err != nil {
		return "", fmt.Errorf("asset id of %s: %w", symbol, err)
	}
	return id, nil
}

// Symbol resolves an asset id to its symbol.
func (s *Store) Symbol(ctx context.Context, assetID string) (string, error) {
	var symbol string
	err := s.db.QueryRow(ctx,
		"SELECT symbol FROM assets WHERE id=$1", assetID,
	).Scan(&symbol)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("symbol of %s: %w", assetID, ErrUnknownAsset)
	}
	if err != nil {
		return "", fmt.Errorf("symbol of %s: %w", assetID, err)
	}
	return symbol, nil
}

// Pool loads the liquidity pool with the given asset names and id.
func (s *Store) Pool(ctx context.Context, assetA, assetB, id string) (*Pool, error) {
	var p Pool
	err := s.db.QueryRow(ctx,
		`SELECT id, asset_a, asset_b, asset_a_name, asset_b_name,
		        balance_a, balance_b, share_asset, share_asset_name, xyk
		 FROM pools WHERE asset_a_name=$1 AND asset_b_name=$2 AND id=$3`,
		assetA, assetB, id,
	).Scan(
		&p.ID, &p.AssetA, &p.AssetB, &p.AssetAName, &p.AssetBName,
		&p.BalanceA, &p.BalanceB, &p.ShareAsset, &p.ShareAssetName, &p.XYK,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("pool %s: %w", id, ErrUnknownAsset)
	}
	if err != nil {
		return nil, fmt.Errorf("pool %s: %w", id, err)
	}
	return &p, nil
}

// TypeFilter selects which asset classes the picker should include.
type TypeFilter struct {
	MPA     bool `json:"mpa"`
	UIA     bool `json:"uia"`
	LPToken bool `json:"k_token"`
	Pool    bool `json:"pool"`
	BTS     bool `json:"bts"`
}

// PickerEntry is one asset-picker result.
type PickerEntry struct {
	Symbol    string  `json:"symbol"`
	ID        string  `json:"id,omitempty"`
	Greyscale float64 `json:"greyscale"`
}

// ListAssets lists assets matching the search string, filtered by class.
// Results are deduplicated and sorted by symbol.
func (s *Store) ListAssets(ctx context.Context, search string, filter TypeFilter) ([]PickerEntry, error) {
	var entries []PickerEntry

	classes := []struct {
		enabled   bool
		condition string
	}{
		{filter.MPA, "bitasset_id <> ''"},
		{filter.UIA, "bitasset_id = '' AND pool_id = ''"},
		{filter.LPToken, "pool_id <> ''"},
	}
	for _, class := range classes {
		if !class.enabled {
			continue
		}
		rows, err := s.db.Query(ctx,
			"SELECT symbol, id FROM assets WHERE "+class.condition+" AND symbol LIKE $1",
			"%"+strings.ToUpper(search)+"%",
		)
		if err != nil {
			return nil, fmt.Errorf("list assets: %w", err)
		}
		for rows.Next() {
			var e PickerEntry
			if err := rows.Scan(&e.Symbol, &e.ID); err != nil {
				rows.Close()
				return nil, fmt.Errorf("list assets: %w", err)
			}
			entries = append(entries, e)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("list assets: %w", err)
		}
	}

	if filter.Pool {
		rows, err := s.db.Query(ctx,
			"SELECT xyk, id FROM pools WHERE xyk LIKE $1",
			"%"+strings.ToUpper(search)+"%",
		)
		if err != nil {
			return nil, fmt.Errorf("list pools: %w", err)
		}
		for rows.Next() {
			var xyk, id string
			if err := rows.Scan(&xyk, &id); err != nil {
				rows.Close()
				return nil, fmt.Errorf("list pools: %w", err)
			}
			entries = append(entries, PickerEntry{Symbol: xyk, ID: id})
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("list pools: %w", err)
		}
	}

	if filter.BTS {
		entries = append(entries, PickerEntry{Symbol: "BTS", ID: "1.3.0"})
	}

	seen := make(map[string]struct{}, len(entries))
	unique := entries[:0]
	for _, e := range entries {
		key := e.Symbol + "|" + e.ID
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		e.Greyscale = whitelistShade(e.Symbol)
		unique = append(unique, e)
	}
	sort.Slice(unique, func(i, j int) bool { return unique[i].Symbol < unique[j].Symbol })
	return unique, nil
}

// whitelistShade maps an asset symbol to a 0-255 reputation shade.
func whitelistShade(symbol string) float64 {
	grey := 3.0 // not rated
	switch {
	case symbol == "BTS":
		grey = 6
	case strings.Contains(symbol, "COMPUMATRIX"):
		grey = 1 // blacklisted
	case symbol == "CNY":
		grey = 2 // not recommended
	case strings.Contains(symbol, "XBTSX"), strings.Contains(symbol, "GDEX"):
		grey = 4 // whitelisted
	case strings.Contains(symbol, "HONEST"):
		if strings.Contains(symbol, "BTC") || strings.Contains(symbol, "USD") {
			grey = 6
		} else {
			grey = 5
		}
	}
	return grey * (255.0 / 6.0)
}
