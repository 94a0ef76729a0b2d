// Package store implements the Market Cache Store.
//
// One klines row per canonical market pair: a freshness watermark
// (end_unix), a bounded discrete tick window, and seven serialized
// candle series. Rows are created lazily on first request and mutated
// only through single-statement updates keyed by pair, so concurrent
// writers resolve by blind retry.
//
// The package also serves the asset registry (id/symbol/precision) and
// liquidity pool metadata, and an optional Redis cache for hot chart
// payloads.
package store
