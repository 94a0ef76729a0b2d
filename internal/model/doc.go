// Package model defines shared data types for the DEX UX backend.
//
// Conventions:
//   - Timestamps: int64 milliseconds since Unix epoch, matching the
//     block-time sort values returned by the history service.
//   - Prices and volumes: float64 in human units, already scaled by the
//     asset's decimal precision.
//   - Asset ids: graphene object ids ("1.3.861"); liquidity pools are
//     "1.19.x" objects.
//
// All cached market data is keyed and computed in canonical order only:
// the pair's assets sorted by ascending instance id. A request in the
// reverse order is served by inverting price-bearing fields at
// presentation time.
package model
