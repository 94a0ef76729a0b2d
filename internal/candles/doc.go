// Package candles turns discrete trade events into multi-resolution
// OHLCV series and keeps the cached series reconciled with freshly
// fetched history.
//
// All prices are stored in the canonical market orientation, lower
// asset instance first. Inversion for the requested orientation happens
// only at presentation time, so both orientations of a market share one
// cached record.
package candles
