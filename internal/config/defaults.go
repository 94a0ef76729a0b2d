package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultListen           = ":8421"
	DefaultPair             = "BTS:HONEST.MONEY"
	DefaultWriteTimeout     = 5 * time.Second
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultProbeInterval    = 10 * time.Second
	DefaultCallTimeout      = 30 * time.Second
	DefaultNodeBufferSize   = 1000
	DefaultHistoryIndex     = "bitshares-*"
	DefaultStaleness        = 5 * time.Minute
	DefaultBatchCap         = 50000
	DefaultPageSize         = 10000
	DefaultPageDelay        = 10 * time.Millisecond
	DefaultHistoryDepth     = 365 * 24 * time.Hour
	DefaultHistoryOverlap   = 2 * 24 * time.Hour
	DefaultDBPort           = 5432
	DefaultDBSSLMode        = "prefer"
	DefaultMaxConns         = 10
	DefaultMinConns         = 2
	DefaultRedisTTL         = 5 * time.Minute
	DefaultLogLevel         = "info"
)

func (c *Config) applyDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = DefaultListen
	}
	if c.Server.DefaultPair == "" {
		c.Server.DefaultPair = DefaultPair
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = DefaultWriteTimeout
	}

	if c.Nodes.HandshakeTimeout == 0 {
		c.Nodes.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Nodes.ProbeInterval == 0 {
		c.Nodes.ProbeInterval = DefaultProbeInterval
	}
	if c.Nodes.CallTimeout == 0 {
		c.Nodes.CallTimeout = DefaultCallTimeout
	}
	if c.Nodes.WriteTimeout == 0 {
		c.Nodes.WriteTimeout = DefaultWriteTimeout
	}
	if c.Nodes.BufferSize == 0 {
		c.Nodes.BufferSize = DefaultNodeBufferSize
	}

	if c.History.Index == "" {
		c.History.Index = DefaultHistoryIndex
	}
	if c.History.Staleness == 0 {
		c.History.Staleness = DefaultStaleness
	}
	if c.History.BatchCap == 0 {
		c.History.BatchCap = DefaultBatchCap
	}
	if c.History.PageSize == 0 {
		c.History.PageSize = DefaultPageSize
	}
	if c.History.PageDelay == 0 {
		c.History.PageDelay = DefaultPageDelay
	}
	if c.History.Depth == 0 {
		c.History.Depth = DefaultHistoryDepth
	}
	if c.History.Overlap == 0 {
		c.History.Overlap = DefaultHistoryOverlap
	}

	if c.Database.Port == 0 {
		c.Database.Port = DefaultDBPort
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = DefaultDBSSLMode
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = DefaultMaxConns
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = DefaultMinConns
	}

	if c.Redis.TTL == 0 {
		c.Redis.TTL = DefaultRedisTTL
	}

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}
