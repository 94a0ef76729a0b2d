package config

import "time"

// Config is the root configuration for the DEX UX backend.
type Config struct {
	Server   ServerConfig  `yaml:"server"`
	Nodes    NodesConfig   `yaml:"nodes"`
	History  HistoryConfig `yaml:"history"`
	Database DBConfig      `yaml:"database"`
	Redis    RedisConfig   `yaml:"redis"`
	Log      LogConfig     `yaml:"log"`
}

// ServerConfig holds the client-facing WebSocket listener settings.
type ServerConfig struct {
	Listen       string        `yaml:"listen"`
	DefaultPair  string        `yaml:"default_pair"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// NodesConfig holds upstream blockchain node settings.
type NodesConfig struct {
	URLs             []string      `yaml:"urls"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	ProbeInterval    time.Duration `yaml:"probe_interval"`
	CallTimeout      time.Duration `yaml:"call_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	BufferSize       int           `yaml:"buffer_size"`
	NonceLockPath    string        `yaml:"nonce_lock_path"` // empty = in-process allocator
}

// HistoryConfig holds the external log-search service settings.
type HistoryConfig struct {
	URL       string        `yaml:"url"`
	Index     string        `yaml:"index"`
	Staleness time.Duration `yaml:"staleness"`
	BatchCap  int           `yaml:"batch_cap"`
	PageSize  int           `yaml:"page_size"`
	PageDelay time.Duration `yaml:"page_delay"`
	Depth     time.Duration `yaml:"depth"`
	Overlap   time.Duration `yaml:"overlap"`
}

// DBConfig holds the cache store database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// RedisConfig holds the optional hot payload cache. An empty Addr
// disables it.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}
