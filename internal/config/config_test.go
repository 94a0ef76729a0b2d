package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dexux.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const minimalYAML = `
nodes:
  urls:
    - wss://api.example.org/wss
history:
  url: https://es.example.org
database:
  host: localhost
  name: dexux
  user: dexux
  password: secret
`

func TestLoadAndValidate_Minimal(t *testing.T) {
	cfg, err := LoadAndValidate(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("LoadAndValidate() error = %v", err)
	}

	if cfg.Server.Listen != DefaultListen {
		t.Errorf("Listen = %s, want %s", cfg.Server.Listen, DefaultListen)
	}
	if cfg.Server.DefaultPair != DefaultPair {
		t.Errorf("DefaultPair = %s, want %s", cfg.Server.DefaultPair, DefaultPair)
	}
	if cfg.Nodes.ProbeInterval != DefaultProbeInterval {
		t.Errorf("ProbeInterval = %v, want %v", cfg.Nodes.ProbeInterval, DefaultProbeInterval)
	}
	if cfg.History.Staleness != DefaultStaleness {
		t.Errorf("Staleness = %v, want %v", cfg.History.Staleness, DefaultStaleness)
	}
	if cfg.History.BatchCap != DefaultBatchCap {
		t.Errorf("BatchCap = %d, want %d", cfg.History.BatchCap, DefaultBatchCap)
	}
	if cfg.Database.Port != DefaultDBPort {
		t.Errorf("Port = %d, want %d", cfg.Database.Port, DefaultDBPort)
	}
	if cfg.Database.SSLMode != DefaultDBSSLMode {
		t.Errorf("SSLMode = %s, want %s", cfg.Database.SSLMode, DefaultDBSSLMode)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("DEXUX_DB_PASSWORD", "hunter2")

	yaml := `
nodes:
  urls: ["wss://api.example.org/wss"]
history:
  url: https://es.example.org
database:
  host: localhost
  name: dexux
  user: dexux
  password: ${DEXUX_DB_PASSWORD}
`
	cfg, err := LoadAndValidate(writeConfig(t, yaml))
	if err != nil {
		t.Fatalf("LoadAndValidate() error = %v", err)
	}
	if cfg.Database.Password != "hunter2" {
		t.Errorf("Password = %s, want hunter2", cfg.Database.Password)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no nodes", func(c *Config) { c.Nodes.URLs = nil }},
		{"empty node url", func(c *Config) { c.Nodes.URLs = []string{""} }},
		{"no history url", func(c *Config) { c.History.URL = "" }},
		{"tiny page size", func(c *Config) { c.History.PageSize = 1 }},
		{"overlap exceeds depth", func(c *Config) {
			c.History.Overlap = 48 * time.Hour
			c.History.Depth = time.Hour
		}},
		{"no db host", func(c *Config) { c.Database.Host = "" }},
		{"min conns above max", func(c *Config) {
			c.Database.MinConns = 20
			c.Database.MaxConns = 10
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadWithDefaults(writeConfig(t, minimalYAML))
			if err != nil {
				t.Fatal(err)
			}
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}
