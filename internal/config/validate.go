package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if len(c.Nodes.URLs) == 0 {
		return errors.New("nodes.urls must list at least one upstream node")
	}
	for i, u := range c.Nodes.URLs {
		if u == "" {
			return fmt.Errorf("nodes.urls[%d] is empty", i)
		}
	}

	if c.History.URL == "" {
		return errors.New("history.url is required")
	}
	if c.History.BatchCap < 1 {
		return errors.New("history.batch_cap must be >= 1")
	}
	if c.History.PageSize < 2 {
		return errors.New("history.page_size must be >= 2")
	}
	if c.History.Overlap > c.History.Depth {
		return errors.New("history.overlap must not exceed history.depth")
	}

	if err := c.Database.validate("database"); err != nil {
		return err
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.Port < 1 || db.Port > 65535 {
		return fmt.Errorf("%s.port must be between 1 and 65535, got %d", prefix, db.Port)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns must not exceed max_conns", prefix)
	}
	return nil
}
