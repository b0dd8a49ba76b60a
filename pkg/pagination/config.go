// Package pagination provides page requests and results for listing runs.
package pagination

import (
	"fmt"
	"os"
	"strconv"
)

// Config bounds the page sizes the runs listing accepts. A request without a
// size gets DefaultPageSize; larger requests are clamped to MaxPageSize.
type Config struct {
	DefaultPageSize int `toml:"default_page_size"`
	MaxPageSize     int `toml:"max_page_size"`
}

// Env names the variables that override Config. Empty names are skipped.
type Env struct {
	DefaultPageSize string
	MaxPageSize     string
}

// Finalize fills defaults, applies env, and validates.
func (c *Config) Finalize(env *Env) error {
	if c.DefaultPageSize == 0 {
		c.DefaultPageSize = 20
	}
	if c.MaxPageSize == 0 {
		c.MaxPageSize = 200
	}
	if env != nil {
		if err := c.loadEnv(env); err != nil {
			return err
		}
	}

	switch {
	case c.DefaultPageSize < 1:
		return fmt.Errorf("default_page_size must be positive, got %d", c.DefaultPageSize)
	case c.MaxPageSize < 1:
		return fmt.Errorf("max_page_size must be positive, got %d", c.MaxPageSize)
	case c.DefaultPageSize > c.MaxPageSize:
		return fmt.Errorf("default_page_size %d exceeds max_page_size %d", c.DefaultPageSize, c.MaxPageSize)
	}
	return nil
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.DefaultPageSize != 0 {
		c.DefaultPageSize = overlay.DefaultPageSize
	}
	if overlay.MaxPageSize != 0 {
		c.MaxPageSize = overlay.MaxPageSize
	}
}

// loadEnv rejects values that are not integers rather than dropping them, so
// a typo in a page size variable surfaces at startup.
func (c *Config) loadEnv(env *Env) error {
	for _, v := range []struct {
		name string
		dst  *int
	}{
		{env.DefaultPageSize, &c.DefaultPageSize},
		{env.MaxPageSize, &c.MaxPageSize},
	} {
		if v.name == "" {
			continue
		}
		raw := os.Getenv(v.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%s: %q is not an integer", v.name, raw)
		}
		*v.dst = n
	}
	return nil
}
