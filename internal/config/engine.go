package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	EnvEngineCommitInterval = "VERDICT_ENGINE_COMMIT_INTERVAL"
	EnvEngineConcurrency    = "VERDICT_ENGINE_CONCURRENCY"
	EnvEngineItemTimeout    = "VERDICT_ENGINE_ITEM_TIMEOUT"
	EnvEnginePageSize       = "VERDICT_ENGINE_PAGE_SIZE"
	EnvEngineRatePerMinute  = "VERDICT_ENGINE_RATE_PER_MINUTE"
	EnvEngineMaxAttempts    = "VERDICT_ENGINE_MAX_ATTEMPTS"
)

// EngineConfig holds batch execution parameters.
type EngineConfig struct {
	// CommitInterval is the number of items written between transaction commits.
	CommitInterval int    `toml:"commit_interval" yaml:"commit_interval"`
	Concurrency    int    `toml:"concurrency" yaml:"concurrency"`
	ItemTimeout    string `toml:"item_timeout" yaml:"item_timeout"`
	PageSize       int    `toml:"page_size" yaml:"page_size"`
	RatePerMinute  int    `toml:"rate_per_minute" yaml:"rate_per_minute"`
	// MaxAttempts bounds in-call retries of transient classifier errors. 1 disables retry.
	MaxAttempts int `toml:"max_attempts" yaml:"max_attempts"`
}

// ItemTimeoutDuration returns ItemTimeout as a time.Duration.
func (c *EngineConfig) ItemTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ItemTimeout)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *EngineConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *EngineConfig) Merge(overlay *EngineConfig) {
	if overlay.CommitInterval != 0 {
		c.CommitInterval = overlay.CommitInterval
	}
	if overlay.Concurrency != 0 {
		c.Concurrency = overlay.Concurrency
	}
	if overlay.ItemTimeout != "" {
		c.ItemTimeout = overlay.ItemTimeout
	}
	if overlay.PageSize != 0 {
		c.PageSize = overlay.PageSize
	}
	if overlay.RatePerMinute != 0 {
		c.RatePerMinute = overlay.RatePerMinute
	}
	if overlay.MaxAttempts != 0 {
		c.MaxAttempts = overlay.MaxAttempts
	}
}

// Override merges a per-experiment overlay onto a finalized config and
// validates the result. Environment variables are not re-applied.
func (c *EngineConfig) Override(overlay *EngineConfig) error {
	c.Merge(overlay)
	return c.validate()
}

func (c *EngineConfig) loadDefaults() {
	if c.CommitInterval == 0 {
		c.CommitInterval = 100
	}
	if c.Concurrency == 0 {
		c.Concurrency = 1
	}
	if c.ItemTimeout == "" {
		c.ItemTimeout = "2m"
	}
	if c.PageSize == 0 {
		c.PageSize = 500
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 1
	}
}

func (c *EngineConfig) loadEnv() {
	setInt := func(name string, dst *int) {
		if v := os.Getenv(name); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	setInt(EnvEngineCommitInterval, &c.CommitInterval)
	setInt(EnvEngineConcurrency, &c.Concurrency)
	setInt(EnvEnginePageSize, &c.PageSize)
	setInt(EnvEngineRatePerMinute, &c.RatePerMinute)
	setInt(EnvEngineMaxAttempts, &c.MaxAttempts)

	if v := os.Getenv(EnvEngineItemTimeout); v != "" {
		c.ItemTimeout = v
	}
}

func (c *EngineConfig) validate() error {
	if c.CommitInterval < 1 {
		return fmt.Errorf("commit_interval must be positive")
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be positive")
	}
	if c.PageSize < 1 {
		return fmt.Errorf("page_size must be positive")
	}
	if c.RatePerMinute < 0 {
		return fmt.Errorf("rate_per_minute cannot be negative")
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be positive")
	}
	d, err := time.ParseDuration(c.ItemTimeout)
	if err != nil {
		return fmt.Errorf("invalid item_timeout: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("item_timeout must be positive")
	}
	return nil
}
