package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

const (
	EnvLockDir           = "VERDICT_LOCK_DIR"
	EnvTelemetryTextfile = "VERDICT_TELEMETRY_TEXTFILE"
	EnvLogLevel          = "VERDICT_LOG_LEVEL"
	EnvLogFormat         = "VERDICT_LOG_FORMAT"
)

// LockConfig locates the host-local lock files.
type LockConfig struct {
	Dir string `toml:"dir"`
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *LockConfig) Finalize() error {
	if c.Dir == "" {
		c.Dir = filepath.Join(os.TempDir(), "verdict-locks")
	}
	if v := os.Getenv(EnvLockDir); v != "" {
		c.Dir = v
	}
	abs, err := filepath.Abs(c.Dir)
	if err != nil {
		return fmt.Errorf("resolve dir: %w", err)
	}
	c.Dir = abs
	return nil
}

// Merge overwrites non-zero fields from overlay.
func (c *LockConfig) Merge(overlay *LockConfig) {
	if overlay.Dir != "" {
		c.Dir = overlay.Dir
	}
}

// TelemetryConfig controls the Prometheus textfile export.
// An empty Textfile disables the export.
type TelemetryConfig struct {
	Textfile string `toml:"textfile"`
}

// Finalize applies environment variable overrides.
func (c *TelemetryConfig) Finalize() error {
	if v := os.Getenv(EnvTelemetryTextfile); v != "" {
		c.Textfile = v
	}
	return nil
}

// Merge overwrites non-zero fields from overlay.
func (c *TelemetryConfig) Merge(overlay *TelemetryConfig) {
	if overlay.Textfile != "" {
		c.Textfile = overlay.Textfile
	}
}

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"text", "json"}
)

// LogConfig selects the slog handler and level.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *LogConfig) Finalize() error {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "text"
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Level = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		c.Format = v
	}

	c.Level = strings.ToLower(c.Level)
	c.Format = strings.ToLower(c.Format)

	if !slices.Contains(logLevels, c.Level) {
		return fmt.Errorf("invalid level %q", c.Level)
	}
	if !slices.Contains(logFormats, c.Format) {
		return fmt.Errorf("invalid format %q", c.Format)
	}
	return nil
}

// Merge overwrites non-zero fields from overlay.
func (c *LogConfig) Merge(overlay *LogConfig) {
	if overlay.Level != "" {
		c.Level = overlay.Level
	}
	if overlay.Format != "" {
		c.Format = overlay.Format
	}
}
