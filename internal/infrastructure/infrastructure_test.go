package infrastructure_test

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/verdict/internal/config"
	"github.com/JaimeStill/verdict/internal/infrastructure"
	"github.com/JaimeStill/verdict/pkg/database"
)

func sqliteConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Database: database.Config{
			Driver:          database.DriverSQLite,
			Path:            filepath.Join(t.TempDir(), "verdict.db"),
			BusyTimeout:     "5s",
			MaxOpenConns:    4,
			MaxIdleConns:    2,
			ConnMaxLifetime: "15m",
			ConnTimeout:     "5s",
		},
		Log: config.LogConfig{Level: "info", Format: "text"},
	}
}

func TestNew(t *testing.T) {
	infra, err := infrastructure.New(context.Background(), sqliteConfig(t))
	require.NoError(t, err)

	assert.NotNil(t, infra.Lifecycle)
	assert.NotNil(t, infra.Logger)
	assert.NotNil(t, infra.Database)
	assert.NotNil(t, infra.Telemetry)
	assert.Nil(t, infra.Storage, "storage is disabled without a connection string")
}

func TestStart(t *testing.T) {
	infra, err := infrastructure.New(context.Background(), sqliteConfig(t))
	require.NoError(t, err)

	require.NoError(t, infra.Start())
	assert.True(t, infra.Lifecycle.Ready())
	require.NoError(t, infra.Database.Ping(context.Background()))
	require.NoError(t, infra.Lifecycle.Shutdown(5*time.Second))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := infrastructure.NewLogger(&config.LogConfig{Level: "warn", Format: "json"}, &buf)

	logger.Info("hidden")
	logger.Warn("shown", "run_id", "r1")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"run_id":"r1"`)
}
