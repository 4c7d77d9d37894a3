package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, "development", cfg.Environment)
	require.True(t, cfg.IsDevelopment())
	require.Equal(t, "0.0.0.0:8080", cfg.Server.Address)
	require.Equal(t, 30*time.Second, cfg.Server.Timeout)
	require.Equal(t, 50, cfg.DB.MaxOpenConns)
	require.Equal(t, time.Minute, cfg.Redis.StatsTTL)
	require.Equal(t, "order-events", cfg.Azure.QueueName)
	require.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	require.Equal(t, 15*time.Minute, cfg.Worker.ReindexInterval)
	require.False(t, cfg.Server.GlobalStatsEnabled)
}

func TestLoadConfigFromYAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte(`
environment: production
server:
  address: 127.0.0.1:9000
database:
  dsn: postgres://db/skillswap
elastic:
  prefix: staging
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600))

	t.Setenv("SKILLSWAP_AUTH_JWT_SECRET", "from-env")
	t.Setenv("SKILLSWAP_SERVER_ADDRESS", "127.0.0.1:9100")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	require.Equal(t, "production", cfg.Environment)
	require.False(t, cfg.IsDevelopment())
	require.Equal(t, "127.0.0.1:9100", cfg.Server.Address)
	require.Equal(t, "postgres://db/skillswap", cfg.DB.DSN)
	require.Equal(t, "from-env", cfg.Auth.JWTSecret)
	require.Equal(t, "staging-orders", FormatIndex(cfg.Elastic, cfg.Elastic.Index))
}
