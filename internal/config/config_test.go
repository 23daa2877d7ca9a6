package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func Test_Load_MergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
mode = "shard"

[shard]
id = 3
detect_interval = "2s"

[credentials]
max_requests = 900
window = "30s"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "shard", cfg.Mode)
	assert.Equal(t, 3, cfg.Shard.ID)
	assert.Equal(t, 2*time.Second, cfg.Shard.DetectInterval.Duration)
	assert.Equal(t, 900, cfg.Credentials.MaxRequests)
	assert.Equal(t, 30*time.Second, cfg.Credentials.Window.Duration)

	// Untouched sections keep their defaults.
	assert.Equal(t, "https://api.binance.com", cfg.Exchange.RestHost)
	assert.Equal(t, 20, cfg.Distributor.Shards)
	assert.Equal(t, time.Hour, cfg.Shard.LoopTTL.Duration)
}

func Test_Load_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
mode = "distribute"

[redis]
addr = "redis-from-file:6379"
`)

	t.Setenv("SMOOTHTRADE_REDIS_ADDR", "redis-from-env:6379")
	t.Setenv("SMOOTHTRADE_DISTRIBUTOR_SHARDS", "8")
	t.Setenv("SMOOTHTRADE_SHARD_LOOP_TTL", "45m")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "redis-from-env:6379", cfg.Redis.Addr)
	assert.Equal(t, 8, cfg.Distributor.Shards)
	assert.Equal(t, 45*time.Minute, cfg.Shard.LoopTTL.Duration)
}

func Test_Validate_Defaults(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "shard"
	require.NoError(t, cfg.Validate())
}

func Test_Validate_CollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "nonsense"
	cfg.Exchange.RestHost = ""
	cfg.Distributor.Shards = 0
	cfg.Executor.Stake = -5

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
	assert.Contains(t, err.Error(), "rest_host")
	assert.Contains(t, err.Error(), "shards must be >= 1")
	assert.Contains(t, err.Error(), "stake must be positive")
}

func Test_Validate_ExecuteModeNeedsCredentials(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "execute"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "credentials: file must be set")

	cfg.Credentials.File = "creds.enc"
	cfg.Credentials.Password = "hunter2"
	require.NoError(t, cfg.Validate())
}

func Test_RedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Credentials.Password = "secret"
	cfg.Postgres.Password = "secret"
	cfg.Archive.SecretKey = "secret"

	red := RedactedConfig(&cfg)
	assert.Equal(t, "***", red.Credentials.Password)
	assert.Equal(t, "***", red.Postgres.Password)
	assert.Equal(t, "***", red.Archive.SecretKey)

	// Original untouched.
	assert.Equal(t, "secret", cfg.Credentials.Password)
}
