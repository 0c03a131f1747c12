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
	path := filepath.Join(t.TempDir(), "config.test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFileDefaults(t *testing.T) {
	cfg, _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "release", cfg.Mode)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 54*time.Second, cfg.PingPeriod)
	assert.Equal(t, 60*time.Second, cfg.PongWait)
	assert.Equal(t, time.Second, cfg.Vibe.Tick)
	assert.InDelta(t, 2.0, cfg.Vibe.DecayPerSecond, 1e-9)
	assert.Equal(t, 50, cfg.History.Messages)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, 2*time.Second, cfg.Store.Timeout)
}

func TestLoadFileGeneratesSecret(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.yaml")
	a, _, err := LoadFile(missing)
	require.NoError(t, err)
	b, _, err := LoadFile(missing)
	require.NoError(t, err)
	assert.NotEmpty(t, a.Secret)
	assert.NotEqual(t, a.Secret, b.Secret)

	cfg, _, err := LoadFile(writeConfig(t, "secret: fixed\n"))
	require.NoError(t, err)
	assert.Equal(t, "fixed", cfg.Secret)
}

func TestLoadFileOverrides(t *testing.T) {
	path := writeConfig(t, `
mode: debug
port: 9000
vibe:
  tick: 250ms
store:
  driver: sqlite
  sqlite_path: /tmp/x.db
`)
	cfg, _, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Mode)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.Vibe.Tick)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "/tmp/x.db", cfg.Store.SQLitePath)
}

func TestLoadFileEnvWins(t *testing.T) {
	path := writeConfig(t, "port: 9000\n")
	t.Setenv("VIBE_PORT", "9100")
	t.Setenv("VIBE_STORE_DRIVER", "redis")
	t.Setenv("VIBE_STORE_REDIS_URL", "redis://localhost:6379/0")

	cfg, _, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, "redis", cfg.Store.Driver)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Store.RedisURL)
}

func TestLoadFileRejectsInvalid(t *testing.T) {
	for name, body := range map[string]string{
		"driver":     "store:\n  driver: etcd\n",
		"redis url":  "store:\n  driver: redis\n",
		"pong wait":  "ping_period: 60s\npong_wait: 30s\n",
		"log level":  "log:\n  level: loud\n",
		"send queue": "send_buffer: 0\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, _, err := LoadFile(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}
