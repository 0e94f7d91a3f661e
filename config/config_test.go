package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/etnz/kabuka"
)

func TestLoad_WithDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr())
	assert.Equal(t, 10*time.Second, cfg.API.Timeout)
	assert.Equal(t, kabuka.ModeNative, cfg.Engine.Mode)
	assert.Equal(t, 60, cfg.Refresh.Interval)
	assert.Equal(t, []int{10, 30, 60, 300, 600}, cfg.Refresh.Intervals)
	assert.Equal(t, StaleApply, cfg.Refresh.StaleResults)
	assert.Equal(t, "Asia/Tokyo", cfg.Refresh.Timezone)

	tracked := cfg.Tracked()
	require.Len(t, tracked, 6)
	keys := make([]string, len(tracked))
	for i, tr := range tracked {
		keys[i] = tr.Key
	}
	assert.Equal(t, []string{"sony", "rakuten", "imurayama", "dow", "nikkei", "usdjpy"}, keys)

	assert.Equal(t, &kabuka.Holding{Shares: 1000, PurchasePrice: 333}, tracked[0].Holding)
	assert.Equal(t, &kabuka.Holding{Shares: 100, PurchasePrice: 977}, tracked[1].Holding)
	assert.Equal(t, &kabuka.Holding{Shares: 300, PurchasePrice: 1801}, tracked[2].Holding)
	assert.False(t, tracked[3].Held())
	assert.Equal(t, kabuka.KindFX, tracked[5].Kind)
	assert.Equal(t, 1000.0, tracked[5].Notional)
}

func TestLoad_WithConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", t.TempDir())
	content := `
api:
  base_url: "https://quotes.example.com"
  timeout: 3s
  requests_per_second: 2.5
refresh:
  interval: 30
  stale_results: discard
  sessions:
    - start: "0 9 * * 1-5"
      stop: "30 15 * * 1-5"
instruments:
  - key: toyota
    name: Toyota
    currency: JPY
    path: /api/finance/toyota
    kind: equity
    shares: 200
    purchase_price: 2500.5
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "kabuka.yaml"), []byte(content), 0o644))

	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "https://quotes.example.com", cfg.API.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.API.Timeout)
	assert.Equal(t, 2.5, cfg.API.RequestsPerSecond)
	assert.Equal(t, 30, cfg.Refresh.Interval)
	assert.Equal(t, StaleDiscard, cfg.Refresh.StaleResults)
	assert.Equal(t, []SessionConfig{{Start: "0 9 * * 1-5", Stop: "30 15 * * 1-5"}}, cfg.Refresh.Sessions)

	tracked := cfg.Tracked()
	require.Len(t, tracked, 1)
	assert.Equal(t, "toyota", tracked[0].Key)
	assert.Equal(t, &kabuka.Holding{Shares: 200, PurchasePrice: 2500.5}, tracked[0].Holding)
}

func TestLoad_ExplicitFileMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("KABUKA_API_BASE_URL", "http://env.example.com")
	t.Setenv("KABUKA_REFRESH_INTERVAL", "300")
	t.Setenv("KABUKA_ENGINE_MODE", "builtin")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://env.example.com", cfg.API.BaseURL)
	assert.Equal(t, 300, cfg.Refresh.Interval)
	assert.Equal(t, kabuka.ModeBuiltin, cfg.Engine.Mode)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", t.TempDir())
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("KABUKA_LOG_LEVEL=debug\n"), 0o644))
	// godotenv sets the variable for the process, restore it afterwards.
	t.Setenv("KABUKA_LOG_LEVEL", "")
	os.Unsetenv("KABUKA_LOG_LEVEL")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"bad url", func(c *Config) { c.API.BaseURL = "localhost" }, "api.base_url"},
		{"interval not an option", func(c *Config) { c.Refresh.Interval = 45 }, "refresh.interval 45"},
		{"no intervals", func(c *Config) { c.Refresh.Intervals = nil }, "refresh.intervals must not be empty"},
		{"bad engine", func(c *Config) { c.Engine.Mode = "wasm" }, "engine.mode"},
		{"bad stale policy", func(c *Config) { c.Refresh.StaleResults = "keep" }, "refresh.stale_results"},
		{"bad timezone", func(c *Config) { c.Refresh.Timezone = "Mars/Olympus" }, "refresh.timezone"},
		{"bad session", func(c *Config) {
			c.Refresh.Sessions = []SessionConfig{{Start: "at nine", Stop: "0 15 * * *"}}
		}, "refresh.sessions[0].start"},
		{"duplicate key", func(c *Config) { c.Instruments = append(c.Instruments, c.Instruments[0]) }, `duplicate key "sony"`},
		{"relative path", func(c *Config) { c.Instruments[0].Path = "api/finance/sony" }, "must start with /"},
		{"unknown kind", func(c *Config) { c.Instruments[0].Kind = "bond" }, `unknown kind "bond"`},
		{"negative shares", func(c *Config) { c.Instruments[0].Shares = -1 }, "must not be negative"},
		{"held index", func(c *Config) { c.Instruments[3].Shares = 10 }, "only equities can be held"},
		{"no instruments", func(c *Config) { c.Instruments = nil }, "no instrument configured"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateReportsAll(t *testing.T) {
	cfg := Default()
	cfg.Refresh.Interval = 7
	cfg.Engine.Mode = "wasm"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refresh.interval")
	assert.Contains(t, err.Error(), "engine.mode")
}
