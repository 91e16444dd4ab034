package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "app:\n  name: spotpanel\n"))
	require.NoError(t, err)

	assert.Equal(t, "nordpool", cfg.Provider.Source)
	assert.Equal(t, DefaultArea, cfg.NordPool.Area)
	assert.Equal(t, DefaultCurrency, cfg.NordPool.Currency)
	assert.Equal(t, 60, cfg.Fetch.ResolutionMinutes)
	assert.Equal(t, 13, cfg.Fetch.DailyHour)
	assert.Equal(t, 0, cfg.Fetch.DailyMinute)
	assert.Equal(t, 10*time.Minute, cfg.Fetch.RetryCooldown)
	assert.Equal(t, 30*time.Second, cfg.Fetch.ErrorRetry)
	assert.Equal(t, time.Second, cfg.Fetch.PollInterval)
	assert.Equal(t, 1280, cfg.Render.Width)
	assert.Equal(t, 720, cfg.Render.Height)

	assert.Equal(t, filepath.Join("data", "nordpool_ma.bin"), cfg.HistoryPath())
	assert.Equal(t, filepath.Join("data", "price_cache.json"), cfg.SnapshotPath())
}

func TestLoadNormalizesSelections(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
provider:
  source: NordPool
nordpool:
  area: "xx"
  currency: "usd"
fetch:
  resolution_minutes: 45
`))
	require.NoError(t, err)

	assert.Equal(t, "nordpool", cfg.Provider.Source)
	assert.Equal(t, DefaultArea, cfg.NordPool.Area, "unknown area falls back to the default")
	assert.Equal(t, DefaultCurrency, cfg.NordPool.Currency, "unknown currency falls back to the default")
	assert.Equal(t, 60, cfg.Fetch.ResolutionMinutes, "unsupported resolution normalizes to hourly")
}

func TestLoadAcceptsAllowedSelections(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
nordpool:
  area: fi
  currency: eur
fetch:
  resolution_minutes: 15
`))
	require.NoError(t, err)

	assert.Equal(t, "FI", cfg.NordPool.Area)
	assert.Equal(t, "EUR", cfg.NordPool.Currency)
	assert.Equal(t, 15, cfg.Fetch.ResolutionMinutes)
}

func TestLoadValidation(t *testing.T) {
	t.Run("unknown provider", func(t *testing.T) {
		_, err := Load(writeConfig(t, "provider:\n  source: entsoe\n"))
		assert.Error(t, err)
	})

	t.Run("tibber requires a token", func(t *testing.T) {
		_, err := Load(writeConfig(t, "provider:\n  source: tibber\n"))
		assert.Error(t, err)

		_, err = Load(writeConfig(t, "provider:\n  source: tibber\ntibber:\n  token: abc\n"))
		assert.NoError(t, err)
	})

	t.Run("fetch hour out of range", func(t *testing.T) {
		_, err := Load(writeConfig(t, "fetch:\n  daily_hour: 24\n"))
		assert.Error(t, err)
	})

	t.Run("empty data dir", func(t *testing.T) {
		_, err := Load(writeConfig(t, "storage:\n  data_dir: \"\"\n"))
		assert.Error(t, err)
	})
}
