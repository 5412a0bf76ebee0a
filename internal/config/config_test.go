package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaultsWithoutFile(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.Simulation.TickMS)
	assert.True(t, cfg.Simulation.BootOnStart)
	assert.Equal(t, 25000.0, cfg.Bots.CapitalUSD)
	assert.Equal(t, ":8080", cfg.Server.ListenAddr)
	assert.False(t, cfg.Database.Enabled)
	assert.InDelta(t, 0.26, cfg.Venues["kraken"].TakerFeePercent, 1e-9)
	assert.Contains(t, cfg.Ledger.Pools, "clearing")
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `
simulation:
  seed: 42
  tick_ms: 20
bots:
  enabled: [momentum-alpha, scalper-x]
  instruments: [BTC/USDT]
  capital_usd: 1000
fx:
  enabled: [treasury-desk]
  pairs: [USDC/EURC]
venues:
  stablefx:
    taker_fee_percent: 0.02
database:
  enabled: true
  host: db
  port: 6543
  user: u
  password: p
  dbname: feed
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, int64(42), cfg.Simulation.Seed)
	assert.Equal(t, []string{"momentum-alpha", "scalper-x"}, cfg.Bots.Enabled)
	assert.Equal(t, []string{"BTC/USDT"}, cfg.Bots.Instruments)
	assert.Equal(t, []string{"treasury-desk"}, cfg.FX.Enabled)
	assert.Equal(t, []string{"USDC/EURC"}, cfg.FX.Pairs)
	assert.InDelta(t, 0.02, cfg.Venues["stablefx"].TakerFeePercent, 1e-9)
	assert.Equal(t, "postgres://u:p@db:6543/feed", cfg.Database.DSN())
	assert.Equal(t, 20*time.Millisecond, cfg.Simulation.Tick())
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("BOTFEED_SERVER_LISTEN_ADDR", ":9999")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Server.ListenAddr)
}

func TestValidate(t *testing.T) {
	base, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	bad := base
	bad.Simulation.TickMS = 0
	assert.Error(t, bad.Validate())

	bad = base
	bad.Venues = map[string]VenueConfig{"x": {TakerFeePercent: -1}}
	assert.Error(t, bad.Validate())

	bad = base
	bad.Logging.Format = "xml"
	assert.Error(t, bad.Validate())

	assert.NoError(t, base.Validate())
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := LoggingConfig{Level: "warn", Format: "json"}.NewLogger(&buf)

	logger.Info("hidden")
	logger.Warn("shown", "bot", "scalper-x")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"bot":"scalper-x"`)
}
