package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFillsDefaultsForUnsetFields(t *testing.T) {
	path := writeTempConfig(t, "api:\n  base: https://example.com\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 1.0, cfg.Engine.DtSeconds)
	require.Equal(t, 100, cfg.Engine.MaxPosition)
	require.Equal(t, 20, cfg.Engine.MaxMarketsWithOrders)
	require.Equal(t, 0.15, cfg.LIP.TimeRiskK)
	require.NotNil(t, cfg.LIP.Enabled)
	require.True(t, *cfg.LIP.Enabled)
	require.Equal(t, 10, cfg.Circuit.MaxConsecutiveErrors)
	require.Equal(t, -100.0, cfg.Circuit.PnLThreshold)
	require.Equal(t, "marketmaker.db", cfg.Storage.DSN)
	require.Equal(t, "info", cfg.Log.Level)
	require.Equal(t, 5.0, cfg.Engine.ThinBookMinSize)
	require.Equal(t, 0.25, cfg.Capital.BudgetFraction)
	require.Equal(t, 30.0, cfg.Capital.BalanceRefreshSeconds)
	require.Equal(t, 0.4, cfg.Markout.Alpha)
	require.Equal(t, -0.003, cfg.Markout.BadThreshold)
	require.Equal(t, 0.002, cfg.Markout.EdgeBump)
	require.Equal(t, 0.01, cfg.Markout.WidthBump)
	require.Equal(t, 5.0, cfg.Markout.HorizonSeconds)
}

func TestLoadRespectsExplicitLIPDisabled(t *testing.T) {
	path := writeTempConfig(t, "lip:\n  lip_enabled: false\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.LIP.Enabled)
	require.False(t, *cfg.LIP.Enabled)
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	path := writeTempConfig(t, "log:\n  level: info\n")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("WALLET_PRIVATE_KEY", "deadbeef")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, "deadbeef", cfg.Wallet.PrivateKeyHex)
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidateAcceptsDefaultedConfig(t *testing.T) {
	path := writeTempConfig(t, "api:\n  base: https://example.com\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsNegativeDt(t *testing.T) {
	path := writeTempConfig(t, "engine:\n  dt_seconds: -1\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	cfg.Engine.DtSeconds = -1 // setDefaults only fixes <= 0 on load; simulate a post-load override
	require.ErrorContains(t, cfg.Validate(), "dt_seconds must be positive")
}

func TestValidateRejectsZeroMaxPosition(t *testing.T) {
	path := writeTempConfig(t, "api:\n  base: https://example.com\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	cfg.Engine.MaxPosition = 0
	require.ErrorContains(t, cfg.Validate(), "max_position must be positive")
}

func TestValidateRejectsLIPThresholdOrderingViolation(t *testing.T) {
	path := writeTempConfig(t, "api:\n  base: https://example.com\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	cfg.LIP.MediumRiskThreshold = 3.0
	cfg.LIP.HighRiskThreshold = 2.5
	cfg.LIP.RiskThreshold = 2.0
	require.ErrorContains(t, cfg.Validate(), "lip_medium_risk_threshold")
}

func TestDurationHelpersConvertSecondsFields(t *testing.T) {
	path := writeTempConfig(t, "engine:\n  dt_seconds: 2.5\n  discovery_interval_seconds: 15\n  orderbook_update_cooldown_ms: 250\n  min_quote_width_cents: 2\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 2500*1_000_000.0, float64(cfg.Dt()))
	require.Equal(t, float64(15_000_000_000), float64(cfg.DiscoveryInterval()))
	require.Equal(t, float64(250_000_000), float64(cfg.OrderbookUpdateCooldown()))
	require.InDelta(t, 0.02, cfg.MinQuoteWidth(), 1e-9)
}
