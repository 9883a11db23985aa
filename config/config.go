package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the market maker's complete runtime configuration.
type Config struct {
	Engine  EngineConfig  `yaml:"engine"`
	LIP     LIPConfig     `yaml:"lip"`
	Capital CapitalConfig `yaml:"capital"`
	Markout MarkoutConfig `yaml:"markout"`
	Circuit CircuitConfig `yaml:"circuit"`
	API     APIConfig     `yaml:"api"`
	Wallet  WalletConfig  `yaml:"wallet"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
}

// EngineConfig controls the scheduler's tick loop, sizing, and discovery.
type EngineConfig struct {
	DtSeconds                  float64 `yaml:"dt_seconds"`
	MaxPosition                int     `yaml:"max_position"`
	PositionLimitBuffer        float64 `yaml:"position_limit_buffer"`
	InventorySkewFactor        float64 `yaml:"inventory_skew_factor"`
	ImproveOncePerTouch        bool    `yaml:"improve_once_per_touch"`
	ImproveCooldownSeconds     float64 `yaml:"improve_cooldown_seconds"`
	MinQuoteWidthCents         int     `yaml:"min_quote_width_cents"`
	MaxMarketsWithOrders       int     `yaml:"max_markets_with_orders"`
	DiscoveryIntervalSeconds   float64 `yaml:"discovery_interval_seconds"`
	OrderbookUpdateCooldownMs  int     `yaml:"orderbook_update_cooldown_ms"`
	VolRefreshIntervalSeconds  float64 `yaml:"vol_refresh_interval_seconds"`
	VolWorkerCount             int     `yaml:"vol_worker_count"`
	InventoryCheckIntervalSecs float64 `yaml:"inventory_check_interval_seconds"`
	ThinBookMinSize            float64 `yaml:"thin_book_min_size"`
}

// CapitalConfig controls the affordability cap on order size (mm.py's
// max_affordable_size / get_available_cash).
type CapitalConfig struct {
	BudgetFraction        float64 `yaml:"budget_fraction"`
	BalanceRefreshSeconds float64 `yaml:"balance_refresh_interval_seconds"`
}

// MarkoutConfig controls the adaptive toxic-flow defense: a per-ticker
// EMA of realized markout that bumps required edge/width once it turns
// persistently bad (mm.py's _update_markout_ema).
type MarkoutConfig struct {
	Alpha          float64 `yaml:"markout_alpha"`
	BadThreshold   float64 `yaml:"markout_bad_threshold"`
	EdgeBump       float64 `yaml:"markout_edge_bump"`
	WidthBump      float64 `yaml:"markout_width_bump"`
	HorizonSeconds float64 `yaml:"markout_horizon_seconds"`
}

// LIPConfig controls the risk scorer (C4) and quote-level policy (C5).
// Enabled is a pointer so an absent lip_enabled key defaults to true
// rather than to the bool zero value.
type LIPConfig struct {
	Enabled             *bool   `yaml:"lip_enabled"`
	TimeRiskK           float64 `yaml:"lip_time_risk_k"`
	VolGamma            float64 `yaml:"lip_vol_gamma"`
	RiskThreshold       float64 `yaml:"lip_risk_threshold"`
	MediumRiskThreshold float64 `yaml:"lip_medium_risk_threshold"`
	HighRiskThreshold   float64 `yaml:"lip_high_risk_threshold"`
	DiscountFactor      float64 `yaml:"lip_discount_factor"`
	ContinuousAlpha     float64 `yaml:"lip_continuous_alpha"`
}

// CircuitConfig controls the manual-reset circuit breaker (C11).
type CircuitConfig struct {
	MaxConsecutiveErrors  int     `yaml:"max_consecutive_errors"`
	PnLThreshold          float64 `yaml:"pnl_threshold"`
	MaxInventoryImbalance float64 `yaml:"max_inventory_imbalance"`
}

// APIConfig holds the exchange base URL and request timeout.
type APIConfig struct {
	Base           string `yaml:"base"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// WalletConfig holds the signing key used for order authentication.
// PrivateKeyHex is read at startup only; it is never logged.
type WalletConfig struct {
	ChainID       int64  `yaml:"chain_id"`
	Address       string `yaml:"address"`
	PrivateKeyHex string `yaml:"private_key_hex"`
}

// StorageConfig controls where state persists.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // path to the SQLite file, or ":memory:"
}

// LogConfig controls logging format and level.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load reads YAML config from path, then applies a .env file and
// process environment overrides (in that priority order) before
// filling in defaults for anything left unset.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// Validate rejects nonsensical configuration values that Load's
// defaulting pass would otherwise let through unnoticed.
func (c *Config) Validate() error {
	var errs []string

	if c.Engine.DtSeconds <= 0 {
		errs = append(errs, fmt.Sprintf("engine: dt_seconds must be positive, got %v", c.Engine.DtSeconds))
	}
	if c.Engine.MaxPosition <= 0 {
		errs = append(errs, fmt.Sprintf("engine: max_position must be positive, got %d", c.Engine.MaxPosition))
	}
	if c.Engine.PositionLimitBuffer < 0 || c.Engine.PositionLimitBuffer >= 1 {
		errs = append(errs, fmt.Sprintf("engine: position_limit_buffer must be in [0,1), got %v", c.Engine.PositionLimitBuffer))
	}
	if c.Engine.MaxMarketsWithOrders <= 0 {
		errs = append(errs, fmt.Sprintf("engine: max_markets_with_orders must be positive, got %d", c.Engine.MaxMarketsWithOrders))
	}

	if !(c.LIP.MediumRiskThreshold < c.LIP.HighRiskThreshold && c.LIP.HighRiskThreshold < c.LIP.RiskThreshold) {
		errs = append(errs, fmt.Sprintf(
			"lip: thresholds must satisfy lip_medium_risk_threshold (%v) < lip_high_risk_threshold (%v) < lip_risk_threshold (%v)",
			c.LIP.MediumRiskThreshold, c.LIP.HighRiskThreshold, c.LIP.RiskThreshold,
		))
	}
	if c.LIP.DiscountFactor <= 0 || c.LIP.DiscountFactor > 1 {
		errs = append(errs, fmt.Sprintf("lip: lip_discount_factor must be in (0,1], got %v", c.LIP.DiscountFactor))
	}

	if c.Capital.BudgetFraction <= 0 || c.Capital.BudgetFraction > 1 {
		errs = append(errs, fmt.Sprintf("capital: budget_fraction must be in (0,1], got %v", c.Capital.BudgetFraction))
	}

	if c.Circuit.MaxConsecutiveErrors <= 0 {
		errs = append(errs, fmt.Sprintf("circuit: max_consecutive_errors must be positive, got %d", c.Circuit.MaxConsecutiveErrors))
	}
	if c.Circuit.MaxInventoryImbalance <= 0 {
		errs = append(errs, fmt.Sprintf("circuit: max_inventory_imbalance must be positive, got %v", c.Circuit.MaxInventoryImbalance))
	}

	if c.API.Base == "" {
		errs = append(errs, "api: base must not be empty")
	}
	if c.API.TimeoutSeconds <= 0 {
		errs = append(errs, fmt.Sprintf("api: timeout_seconds must be positive, got %d", c.API.TimeoutSeconds))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Dt returns the tick interval as a time.Duration.
func (c *Config) Dt() time.Duration {
	return time.Duration(c.Engine.DtSeconds * float64(time.Second))
}

// ImproveCooldown returns the improve-once cooldown as a time.Duration.
func (c *Config) ImproveCooldown() time.Duration {
	return time.Duration(c.Engine.ImproveCooldownSeconds * float64(time.Second))
}

// DiscoveryInterval returns the discovery poll interval.
func (c *Config) DiscoveryInterval() time.Duration {
	return time.Duration(c.Engine.DiscoveryIntervalSeconds * float64(time.Second))
}

// VolRefreshInterval returns the volatility cache refresh interval.
func (c *Config) VolRefreshInterval() time.Duration {
	return time.Duration(c.Engine.VolRefreshIntervalSeconds * float64(time.Second))
}

// InventoryCheckInterval returns the inventory-imbalance check interval.
func (c *Config) InventoryCheckInterval() time.Duration {
	return time.Duration(c.Engine.InventoryCheckIntervalSecs * float64(time.Second))
}

// BalanceRefreshInterval returns how often the affordability cap's cash
// balance is refetched.
func (c *Config) BalanceRefreshInterval() time.Duration {
	return time.Duration(c.Capital.BalanceRefreshSeconds * float64(time.Second))
}

// MarkoutHorizon returns how long after a fill its markout is evaluated.
func (c *Config) MarkoutHorizon() time.Duration {
	return time.Duration(c.Markout.HorizonSeconds * float64(time.Second))
}

// OrderbookUpdateCooldown returns the reactive-reconcile cooldown.
func (c *Config) OrderbookUpdateCooldown() time.Duration {
	return time.Duration(c.Engine.OrderbookUpdateCooldownMs) * time.Millisecond
}

// MinQuoteWidth returns the min quote width in price units.
func (c *Config) MinQuoteWidth() float64 {
	return float64(c.Engine.MinQuoteWidthCents) / 100
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("WALLET_PRIVATE_KEY"); v != "" {
		cfg.Wallet.PrivateKeyHex = v
	}
	if v := os.Getenv("WALLET_ADDRESS"); v != "" {
		cfg.Wallet.Address = v
	}
}

func setDefaults(cfg *Config) {
	if cfg.Engine.DtSeconds <= 0 {
		cfg.Engine.DtSeconds = 1
	}
	if cfg.Engine.MaxPosition <= 0 {
		cfg.Engine.MaxPosition = 100
	}
	if cfg.Engine.PositionLimitBuffer <= 0 {
		cfg.Engine.PositionLimitBuffer = 0.2
	}
	if cfg.Engine.InventorySkewFactor <= 0 {
		cfg.Engine.InventorySkewFactor = 0.01
	}
	if cfg.Engine.MaxMarketsWithOrders <= 0 {
		cfg.Engine.MaxMarketsWithOrders = 20
	}
	if cfg.Engine.DiscoveryIntervalSeconds <= 0 {
		cfg.Engine.DiscoveryIntervalSeconds = 10
	}
	if cfg.Engine.OrderbookUpdateCooldownMs <= 0 {
		cfg.Engine.OrderbookUpdateCooldownMs = 500
	}
	if cfg.Engine.VolRefreshIntervalSeconds <= 0 {
		cfg.Engine.VolRefreshIntervalSeconds = 300
	}
	if cfg.Engine.VolWorkerCount <= 0 {
		cfg.Engine.VolWorkerCount = 4
	}
	if cfg.Engine.InventoryCheckIntervalSecs <= 0 {
		cfg.Engine.InventoryCheckIntervalSecs = 60
	}
	if cfg.Engine.ThinBookMinSize <= 0 {
		cfg.Engine.ThinBookMinSize = 5
	}

	if cfg.Capital.BudgetFraction <= 0 {
		cfg.Capital.BudgetFraction = 0.25
	}
	if cfg.Capital.BalanceRefreshSeconds <= 0 {
		cfg.Capital.BalanceRefreshSeconds = 30
	}

	if cfg.Markout.Alpha <= 0 {
		cfg.Markout.Alpha = 0.4
	}
	if cfg.Markout.BadThreshold == 0 {
		cfg.Markout.BadThreshold = -0.003
	}
	if cfg.Markout.EdgeBump <= 0 {
		cfg.Markout.EdgeBump = 0.002
	}
	if cfg.Markout.WidthBump <= 0 {
		cfg.Markout.WidthBump = 0.01
	}
	if cfg.Markout.HorizonSeconds <= 0 {
		cfg.Markout.HorizonSeconds = 5
	}

	if cfg.LIP.Enabled == nil {
		enabled := true
		cfg.LIP.Enabled = &enabled
	}
	if cfg.LIP.TimeRiskK <= 0 {
		cfg.LIP.TimeRiskK = 0.15
	}
	if cfg.LIP.VolGamma <= 0 {
		cfg.LIP.VolGamma = 2.0
	}
	if cfg.LIP.RiskThreshold <= 0 {
		cfg.LIP.RiskThreshold = 3.0
	}
	if cfg.LIP.MediumRiskThreshold <= 0 {
		cfg.LIP.MediumRiskThreshold = 1.5
	}
	if cfg.LIP.HighRiskThreshold <= 0 {
		cfg.LIP.HighRiskThreshold = 2.5
	}
	if cfg.LIP.DiscountFactor <= 0 {
		cfg.LIP.DiscountFactor = 0.95
	}
	if cfg.LIP.ContinuousAlpha <= 0 {
		cfg.LIP.ContinuousAlpha = 1.0
	}

	if cfg.Circuit.MaxConsecutiveErrors <= 0 {
		cfg.Circuit.MaxConsecutiveErrors = 10
	}
	if cfg.Circuit.PnLThreshold == 0 {
		cfg.Circuit.PnLThreshold = -100
	}
	if cfg.Circuit.MaxInventoryImbalance <= 0 {
		cfg.Circuit.MaxInventoryImbalance = 0.9
	}

	if cfg.API.Base == "" {
		cfg.API.Base = "https://exchange.example.com"
	}
	if cfg.API.TimeoutSeconds <= 0 {
		cfg.API.TimeoutSeconds = 10
	}
	if cfg.Wallet.ChainID == 0 {
		cfg.Wallet.ChainID = 137
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "marketmaker.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
