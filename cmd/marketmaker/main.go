package main

import (
	"context"
	"crypto/ecdsa"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/alejandrodnm/polybot/config"
	"github.com/alejandrodnm/polybot/internal/adapters/exchange"
	"github.com/alejandrodnm/polybot/internal/adapters/notify"
	"github.com/alejandrodnm/polybot/internal/adapters/storage"
	"github.com/alejandrodnm/polybot/internal/alerting"
	"github.com/alejandrodnm/polybot/internal/domain"
	"github.com/alejandrodnm/polybot/internal/engine"
	"github.com/alejandrodnm/polybot/internal/metrics"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "err", err, "path", *configPath)
		os.Exit(1)
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	slog.Info("market maker starting", "config", *configPath, "api_base", cfg.API.Base)

	var signer exchange.OrderSigner
	if cfg.Wallet.PrivateKeyHex != "" {
		key, err := crypto.HexToECDSA(cfg.Wallet.PrivateKeyHex)
		if err != nil {
			slog.Error("failed to parse wallet private key", "err", err)
			os.Exit(1)
		}
		signer = newSigner(cfg.Wallet.ChainID, key, cfg.Wallet.Address)
	}

	client := exchange.NewClient(cfg.API.Base, signer)

	store, err := storage.NewSQLiteStore(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	alerts := alerting.New(store)
	metricsRecorder := metrics.New(store)
	notifier := notify.NewConsole()

	engCfg := engine.DefaultConfig()
	engCfg.Dt = cfg.Dt()
	engCfg.MaxPosition = cfg.Engine.MaxPosition
	engCfg.PositionLimitBuffer = cfg.Engine.PositionLimitBuffer
	engCfg.InventorySkewFactor = cfg.Engine.InventorySkewFactor
	engCfg.ImproveOncePerTouch = cfg.Engine.ImproveOncePerTouch
	engCfg.ImproveCooldown = cfg.ImproveCooldown()
	engCfg.MinQuoteWidth = cfg.MinQuoteWidth()
	engCfg.MaxMarketsWithOrders = cfg.Engine.MaxMarketsWithOrders
	engCfg.DiscoveryInterval = cfg.DiscoveryInterval()
	engCfg.OrderbookUpdateCooldown = cfg.OrderbookUpdateCooldown()
	engCfg.LIPEnabled = cfg.LIP.Enabled == nil || *cfg.LIP.Enabled
	engCfg.VolRefreshInterval = cfg.VolRefreshInterval()
	engCfg.VolWorkerCount = cfg.Engine.VolWorkerCount
	engCfg.InventoryCheckInterval = cfg.InventoryCheckInterval()
	engCfg.ThinBookMinSize = cfg.Engine.ThinBookMinSize
	engCfg.CapitalBudgetFraction = cfg.Capital.BudgetFraction
	engCfg.BalanceRefreshInterval = cfg.BalanceRefreshInterval()
	engCfg.Risk = domain.RiskConfig{
		TimeRiskK:           cfg.LIP.TimeRiskK,
		VolGamma:            cfg.LIP.VolGamma,
		RiskThreshold:       cfg.LIP.RiskThreshold,
		MediumRiskThreshold: cfg.LIP.MediumRiskThreshold,
		HighRiskThreshold:   cfg.LIP.HighRiskThreshold,
		DiscountFactor:      cfg.LIP.DiscountFactor,
		InventorySkewFactor: cfg.Engine.InventorySkewFactor,
		ContinuousAlpha:     cfg.LIP.ContinuousAlpha,
	}
	engCfg.Breaker = domain.CircuitBreakerConfig{
		MaxConsecutiveErrors:  cfg.Circuit.MaxConsecutiveErrors,
		PnLThreshold:          cfg.Circuit.PnLThreshold,
		MaxInventoryImbalance: cfg.Circuit.MaxInventoryImbalance,
	}
	engCfg.Markout = domain.MarkoutConfig{
		Alpha:        cfg.Markout.Alpha,
		BadThreshold: cfg.Markout.BadThreshold,
		EdgeBump:     cfg.Markout.EdgeBump,
		WidthBump:    cfg.Markout.WidthBump,
	}
	engCfg.MarkoutHorizon = cfg.MarkoutHorizon()

	sched := engine.NewScheduler(engCfg, client, store, metricsRecorder, alerts, notifier)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := sched.Run(ctx); err != nil {
		slog.Error("scheduler exited with error", "err", err)
		os.Exit(1)
	}

	slog.Info("market maker stopped cleanly")
}

func newSigner(chainID int64, key *ecdsa.PrivateKey, address string) *exchange.WalletSigner {
	return exchange.NewWalletSigner(chainID, key, address)
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
