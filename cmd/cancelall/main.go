package main

// cancelall sweeps every resting order on the account, grounded on the
// source's cancel_all_orders.py: authenticate, list open orders, cancel
// each one, report what succeeded and what didn't.

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/alejandrodnm/polybot/config"
	"github.com/alejandrodnm/polybot/internal/adapters/exchange"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	var signer exchange.OrderSigner
	if cfg.Wallet.PrivateKeyHex != "" {
		key, err := crypto.HexToECDSA(cfg.Wallet.PrivateKeyHex)
		if err != nil {
			slog.Error("failed to parse wallet private key", "err", err)
			os.Exit(1)
		}
		signer = exchange.NewWalletSigner(cfg.Wallet.ChainID, key, cfg.Wallet.Address)
	}

	client := exchange.NewClient(cfg.API.Base, signer)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	orders, err := client.ListOpenOrders(ctx)
	if err != nil {
		slog.Error("failed to list open orders", "err", err)
		os.Exit(1)
	}
	if len(orders) == 0 {
		slog.Info("no open orders")
		return
	}

	var canceled, failed int
	for _, o := range orders {
		if err := client.CancelOrder(ctx, o.OrderID); err != nil {
			slog.Error("cancel failed", "order_id", o.OrderID, "ticker", o.Ticker, "err", err)
			failed++
			continue
		}
		slog.Info("canceled", "order_id", o.OrderID, "ticker", o.Ticker, "side", o.Side, "price", o.Price, "size", o.Size)
		canceled++
	}

	slog.Info("cancel-all complete", "canceled", canceled, "failed", failed)
	if failed > 0 {
		os.Exit(1)
	}
}
