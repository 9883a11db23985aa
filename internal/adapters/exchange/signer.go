package exchange

// signer.go — EIP-712 order signing. The exchange contract is transport-
// agnostic about authentication; WalletSigner is the concrete scheme
// used when the deployment's venue requires on-chain-style signed
// orders rather than a bare API key.

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"math"
	"math/big"
	"strconv"

	orderbuilder "github.com/polymarket/go-order-utils/pkg/builder"
	ordermodel "github.com/polymarket/go-order-utils/pkg/model"

	"github.com/alejandrodnm/polybot/internal/domain"
)

// WalletSigner signs orders with a wallet private key, producing the
// EIP-712 signature the exchange's /orders endpoint expects.
type WalletSigner struct {
	privateKey *ecdsa.PrivateKey
	address    string
	chainID    int64
	builder    orderbuilder.ExchangeOrderBuilder
}

// NewWalletSigner constructs a signer for the given chain and wallet.
func NewWalletSigner(chainID int64, privateKey *ecdsa.PrivateKey, address string) *WalletSigner {
	return &WalletSigner{
		privateKey: privateKey,
		address:    address,
		chainID:    chainID,
		builder:    orderbuilder.NewExchangeOrderBuilderImpl(big.NewInt(chainID), nil),
	}
}

// Sign builds and signs an order, returning its signature in hex.
// Amounts are computed with integer arithmetic to avoid the
// floating-point rounding the exchange would reject.
func (w *WalletSigner) Sign(_ context.Context, order domain.LiveOrder) (string, error) {
	precision := detectPricePrecision(order.Price)
	priceInt := int64(math.Round(order.Price * float64(precision)))
	sizeUnits := int64(math.Round(order.RemainingSize * 100))

	amountFactor := int64(1_000_000) / (100 * precision)
	makerAmount := sizeUnits * priceInt * amountFactor
	takerAmount := sizeUnits * 10000
	if makerAmount <= 0 || takerAmount <= 0 {
		return "", fmt.Errorf("invalid amounts: maker=%d taker=%d", makerAmount, takerAmount)
	}

	side := ordermodel.BUY
	if order.Side == domain.SideSell {
		side = ordermodel.SELL
	}

	// This venue keys everything by ticker rather than an on-chain
	// conditional-token ID, so the EIP-712 token identifier is a
	// deterministic per-outcome surrogate rather than a real asset ID.
	tokenID := order.Ticker + ":" + string(order.Side)

	orderData := &ordermodel.OrderData{
		Maker:         w.address,
		Taker:         "0x0000000000000000000000000000000000000000",
		TokenId:       tokenID,
		MakerAmount:   strconv.FormatInt(makerAmount, 10),
		TakerAmount:   strconv.FormatInt(takerAmount, 10),
		FeeRateBps:    "0",
		Nonce:         "0",
		Signer:        w.address,
		Expiration:    "0",
		Side:          side,
		SignatureType: ordermodel.EOA,
	}

	signed, err := w.builder.BuildSignedOrder(w.privateKey, orderData, ordermodel.CTFExchange)
	if err != nil {
		return "", fmt.Errorf("build signed order: %w", err)
	}
	return "0x" + hex.EncodeToString(signed.Signature), nil
}

// detectPricePrecision returns the multiplier matching the market's tick
// size, e.g. price=0.60 → 100 (tick 0.01), price=0.673 → 1000 (tick 0.001).
func detectPricePrecision(price float64) int64 {
	for _, prec := range []int64{100, 1000, 10000} {
		rounded := math.Round(price * float64(prec))
		if math.Abs(rounded/float64(prec)-price) < 1e-10 {
			return prec
		}
	}
	return 100
}
