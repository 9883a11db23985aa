package exchange

// client.go — REST transport for the exchange client contract of §6:
// rate-limited HTTP with exponential-backoff retry, modeled on the
// teacher's polymarket.Client, generalized from a single CLOB base URL
// to the abstract place/cancel/book/candle/universe surface.

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/alejandrodnm/polybot/internal/domain"
)

const (
	defaultBaseURL = "https://api.exchange.example.com"

	// Rate limits are kept conservative relative to any documented
	// exchange budget; they are fixed here, NewClient takes no override.
	tradingRatePerSec = 10
	marketRatePerSec  = 20

	maxRetries    = 3
	baseRetryWait = 100 * time.Millisecond
	maxRetryWait  = 5 * time.Second
)

// Client is the HTTP transport half of ports.ExchangeClient: placement,
// cancellation, book/candle/universe reads. Streaming subscriptions live
// in stream.go.
type Client struct {
	http          *http.Client
	baseURL       string
	tradingLimiter *rate.Limiter
	marketLimiter  *rate.Limiter
	signer         OrderSigner
}

// OrderSigner produces the signature payload PlaceOrder attaches to an
// order request. Implementations wrap wallet-key signing (EIP-712, via
// go-order-utils) or an HMAC/API-key scheme, depending on deployment.
type OrderSigner interface {
	Sign(ctx context.Context, req domain.LiveOrder) (signature string, err error)
}

// NewClient creates a Client against baseURL (or the default if empty).
func NewClient(baseURL string, signer OrderSigner) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		http:           &http.Client{Timeout: 10 * time.Second},
		baseURL:        baseURL,
		tradingLimiter: rate.NewLimiter(tradingRatePerSec, 5),
		marketLimiter:  rate.NewLimiter(marketRatePerSec, 10),
		signer:         signer,
	}
}

func (c *Client) get(ctx context.Context, limiter *rate.Limiter, path string, out any) error {
	return c.doWithRetry(ctx, limiter, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	}, out)
}

// post issues a POST with a single idempotency key attached to every
// retry attempt of this call, so a request that actually reached the
// exchange before a client-side timeout doesn't get resubmitted as a
// second order on retry.
func (c *Client) post(ctx context.Context, limiter *rate.Limiter, path string, body, out any) error {
	idempotencyKey := uuid.NewString()
	return c.doWithRetry(ctx, limiter, func() (*http.Request, error) {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", idempotencyKey)
		return req, nil
	}, out)
}

// doWithRetry classifies each response per §7's error policy: 429 backs
// off locally (up to maxRetries) before surfacing as transient; 5xx and
// network errors retry as transport errors; 4xx surfaces immediately as
// a classified APIError.
func (c *Client) doWithRetry(ctx context.Context, limiter *rate.Limiter, build func() (*http.Request, error), out any) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return domain.NewAPIError(domain.ErrInternal, "", fmt.Errorf("rate limiter: %w", err))
		}

		req, err := build()
		if err != nil {
			return domain.NewAPIError(domain.ErrInternal, "", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			if attempt == maxRetries {
				return domain.NewAPIError(domain.ErrTransportUnavailable, "", err)
			}
			c.sleep(ctx, attempt)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			resp.Body.Close()
			if attempt == maxRetries {
				return domain.NewAPIError(domain.ErrRateLimited, "", nil)
			}
			slog.Warn("rate limited by exchange", "attempt", attempt+1)
			c.sleep(ctx, attempt)
			continue

		case resp.StatusCode >= 500:
			resp.Body.Close()
			if attempt == maxRetries {
				return domain.NewAPIError(domain.ErrTransportUnavailable, "", fmt.Errorf("server error %d", resp.StatusCode))
			}
			c.sleep(ctx, attempt)
			continue

		case resp.StatusCode == http.StatusUnauthorized:
			resp.Body.Close()
			return domain.NewAPIError(domain.ErrAuthExpired, "", nil)

		case resp.StatusCode == http.StatusNotFound:
			resp.Body.Close()
			return domain.NewAPIError(domain.ErrNotFound, "", nil)

		case resp.StatusCode >= 400:
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return domain.NewAPIError(domain.ErrOrderRejected, string(body), nil)
		}

		defer resp.Body.Close()
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return domain.NewAPIError(domain.ErrMalformedMessage, "", err)
		}
		return nil
	}
	return domain.NewAPIError(domain.ErrTransportUnavailable, "exhausted retries", nil)
}

// sleep backs off exponentially with a cap, honoring cancellation.
func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	if wait > maxRetryWait {
		wait = maxRetryWait
	}
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
