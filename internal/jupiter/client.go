// internal/jupiter/client.go
package jupiter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/solfi-labs/trenchbot/internal/resilience"
)

// ErrUnavailable marks a quote the aggregator could not produce. Callers
// treat it as non-fatal and try again on a later cycle.
var ErrUnavailable = errors.New("quote unavailable")

// DefaultBaseURL is the Jupiter v6 quote API.
const DefaultBaseURL = "https://quote-api.jup.ag/v6"

// solDecimals is the precision of native SOL (lamports).
const solDecimals = 9

// DecimalsResolver reports the decimal precision of a mint. ok=false means
// the precision is unknown and the client falls back to the default.
type DecimalsResolver func(ctx context.Context, mint string) (uint8, bool)

// Config configures the quote client.
type Config struct {
	BaseURL string
	// DefaultDecimals is used when the resolver cannot determine a
	// mint's precision. The canonical 9 is a known approximation; every
	// fallback is logged so mispriced tokens can be traced.
	DefaultDecimals uint8
	SlippageBps     int
	HTTPTimeout     time.Duration
	Resolver        DecimalsResolver
}

func (c *Config) setDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.DefaultDecimals == 0 {
		c.DefaultDecimals = solDecimals
	}
	if c.SlippageBps == 0 {
		c.SlippageBps = 50
	}
	if c.HTTPTimeout == 0 {
		c.HTTPTimeout = 15 * time.Second
	}
}

// Client talks to the Jupiter quote API. Every request passes through the
// shared rate limiter and the retry wrapper before any network I/O.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *resilience.Limiter
	retrier *resilience.Retrier
	logger  *zap.Logger
}

// NewClient creates a quote client.
func NewClient(cfg Config, limiter *resilience.Limiter, retrier *resilience.Retrier, logger *zap.Logger) *Client {
	cfg.setDefaults()
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.HTTPTimeout},
		limiter: limiter,
		retrier: retrier,
		logger:  logger.Named("jupiter"),
	}
}

// GetQuote requests a swap quote. The "SOL" sentinel on either side maps to
// the wrapped-SOL mint; amount is in human units of the input token.
func (c *Client) GetQuote(ctx context.Context, inputMint, outputMint string, amount float64, slippageBps int) (*Quote, error) {
	if amount <= 0 {
		return nil, &resilience.ValidationError{Err: fmt.Errorf("non-positive amount %v", amount)}
	}
	if slippageBps <= 0 {
		slippageBps = c.cfg.SlippageBps
	}

	in := c.normalizeMint(inputMint)
	out := c.normalizeMint(outputMint)
	raw := c.toSmallestUnits(ctx, in, amount)

	params := url.Values{}
	params.Set("inputMint", in)
	params.Set("outputMint", out)
	params.Set("amount", raw.String())
	params.Set("slippageBps", strconv.Itoa(slippageBps))

	quote, err := resilience.Call(ctx, c.retrier, "jupiter.quote", func() (*Quote, error) {
		return c.fetchQuote(ctx, params)
	})
	if err != nil {
		c.logger.Error("failed to get quote",
			zap.String("input_mint", in),
			zap.String("output_mint", out),
			zap.Error(err))
		return nil, err
	}
	return quote, nil
}

// GetSwapTransaction requests a signable transaction for a quote.
func (c *Client) GetSwapTransaction(ctx context.Context, quote *Quote, userPublicKey string) (string, error) {
	if quote == nil || len(quote.Raw) == 0 {
		return "", &resilience.ValidationError{Err: errors.New("empty quote")}
	}
	body, err := json.Marshal(swapRequest{
		QuoteResponse: quote.Raw,
		UserPublicKey: userPublicKey,
		WrapUnwrapSOL: true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode swap request: %w", err)
	}

	tx, err := resilience.Call(ctx, c.retrier, "jupiter.swap", func() (string, error) {
		return c.fetchSwapTransaction(ctx, body)
	})
	if err != nil {
		c.logger.Error("failed to get swap transaction", zap.Error(err))
		return "", err
	}
	return tx, nil
}

// GetPrice derives a token's price in SOL from a canonical one-unit quote.
// Price lookups consume the same rate budget as trade quotes.
func (c *Client) GetPrice(ctx context.Context, mint string) (float64, error) {
	quote, err := c.GetQuote(ctx, mint, SOL, 1.0, 0)
	if err != nil {
		return 0, err
	}

	inTokens, err := c.fromSmallestUnits(ctx, c.normalizeMint(mint), quote.InAmount)
	if err != nil {
		return 0, err
	}
	outSOL, err := c.fromSmallestUnits(ctx, WrappedSOLMint, quote.OutAmount)
	if err != nil {
		return 0, err
	}
	if inTokens <= 0 || outSOL <= 0 {
		return 0, fmt.Errorf("%w: degenerate quote %s/%s", ErrUnavailable, quote.InAmount, quote.OutAmount)
	}

	price := outSOL / inTokens
	c.logger.Debug("derived token price",
		zap.String("mint", mint),
		zap.Float64("price_sol", price))
	return price, nil
}

func (c *Client) fetchQuote(ctx context.Context, params url.Values) (*Quote, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/quote?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build quote request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("quote request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read quote response: %w", err)
	}
	if err := classifyStatus(resp, body); err != nil {
		return nil, err
	}

	var quote Quote
	if err := json.Unmarshal(body, &quote); err != nil {
		return nil, fmt.Errorf("failed to decode quote: %w", err)
	}
	if quote.OutAmount == "" {
		return nil, fmt.Errorf("%w: no route", ErrUnavailable)
	}
	quote.Raw = body
	return &quote, nil
}

func (c *Client) fetchSwapTransaction(ctx context.Context, body []byte) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/swap", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build swap request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("swap request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read swap response: %w", err)
	}
	if err := classifyStatus(resp, respBody); err != nil {
		return "", err
	}

	var out swapResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("failed to decode swap response: %w", err)
	}
	if out.SwapTransaction == "" {
		return "", fmt.Errorf("%w: swap response missing transaction", ErrUnavailable)
	}
	return out.SwapTransaction, nil
}

// classifyStatus maps a non-200 response to the resilience taxonomy. The
// body is diagnostic text only.
func classifyStatus(resp *http.Response, body []byte) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}

	reason := fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		wait := 30 * time.Second
		if s := resp.Header.Get("Retry-After"); s != "" {
			if secs, err := strconv.Atoi(s); err == nil && secs > 0 {
				wait = time.Duration(secs) * time.Second
			}
		}
		return &resilience.ThrottleError{RetryAfter: wait, Err: reason}
	case http.StatusUnauthorized, http.StatusForbidden:
		return &resilience.AuthError{Err: reason}
	case http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity:
		return &resilience.ValidationError{Err: reason}
	default:
		return reason
	}
}

func (c *Client) normalizeMint(mint string) string {
	if strings.EqualFold(mint, SOL) {
		return WrappedSOLMint
	}
	return mint
}

// decimalsFor resolves a mint's precision, falling back to the configured
// default with a warning so the approximation is never silent.
func (c *Client) decimalsFor(ctx context.Context, mint string) uint8 {
	if mint == WrappedSOLMint {
		return solDecimals
	}
	if c.cfg.Resolver != nil {
		if d, ok := c.cfg.Resolver(ctx, mint); ok {
			return d
		}
	}
	c.logger.Warn("unknown token decimals, assuming default",
		zap.String("mint", mint),
		zap.Uint8("default", c.cfg.DefaultDecimals))
	return c.cfg.DefaultDecimals
}

func (c *Client) toSmallestUnits(ctx context.Context, mint string, amount float64) decimal.Decimal {
	dec := c.decimalsFor(ctx, mint)
	return decimal.NewFromFloat(amount).Shift(int32(dec)).Floor()
}

func (c *Client) fromSmallestUnits(ctx context.Context, mint, raw string) (float64, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("failed to parse amount %q: %w", raw, err)
	}
	dec := c.decimalsFor(ctx, mint)
	f, _ := d.Shift(-int32(dec)).Float64()
	return f, nil
}

// HumanAmount converts a raw smallest-unit amount string using the mint's
// resolved precision. Used by the engine to derive actually-executed sizes
// from a quote.
func (c *Client) HumanAmount(ctx context.Context, mint, raw string) (float64, error) {
	return c.fromSmallestUnits(ctx, c.normalizeMint(mint), raw)
}
