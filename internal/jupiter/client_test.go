// internal/jupiter/client_test.go
package jupiter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/solfi-labs/trenchbot/internal/resilience"
)

func newTestClient(t *testing.T, baseURL string, resolver DecimalsResolver) *Client {
	t.Helper()
	logger := zaptest.NewLogger(t)
	limiter := resilience.NewLimiter(100, time.Second, logger)
	retrier := resilience.NewRetrier(resilience.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond}, logger)
	return NewClient(Config{BaseURL: baseURL, Resolver: resolver}, limiter, retrier, logger)
}

func TestGetQuoteConvertsUnitsAndMapsSOL(t *testing.T) {
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotQuery = map[string]string{
			"inputMint":   q.Get("inputMint"),
			"outputMint":  q.Get("outputMint"),
			"amount":      q.Get("amount"),
			"slippageBps": q.Get("slippageBps"),
		}
		w.Write([]byte(`{"inputMint":"` + WrappedSOLMint + `","outputMint":"addrFOO","inAmount":"100000000","outAmount":"50000000000","slippageBps":50}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)
	quote, err := c.GetQuote(context.Background(), "SOL", "addrFOO", 0.1, 50)
	require.NoError(t, err)

	// 0.1 SOL at 9 decimals.
	assert.Equal(t, "100000000", gotQuery["amount"])
	assert.Equal(t, WrappedSOLMint, gotQuery["inputMint"])
	assert.Equal(t, "addrFOO", gotQuery["outputMint"])
	assert.Equal(t, "50", gotQuery["slippageBps"])

	assert.Equal(t, "100000000", quote.InAmount)
	assert.Equal(t, "50000000000", quote.OutAmount)
	assert.NotEmpty(t, quote.Raw, "raw body kept for the swap endpoint")
}

func TestGetQuoteUsesResolverDecimals(t *testing.T) {
	var amount string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		amount = r.URL.Query().Get("amount")
		w.Write([]byte(`{"inAmount":"1","outAmount":"1"}`))
	}))
	defer srv.Close()

	resolver := func(ctx context.Context, mint string) (uint8, bool) {
		if mint == "addrSIX" {
			return 6, true
		}
		return 0, false
	}
	c := newTestClient(t, srv.URL, resolver)

	_, err := c.GetQuote(context.Background(), "addrSIX", "SOL", 2.5, 50)
	require.NoError(t, err)
	assert.Equal(t, "2500000", amount)
}

func TestGetQuoteRejectsNonPositiveAmount(t *testing.T) {
	c := newTestClient(t, "http://unused.invalid", nil)
	_, err := c.GetQuote(context.Background(), "SOL", "addrFOO", 0, 50)
	require.Error(t, err)
	assert.Equal(t, resilience.KindInvalid, resilience.Classify(err))
}

func TestGetQuoteRetriesTransientFailures(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"inAmount":"1","outAmount":"1"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)
	_, err := c.GetQuote(context.Background(), "SOL", "addrFOO", 0.1, 50)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestGetQuoteAuthFailureNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("bad key"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)
	_, err := c.GetQuote(context.Background(), "SOL", "addrFOO", 0.1, 50)
	require.Error(t, err)
	assert.Equal(t, resilience.KindFatal, resilience.Classify(err))
	assert.Equal(t, 1, calls)
}

func TestGetSwapTransaction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/quote" {
			w.Write([]byte(`{"inAmount":"1","outAmount":"2","routePlan":[]}`))
			return
		}
		require.Equal(t, "/swap", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		w.Write([]byte(`{"swapTransaction":"BASE64TX"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)
	quote, err := c.GetQuote(context.Background(), "SOL", "addrFOO", 0.1, 50)
	require.NoError(t, err)

	tx, err := c.GetSwapTransaction(context.Background(), quote, "walletPubkey")
	require.NoError(t, err)
	assert.Equal(t, "BASE64TX", tx)
}

func TestGetSwapTransactionRejectsEmptyQuote(t *testing.T) {
	c := newTestClient(t, "http://unused.invalid", nil)
	_, err := c.GetSwapTransaction(context.Background(), nil, "walletPubkey")
	require.Error(t, err)
	assert.Equal(t, resilience.KindInvalid, resilience.Classify(err))
}

func TestGetPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// One token in (6 decimals), 2 SOL out.
		w.Write([]byte(`{"inAmount":"1000000","outAmount":"2000000000"}`))
	}))
	defer srv.Close()

	resolver := func(ctx context.Context, mint string) (uint8, bool) { return 6, true }
	c := newTestClient(t, srv.URL, resolver)

	price, err := c.GetPrice(context.Background(), "addrFOO")
	require.NoError(t, err)
	assert.InDelta(t, 2.0, price, 1e-9)
}

func TestClassifyStatusThrottle(t *testing.T) {
	resp := &http.Response{
		StatusCode: http.StatusTooManyRequests,
		Header:     http.Header{"Retry-After": []string{"42"}},
	}
	err := classifyStatus(resp, []byte("slow down"))
	require.Error(t, err)

	var throttle *resilience.ThrottleError
	require.ErrorAs(t, err, &throttle)
	assert.Equal(t, 42*time.Second, throttle.RetryAfter)
}

func TestClassifyStatusValidation(t *testing.T) {
	resp := &http.Response{StatusCode: http.StatusBadRequest, Header: http.Header{}}
	err := classifyStatus(resp, []byte("unknown mint"))
	assert.Equal(t, resilience.KindInvalid, resilience.Classify(err))
}

func TestHumanAmount(t *testing.T) {
	c := newTestClient(t, "http://unused.invalid", nil)
	// Default 9 decimals.
	v, err := c.HumanAmount(context.Background(), "addrFOO", "50000000000")
	require.NoError(t, err)
	assert.InDelta(t, 50.0, v, 1e-9)
}
