// internal/scout/tokenlist.go
package scout

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/solfi-labs/trenchbot/internal/resilience"
)

// TokenListSource pulls candidates from a JSON token-list endpoint of the
// form [{"symbol":..., "address":..., "price":...}, ...]. Requests go
// through the shared limiter and retrier like every other outbound call.
type TokenListSource struct {
	name    string
	url     string
	http    *http.Client
	limiter *resilience.Limiter
	retrier *resilience.Retrier
	logger  *zap.Logger
}

type tokenListEntry struct {
	Symbol  string  `json:"symbol"`
	Address string  `json:"address"`
	Price   float64 `json:"price"`
}

// NewTokenListSource creates a source reading the given endpoint.
func NewTokenListSource(name, url string, limiter *resilience.Limiter, retrier *resilience.Retrier, logger *zap.Logger) *TokenListSource {
	return &TokenListSource{
		name:    name,
		url:     url,
		http:    &http.Client{Timeout: 15 * time.Second},
		limiter: limiter,
		retrier: retrier,
		logger:  logger.Named("tokenlist"),
	}
}

func (s *TokenListSource) Name() string { return s.name }

func (s *TokenListSource) Initialize(ctx context.Context) error { return nil }

func (s *TokenListSource) Teardown() error { return nil }

// Extract fetches the current token list.
func (s *TokenListSource) Extract(ctx context.Context) ([]Candidate, error) {
	entries, err := resilience.Call(ctx, s.retrier, "tokenlist.fetch", func() ([]tokenListEntry, error) {
		return s.fetch(ctx)
	})
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(entries))
	for _, e := range entries {
		if e.Symbol == "" || e.Address == "" {
			continue
		}
		candidates = append(candidates, Candidate{
			Symbol:  e.Symbol,
			Address: e.Address,
			Source:  s.name,
			Price:   e.Price,
		})
	}
	return candidates, nil
}

func (s *TokenListSource) fetch(ctx context.Context) ([]tokenListEntry, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build token list request: %w", err)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token list request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token list response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token list status %d: %s", resp.StatusCode, string(body))
	}

	var entries []tokenListEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode token list: %w", err)
	}
	return entries, nil
}
