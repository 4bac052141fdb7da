// Package upstream is the HTTP client for the external trading API. The
// gateway owns no persistence; every portfolio, trade and leaderboard read
// goes through this client.
package upstream

import (
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

	"papertrade-gateway/internal/httputil"
	"papertrade-gateway/internal/logging"
	"papertrade-gateway/internal/portfolio"
)

// ErrUnauthorized is returned when the trading API rejects the bearer token.
// Callers invalidate the stored credential when they see it.
var ErrUnauthorized = errors.New("upstream: unauthorized")

// TokenProvider supplies the bearer token attached to every request.
type TokenProvider interface {
	AccessToken() string
}

type Config struct {
	BaseURL        string
	RequestTimeout time.Duration
	RetryAttempts  int
}

// Client talks to the trading API over JSON/HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retry      httputil.RetryConfig
	tokens     TokenProvider
	logger     *logging.Logger
}

func NewClient(cfg Config, tokens TokenProvider) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	retry := httputil.DefaultRetry
	if cfg.RetryAttempts > 0 {
		retry.MaxAttempts = cfg.RetryAttempts
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		retry:      retry,
		tokens:     tokens,
		logger:     logging.Default().WithComponent("upstream"),
	}
}

// GetPortfolio fetches the caller's confirmed holdings and account totals.
func (c *Client) GetPortfolio(ctx context.Context) (*PortfolioResponse, error) {
	var out PortfolioResponse
	if err := c.get(ctx, "/api/portfolio", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetTrades fetches the caller's full trade history.
func (c *Client) GetTrades(ctx context.Context) ([]portfolio.TradeExecution, error) {
	var out []portfolio.TradeExecution
	if err := c.get(ctx, "/api/trades", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetIntradayTrades fetches trades executed on the given day.
func (c *Client) GetIntradayTrades(ctx context.Context, day portfolio.Day) ([]portfolio.TradeExecution, error) {
	var out []portfolio.TradeExecution
	q := url.Values{"date": {day.String()}}
	if err := c.get(ctx, "/api/trades/intraday", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetLeaderboard fetches the top entries of the contest leaderboard.
func (c *Client) GetLeaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	var out []LeaderboardEntry
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if err := c.get(ctx, "/api/leaderboard", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetMyRank fetches the caller's own leaderboard standing.
func (c *Client) GetMyRank(ctx context.Context) (*RankResponse, error) {
	var out RankResponse
	if err := c.get(ctx, "/api/leaderboard/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetStockPrices fetches the latest known price for each symbol.
func (c *Client) GetStockPrices(ctx context.Context, symbols []string) (map[string]float64, error) {
	if len(symbols) == 0 {
		return map[string]float64{}, nil
	}
	var out []StockPrice
	q := url.Values{"symbols": {strings.Join(symbols, ",")}}
	if err := c.get(ctx, "/api/stocks/prices", q, &out); err != nil {
		return nil, err
	}
	prices := make(map[string]float64, len(out))
	for _, p := range out {
		prices[strings.ToUpper(p.Symbol)] = float64(p.Price)
	}
	return prices, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	resp, err := httputil.Do(ctx, c.httpClient, c.retry, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if token := c.tokens.AccessToken(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		return req, nil
	})
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("GET %s: HTTP %d: %s", path, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("GET %s: decode response: %w", path, err)
	}
	return nil
}
