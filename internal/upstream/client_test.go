package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"papertrade-gateway/internal/portfolio"
)

type staticTokens string

func (s staticTokens) AccessToken() string { return string(s) }

func newTestClient(url string) *Client {
	return NewClient(Config{BaseURL: url, RequestTimeout: 2 * time.Second, RetryAttempts: 1}, staticTokens("test-token"))
}

func TestGetPortfolioSendsBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"holdings":[{"symbol":"TCS","asset_type":"stock","quantity":10,"average_price":3400,"current_price":3500}],"total_value":35000}`))
	}))
	defer srv.Close()

	resp, err := newTestClient(srv.URL).GetPortfolio(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAuth != "Bearer test-token" {
		t.Errorf("expected Bearer test-token, got %q", gotAuth)
	}
	if len(resp.Holdings) != 1 || resp.Holdings[0].Symbol != "TCS" {
		t.Errorf("unexpected holdings: %+v", resp.Holdings)
	}
	if float64(resp.TotalValue) != 35000 {
		t.Errorf("expected total value 35000, got %v", resp.TotalValue)
	}
}

func TestUnauthorizedSurfacesSentinel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).GetPortfolio(context.Background())
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestGetIntradayTradesPassesDate(t *testing.T) {
	var gotDate string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotDate = r.URL.Query().Get("date")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"symbol":"WIPRO","side":"BUY","quantity":20,"price":450,"status":"filled","executed_at":"2026-03-16T10:00:00Z"}]`))
	}))
	defer srv.Close()

	day := portfolio.NewDay(2026, time.March, 16)
	trades, err := newTestClient(srv.URL).GetIntradayTrades(context.Background(), day)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotDate != "2026-03-16" {
		t.Errorf("expected date query 2026-03-16, got %q", gotDate)
	}
	if len(trades) != 1 || trades[0].Symbol != "WIPRO" {
		t.Errorf("unexpected trades: %+v", trades)
	}
}

func TestGetLeaderboardPassesLimit(t *testing.T) {
	var gotLimit string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLimit = r.URL.Query().Get("limit")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"rank":1,"user_id":"u1","username":"alpha","total_value":120000,"total_pnl":20000}]`))
	}))
	defer srv.Close()

	entries, err := newTestClient(srv.URL).GetLeaderboard(context.Background(), 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotLimit != "50" {
		t.Errorf("expected limit=50, got %q", gotLimit)
	}
	if len(entries) != 1 || entries[0].Username != "alpha" {
		t.Errorf("unexpected entries: %+v", entries)
	}
}

func TestGetStockPricesMapsSymbols(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("symbols"); got != "TCS,WIPRO" {
			t.Errorf("expected symbols=TCS,WIPRO, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"symbol":"tcs","price":3500},{"symbol":"WIPRO","price":455}]`))
	}))
	defer srv.Close()

	prices, err := newTestClient(srv.URL).GetStockPrices(context.Background(), []string{"TCS", "WIPRO"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if prices["TCS"] != 3500 || prices["WIPRO"] != 455 {
		t.Errorf("unexpected prices: %+v", prices)
	}
}

func TestGetStockPricesEmptyInput(t *testing.T) {
	prices, err := newTestClient("http://never-called.invalid").GetStockPrices(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(prices) != 0 {
		t.Errorf("expected empty map, got %+v", prices)
	}
}

func TestMalformedNumericFieldsTolerated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"holdings":[{"symbol":"TCS","quantity":"abc","average_price":null,"current_price":"3500"}]}`))
	}))
	defer srv.Close()

	resp, err := newTestClient(srv.URL).GetPortfolio(context.Background())
	if err != nil {
		t.Fatalf("tolerant decode must not fail: %v", err)
	}
	h := resp.Holdings[0]
	if float64(h.Quantity) != 0 || float64(h.AveragePrice) != 0 {
		t.Errorf("expected malformed numerics coerced to 0, got %+v", h)
	}
	if float64(h.CurrentPrice) != 3500 {
		t.Errorf("expected quoted numeric parsed, got %v", h.CurrentPrice)
	}
}
