package portfolio

import (
	"encoding/json"
	"math"
	"testing"
	"time"
)

var testDay = NewDay(2026, time.March, 16)

func at(hour int) time.Time {
	return time.Date(2026, time.March, 16, hour, 0, 0, 0, time.UTC)
}

func stock(symbol string, qty, avg, cur float64) Holding {
	h := Holding{
		Symbol:       symbol,
		AssetType:    AssetStock,
		Quantity:     Number(qty),
		AveragePrice: Number(avg),
		CurrentPrice: Number(cur),
	}
	ComputeDerived(&h)
	return h
}

func floatEquals(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance
}

func TestConfirmedHoldingWithTodayBuyIsIntraday(t *testing.T) {
	holdings := []Holding{stock("TCS", 10, 3400, 3500)}
	trades := []TradeExecution{
		{Symbol: "TCS", Side: "BUY", Quantity: 5, Price: 3480, Status: "filled", ExecutedAt: at(10)},
	}

	r := Reconcile(holdings, trades, testDay, nil)

	if len(r.Intraday) != 1 || r.Intraday[0].Symbol != "TCS" {
		t.Fatalf("expected TCS in intraday bucket, got %+v", r)
	}
	if len(r.LongTerm) != 0 {
		t.Errorf("expected empty long-term bucket, got %+v", r.LongTerm)
	}
	if r.Intraday[0].IsSynthetic {
		t.Error("confirmed holding must not be marked synthetic")
	}
}

func TestSyntheticHoldingForNewPosition(t *testing.T) {
	trades := []TradeExecution{
		{Symbol: "WIPRO", Side: "buy", Quantity: 20, Price: 450, Status: "COMPLETED", ExecutedAt: at(11)},
	}

	r := Reconcile(nil, trades, testDay, nil)

	if len(r.Intraday) != 1 {
		t.Fatalf("expected one synthetic holding, got %+v", r.Intraday)
	}
	h := r.Intraday[0]
	if !h.IsSynthetic {
		t.Error("expected IsSynthetic=true")
	}
	if float64(h.Quantity) != 20 {
		t.Errorf("expected quantity 20, got %v", h.Quantity)
	}
	if float64(h.AveragePrice) != 450 {
		t.Errorf("expected average price 450, got %v", h.AveragePrice)
	}
	if float64(h.CurrentPrice) != 450 {
		t.Errorf("expected current price to fall back to average price, got %v", h.CurrentPrice)
	}
	if h.TotalValue != 9000 {
		t.Errorf("expected total value 9000, got %v", h.TotalValue)
	}
}

func TestSymbolCasingDoesNotSplitPosition(t *testing.T) {
	holdings := []Holding{stock("TCS", 10, 3400, 3500)}
	trades := []TradeExecution{
		{Symbol: "tcs", Side: "BUY", Quantity: 5, Price: 3480, Status: "filled", ExecutedAt: at(10)},
	}

	r := Reconcile(holdings, trades, testDay, nil)

	if len(r.Intraday) != 1 || r.Intraday[0].Symbol != "TCS" {
		t.Fatalf("expected lowercase trade to match confirmed TCS holding, got %+v", r)
	}
	if r.Intraday[0].IsSynthetic {
		t.Error("confirmed holding must not be replaced by a synthetic one")
	}
	if len(r.LongTerm) != 0 {
		t.Errorf("expected empty long-term bucket, got %+v", r.LongTerm)
	}
}

func TestSyntheticHoldingUsesMostRecentBuyPriceAndLivePrice(t *testing.T) {
	trades := []TradeExecution{
		{Symbol: "WIPRO", Side: "BUY", Quantity: 10, Price: 440, Status: "filled", ExecutedAt: at(9)},
		{Symbol: "WIPRO", Side: "BUY", Quantity: 10, Price: 452, Status: "filled", ExecutedAt: at(14)},
	}
	live := map[string]float64{"WIPRO": 455}

	r := Reconcile(nil, trades, testDay, live)

	if len(r.Intraday) != 1 {
		t.Fatalf("expected one synthetic holding, got %+v", r.Intraday)
	}
	h := r.Intraday[0]
	if float64(h.AveragePrice) != 452 {
		t.Errorf("expected most recent BUY price 452, got %v", h.AveragePrice)
	}
	if float64(h.CurrentPrice) != 455 {
		t.Errorf("expected live price 455, got %v", h.CurrentPrice)
	}
	if !floatEquals(h.ProfitLoss, (455-452)*20, 1e-9) {
		t.Errorf("unexpected profit/loss %v", h.ProfitLoss)
	}
}

func TestZeroNetPositionRevertsToLongTerm(t *testing.T) {
	holdings := []Holding{stock("TCS", 10, 3400, 3500)}
	trades := []TradeExecution{
		{Symbol: "TCS", Side: "BUY", Quantity: 10, Price: 3480, Status: "filled", ExecutedAt: at(10)},
		{Symbol: "TCS", Side: "SELL", Quantity: 10, Price: 3490, Status: "filled", ExecutedAt: at(12)},
	}

	r := Reconcile(holdings, trades, testDay, nil)

	if len(r.Intraday) != 0 {
		t.Errorf("net-zero symbol must not appear in intraday bucket, got %+v", r.Intraday)
	}
	if len(r.LongTerm) != 1 || r.LongTerm[0].Symbol != "TCS" {
		t.Errorf("expected confirmed holding back in long-term bucket, got %+v", r.LongTerm)
	}
}

func TestZeroNetPositionWithoutHoldingSynthesizesNothing(t *testing.T) {
	trades := []TradeExecution{
		{Symbol: "INFY", Side: "BUY", Quantity: 5, Price: 1500, Status: "filled", ExecutedAt: at(10)},
		{Symbol: "INFY", Side: "SELL", Quantity: 5, Price: 1510, Status: "filled", ExecutedAt: at(11)},
	}

	r := Reconcile(nil, trades, testDay, nil)

	if len(r.Intraday) != 0 || len(r.LongTerm) != 0 {
		t.Errorf("expected both buckets empty, got %+v", r)
	}
}

func TestTerminalFailureStatusesExcluded(t *testing.T) {
	trades := []TradeExecution{
		{Symbol: "TCS", Side: "BUY", Quantity: 5, Price: 3480, Status: "REJECTED", ExecutedAt: at(10)},
		{Symbol: "TCS", Side: "BUY", Quantity: 3, Price: 3480, Status: "Cancelled", ExecutedAt: at(11)},
		{Symbol: "INFY", Side: "BUY", Quantity: 2, Price: 1500, Status: "open", ExecutedAt: at(11)},
	}

	r := Reconcile(nil, trades, testDay, nil)

	if len(r.Intraday) != 1 || r.Intraday[0].Symbol != "INFY" {
		t.Errorf("expected only INFY (permissive status) to count, got %+v", r.Intraday)
	}
}

func TestCryptoExcludedFromReconciliation(t *testing.T) {
	holdings := []Holding{
		stock("TCS", 10, 3400, 3500),
		{Symbol: "BTC", AssetType: AssetCrypto, Quantity: 1, AveragePrice: 60000, CurrentPrice: 65000},
	}
	trades := []TradeExecution{
		{Symbol: "BTC", AssetType: AssetCrypto, Side: "BUY", Quantity: 1, Price: 64000, Status: "filled", ExecutedAt: at(10)},
	}

	r := Reconcile(holdings, trades, testDay, nil)

	if len(r.LongTerm) != 1 || r.LongTerm[0].Symbol != "TCS" {
		t.Errorf("expected only the stock holding in long-term, got %+v", r.LongTerm)
	}
	if len(r.Intraday) != 0 {
		t.Errorf("crypto trades must not produce intraday entries, got %+v", r.Intraday)
	}
}

func TestTradesOutsideDayIgnored(t *testing.T) {
	yesterday := time.Date(2026, time.March, 15, 15, 0, 0, 0, time.UTC)
	trades := []TradeExecution{
		{Symbol: "TCS", Side: "BUY", Quantity: 5, Price: 3480, Status: "filled", ExecutedAt: yesterday},
	}

	r := Reconcile([]Holding{stock("TCS", 10, 3400, 3500)}, trades, testDay, nil)

	if len(r.LongTerm) != 1 {
		t.Errorf("expected yesterday's trade ignored, got %+v", r)
	}
}

func TestAggregateAdditiveAcrossPartition(t *testing.T) {
	holdings := []Holding{
		stock("TCS", 10, 3400, 3500),
		stock("INFY", 20, 1500, 1480),
		stock("HDFC", 5, 1600, 1650),
	}
	trades := []TradeExecution{
		{Symbol: "INFY", Side: "BUY", Quantity: 5, Price: 1470, Status: "filled", ExecutedAt: at(10)},
	}

	r := Reconcile(holdings, trades, testDay, nil)

	full := Aggregate(holdings)
	longTerm := Aggregate(r.LongTerm)
	intraday := Aggregate(r.Intraday)

	if !floatEquals(full.TotalPnL, longTerm.TotalPnL+intraday.TotalPnL, 1e-9) {
		t.Errorf("TotalPnL not additive: full=%v longTerm=%v intraday=%v",
			full.TotalPnL, longTerm.TotalPnL, intraday.TotalPnL)
	}
	if !floatEquals(full.TotalValue, longTerm.TotalValue+intraday.TotalValue, 1e-9) {
		t.Errorf("TotalValue not additive: full=%v sum=%v",
			full.TotalValue, longTerm.TotalValue+intraday.TotalValue)
	}
	if !floatEquals(full.TotalInvested, longTerm.TotalInvested+intraday.TotalInvested, 1e-9) {
		t.Errorf("TotalInvested not additive")
	}
}

func TestAggregateEmptyHoldings(t *testing.T) {
	m := Aggregate(nil)
	if m.TotalValue != 0 || m.TotalPnL != 0 || m.TotalPnLPercent != 0 {
		t.Errorf("expected zero metrics for empty set, got %+v", m)
	}
}

func TestMalformedQuantityDegradesToZero(t *testing.T) {
	payload := `[
		{"symbol":"TCS","asset_type":"stock","quantity":"abc","average_price":3400,"current_price":3500},
		{"symbol":"INFY","asset_type":"stock","quantity":10,"average_price":"1500","current_price":1480}
	]`

	var holdings []Holding
	if err := json.Unmarshal([]byte(payload), &holdings); err != nil {
		t.Fatalf("tolerant decode must not fail: %v", err)
	}

	if float64(holdings[0].Quantity) != 0 {
		t.Errorf("expected malformed quantity coerced to 0, got %v", holdings[0].Quantity)
	}
	if float64(holdings[1].AveragePrice) != 1500 {
		t.Errorf("expected numeric string parsed, got %v", holdings[1].AveragePrice)
	}

	m := Aggregate(holdings)
	// TCS contributes nothing; INFY contributes 10 * 1480.
	if !floatEquals(m.TotalValue, 14800, 1e-9) {
		t.Errorf("expected total value 14800, got %v", m.TotalValue)
	}
}

func TestDayContains(t *testing.T) {
	d := NewDay(2026, time.March, 16)

	if !d.Contains(time.Date(2026, time.March, 16, 23, 59, 59, 0, time.UTC)) {
		t.Error("end of day should be contained")
	}
	if d.Contains(time.Date(2026, time.March, 17, 0, 0, 1, 0, time.UTC)) {
		t.Error("next day should not be contained")
	}
	if got := d.String(); got != "2026-03-16" {
		t.Errorf("expected 2026-03-16, got %s", got)
	}
}

func TestDayNormalization(t *testing.T) {
	// March 32nd normalizes to April 1st.
	d := NewDay(2026, time.March, 32)
	if got := d.String(); got != "2026-04-01" {
		t.Errorf("expected normalized 2026-04-01, got %s", got)
	}
}
