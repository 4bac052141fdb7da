package portfolio

import (
	"math"
	"strings"
	"time"
)

// terminalFailureStatuses are the only execution statuses excluded from the
// net-position math. Every other status counts: over-inclusion is preferred
// over silently missing a legitimately open position.
var terminalFailureStatuses = map[string]bool{
	"rejected":  true,
	"cancelled": true,
	"canceled":  true,
	"failed":    true,
	"expired":   true,
}

// Reconcile partitions confirmed stock holdings into long-term and intraday
// buckets for the given trading day.
//
// A symbol is intraday-open when its net traded quantity today (BUY adds,
// SELL subtracts) is strictly positive. Confirmed holdings of intraday-open
// symbols land in the intraday bucket; intraday-open symbols with no
// confirmed holding get a synthetic one built from today's executions.
// Crypto holdings and non-stock trades are excluded. A same-day round trip
// that nets to zero leaves a confirmed holding in the long-term bucket.
//
// livePrices supplies current prices for synthetic holdings; a symbol absent
// from the map falls back to its average price. Inputs are never mutated.
func Reconcile(holdings []Holding, trades []TradeExecution, day Day, livePrices map[string]float64) Reconciliation {
	stocks := make([]Holding, 0, len(holdings))
	confirmed := make(map[string]bool)
	for _, h := range holdings {
		if h.AssetType != AssetStock {
			continue
		}
		stocks = append(stocks, h)
		confirmed[strings.ToUpper(h.Symbol)] = true
	}

	net := netPositions(trades, day)

	result := Reconciliation{
		LongTerm: make([]Holding, 0, len(stocks)),
		Intraday: make([]Holding, 0, len(net)),
	}

	for _, h := range stocks {
		if net[strings.ToUpper(h.Symbol)] > 0 {
			result.Intraday = append(result.Intraday, h)
		} else {
			result.LongTerm = append(result.LongTerm, h)
		}
	}

	for symbol, qty := range net {
		if qty <= 0 || confirmed[symbol] {
			continue
		}
		result.Intraday = append(result.Intraday, synthesize(symbol, qty, trades, day, livePrices))
	}

	return result
}

// netPositions builds the per-symbol net traded quantity for the day.
// Symbols are keyed uppercase so trade casing never splits a position.
func netPositions(trades []TradeExecution, day Day) map[string]float64 {
	net := make(map[string]float64)
	for _, t := range trades {
		if !eligible(t, day) {
			continue
		}
		symbol := strings.ToUpper(t.Symbol)
		switch strings.ToUpper(t.Side) {
		case SideBuy:
			net[symbol] += safe(float64(t.Quantity))
		case SideSell:
			net[symbol] -= safe(float64(t.Quantity))
		}
	}
	return net
}

func eligible(t TradeExecution, day Day) bool {
	if t.AssetType != "" && t.AssetType != AssetStock {
		return false
	}
	if terminalFailureStatuses[strings.ToLower(t.Status)] {
		return false
	}
	return day.Contains(t.ExecutedAt)
}

// synthesize builds a provisional holding for a symbol traded today that is
// absent from the confirmed portfolio. Average price is the most recently
// executed BUY price; current price falls back from the live feed to the
// average price.
func synthesize(symbol string, qty float64, trades []TradeExecution, day Day, livePrices map[string]float64) Holding {
	var lastBuyPrice float64
	var lastBuyAt time.Time
	for _, t := range trades {
		if !strings.EqualFold(t.Symbol, symbol) || !eligible(t, day) || !strings.EqualFold(t.Side, SideBuy) {
			continue
		}
		if lastBuyAt.IsZero() || t.ExecutedAt.After(lastBuyAt) {
			lastBuyAt = t.ExecutedAt
			lastBuyPrice = safe(float64(t.Price))
		}
	}

	currentPrice := lastBuyPrice
	if p, ok := livePrices[symbol]; ok && p > 0 {
		currentPrice = p
	}

	h := Holding{
		Symbol:       symbol,
		AssetType:    AssetStock,
		Quantity:     Number(qty),
		AveragePrice: Number(lastBuyPrice),
		CurrentPrice: Number(currentPrice),
		IsSynthetic:  true,
	}
	ComputeDerived(&h)
	return h
}

// ComputeDerived fills the invariant-defined fields from quantity and prices:
// totalValue = quantity * currentPrice, profitLoss = (current - avg) * quantity.
func ComputeDerived(h *Holding) {
	qty := safe(float64(h.Quantity))
	avg := safe(float64(h.AveragePrice))
	cur := safe(float64(h.CurrentPrice))

	h.TotalValue = qty * cur
	h.ProfitLoss = (cur - avg) * qty
	if avg > 0 {
		h.ProfitLossPercent = (cur - avg) / avg * 100
	} else {
		h.ProfitLossPercent = 0
	}
}

// safe coerces NaN and infinities to zero so one malformed field degrades a
// single holding's contribution instead of poisoning every aggregate.
func safe(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
