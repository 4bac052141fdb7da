package portfolio

// Aggregate computes totals over any holdings sequence. It is pure and
// additive: aggregating the long-term and intraday buckets separately and
// summing gives the same totals as aggregating the full set.
func Aggregate(holdings []Holding) Metrics {
	var m Metrics
	for _, h := range holdings {
		qty := safe(float64(h.Quantity))
		avg := safe(float64(h.AveragePrice))
		cur := safe(float64(h.CurrentPrice))

		m.TotalValue += qty * cur
		m.TotalInvested += qty * avg
		m.TotalPnL += (cur - avg) * qty
	}
	if m.TotalInvested > 0 {
		m.TotalPnLPercent = m.TotalPnL / m.TotalInvested * 100
	}
	return m
}
