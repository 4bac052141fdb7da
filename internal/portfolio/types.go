// Package portfolio implements holdings reconciliation: partitioning confirmed
// stock holdings into long-term and intraday buckets and synthesizing
// provisional holdings for positions opened today that the confirmed portfolio
// has not caught up with yet.
package portfolio

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// Asset types as reported by the trading API.
const (
	AssetStock  = "stock"
	AssetCrypto = "crypto"
)

// Trade sides. Comparison is case-insensitive.
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Number is a float64 that tolerates malformed JSON: numeric strings are
// parsed, anything non-numeric decodes to zero. The API occasionally ships
// quantity and price fields as strings or garbage; a bad field degrades to
// zero for that holding instead of failing the whole payload.
type Number float64

// UnmarshalJSON implements best-effort numeric decoding.
func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}
	s := string(data)
	if s[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			*n = 0
			return nil
		}
		s = str
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*n = 0
		return nil
	}
	*n = Number(v)
	return nil
}

// Holding is a position in the user's portfolio. IsSynthetic marks holdings
// derived from today's trade executions rather than fetched from the
// confirmed portfolio.
type Holding struct {
	Symbol            string  `json:"symbol"`
	AssetType         string  `json:"asset_type"`
	Quantity          Number  `json:"quantity"`
	AveragePrice      Number  `json:"average_price"`
	CurrentPrice      Number  `json:"current_price"`
	TotalValue        float64 `json:"total_value"`
	ProfitLoss        float64 `json:"profit_loss"`
	ProfitLossPercent float64 `json:"profit_loss_percent"`
	IsSynthetic       bool    `json:"is_synthetic,omitempty"`
}

// TradeExecution is an immutable record of an order fill. Used only as
// reconciliation input, never mutated.
type TradeExecution struct {
	Symbol     string    `json:"symbol"`
	AssetType  string    `json:"asset_type,omitempty"`
	Side       string    `json:"side"`
	Quantity   Number    `json:"quantity"`
	Price      Number    `json:"price"`
	Status     string    `json:"status"`
	ExecutedAt time.Time `json:"executed_at"`
}

// Reconciliation is the partitioned holdings view produced by Reconcile.
type Reconciliation struct {
	LongTerm []Holding `json:"long_term"`
	Intraday []Holding `json:"intraday"`
}

// Metrics are aggregate figures over a holdings set. Derived, never stored.
type Metrics struct {
	TotalValue      float64 `json:"total_value"`
	TotalInvested   float64 `json:"total_invested"`
	TotalPnL        float64 `json:"total_pnl"`
	TotalPnLPercent float64 `json:"total_pnl_percent"`
}
