package marketdata

import "time"

// Quote is the last-known live market snapshot for a symbol.
// Optional depth/range fields stay nil until the feed has delivered them.
type Quote struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	Volume        float64   `json:"volume"`
	Bid           *float64  `json:"bid,omitempty"`
	Ask           *float64  `json:"ask,omitempty"`
	High24h       *float64  `json:"high_24h,omitempty"`
	Low24h        *float64  `json:"low_24h,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// QuoteUpdate is a partial update for a symbol as delivered by the feed.
// Nil fields were absent from the raw message and leave the cached value alone.
// Timestamp always overwrites the cached one, even when it goes backwards;
// out-of-order delivery is accepted as-is.
type QuoteUpdate struct {
	Symbol        string
	Price         *float64
	Change        *float64
	ChangePercent *float64
	Volume        *float64
	Bid           *float64
	Ask           *float64
	High24h       *float64
	Low24h        *float64
	Timestamp     time.Time
}

// Candlestick is a single OHLCV bar pushed by the feed.
type Candlestick struct {
	Symbol   string    `json:"symbol"`
	Interval string    `json:"interval"`
	OpenTime time.Time `json:"open_time"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
}

// Stats tracks subscription statistics
type Stats struct {
	ActiveSymbols     int       `json:"active_symbols"`
	CachedQuotes      int       `json:"cached_quotes"`
	UpdatesReceived   int64     `json:"updates_received"`
	LastUpdateTime    time.Time `json:"last_update_time"`
	SubscribeFailures int64     `json:"subscribe_failures"`
	Connected         bool      `json:"connected"`
}
