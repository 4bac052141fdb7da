package upstream

import (
	"papertrade-gateway/internal/portfolio"
)

// PortfolioResponse is the trading API's confirmed portfolio payload.
type PortfolioResponse struct {
	Holdings        []portfolio.Holding `json:"holdings"`
	CashBalance     portfolio.Number    `json:"cash_balance"`
	TotalValue      portfolio.Number    `json:"total_value"`
	TotalInvested   portfolio.Number    `json:"total_invested"`
	TotalPnL        portfolio.Number    `json:"total_pnl"`
	TotalPnLPercent portfolio.Number    `json:"total_pnl_percent"`
}

// LeaderboardEntry is one ranked row of the contest leaderboard.
type LeaderboardEntry struct {
	Rank            int              `json:"rank"`
	UserID          string           `json:"user_id"`
	Username        string           `json:"username"`
	TotalValue      portfolio.Number `json:"total_value"`
	TotalPnL        portfolio.Number `json:"total_pnl"`
	TotalPnLPercent portfolio.Number `json:"total_pnl_percent"`
}

// RankResponse is the caller's own standing in the contest.
type RankResponse struct {
	Rank         int              `json:"rank"`
	TotalPlayers int              `json:"total_players"`
	TotalValue   portfolio.Number `json:"total_value"`
	TotalPnL     portfolio.Number `json:"total_pnl"`
}

// StockPrice carries the latest known price for one symbol.
type StockPrice struct {
	Symbol string           `json:"symbol"`
	Price  portfolio.Number `json:"price"`
}
