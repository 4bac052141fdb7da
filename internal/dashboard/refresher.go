// Package dashboard runs the periodic data refresh loop: it pulls the
// confirmed portfolio and today's trades from the trading API, reconciles
// them into long-term and intraday buckets, and publishes snapshots for the
// broadcast layer.
package dashboard

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"papertrade-gateway/internal/cache"
	"papertrade-gateway/internal/events"
	"papertrade-gateway/internal/logging"
	"papertrade-gateway/internal/portfolio"
	"papertrade-gateway/internal/upstream"
)

// TradingAPI is the slice of the upstream client the refresher consumes.
type TradingAPI interface {
	GetPortfolio(ctx context.Context) (*upstream.PortfolioResponse, error)
	GetIntradayTrades(ctx context.Context, day portfolio.Day) ([]portfolio.TradeExecution, error)
	GetLeaderboard(ctx context.Context, limit int) ([]upstream.LeaderboardEntry, error)
	GetMyRank(ctx context.Context) (*upstream.RankResponse, error)
	GetStockPrices(ctx context.Context, symbols []string) (map[string]float64, error)
}

// PriceSource supplies live prices for synthesized holdings.
type PriceSource interface {
	LivePrices() map[string]float64
}

// CredentialInvalidator is notified when the upstream rejects our token.
type CredentialInvalidator interface {
	Invalidate()
}

// Snapshot is one fully reconciled dashboard state.
type Snapshot struct {
	Sequence        uint64                    `json:"sequence"`
	GeneratedAt     time.Time                 `json:"generated_at"`
	Holdings        []portfolio.Holding       `json:"holdings"`
	LongTerm        []portfolio.Holding       `json:"long_term"`
	Intraday        []portfolio.Holding       `json:"intraday"`
	Trades          []portfolio.TradeExecution `json:"trades"`
	Metrics         portfolio.Metrics         `json:"metrics"`
	LongTermMetrics portfolio.Metrics         `json:"long_term_metrics"`
	IntradayMetrics portfolio.Metrics         `json:"intraday_metrics"`
	CashBalance     float64                   `json:"cash_balance"`
}

// Leaderboard is the latest contest standings.
type Leaderboard struct {
	Entries     []upstream.LeaderboardEntry `json:"entries"`
	Rank        *upstream.RankResponse      `json:"rank,omitempty"`
	GeneratedAt time.Time                   `json:"generated_at"`
	FromCache   bool                        `json:"from_cache,omitempty"`
}

type Config struct {
	PortfolioInterval   time.Duration
	LeaderboardInterval time.Duration
	LeaderboardLimit    int
}

// Refresher owns the refresh loops and the latest applied snapshot.
type Refresher struct {
	api         TradingAPI
	prices      PriceSource
	credentials CredentialInvalidator
	bus         *events.EventBus
	snapshots   *cache.Snapshots
	cfg         Config
	logger      *logging.Logger

	// today is injectable for deterministic reconciliation in tests.
	today func() portfolio.Day

	seq        atomic.Uint64
	mu         sync.RWMutex
	appliedSeq uint64
	current    *Snapshot
	board      *Leaderboard
}

func NewRefresher(api TradingAPI, prices PriceSource, credentials CredentialInvalidator,
	bus *events.EventBus, snapshots *cache.Snapshots, cfg Config) *Refresher {
	if cfg.PortfolioInterval <= 0 {
		cfg.PortfolioInterval = 30 * time.Second
	}
	if cfg.LeaderboardInterval <= 0 {
		cfg.LeaderboardInterval = 60 * time.Second
	}
	if cfg.LeaderboardLimit <= 0 {
		cfg.LeaderboardLimit = 50
	}
	return &Refresher{
		api:         api,
		prices:      prices,
		credentials: credentials,
		bus:         bus,
		snapshots:   snapshots,
		cfg:         cfg,
		logger:      logging.Default().WithComponent("dashboard"),
		today:       portfolio.Today,
	}
}

// Start runs both refresh loops until the context is cancelled.
func (r *Refresher) Start(ctx context.Context) {
	go r.portfolioLoop(ctx)
	go r.leaderboardLoop(ctx)
}

func (r *Refresher) portfolioLoop(ctx context.Context) {
	// Immediate first refresh so the dashboard is populated at startup.
	r.RefreshNow(ctx)

	ticker := time.NewTicker(r.cfg.PortfolioInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RefreshNow(ctx)
		}
	}
}

func (r *Refresher) leaderboardLoop(ctx context.Context) {
	r.refreshLeaderboard(ctx)

	ticker := time.NewTicker(r.cfg.LeaderboardInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refreshLeaderboard(ctx)
		}
	}
}

// RefreshNow performs one portfolio refresh. Each call takes a fresh
// sequence number; a refresh that resolves after a newer one has already
// applied is discarded so older data never clobbers newer data.
func (r *Refresher) RefreshNow(ctx context.Context) {
	seq := r.seq.Add(1)

	day := r.today()
	resp, err := r.api.GetPortfolio(ctx)
	if err != nil {
		r.reportError("portfolio refresh failed", err)
		return
	}
	trades, err := r.api.GetIntradayTrades(ctx, day)
	if err != nil {
		r.reportError("intraday trades refresh failed", err)
		return
	}

	var livePrices map[string]float64
	if r.prices != nil {
		livePrices = r.prices.LivePrices()
	}

	// Symbols traded today that the feed has no quote for still need a
	// current price for synthesis; backfill them over REST.
	if missing := missingPrices(trades, livePrices); len(missing) > 0 {
		fetched, err := r.api.GetStockPrices(ctx, missing)
		if err != nil {
			r.logger.Warn("price backfill failed", "error", err)
		} else {
			if livePrices == nil {
				livePrices = fetched
			} else {
				for symbol, price := range fetched {
					livePrices[symbol] = price
				}
			}
		}
	}

	recon := portfolio.Reconcile(resp.Holdings, trades, day, livePrices)
	snapshot := &Snapshot{
		Sequence:        seq,
		GeneratedAt:     time.Now(),
		Holdings:        resp.Holdings,
		LongTerm:        recon.LongTerm,
		Intraday:        recon.Intraday,
		Trades:          trades,
		Metrics:         portfolio.Aggregate(resp.Holdings),
		LongTermMetrics: portfolio.Aggregate(recon.LongTerm),
		IntradayMetrics: portfolio.Aggregate(recon.Intraday),
		CashBalance:     float64(resp.CashBalance),
	}

	if !r.apply(snapshot) {
		r.logger.Debug("discarding stale refresh", "sequence", seq)
		return
	}

	if r.bus != nil {
		r.bus.PublishDashboardUpdate(snapshot)
	}
}

// missingPrices lists symbols traded today that have no live quote.
func missingPrices(trades []portfolio.TradeExecution, livePrices map[string]float64) []string {
	seen := make(map[string]bool)
	var missing []string
	for _, t := range trades {
		if seen[t.Symbol] {
			continue
		}
		seen[t.Symbol] = true
		if _, ok := livePrices[t.Symbol]; !ok {
			missing = append(missing, t.Symbol)
		}
	}
	return missing
}

// apply installs the snapshot unless a newer sequence already applied.
func (r *Refresher) apply(snapshot *Snapshot) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if snapshot.Sequence <= r.appliedSeq {
		return false
	}
	r.appliedSeq = snapshot.Sequence
	r.current = snapshot
	return true
}

// Current returns the latest applied snapshot, or nil before the first
// successful refresh.
func (r *Refresher) Current() *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

func (r *Refresher) refreshLeaderboard(ctx context.Context) {
	entries, err := r.api.GetLeaderboard(ctx, r.cfg.LeaderboardLimit)
	if err != nil {
		r.reportError("leaderboard refresh failed", err)
		// Serve the last cached page and rank if they survive.
		if cached, ok := r.snapshots.Leaderboard(ctx, r.cfg.LeaderboardLimit); ok {
			board := &Leaderboard{Entries: cached, GeneratedAt: time.Now(), FromCache: true}
			if rank, ok := r.snapshots.Rank(ctx); ok {
				board.Rank = rank
			}
			r.setLeaderboard(board)
		}
		return
	}

	board := &Leaderboard{Entries: entries, GeneratedAt: time.Now()}
	if rank, err := r.api.GetMyRank(ctx); err == nil {
		board.Rank = rank
		r.snapshots.StoreRank(ctx, rank)
	}
	r.snapshots.StoreLeaderboard(ctx, r.cfg.LeaderboardLimit, entries)
	r.setLeaderboard(board)

	if r.bus != nil {
		r.bus.PublishLeaderboardUpdate(board)
	}
}

func (r *Refresher) setLeaderboard(board *Leaderboard) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.board = board
}

// CurrentLeaderboard returns the latest standings, or nil before the first
// successful leaderboard refresh.
func (r *Refresher) CurrentLeaderboard() *Leaderboard {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.board
}

func (r *Refresher) reportError(msg string, err error) {
	if errors.Is(err, upstream.ErrUnauthorized) {
		r.logger.Warn("upstream rejected credential", "error", err)
		if r.credentials != nil {
			r.credentials.Invalidate()
		}
		return
	}
	r.logger.Error(msg, "error", err)
	if r.bus != nil {
		r.bus.PublishError("dashboard", msg, err)
	}
}
