package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"papertrade-gateway/internal/marketdata"
	"papertrade-gateway/internal/upstream"
)

// Store is the subset of the Redis service the snapshot layer needs.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	IsHealthy() bool
}

// Key patterns for snapshot types.
const (
	keyLeaderboard = "snapshot:leaderboard:top:%d"
	keyRank        = "snapshot:leaderboard:rank"
	keyQuotes      = "snapshot:quotes"
)

// Snapshot TTLs. Quotes move fast, leaderboards do not.
const (
	LeaderboardTTL = 5 * time.Minute
	RankTTL        = 5 * time.Minute
	QuotesTTL      = 30 * time.Second
)

// Snapshots stores the latest known leaderboard pages and quote map so reads
// survive upstream outages. A nil *Snapshots disables caching entirely; every
// method degrades to a no-op or a miss.
type Snapshots struct {
	store Store
}

func NewSnapshots(store Store) *Snapshots {
	return &Snapshots{store: store}
}

func (s *Snapshots) enabled() bool {
	return s != nil && s.store != nil && s.store.IsHealthy()
}

// StoreLeaderboard caches a leaderboard page keyed by its limit.
func (s *Snapshots) StoreLeaderboard(ctx context.Context, limit int, entries []upstream.LeaderboardEntry) {
	if !s.enabled() {
		return
	}
	_ = s.store.Set(ctx, fmt.Sprintf(keyLeaderboard, limit), entries, LeaderboardTTL)
}

// Leaderboard returns a cached leaderboard page, or (nil, false) on a miss.
func (s *Snapshots) Leaderboard(ctx context.Context, limit int) ([]upstream.LeaderboardEntry, bool) {
	if !s.enabled() {
		return nil, false
	}
	raw, err := s.store.Get(ctx, fmt.Sprintf(keyLeaderboard, limit))
	if err != nil {
		return nil, false
	}
	var entries []upstream.LeaderboardEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, false
	}
	return entries, true
}

// StoreRank caches the caller's leaderboard standing.
func (s *Snapshots) StoreRank(ctx context.Context, rank *upstream.RankResponse) {
	if !s.enabled() || rank == nil {
		return
	}
	_ = s.store.Set(ctx, keyRank, rank, RankTTL)
}

// Rank returns the cached standing, or (nil, false) on a miss.
func (s *Snapshots) Rank(ctx context.Context) (*upstream.RankResponse, bool) {
	if !s.enabled() {
		return nil, false
	}
	raw, err := s.store.Get(ctx, keyRank)
	if err != nil {
		return nil, false
	}
	var rank upstream.RankResponse
	if err := json.Unmarshal([]byte(raw), &rank); err != nil {
		return nil, false
	}
	return &rank, true
}

// StoreQuotes caches the full quote map from the market data manager.
func (s *Snapshots) StoreQuotes(ctx context.Context, quotes map[string]marketdata.Quote) {
	if !s.enabled() || len(quotes) == 0 {
		return
	}
	_ = s.store.Set(ctx, keyQuotes, quotes, QuotesTTL)
}

// Quotes returns the cached quote map, or (nil, false) on a miss.
func (s *Snapshots) Quotes(ctx context.Context) (map[string]marketdata.Quote, bool) {
	if !s.enabled() {
		return nil, false
	}
	raw, err := s.store.Get(ctx, keyQuotes)
	if err != nil {
		return nil, false
	}
	var quotes map[string]marketdata.Quote
	if err := json.Unmarshal([]byte(raw), &quotes); err != nil {
		return nil, false
	}
	return quotes, true
}
