package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"papertrade-gateway/internal/marketdata"
	"papertrade-gateway/internal/upstream"
)

// mockStore is an in-memory Store for testing the snapshot layer.
type mockStore struct {
	mu      sync.Mutex
	healthy bool
	data    map[string]string
	ttls    map[string]time.Duration
	getErr  error
}

func newMockStore() *mockStore {
	return &mockStore{
		healthy: true,
		data:    make(map[string]string),
		ttls:    make(map[string]time.Duration),
	}
}

func (m *mockStore) IsHealthy() bool { return m.healthy }

func (m *mockStore) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return "", ErrMiss
	}
	return v, nil
}

func (m *mockStore) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var data string
	switch v := value.(type) {
	case string:
		data = v
	default:
		b, err := json.Marshal(value)
		if err != nil {
			return err
		}
		data = string(b)
	}
	m.data[key] = data
	m.ttls[key] = ttl
	return nil
}

func (m *mockStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func TestLeaderboardRoundTrip(t *testing.T) {
	store := newMockStore()
	snaps := NewSnapshots(store)
	ctx := context.Background()

	entries := []upstream.LeaderboardEntry{
		{Rank: 1, UserID: "u1", Username: "alpha", TotalValue: 120000},
		{Rank: 2, UserID: "u2", Username: "beta", TotalValue: 110000},
	}
	snaps.StoreLeaderboard(ctx, 50, entries)

	got, ok := snaps.Leaderboard(ctx, 50)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if len(got) != 2 || got[0].Username != "alpha" {
		t.Errorf("unexpected entries: %+v", got)
	}
	if _, ok := snaps.Leaderboard(ctx, 10); ok {
		t.Error("different limit must be a separate key")
	}
	if ttl := store.ttls["snapshot:leaderboard:top:50"]; ttl != LeaderboardTTL {
		t.Errorf("expected leaderboard TTL %v, got %v", LeaderboardTTL, ttl)
	}
}

func TestRankRoundTrip(t *testing.T) {
	snaps := NewSnapshots(newMockStore())
	ctx := context.Background()

	snaps.StoreRank(ctx, &upstream.RankResponse{Rank: 7, TotalPlayers: 200})

	rank, ok := snaps.Rank(ctx)
	if !ok || rank.Rank != 7 || rank.TotalPlayers != 200 {
		t.Errorf("unexpected rank: ok=%v %+v", ok, rank)
	}
}

func TestQuotesRoundTrip(t *testing.T) {
	store := newMockStore()
	snaps := NewSnapshots(store)
	ctx := context.Background()

	snaps.StoreQuotes(ctx, map[string]marketdata.Quote{
		"TCS":  {Symbol: "TCS", Price: 3500},
		"INFY": {Symbol: "INFY", Price: 1500},
	})

	got, ok := snaps.Quotes(ctx)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if len(got) != 2 || got["TCS"].Price != 3500 {
		t.Errorf("unexpected quotes: %+v", got)
	}
	if ttl := store.ttls["snapshot:quotes"]; ttl != QuotesTTL {
		t.Errorf("expected quotes TTL %v, got %v", QuotesTTL, ttl)
	}
}

func TestMissReturnsNotOK(t *testing.T) {
	snaps := NewSnapshots(newMockStore())
	if _, ok := snaps.Rank(context.Background()); ok {
		t.Error("expected miss on empty cache")
	}
}

func TestUnhealthyStoreDegradesToMiss(t *testing.T) {
	store := newMockStore()
	snaps := NewSnapshots(store)
	ctx := context.Background()

	snaps.StoreRank(ctx, &upstream.RankResponse{Rank: 7})
	store.healthy = false

	if _, ok := snaps.Rank(ctx); ok {
		t.Error("unhealthy store must read as a miss")
	}
	// Writes must also be silently dropped.
	snaps.StoreLeaderboard(ctx, 10, []upstream.LeaderboardEntry{{Rank: 1}})
	store.healthy = true
	if _, ok := snaps.Leaderboard(ctx, 10); ok {
		t.Error("write while unhealthy must not reach the store")
	}
}

func TestNilSnapshotsIsNoOp(t *testing.T) {
	var snaps *Snapshots
	ctx := context.Background()

	snaps.StoreRank(ctx, &upstream.RankResponse{Rank: 1})
	if _, ok := snaps.Rank(ctx); ok {
		t.Error("nil snapshots must behave as a permanent miss")
	}
}

func TestStoreErrorsSwallowed(t *testing.T) {
	store := newMockStore()
	store.getErr = errors.New("connection reset")
	snaps := NewSnapshots(store)

	if _, ok := snaps.Leaderboard(context.Background(), 50); ok {
		t.Error("store error must surface as a miss")
	}
}
