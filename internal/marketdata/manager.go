// Package marketdata owns the live market data subscription layer: the set of
// symbols the UI currently cares about, the per-symbol quote cache, and the
// fan-out of feed updates to registered listeners.
package marketdata

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"papertrade-gateway/internal/logging"

	"github.com/google/uuid"
)

// Feed is the underlying real-time data session. Implementations deliver
// updates through the UpdateHandler set before Connect.
type Feed interface {
	Connect(ctx context.Context) error
	Disconnect()
	Subscribe(symbol string) error
	Unsubscribe(symbol string) error
	SetHandler(h UpdateHandler)
}

// UpdateHandler receives raw feed updates.
type UpdateHandler interface {
	HandleQuoteUpdate(u QuoteUpdate)
	HandleCandleUpdate(c Candlestick)
	HandleFeedDown(err error)
}

// QuoteListener is invoked once per incoming quote update, after the cache
// has been mutated.
type QuoteListener func(q Quote)

// CandleListener is invoked once per incoming candlestick update.
type CandleListener func(c Candlestick)

// Manager tracks symbol subscriptions and fans out quote and candlestick
// updates to listeners. One instance per running gateway; create more in tests.
type Manager struct {
	mu sync.RWMutex

	feed       Feed
	connected  bool
	connecting bool

	// Desired subscription set. Kept across failed connects so the feed-side
	// state can be re-synced on the next successful Connect.
	subscriptions map[string]bool

	quotes map[string]*Quote

	quoteListeners  map[string]QuoteListener
	candleListeners map[string]CandleListener
	statusListeners map[string]func(connected bool)

	updatesReceived   int64
	lastUpdateTime    time.Time
	subscribeFailures int64

	log *logging.Logger
}

// NewManager creates a subscription manager over the given feed.
func NewManager(feed Feed) *Manager {
	m := &Manager{
		feed:            feed,
		subscriptions:   make(map[string]bool),
		quotes:          make(map[string]*Quote),
		quoteListeners:  make(map[string]QuoteListener),
		candleListeners: make(map[string]CandleListener),
		statusListeners: make(map[string]func(bool)),
		log:             logging.WithComponent("marketdata"),
	}
	feed.SetHandler(m)
	return m
}

// Connect establishes the feed session. Calling it while already connected is
// a no-op success; calling it while another Connect is in flight fails fast so
// only one feed session is ever dialed. A failed attempt leaves the manager
// unconnected and keeps the subscription set intact for the next attempt.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.connected {
		m.mu.Unlock()
		return nil
	}
	if m.connecting {
		m.mu.Unlock()
		return errors.New("connect already in progress")
	}
	m.connecting = true
	m.mu.Unlock()

	if err := m.feed.Connect(ctx); err != nil {
		m.mu.Lock()
		m.connecting = false
		m.mu.Unlock()
		m.log.Warn("feed connect failed", "error", err)
		return err
	}

	m.mu.Lock()
	m.connecting = false
	m.connected = true
	pending := make([]string, 0, len(m.subscriptions))
	for symbol := range m.subscriptions {
		pending = append(pending, symbol)
	}
	m.mu.Unlock()

	// Re-sync feed-side subscriptions with the desired set.
	for _, symbol := range pending {
		if err := m.feed.Subscribe(symbol); err != nil {
			m.mu.Lock()
			m.subscribeFailures++
			m.mu.Unlock()
			m.log.Warn("re-subscribe failed", "symbol", symbol, "error", err)
		}
	}

	m.notifyStatus(true)
	m.log.Info("feed connected", "symbols", len(pending))
	return nil
}

// Disconnect tears down the feed session. The quote cache is preserved
// (stale but available) and listeners stay registered.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	wasConnected := m.connected
	m.connected = false
	m.mu.Unlock()

	m.feed.Disconnect()
	if wasConnected {
		m.notifyStatus(false)
		m.log.Info("feed disconnected")
	}
}

// IsConnected reports the current connection state.
func (m *Manager) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// Subscribe adds a symbol to the subscription set and requests a feed-side
// subscription. Subscribing to an already-subscribed symbol is a no-op. While
// disconnected the symbol is queued and applied once Connect succeeds.
func (m *Manager) Subscribe(symbol string) {
	symbol = strings.ToUpper(symbol)

	m.mu.Lock()
	if m.subscriptions[symbol] {
		m.mu.Unlock()
		return
	}
	m.subscriptions[symbol] = true
	connected := m.connected
	m.mu.Unlock()

	if !connected {
		return
	}

	if err := m.feed.Subscribe(symbol); err != nil {
		m.mu.Lock()
		m.subscribeFailures++
		m.mu.Unlock()
		m.log.Warn("subscribe failed", "symbol", symbol, "error", err)
	}
}

// Unsubscribe removes a symbol from the subscription set and deletes its
// cached quote. Unsubscribing an unknown symbol is a no-op.
func (m *Manager) Unsubscribe(symbol string) {
	symbol = strings.ToUpper(symbol)

	m.mu.Lock()
	if !m.subscriptions[symbol] {
		m.mu.Unlock()
		return
	}
	delete(m.subscriptions, symbol)
	delete(m.quotes, symbol)
	connected := m.connected
	m.mu.Unlock()

	if !connected {
		return
	}

	if err := m.feed.Unsubscribe(symbol); err != nil {
		m.log.Warn("unsubscribe failed", "symbol", symbol, "error", err)
	}
}

// IsSubscribed reports whether the symbol is in the subscription set.
func (m *Manager) IsSubscribed(symbol string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.subscriptions[strings.ToUpper(symbol)]
}

// SubscribedSymbols returns the current subscription set.
func (m *Manager) SubscribedSymbols() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	symbols := make([]string, 0, len(m.subscriptions))
	for symbol := range m.subscriptions {
		symbols = append(symbols, symbol)
	}
	return symbols
}

// GetQuote returns the last cached quote for a symbol.
func (m *Manager) GetQuote(symbol string) (Quote, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	q, ok := m.quotes[strings.ToUpper(symbol)]
	if !ok {
		return Quote{}, false
	}
	return *q, true
}

// AllQuotes returns a snapshot of all cached quotes. Order is unspecified.
func (m *Manager) AllQuotes() []Quote {
	m.mu.RLock()
	defer m.mu.RUnlock()

	quotes := make([]Quote, 0, len(m.quotes))
	for _, q := range m.quotes {
		quotes = append(quotes, *q)
	}
	return quotes
}

// OnQuoteUpdate registers a listener invoked for every quote update. The
// returned token removes the listener via RemoveListener.
func (m *Manager) OnQuoteUpdate(listener QuoteListener) string {
	token := uuid.NewString()
	m.mu.Lock()
	m.quoteListeners[token] = listener
	m.mu.Unlock()
	return token
}

// OnCandleUpdate registers a listener for candlestick updates.
func (m *Manager) OnCandleUpdate(listener CandleListener) string {
	token := uuid.NewString()
	m.mu.Lock()
	m.candleListeners[token] = listener
	m.mu.Unlock()
	return token
}

// OnStatusChange registers a listener for connection status changes.
func (m *Manager) OnStatusChange(listener func(connected bool)) string {
	token := uuid.NewString()
	m.mu.Lock()
	m.statusListeners[token] = listener
	m.mu.Unlock()
	return token
}

// RemoveListener deregisters a listener by its token.
func (m *Manager) RemoveListener(token string) {
	m.mu.Lock()
	delete(m.quoteListeners, token)
	delete(m.candleListeners, token)
	delete(m.statusListeners, token)
	m.mu.Unlock()
}

// HandleQuoteUpdate merges a raw feed update into the cache and notifies
// listeners. Updates for symbols no longer subscribed are dropped.
func (m *Manager) HandleQuoteUpdate(u QuoteUpdate) {
	symbol := strings.ToUpper(u.Symbol)

	m.mu.Lock()
	if !m.subscriptions[symbol] {
		m.mu.Unlock()
		return
	}

	q, ok := m.quotes[symbol]
	if !ok {
		q = &Quote{Symbol: symbol}
		m.quotes[symbol] = q
	}
	mergeQuote(q, u)

	m.updatesReceived++
	m.lastUpdateTime = time.Now()

	snapshot := *q
	listeners := make([]QuoteListener, 0, len(m.quoteListeners))
	for _, l := range m.quoteListeners {
		listeners = append(listeners, l)
	}
	m.mu.Unlock()

	// Every listener sees every update exactly once; invocation order across
	// listeners is unspecified.
	for _, l := range listeners {
		l(snapshot)
	}
}

// HandleCandleUpdate forwards a candlestick update to candle listeners.
func (m *Manager) HandleCandleUpdate(c Candlestick) {
	c.Symbol = strings.ToUpper(c.Symbol)

	m.mu.Lock()
	if !m.subscriptions[c.Symbol] {
		m.mu.Unlock()
		return
	}
	m.updatesReceived++
	m.lastUpdateTime = time.Now()
	listeners := make([]CandleListener, 0, len(m.candleListeners))
	for _, l := range m.candleListeners {
		listeners = append(listeners, l)
	}
	m.mu.Unlock()

	for _, l := range listeners {
		l(c)
	}
}

// HandleFeedDown marks the manager unconnected after the feed session drops.
// The subscription set survives for the next Connect.
func (m *Manager) HandleFeedDown(err error) {
	m.mu.Lock()
	wasConnected := m.connected
	m.connected = false
	m.mu.Unlock()

	if wasConnected {
		m.log.Warn("feed session dropped", "error", err)
		m.notifyStatus(false)
	}
}

// GetStats returns subscription statistics.
func (m *Manager) GetStats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return Stats{
		ActiveSymbols:     len(m.subscriptions),
		CachedQuotes:      len(m.quotes),
		UpdatesReceived:   m.updatesReceived,
		LastUpdateTime:    m.lastUpdateTime,
		SubscribeFailures: m.subscribeFailures,
		Connected:         m.connected,
	}
}

func (m *Manager) notifyStatus(connected bool) {
	m.mu.RLock()
	listeners := make([]func(bool), 0, len(m.statusListeners))
	for _, l := range m.statusListeners {
		listeners = append(listeners, l)
	}
	m.mu.RUnlock()

	for _, l := range listeners {
		l(connected)
	}
}

// mergeQuote applies a partial update: absent fields keep their cached value,
// Timestamp is overwritten unconditionally even when out of order.
func mergeQuote(q *Quote, u QuoteUpdate) {
	if u.Price != nil {
		q.Price = *u.Price
	}
	if u.Change != nil {
		q.Change = *u.Change
	}
	if u.ChangePercent != nil {
		q.ChangePercent = *u.ChangePercent
	}
	if u.Volume != nil {
		q.Volume = *u.Volume
	}
	if u.Bid != nil {
		q.Bid = u.Bid
	}
	if u.Ask != nil {
		q.Ask = u.Ask
	}
	if u.High24h != nil {
		q.High24h = u.High24h
	}
	if u.Low24h != nil {
		q.Low24h = u.Low24h
	}
	q.Timestamp = u.Timestamp
}
