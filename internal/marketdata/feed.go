package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"papertrade-gateway/internal/logging"

	"github.com/gorilla/websocket"
)

// FeedConfig holds websocket feed settings.
type FeedConfig struct {
	URL            string
	ConnectTimeout time.Duration
	PingInterval   time.Duration
}

// StreamFeed is the production Feed over a websocket market data stream.
type StreamFeed struct {
	mu sync.Mutex

	cfg     FeedConfig
	conn    *websocket.Conn
	handler UpdateHandler
	stop    chan struct{}

	log *logging.Logger
}

// feedMessage is the wire envelope pushed by the stream.
type feedMessage struct {
	Type          string   `json:"type"` // "price" or "candlestick"
	Symbol        string   `json:"symbol"`
	Price         *float64 `json:"price,omitempty"`
	Change        *float64 `json:"change,omitempty"`
	ChangePercent *float64 `json:"change_percent,omitempty"`
	Volume        *float64 `json:"volume,omitempty"`
	Bid           *float64 `json:"bid,omitempty"`
	Ask           *float64 `json:"ask,omitempty"`
	High24h       *float64 `json:"high_24h,omitempty"`
	Low24h        *float64 `json:"low_24h,omitempty"`
	Timestamp     int64    `json:"timestamp"` // milliseconds

	Interval string  `json:"interval,omitempty"`
	OpenTime int64   `json:"open_time,omitempty"`
	Open     float64 `json:"open,omitempty"`
	High     float64 `json:"high,omitempty"`
	Low      float64 `json:"low,omitempty"`
	Close    float64 `json:"close,omitempty"`
}

// feedCommand is the wire format for subscribe/unsubscribe requests.
type feedCommand struct {
	Action string `json:"action"` // "subscribe" or "unsubscribe"
	Symbol string `json:"symbol"`
}

// NewStreamFeed creates a websocket feed client.
func NewStreamFeed(cfg FeedConfig) *StreamFeed {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	return &StreamFeed{
		cfg: cfg,
		log: logging.WithComponent("feed"),
	}
}

// SetHandler wires the update handler. Must be called before Connect.
func (f *StreamFeed) SetHandler(h UpdateHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = h
}

// Connect dials the stream endpoint. The attempt is bounded by the configured
// connect timeout (and any deadline already on ctx).
func (f *StreamFeed) Connect(ctx context.Context) error {
	f.mu.Lock()
	if f.conn != nil {
		f.mu.Unlock()
		return nil
	}
	f.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(ctx, f.cfg.ConnectTimeout)
	defer cancel()

	dialer := websocket.Dialer{HandshakeTimeout: f.cfg.ConnectTimeout}
	conn, _, err := dialer.DialContext(dialCtx, f.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial feed %s: %w", f.cfg.URL, err)
	}

	stop := make(chan struct{})

	f.mu.Lock()
	f.conn = conn
	f.stop = stop
	f.mu.Unlock()

	go f.readPump(conn, stop)
	go f.pingLoop(conn, stop)

	return nil
}

// Disconnect closes the stream session.
func (f *StreamFeed) Disconnect() {
	f.mu.Lock()
	conn := f.conn
	stop := f.stop
	f.conn = nil
	f.stop = nil
	f.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	if conn != nil {
		conn.Close()
	}
}

// Subscribe requests a feed-side subscription for a symbol.
func (f *StreamFeed) Subscribe(symbol string) error {
	return f.send(feedCommand{Action: "subscribe", Symbol: symbol})
}

// Unsubscribe requests a feed-side unsubscription for a symbol.
func (f *StreamFeed) Unsubscribe(symbol string) error {
	return f.send(feedCommand{Action: "unsubscribe", Symbol: symbol})
}

func (f *StreamFeed) send(cmd feedCommand) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.conn == nil {
		return fmt.Errorf("feed not connected")
	}
	f.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return f.conn.WriteJSON(cmd)
}

func (f *StreamFeed) readPump(conn *websocket.Conn, stop chan struct{}) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * f.cfg.PingInterval))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(2 * f.cfg.PingInterval))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-stop:
				// Deliberate disconnect, not a session drop.
			default:
				f.mu.Lock()
				if f.conn == conn {
					f.conn = nil
					f.stop = nil
				}
				handler := f.handler
				f.mu.Unlock()
				if handler != nil {
					handler.HandleFeedDown(err)
				}
			}
			return
		}

		f.dispatch(data)
	}
}

func (f *StreamFeed) dispatch(data []byte) {
	var msg feedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		f.log.Warn("unparseable feed message", "error", err)
		return
	}

	f.mu.Lock()
	handler := f.handler
	f.mu.Unlock()
	if handler == nil {
		return
	}

	switch msg.Type {
	case "price":
		handler.HandleQuoteUpdate(QuoteUpdate{
			Symbol:        msg.Symbol,
			Price:         msg.Price,
			Change:        msg.Change,
			ChangePercent: msg.ChangePercent,
			Volume:        msg.Volume,
			Bid:           msg.Bid,
			Ask:           msg.Ask,
			High24h:       msg.High24h,
			Low24h:        msg.Low24h,
			Timestamp:     time.UnixMilli(msg.Timestamp),
		})
	case "candlestick":
		handler.HandleCandleUpdate(Candlestick{
			Symbol:   msg.Symbol,
			Interval: msg.Interval,
			OpenTime: time.UnixMilli(msg.OpenTime),
			Open:     msg.Open,
			High:     msg.High,
			Low:      msg.Low,
			Close:    msg.Close,
			Volume:   valueOrZero(msg.Volume),
		})
	default:
		f.log.Debug("ignoring feed message", "type", msg.Type)
	}
}

func (f *StreamFeed) pingLoop(conn *websocket.Conn, stop chan struct{}) {
	ticker := time.NewTicker(f.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-stop:
			return
		}
	}
}

func valueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
