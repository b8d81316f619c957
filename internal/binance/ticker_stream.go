package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"binance-signal-monitor/internal/logging"
)

const defaultStreamURL = "wss://stream.binance.com:9443"

// miniTickerEvent is the payload of the <symbol>@miniTicker stream
type miniTickerEvent struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	Close     string `json:"c"`
	Open      string `json:"o"`
	High      string `json:"h"`
	Low       string `json:"l"`
}

type combinedStreamMessage struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// TickerPrice is the latest observed price for a symbol
type TickerPrice struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TickerStream maintains a combined miniTicker websocket subscription and
// keeps the last seen price per symbol. It reconnects with backoff until
// the context is cancelled.
type TickerStream struct {
	baseURL string
	symbols []string
	log     *logging.Logger

	mu     sync.RWMutex
	prices map[string]TickerPrice

	cancel context.CancelFunc
	done   chan struct{}
}

// NewTickerStream creates a stream for the given symbols. Symbols are
// lowercased for the stream names but reported uppercase.
func NewTickerStream(baseURL string, symbols []string) *TickerStream {
	if baseURL == "" {
		baseURL = defaultStreamURL
	}
	return &TickerStream{
		baseURL: baseURL,
		symbols: symbols,
		prices:  make(map[string]TickerPrice),
		log:     logging.WithComponent("ticker_stream"),
	}
}

func (s *TickerStream) streamURL() string {
	names := make([]string, 0, len(s.symbols))
	for _, sym := range s.symbols {
		names = append(names, strings.ToLower(sym)+"@miniTicker")
	}
	return fmt.Sprintf("%s/stream?streams=%s", s.baseURL, strings.Join(names, "/"))
}

// Start launches the read loop. Returns an error if the stream has no
// symbols to subscribe to.
func (s *TickerStream) Start(ctx context.Context) error {
	if len(s.symbols) == 0 {
		return fmt.Errorf("ticker stream: no symbols")
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)
	return nil
}

// Stop tears down the stream and waits for the read loop to exit
func (s *TickerStream) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

func (s *TickerStream) run(ctx context.Context) {
	defer close(s.done)

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		if ctx.Err() != nil {
			return
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.streamURL(), nil)
		if err != nil {
			s.log.Warn("stream dial failed", "error", err, "backoff", backoff.String())
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff *= 2; backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		s.log.Info("ticker stream connected", "symbols", len(s.symbols))
		backoff = time.Second

		s.readLoop(ctx, conn)
		conn.Close()

		if ctx.Err() != nil {
			return
		}
		s.log.Warn("ticker stream disconnected, reconnecting")
	}
}

func (s *TickerStream) readLoop(ctx context.Context, conn *websocket.Conn) {
	// Unblock ReadMessage when the context is cancelled. The watcher
	// exits with the read loop so reconnects do not accumulate one
	// goroutine per old connection.
	readDone := make(chan struct{})
	defer close(readDone)
	go func() {
		select {
		case <-ctx.Done():
			conn.SetReadDeadline(time.Now())
		case <-readDone:
		}
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg combinedStreamMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			continue
		}

		var ev miniTickerEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil || ev.Symbol == "" {
			continue
		}

		price, err := strconv.ParseFloat(ev.Close, 64)
		if err != nil {
			continue
		}

		s.mu.Lock()
		s.prices[strings.ToUpper(ev.Symbol)] = TickerPrice{
			Symbol:    strings.ToUpper(ev.Symbol),
			Price:     price,
			UpdatedAt: time.UnixMilli(ev.EventTime).UTC(),
		}
		s.mu.Unlock()
	}
}

// LastPrice returns the most recent price for a symbol
func (s *TickerStream) LastPrice(symbol string) (TickerPrice, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.prices[strings.ToUpper(symbol)]
	return p, ok
}

// PriceSnapshot returns a copy of all last seen prices
func (s *TickerStream) PriceSnapshot() map[string]TickerPrice {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]TickerPrice, len(s.prices))
	for k, v := range s.prices {
		out[k] = v
	}
	return out
}
