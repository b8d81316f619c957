package simulator

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"binance-signal-monitor/internal/indicators"
	"binance-signal-monitor/internal/logging"
)

const (
	defaultInitialBalance = 10000.0
	defaultMaxPositions   = 5
	defaultMakerFee       = 0.0004
	defaultTakerFee       = 0.0005
)

// TradeSink receives closed trades for persistence
type TradeSink interface {
	AppendTrade(trade *ClosedTrade) error
}

// Config holds paper-trading parameters
type Config struct {
	InitialBalance    float64 `json:"initial_balance"`
	MaxPositions      int     `json:"max_positions"`
	MakerFeeRate      float64 `json:"maker_fee_rate"`
	TakerFeeRate      float64 `json:"taker_fee_rate"`
	AutoCloseOnTarget bool    `json:"auto_close_on_target"`
}

// DefaultConfig returns standard paper-trading parameters
func DefaultConfig() Config {
	return Config{
		InitialBalance:    defaultInitialBalance,
		MaxPositions:      defaultMaxPositions,
		MakerFeeRate:      defaultMakerFee,
		TakerFeeRate:      defaultTakerFee,
		AutoCloseOnTarget: true,
	}
}

// Stats is a read-only snapshot of simulator state
type Stats struct {
	InitialBalance   float64 `json:"initial_balance"`
	CurrentBalance   float64 `json:"current_balance"`
	OpenPositions    int     `json:"open_positions"`
	MaxPositions     int     `json:"max_positions"`
	ClosedTrades     int     `json:"closed_trades"`
	Winners          int     `json:"winners"`
	WinRate          float64 `json:"win_rate"`
	ProfitFactor     float64 `json:"profit_factor"`
	TotalPnL         float64 `json:"total_pnl"`
	TotalCommissions float64 `json:"total_commissions"`
	StoreFailures    int     `json:"store_failures"`
}

// Simulator owns the paper-trading state: balance, open positions and
// the closed-trade history. All methods are safe for concurrent use.
type Simulator struct {
	mu sync.RWMutex

	cfg       Config
	balance   float64
	positions map[string]*Position
	closed    []*ClosedTrade

	totalCommissions float64
	winners          int
	grossWins        float64
	grossLosses      float64
	storeFailures    int

	sink TradeSink
	log  *logging.Logger
}

// New creates a simulator. sink may be nil for in-memory only runs.
func New(cfg Config, sink TradeSink) *Simulator {
	if cfg.InitialBalance <= 0 {
		cfg.InitialBalance = defaultInitialBalance
	}
	if cfg.MaxPositions <= 0 {
		cfg.MaxPositions = defaultMaxPositions
	}
	if cfg.MakerFeeRate <= 0 {
		cfg.MakerFeeRate = defaultMakerFee
	}
	if cfg.TakerFeeRate <= 0 {
		cfg.TakerFeeRate = defaultTakerFee
	}

	return &Simulator{
		cfg:       cfg,
		balance:   cfg.InitialBalance,
		positions: make(map[string]*Position),
		sink:      sink,
		log:       logging.WithComponent("simulator"),
	}
}

// CanOpenPosition reports whether another position fits under the cap
func (s *Simulator) CanOpenPosition() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.positions) < s.cfg.MaxPositions
}

// HasPosition reports whether a symbol currently has an open position
func (s *Simulator) HasPosition(symbol string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.positions[symbol]
	return ok
}

// OpenRequest carries the parameters of a new position
type OpenRequest struct {
	Symbol     string
	Side       indicators.Side
	EntryPrice float64
	Quantity   float64
	StopLoss   float64
	TakeProfit float64

	Interval        string
	TMValueAtEntry  float64
	TMColorAtEntry  indicators.TrendColor
	MomentumAtEntry indicators.MomentumColor
}

// OpenPosition opens a paper position. Returns false when the cap is
// reached, the symbol already holds a position, or qty is non-positive.
func (s *Simulator) OpenPosition(req OpenRequest) bool {
	if req.Quantity <= 0 {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.positions) >= s.cfg.MaxPositions {
		s.log.Warn("position cap reached", "symbol", req.Symbol, "max", s.cfg.MaxPositions)
		return false
	}
	if _, exists := s.positions[req.Symbol]; exists {
		return false
	}

	entryCommission := req.EntryPrice * req.Quantity * s.cfg.MakerFeeRate

	pos := &Position{
		ID:              uuid.NewString(),
		Symbol:          req.Symbol,
		Side:            req.Side,
		EntryPrice:      req.EntryPrice,
		Quantity:        req.Quantity,
		StopLoss:        req.StopLoss,
		TakeProfit:      req.TakeProfit,
		EntryTime:       time.Now().UTC(),
		EntryCommission: entryCommission,
		Interval:        req.Interval,
		TMValueAtEntry:  req.TMValueAtEntry,
		TMColorAtEntry:  req.TMColorAtEntry,
		MomentumAtEntry: req.MomentumAtEntry,
	}
	s.positions[req.Symbol] = pos

	s.log.Info("position opened",
		"symbol", req.Symbol, "side", req.Side, "entry", req.EntryPrice,
		"qty", req.Quantity, "sl", req.StopLoss, "tp", req.TakeProfit)
	return true
}

// UpdatePositions evaluates brackets against the latest prices and
// closes any breached position. Symbols missing from the map are
// skipped. With AutoCloseOnTarget disabled, positions are held until a
// MANUAL close. Returns the trades closed by this call.
func (s *Simulator) UpdatePositions(priceMap map[string]float64) []*ClosedTrade {
	if !s.cfg.AutoCloseOnTarget {
		return nil
	}

	s.mu.Lock()

	type pending struct {
		symbol string
		price  float64
		reason CloseReason
	}
	var hits []pending
	for symbol, pos := range s.positions {
		price, ok := priceMap[symbol]
		if !ok {
			continue
		}
		if reason, breached := pos.bracketReason(price); breached {
			hits = append(hits, pending{symbol: symbol, price: price, reason: reason})
		}
	}

	var closed []*ClosedTrade
	for _, h := range hits {
		if trade := s.closeLocked(h.symbol, h.price, h.reason); trade != nil {
			closed = append(closed, trade)
		}
	}
	s.mu.Unlock()

	for _, trade := range closed {
		s.persist(trade)
	}
	return closed
}

// ClosePosition closes a position at the given price. Returns nil when
// no position exists for the symbol.
func (s *Simulator) ClosePosition(symbol string, exitPrice float64, reason CloseReason) *ClosedTrade {
	s.mu.Lock()
	trade := s.closeLocked(symbol, exitPrice, reason)
	s.mu.Unlock()

	if trade != nil {
		s.persist(trade)
	}
	return trade
}

// closeLocked performs the close under s.mu
func (s *Simulator) closeLocked(symbol string, exitPrice float64, reason CloseReason) *ClosedTrade {
	pos, ok := s.positions[symbol]
	if !ok {
		return nil
	}

	exitCommission := exitPrice * pos.Quantity * s.cfg.TakerFeeRate
	grossPnL := pos.UnrealizedPnL(exitPrice)
	realPnL := grossPnL - pos.EntryCommission - exitCommission
	totalCommissions := pos.EntryCommission + exitCommission

	positionValue := pos.EntryPrice * pos.Quantity
	pnlPercent := 0.0
	if positionValue > 0 {
		pnlPercent = realPnL / positionValue * 100
	}

	trade := &ClosedTrade{
		ID:               pos.ID,
		Symbol:           pos.Symbol,
		Side:             pos.Side,
		Interval:         pos.Interval,
		EntryPrice:       pos.EntryPrice,
		ExitPrice:        exitPrice,
		Quantity:         pos.Quantity,
		StopLoss:         pos.StopLoss,
		TakeProfit:       pos.TakeProfit,
		EntryTime:        pos.EntryTime,
		ExitTime:         time.Now().UTC(),
		GrossPnL:         grossPnL,
		RealPnL:          realPnL,
		PnLPercent:       pnlPercent,
		TotalCommissions: totalCommissions,
		CloseReason:      reason,
		IsWinner:         realPnL > 0,
		TMValueAtEntry:   pos.TMValueAtEntry,
		TMColorAtEntry:   pos.TMColorAtEntry,
		MomentumAtEntry:  pos.MomentumAtEntry,
	}

	delete(s.positions, symbol)
	s.closed = append(s.closed, trade)
	s.balance += realPnL
	s.totalCommissions += totalCommissions
	if trade.IsWinner {
		s.winners++
		s.grossWins += realPnL
	} else {
		s.grossLosses += -realPnL
	}

	s.log.Info("position closed",
		"symbol", symbol, "reason", reason, "exit", exitPrice,
		"gross_pnl", grossPnL, "real_pnl", realPnL)
	return trade
}

// persist hands a trade to the sink. Failures keep the trade in the
// in-memory list and bump a counter; there is no write replay.
func (s *Simulator) persist(trade *ClosedTrade) {
	if s.sink == nil {
		return
	}
	if err := s.sink.AppendTrade(trade); err != nil {
		s.mu.Lock()
		s.storeFailures++
		s.mu.Unlock()
		s.log.Error("trade persistence failed", "symbol", trade.Symbol, "error", err)
	}
}

// OpenPositions returns a copy of the open set
func (s *Simulator) OpenPositions() []*Position {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Position, 0, len(s.positions))
	for _, p := range s.positions {
		cp := *p
		out = append(out, &cp)
	}
	return out
}

// ClosedTrades returns a copy of the closed-trade history
func (s *Simulator) ClosedTrades() []*ClosedTrade {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*ClosedTrade, len(s.closed))
	copy(out, s.closed)
	return out
}

// Stats returns current balances and counters
func (s *Simulator) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	winRate := 0.0
	if len(s.closed) > 0 {
		winRate = float64(s.winners) / float64(len(s.closed)) * 100
	}
	// Profit factor is undefined without losses; reported as 0 then
	profitFactor := 0.0
	if s.grossLosses > 0 {
		profitFactor = s.grossWins / s.grossLosses
	}

	return Stats{
		InitialBalance:   s.cfg.InitialBalance,
		CurrentBalance:   s.balance,
		OpenPositions:    len(s.positions),
		MaxPositions:     s.cfg.MaxPositions,
		ClosedTrades:     len(s.closed),
		Winners:          s.winners,
		WinRate:          winRate,
		ProfitFactor:     profitFactor,
		TotalPnL:         s.balance - s.cfg.InitialBalance,
		TotalCommissions: s.totalCommissions,
		StoreFailures:    s.storeFailures,
	}
}

// OpenPositionSummary is an open position annotated with live PnL
type OpenPositionSummary struct {
	Position
	CurrentPrice  float64 `json:"current_price"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	PnLPercent    float64 `json:"pnl_percent"`
}

// OpenPositionsSummary values positions against the given prices.
// Symbols missing from the map carry zero live fields.
func (s *Simulator) OpenPositionsSummary(priceMap map[string]float64) []OpenPositionSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]OpenPositionSummary, 0, len(s.positions))
	for symbol, p := range s.positions {
		entry := OpenPositionSummary{Position: *p}
		if price, ok := priceMap[symbol]; ok && price > 0 {
			entry.CurrentPrice = price
			entry.UnrealizedPnL = p.UnrealizedPnL(price)
			if value := p.EntryPrice * p.Quantity; value > 0 {
				entry.PnLPercent = entry.UnrealizedPnL / value * 100
			}
		}
		out = append(out, entry)
	}
	return out
}

// Reset clears all positions, history and counters and restores the
// initial balance
func (s *Simulator) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.balance = s.cfg.InitialBalance
	s.positions = make(map[string]*Position)
	s.closed = nil
	s.totalCommissions = 0
	s.winners = 0
	s.grossWins = 0
	s.grossLosses = 0
	s.storeFailures = 0
}
