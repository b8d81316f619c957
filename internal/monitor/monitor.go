package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"binance-signal-monitor/internal/binance"
	"binance-signal-monitor/internal/indicators"
	"binance-signal-monitor/internal/logging"
	"binance-signal-monitor/internal/marketdata"
	"binance-signal-monitor/internal/simulator"
)

// Config holds the scheduler's knobs
type Config struct {
	Symbols                 []string `json:"symbols"`
	Interval                string   `json:"interval"`
	CandleLimit             int      `json:"candle_limit"`
	CycleSeconds            int      `json:"cycle_seconds"`
	PerSymbolTimeoutSeconds int      `json:"per_symbol_timeout_seconds"`
	MaxInflight             int      `json:"max_inflight"`
	MaxErrorsPerSymbol      int      `json:"max_errors_per_symbol"`
	ErrorResetMinutes       int      `json:"error_reset_minutes"`
	PollSpacingMs           int      `json:"poll_spacing_ms"`
}

// DefaultConfig returns the standard scheduler parameters
func DefaultConfig() Config {
	return Config{
		Interval:                "15m",
		CandleLimit:             200,
		CycleSeconds:            60,
		PerSymbolTimeoutSeconds: 30,
		MaxInflight:             10,
		MaxErrorsPerSymbol:      5,
		ErrorResetMinutes:       30,
		PollSpacingMs:           100,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.Interval == "" {
		c.Interval = d.Interval
	}
	if c.CandleLimit <= 0 {
		c.CandleLimit = d.CandleLimit
	}
	if c.CycleSeconds <= 0 {
		c.CycleSeconds = d.CycleSeconds
	}
	if c.PerSymbolTimeoutSeconds <= 0 {
		c.PerSymbolTimeoutSeconds = d.PerSymbolTimeoutSeconds
	}
	if c.MaxInflight <= 0 {
		c.MaxInflight = d.MaxInflight
	}
	if c.MaxErrorsPerSymbol <= 0 {
		c.MaxErrorsPerSymbol = d.MaxErrorsPerSymbol
	}
	if c.ErrorResetMinutes <= 0 {
		c.ErrorResetMinutes = d.ErrorResetMinutes
	}
	if c.PollSpacingMs < 0 {
		c.PollSpacingMs = d.PollSpacingMs
	}
}

// CandleProvider is the data path the scheduler reads from
type CandleProvider interface {
	GetCandles(ctx context.Context, req marketdata.DataRequest) (*marketdata.CandleSeries, error)
}

// SnapshotEngine computes the indicator snapshot for a series
type SnapshotEngine interface {
	Compute(series *marketdata.CandleSeries) (*indicators.Snapshot, error)
}

// Pinger checks exchange connectivity during bootstrap
type Pinger interface {
	Ping(ctx context.Context) error
}

// LivePrices supplies streaming ticker prices that can be fresher than
// the last candle close
type LivePrices interface {
	LastPrice(symbol string) (binance.TickerPrice, bool)
}

// Monitor drives the periodic fan-out over symbols, coupling the data
// path, the indicator engine and the simulator
type Monitor struct {
	cfg      Config
	provider CandleProvider
	engine   SnapshotEngine
	sim      *simulator.Simulator
	sizer    *OrderSizer
	alerts   *AlertManager
	perf     *PerformanceTracker
	pinger   Pinger
	ticker   LivePrices
	log      *logging.Logger

	mu           sync.RWMutex
	state        State
	startTime    time.Time
	symbols      map[string]*SymbolStatus
	suggestions  map[string]OrderSuggestion
	cycleCount   int64
	totalUpdates int64
	totalSignals int64
	totalErrors  int64

	now           func() time.Time
	cancel        context.CancelFunc
	done          chan struct{}
	stopRequested bool
}

// Deps bundles the scheduler's collaborators. Pinger may be nil to
// skip the bootstrap connectivity check.
type Deps struct {
	Provider  CandleProvider
	Engine    SnapshotEngine
	Simulator *simulator.Simulator
	Sizer     *OrderSizer
	Alerts    *AlertManager
	Perf      *PerformanceTracker
	Pinger    Pinger
	Ticker    LivePrices
}

// New creates a monitor in the STOPPED state
func New(cfg Config, deps Deps) (*Monitor, error) {
	cfg.applyDefaults()
	if len(cfg.Symbols) == 0 {
		return nil, errors.New("monitor: no symbols configured")
	}
	if _, err := binance.NormalizeInterval(cfg.Interval); err != nil {
		return nil, fmt.Errorf("monitor: %w", err)
	}
	if deps.Provider == nil || deps.Engine == nil || deps.Simulator == nil {
		return nil, errors.New("monitor: provider, engine and simulator are required")
	}

	symbols := make(map[string]*SymbolStatus, len(cfg.Symbols))
	for _, s := range cfg.Symbols {
		symbols[s] = &SymbolStatus{Symbol: s, State: SymbolActive}
	}

	if deps.Sizer == nil {
		deps.Sizer = NewOrderSizer(0, 0)
	}
	if deps.Alerts == nil {
		deps.Alerts = NewAlertManager()
	}
	if deps.Perf == nil {
		deps.Perf = NewPerformanceTracker()
	}

	return &Monitor{
		cfg:         cfg,
		provider:    deps.Provider,
		engine:      deps.Engine,
		sim:         deps.Simulator,
		sizer:       deps.Sizer,
		alerts:      deps.Alerts,
		perf:        deps.Perf,
		pinger:      deps.Pinger,
		ticker:      deps.Ticker,
		log:         logging.WithComponent("monitor"),
		state:       StateStopped,
		symbols:     symbols,
		suggestions: make(map[string]OrderSuggestion),
		now:         time.Now,
	}, nil
}

// Start boots the scheduler: connectivity check, then the cycle loop.
// Returns an error (and transitions to ERROR) on bootstrap failure.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateStopped {
		m.mu.Unlock()
		return fmt.Errorf("monitor: cannot start from state %s", m.state)
	}
	m.state = StateStarting
	runCtx, runCancel := context.WithCancel(ctx)
	m.cancel = runCancel
	m.mu.Unlock()

	if m.pinger != nil {
		pingCtx, cancel := context.WithTimeout(runCtx, 10*time.Second)
		err := m.pinger.Ping(pingCtx)
		cancel()
		if err != nil {
			runCancel()
			m.mu.Lock()
			stopped := m.stopRequested
			m.stopRequested = false
			if stopped {
				m.state = StateStopped
			} else {
				m.state = StateError
			}
			m.mu.Unlock()
			if stopped {
				return fmt.Errorf("monitor: stopped during startup")
			}
			m.alerts.Raise(AlertCritical, "bootstrap", "", "exchange connectivity check failed")
			return fmt.Errorf("monitor: connectivity check: %w", err)
		}
	}

	m.mu.Lock()
	// A Stop issued while the connectivity check was running wins
	if m.stopRequested {
		m.stopRequested = false
		m.state = StateStopped
		m.mu.Unlock()
		runCancel()
		return fmt.Errorf("monitor: stopped during startup")
	}
	m.state = StateRunning
	m.startTime = m.now().UTC()
	m.done = make(chan struct{})
	m.mu.Unlock()

	m.alerts.Raise(AlertInfo, "lifecycle", "", "monitoring started")
	m.log.Info("monitor started", "symbols", len(m.cfg.Symbols), "interval", m.cfg.Interval)

	go m.run(runCtx)
	return nil
}

// Stop shuts the scheduler down, waiting up to 10s for in-flight work.
// A Stop during the startup connectivity check prevents the transition
// to RUNNING.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.state == StateStarting {
		m.stopRequested = true
		cancel := m.cancel
		m.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		return
	}
	if m.state != StateRunning && m.state != StatePaused {
		m.mu.Unlock()
		return
	}
	m.state = StateShuttingDown
	cancel := m.cancel
	done := m.done
	m.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		m.log.Warn("shutdown timed out waiting for workers")
	}

	m.mu.Lock()
	m.state = StateStopped
	m.mu.Unlock()

	m.alerts.Raise(AlertInfo, "lifecycle", "", "monitoring stopped")
	m.log.Info("monitor stopped")
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)

	for {
		cycleStart := m.now()
		m.runCycle(ctx)

		elapsed := m.now().Sub(cycleStart)
		sleep := time.Duration(m.cfg.CycleSeconds)*time.Second - elapsed
		if sleep < time.Second {
			sleep = time.Second
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(sleep):
		}
	}
}

// runCycle performs one full sweep over the active symbols
func (m *Monitor) runCycle(ctx context.Context) {
	m.reactivateErroredSymbols()

	active := m.activeSymbols()
	if len(active) == 0 {
		return
	}

	sem := make(chan struct{}, m.cfg.MaxInflight)
	var wg sync.WaitGroup
	spacing := time.Duration(m.cfg.PollSpacingMs) * time.Millisecond

	for _, symbol := range active {
		if ctx.Err() != nil {
			break
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()
			defer func() { <-sem }()

			symCtx, cancel := context.WithTimeout(ctx,
				time.Duration(m.cfg.PerSymbolTimeoutSeconds)*time.Second)
			defer cancel()
			m.processSymbol(symCtx, sym)
		}(symbol)

		if spacing > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(spacing):
			}
		}
	}
	wg.Wait()

	if ctx.Err() != nil {
		return
	}

	priceMap := m.latestPrices()
	closed := m.sim.UpdatePositions(priceMap)
	for _, trade := range closed {
		m.alerts.Raise(AlertInfo, "trade", trade.Symbol,
			fmt.Sprintf("position closed %s at %.3f (PnL %.3f)", trade.CloseReason, trade.ExitPrice, trade.RealPnL))
	}

	m.mu.Lock()
	m.cycleCount++
	m.mu.Unlock()
}

// processSymbol runs the data → indicator → signal path for one symbol
func (m *Monitor) processSymbol(ctx context.Context, symbol string) {
	req := marketdata.NewDataRequest(symbol, m.cfg.Interval, m.cfg.CandleLimit)

	series, err := m.provider.GetCandles(ctx, req)
	if err != nil {
		m.recordSymbolError(symbol, err)
		return
	}

	signalStart := m.now()
	snap, err := m.engine.Compute(series)
	if err != nil {
		m.recordSymbolError(symbol, err)
		return
	}
	m.perf.RecordSignalLatency(m.now().Sub(signalStart))

	m.mu.Lock()
	status, ok := m.symbols[symbol]
	if !ok {
		m.mu.Unlock()
		return
	}
	status.Snapshot = snap
	status.LastPrice = snap.CurrentPrice
	status.UpdateCount++
	status.ErrorCount = 0
	status.LastUpdate = m.now().UTC()
	m.totalUpdates++

	// Clear a latched signal the context no longer supports
	if status.LatchedSide != "" && !indicators.SignalStillValid(snap, status.LatchedSide) {
		m.log.Info("signal latch cleared", "symbol", symbol, "side", status.LatchedSide)
		status.LatchedSide = ""
		status.LatchedAt = time.Time{}
	}

	side, fired := indicators.DetectSignal(snap)
	fresh := fired && status.LatchedSide == ""
	if fresh {
		status.LatchedSide = side
		status.LatchedAt = m.now().UTC()
		m.totalSignals++
	}
	m.mu.Unlock()

	if !fresh {
		return
	}

	m.alerts.Raise(AlertInfo, "signal", symbol,
		fmt.Sprintf("%s signal at %.3f (line %.3f)", side, snap.CurrentPrice, snap.TMValue))

	m.maybeOpenPosition(symbol, side, snap)
}

// maybeOpenPosition sizes and opens a paper position for a fresh signal
func (m *Monitor) maybeOpenPosition(symbol string, side indicators.Side, snap *indicators.Snapshot) {
	plan, ok := m.sizer.Size(side, snap.CurrentPrice, snap.TMValue, m.cfg.Interval)
	if !ok {
		m.log.Warn("order sizing rejected signal", "symbol", symbol, "side", side)
		return
	}

	if !m.sim.CanOpenPosition() || m.sim.HasPosition(symbol) {
		m.mu.Lock()
		m.suggestions[symbol] = OrderSuggestion{
			Symbol:    symbol,
			Side:      side,
			Entry:     snap.CurrentPrice,
			Plan:      plan,
			Reason:    "position cap reached or symbol already open",
			CreatedAt: m.now().UTC(),
		}
		m.mu.Unlock()
		return
	}

	opened := m.sim.OpenPosition(simulator.OpenRequest{
		Symbol:          symbol,
		Side:            side,
		EntryPrice:      snap.CurrentPrice,
		Quantity:        plan.Quantity,
		StopLoss:        plan.StopLoss,
		TakeProfit:      plan.TakeProfit,
		Interval:        m.cfg.Interval,
		TMValueAtEntry:  snap.TMValue,
		TMColorAtEntry:  snap.TMColor,
		MomentumAtEntry: snap.MomentumColor,
	})

	if opened {
		m.mu.Lock()
		delete(m.suggestions, symbol)
		m.mu.Unlock()
	}
}

// recordSymbolError counts a failure and quarantines the symbol when
// the threshold is reached. Scheduler errors never stop the loop.
func (m *Monitor) recordSymbolError(symbol string, err error) {
	m.mu.Lock()

	status, ok := m.symbols[symbol]
	if !ok {
		m.mu.Unlock()
		return
	}

	status.ErrorCount++
	status.LastError = err.Error()
	status.LastErrorAt = m.now().UTC()
	m.totalErrors++

	// Unknown symbols are quarantined immediately; transient failures
	// only after the threshold
	quarantined := false
	if status.State == SymbolActive &&
		(binance.IsInvalidSymbol(err) || status.ErrorCount >= m.cfg.MaxErrorsPerSymbol) {
		status.State = SymbolError
		quarantined = true
	}
	errorCount := status.ErrorCount
	m.mu.Unlock()

	m.log.Warn("symbol processing failed",
		"symbol", symbol, "errors", errorCount, "error", err)

	if quarantined {
		m.alerts.Raise(AlertWarning, "quarantine", symbol,
			fmt.Sprintf("symbol quarantined after %d consecutive errors", errorCount))
	}
}

// reactivateErroredSymbols returns quarantined symbols to the active
// set once the reset window has elapsed without new errors
func (m *Monitor) reactivateErroredSymbols() {
	reset := time.Duration(m.cfg.ErrorResetMinutes) * time.Minute

	m.mu.Lock()
	var reactivated []string
	for _, status := range m.symbols {
		if status.State == SymbolError && m.now().Sub(status.LastErrorAt) >= reset {
			status.State = SymbolActive
			status.ErrorCount = 0
			status.LastError = ""
			reactivated = append(reactivated, status.Symbol)
		}
	}
	m.mu.Unlock()

	for _, symbol := range reactivated {
		m.log.Info("symbol reactivated", "symbol", symbol)
		m.alerts.Raise(AlertInfo, "quarantine", symbol, "symbol reactivated after error reset window")
	}
}

// PauseSymbol removes a symbol from the active set administratively
func (m *Monitor) PauseSymbol(symbol string) bool {
	m.mu.Lock()
	status, ok := m.symbols[symbol]
	if !ok || status.State != SymbolActive {
		m.mu.Unlock()
		return false
	}
	status.State = SymbolPaused
	m.mu.Unlock()

	m.alerts.Raise(AlertInfo, "lifecycle", symbol, "symbol paused")
	return true
}

// ResumeSymbol returns a paused symbol to the active set
func (m *Monitor) ResumeSymbol(symbol string) bool {
	m.mu.Lock()
	status, ok := m.symbols[symbol]
	if !ok || status.State != SymbolPaused {
		m.mu.Unlock()
		return false
	}
	status.State = SymbolActive
	status.ErrorCount = 0
	m.mu.Unlock()

	m.alerts.Raise(AlertInfo, "lifecycle", symbol, "symbol resumed")
	return true
}

func (m *Monitor) activeSymbols() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(m.cfg.Symbols))
	for _, s := range m.cfg.Symbols {
		if status, ok := m.symbols[s]; ok && status.State == SymbolActive {
			out = append(out, s)
		}
	}
	return out
}

// latestPrices builds the price map for bracket evaluation: the last
// candle close per symbol, overridden by a streaming ticker price when
// one is fresher than the symbol's last update
func (m *Monitor) latestPrices() map[string]float64 {
	m.mu.RLock()
	out := make(map[string]float64, len(m.symbols))
	updated := make(map[string]time.Time, len(m.symbols))
	for symbol, status := range m.symbols {
		if status.LastPrice > 0 {
			out[symbol] = status.LastPrice
			updated[symbol] = status.LastUpdate
		}
	}
	m.mu.RUnlock()

	if m.ticker != nil {
		for symbol := range out {
			if tick, ok := m.ticker.LastPrice(symbol); ok && tick.Price > 0 && tick.UpdatedAt.After(updated[symbol]) {
				out[symbol] = tick.Price
			}
		}
	}
	return out
}

// LatestPrices exposes the current bracket-evaluation price map
func (m *Monitor) LatestPrices() map[string]float64 {
	return m.latestPrices()
}

// State returns the scheduler's lifecycle state
func (m *Monitor) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Status returns a copy of the aggregate monitoring status
func (m *Monitor) Status() MonitoringStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	symbols := make(map[string]SymbolStatus, len(m.symbols))
	for name, status := range m.symbols {
		cp := *status
		if status.Snapshot != nil {
			snap := *status.Snapshot
			cp.Snapshot = &snap
		}
		symbols[name] = cp
	}

	return MonitoringStatus{
		State:        m.state,
		StartTime:    m.startTime,
		Interval:     m.cfg.Interval,
		CycleCount:   m.cycleCount,
		TotalUpdates: m.totalUpdates,
		TotalSignals: m.totalSignals,
		TotalErrors:  m.totalErrors,
		HealthScore:  healthScore(m.symbols),
		Symbols:      symbols,
	}
}

// SymbolStatus returns a copy of one symbol's status
func (m *Monitor) SymbolStatus(symbol string) (SymbolStatus, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status, ok := m.symbols[symbol]
	if !ok {
		return SymbolStatus{}, false
	}
	cp := *status
	if status.Snapshot != nil {
		snap := *status.Snapshot
		cp.Snapshot = &snap
	}
	return cp, ok
}

// Suggestions returns pending order suggestions keyed by symbol
func (m *Monitor) Suggestions() map[string]OrderSuggestion {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]OrderSuggestion, len(m.suggestions))
	for k, v := range m.suggestions {
		out[k] = v
	}
	return out
}

// Performance returns the latency report
func (m *Monitor) Performance() Report {
	return m.perf.Snapshot()
}

// Alerts returns recent alerts
func (m *Monitor) Alerts(limit int) []Alert {
	return m.alerts.Recent(limit)
}
