package monitor

import (
	"time"

	"binance-signal-monitor/internal/indicators"
)

// State is the scheduler's lifecycle state
type State string

const (
	StateStopped      State = "STOPPED"
	StateStarting     State = "STARTING"
	StateRunning      State = "RUNNING"
	StatePaused       State = "PAUSED"
	StateError        State = "ERROR"
	StateShuttingDown State = "SHUTTING_DOWN"
)

// SymbolState is the per-symbol scheduling state
type SymbolState string

const (
	SymbolActive SymbolState = "ACTIVE"
	SymbolPaused SymbolState = "PAUSED"
	SymbolError  SymbolState = "ERROR"
)

// SymbolStatus is the scheduler-owned record for one symbol. Only the
// scheduler and the worker that owns the symbol write it; readers get
// copies.
type SymbolStatus struct {
	Symbol      string               `json:"symbol"`
	State       SymbolState          `json:"state"`
	Snapshot    *indicators.Snapshot `json:"snapshot,omitempty"`
	LastPrice   float64              `json:"last_price"`
	UpdateCount int64                `json:"update_count"`
	ErrorCount  int                  `json:"error_count"`
	LastError   string               `json:"last_error,omitempty"`
	LastErrorAt time.Time            `json:"last_error_at,omitempty"`
	LastUpdate  time.Time            `json:"last_update,omitempty"`

	// Latched signal marker; cleared when the context stops supporting it
	LatchedSide indicators.Side `json:"latched_side,omitempty"`
	LatchedAt   time.Time       `json:"latched_at,omitempty"`
}

// MonitoringStatus is the aggregate view issued to readers by copy
type MonitoringStatus struct {
	State        State                   `json:"state"`
	StartTime    time.Time               `json:"start_time,omitempty"`
	Interval     string                  `json:"interval"`
	CycleCount   int64                   `json:"cycle_count"`
	TotalUpdates int64                   `json:"total_updates"`
	TotalSignals int64                   `json:"total_signals"`
	TotalErrors  int64                   `json:"total_errors"`
	HealthScore  float64                 `json:"health_score"`
	Symbols      map[string]SymbolStatus `json:"symbols"`
}

// healthScore rates the active share of symbols, discounted by the
// recent error rate. 100 means all symbols active and error-free.
func healthScore(symbols map[string]*SymbolStatus) float64 {
	if len(symbols) == 0 {
		return 0
	}

	active := 0
	errorWeight := 0.0
	for _, s := range symbols {
		if s.State == SymbolActive {
			active++
		}
		if s.ErrorCount > 0 {
			errorWeight += float64(s.ErrorCount)
		}
	}

	score := float64(active) / float64(len(symbols)) * 100
	score -= errorWeight * 2
	if score < 0 {
		score = 0
	}
	return score
}
