package simulator

import (
	"time"

	"binance-signal-monitor/internal/indicators"
)

// CloseReason records why a position was closed
type CloseReason string

const (
	CloseTakeProfit CloseReason = "TAKE_PROFIT"
	CloseStopLoss   CloseReason = "STOP_LOSS"
	CloseManual     CloseReason = "MANUAL"
)

// Position is one open simulated trade. At most one exists per symbol.
type Position struct {
	ID              string           `json:"id"`
	Symbol          string           `json:"symbol"`
	Side            indicators.Side  `json:"side"`
	EntryPrice      float64          `json:"entry_price"`
	Quantity        float64          `json:"quantity"`
	StopLoss        float64          `json:"stop_loss"`
	TakeProfit      float64          `json:"take_profit"`
	EntryTime       time.Time        `json:"entry_time"`
	EntryCommission float64          `json:"entry_commission"`

	// Market context captured at open, carried into the closed trade
	Interval        string                   `json:"interval"`
	TMValueAtEntry  float64                  `json:"tm_value_at_entry"`
	TMColorAtEntry  indicators.TrendColor    `json:"tm_color_at_entry"`
	MomentumAtEntry indicators.MomentumColor `json:"momentum_at_entry"`
}

// UnrealizedPnL computes the mark-to-market PnL at a price, before the
// exit commission
func (p *Position) UnrealizedPnL(price float64) float64 {
	if p.Side == indicators.SideLong {
		return (price - p.EntryPrice) * p.Quantity
	}
	return (p.EntryPrice - price) * p.Quantity
}

// bracketReason evaluates the bracket at a price. Stop-loss wins when
// both sides are breached in one observation.
func (p *Position) bracketReason(price float64) (CloseReason, bool) {
	if p.Side == indicators.SideLong {
		if price <= p.StopLoss {
			return CloseStopLoss, true
		}
		if price >= p.TakeProfit {
			return CloseTakeProfit, true
		}
		return "", false
	}

	if price >= p.StopLoss {
		return CloseStopLoss, true
	}
	if price <= p.TakeProfit {
		return CloseTakeProfit, true
	}
	return "", false
}

// ClosedTrade is the immutable record of a completed trade
type ClosedTrade struct {
	ID               string           `json:"id"`
	Symbol           string           `json:"symbol"`
	Side             indicators.Side  `json:"side"`
	Interval         string           `json:"interval"`
	EntryPrice       float64          `json:"entry_price"`
	ExitPrice        float64          `json:"exit_price"`
	Quantity         float64          `json:"quantity"`
	StopLoss         float64          `json:"stop_loss"`
	TakeProfit       float64          `json:"take_profit"`
	EntryTime        time.Time        `json:"entry_time"`
	ExitTime         time.Time        `json:"exit_time"`
	GrossPnL         float64          `json:"gross_pnl"`
	RealPnL          float64          `json:"real_pnl"`
	PnLPercent       float64          `json:"pnl_percent"`
	TotalCommissions float64          `json:"total_commissions"`
	CloseReason      CloseReason      `json:"close_reason"`
	IsWinner         bool             `json:"is_winner"`

	TMValueAtEntry  float64                  `json:"tm_value_at_entry"`
	TMColorAtEntry  indicators.TrendColor    `json:"tm_color_at_entry"`
	MomentumAtEntry indicators.MomentumColor `json:"momentum_at_entry"`
}

// Duration is the holding time of the trade
func (t *ClosedTrade) Duration() time.Duration {
	return t.ExitTime.Sub(t.EntryTime)
}
