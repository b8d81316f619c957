package monitor

import (
	"time"

	"binance-signal-monitor/internal/indicators"
)

// intervalMultipliers maps bar interval to the stop-loss distance
// fraction applied to the trend line
var intervalMultipliers = map[string]float64{
	"1m":  0.003,
	"3m":  0.005,
	"5m":  0.007,
	"15m": 0.010,
	"30m": 0.015,
	"1h":  0.020,
	"2h":  0.025,
	"4h":  0.030,
	"6h":  0.035,
	"8h":  0.040,
	"12h": 0.045,
	"1d":  0.050,
}

const defaultMultiplier = 0.010

// StopMultiplier returns the stop-loss fraction for an interval
func StopMultiplier(interval string) float64 {
	if m, ok := intervalMultipliers[interval]; ok {
		return m
	}
	return defaultMultiplier
}

// OrderSizer derives (qty, sl, tp) from a signal and the trend line
type OrderSizer struct {
	PositionSize float64 // target position value in quote currency
	RiskReward   float64 // take-profit distance as a multiple of risk
}

// NewOrderSizer creates a sizer; zero values get the defaults ($100, 1:2)
func NewOrderSizer(positionSize, riskReward float64) *OrderSizer {
	if positionSize <= 0 {
		positionSize = 100
	}
	if riskReward <= 0 {
		riskReward = 2.0
	}
	return &OrderSizer{PositionSize: positionSize, RiskReward: riskReward}
}

// OrderPlan is a sized bracket order
type OrderPlan struct {
	Quantity   float64 `json:"quantity"`
	StopLoss   float64 `json:"stop_loss"`
	TakeProfit float64 `json:"take_profit"`
}

// Size places the stop at tmValue scaled by the interval multiplier and
// the take-profit symmetric at the configured risk-reward ratio. The
// quantity targets PositionSize at the entry price.
func (o *OrderSizer) Size(side indicators.Side, entry, tmValue float64, interval string) (OrderPlan, bool) {
	if entry <= 0 || tmValue <= 0 {
		return OrderPlan{}, false
	}

	m := StopMultiplier(interval)
	plan := OrderPlan{Quantity: o.PositionSize / entry}

	if side == indicators.SideLong {
		plan.StopLoss = tmValue * (1 - m)
		if plan.StopLoss >= entry {
			return OrderPlan{}, false
		}
		plan.TakeProfit = entry + (entry-plan.StopLoss)*o.RiskReward
	} else {
		plan.StopLoss = tmValue * (1 + m)
		if plan.StopLoss <= entry {
			return OrderPlan{}, false
		}
		plan.TakeProfit = entry - (plan.StopLoss-entry)*o.RiskReward
		if plan.TakeProfit <= 0 {
			return OrderPlan{}, false
		}
	}

	return plan, true
}

// OrderSuggestion is a signal the scheduler could not act on, kept for
// operators to review
type OrderSuggestion struct {
	Symbol    string          `json:"symbol"`
	Side      indicators.Side `json:"side"`
	Entry     float64         `json:"entry"`
	Plan      OrderPlan       `json:"plan"`
	Reason    string          `json:"reason"`
	CreatedAt time.Time       `json:"created_at"`
}
