package indicators

import (
	"fmt"
	"time"

	"binance-signal-monitor/internal/marketdata"
)

// InsufficientDataError reports too few candles for a window
type InsufficientDataError struct {
	Need int
	Have int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: need %d candles, have %d", e.Need, e.Have)
}

// Snapshot is the indicator state at the latest candle
type Snapshot struct {
	Symbol   string `json:"symbol"`
	Interval string `json:"interval"`

	TMValue float64    `json:"tm_value"`
	TMColor TrendColor `json:"tm_color"`
	CCI     float64    `json:"cci"`
	ATR     float64    `json:"atr"`

	BuyCross  bool `json:"buy_cross"`
	SellCross bool `json:"sell_cross"`

	MomentumValue float64       `json:"momentum_value"`
	MomentumColor MomentumColor `json:"momentum_color"`
	SqueezeState  SqueezeState  `json:"squeeze_state"`

	CurrentPrice float64   `json:"current_price"`
	OpenPrice    float64   `json:"open_price"`
	Timestamp    time.Time `json:"timestamp"`
}

// Config bundles the parameters of both indicators
type Config struct {
	TrendMagic TrendMagicConfig `json:"trend_magic"`
	Squeeze    SqueezeConfig    `json:"squeeze"`
}

// DefaultConfig returns the standard indicator parameters
func DefaultConfig() Config {
	return Config{
		TrendMagic: DefaultTrendMagicConfig(),
		Squeeze:    DefaultSqueezeConfig(),
	}
}

// Engine computes indicator snapshots from candle series. Stateless
// between calls; safe for concurrent use.
type Engine struct {
	cfg Config
}

// NewEngine creates an engine with the given parameters
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// MinCandles is the series length at which every window is fully
// populated. Shorter series still compute, with degraded outputs.
func (e *Engine) MinCandles() int {
	tm := maxInt(e.cfg.TrendMagic.CCIPeriod, e.cfg.TrendMagic.ATRPeriod) + 2
	sq := maxInt(e.cfg.Squeeze.BBLength, e.cfg.Squeeze.KCLength) * 2
	return maxInt(tm, sq)
}

// Compute produces the snapshot for the final candle of the series.
// At least two candles are required; beyond that, windows that are not
// yet full degrade per indicator rather than failing.
func (e *Engine) Compute(series *marketdata.CandleSeries) (*Snapshot, error) {
	if series.Len() < 2 {
		return nil, &InsufficientDataError{Need: 2, Have: series.Len()}
	}

	high := series.Highs()
	low := series.Lows()
	close := series.Closes()

	tm, err := TrendMagic(high, low, close, e.cfg.TrendMagic)
	if err != nil {
		return nil, err
	}

	sq, err := Squeeze(high, low, close, e.cfg.Squeeze)
	if err != nil {
		return nil, err
	}

	last, _ := series.Last()

	return &Snapshot{
		Symbol:        series.Symbol,
		Interval:      series.Interval,
		TMValue:       Round3(tm.Value),
		TMColor:       tm.Color,
		CCI:           tm.CCI,
		ATR:           tm.ATR,
		BuyCross:      tm.BuyCross,
		SellCross:     tm.SellCross,
		MomentumValue: sq.Momentum,
		MomentumColor: sq.Color,
		SqueezeState:  sq.State,
		CurrentPrice:  last.Close,
		OpenPrice:     last.Open,
		Timestamp:     last.OpenTime,
	}, nil
}
