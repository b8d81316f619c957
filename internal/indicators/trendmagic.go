package indicators

import "math"

// TrendColor is the state of the trend line at a bar
type TrendColor string

const (
	TrendBlue TrendColor = "BLUE"
	TrendRed  TrendColor = "RED"
)

// TrendMagicConfig parameterises the CCI+ATR trailing line
type TrendMagicConfig struct {
	CCIPeriod int     `json:"cci_period"`
	ATRPeriod int     `json:"atr_period"`
	Coeff     float64 `json:"coeff"`
}

// DefaultTrendMagicConfig returns the standard parameters
func DefaultTrendMagicConfig() TrendMagicConfig {
	return TrendMagicConfig{CCIPeriod: 20, ATRPeriod: 5, Coeff: 1.0}
}

// TrendMagicResult holds the per-bar trend line series and the final
// bar's state
type TrendMagicResult struct {
	Magic     []float64
	CCISeries []float64
	ATRSeries []float64

	Value     float64    // magic at the last bar
	Color     TrendColor // BLUE when CCI > 0
	CCI       float64
	ATR       float64
	BuyCross  bool
	SellCross bool
}

// TrendMagic computes the CCI-gated trailing band line. The line
// anchors on low-ATR while CCI is non-negative and on high+ATR
// otherwise, ratcheting monotonically in the active direction. Bars
// before the CCI/ATR windows fill inherit the previous line value.
func TrendMagic(high, low, close []float64, cfg TrendMagicConfig) (*TrendMagicResult, error) {
	n := len(close)
	if n < 2 {
		return nil, &InsufficientDataError{Need: 2, Have: n}
	}

	atr := ATR(high, low, close, cfg.ATRPeriod)
	cci := CCI(high, low, close, cfg.CCIPeriod)

	magic := make([]float64, n)
	for i := 0; i < n; i++ {
		var band float64
		if !math.IsNaN(cci[i]) && cci[i] >= 0 {
			band = low[i] - atr[i]*cfg.Coeff
		} else {
			band = high[i] + atr[i]*cfg.Coeff
		}

		if i == 0 {
			if math.IsNaN(band) {
				band = low[0]
			}
			magic[0] = band
			continue
		}

		prev := magic[i-1]
		switch {
		case math.IsNaN(band):
			magic[i] = prev
		case !math.IsNaN(cci[i]) && cci[i] >= 0:
			magic[i] = math.Max(band, prev)
		default:
			magic[i] = math.Min(band, prev)
		}
	}

	res := &TrendMagicResult{
		Magic:     magic,
		CCISeries: cci,
		ATRSeries: atr,
		Value:     magic[n-1],
		CCI:       nanToZero(cci[n-1]),
		ATR:       nanToZero(atr[n-1]),
	}

	if !math.IsNaN(cci[n-1]) && cci[n-1] > 0 {
		res.Color = TrendBlue
	} else {
		res.Color = TrendRed
	}

	// Crossings use the last two completed bars against the line
	res.BuyCross = low[n-2] <= magic[n-2] && low[n-1] > magic[n-1]
	res.SellCross = high[n-2] >= magic[n-2] && high[n-1] < magic[n-1]

	return res, nil
}

func nanToZero(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
