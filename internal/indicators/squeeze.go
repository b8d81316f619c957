package indicators

import "math"

// MomentumColor classifies the squeeze momentum histogram bar
type MomentumColor string

const (
	MomentumLime   MomentumColor = "LIME"   // positive, rising
	MomentumGreen  MomentumColor = "GREEN"  // positive, falling
	MomentumRed    MomentumColor = "RED"    // negative, falling
	MomentumMaroon MomentumColor = "MAROON" // negative, rising
)

// SqueezeState reports Bollinger band position relative to the Keltner
// channel
type SqueezeState string

const (
	SqueezeOn   SqueezeState = "ON"
	SqueezeOff  SqueezeState = "OFF"
	SqueezeNone SqueezeState = "NONE"
)

// SqueezeConfig parameterises the squeeze momentum indicator
type SqueezeConfig struct {
	BBLength     int     `json:"bb_length"`
	BBMult       float64 `json:"bb_mult"`
	KCLength     int     `json:"kc_length"`
	KCMult       float64 `json:"kc_mult"`
	UseTrueRange bool    `json:"use_true_range"`
}

// DefaultSqueezeConfig returns the standard parameters
func DefaultSqueezeConfig() SqueezeConfig {
	return SqueezeConfig{BBLength: 20, BBMult: 2.0, KCLength: 20, KCMult: 1.5, UseTrueRange: true}
}

// SqueezeResult holds the final bar's squeeze state and momentum
type SqueezeResult struct {
	State        SqueezeState
	Momentum     float64
	MomentumPrev float64
	Color        MomentumColor
}

// Squeeze computes the squeeze momentum indicator on the final bar.
// Series shorter than the momentum window yield zero momentum and a
// MAROON bar; series shorter than the band windows yield state NONE.
func Squeeze(high, low, close []float64, cfg SqueezeConfig) (*SqueezeResult, error) {
	n := len(close)
	if n < 2 {
		return nil, &InsufficientDataError{Need: 2, Have: n}
	}

	res := &SqueezeResult{State: SqueezeNone, Color: MomentumMaroon}
	last := n - 1

	if n >= maxInt(cfg.BBLength, cfg.KCLength) {
		basis := SMA(close, cfg.BBLength)
		dev := StdDev(close, cfg.BBLength)

		ma := SMA(close, cfg.KCLength)
		var rangeSrc []float64
		if cfg.UseTrueRange {
			rangeSrc = TrueRange(high, low, close)
		} else {
			rangeSrc = make([]float64, n)
			for i := range rangeSrc {
				rangeSrc[i] = high[i] - low[i]
			}
		}
		rangeMA := SMA(rangeSrc, cfg.KCLength)

		upperBB := basis[last] + cfg.BBMult*dev[last]
		lowerBB := basis[last] - cfg.BBMult*dev[last]
		upperKC := ma[last] + cfg.KCMult*rangeMA[last]
		lowerKC := ma[last] - cfg.KCMult*rangeMA[last]

		switch {
		case lowerBB > lowerKC && upperBB < upperKC:
			res.State = SqueezeOn
		case lowerBB < lowerKC && upperBB > upperKC:
			res.State = SqueezeOff
		}
	}

	// The momentum at bar i needs kcLength samples of close-avg, and
	// avg at each sample needs a full kcLength window of its own; one
	// extra bar supplies the previous value for the colour delta.
	if n < 2*cfg.KCLength {
		return res, nil
	}

	hh := Highest(high, cfg.KCLength)
	ll := Lowest(low, cfg.KCLength)
	closeMA := SMA(close, cfg.KCLength)

	momentumAt := func(end int) float64 {
		window := make([]float64, cfg.KCLength)
		for k := 0; k < cfg.KCLength; k++ {
			i := end - cfg.KCLength + 1 + k
			avg := ((hh[i]+ll[i])/2 + closeMA[i]) / 2
			window[k] = close[i] - avg
		}
		return linregLast(window)
	}

	mom := momentumAt(last)
	momPrev := 0.0
	if last-1-cfg.KCLength+1 >= cfg.KCLength-1 {
		momPrev = momentumAt(last - 1)
	}
	if math.IsNaN(mom) {
		mom = 0
	}
	if math.IsNaN(momPrev) {
		momPrev = 0
	}

	res.Momentum = mom
	res.MomentumPrev = momPrev
	switch {
	case mom > 0 && mom > momPrev:
		res.Color = MomentumLime
	case mom > 0:
		res.Color = MomentumGreen
	case mom < momPrev:
		res.Color = MomentumRed
	default:
		res.Color = MomentumMaroon
	}

	return res, nil
}
