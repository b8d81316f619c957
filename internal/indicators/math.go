package indicators

import "math"

// SMA computes the simple moving average of values over period. Output
// index i holds the average of values[i-period+1 .. i]; indices before
// the window is full are NaN.
func SMA(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) < period {
		return out
	}

	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// StdDev computes the rolling population standard deviation over period
func StdDev(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	ma := SMA(values, period)
	for i := period - 1; i < len(values); i++ {
		sumSq := 0.0
		for j := i - period + 1; j <= i; j++ {
			d := values[j] - ma[i]
			sumSq += d * d
		}
		out[i] = math.Sqrt(sumSq / float64(period))
	}
	return out
}

// TrueRange computes TR per bar; the first bar uses high-low
func TrueRange(high, low, close []float64) []float64 {
	out := make([]float64, len(high))
	for i := range high {
		if i == 0 {
			out[i] = high[i] - low[i]
			continue
		}
		hl := high[i] - low[i]
		hc := math.Abs(high[i] - close[i-1])
		lc := math.Abs(low[i] - close[i-1])
		out[i] = math.Max(hl, math.Max(hc, lc))
	}
	return out
}

// ATR computes the SMA-smoothed average true range
func ATR(high, low, close []float64, period int) []float64 {
	return SMA(TrueRange(high, low, close), period)
}

// CCI computes the Commodity Channel Index from typical prices
func CCI(high, low, close []float64, period int) []float64 {
	n := len(close)
	tp := make([]float64, n)
	for i := range tp {
		tp[i] = (high[i] + low[i] + close[i]) / 3
	}

	out := nanSlice(n)
	ma := SMA(tp, period)
	for i := period - 1; i < n; i++ {
		meanDev := 0.0
		for j := i - period + 1; j <= i; j++ {
			meanDev += math.Abs(tp[j] - ma[i])
		}
		meanDev /= float64(period)
		if meanDev == 0 {
			out[i] = 0
			continue
		}
		out[i] = (tp[i] - ma[i]) / (0.015 * meanDev)
	}
	return out
}

// Highest computes the rolling max over period
func Highest(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	for i := period - 1; i < len(values); i++ {
		m := values[i-period+1]
		for j := i - period + 2; j <= i; j++ {
			if values[j] > m {
				m = values[j]
			}
		}
		out[i] = m
	}
	return out
}

// Lowest computes the rolling min over period
func Lowest(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	for i := period - 1; i < len(values); i++ {
		m := values[i-period+1]
		for j := i - period + 2; j <= i; j++ {
			if values[j] < m {
				m = values[j]
			}
		}
		out[i] = m
	}
	return out
}

// linregLast fits an OLS line through values (x = 0..n-1) and returns
// the fitted value at the last point
func linregLast(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return math.NaN()
	}
	if n == 1 {
		return values[0]
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, v := range values {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}

	fn := float64(n)
	denom := fn*sumXX - sumX*sumX
	if denom == 0 {
		return values[n-1]
	}
	slope := (fn*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / fn
	return slope*float64(n-1) + intercept
}

// Round3 rounds to 3 decimal places for surfaced values
func Round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
