package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func risingBars(n int) (high, low, close []float64) {
	high = make([]float64, n)
	low = make([]float64, n)
	close = make([]float64, n)
	for i := 0; i < n; i++ {
		base := 100 + float64(i)*0.5
		high[i] = base + 1
		low[i] = base - 1
		close[i] = base
	}
	return
}

func fallingBars(n int) (high, low, close []float64) {
	high = make([]float64, n)
	low = make([]float64, n)
	close = make([]float64, n)
	for i := 0; i < n; i++ {
		base := 200 - float64(i)*0.5
		high[i] = base + 1
		low[i] = base - 1
		close[i] = base
	}
	return
}

func TestTrendMagicUptrendIsBlue(t *testing.T) {
	high, low, close := risingBars(60)
	res, err := TrendMagic(high, low, close, DefaultTrendMagicConfig())
	require.NoError(t, err)

	assert.Equal(t, TrendBlue, res.Color)
	assert.Greater(t, res.CCI, 0.0)
	// Line trails below price in an uptrend
	assert.Less(t, res.Value, close[len(close)-1])
}

func TestTrendMagicDowntrendIsRed(t *testing.T) {
	high, low, close := fallingBars(60)
	res, err := TrendMagic(high, low, close, DefaultTrendMagicConfig())
	require.NoError(t, err)

	assert.Equal(t, TrendRed, res.Color)
	assert.Less(t, res.CCI, 0.0)
	assert.Greater(t, res.Value, close[len(close)-1])
}

func TestTrendMagicRatchetsMonotonically(t *testing.T) {
	high, low, close := risingBars(60)
	res, err := TrendMagic(high, low, close, DefaultTrendMagicConfig())
	require.NoError(t, err)

	// While CCI stays non-negative, the line never steps down
	for i := 25; i < len(res.Magic); i++ {
		if res.CCISeries[i] >= 0 && res.CCISeries[i-1] >= 0 {
			assert.GreaterOrEqual(t, res.Magic[i], res.Magic[i-1], "bar %d", i)
		}
	}
}

func TestTrendMagicBuyCross(t *testing.T) {
	// Rising series whose last bar's low jumps clear of the line
	high, low, close := risingBars(60)
	n := len(close)
	res, err := TrendMagic(high, low, close, DefaultTrendMagicConfig())
	require.NoError(t, err)

	// Force the textbook crossing shape on the last two bars
	low[n-2] = res.Magic[n-2] - 0.5
	low[n-1] = res.Magic[n-1] + 5
	high[n-1] = low[n-1] + 2
	close[n-1] = low[n-1] + 1

	res, err = TrendMagic(high, low, close, DefaultTrendMagicConfig())
	require.NoError(t, err)
	assert.True(t, res.BuyCross)
	assert.False(t, res.SellCross)
}

func TestTrendMagicShortSeriesDegrades(t *testing.T) {
	high := []float64{101, 102, 103}
	low := []float64{99, 100, 101}
	close := []float64{100, 101, 102}

	res, err := TrendMagic(high, low, close, DefaultTrendMagicConfig())
	require.NoError(t, err)
	// CCI window never fills: colour defaults to RED, values to zero
	assert.Equal(t, TrendRed, res.Color)
	assert.Equal(t, 0.0, res.CCI)
}

func TestTrendMagicRejectsSingleBar(t *testing.T) {
	_, err := TrendMagic([]float64{101}, []float64{99}, []float64{100}, DefaultTrendMagicConfig())
	require.Error(t, err)

	var insufficient *InsufficientDataError
	assert.ErrorAs(t, err, &insufficient)
}

func TestTrendMagicDeterministic(t *testing.T) {
	high, low, close := risingBars(80)

	a, err := TrendMagic(high, low, close, DefaultTrendMagicConfig())
	require.NoError(t, err)
	b, err := TrendMagic(high, low, close, DefaultTrendMagicConfig())
	require.NoError(t, err)

	assert.Equal(t, a.Value, b.Value)
	assert.Equal(t, a.Color, b.Color)
	assert.Equal(t, a.Magic, b.Magic)
}
