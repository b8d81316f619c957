package indicators

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSMA(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	out := SMA(values, 3)

	assert.True(t, math.IsNaN(out[0]))
	assert.True(t, math.IsNaN(out[1]))
	assert.InDelta(t, 2.0, out[2], 1e-9)
	assert.InDelta(t, 3.0, out[3], 1e-9)
	assert.InDelta(t, 4.0, out[4], 1e-9)
}

func TestStdDev(t *testing.T) {
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	out := StdDev(values, 8)
	assert.InDelta(t, 2.0, out[7], 1e-9)
}

func TestTrueRangeUsesPreviousClose(t *testing.T) {
	high := []float64{10, 12, 11}
	low := []float64{9, 10, 8}
	close := []float64{9.5, 11, 9}

	tr := TrueRange(high, low, close)
	assert.InDelta(t, 1.0, tr[0], 1e-9)  // first bar: high-low
	assert.InDelta(t, 2.5, tr[1], 1e-9)  // max(2, |12-9.5|, |10-9.5|)
	assert.InDelta(t, 3.0, tr[2], 1e-9)  // max(3, 0, 3)
}

func TestCCISignTracksPriceVsAverage(t *testing.T) {
	n := 30
	high := make([]float64, n)
	low := make([]float64, n)
	close := make([]float64, n)
	for i := 0; i < n; i++ {
		base := 100 + float64(i) // steadily rising
		high[i] = base + 1
		low[i] = base - 1
		close[i] = base
	}

	cci := CCI(high, low, close, 20)
	assert.Greater(t, cci[n-1], 0.0)

	// Mirror: steadily falling prices give negative CCI
	for i := 0; i < n; i++ {
		base := 200 - float64(i)
		high[i] = base + 1
		low[i] = base - 1
		close[i] = base
	}
	cci = CCI(high, low, close, 20)
	assert.Less(t, cci[n-1], 0.0)
}

func TestHighestLowest(t *testing.T) {
	values := []float64{3, 1, 4, 1, 5, 9, 2, 6}
	hh := Highest(values, 3)
	ll := Lowest(values, 3)

	assert.InDelta(t, 4.0, hh[2], 1e-9)
	assert.InDelta(t, 9.0, hh[5], 1e-9)
	assert.InDelta(t, 2.0, ll[6], 1e-9)
	assert.True(t, math.IsNaN(hh[1]))
}

func TestLinregLast(t *testing.T) {
	// Perfectly linear input: fitted value at the end equals the input
	values := []float64{1, 3, 5, 7, 9}
	assert.InDelta(t, 9.0, linregLast(values), 1e-9)

	// Constant input
	flat := []float64{4, 4, 4, 4}
	assert.InDelta(t, 4.0, linregLast(flat), 1e-9)
}

func TestRound3(t *testing.T) {
	assert.Equal(t, 1.234, Round3(1.23449))
	assert.Equal(t, 1.235, Round3(1.23460))
	assert.Equal(t, -2.5, Round3(-2.4999))
}
