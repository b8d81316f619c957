package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"binance-signal-monitor/internal/indicators"
)

func TestStopMultiplierTable(t *testing.T) {
	assert.Equal(t, 0.003, StopMultiplier("1m"))
	assert.Equal(t, 0.007, StopMultiplier("5m"))
	assert.Equal(t, 0.010, StopMultiplier("15m"))
	assert.Equal(t, 0.020, StopMultiplier("1h"))
	assert.Equal(t, 0.030, StopMultiplier("4h"))
	assert.Equal(t, 0.050, StopMultiplier("1d"))
	assert.Equal(t, 0.010, StopMultiplier("unknown"))
}

func TestSizeLongEntry(t *testing.T) {
	sizer := NewOrderSizer(100, 2.0)

	plan, ok := sizer.Size(indicators.SideLong, 101.5, 101.0, "1m")
	require.True(t, ok)

	assert.InDelta(t, 0.98522, plan.Quantity, 0.0001)
	assert.InDelta(t, 100.697, plan.StopLoss, 1e-9)
	assert.InDelta(t, 103.106, plan.TakeProfit, 1e-9)
}

func TestSizeShortEntry(t *testing.T) {
	sizer := NewOrderSizer(100, 2.0)

	plan, ok := sizer.Size(indicators.SideShort, 100.5, 101.0, "1m")
	require.True(t, ok)

	// sl = 101 * 1.003 = 101.303; tp = 100.5 - (101.303-100.5)*2
	assert.InDelta(t, 101.303, plan.StopLoss, 1e-9)
	assert.InDelta(t, 98.894, plan.TakeProfit, 1e-9)
	assert.Greater(t, plan.StopLoss, 100.5)
	assert.Less(t, plan.TakeProfit, 100.5)
}

func TestSizeBracketOrderingInvariant(t *testing.T) {
	sizer := NewOrderSizer(100, 2.0)

	plan, ok := sizer.Size(indicators.SideLong, 101.5, 101.0, "15m")
	require.True(t, ok)
	assert.Less(t, plan.StopLoss, 101.5)
	assert.Greater(t, plan.TakeProfit, 101.5)
}

func TestSizeRejectsInvertedStop(t *testing.T) {
	sizer := NewOrderSizer(100, 2.0)

	// Line far above entry: a LONG stop would sit above the entry
	_, ok := sizer.Size(indicators.SideLong, 100, 150, "1m")
	assert.False(t, ok)

	// Line far below entry: a SHORT stop would sit below the entry
	_, ok = sizer.Size(indicators.SideShort, 100, 50, "1m")
	assert.False(t, ok)
}

func TestSizeRejectsBadInputs(t *testing.T) {
	sizer := NewOrderSizer(100, 2.0)

	_, ok := sizer.Size(indicators.SideLong, 0, 100, "1m")
	assert.False(t, ok)
	_, ok = sizer.Size(indicators.SideLong, 100, 0, "1m")
	assert.False(t, ok)
}

func TestNewOrderSizerDefaults(t *testing.T) {
	sizer := NewOrderSizer(0, 0)
	assert.Equal(t, 100.0, sizer.PositionSize)
	assert.Equal(t, 2.0, sizer.RiskReward)
}
