package tradestore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"binance-signal-monitor/internal/indicators"
	"binance-signal-monitor/internal/simulator"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "trades.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleTrade(symbol, interval string, pnl float64) *simulator.ClosedTrade {
	entry := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return &simulator.ClosedTrade{
		ID:               uuid.NewString(),
		Symbol:           symbol,
		Side:             indicators.SideLong,
		Interval:         interval,
		EntryPrice:       100.1234,
		ExitPrice:        100.1234 + pnl,
		Quantity:         0.998004,
		StopLoss:         99.697,
		TakeProfit:       103.106,
		EntryTime:        entry,
		ExitTime:         entry.Add(45 * time.Minute),
		GrossPnL:         pnl * 0.998004,
		RealPnL:          pnl*0.998004 - 0.09,
		PnLPercent:       pnl,
		TotalCommissions: 0.09,
		CloseReason:      simulator.CloseTakeProfit,
		IsWinner:         pnl > 0.1,
		TMValueAtEntry:   101.0,
		TMColorAtEntry:   indicators.TrendBlue,
		MomentumAtEntry:  indicators.MomentumLime,
	}
}

func TestAppendAndReadBackTrade(t *testing.T) {
	store := openTestStore(t)

	trade := sampleTrade("BTCUSDT", "15m", 2.5)
	require.NoError(t, store.AppendTrade(trade))

	records, err := store.Trades()
	require.NoError(t, err)
	require.Len(t, records, 1)

	got := records[0]
	assert.Equal(t, trade.ID, got.ID)
	assert.Equal(t, "BTCUSDT", got.Symbol)
	assert.Equal(t, "LONG", got.Side)
	assert.Equal(t, "15m", got.Interval)
	assert.Equal(t, "TAKE_PROFIT", got.CloseReason)
	assert.Equal(t, "BLUE", got.TMColorEntry)
	assert.Equal(t, "LIME", got.MomentumEntry)
	assert.True(t, got.IsWinner)

	// Numeric fields match within 3-decimal rounding (quantity at 6)
	assert.InDelta(t, trade.EntryPrice, got.EntryPrice, 0.0005)
	assert.InDelta(t, trade.ExitPrice, got.ExitPrice, 0.0005)
	assert.InDelta(t, trade.Quantity, got.Quantity, 0.0000005)
	assert.InDelta(t, trade.RealPnL, got.RealPnL, 0.0005)
	assert.InDelta(t, trade.TotalCommissions, got.Commissions, 0.0005)
	assert.InDelta(t, 2700, got.DurationSec, 1e-9)
	assert.InDelta(t, trade.EntryPrice*trade.Quantity, got.PositionValue, 0.0005)
}

func TestRiskRewardComputedOnWrite(t *testing.T) {
	store := openTestStore(t)

	trade := sampleTrade("BTCUSDT", "15m", 1.0)
	trade.EntryPrice = 100
	trade.StopLoss = 99
	trade.TakeProfit = 102
	require.NoError(t, store.AppendTrade(trade))

	records, err := store.Trades()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.InDelta(t, 2.0, records[0].RiskReward, 1e-9)
}

func TestTradesForIntervalAndLimit(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.AppendTrade(sampleTrade("BTCUSDT", "15m", 1)))
	require.NoError(t, store.AppendTrade(sampleTrade("ETHUSDT", "15m", -1)))
	require.NoError(t, store.AppendTrade(sampleTrade("BTCUSDT", "1h", 2)))

	m15, err := store.TradesForInterval("15m", 0)
	require.NoError(t, err)
	assert.Len(t, m15, 2)

	limited, err := store.TradesForInterval("15m", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	h1, err := store.TradesForInterval("1h", 0)
	require.NoError(t, err)
	assert.Len(t, h1, 1)
}

func TestIntervals(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.AppendTrade(sampleTrade("BTCUSDT", "15m", 1)))
	require.NoError(t, store.AppendTrade(sampleTrade("BTCUSDT", "1h", 1)))
	require.NoError(t, store.AppendTrade(sampleTrade("ETHUSDT", "1h", 1)))

	intervals, err := store.Intervals()
	require.NoError(t, err)
	assert.Equal(t, []string{"15m", "1h"}, intervals)
}

func TestSummaryForInterval(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.AppendTrade(sampleTrade("BTCUSDT", "15m", 2)))
	require.NoError(t, store.AppendTrade(sampleTrade("BTCUSDT", "15m", -1)))
	require.NoError(t, store.AppendTrade(sampleTrade("ETHUSDT", "15m", 3)))
	require.NoError(t, store.AppendTrade(sampleTrade("BTCUSDT", "1h", 5)))

	sum, err := store.SummaryForInterval("15m")
	require.NoError(t, err)

	assert.Equal(t, 3, sum.Trades)
	assert.Equal(t, 2, sum.Winners)
	assert.InDelta(t, 66.667, sum.WinRate, 0.001)
	assert.Len(t, sum.BySymbol, 2)
	assert.InDelta(t, 2700, sum.AvgDurationSec, 1e-9)
	assert.Greater(t, sum.BestPnL, sum.WorstPnL)

	all, err := store.SummaryForInterval("")
	require.NoError(t, err)
	assert.Equal(t, 4, all.Trades)
}

func TestSummaryByInterval(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.AppendTrade(sampleTrade("BTCUSDT", "15m", 1)))
	require.NoError(t, store.AppendTrade(sampleTrade("BTCUSDT", "1h", 1)))

	sums, err := store.SummaryByInterval()
	require.NoError(t, err)
	require.Len(t, sums, 2)
	assert.Equal(t, "15m", sums[0].Interval)
	assert.Equal(t, "1h", sums[1].Interval)
}

func TestEmptySummary(t *testing.T) {
	store := openTestStore(t)

	sum, err := store.SummaryForInterval("15m")
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Trades)
	assert.Equal(t, 0.0, sum.WinRate)
}

func TestSessionStatsCountAppends(t *testing.T) {
	store := openTestStore(t)

	assert.Zero(t, store.SessionStats().Appends)

	require.NoError(t, store.AppendTrade(sampleTrade("BTCUSDT", "15m", 1)))
	require.NoError(t, store.AppendTrade(sampleTrade("ETHUSDT", "15m", -1)))

	stats := store.SessionStats()
	assert.Equal(t, 2, stats.Appends)
	assert.False(t, stats.LastAppendAt.IsZero())
}
