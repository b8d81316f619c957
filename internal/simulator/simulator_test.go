package simulator

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"binance-signal-monitor/internal/indicators"
)

func newTestSimulator(sink TradeSink) *Simulator {
	return New(Config{
		InitialBalance:    10000,
		MaxPositions:      5,
		MakerFeeRate:      0.0004,
		TakerFeeRate:      0.0005,
		AutoCloseOnTarget: true,
	}, sink)
}

func longRequest(symbol string) OpenRequest {
	return OpenRequest{
		Symbol:     symbol,
		Side:       indicators.SideLong,
		EntryPrice: 100,
		Quantity:   1,
		StopLoss:   99,
		TakeProfit: 101,
		Interval:   "15m",
	}
}

func TestOpenPositionBasics(t *testing.T) {
	sim := newTestSimulator(nil)

	assert.True(t, sim.OpenPosition(longRequest("BTCUSDT")))
	assert.True(t, sim.HasPosition("BTCUSDT"))

	// Duplicate symbol rejected
	assert.False(t, sim.OpenPosition(longRequest("BTCUSDT")))

	// Non-positive quantity rejected
	bad := longRequest("ETHUSDT")
	bad.Quantity = 0
	assert.False(t, sim.OpenPosition(bad))
}

func TestOpenPositionCap(t *testing.T) {
	sim := newTestSimulator(nil)

	for i := 0; i < 5; i++ {
		req := longRequest(fmt.Sprintf("SYM%dUSDT", i))
		require.True(t, sim.OpenPosition(req))
	}
	assert.False(t, sim.CanOpenPosition())
	assert.False(t, sim.OpenPosition(longRequest("LATEUSDT")))
	assert.Equal(t, 5, sim.Stats().OpenPositions)
}

func TestShortTakeProfitPnL(t *testing.T) {
	sim := newTestSimulator(nil)

	require.True(t, sim.OpenPosition(OpenRequest{
		Symbol:     "XRPUSDT",
		Side:       indicators.SideShort,
		EntryPrice: 100,
		Quantity:   1,
		StopLoss:   102,
		TakeProfit: 98,
	}))

	closed := sim.UpdatePositions(map[string]float64{"XRPUSDT": 97.9})
	require.Len(t, closed, 1)

	trade := closed[0]
	assert.Equal(t, CloseTakeProfit, trade.CloseReason)
	assert.InDelta(t, 2.1, trade.GrossPnL, 1e-9)
	assert.InDelta(t, 2.01105, trade.RealPnL, 1e-9)
	assert.True(t, trade.IsWinner)
	assert.InDelta(t, 10002.01105, sim.Stats().CurrentBalance, 1e-9)
}

func TestRealPnLIdentity(t *testing.T) {
	sim := newTestSimulator(nil)

	require.True(t, sim.OpenPosition(longRequest("BTCUSDT")))
	trade := sim.ClosePosition("BTCUSDT", 100.5, CloseManual)
	require.NotNil(t, trade)

	assert.InDelta(t, trade.GrossPnL-trade.TotalCommissions, trade.RealPnL, 1e-6)
	assert.Equal(t, trade.RealPnL > 0, trade.IsWinner)
	assert.False(t, trade.ExitTime.Before(trade.EntryTime))
}

func TestStopLossPrecedence(t *testing.T) {
	sim := newTestSimulator(nil)

	// Bracket so tight that one price breaches both sides
	require.True(t, sim.OpenPosition(OpenRequest{
		Symbol:     "BTCUSDT",
		Side:       indicators.SideLong,
		EntryPrice: 100,
		Quantity:   1,
		StopLoss:   99,
		TakeProfit: 98.5, // degenerate: below the stop
	}))

	closed := sim.UpdatePositions(map[string]float64{"BTCUSDT": 98})
	require.Len(t, closed, 1)
	assert.Equal(t, CloseStopLoss, closed[0].CloseReason)
}

func TestLongTakeProfitNotStoppedAbove(t *testing.T) {
	sim := newTestSimulator(nil)

	require.True(t, sim.OpenPosition(OpenRequest{
		Symbol:     "BTCUSDT",
		Side:       indicators.SideLong,
		EntryPrice: 100,
		Quantity:   1,
		StopLoss:   99,
		TakeProfit: 101,
	}))

	// 101.5 is above the stop, so only the take-profit applies
	closed := sim.UpdatePositions(map[string]float64{"BTCUSDT": 101.5})
	require.Len(t, closed, 1)
	assert.Equal(t, CloseTakeProfit, closed[0].CloseReason)
	assert.Equal(t, 101.5, closed[0].ExitPrice)
}

func TestExactBracketPriceClosesTakeProfit(t *testing.T) {
	sim := newTestSimulator(nil)

	require.True(t, sim.OpenPosition(longRequest("BTCUSDT")))

	closed := sim.UpdatePositions(map[string]float64{"BTCUSDT": 101.0})
	require.Len(t, closed, 1)
	assert.Equal(t, CloseTakeProfit, closed[0].CloseReason)
}

func TestUpdatePositionsIdempotent(t *testing.T) {
	sim := newTestSimulator(nil)

	require.True(t, sim.OpenPosition(longRequest("BTCUSDT")))

	prices := map[string]float64{"BTCUSDT": 101.5}
	first := sim.UpdatePositions(prices)
	second := sim.UpdatePositions(prices)

	assert.Len(t, first, 1)
	assert.Empty(t, second)
}

func TestUpdatePositionsSkipsMissingPrices(t *testing.T) {
	sim := newTestSimulator(nil)

	require.True(t, sim.OpenPosition(longRequest("BTCUSDT")))
	closed := sim.UpdatePositions(map[string]float64{"ETHUSDT": 1})
	assert.Empty(t, closed)
	assert.True(t, sim.HasPosition("BTCUSDT"))
}

func TestAutoCloseOnTargetDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AutoCloseOnTarget = false
	sim := New(cfg, nil)

	require.True(t, sim.OpenPosition(longRequest("BTCUSDT")))

	// Bracket evaluation is skipped entirely; only MANUAL closes apply
	assert.Empty(t, sim.UpdatePositions(map[string]float64{"BTCUSDT": 101.5}))
	assert.Empty(t, sim.UpdatePositions(map[string]float64{"BTCUSDT": 98.5}))
	assert.True(t, sim.HasPosition("BTCUSDT"))

	trade := sim.ClosePosition("BTCUSDT", 98.5, CloseManual)
	require.NotNil(t, trade)
	assert.Equal(t, CloseManual, trade.CloseReason)
}

type failingSink struct {
	err   error
	calls int
}

func (f *failingSink) AppendTrade(*ClosedTrade) error {
	f.calls++
	return f.err
}

func TestStoreFailureKeepsTradeInMemory(t *testing.T) {
	sink := &failingSink{err: errors.New("disk full")}
	sim := newTestSimulator(sink)

	require.True(t, sim.OpenPosition(longRequest("BTCUSDT")))
	trade := sim.ClosePosition("BTCUSDT", 101, CloseManual)
	require.NotNil(t, trade)

	assert.Equal(t, 1, sink.calls)
	assert.Len(t, sim.ClosedTrades(), 1)
	assert.Equal(t, 1, sim.Stats().StoreFailures)
}

func TestClosePositionUnknownSymbol(t *testing.T) {
	sim := newTestSimulator(nil)
	assert.Nil(t, sim.ClosePosition("NOPEUSDT", 100, CloseManual))
}

func TestStatsAccounting(t *testing.T) {
	sim := newTestSimulator(nil)

	require.True(t, sim.OpenPosition(longRequest("AUSDT")))
	require.True(t, sim.OpenPosition(longRequest("BUSDT")))

	winner := sim.ClosePosition("AUSDT", 105, CloseManual)
	loser := sim.ClosePosition("BUSDT", 96, CloseManual)
	require.NotNil(t, winner)
	require.NotNil(t, loser)

	stats := sim.Stats()
	assert.Equal(t, 2, stats.ClosedTrades)
	assert.Equal(t, 1, stats.Winners)
	assert.Equal(t, 0, stats.OpenPositions)
	assert.InDelta(t, 50.0, stats.WinRate, 1e-9)
	assert.InDelta(t, winner.RealPnL/-loser.RealPnL, stats.ProfitFactor, 1e-9)
	assert.InDelta(t, winner.RealPnL+loser.RealPnL, stats.TotalPnL, 1e-9)
	assert.InDelta(t, winner.TotalCommissions+loser.TotalCommissions, stats.TotalCommissions, 1e-9)
}

func TestOpenPositionsSummary(t *testing.T) {
	sim := newTestSimulator(nil)

	require.True(t, sim.OpenPosition(longRequest("BTCUSDT")))
	require.True(t, sim.OpenPosition(longRequest("ETHUSDT")))

	summary := sim.OpenPositionsSummary(map[string]float64{"BTCUSDT": 100.5})
	require.Len(t, summary, 2)

	bySymbol := map[string]OpenPositionSummary{}
	for _, entry := range summary {
		bySymbol[entry.Symbol] = entry
	}

	btc := bySymbol["BTCUSDT"]
	assert.Equal(t, 100.5, btc.CurrentPrice)
	assert.InDelta(t, 0.5, btc.UnrealizedPnL, 1e-9)
	assert.InDelta(t, 0.5, btc.PnLPercent, 1e-9)

	// No price for ETH: live fields stay zero
	eth := bySymbol["ETHUSDT"]
	assert.Zero(t, eth.CurrentPrice)
	assert.Zero(t, eth.UnrealizedPnL)
}

func TestResetRestoresInitialState(t *testing.T) {
	sim := newTestSimulator(nil)

	require.True(t, sim.OpenPosition(longRequest("BTCUSDT")))
	require.True(t, sim.OpenPosition(longRequest("ETHUSDT")))
	require.NotNil(t, sim.ClosePosition("BTCUSDT", 105, CloseManual))

	sim.Reset()

	stats := sim.Stats()
	assert.Equal(t, 10000.0, stats.CurrentBalance)
	assert.Equal(t, 0, stats.OpenPositions)
	assert.Equal(t, 0, stats.ClosedTrades)
	assert.Zero(t, stats.TotalCommissions)
	assert.False(t, sim.HasPosition("ETHUSDT"))
}
