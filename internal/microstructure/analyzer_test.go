package microstructure

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradecore/internal/book"
	"tradecore/internal/common"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func setupBook(t *testing.T, bidPx, bidSz, askPx, askSz string) *book.OrderBook {
	t.Helper()
	b := book.New("AAPL", "NASDAQ")
	require.NoError(t, b.ApplyUpdate(common.Buy, d(bidPx), d(bidSz), 1, common.Add, 1))
	require.NoError(t, b.ApplyUpdate(common.Sell, d(askPx), d(askSz), 1, common.Add, 2))
	return b
}

func TestAnalyzer_GetMetrics_HighLiquidityRegime(t *testing.T) {
	b := setupBook(t, "100.00", "20000", "100.01", "20000")
	a := New(0, 0)
	a.RegisterOrderBook("AAPL", "NASDAQ", b)

	m, ok := a.GetMetrics("AAPL", "NASDAQ", time.Now())
	require.True(t, ok)
	assert.Equal(t, common.RegimeHighLiquidity, m.Regime)
}

func TestAnalyzer_GetMetrics_LowLiquidityRegime(t *testing.T) {
	b := setupBook(t, "100.00", "5", "101.00", "5")
	a := New(0, 0)
	a.RegisterOrderBook("AAPL", "NASDAQ", b)

	m, ok := a.GetMetrics("AAPL", "NASDAQ", time.Now())
	require.True(t, ok)
	assert.Equal(t, common.RegimeLowLiquidity, m.Regime)
}

func TestAnalyzer_GetMetrics_NoBookRegistered(t *testing.T) {
	a := New(0, 0)
	_, ok := a.GetMetrics("MSFT", "NASDAQ", time.Now())
	assert.False(t, ok)
}

func TestAnalyzer_OrderFlowImbalance_Trending(t *testing.T) {
	b := setupBook(t, "100.00", "50000", "100.50", "50000")
	a := New(0, 0)
	a.RegisterOrderBook("AAPL", "NASDAQ", b)

	now := time.Now()
	inst := common.Instrument{Symbol: "AAPL"}
	_ = inst
	for i := 0; i < 9; i++ {
		a.OnTrade(common.NewTrade("t", "m", "AAPL", d("100.25"), d("10"), common.Buy, now))
	}
	a.OnTrade(common.NewTrade("t", "m", "AAPL", d("100.25"), d("10"), common.Sell, now))

	m, ok := a.GetMetrics("AAPL", "NASDAQ", now)
	require.True(t, ok)
	assert.InDelta(t, 0.8, m.OrderFlowImbalance, 1e-9)
}

func TestAnalyzer_FlowWindow_ExcludesStaleTrades(t *testing.T) {
	b := setupBook(t, "100.00", "50000", "100.50", "50000")
	a := New(0, 0)
	a.RegisterOrderBook("AAPL", "NASDAQ", b)

	now := time.Now()
	stale := now.Add(-10 * time.Second)
	a.OnTrade(common.NewTrade("t", "m", "AAPL", d("100.25"), d("10"), common.Buy, stale))

	m, ok := a.GetMetrics("AAPL", "NASDAQ", now)
	require.True(t, ok)
	assert.True(t, m.RecentBuyVolume.IsZero())
}

func TestRingBuffer_DropsOldestPastCapacity(t *testing.T) {
	rb := newRingBuffer[int](3)
	rb.push(1)
	rb.push(2)
	rb.push(3)
	rb.push(4)
	assert.Equal(t, []int{2, 3, 4}, rb.items)
}
