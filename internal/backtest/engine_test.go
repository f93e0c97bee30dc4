package backtest

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradecore/internal/common"
)

func tradeTick(symbol string, ts time.Time, price, size float64, side common.Side) common.TickData {
	return common.TickData{
		TimestampUs: ts.UnixMicro(),
		Symbol:      symbol,
		DataType:    common.TickTrade,
		TradeSide:   side,
		TradePrice:  price,
		TradeSize:   size,
	}
}

// TestBacktest_EndToEndRoundTrip reproduces the documented scenario: a
// market buy at the first print, a market sell at the second, zero
// slippage/impact/fees, expecting a realized P&L of exactly 1000.
func TestBacktest_EndToEndRoundTrip(t *testing.T) {
	open := time.Date(2026, 1, 15, 9, 30, 0, 0, time.UTC)
	noon := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

	cfg := Config{
		InitialCash:   decimal.NewFromInt(1_000_000),
		FeesEnabled:   false,
		SlippageModel: SlippageFixed,
		SlippageBps:   0,
		ImpactModel:   ImpactLinear,
		ImpactCoefficient: 0,
		RandSeed:      1,
	}

	var submittedBuy, submittedSell bool
	var engine *Engine
	engine = New(cfg, Callbacks{
		OnTrade: func(tick common.TickData) {
			if !submittedBuy {
				submittedBuy = true
				order := common.NewOrder(common.Instrument{Symbol: tick.Symbol}, common.Buy, common.Market, decimal.NewFromInt(1000), common.DAY)
				engine.SubmitOrder(order, tick.Symbol, engine.CurrentTime())
				return
			}
			if !submittedSell && tick.TradePrice == 151.00 {
				submittedSell = true
				order := common.NewOrder(common.Instrument{Symbol: tick.Symbol}, common.Sell, common.Market, decimal.NewFromInt(1000), common.DAY)
				engine.SubmitOrder(order, tick.Symbol, engine.CurrentTime())
			}
		},
	})

	ticks := []common.TickData{
		tradeTick("AAPL", open, 150.00, 1000, common.Buy),
		tradeTick("AAPL", noon, 151.00, 1000, common.Buy),
	}

	result := engine.Run(ticks)

	require.Len(t, engine.Portfolio.Trades, 1)
	assert.True(t, engine.Portfolio.Trades[0].PnL.Equal(decimal.NewFromInt(1000)), "got %s", engine.Portfolio.Trades[0].PnL)
	assert.True(t, engine.Portfolio.Cash.Equal(decimal.NewFromInt(1_001_000)), "got %s", engine.Portfolio.Cash)
	assert.Equal(t, 1.0, result.WinRate)
	assert.Equal(t, 1, result.TotalTrades)
}

func TestBacktest_LimitOrderFillsAtLimitPriceNotTickPrice(t *testing.T) {
	ts := time.Date(2026, 1, 15, 9, 30, 0, 0, time.UTC)
	cfg := Config{InitialCash: decimal.NewFromInt(100_000), RandSeed: 1}

	var engine *Engine
	var submitted bool
	limitPrice := decimal.NewFromFloat(99.50)
	engine = New(cfg, Callbacks{
		OnTrade: func(tick common.TickData) {
			if submitted {
				return
			}
			submitted = true
			order := common.NewOrder(common.Instrument{Symbol: tick.Symbol}, common.Buy, common.Limit, decimal.NewFromInt(100), common.DAY)
			order.LimitPrice = &limitPrice
			engine.SubmitOrder(order, tick.Symbol, engine.CurrentTime())
		},
	})

	ticks := []common.TickData{tradeTick("AAPL", ts, 99.00, 500, common.Sell)}
	engine.Run(ticks)

	pos := engine.Portfolio.Position("AAPL")
	assert.True(t, pos.Quantity.Equal(decimal.NewFromInt(100)))
	assert.True(t, pos.AvgEntryPrice.Equal(limitPrice), "expected fill at the limit price, got %s", pos.AvgEntryPrice)
}

func TestBacktest_LimitOrderIneligibleStaysPending(t *testing.T) {
	ts := time.Date(2026, 1, 15, 9, 30, 0, 0, time.UTC)
	cfg := Config{InitialCash: decimal.NewFromInt(100_000), RandSeed: 1}

	var engine *Engine
	limitPrice := decimal.NewFromFloat(95.00)
	engine = New(cfg, Callbacks{
		OnTrade: func(tick common.TickData) {
			order := common.NewOrder(common.Instrument{Symbol: tick.Symbol}, common.Buy, common.Limit, decimal.NewFromInt(100), common.DAY)
			order.LimitPrice = &limitPrice
			engine.SubmitOrder(order, tick.Symbol, engine.CurrentTime())
		},
	})

	ticks := []common.TickData{tradeTick("AAPL", ts, 99.00, 500, common.Sell)}
	engine.Run(ticks)

	assert.Len(t, engine.pending, 1, "buy limit below the market should remain unfilled")
}

func TestBacktest_TicksAreStableSortedByTimestamp(t *testing.T) {
	t1 := time.Date(2026, 1, 15, 9, 30, 0, 0, time.UTC)
	t2 := time.Date(2026, 1, 15, 9, 31, 0, 0, time.UTC)

	var order []float64
	cfg := Config{InitialCash: decimal.Zero, RandSeed: 1}
	engine := New(cfg, Callbacks{
		OnTrade: func(tick common.TickData) { order = append(order, tick.TradePrice) },
	})

	ticks := []common.TickData{
		tradeTick("AAPL", t2, 2, 1, common.Buy),
		tradeTick("AAPL", t1, 1, 1, common.Buy),
	}
	engine.Run(ticks)

	require.Len(t, order, 2)
	assert.Equal(t, []float64{1, 2}, order)
}
