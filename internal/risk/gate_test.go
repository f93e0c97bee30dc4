package risk

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradecore/internal/common"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func testInstrument() common.Instrument {
	return common.NewInstrument("AAPL", "NASDAQ", common.Equity, d("0.01"), d("1"), d("1"), d("1000000"))
}

func permissiveLimits() common.RiskLimits {
	return common.RiskLimits{
		MaxPositionSize:     d("10000"),
		MaxOrderSize:        d("5000"),
		MinOrderValue:       d("1"),
		MaxOrderValue:       d("1000000"),
		MaxDailyLoss:        d("50000"),
		MaxDailyVolume:      d("10000000"),
		MaxTradesPerDay:     1000,
		MaxOpenOrders:       100,
		MaxOrdersPerSecond:  50,
		MaxCancelsPerSecond: 50,
		MaxPriceDeviation:   d("0.25"),
		MaxDrawdownFraction: d("0.20"),
		MaxConcentration:    d("0.90"),
	}
}

func newOrder(side common.Side, qty string, limitPrice string) *common.Order {
	o := common.NewOrder(testInstrument(), side, common.Limit, d(qty), common.DAY)
	lp := d(limitPrice)
	o.LimitPrice = &lp
	return o
}

func TestGate_CheckOrder_AdmitsWithinLimits(t *testing.T) {
	g := New(permissiveLimits(), d("100000"))
	order := newOrder(common.Buy, "100", "100.00")
	v := g.CheckOrder(order, d("100.00"))
	assert.Nil(t, v)
}

func TestGate_CheckOrder_HaltedRejectsFirst(t *testing.T) {
	g := New(permissiveLimits(), d("100000"))
	g.trip("manual test halt")

	order := newOrder(common.Buy, "100", "100.00")
	v := g.CheckOrder(order, d("100.00"))
	require.NotNil(t, v)
	assert.Equal(t, common.ViolationHalted, v.Type)
}

func TestGate_CheckOrder_SizeLimit(t *testing.T) {
	limits := permissiveLimits()
	limits.MaxOrderSize = d("10")
	g := New(limits, d("100000"))

	order := newOrder(common.Buy, "100", "100.00")
	v := g.CheckOrder(order, d("100.00"))
	require.NotNil(t, v)
	assert.Equal(t, common.ViolationOrderSize, v.Type)
}

func TestGate_CheckOrder_ValueLimit(t *testing.T) {
	limits := permissiveLimits()
	limits.MaxOrderValue = d("500")
	g := New(limits, d("100000"))

	order := newOrder(common.Buy, "100", "100.00")
	v := g.CheckOrder(order, d("100.00"))
	require.NotNil(t, v)
	assert.Equal(t, common.ViolationOrderValue, v.Type)
}

func TestGate_CheckOrder_PositionLimit(t *testing.T) {
	limits := permissiveLimits()
	limits.MaxPositionSize = d("50")
	g := New(limits, d("100000"))

	order := newOrder(common.Buy, "100", "100.00")
	v := g.CheckOrder(order, d("100.00"))
	require.NotNil(t, v)
	assert.Equal(t, common.ViolationPositionLimit, v.Type)
}

func TestGate_CheckOrder_PriceDeviationTriggersFatFinger(t *testing.T) {
	g := New(permissiveLimits(), d("100000"))
	order := newOrder(common.Buy, "10", "200.00")
	v := g.CheckOrder(order, d("100.00"))
	require.NotNil(t, v)
	assert.Equal(t, common.ViolationFatFinger, v.Type)
}

func TestGate_CheckOrder_InvalidPriceOutOfBand(t *testing.T) {
	limits := permissiveLimits()
	limits.MaxPriceDeviation = d("10") // disable fat-finger so price validity is reached
	g := New(limits, d("100000"))

	order := newOrder(common.Buy, "10", "500.00")
	v := g.CheckOrder(order, d("100.00"))
	require.NotNil(t, v)
	assert.Equal(t, common.ViolationInvalidPrice, v.Type)
}

func TestGate_CheckOrder_SelfTradeRejected(t *testing.T) {
	g := New(permissiveLimits(), d("100000"))

	resting := newOrder(common.Sell, "10", "100.00")
	g.TrackOpenOrder(resting)

	crossing := newOrder(common.Buy, "10", "100.00")
	v := g.CheckOrder(crossing, d("100.00"))
	require.NotNil(t, v)
	assert.Equal(t, common.ViolationSelfTrade, v.Type)
}

func TestGate_OnFill_UpdatesPositionAndVolume(t *testing.T) {
	g := New(permissiveLimits(), d("100000"))
	fill := common.NewFill("order-1", "NASDAQ", d("100.00"), d("10"), common.Buy, common.Taker, d("0.50"), time.Now())

	g.OnFill(fill, "AAPL")

	metrics := g.GetRiskMetrics()
	require.Contains(t, metrics.Positions, "AAPL")
	assert.True(t, metrics.Positions["AAPL"].Quantity.Equal(d("10")))
	assert.True(t, metrics.DailyVolume.Equal(d("1000")))
	assert.Equal(t, 1, metrics.DailyTradeCount)
}

func TestGate_PostTradeMonitor_EmergencyStopTripsBreaker(t *testing.T) {
	limits := permissiveLimits()
	limits.MaxDailyLoss = d("100")
	g := New(limits, d("100000"))

	buy := common.NewFill("order-1", "NASDAQ", d("100.00"), d("10"), common.Buy, common.Taker, decimal.Zero, time.Now())
	g.OnFill(buy, "AAPL")

	sell := common.NewFill("order-2", "NASDAQ", d("85.00"), d("10"), common.Sell, common.Taker, decimal.Zero, time.Now())
	g.OnFill(sell, "AAPL")

	assert.True(t, g.IsHalted())
}

func TestGate_DailyReset_ClearsCountersAndBreaker(t *testing.T) {
	g := New(permissiveLimits(), d("100000"))
	g.trip("test")
	g.dailyVolume = d("500")
	g.dailyTradeCount = 5

	g.DailyReset()

	assert.False(t, g.IsHalted())
	metrics := g.GetRiskMetrics()
	assert.True(t, metrics.DailyVolume.IsZero())
	assert.Equal(t, 0, metrics.DailyTradeCount)
}

func TestGate_ViolationHistory_RecordsRejections(t *testing.T) {
	limits := permissiveLimits()
	limits.MaxOrderSize = d("1")
	g := New(limits, d("100000"))

	order := newOrder(common.Buy, "100", "100.00")
	g.CheckOrder(order, d("100.00"))

	history := g.ViolationHistory()
	require.Len(t, history, 1)
	assert.Equal(t, common.ViolationOrderSize, history[0].Type)
}
