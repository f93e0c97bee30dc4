package trailing

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

func TestStop_PercentageLongTaperAndTrigger(t *testing.T) {
	now := time.Unix(0, 0)
	cfg := Config{Type: Percentage, Mode: Immediate, Distance: d("0.02")}
	s := NewStop("AAPL", common.Buy, d("100"), d("100.00"), cfg, now)

	prices := []string{"100", "102", "101", "104", "103", "97"}
	wantStops := []string{"98.00", "99.96", "99.96", "101.92", "101.92", "101.92"}

	var lastPrice decimal.Decimal
	for i, p := range prices {
		price := d(p)
		lastPrice = price
		s.updateExtremum(price)
		s.checkActivation(price)
		if s.Active {
			s.tighten(s.candidateStop(price))
		}
		assert.True(t, s.CurrentStopPrice.Equal(d(wantStops[i])), "tick %d: got %s want %s", i, s.CurrentStopPrice, wantStops[i])
	}

	assert.True(t, s.triggered(lastPrice), "expected final price to trigger the stop")
}

func TestStop_MonotonicTighteningNeverLoosens(t *testing.T) {
	now := time.Unix(0, 0)
	cfg := Config{Type: Percentage, Mode: Immediate, Distance: d("0.05")}
	s := NewStop("AAPL", common.Buy, d("10"), d("100"), cfg, now)

	s.updateExtremum(d("120"))
	s.checkActivation(d("120"))
	s.tighten(s.candidateStop(d("120")))
	highStop := s.CurrentStopPrice

	// Extremum does not retreat on a pullback, so the candidate stop can
	// only be lower or equal, and tighten() must refuse to apply it.
	s.updateExtremum(d("90"))
	s.checkActivation(d("90"))
	s.tighten(s.candidateStop(d("90")))
	assert.True(t, s.CurrentStopPrice.Equal(highStop))
}

func TestStop_ShortSidePercentage(t *testing.T) {
	now := time.Unix(0, 0)
	cfg := Config{Type: Percentage, Mode: Immediate, Distance: d("0.02")}
	s := NewStop("AAPL", common.Sell, d("10"), d("100"), cfg, now)

	s.updateExtremum(d("100"))
	s.checkActivation(d("100"))
	s.tighten(s.candidateStop(d("100")))
	assert.True(t, s.CurrentStopPrice.Equal(d("102.00")), "got %s", s.CurrentStopPrice)

	s.updateExtremum(d("95"))
	s.checkActivation(d("95"))
	s.tighten(s.candidateStop(d("95")))
	assert.True(t, s.CurrentStopPrice.Equal(d("96.90")), "got %s", s.CurrentStopPrice)
}

func TestStop_ProfitThresholdActivation(t *testing.T) {
	now := time.Unix(0, 0)
	cfg := Config{Type: Percentage, Mode: ProfitThreshold, Distance: d("0.02"), ActivationProfitPct: d("0.03")}
	s := NewStop("AAPL", common.Buy, d("10"), d("100"), cfg, now)

	s.updateExtremum(d("101"))
	s.checkActivation(d("101"))
	assert.False(t, s.Active, "1%% profit should not meet a 3%% activation threshold")

	s.updateExtremum(d("104"))
	s.checkActivation(d("104"))
	assert.True(t, s.Active)
}

func TestStop_BreakevenPlusActivation(t *testing.T) {
	now := time.Unix(0, 0)
	cfg := Config{Type: FixedDistance, Mode: BreakevenPlus, DistancePips: d("1.0"), BreakevenBufferPct: d("0.01")}
	s := NewStop("AAPL", common.Buy, d("10"), d("100"), cfg, now)

	s.checkActivation(d("100.50"))
	assert.False(t, s.Active)

	s.checkActivation(d("101.01"))
	assert.True(t, s.Active)
}

func TestStop_StepTrail(t *testing.T) {
	now := time.Unix(0, 0)
	cfg := Config{Type: StepTrail, Mode: Immediate, StepInterval: d("0.01"), StepSize: d("0.005")}
	s := NewStop("AAPL", common.Buy, d("10"), d("100"), cfg, now)

	// 2.5% profit -> floor(0.025/0.01) = 2 steps -> entry + 2*0.005*100 = 101
	price := d("102.5")
	s.updateExtremum(price)
	s.checkActivation(price)
	s.tighten(s.candidateStop(price))
	assert.True(t, s.CurrentStopPrice.Equal(d("101")), "got %s", s.CurrentStopPrice)
}

func TestStop_VolatilityAdjustedShrinksWithProfit(t *testing.T) {
	now := time.Unix(0, 0)
	cfg := Config{Type: VolatilityAdjusted, Mode: Immediate, Distance: d("0.02"), MaxTrailingDistance: d("0.02")}
	s := NewStop("AAPL", common.Buy, d("10"), d("100"), cfg, now)

	// 6% profit -> distance shrinks to 0.02*0.70 = 0.014
	price := d("106")
	s.updateExtremum(price)
	s.checkActivation(price)
	candidate := s.candidateStop(price)
	assert.True(t, candidate.Equal(d("106").Mul(d("1").Sub(d("0.014")))), "got %s", candidate)
}

func TestStop_ATRBasedFallsBackToPercentage(t *testing.T) {
	now := time.Unix(0, 0)
	cfg := Config{Type: ATRBased, Mode: Immediate, Distance: d("0.02")}
	atr := NewStop("AAPL", common.Buy, d("10"), d("100"), cfg, now)
	pct := NewStop("AAPL", common.Buy, d("10"), d("100"), Config{Type: Percentage, Mode: Immediate, Distance: d("0.02")}, now)

	price := d("110")
	atr.updateExtremum(price)
	pct.updateExtremum(price)
	assert.True(t, atr.candidateStop(price).Equal(pct.candidateStop(price)))
}

func TestManager_RepriceTriggersCloseAndRemovesRecord(t *testing.T) {
	price := d("97")
	prices := func(symbol string) (decimal.Decimal, bool) {
		if symbol == "AAPL" {
			return price, true
		}
		return decimal.Zero, false
	}

	var closed []CloseRequest
	m := NewManager(prices, func(req CloseRequest) { closed = append(closed, req) }, time.Second)
	cfg := Config{Type: Percentage, Mode: Immediate, Distance: d("0.02")}
	m.Attach("AAPL", common.Buy, d("50"), d("100"), cfg, time.Unix(0, 0))

	// First cycle establishes the stop at 100*0.98=98.00; price 97 already
	// below it, so this same cycle should trigger.
	closes := m.Reprice(time.Unix(1, 0))
	require.Len(t, closes, 1)
	assert.Equal(t, "AAPL", closes[0].Symbol)
	assert.Equal(t, common.Sell, closes[0].Side)
	assert.True(t, closes[0].Quantity.Equal(d("50")))

	_, ok := m.Get("AAPL")
	assert.False(t, ok, "triggered stop should be removed")
	assert.Len(t, closed, 1)
}

func TestManager_RepriceSkipsSymbolWithoutPrice(t *testing.T) {
	prices := func(symbol string) (decimal.Decimal, bool) { return decimal.Zero, false }
	m := NewManager(prices, nil, time.Second)
	m.Attach("AAPL", common.Buy, d("50"), d("100"), Config{Type: Percentage, Distance: d("0.02")}, time.Unix(0, 0))

	closes := m.Reprice(time.Unix(1, 0))
	assert.Empty(t, closes)
	_, ok := m.Get("AAPL")
	assert.True(t, ok)
}

func TestManager_ProtectedProfitNeverDecreases(t *testing.T) {
	seq := []string{"100", "110", "105"}
	idx := 0
	prices := func(symbol string) (decimal.Decimal, bool) { return d(seq[idx]), true }

	m := NewManager(prices, func(CloseRequest) {}, time.Second)
	m.Attach("AAPL", common.Buy, d("10"), d("100"), Config{Type: Percentage, Mode: Immediate, Distance: d("0.05")}, time.Unix(0, 0))

	m.Reprice(time.Unix(1, 0))
	s1, _ := m.Get("AAPL")

	idx = 1
	m.Reprice(time.Unix(2, 0))
	s2, _ := m.Get("AAPL")
	assert.True(t, s2.ProtectedProfitPct.GreaterThanOrEqual(s1.ProtectedProfitPct))

	idx = 2
	m.Reprice(time.Unix(3, 0))
	s3, _ := m.Get("AAPL")
	assert.True(t, s3.ProtectedProfitPct.GreaterThanOrEqual(s2.ProtectedProfitPct))
}
