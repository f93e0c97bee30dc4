package backtest

import (
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestComputeSlippage_ZeroBpsIsZero(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	price := decimal.NewFromInt(100)
	s := ComputeSlippage(SlippageFixed, price, 0, nil, rng)
	assert.True(t, s.IsZero(), "got %s", s)
}

func TestComputeSlippage_ProportionalScalesWithVolatility(t *testing.T) {
	rng1 := rand.New(rand.NewSource(42))
	rng2 := rand.New(rand.NewSource(42))
	price := decimal.NewFromInt(100)
	vol := 0.5

	base := ComputeSlippage(SlippageFixed, price, 10, nil, rng1)
	scaled := ComputeSlippage(SlippageProportional, price, 10, &vol, rng2)
	// Same seed draws the same random factor, so scaled should be exactly
	// (1+vol) times base.
	expected := base.Mul(decimal.NewFromFloat(1.5))
	assert.True(t, scaled.Sub(expected).Abs().LessThan(decimal.NewFromFloat(1e-9)), "got %s want %s", scaled, expected)
}

func TestComputeImpact_ZeroDailyVolumeIsZero(t *testing.T) {
	impact := ComputeImpact(ImpactLinear, 1.0, decimal.NewFromInt(100), decimal.Zero, decimal.NewFromInt(100))
	assert.True(t, impact.IsZero())
}

func TestComputeImpact_LinearScalesWithParticipation(t *testing.T) {
	impact := ComputeImpact(ImpactLinear, 0.1, decimal.NewFromInt(100), decimal.NewFromInt(1000), decimal.NewFromInt(50))
	// participation = 0.1, impact = 0.1*0.1*50 = 0.5
	assert.True(t, impact.Equal(decimal.NewFromFloat(0.5)), "got %s", impact)
}

func TestComputeImpact_PermanentIsHalfLinear(t *testing.T) {
	linear := ComputeImpact(ImpactLinear, 0.2, decimal.NewFromInt(100), decimal.NewFromInt(1000), decimal.NewFromInt(50))
	permanent := ComputeImpact(ImpactPermanent, 0.2, decimal.NewFromInt(100), decimal.NewFromInt(1000), decimal.NewFromInt(50))
	assert.True(t, permanent.Equal(linear.Div(decimal.NewFromInt(2))), "got %s vs %s", permanent, linear)
}

func TestSharpeRatio_ZeroStdDevIsZero(t *testing.T) {
	flat := []float64{0.01, 0.01, 0.01, 0.01}
	assert.Equal(t, 0.0, sharpeRatio(flat))
}

func TestMaxDrawdown_PeakToTrough(t *testing.T) {
	curve := []EquityPoint{
		{Timestamp: time.Unix(0, 0), Equity: decimal.NewFromInt(100)},
		{Timestamp: time.Unix(1, 0), Equity: decimal.NewFromInt(120)},
		{Timestamp: time.Unix(2, 0), Equity: decimal.NewFromInt(90)},
		{Timestamp: time.Unix(3, 0), Equity: decimal.NewFromInt(110)},
	}
	dd := maxDrawdown(curve)
	assert.InDelta(t, 0.25, dd, 1e-9) // (120-90)/120
}

func TestBuildResult_WinRateAndProfitFactor(t *testing.T) {
	trades := []ClosedTrade{
		{Symbol: "AAPL", PnL: decimal.NewFromInt(100)},
		{Symbol: "AAPL", PnL: decimal.NewFromInt(-50)},
		{Symbol: "AAPL", PnL: decimal.NewFromInt(200)},
	}
	curve := []EquityPoint{
		{Timestamp: time.Unix(0, 0), Equity: decimal.NewFromInt(1000)},
		{Timestamp: time.Unix(1, 0), Equity: decimal.NewFromInt(1250)},
	}
	result := BuildResult(curve, trades, decimal.NewFromInt(10000), decimal.Zero, nil, nil)

	assert.InDelta(t, 2.0/3.0, result.WinRate, 1e-9)
	assert.True(t, result.AvgWin.Equal(decimal.NewFromInt(150)), "got %s", result.AvgWin)
	assert.True(t, result.AvgLoss.Equal(decimal.NewFromInt(-50)), "got %s", result.AvgLoss)
	assert.InDelta(t, 6.0, result.ProfitFactor, 1e-9) // 300/50
}
