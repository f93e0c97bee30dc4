package backtest

import (
	"math/rand"

	"github.com/shopspring/decimal"
)

const (
	slippageRandomMean  = 1.0
	slippageRandomSigma = 0.2
	slippageRandomFloor = 0.1
)

// randomSlippageFactor draws the bounded lognormal-like multiplier applied
// to every slippage estimate: centered at 1.0 with a Gaussian spread of
// 0.2, floored at 0.1 so a run of bad draws never flips the sign of the
// adjustment.
func randomSlippageFactor(rng *rand.Rand) float64 {
	factor := slippageRandomMean + rng.NormFloat64()*slippageRandomSigma
	if factor < slippageRandomFloor {
		factor = slippageRandomFloor
	}
	return factor
}

// ComputeSlippage returns the absolute price adjustment for a market order
// under the configured model. volatility is nil when no estimate is
// available, in which case PROPORTIONAL behaves like FIXED.
func ComputeSlippage(model SlippageModel, price decimal.Decimal, slippageBps float64, volatility *float64, rng *rand.Rand) decimal.Decimal {
	bpsFraction := slippageBps / 10000.0
	base := price.Mul(decimal.NewFromFloat(bpsFraction))

	if model == SlippageProportional && volatility != nil {
		base = base.Mul(decimal.NewFromFloat(1 + *volatility))
	}

	return base.Mul(decimal.NewFromFloat(randomSlippageFactor(rng)))
}
