package backtest

import (
	"math"

	"github.com/shopspring/decimal"
)

// ComputeImpact returns the absolute price adjustment a market order of
// qty incurs against dailyVolume under the configured model. A zero or
// negative dailyVolume yields zero impact (no participation to speak of).
func ComputeImpact(model ImpactModel, coefficient float64, qty, dailyVolume, price decimal.Decimal) decimal.Decimal {
	if dailyVolume.Sign() <= 0 {
		return decimal.Zero
	}
	participation := qty.Div(dailyVolume)
	coef := decimal.NewFromFloat(coefficient)

	switch model {
	case ImpactSqrt:
		p, _ := participation.Float64()
		return price.Mul(decimal.NewFromFloat(coefficient * math.Sqrt(p)))
	case ImpactPermanent:
		return price.Mul(coef).Mul(participation).Mul(decimal.NewFromFloat(0.5))
	default: // ImpactLinear
		return price.Mul(coef).Mul(participation)
	}
}
