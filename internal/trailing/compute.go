package trailing

import (
	"github.com/shopspring/decimal"

	"tradecore/internal/common"
)

var (
	pct85 = decimal.NewFromFloat(0.85)
	pct70 = decimal.NewFromFloat(0.70)
	pct02 = decimal.NewFromFloat(0.02)
	pct05 = decimal.NewFromFloat(0.05)
)

// updateExtremum advances the highest-since-entry (long) or lowest-since-
// entry (short) watermark given the latest price.
func (s *Stop) updateExtremum(price decimal.Decimal) {
	if s.Side == common.Buy {
		if price.GreaterThan(s.Extremum) {
			s.Extremum = price
		}
		return
	}
	if price.LessThan(s.Extremum) {
		s.Extremum = price
	}
}

// checkActivation latches Active once the configured mode's condition is
// met. Activation is one-way: once active, it stays active.
func (s *Stop) checkActivation(price decimal.Decimal) {
	if s.Active {
		return
	}
	switch s.Config.Mode {
	case Immediate:
		s.Active = true
	case ProfitThreshold:
		if s.profitFraction(price).GreaterThanOrEqual(s.Config.ActivationProfitPct) {
			s.Active = true
		}
	case BreakevenPlus:
		buffer := s.Entry.Mul(s.Config.BreakevenBufferPct)
		if s.Side == common.Buy {
			if price.GreaterThanOrEqual(s.Entry.Add(buffer)) {
				s.Active = true
			}
		} else {
			if price.LessThanOrEqual(s.Entry.Sub(buffer)) {
				s.Active = true
			}
		}
	}
}

// candidateStop computes the unclamped stop price the configured Type
// prescribes for the current extremum and profit.
func (s *Stop) candidateStop(price decimal.Decimal) decimal.Decimal {
	switch s.Config.Type {
	case FixedDistance:
		return fixedDistanceStop(s.Side, s.Extremum, s.Config.DistancePips)
	case StepTrail:
		return stepTrailStop(s.Side, s.Entry, s.profitFraction(price), s.Config.StepInterval, s.Config.StepSize)
	case VolatilityAdjusted:
		return volatilityAdjustedStop(s.Side, s.Extremum, s.profitFraction(price), s.Config.Distance, s.Config.MaxTrailingDistance)
	case ATRBased:
		// No ATR feed is wired; fall back to plain percentage trailing.
		return percentageStop(s.Side, s.Extremum, s.Config.Distance)
	default: // Percentage
		return percentageStop(s.Side, s.Extremum, s.Config.Distance)
	}
}

func fixedDistanceStop(side common.Side, extremum, distancePips decimal.Decimal) decimal.Decimal {
	if side == common.Buy {
		return extremum.Sub(distancePips)
	}
	return extremum.Add(distancePips)
}

func percentageStop(side common.Side, extremum, distance decimal.Decimal) decimal.Decimal {
	one := decimal.NewFromInt(1)
	if side == common.Buy {
		return extremum.Mul(one.Sub(distance))
	}
	return extremum.Mul(one.Add(distance))
}

func stepTrailStop(side common.Side, entry, profitFraction, stepInterval, stepSize decimal.Decimal) decimal.Decimal {
	if stepInterval.Sign() <= 0 {
		return entry
	}
	steps := profitFraction.Div(stepInterval).Floor()
	if steps.Sign() < 0 {
		steps = decimal.Zero
	}
	move := steps.Mul(stepSize).Mul(entry)
	if side == common.Buy {
		return entry.Add(move)
	}
	return entry.Sub(move)
}

// volatilityAdjustedStop shrinks the base trailing distance as profit
// grows, then clamps the result so it never exceeds max_trailing_distance.
func volatilityAdjustedStop(side common.Side, extremum, profitFraction, baseDistance, maxDistance decimal.Decimal) decimal.Decimal {
	distance := baseDistance
	if profitFraction.GreaterThan(pct05) {
		distance = baseDistance.Mul(pct70)
	} else if profitFraction.GreaterThan(pct02) {
		distance = baseDistance.Mul(pct85)
	}
	if maxDistance.Sign() > 0 && distance.GreaterThan(maxDistance) {
		distance = maxDistance
	}
	return percentageStop(side, extremum, distance)
}

// tighten applies the monotonic-tightening invariant: a long stop only
// moves up, a short stop only moves down. The first stop ever computed for
// a record (CurrentStopPrice still zero) is taken as-is.
func (s *Stop) tighten(candidate decimal.Decimal) {
	if s.CurrentStopPrice.IsZero() {
		s.CurrentStopPrice = candidate
		s.AdjustmentCount++
		return
	}
	if s.Side == common.Buy {
		if candidate.GreaterThan(s.CurrentStopPrice) {
			s.CurrentStopPrice = candidate
			s.AdjustmentCount++
		}
		return
	}
	if candidate.LessThan(s.CurrentStopPrice) {
		s.CurrentStopPrice = candidate
		s.AdjustmentCount++
	}
}

// triggered reports whether price has crossed the current stop.
func (s *Stop) triggered(price decimal.Decimal) bool {
	if !s.Active || s.CurrentStopPrice.IsZero() {
		return false
	}
	if s.Side == common.Buy {
		return price.LessThanOrEqual(s.CurrentStopPrice)
	}
	return price.GreaterThanOrEqual(s.CurrentStopPrice)
}

// updateProtectedProfit recomputes protected_profit_pct: the profit the
// current stop locks in, as a fraction of the entry price.
// It only ever increases, tracking the monotonic stop.
func (s *Stop) updateProtectedProfit() {
	if s.Entry.IsZero() || s.CurrentStopPrice.IsZero() {
		return
	}
	var frac decimal.Decimal
	if s.Side == common.Buy {
		frac = s.CurrentStopPrice.Sub(s.Entry).Div(s.Entry)
	} else {
		frac = s.Entry.Sub(s.CurrentStopPrice).Div(s.Entry)
	}
	if frac.GreaterThan(s.ProtectedProfitPct) {
		s.ProtectedProfitPct = frac
	}
}
