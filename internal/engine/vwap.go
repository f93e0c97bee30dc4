package engine

import (
	"math"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	tomb "gopkg.in/tomb.v2"

	"tradecore/internal/common"
)

// flatVolumeProfile returns n equal slice weights of 1.0 — the "uniform"
// profile, used only when a caller passes it explicitly; a nil profile
// selects the U-shaped default instead.
func flatVolumeProfile(n int) []float64 {
	weights := make([]float64, n)
	for i := range weights {
		weights[i] = 1.0
	}
	return weights
}

// uShapedVolumeProfile returns n slice weights averaging 1.0, symmetric
// and heavier at the endpoints than the middle of the window — the
// spec's default profile absent historical intraday volume data.
func uShapedVolumeProfile(n int) []float64 {
	weights := make([]float64, n)
	if n == 1 {
		weights[0] = 1.0
		return weights
	}
	sum := 0.0
	mid := float64(n-1) / 2
	for i := 0; i < n; i++ {
		d := (float64(i) - mid) / mid
		w := 0.4 + 0.6*d*d
		weights[i] = w
		sum += w
	}
	mean := sum / float64(n)
	for i := range weights {
		weights[i] /= mean
	}
	return weights
}

// vwapSliceCount is N = max(10, ceil(duration_seconds/60)).
func vwapSliceCount(start, end time.Time) int {
	seconds := end.Sub(start).Seconds()
	n := int(math.Ceil(seconds / 60))
	if n < 10 {
		n = 10
	}
	return n
}

// vwapSliceTarget computes one slice's target quantity: the quantity not
// yet allocated to any slice, scaled by profile_weight*(1+urgency), then
// clamped to [min_fill_ratio, max_fill_ratio] of that unallocated amount.
// profileWeight averages 1.0 across a full schedule, so a flat profile at
// urgency 0 raw-targets the entire remainder before the ratio clamp bites.
func vwapSliceTarget(unallocated decimal.Decimal, profileWeight, urgency, minRatio, maxRatio float64) decimal.Decimal {
	if unallocated.Sign() <= 0 {
		return decimal.Zero
	}
	raw := unallocated.Mul(decimal.NewFromFloat(profileWeight * (1 + urgency)))
	lower := unallocated.Mul(decimal.NewFromFloat(minRatio))
	upper := unallocated.Mul(decimal.NewFromFloat(maxRatio))
	if raw.LessThan(lower) {
		raw = lower
	}
	if raw.GreaterThan(upper) {
		raw = upper
	}
	return raw
}

// vwapSlicePrice picks a limit price on the instrument's cross side,
// skewed from passive (at the best quote) toward aggressive (crossing the
// spread) by urgency, then clamps to priceLimit as a worst-case cap.
func vwapSlicePrice(side common.Side, bestBid, bestAsk decimal.Decimal, urgency float64, priceLimit *decimal.Decimal) decimal.Decimal {
	u := decimal.NewFromFloat(urgency)
	var price decimal.Decimal
	if side == common.Buy {
		// Passive at best bid (urgency 0) to crossing the ask (urgency 1).
		price = bestBid.Add(bestAsk.Sub(bestBid).Mul(u))
		if priceLimit != nil && price.GreaterThan(*priceLimit) {
			price = *priceLimit
		}
	} else {
		price = bestAsk.Sub(bestAsk.Sub(bestBid).Mul(u))
		if priceLimit != nil && price.LessThan(*priceLimit) {
			price = *priceLimit
		}
	}
	return price
}

// VWAPAlgo drives a parent order through the volume-weighted slicing
// schedule described by Params, submitting LIMIT children through
// Submitter and sleeping between slice start times. Profile, if nil,
// defaults to the U-shaped curve; pass flatVolumeProfile(n) explicitly
// for a uniform schedule.
type VWAPAlgo struct {
	Parent    *common.Order
	Params    VWAPParams
	Profile   []float64
	Submitter ChildSubmitter
	Quotes    func() (bestBid, bestAsk decimal.Decimal)

	unallocated decimal.Decimal
}

// Run executes the full slicing schedule until the tomb dies or the
// parent is complete. It never blocks the caller's tick loop: all
// waiting happens inside this goroutine, started by the engine with
// t.Go(algo.Run).
func (a *VWAPAlgo) Run(t *tomb.Tomb) error {
	n := vwapSliceCount(a.Params.StartTime, a.Params.EndTime)
	weights := a.Profile
	if weights == nil {
		weights = uShapedVolumeProfile(n)
	}
	sliceDuration := a.Params.EndTime.Sub(a.Params.StartTime) / time.Duration(n)
	a.unallocated = a.Parent.Quantity

	for i := 0; i < n && i < len(weights); i++ {
		select {
		case <-t.Dying():
			return nil
		default:
		}

		if a.Parent.IsComplete() {
			return nil
		}

		sliceStart := a.Params.StartTime.Add(time.Duration(i) * sliceDuration)
		if wait := time.Until(sliceStart); wait > 0 {
			select {
			case <-time.After(wait):
			case <-t.Dying():
				return nil
			}
		}

		if a.unallocated.Sign() <= 0 {
			return nil
		}

		target := vwapSliceTarget(a.unallocated, weights[i], a.Params.Urgency, a.Params.MinFillRatio, a.Params.MaxFillRatio)
		if target.Sign() <= 0 {
			continue
		}
		a.unallocated = a.unallocated.Sub(target)

		bestBid, bestAsk := a.Quotes()
		price := vwapSlicePrice(a.Parent.Side, bestBid, bestAsk, a.Params.Urgency, a.Params.PriceLimit)

		child := common.NewOrder(a.Parent.Instrument, a.Parent.Side, common.Limit, target, common.DAY)
		child.LimitPrice = &price
		if err := a.Submitter.SubmitChild(child); err != nil {
			log.Warn().Err(err).Str("parent_id", a.Parent.OrderID).Msg("engine: vwap child rejected")
		}
	}

	if a.Parent.IsComplete() {
		return nil
	}
	remaining := a.Parent.RemainingQuantity()
	if a.Params.Urgency > 0.7 && remaining.Sign() > 0 {
		sweep := common.NewOrder(a.Parent.Instrument, a.Parent.Side, common.Market, remaining, common.IOC)
		if err := a.Submitter.SubmitChild(sweep); err != nil {
			log.Warn().Err(err).Str("parent_id", a.Parent.OrderID).Msg("engine: vwap sweep rejected")
		}
	}
	return nil
}
