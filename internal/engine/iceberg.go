package engine

import (
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	tomb "gopkg.in/tomb.v2"

	"tradecore/internal/common"
)

// icebergDisplaySize computes one slice's displayed quantity: the
// configured display size jittered by U(1-variance, 1+variance), clamped
// to [min_display, min(max_display, remaining)].
func icebergDisplaySize(display decimal.Decimal, variance float64, minDisplay, maxDisplay *decimal.Decimal, remaining decimal.Decimal, rng *rand.Rand) decimal.Decimal {
	jitter := 1 - variance + rng.Float64()*(2*variance)
	size := display.Mul(decimal.NewFromFloat(jitter))

	upper := remaining
	if maxDisplay != nil && maxDisplay.LessThan(upper) {
		upper = *maxDisplay
	}
	if size.GreaterThan(upper) {
		size = upper
	}
	if minDisplay != nil && size.LessThan(*minDisplay) {
		size = *minDisplay
	}
	if size.GreaterThan(remaining) {
		size = remaining
	}
	return size
}

// IcebergAlgo drives a parent order through successive displayed slices,
// each resting at the same-side best price until it fills or the
// per-slice timeout elapses, at which point it is canceled and replaced.
type IcebergAlgo struct {
	Parent    *common.Order
	Params    IcebergParams
	Submitter ChildSubmitter
	Canceler  func(child *common.Order) error
	BestPrice func(side common.Side) decimal.Decimal
	Rand      *rand.Rand

	// WaitForFill blocks until child is complete, the timeout elapses, or
	// the tomb dies, returning which happened. Supplied by the engine so
	// tests can fake fill delivery deterministically.
	WaitForFill func(t *tomb.Tomb, child *common.Order, timeout time.Duration) (filled bool)
}

// Run loops while the parent has remaining quantity, submitting one
// displayed slice at a time.
func (a *IcebergAlgo) Run(t *tomb.Tomb) error {
	rng := a.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	timeout := a.Params.SliceTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	for !a.Parent.IsComplete() {
		select {
		case <-t.Dying():
			return nil
		default:
		}

		remaining := a.Parent.RemainingQuantity()
		if remaining.Sign() <= 0 {
			return nil
		}

		size := icebergDisplaySize(a.Params.DisplayQuantity, a.Params.Variance, a.Params.MinDisplay, a.Params.MaxDisplay, remaining, rng)
		if size.Sign() <= 0 {
			return nil
		}

		price := a.BestPrice(a.Parent.Side)
		child := common.NewOrder(a.Parent.Instrument, a.Parent.Side, common.Limit, size, common.DAY)
		child.LimitPrice = &price

		if err := a.Submitter.SubmitChild(child); err != nil {
			log.Warn().Err(err).Str("parent_id", a.Parent.OrderID).Msg("engine: iceberg slice rejected")
			return nil
		}

		filled := a.WaitForFill(t, child, timeout)
		if !filled && !child.IsComplete() {
			if err := a.Canceler(child); err != nil {
				log.Warn().Err(err).Str("child_id", child.OrderID).Msg("engine: iceberg slice cancel failed")
			}
		}
	}
	return nil
}
