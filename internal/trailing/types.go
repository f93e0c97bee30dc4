// Package trailing computes and maintains per-position trailing stops: the
// stop price tightens as the market moves favorably and never loosens,
// triggering a market close order when price crosses it.
package trailing

import (
	"time"

	"github.com/shopspring/decimal"

	"tradecore/internal/common"
)

// Type selects the formula used to compute a candidate stop price from the
// position's extremum-since-entry.
type Type int

const (
	FixedDistance Type = iota
	Percentage
	StepTrail
	VolatilityAdjusted
	ATRBased
)

func (t Type) String() string {
	switch t {
	case FixedDistance:
		return "FIXED_DISTANCE"
	case Percentage:
		return "PERCENTAGE"
	case StepTrail:
		return "STEP_TRAIL"
	case VolatilityAdjusted:
		return "VOLATILITY_ADJUSTED"
	case ATRBased:
		return "ATR_BASED"
	default:
		return "UNKNOWN"
	}
}

// Mode selects when a stop becomes eligible to trigger.
type Mode int

const (
	Immediate Mode = iota
	ProfitThreshold
	BreakevenPlus
)

func (m Mode) String() string {
	switch m {
	case Immediate:
		return "IMMEDIATE"
	case ProfitThreshold:
		return "PROFIT_THRESHOLD"
	case BreakevenPlus:
		return "BREAKEVEN_PLUS"
	default:
		return "UNKNOWN"
	}
}

// Config parameterizes one TrailingStop's behavior. Fields not relevant to
// the selected Type/Mode are ignored.
type Config struct {
	Type Type
	Mode Mode

	DistancePips        decimal.Decimal // FIXED_DISTANCE
	Distance            decimal.Decimal // PERCENTAGE / ATR_BASED fallback, fraction e.g. 0.02
	StepInterval        decimal.Decimal // STEP_TRAIL, profit fraction per step
	StepSize            decimal.Decimal // STEP_TRAIL, stop movement fraction of entry per step
	MaxTrailingDistance decimal.Decimal // VOLATILITY_ADJUSTED clamp, fraction

	ActivationProfitPct decimal.Decimal // PROFIT_THRESHOLD
	BreakevenBufferPct  decimal.Decimal // BREAKEVEN_PLUS
}

// Stop binds a trailing-stop record to a position. It is owned exclusively
// by Manager: callers observe it through Manager's accessors, never mutate
// it directly.
type Stop struct {
	Symbol   string
	Side     common.Side
	Quantity decimal.Decimal
	Entry    decimal.Decimal
	Config   Config

	Extremum           decimal.Decimal
	CurrentStopPrice   decimal.Decimal
	Active             bool
	AdjustmentCount    int
	ProtectedProfitPct decimal.Decimal

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewStop creates a TrailingStop record at position entry. The extremum
// starts at entry and the stop price is left zero until the first tick
// establishes it.
func NewStop(symbol string, side common.Side, qty, entry decimal.Decimal, cfg Config, now time.Time) *Stop {
	return &Stop{
		Symbol:    symbol,
		Side:      side,
		Quantity:  qty,
		Entry:     entry,
		Config:    cfg,
		Extremum:  entry,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// profitFraction is the unrealized profit as a fraction of entry price,
// positive regardless of side.
func (s *Stop) profitFraction(price decimal.Decimal) decimal.Decimal {
	if s.Entry.IsZero() {
		return decimal.Zero
	}
	if s.Side == common.Buy {
		return price.Sub(s.Entry).Div(s.Entry)
	}
	return s.Entry.Sub(price).Div(s.Entry)
}
