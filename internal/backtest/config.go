// Package backtest replays a recorded tick stream through a simulated
// matching model: it maintains an order-book view from quote ticks (and,
// optionally, trade prints), fills pending orders against each trade
// tick's printed price and size with configurable slippage and
// market-impact, and accumulates an equity curve and summary metrics.
package backtest

import (
	"time"

	"github.com/shopspring/decimal"
)

// ImpactModel selects the market-impact formula applied to market orders.
type ImpactModel int

const (
	ImpactLinear ImpactModel = iota
	ImpactSqrt
	ImpactPermanent
)

// SlippageModel selects the slippage formula applied to market orders.
type SlippageModel int

const (
	SlippageFixed SlippageModel = iota
	SlippageProportional
)

// Config parameterizes one backtest run. Non-goals from the surrounding
// platform (no HTTP dashboard, no live venue connectivity) keep this to a
// pure simulation configuration.
type Config struct {
	Start, End  time.Time
	InitialCash decimal.Decimal
	Instruments []string
	Venues      []string

	FeesEnabled bool
	TakerFeeBps decimal.Decimal
	MakerFeeBps decimal.Decimal

	ImpactModel       ImpactModel
	ImpactCoefficient float64

	SlippageModel SlippageModel
	SlippageBps   float64

	OrderLatency      time.Duration
	MarketDataLatency time.Duration

	PartialFillProbability float64
	MaxBookDepth            int

	// DeriveBookFromTrades enables the crude book-from-trade-prints
	// approximation: an aggressive buy shrinks the ask top, an aggressive
	// sell shrinks the bid top. When false, trade prints leave the book
	// view untouched and it changes only on quote ticks; order-book
	// snapshot ticks do not update it either way.
	DeriveBookFromTrades bool

	// RandSeed seeds the slippage random factor for deterministic runs;
	// the same seed and tick input reproduce a bit-identical equity curve.
	RandSeed int64
}
