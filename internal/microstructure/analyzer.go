// Package microstructure derives liquidity, flow, and volatility metrics
// from a stream of trades and order-book snapshots, and classifies the
// current market regime from threshold tests over those metrics.
package microstructure

import (
	"math"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"tradecore/internal/book"
	"tradecore/internal/common"
)

const (
	// flowWindow is the lookback for recent buy/sell volume and order
	// flow imbalance.
	flowWindow = 5 * time.Second
	// annualizationFactor approximates 5-second sampling intervals per
	// year; documented in spec as a coarse estimate, not a precise one.
	annualizationFactor = 78000.0
)

// Metrics is a point-in-time snapshot of derived microstructure
// quantities for one (instrument, venue).
type Metrics struct {
	Timestamp time.Time
	Symbol    string

	BidAskSpread       decimal.Decimal
	RelativeSpreadBps  float64
	EffectiveSpreadBps float64

	BidLiquidity decimal.Decimal
	AskLiquidity decimal.Decimal

	OrderBookImbalance decimal.Decimal
	Depth5Bid          decimal.Decimal
	Depth5Ask          decimal.Decimal
	Depth10Bid         decimal.Decimal
	Depth10Ask         decimal.Decimal

	Microprice decimal.Decimal
	MidPrice   decimal.Decimal

	RecentBuyVolume    decimal.Decimal
	RecentSellVolume   decimal.Decimal
	OrderFlowImbalance float64

	RealizedVolatility float64
	Regime             common.Regime
}

type pricePoint struct {
	at    time.Time
	price decimal.Decimal
}

// ringBuffer is a fixed-capacity FIFO; pushing past capacity drops the
// oldest element, matching the Python analyzer's deque(maxlen=...).
type ringBuffer[T any] struct {
	cap   int
	items []T
}

func newRingBuffer[T any](capacity int) *ringBuffer[T] {
	return &ringBuffer[T]{cap: capacity}
}

func (r *ringBuffer[T]) push(v T) {
	r.items = append(r.items, v)
	if len(r.items) > r.cap {
		r.items = r.items[len(r.items)-r.cap:]
	}
}

// Analyzer maintains bounded per-symbol trade and price history and
// computes Metrics on demand from a registered order book.
type Analyzer struct {
	tradeCapacity int
	priceCapacity int

	trades map[string]*ringBuffer[common.Trade]
	prices map[string]*ringBuffer[pricePoint]
	books  map[string]*book.OrderBook
}

// New constructs an Analyzer with the given per-symbol ring buffer
// capacities; defaults of 1000 match the Python original when 0 is passed.
func New(tradeCapacity, priceCapacity int) *Analyzer {
	if tradeCapacity <= 0 {
		tradeCapacity = 1000
	}
	if priceCapacity <= 0 {
		priceCapacity = 1000
	}
	return &Analyzer{
		tradeCapacity: tradeCapacity,
		priceCapacity: priceCapacity,
		trades:        make(map[string]*ringBuffer[common.Trade]),
		prices:        make(map[string]*ringBuffer[pricePoint]),
		books:         make(map[string]*book.OrderBook),
	}
}

func bookKey(symbol, venueID string) string {
	return symbol + "_" + venueID
}

// RegisterOrderBook associates a book with this analyzer so GetMetrics can
// read its state for (symbol, venueID).
func (a *Analyzer) RegisterOrderBook(symbol, venueID string, b *book.OrderBook) {
	a.books[bookKey(symbol, venueID)] = b
	log.Info().Str("symbol", symbol).Str("venue", venueID).Msg("microstructure: order book registered")
}

// OnTrade feeds a trade into the symbol's trade and price history.
func (a *Analyzer) OnTrade(t common.Trade) {
	symbol := t.Instrument
	if a.trades[symbol] == nil {
		a.trades[symbol] = newRingBuffer[common.Trade](a.tradeCapacity)
	}
	if a.prices[symbol] == nil {
		a.prices[symbol] = newRingBuffer[pricePoint](a.priceCapacity)
	}
	a.trades[symbol].push(t)
	a.prices[symbol].push(pricePoint{at: t.Timestamp, price: t.Price})
}

// GetMetrics computes current metrics for (symbol, venueID), or false if
// no book is registered or the book has no two-sided top-of-book yet.
func (a *Analyzer) GetMetrics(symbol, venueID string, now time.Time) (Metrics, bool) {
	b, ok := a.books[bookKey(symbol, venueID)]
	if !ok {
		return Metrics{}, false
	}
	mid, ok := b.MidPrice()
	if !ok {
		return Metrics{}, false
	}

	spread, _ := b.Spread()
	relSpreadBps := 0.0
	if spread.Sign() != 0 {
		relSpreadBps, _ = spread.Div(mid).Mul(decimal.NewFromInt(10000)).Float64()
	}

	bidLiq := b.TotalBidLiquidity()
	askLiq := b.TotalAskLiquidity()

	depth5Bid, _ := b.DepthAtDistance(common.Buy, decimal.NewFromInt(5))
	depth5Ask, _ := b.DepthAtDistance(common.Sell, decimal.NewFromInt(5))
	depth10Bid, _ := b.DepthAtDistance(common.Buy, decimal.NewFromInt(10))
	depth10Ask, _ := b.DepthAtDistance(common.Sell, decimal.NewFromInt(10))

	micro, ok := b.Microprice()
	if !ok {
		micro = mid
	}

	buyVol, sellVol, effSpreadBps := a.flowMetrics(symbol, mid, now)
	totalVol := buyVol.Add(sellVol)
	flowImbalance := 0.0
	if totalVol.Sign() > 0 {
		flowImbalance, _ = buyVol.Sub(sellVol).Div(totalVol).Float64()
	}

	vol := a.realizedVolatility(symbol)

	m := Metrics{
		Timestamp:          now,
		Symbol:             symbol,
		BidAskSpread:       spread,
		RelativeSpreadBps:  relSpreadBps,
		EffectiveSpreadBps: effSpreadBps,
		BidLiquidity:       bidLiq,
		AskLiquidity:       askLiq,
		OrderBookImbalance: b.OrderBookImbalance(),
		Depth5Bid:          depth5Bid,
		Depth5Ask:          depth5Ask,
		Depth10Bid:         depth10Bid,
		Depth10Ask:         depth10Ask,
		Microprice:         micro,
		MidPrice:           mid,
		RecentBuyVolume:    buyVol,
		RecentSellVolume:   sellVol,
		OrderFlowImbalance: flowImbalance,
		RealizedVolatility: vol,
	}
	m.Regime = classifyRegime(m)
	return m, true
}

// flowMetrics computes recent buy/sell volume and effective spread over
// the trailing 5-second flow window.
func (a *Analyzer) flowMetrics(symbol string, mid decimal.Decimal, now time.Time) (buyVol, sellVol decimal.Decimal, effSpreadBps float64) {
	buf := a.trades[symbol]
	if buf == nil {
		return decimal.Zero, decimal.Zero, 0
	}
	cutoff := now.Add(-flowWindow)

	notional := decimal.Zero
	buyVol, sellVol = decimal.Zero, decimal.Zero
	for _, tr := range buf.items {
		if tr.Timestamp.Before(cutoff) {
			continue
		}
		if tr.AggressorSide == common.Buy {
			buyVol = buyVol.Add(tr.Quantity)
		} else {
			sellVol = sellVol.Add(tr.Quantity)
		}
		notional = notional.Add(tr.Price.Mul(tr.Quantity))
	}

	total := buyVol.Add(sellVol)
	if total.Sign() > 0 && mid.Sign() != 0 {
		avgPrice := notional.Div(total)
		bps, _ := avgPrice.Sub(mid).Div(mid).Mul(decimal.NewFromInt(10000)).Float64()
		effSpreadBps = math.Abs(bps)
	}
	return buyVol, sellVol, effSpreadBps
}

// realizedVolatility is the standard deviation of log-returns on the
// stored trade-price series (the prices OnTrade records), annualized by
// sqrt(annualizationFactor). Mid prices are not sampled into this series.
func (a *Analyzer) realizedVolatility(symbol string) float64 {
	buf := a.prices[symbol]
	if buf == nil || len(buf.items) < 2 {
		return 0.0
	}

	var returns []float64
	for i := 1; i < len(buf.items); i++ {
		prev, _ := buf.items[i-1].price.Float64()
		curr, _ := buf.items[i].price.Float64()
		if prev > 0 && curr > 0 {
			returns = append(returns, math.Log(curr/prev))
		}
	}
	if len(returns) == 0 {
		return 0.0
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns))

	return math.Sqrt(variance) * math.Sqrt(annualizationFactor)
}

// classifyRegime runs the threshold cascade in listed order; the first
// match wins.
func classifyRegime(m Metrics) common.Regime {
	tenThousand := decimal.NewFromInt(10000)
	oneThousand := decimal.NewFromInt(1000)

	if m.RelativeSpreadBps < 2.0 && m.Depth5Bid.GreaterThan(tenThousand) && m.Depth5Ask.GreaterThan(tenThousand) {
		return common.RegimeHighLiquidity
	}
	if m.RelativeSpreadBps > 10.0 || m.Depth5Bid.LessThan(oneThousand) {
		return common.RegimeLowLiquidity
	}
	if m.RealizedVolatility > 0.30 {
		return common.RegimeVolatile
	}
	if m.RealizedVolatility < 0.10 {
		return common.RegimeStable
	}
	if math.Abs(m.OrderFlowImbalance) > 0.6 {
		return common.RegimeTrending
	}
	if math.Abs(m.OrderFlowImbalance) < 0.2 {
		return common.RegimeMeanReverting
	}
	return common.RegimeNormal
}
