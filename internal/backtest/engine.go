package backtest

import (
	"math/rand"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"tradecore/internal/book"
	"tradecore/internal/common"
)

// Callbacks lets a strategy observe the replay as it happens. Any unset
// field is simply not invoked.
type Callbacks struct {
	OnOrderBookUpdate func(common.OrderBookSnapshot)
	OnTrade           func(common.TickData)
	OnQuote           func(common.TickData)
	OnFill            func(common.Fill)
}

// Engine drives one backtest run over a tick stream.
type Engine struct {
	cfg       Config
	Portfolio *Portfolio
	callbacks Callbacks

	books       map[string]*book.OrderBook
	dailyVolume map[string]decimal.Decimal
	volumeDay   map[string]string

	pending []*pendingOrder
	rng     *rand.Rand

	equityCurve        []EquityPoint
	slippageBpsSamples []float64
	impactBpsSamples   []float64

	currentTime time.Time

	metrics *Metrics
}

// New constructs an Engine for one run of cfg.
func New(cfg Config, callbacks Callbacks) *Engine {
	return &Engine{
		cfg:         cfg,
		Portfolio:   NewPortfolio(cfg.InitialCash),
		callbacks:   callbacks,
		books:       make(map[string]*book.OrderBook),
		dailyVolume: make(map[string]decimal.Decimal),
		volumeDay:   make(map[string]string),
		rng:         rand.New(rand.NewSource(cfg.RandSeed)),
		metrics:     newMetrics(),
	}
}

// Registerer exposes the Engine's Prometheus collectors for registration
// into a caller-owned registry, mirroring internal/risk.Gate.Registerer.
func (e *Engine) Registerer() []prometheus.Collector {
	return e.metrics.collectors()
}

func (e *Engine) bookFor(symbol string) *book.OrderBook {
	b, ok := e.books[symbol]
	if !ok {
		b = book.New(symbol, "backtest")
		e.books[symbol] = b
	}
	return b
}

// CurrentTime is the timestamp of the tick currently being processed.
func (e *Engine) CurrentTime() time.Time { return e.currentTime }

// SubmitOrder enqueues order for execution once order_latency has elapsed
// from now. Typically called from inside an OnTrade/OnQuote callback so
// the order becomes pending as of the tick that triggered the strategy.
func (e *Engine) SubmitOrder(order *common.Order, symbol string, now time.Time) {
	_ = order.Submit(now)
	e.pending = append(e.pending, &pendingOrder{
		order:       order,
		symbol:      symbol,
		submittedAt: now,
		eligibleAt:  now.Add(e.cfg.OrderLatency),
	})
}

// Run replays ticks (stable-sorted by timestamp) through the event loop
// and returns the summary Result.
func (e *Engine) Run(ticks []common.TickData) Result {
	sort.SliceStable(ticks, func(i, j int) bool {
		return ticks[i].TimestampUs < ticks[j].TimestampUs
	})

	for _, tick := range ticks {
		e.currentTime = time.UnixMicro(tick.TimestampUs)
		e.applyTick(tick)
		e.sweepPending(tick)
		e.recordEquity()
	}

	return BuildResult(e.equityCurve, e.Portfolio.Trades, e.Portfolio.TotalVolume, e.Portfolio.TotalFees, e.slippageBpsSamples, e.impactBpsSamples)
}

func dayKey(t time.Time) string {
	return t.UTC().Format("20060102")
}

// applyTick updates the maintained order-book view (for callbacks and
// microstructure consumers) and fires the strategy callback for the tick.
// Fill simulation is handled separately by sweepPending against the tick
// itself, not this derived book.
func (e *Engine) applyTick(tick common.TickData) {
	b := e.bookFor(tick.Symbol)

	switch tick.DataType {
	case common.TickQuote:
		e.applyQuote(b, tick)
		if e.callbacks.OnQuote != nil {
			e.callbacks.OnQuote(tick)
		}
	case common.TickTrade:
		if e.cfg.DeriveBookFromTrades {
			e.deriveBookFromTrade(b, tick)
		}
		e.accrueVolume(tick)
		if e.callbacks.OnTrade != nil {
			e.callbacks.OnTrade(tick)
		}
	case common.TickOrderBook:
		// Explicit book ticks are not modeled beyond quotes in this
		// replay; the tick store's snapshot format is consumed upstream
		// by strategies that need full-depth state.
	}

	if e.callbacks.OnOrderBookUpdate != nil {
		if _, ok := b.BestBid(); ok {
			e.callbacks.OnOrderBookUpdate(b.Snapshot(tick.TimestampUs))
		} else if _, ok := b.BestAsk(); ok {
			e.callbacks.OnOrderBookUpdate(b.Snapshot(tick.TimestampUs))
		}
	}
}

func (e *Engine) applyQuote(b *book.OrderBook, tick common.TickData) {
	seq := b.SequenceNumber() + 1
	if tick.BidSize > 0 {
		_ = b.ApplyUpdate(common.Buy, decimal.NewFromFloat(tick.BidPrice), decimal.NewFromFloat(tick.BidSize), 1, common.Update, seq)
		seq++
	}
	if tick.AskSize > 0 {
		_ = b.ApplyUpdate(common.Sell, decimal.NewFromFloat(tick.AskPrice), decimal.NewFromFloat(tick.AskSize), 1, common.Update, seq)
	}
}

// deriveBookFromTrade implements the documented approximation: an
// aggressive buy shrinks the ask top, an aggressive sell shrinks the bid
// top. This view feeds on_orderbook_update and microstructure consumers;
// fill simulation below reads the triggering tick directly instead.
func (e *Engine) deriveBookFromTrade(b *book.OrderBook, tick common.TickData) {
	tradeSize := decimal.NewFromFloat(tick.TradeSize)
	seq := b.SequenceNumber() + 1

	if tick.TradeSide == common.Buy {
		ask, ok := b.BestAsk()
		if !ok {
			_ = b.ApplyUpdate(common.Sell, decimal.NewFromFloat(tick.TradePrice), tradeSize, 1, common.Update, seq)
			return
		}
		remaining := ask.Size.Sub(tradeSize)
		if remaining.Sign() <= 0 {
			_ = b.ApplyUpdate(common.Sell, ask.Price, decimal.Zero, 0, common.Delete, seq)
		} else {
			_ = b.ApplyUpdate(common.Sell, ask.Price, remaining, ask.OrderCount, common.Update, seq)
		}
		return
	}

	bid, ok := b.BestBid()
	if !ok {
		_ = b.ApplyUpdate(common.Buy, decimal.NewFromFloat(tick.TradePrice), tradeSize, 1, common.Update, seq)
		return
	}
	remaining := bid.Size.Sub(tradeSize)
	if remaining.Sign() <= 0 {
		_ = b.ApplyUpdate(common.Buy, bid.Price, decimal.Zero, 0, common.Delete, seq)
	} else {
		_ = b.ApplyUpdate(common.Buy, bid.Price, remaining, bid.OrderCount, common.Update, seq)
	}
}

func (e *Engine) accrueVolume(tick common.TickData) {
	today := dayKey(e.currentTime)
	if e.volumeDay[tick.Symbol] != today {
		e.volumeDay[tick.Symbol] = today
		e.dailyVolume[tick.Symbol] = decimal.Zero
	}
	e.dailyVolume[tick.Symbol] = e.dailyVolume[tick.Symbol].Add(decimal.NewFromFloat(tick.TradeSize))
}

// sweepPending attempts execution for every eligible order against the
// tick currently being processed: the tick's printed price and quantity
// are the liquidity reference for both market and limit fills, per the
// fill-simulation rules. Orders outliving this tick's sweep stay pending
// for a later trade tick.
func (e *Engine) sweepPending(tick common.TickData) {
	if tick.DataType != common.TickTrade {
		return
	}
	remaining := e.pending[:0]
	for _, po := range e.pending {
		if po.symbol != tick.Symbol || po.eligibleAt.After(e.currentTime) {
			remaining = append(remaining, po)
			continue
		}
		e.attemptExecution(po, tick)
		if !po.order.IsComplete() {
			remaining = append(remaining, po)
		}
	}
	e.pending = remaining
}

func (e *Engine) attemptExecution(po *pendingOrder, tick common.TickData) {
	if po.order.Type == common.Limit {
		e.attemptLimitFill(po, tick)
		return
	}
	e.attemptMarketFill(po, tick)
}

func (e *Engine) attemptLimitFill(po *pendingOrder, tick common.TickData) {
	order := po.order
	if order.LimitPrice == nil {
		return
	}
	tickPrice := decimal.NewFromFloat(tick.TradePrice)

	eligible := false
	if order.Side == common.Buy {
		eligible = tickPrice.LessThanOrEqual(*order.LimitPrice)
	} else {
		eligible = tickPrice.GreaterThanOrEqual(*order.LimitPrice)
	}
	if !eligible {
		return
	}

	fillQty := decimal.Min(order.RemainingQuantity(), decimal.NewFromFloat(tick.TradeSize))
	if fillQty.Sign() <= 0 {
		return
	}
	fee := e.computeFee(*order.LimitPrice, fillQty, common.Maker)
	e.completeFill(po, fillQty, *order.LimitPrice, fee, common.Maker)
}

func (e *Engine) attemptMarketFill(po *pendingOrder, tick common.TickData) {
	order := po.order
	basePrice := decimal.NewFromFloat(tick.TradePrice)
	tickQty := decimal.NewFromFloat(tick.TradeSize)

	slippage := ComputeSlippage(e.cfg.SlippageModel, basePrice, e.cfg.SlippageBps, nil, e.rng)
	dailyVolume := e.dailyVolume[po.symbol]
	impact := ComputeImpact(e.cfg.ImpactModel, e.cfg.ImpactCoefficient, order.RemainingQuantity(), dailyVolume, basePrice)

	adjustedPrice := basePrice
	if order.Side == common.Buy {
		adjustedPrice = adjustedPrice.Add(slippage).Add(impact)
	} else {
		adjustedPrice = adjustedPrice.Sub(slippage).Sub(impact)
	}

	fillQty := order.RemainingQuantity()
	if e.cfg.PartialFillProbability > 0 && e.rng.Float64() < e.cfg.PartialFillProbability {
		fillQty = decimal.Min(fillQty, tickQty)
	}
	if fillQty.Sign() <= 0 {
		return
	}

	if !basePrice.IsZero() {
		sBps, _ := slippage.Div(basePrice).Mul(decimal.NewFromInt(10000)).Float64()
		iBps, _ := impact.Div(basePrice).Mul(decimal.NewFromInt(10000)).Float64()
		e.slippageBpsSamples = append(e.slippageBpsSamples, sBps)
		e.impactBpsSamples = append(e.impactBpsSamples, iBps)
		e.metrics.slippageBpsGauge.Set(sBps)
		e.metrics.impactBpsGauge.Set(iBps)
	}

	fee := e.computeFee(adjustedPrice, fillQty, common.Taker)
	e.completeFill(po, fillQty, adjustedPrice, fee, common.Taker)
}

func (e *Engine) computeFee(price, qty decimal.Decimal, liquidity common.LiquidityFlag) decimal.Decimal {
	if !e.cfg.FeesEnabled {
		return decimal.Zero
	}
	bps := e.cfg.MakerFeeBps
	if liquidity == common.Taker {
		bps = e.cfg.TakerFeeBps
	}
	return price.Mul(qty).Mul(bps).Div(decimal.NewFromInt(10000))
}

func (e *Engine) completeFill(po *pendingOrder, qty, price, fee decimal.Decimal, liquidity common.LiquidityFlag) {
	order := po.order
	if err := order.ApplyFill(qty, price, e.currentTime); err != nil {
		log.Warn().Err(err).Str("order_id", order.OrderID).Msg("backtest: fill rejected")
		return
	}

	fill := common.NewFill(order.OrderID, "backtest", price, qty, order.Side, liquidity, fee, e.currentTime)
	e.Portfolio.ApplyFill(po.symbol, order.Side, qty, price, fee, e.currentTime)

	e.metrics.fillsTotal.WithLabelValues(liquidity.String()).Inc()
	notional, _ := qty.Mul(price).Float64()
	e.metrics.notionalTraded.Add(notional)
	feeF, _ := fee.Float64()
	e.metrics.feesPaid.Add(feeF)

	log.Info().
		Str("order_id", order.OrderID).
		Str("symbol", po.symbol).
		Str("side", order.Side.String()).
		Str("qty", qty.String()).
		Str("price", price.String()).
		Msg("backtest: fill")

	if e.callbacks.OnFill != nil {
		e.callbacks.OnFill(fill)
	}
}

func (e *Engine) recordEquity() {
	for symbol := range e.books {
		if mid, ok := e.bookFor(symbol).MidPrice(); ok {
			e.Portfolio.MarkToMarket(symbol, mid, e.currentTime)
		}
	}
	equity := e.Portfolio.Equity()
	e.equityCurve = append(e.equityCurve, EquityPoint{Timestamp: e.currentTime, Equity: equity})
	eq, _ := equity.Float64()
	e.metrics.currentEquity.Set(eq)
}
