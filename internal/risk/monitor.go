package risk

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"tradecore/internal/common"
)

// loss alert/emergency-stop thresholds are expressed as a fraction of
// MaxDailyLoss: 75% trips an alert, 100% trips the emergency stop.
const lossAlertFraction = 0.75

// OnFill applies a fill to the relevant position, updates daily volume
// and trade-count counters, recomputes capital and the intraday
// high-equity watermark, and checks for a loss-alert or emergency-stop
// breach.
func (g *Gate) OnFill(fill common.Fill, symbol string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	pos := g.positionFor(symbol)
	pos.ApplyFill(fill.Side, fill.Quantity, fill.Price, fill.Fee, fill.Timestamp)

	notional := fill.Notional()
	g.dailyVolume = g.dailyVolume.Add(notional)
	g.dailyTradeCount++
	g.metrics.fillsProcessed.Inc()

	g.recomputeCapital()
	g.checkPostTradeBreach()

	log.Info().
		Str("order_id", fill.OrderID).
		Str("symbol", symbol).
		Str("price", fill.Price.String()).
		Str("quantity", fill.Quantity.String()).
		Msg("risk: fill processed")
}

// UpdateMarketPrices marks every tracked position to the supplied prices
// and re-evaluates the post-trade breach conditions.
func (g *Gate) UpdateMarketPrices(prices map[string]decimal.Decimal, now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for symbol, price := range prices {
		if pos, ok := g.positions[symbol]; ok {
			pos.MarkToMarket(price, now)
		}
	}
	g.recomputeCapital()
	g.checkPostTradeBreach()
}

func (g *Gate) recomputeCapital() {
	pnl := g.dailyPnL()
	g.currentCapital = g.initialCapital.Add(pnl)
	if g.currentCapital.GreaterThan(g.dailyHighEquity) {
		g.dailyHighEquity = g.currentCapital
	}
	g.metrics.currentEquity.Set(mustFloat(g.currentCapital))
	if g.dailyHighEquity.Sign() > 0 {
		drawdown := g.dailyHighEquity.Sub(g.currentCapital).Div(g.dailyHighEquity)
		g.metrics.currentDrawdownFrac.Set(mustFloat(drawdown))
	}

	openCount := 0
	for _, p := range g.positions {
		if !p.IsFlat() {
			openCount++
		}
	}
	g.metrics.openPositionSymbols.Set(float64(openCount))
}

// checkPostTradeBreach inspects the daily P&L against the alert and
// emergency-stop thresholds. Crossing the alert threshold only logs; the
// emergency-stop threshold trips the circuit breaker.
func (g *Gate) checkPostTradeBreach() {
	if g.halted {
		return
	}
	pnl := g.dailyPnL()
	if pnl.Sign() >= 0 {
		return
	}
	loss := pnl.Neg()
	alertThreshold := g.limits.MaxDailyLoss.Mul(decimal.NewFromFloat(lossAlertFraction))

	if loss.GreaterThanOrEqual(g.limits.MaxDailyLoss) {
		g.trip("daily loss reached max daily loss limit")
		return
	}
	if loss.GreaterThanOrEqual(alertThreshold) {
		log.Warn().
			Str("daily_loss", loss.String()).
			Str("alert_threshold", alertThreshold.String()).
			Msg("risk: daily loss crossed alert threshold")
	}
}

func mustFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

// GetRiskMetrics snapshots the current aggregate risk state.
func (g *Gate) GetRiskMetrics() common.RiskMetrics {
	g.mu.Lock()
	defer g.mu.Unlock()

	positions := make(map[string]*common.Position, len(g.positions))
	maxConcentration := decimal.Zero
	total := g.totalExposure()

	for symbol, p := range g.positions {
		snapshot := *p
		positions[symbol] = &snapshot
		if total.Sign() > 0 {
			share := p.Quantity.Abs().Mul(p.AvgEntryPrice).Div(total)
			if share.GreaterThan(maxConcentration) {
				maxConcentration = share
			}
		}
	}

	realized := decimal.Zero
	unrealized := decimal.Zero
	for _, p := range g.positions {
		realized = realized.Add(p.RealizedPnL)
		unrealized = unrealized.Add(p.UnrealizedPnL)
	}

	return common.RiskMetrics{
		Positions:        positions,
		TotalExposure:    total,
		DailyRealizedPnL: realized,
		DailyUnrealPnL:   unrealized,
		DailyVolume:      g.dailyVolume,
		DailyTradeCount:  g.dailyTradeCount,
		DailyHighEquity:  g.dailyHighEquity,
		OpenOrderCount:   len(g.openOrders),
		MaxConcentration: maxConcentration,
	}
}

// DailyReset clears the intraday counters at the start of a new trading
// day. The circuit breaker is cleared along with everything else; a halt
// does not carry across a daily reset. The high-equity watermark and
// initial capital both roll forward to the previous day's closing
// capital, so drawdown is measured fresh each day against that day's
// starting equity.
func (g *Gate) DailyReset() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.initialCapital = g.currentCapital
	g.dailyHighEquity = g.currentCapital
	g.dailyVolume = decimal.Zero
	g.dailyTradeCount = 0
	g.halted = false
	g.rateWindowStart = time.Time{}
	g.ordersThisSec = 0
	g.cancelsThisSec = 0

	for _, p := range g.positions {
		p.RealizedPnL = decimal.Zero
	}

	log.Info().Str("capital", g.initialCapital.String()).Msg("risk: daily reset")
}
