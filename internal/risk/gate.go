// Package risk implements the pre-trade synchronous risk checks and the
// post-trade position/P&L monitor with circuit-breaker semantics.
package risk

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"tradecore/internal/common"
)

// Violation records one failed risk check.
type Violation struct {
	Type        common.RiskViolationType
	Description string
	OrderID     string
	Timestamp   time.Time
	Severity    common.Severity
}

func (v Violation) Error() string {
	return fmt.Sprintf("risk: %s: %s", v.Type, v.Description)
}

// Gate combines pre-trade checks and post-trade monitoring over a shared
// set of limits, positions, and the circuit-breaker flag. A Gate is safe
// for concurrent use.
type Gate struct {
	limits common.RiskLimits

	mu              sync.Mutex
	positions       map[string]*common.Position
	halted          bool
	dailyVolume     decimal.Decimal
	dailyTradeCount int
	dailyHighEquity decimal.Decimal
	initialCapital  decimal.Decimal
	currentCapital  decimal.Decimal

	openOrders map[string]*common.Order

	rateWindowStart time.Time
	ordersThisSec   int
	cancelsThisSec  int

	violationHistory []Violation

	metrics *Metrics
}

// New constructs a Gate with the given limits and starting capital. The
// daily-high-equity watermark starts at initialCapital.
func New(limits common.RiskLimits, initialCapital decimal.Decimal) *Gate {
	return &Gate{
		limits:          limits,
		positions:       make(map[string]*common.Position),
		openOrders:      make(map[string]*common.Order),
		dailyHighEquity: initialCapital,
		initialCapital:  initialCapital,
		currentCapital:  initialCapital,
		metrics:         newMetrics(),
	}
}

// Registerer exposes the Gate's Prometheus collectors for registration
// into a caller-owned registry. The registry is never served over HTTP by
// this package; exposition is the caller's responsibility.
func (g *Gate) Registerer() []prometheus.Collector {
	return g.metrics.collectors()
}

func (g *Gate) dailyPnL() decimal.Decimal {
	total := decimal.Zero
	for _, p := range g.positions {
		total = total.Add(p.TotalPnL())
	}
	return total
}

func (g *Gate) totalExposure() decimal.Decimal {
	total := decimal.Zero
	for _, p := range g.positions {
		total = total.Add(p.Quantity.Abs().Mul(p.AvgEntryPrice))
	}
	return total
}

func (g *Gate) positionFor(symbol string) *common.Position {
	p, ok := g.positions[symbol]
	if !ok {
		p = common.NewPosition(symbol)
		g.positions[symbol] = p
	}
	return p
}

// CheckOrder runs the full pre-trade cascade against order at
// referencePrice, in the fixed order mandated by the gate: halted,
// fat-finger, size, value, position, daily loss, daily volume/trade
// count, rate, concentration, drawdown, price validity, self-trade. The
// first failing check's Violation is returned; nil means the order is
// admitted.
func (g *Gate) CheckOrder(order *common.Order, referencePrice decimal.Decimal) *Violation {
	g.mu.Lock()
	defer g.mu.Unlock()

	checks := []func(*common.Order, decimal.Decimal) *Violation{
		g.checkHalted,
		g.checkFatFinger,
		g.checkSize,
		g.checkValue,
		g.checkPosition,
		g.checkDailyLoss,
		g.checkDailyVolume,
		g.checkRate,
		g.checkConcentration,
		g.checkDrawdown,
		g.checkPriceValidity,
		g.checkSelfTrade,
	}

	for _, check := range checks {
		if v := check(order, referencePrice); v != nil {
			g.recordViolation(*v)
			return v
		}
	}

	g.ordersThisSec++
	log.Info().Str("order_id", order.OrderID).Msg("risk: pre-trade check passed")
	return nil
}

func (g *Gate) orderNotional(order *common.Order, referencePrice decimal.Decimal) decimal.Decimal {
	price := referencePrice
	if order.LimitPrice != nil {
		price = *order.LimitPrice
	}
	return order.Quantity.Mul(price)
}

func (g *Gate) recordViolation(v Violation) {
	g.violationHistory = append(g.violationHistory, v)
	g.metrics.rejections.WithLabelValues(v.Type.String()).Inc()
	log.Warn().Str("type", v.Type.String()).Str("severity", v.Severity.String()).Str("desc", v.Description).Msg("risk: violation")
}

// ViolationHistory returns a copy of all recorded violations this session.
func (g *Gate) ViolationHistory() []Violation {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Violation, len(g.violationHistory))
	copy(out, g.violationHistory)
	return out
}

// IsHalted reports whether the circuit breaker is currently tripped.
func (g *Gate) IsHalted() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.halted
}

// Reset clears the circuit breaker. Operator-initiated; there is no
// automatic recovery.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.halted = false
	log.Info().Msg("risk: circuit breaker reset, trading resumed")
}

func (g *Gate) trip(reason string) {
	g.halted = true
	g.metrics.circuitBreakerTrips.Inc()
	log.Error().Str("reason", reason).Msg("risk: circuit breaker tripped")
}
