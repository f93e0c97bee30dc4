package risk

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"tradecore/internal/common"
)

func violation(t common.RiskViolationType, sev common.Severity, orderID, desc string) *Violation {
	return &Violation{
		Type:        t,
		Description: desc,
		OrderID:     orderID,
		Timestamp:   time.Now(),
		Severity:    sev,
	}
}

// checkHalted rejects any order while the circuit breaker is tripped.
func (g *Gate) checkHalted(order *common.Order, _ decimal.Decimal) *Violation {
	if g.halted {
		return violation(common.ViolationHalted, common.SeverityCritical, order.OrderID, "trading is halted by the circuit breaker")
	}
	return nil
}

// checkFatFinger rejects orders whose limit price deviates too far from
// the reference price, or whose notional is grossly oversized.
func (g *Gate) checkFatFinger(order *common.Order, referencePrice decimal.Decimal) *Violation {
	notional := g.orderNotional(order, referencePrice)
	fatFingerThreshold := g.limits.MaxOrderValue.Mul(decimal.NewFromInt(10))
	if notional.GreaterThan(fatFingerThreshold) {
		return violation(common.ViolationFatFinger, common.SeverityCritical, order.OrderID,
			fmt.Sprintf("order notional %s exceeds fat-finger threshold %s", notional, fatFingerThreshold))
	}

	if order.LimitPrice != nil && referencePrice.Sign() > 0 {
		deviation := order.LimitPrice.Sub(referencePrice).Abs().Div(referencePrice)
		if deviation.GreaterThan(g.limits.MaxPriceDeviation) {
			return violation(common.ViolationFatFinger, common.SeverityRejection, order.OrderID,
				fmt.Sprintf("price %s deviates %s from reference %s", order.LimitPrice, deviation, referencePrice))
		}
	}
	return nil
}

func (g *Gate) checkSize(order *common.Order, _ decimal.Decimal) *Violation {
	if order.Quantity.GreaterThan(g.limits.MaxOrderSize) {
		return violation(common.ViolationOrderSize, common.SeverityRejection, order.OrderID,
			fmt.Sprintf("quantity %s exceeds max order size %s", order.Quantity, g.limits.MaxOrderSize))
	}
	return nil
}

func (g *Gate) checkValue(order *common.Order, referencePrice decimal.Decimal) *Violation {
	notional := g.orderNotional(order, referencePrice)
	if notional.GreaterThan(g.limits.MaxOrderValue) {
		return violation(common.ViolationOrderValue, common.SeverityRejection, order.OrderID,
			fmt.Sprintf("notional %s exceeds max order value %s", notional, g.limits.MaxOrderValue))
	}
	if notional.LessThan(g.limits.MinOrderValue) {
		return violation(common.ViolationOrderValue, common.SeverityRejection, order.OrderID,
			fmt.Sprintf("notional %s below min order value %s", notional, g.limits.MinOrderValue))
	}
	return nil
}

func (g *Gate) checkPosition(order *common.Order, _ decimal.Decimal) *Violation {
	pos := g.positionFor(order.Instrument.Symbol)
	signedQty := order.Quantity
	if order.Side == common.Sell {
		signedQty = signedQty.Neg()
	}
	newPosition := pos.Quantity.Add(signedQty)

	if newPosition.Abs().GreaterThan(g.limits.MaxPositionSize) {
		return violation(common.ViolationPositionLimit, common.SeverityRejection, order.OrderID,
			fmt.Sprintf("resulting position %s would exceed limit %s", newPosition, g.limits.MaxPositionSize))
	}
	return nil
}

func (g *Gate) checkDailyLoss(order *common.Order, _ decimal.Decimal) *Violation {
	pnl := g.dailyPnL()
	if pnl.LessThan(g.limits.MaxDailyLoss.Neg()) {
		g.trip("daily loss limit breached pre-trade")
		return violation(common.ViolationDailyLoss, common.SeverityCritical, order.OrderID,
			fmt.Sprintf("daily P&L %s below -%s", pnl, g.limits.MaxDailyLoss))
	}
	return nil
}

func (g *Gate) checkDailyVolume(order *common.Order, referencePrice decimal.Decimal) *Violation {
	notional := g.orderNotional(order, referencePrice)
	projectedVolume := g.dailyVolume.Add(notional)
	if projectedVolume.GreaterThan(g.limits.MaxDailyVolume) {
		return violation(common.ViolationDailyVolume, common.SeverityRejection, order.OrderID,
			fmt.Sprintf("projected daily volume %s exceeds limit %s", projectedVolume, g.limits.MaxDailyVolume))
	}
	if g.dailyTradeCount+1 > g.limits.MaxTradesPerDay {
		return violation(common.ViolationDailyVolume, common.SeverityRejection, order.OrderID,
			fmt.Sprintf("daily trade count would exceed limit %d", g.limits.MaxTradesPerDay))
	}
	return nil
}

// checkRate enforces orders-per-second; the counters belong to the current
// wall-clock second and reset when a check falls in a later second.
func (g *Gate) checkRate(order *common.Order, _ decimal.Decimal) *Violation {
	epoch := time.Now().Truncate(time.Second)
	if !g.rateWindowStart.Equal(epoch) {
		g.rateWindowStart = epoch
		g.ordersThisSec = 0
		g.cancelsThisSec = 0
	}
	if g.ordersThisSec >= g.limits.MaxOrdersPerSecond {
		return violation(common.ViolationRate, common.SeverityRejection, order.OrderID,
			fmt.Sprintf("orders-per-second at limit %d", g.limits.MaxOrdersPerSecond))
	}
	return nil
}

func (g *Gate) checkConcentration(order *common.Order, referencePrice decimal.Decimal) *Violation {
	notional := g.orderNotional(order, referencePrice)
	symbolNotional := g.positionFor(order.Instrument.Symbol).Quantity.Abs().Mul(referencePrice).Add(notional)
	projectedTotal := g.totalExposure().Add(notional)
	if projectedTotal.Sign() == 0 {
		return nil
	}
	concentration := symbolNotional.Div(projectedTotal)
	if concentration.GreaterThan(g.limits.MaxConcentration) {
		return violation(common.ViolationConcentration, common.SeverityRejection, order.OrderID,
			fmt.Sprintf("symbol concentration %s exceeds limit %s", concentration, g.limits.MaxConcentration))
	}
	return nil
}

func (g *Gate) checkDrawdown(order *common.Order, _ decimal.Decimal) *Violation {
	if g.dailyHighEquity.Sign() <= 0 {
		return nil
	}
	drawdown := g.dailyHighEquity.Sub(g.currentCapital).Div(g.dailyHighEquity)
	if drawdown.GreaterThan(g.limits.MaxDrawdownFraction) {
		g.trip("max drawdown fraction breached pre-trade")
		return violation(common.ViolationDrawdown, common.SeverityCritical, order.OrderID,
			fmt.Sprintf("drawdown %s exceeds limit %s", drawdown, g.limits.MaxDrawdownFraction))
	}
	return nil
}

func (g *Gate) checkPriceValidity(order *common.Order, referencePrice decimal.Decimal) *Violation {
	if order.LimitPrice == nil {
		return nil
	}
	if order.LimitPrice.Sign() <= 0 {
		return violation(common.ViolationInvalidPrice, common.SeverityCritical, order.OrderID,
			fmt.Sprintf("non-positive price %s", order.LimitPrice))
	}
	if referencePrice.Sign() <= 0 {
		return nil
	}
	lower := referencePrice.Mul(decimal.NewFromFloat(0.5))
	upper := referencePrice.Mul(decimal.NewFromFloat(1.5))
	if order.LimitPrice.LessThan(lower) || order.LimitPrice.GreaterThan(upper) {
		return violation(common.ViolationInvalidPrice, common.SeverityRejection, order.OrderID,
			fmt.Sprintf("price %s outside valid range [%s, %s]", order.LimitPrice, lower, upper))
	}
	return nil
}

func (g *Gate) checkSelfTrade(order *common.Order, _ decimal.Decimal) *Violation {
	if order.LimitPrice == nil {
		return nil
	}
	for _, open := range g.openOrders {
		if open.Instrument.Symbol != order.Instrument.Symbol {
			continue
		}
		if open.Side == order.Side || open.LimitPrice == nil {
			continue
		}
		crosses := (order.Side == common.Buy && order.LimitPrice.GreaterThanOrEqual(*open.LimitPrice)) ||
			(order.Side == common.Sell && order.LimitPrice.LessThanOrEqual(*open.LimitPrice))
		if crosses {
			return violation(common.ViolationSelfTrade, common.SeverityRejection, order.OrderID,
				fmt.Sprintf("would self-trade against resting order %s", open.OrderID))
		}
	}
	return nil
}

// TrackOpenOrder registers order as open for self-trade and open-order
// accounting; RemoveOpenOrder clears it once terminal.
func (g *Gate) TrackOpenOrder(order *common.Order) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.openOrders[order.OrderID] = order
}

// RemoveOpenOrder drops order from the open-order set.
func (g *Gate) RemoveOpenOrder(orderID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.openOrders, orderID)
}
