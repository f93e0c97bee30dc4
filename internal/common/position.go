package common

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is the running net exposure for a symbol. P&L excludes any
// holding cost: realized P&L is closed-lot price difference minus
// execution fees, and unrealized P&L is a pure mark-to-market on the open
// quantity. There is no swap, financing, or overnight-charge field.
type Position struct {
	Symbol        string
	Quantity      decimal.Decimal // positive long, negative short
	AvgEntryPrice decimal.Decimal
	RealizedPnL   decimal.Decimal
	UnrealizedPnL decimal.Decimal
	LastUpdate    time.Time
}

// NewPosition returns a flat (zero-quantity) position for symbol.
func NewPosition(symbol string) *Position {
	return &Position{
		Symbol:        symbol,
		Quantity:      decimal.Zero,
		AvgEntryPrice: decimal.Zero,
		RealizedPnL:   decimal.Zero,
		UnrealizedPnL: decimal.Zero,
	}
}

// TotalPnL is RealizedPnL + UnrealizedPnL.
func (p *Position) TotalPnL() decimal.Decimal {
	return p.RealizedPnL.Add(p.UnrealizedPnL)
}

// IsFlat reports whether the position carries no quantity.
func (p *Position) IsFlat() bool {
	return p.Quantity.IsZero()
}

// IsLong reports a strictly positive quantity.
func (p *Position) IsLong() bool {
	return p.Quantity.Sign() > 0
}

// IsShort reports a strictly negative quantity.
func (p *Position) IsShort() bool {
	return p.Quantity.Sign() < 0
}

// ApplyFill updates the position for a fill of the given side/qty/price,
// using flip-and-crystallize semantics: a fill that extends the existing
// direction (or opens a flat position) widens the cost basis; a fill
// against the existing direction first closes existing quantity at
// realized P&L, and if the fill size exceeds the open quantity, the
// remainder opens a new position in the opposite direction at the fill
// price. fee is subtracted from realized P&L (not from unrealized).
func (p *Position) ApplyFill(side Side, qty, price, fee decimal.Decimal, now time.Time) {
	signed := qty
	if side == Sell {
		signed = qty.Neg()
	}

	switch {
	case p.Quantity.IsZero() || sameSign(p.Quantity, signed):
		// Extending or opening: widen the cost basis.
		newQty := p.Quantity.Add(signed)
		if newQty.IsZero() {
			p.AvgEntryPrice = decimal.Zero
		} else {
			priorNotional := p.AvgEntryPrice.Mul(p.Quantity.Abs())
			addedNotional := price.Mul(qty)
			p.AvgEntryPrice = priorNotional.Add(addedNotional).Div(newQty.Abs())
		}
		p.Quantity = newQty

	default:
		// Opposing fill: close up to the open quantity, crystallizing
		// realized P&L, then flip any remainder into a new lot.
		wasLong := p.IsLong()
		openAbs := p.Quantity.Abs()
		closeQty := decimal.Min(qty, openAbs)

		var pnlPerUnit decimal.Decimal
		if wasLong {
			pnlPerUnit = price.Sub(p.AvgEntryPrice)
		} else {
			pnlPerUnit = p.AvgEntryPrice.Sub(price)
		}
		p.RealizedPnL = p.RealizedPnL.Add(pnlPerUnit.Mul(closeQty))

		remainingAbs := openAbs.Sub(closeQty)
		if wasLong {
			p.Quantity = remainingAbs
		} else {
			p.Quantity = remainingAbs.Neg()
		}

		remainingFill := qty.Sub(closeQty)
		if remainingFill.Sign() > 0 {
			p.Quantity = signedQty(remainingFill, side)
			p.AvgEntryPrice = price
		} else if p.Quantity.IsZero() {
			p.AvgEntryPrice = decimal.Zero
		}
	}

	p.RealizedPnL = p.RealizedPnL.Sub(fee)
	p.LastUpdate = now
}

func signedQty(qty decimal.Decimal, side Side) decimal.Decimal {
	if side == Sell {
		return qty.Neg()
	}
	return qty
}

func sameSign(a, b decimal.Decimal) bool {
	return a.Sign() == b.Sign()
}

// MarkToMarket recomputes UnrealizedPnL against the current market price.
func (p *Position) MarkToMarket(marketPrice decimal.Decimal, now time.Time) {
	if p.IsFlat() {
		p.UnrealizedPnL = decimal.Zero
		p.LastUpdate = now
		return
	}
	if p.IsLong() {
		p.UnrealizedPnL = marketPrice.Sub(p.AvgEntryPrice).Mul(p.Quantity)
	} else {
		p.UnrealizedPnL = p.AvgEntryPrice.Sub(marketPrice).Mul(p.Quantity.Abs())
	}
	p.LastUpdate = now
}
