package backtest

import (
	"time"

	"github.com/shopspring/decimal"

	"tradecore/internal/common"
)

// ClosedTrade records one realized-P&L event: a fill that closed existing
// quantity (partially or fully), possibly flipping into a new lot. Used
// for win-rate/profit-factor reporting, distinct from common.Trade which
// is a matched taker/maker pair in the live matching path.
type ClosedTrade struct {
	Symbol    string
	PnL       decimal.Decimal
	Timestamp time.Time
}

// Portfolio tracks cash and per-symbol positions across a backtest run.
type Portfolio struct {
	Cash      decimal.Decimal
	positions map[string]*common.Position
	marks     map[string]decimal.Decimal // last mark price per symbol

	TotalFees   decimal.Decimal
	Trades      []ClosedTrade
	TotalVolume decimal.Decimal
}

// NewPortfolio starts a Portfolio with the given starting cash.
func NewPortfolio(initialCash decimal.Decimal) *Portfolio {
	return &Portfolio{
		Cash:        initialCash,
		positions:   make(map[string]*common.Position),
		marks:       make(map[string]decimal.Decimal),
		TotalFees:   decimal.Zero,
		TotalVolume: decimal.Zero,
	}
}

func (p *Portfolio) position(symbol string) *common.Position {
	pos, ok := p.positions[symbol]
	if !ok {
		pos = common.NewPosition(symbol)
		p.positions[symbol] = pos
	}
	return pos
}

// ApplyFill moves cash by the signed notional-plus-fee and updates the
// symbol's position, recording a ClosedTrade if the fill closed existing
// quantity and realized any P&L.
func (p *Portfolio) ApplyFill(symbol string, side common.Side, qty, price, fee decimal.Decimal, now time.Time) {
	notional := qty.Mul(price)
	if side == common.Buy {
		p.Cash = p.Cash.Sub(notional).Sub(fee)
	} else {
		p.Cash = p.Cash.Add(notional).Sub(fee)
	}
	p.TotalFees = p.TotalFees.Add(fee)
	p.TotalVolume = p.TotalVolume.Add(notional)

	pos := p.position(symbol)
	closing := (pos.IsLong() && side == common.Sell) || (pos.IsShort() && side == common.Buy)
	realizedBefore := pos.RealizedPnL
	pos.ApplyFill(side, qty, price, fee, now)
	delta := pos.RealizedPnL.Sub(realizedBefore)
	if closing && !delta.IsZero() {
		p.Trades = append(p.Trades, ClosedTrade{Symbol: symbol, PnL: delta, Timestamp: now})
	}
	p.marks[symbol] = price
}

// MarkToMarket updates the unrealized P&L of symbol's position against
// price and remembers price as the symbol's last mark for Equity.
func (p *Portfolio) MarkToMarket(symbol string, price decimal.Decimal, now time.Time) {
	p.position(symbol).MarkToMarket(price, now)
	p.marks[symbol] = price
}

// Equity is cash plus the mark-to-market value of every open position:
// cash + Σ position_qty · mark_price, using each symbol's most recent
// MarkToMarket price (falling back to cost basis if never marked).
func (p *Portfolio) Equity() decimal.Decimal {
	equity := p.Cash
	for symbol, pos := range p.positions {
		if pos.IsFlat() {
			continue
		}
		markPrice, ok := p.marks[symbol]
		if !ok {
			markPrice = pos.AvgEntryPrice
		}
		equity = equity.Add(pos.Quantity.Mul(markPrice))
	}
	return equity
}

// Position returns a copy of symbol's current position for inspection.
func (p *Portfolio) Position(symbol string) common.Position {
	return *p.position(symbol)
}

// Positions returns every symbol currently tracked, flat or not.
func (p *Portfolio) Positions() map[string]*common.Position {
	return p.positions
}
