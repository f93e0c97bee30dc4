package common

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Fill is one execution against an order. A single Order accumulates many
// Fills over its life; FilledQuantity/AvgFillPrice on the Order are derived
// from the Fill stream but Fills themselves are the source of truth for
// fee accounting and trade history.
type Fill struct {
	FillID   string
	OrderID  string
	Venue    string
	Price    decimal.Decimal
	Quantity decimal.Decimal
	Side     Side
	Liquidity LiquidityFlag
	Fee      decimal.Decimal
	Timestamp time.Time
}

// NewFill builds a Fill with a fresh identifier.
func NewFill(orderID, venue string, price, quantity decimal.Decimal, side Side, liquidity LiquidityFlag, fee decimal.Decimal, ts time.Time) Fill {
	return Fill{
		FillID:    uuid.New().String(),
		OrderID:   orderID,
		Venue:     venue,
		Price:     price,
		Quantity:  quantity,
		Side:      side,
		Liquidity: liquidity,
		Fee:       fee,
		Timestamp: ts,
	}
}

// Notional is Price * Quantity.
func (f Fill) Notional() decimal.Decimal {
	return f.Price.Mul(f.Quantity)
}

func (f Fill) String() string {
	return fmt.Sprintf("Fill{id=%s order=%s px=%s qty=%s side=%s liq=%s fee=%s}",
		f.FillID, f.OrderID, f.Price, f.Quantity, f.Side, f.Liquidity, f.Fee)
}

// Trade is a matched pair: the result of crossing an aggressor (taker)
// order against a resting (maker) order in the book, prior to fee
// allocation. Used by the matching engine and the backtester's trade
// history, distinct from Fill which is per-order-side bookkeeping.
type Trade struct {
	TradeID      string
	TakerOrderID string
	MakerOrderID string
	Instrument   string
	Price        decimal.Decimal
	Quantity     decimal.Decimal
	AggressorSide Side
	Timestamp    time.Time
}

// NewTrade builds a Trade with a fresh identifier.
func NewTrade(takerOrderID, makerOrderID, instrument string, price, quantity decimal.Decimal, aggressorSide Side, ts time.Time) Trade {
	return Trade{
		TradeID:       uuid.New().String(),
		TakerOrderID:  takerOrderID,
		MakerOrderID:  makerOrderID,
		Instrument:    instrument,
		Price:         price,
		Quantity:      quantity,
		AggressorSide: aggressorSide,
		Timestamp:     ts,
	}
}

// Notional is Price * Quantity.
func (t Trade) Notional() decimal.Decimal {
	return t.Price.Mul(t.Quantity)
}

func (t Trade) String() string {
	return fmt.Sprintf("Trade{id=%s taker=%s maker=%s px=%s qty=%s aggressor=%s}",
		t.TradeID, t.TakerOrderID, t.MakerOrderID, t.Price, t.Quantity, t.AggressorSide)
}
