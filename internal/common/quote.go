package common

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote is a level-1 top-of-book snapshot for one instrument at one venue.
type Quote struct {
	Instrument Instrument
	Venue      Venue
	BidPrice   decimal.Decimal
	BidSize    decimal.Decimal
	AskPrice   decimal.Decimal
	AskSize    decimal.Decimal
	Timestamp  time.Time
}

// MidPrice is the arithmetic mean of bid and ask.
func (q Quote) MidPrice() decimal.Decimal {
	return q.BidPrice.Add(q.AskPrice).Div(decimal.NewFromInt(2))
}

// Spread is ask minus bid.
func (q Quote) Spread() decimal.Decimal {
	return q.AskPrice.Sub(q.BidPrice)
}

// OrderBookLevel is a single price level in a book side. A level with
// Size == 0 is semantically absent and must not be stored.
type OrderBookLevel struct {
	Price      decimal.Decimal
	Size       decimal.Decimal
	OrderCount int
}

// OrderBookSnapshot is an immutable capture of both sides of a book plus
// the sequence number and timestamp it was taken at. Used for handoff into
// strategies/analyzers and for the backtester's order-book update callback.
type OrderBookSnapshot struct {
	Instrument     string
	Venue          string
	Bids           []OrderBookLevel // descending by price
	Asks           []OrderBookLevel // ascending by price
	SequenceNumber uint64
	Timestamp      time.Time
}

// BestBid returns the top bid level, or false if the book side is empty.
func (s OrderBookSnapshot) BestBid() (OrderBookLevel, bool) {
	if len(s.Bids) == 0 {
		return OrderBookLevel{}, false
	}
	return s.Bids[0], true
}

// BestAsk returns the top ask level, or false if the book side is empty.
func (s OrderBookSnapshot) BestAsk() (OrderBookLevel, bool) {
	if len(s.Asks) == 0 {
		return OrderBookLevel{}, false
	}
	return s.Asks[0], true
}

// MidPrice is the arithmetic mean of the best bid and best ask, and false
// if either side is empty.
func (s OrderBookSnapshot) MidPrice() (decimal.Decimal, bool) {
	bid, ok := s.BestBid()
	if !ok {
		return decimal.Zero, false
	}
	ask, ok := s.BestAsk()
	if !ok {
		return decimal.Zero, false
	}
	return bid.Price.Add(ask.Price).Div(decimal.NewFromInt(2)), true
}
