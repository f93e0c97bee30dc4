package book

import (
	"errors"

	"github.com/shopspring/decimal"

	"tradecore/internal/common"
)

// ErrNoVenueLiquidity is returned by BestVenueFor when no registered venue
// can fill the requested quantity.
var ErrNoVenueLiquidity = errors.New("book: no venue has sufficient liquidity")

// Aggregator consolidates per-venue books for one symbol into a
// composite best bid/offer and venue-selection logic.
type Aggregator struct {
	Symbol string
	venues map[string]*OrderBook
	fees   map[string]common.Venue
}

// NewAggregator constructs an empty cross-venue aggregator for symbol.
func NewAggregator(symbol string) *Aggregator {
	return &Aggregator{
		Symbol: symbol,
		venues: make(map[string]*OrderBook),
		fees:   make(map[string]common.Venue),
	}
}

// AddVenue registers a venue's book and fee schedule with the aggregator.
func (a *Aggregator) AddVenue(venue common.Venue, b *OrderBook) {
	a.venues[venue.VenueID] = b
	a.fees[venue.VenueID] = venue
}

// CBBO returns the consolidated best bid and offer across all registered
// venues: the highest bid and the lowest ask, each tagged with its venue.
func (a *Aggregator) CBBO() (bidPrice decimal.Decimal, bidVenue string, askPrice decimal.Decimal, askVenue string, ok bool) {
	haveBid, haveAsk := false, false
	for id, b := range a.venues {
		if bid, found := b.BestBid(); found {
			if !haveBid || bid.Price.GreaterThan(bidPrice) {
				bidPrice, bidVenue, haveBid = bid.Price, id, true
			}
		}
		if ask, found := b.BestAsk(); found {
			if !haveAsk || ask.Price.LessThan(askPrice) {
				askPrice, askVenue, haveAsk = ask.Price, id, true
			}
		}
	}
	return bidPrice, bidVenue, askPrice, askVenue, haveBid && haveAsk
}

// BestVenueFor finds the venue minimizing the fee-adjusted effective price
// for filling qty on side: VWAP-to-fill on that venue's book, adjusted by
// its taker fee rate (liquidity-taking is assumed, since this routes a new
// order against resting liquidity).
func (a *Aggregator) BestVenueFor(side common.Side, qty decimal.Decimal) (venueID string, effectivePrice decimal.Decimal, err error) {
	found := false
	for id, b := range a.venues {
		vwap, vErr := b.VWAPToFill(qty, side)
		if vErr != nil {
			continue
		}
		fee := a.fees[id].TakerFee
		var eff decimal.Decimal
		if side == common.Buy {
			eff = vwap.Mul(decimal.NewFromInt(1).Add(fee))
		} else {
			eff = vwap.Mul(decimal.NewFromInt(1).Sub(fee))
		}
		if !found {
			venueID, effectivePrice, found = id, eff, true
			continue
		}
		// Buying wants the lowest effective price; selling wants the
		// highest effective proceeds.
		if (side == common.Buy && eff.LessThan(effectivePrice)) ||
			(side == common.Sell && eff.GreaterThan(effectivePrice)) {
			venueID, effectivePrice = id, eff
		}
	}
	if !found {
		return "", decimal.Zero, ErrNoVenueLiquidity
	}
	return venueID, effectivePrice, nil
}
