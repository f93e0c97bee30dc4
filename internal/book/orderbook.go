// Package book implements the L2 limit-order-book: a sorted two-sided
// price-level map per (instrument, venue) supporting full-snapshot and
// incremental updates, and the derived quantities strategies and the
// microstructure analyzer read off it.
package book

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/tidwall/btree"

	"tradecore/internal/common"
)

var (
	// ErrBookCrossed is returned when applying a snapshot or incremental
	// update would leave best_bid >= best_ask on both sides non-empty.
	ErrBookCrossed = errors.New("book: crossed book")
	// ErrSequenceGap is returned when an incremental update's sequence
	// number does not strictly follow the book's current sequence number.
	ErrSequenceGap = errors.New("book: sequence gap")
	// ErrInsufficientLiquidity is returned by VWAPToFill when the book
	// cannot satisfy the requested quantity.
	ErrInsufficientLiquidity = errors.New("book: insufficient liquidity")
)

// level is the btree element: a price plus its aggregate size and order
// count. A level with Size == 0 must never be stored — callers delete it.
type level struct {
	price      decimal.Decimal
	size       decimal.Decimal
	orderCount int
}

type levels = btree.BTreeG[*level]

// OrderBook is the two-sided price-level map for one (instrument, venue).
// Bids are sorted descending by price, asks ascending, giving O(log N)
// upsert/delete and O(1) top-of-book via btree's Min.
type OrderBook struct {
	Instrument string
	Venue      string

	bids *levels
	asks *levels

	sequenceNumber uint64
}

// New constructs an empty OrderBook for (instrument, venue).
func New(instrument, venue string) *OrderBook {
	bids := btree.NewBTreeG(func(a, b *level) bool {
		return a.price.GreaterThan(b.price)
	})
	asks := btree.NewBTreeG(func(a, b *level) bool {
		return a.price.LessThan(b.price)
	})
	return &OrderBook{
		Instrument: instrument,
		Venue:      venue,
		bids:       bids,
		asks:       asks,
	}
}

func sideLevels(b *OrderBook, side common.Side) *levels {
	if side == common.Buy {
		return b.bids
	}
	return b.asks
}

// ApplyUpdate applies one incremental update: ADD/UPDATE set the level's
// aggregate size (and order count when supplied), DELETE or a zero size
// removes the level. seq must strictly increase the book's sequence
// number or ErrSequenceGap is returned; the book is left unmutated on
// any error.
func (b *OrderBook) ApplyUpdate(side common.Side, price, size decimal.Decimal, orderCount int, action common.BookAction, seq uint64) error {
	if seq <= b.sequenceNumber && b.sequenceNumber != 0 {
		return fmt.Errorf("%w: got %d, have %d", ErrSequenceGap, seq, b.sequenceNumber)
	}

	target := sideLevels(b, side)
	key := &level{price: price}
	old, hadOld := target.Get(key)

	if action == common.Delete || size.Sign() <= 0 {
		target.Delete(key)
	} else {
		target.Set(&level{price: price, size: size, orderCount: orderCount})
	}

	if err := b.checkUncrossed(); err != nil {
		// Restore the level as it was before this update.
		if hadOld {
			target.Set(old)
		} else {
			target.Delete(key)
		}
		return err
	}
	b.sequenceNumber = seq
	return nil
}

func (b *OrderBook) checkUncrossed() error {
	bid, bidOK := b.bids.Min()
	ask, askOK := b.asks.Min()
	if bidOK && askOK && !bid.price.LessThan(ask.price) {
		return fmt.Errorf("%w: bid=%s ask=%s", ErrBookCrossed, bid.price, ask.price)
	}
	return nil
}

// LoadSnapshot atomically replaces the book's state with the given levels.
// A crossed snapshot is rejected and leaves the prior state intact.
func (b *OrderBook) LoadSnapshot(bids, asks []common.OrderBookLevel, seq uint64) error {
	newBids := btree.NewBTreeG(func(a, c *level) bool { return a.price.GreaterThan(c.price) })
	newAsks := btree.NewBTreeG(func(a, c *level) bool { return a.price.LessThan(c.price) })

	for _, lv := range bids {
		if lv.Size.Sign() <= 0 {
			continue
		}
		newBids.Set(&level{price: lv.Price, size: lv.Size, orderCount: lv.OrderCount})
	}
	for _, lv := range asks {
		if lv.Size.Sign() <= 0 {
			continue
		}
		newAsks.Set(&level{price: lv.Price, size: lv.Size, orderCount: lv.OrderCount})
	}

	if bid, ok := newBids.Min(); ok {
		if ask, ok := newAsks.Min(); ok && !bid.price.LessThan(ask.price) {
			return fmt.Errorf("%w: bid=%s ask=%s", ErrBookCrossed, bid.price, ask.price)
		}
	}

	b.bids = newBids
	b.asks = newAsks
	b.sequenceNumber = seq
	log.Debug().Str("instrument", b.Instrument).Str("venue", b.Venue).Uint64("seq", seq).Msg("book: snapshot loaded")
	return nil
}

// BestBid returns the top bid level.
func (b *OrderBook) BestBid() (common.OrderBookLevel, bool) {
	lv, ok := b.bids.Min()
	if !ok {
		return common.OrderBookLevel{}, false
	}
	return common.OrderBookLevel{Price: lv.price, Size: lv.size, OrderCount: lv.orderCount}, true
}

// BestAsk returns the top ask level.
func (b *OrderBook) BestAsk() (common.OrderBookLevel, bool) {
	lv, ok := b.asks.Min()
	if !ok {
		return common.OrderBookLevel{}, false
	}
	return common.OrderBookLevel{Price: lv.price, Size: lv.size, OrderCount: lv.orderCount}, true
}

// MidPrice is the arithmetic mean of best bid and best ask; false if
// either side is empty.
func (b *OrderBook) MidPrice() (decimal.Decimal, bool) {
	bid, ok := b.BestBid()
	if !ok {
		return decimal.Zero, false
	}
	ask, ok := b.BestAsk()
	if !ok {
		return decimal.Zero, false
	}
	return bid.Price.Add(ask.Price).Div(decimal.NewFromInt(2)), true
}

// Spread is best ask minus best bid; false if either side is empty.
func (b *OrderBook) Spread() (decimal.Decimal, bool) {
	bid, ok := b.BestBid()
	if !ok {
		return decimal.Zero, false
	}
	ask, ok := b.BestAsk()
	if !ok {
		return decimal.Zero, false
	}
	return ask.Price.Sub(bid.Price), true
}

// Microprice is a size-weighted mid that leans toward the side with less
// resting size, anticipating short-horizon price movement from visible
// imbalance: (ask_size*bid_price + bid_size*ask_price) / (bid_size+ask_size).
func (b *OrderBook) Microprice() (decimal.Decimal, bool) {
	bid, ok := b.BestBid()
	if !ok {
		return decimal.Zero, false
	}
	ask, ok := b.BestAsk()
	if !ok {
		return decimal.Zero, false
	}
	denom := bid.Size.Add(ask.Size)
	if denom.Sign() == 0 {
		return decimal.Zero, false
	}
	num := ask.Size.Mul(bid.Price).Add(bid.Size.Mul(ask.Price))
	return num.Div(denom), true
}

// OrderBookImbalance is (Σbid_sizes − Σask_sizes) / (Σbid_sizes + Σask_sizes),
// in [-1, 1], and 0 when both sides are empty.
func (b *OrderBook) OrderBookImbalance() decimal.Decimal {
	bidTotal := b.totalSize(b.bids)
	askTotal := b.totalSize(b.asks)
	denom := bidTotal.Add(askTotal)
	if denom.Sign() == 0 {
		return decimal.Zero
	}
	return bidTotal.Sub(askTotal).Div(denom)
}

// TotalBidLiquidity is the sum of resting size across all bid levels.
func (b *OrderBook) TotalBidLiquidity() decimal.Decimal {
	return b.totalSize(b.bids)
}

// TotalAskLiquidity is the sum of resting size across all ask levels.
func (b *OrderBook) TotalAskLiquidity() decimal.Decimal {
	return b.totalSize(b.asks)
}

func (b *OrderBook) totalSize(t *levels) decimal.Decimal {
	total := decimal.Zero
	t.Scan(func(lv *level) bool {
		total = total.Add(lv.size)
		return true
	})
	return total
}

// DepthAtDistance sums resting size on side within bps basis points of
// mid. threshold = mid*(1 + bps/10000) for asks, mid*(1 - bps/10000) for
// bids (levels beyond the threshold are excluded).
func (b *OrderBook) DepthAtDistance(side common.Side, bps decimal.Decimal) (decimal.Decimal, bool) {
	mid, ok := b.MidPrice()
	if !ok {
		return decimal.Zero, false
	}
	factor := bps.Div(decimal.NewFromInt(10000))
	var threshold decimal.Decimal
	if side == common.Buy {
		threshold = mid.Mul(decimal.NewFromInt(1).Sub(factor))
	} else {
		threshold = mid.Mul(decimal.NewFromInt(1).Add(factor))
	}

	total := decimal.Zero
	t := sideLevels(b, side)
	t.Scan(func(lv *level) bool {
		if side == common.Buy {
			if lv.price.LessThan(threshold) {
				return false // bids iterate descending: past threshold, stop
			}
		} else {
			if lv.price.GreaterThan(threshold) {
				return false // asks iterate ascending: past threshold, stop
			}
		}
		total = total.Add(lv.size)
		return true
	})
	return total, true
}

// VWAPToFill walks the opposite side of the book from the top, consuming
// resting size until qty is satisfied, and returns the volume-weighted
// average fill price. Returns ErrInsufficientLiquidity if the book lacks
// the depth to fill qty.
func (b *OrderBook) VWAPToFill(qty decimal.Decimal, side common.Side) (decimal.Decimal, error) {
	opposite := sideLevels(b, side.Opposite())
	remaining := qty
	notional := decimal.Zero

	opposite.Scan(func(lv *level) bool {
		if remaining.Sign() <= 0 {
			return false
		}
		take := decimal.Min(remaining, lv.size)
		notional = notional.Add(take.Mul(lv.price))
		remaining = remaining.Sub(take)
		return true
	})

	if remaining.Sign() > 0 {
		return decimal.Zero, ErrInsufficientLiquidity
	}
	return notional.Div(qty), nil
}

// MarketImpactEstimate is |VWAP - top_of_opposite_side| / top_of_opposite_side
// for a hypothetical order of qty on side.
func (b *OrderBook) MarketImpactEstimate(qty decimal.Decimal, side common.Side) (decimal.Decimal, error) {
	vwap, err := b.VWAPToFill(qty, side)
	if err != nil {
		return decimal.Zero, err
	}
	var top common.OrderBookLevel
	var ok bool
	if side == common.Buy {
		top, ok = b.BestAsk()
	} else {
		top, ok = b.BestBid()
	}
	if !ok {
		return decimal.Zero, ErrInsufficientLiquidity
	}
	return vwap.Sub(top.Price).Abs().Div(top.Price), nil
}

// SequenceNumber is the book's current strictly-increasing update counter.
func (b *OrderBook) SequenceNumber() uint64 {
	return b.sequenceNumber
}

// Snapshot captures the book's current state immutably.
func (b *OrderBook) Snapshot(ts int64) common.OrderBookSnapshot {
	var bids, asks []common.OrderBookLevel
	b.bids.Scan(func(lv *level) bool {
		bids = append(bids, common.OrderBookLevel{Price: lv.price, Size: lv.size, OrderCount: lv.orderCount})
		return true
	})
	b.asks.Scan(func(lv *level) bool {
		asks = append(asks, common.OrderBookLevel{Price: lv.price, Size: lv.size, OrderCount: lv.orderCount})
		return true
	})
	return common.OrderBookSnapshot{
		Instrument:     b.Instrument,
		Venue:          b.Venue,
		Bids:           bids,
		Asks:           asks,
		SequenceNumber: b.sequenceNumber,
		Timestamp:      time.UnixMicro(ts),
	}
}
