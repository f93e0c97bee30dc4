package book

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradecore/internal/common"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

// applyLevel is a test helper around ApplyUpdate that tracks sequence
// numbers for the caller, mirroring how a feed handler would drive updates.
func applyLevel(t *testing.T, b *OrderBook, seq *uint64, side common.Side, price, size string) {
	t.Helper()
	*seq++
	require.NoError(t, b.ApplyUpdate(side, d(price), d(size), 1, common.Add, *seq))
}

func TestOrderBook_BidAskUpdateDerivedMetrics(t *testing.T) {
	b := New("AAPL", "NASDAQ")
	var seq uint64

	applyLevel(t, b, &seq, common.Buy, "100.00", "10")
	applyLevel(t, b, &seq, common.Buy, "99.50", "20")
	applyLevel(t, b, &seq, common.Sell, "100.50", "15")
	applyLevel(t, b, &seq, common.Sell, "101.00", "25")

	bid, ok := b.BestBid()
	require.True(t, ok)
	assert.True(t, d("100.00").Equal(bid.Price))

	ask, ok := b.BestAsk()
	require.True(t, ok)
	assert.True(t, d("100.50").Equal(ask.Price))

	mid, ok := b.MidPrice()
	require.True(t, ok)
	assert.True(t, d("100.25").Equal(mid), "mid=%s", mid)

	spread, ok := b.Spread()
	require.True(t, ok)
	assert.True(t, d("0.50").Equal(spread), "spread=%s", spread)

	micro, ok := b.Microprice()
	require.True(t, ok)
	assert.True(t, d("100.20").Equal(micro), "microprice=%s", micro)

	imbalance := b.OrderBookImbalance()
	expected := d("30").Sub(d("40")).Div(d("70"))
	assert.True(t, expected.Equal(imbalance), "imbalance=%s want=%s", imbalance, expected)
}

func TestOrderBook_ZeroSizeUpdateRemovesLevel(t *testing.T) {
	b := New("AAPL", "NASDAQ")
	var seq uint64

	applyLevel(t, b, &seq, common.Buy, "100.00", "10")
	_, ok := b.BestBid()
	require.True(t, ok)

	seq++
	require.NoError(t, b.ApplyUpdate(common.Buy, d("100.00"), decimal.Zero, 0, common.Update, seq))
	_, ok = b.BestBid()
	assert.False(t, ok)
}

func TestOrderBook_CrossedUpdateRejected(t *testing.T) {
	b := New("AAPL", "NASDAQ")
	var seq uint64

	applyLevel(t, b, &seq, common.Buy, "100.00", "10")
	applyLevel(t, b, &seq, common.Sell, "100.50", "10")

	seq++
	err := b.ApplyUpdate(common.Buy, d("101.00"), d("5"), 1, common.Add, seq)
	assert.ErrorIs(t, err, ErrBookCrossed)

	// The crossing bid must not have been retained.
	bid, ok := b.BestBid()
	require.True(t, ok)
	assert.True(t, d("100.00").Equal(bid.Price))
}

func TestOrderBook_SequenceGapRejected(t *testing.T) {
	b := New("AAPL", "NASDAQ")
	require.NoError(t, b.ApplyUpdate(common.Buy, d("100.00"), d("10"), 1, common.Add, 5))

	err := b.ApplyUpdate(common.Buy, d("99.00"), d("10"), 1, common.Add, 5)
	assert.ErrorIs(t, err, ErrSequenceGap)
}

func TestOrderBook_VWAPToFill(t *testing.T) {
	b := New("AAPL", "NASDAQ")
	var seq uint64
	applyLevel(t, b, &seq, common.Sell, "100.00", "10")
	applyLevel(t, b, &seq, common.Sell, "101.00", "10")

	vwap, err := b.VWAPToFill(d("15"), common.Buy)
	require.NoError(t, err)
	// 10@100 + 5@101 = 1505 / 15 = 100.333...
	expected := d("10").Mul(d("100.00")).Add(d("5").Mul(d("101.00"))).Div(d("15"))
	assert.True(t, expected.Equal(vwap))
}

func TestOrderBook_VWAPToFill_InsufficientLiquidity(t *testing.T) {
	b := New("AAPL", "NASDAQ")
	var seq uint64
	applyLevel(t, b, &seq, common.Sell, "100.00", "5")

	_, err := b.VWAPToFill(d("10"), common.Buy)
	assert.ErrorIs(t, err, ErrInsufficientLiquidity)
}

func TestOrderBook_DepthAtDistance(t *testing.T) {
	b := New("AAPL", "NASDAQ")
	var seq uint64
	applyLevel(t, b, &seq, common.Buy, "100.00", "10")
	applyLevel(t, b, &seq, common.Sell, "100.10", "10")
	// mid = 100.05; 50bps below mid = 100.05*0.995 = 99.54975
	applyLevel(t, b, &seq, common.Buy, "99.00", "50")

	depth, ok := b.DepthAtDistance(common.Buy, d("50"))
	require.True(t, ok)
	assert.True(t, d("10").Equal(depth), "depth=%s", depth)
}

func TestOrderBook_LoadSnapshot_RejectsCrossed(t *testing.T) {
	b := New("AAPL", "NASDAQ")
	err := b.LoadSnapshot(
		[]common.OrderBookLevel{{Price: d("101.00"), Size: d("10"), OrderCount: 1}},
		[]common.OrderBookLevel{{Price: d("100.00"), Size: d("10"), OrderCount: 1}},
		1,
	)
	assert.ErrorIs(t, err, ErrBookCrossed)

	// Prior (empty) state must remain.
	_, ok := b.BestBid()
	assert.False(t, ok)
}

func TestOrderBook_Snapshot_RoundTrip(t *testing.T) {
	b := New("AAPL", "NASDAQ")
	var seq uint64
	applyLevel(t, b, &seq, common.Buy, "100.00", "10")
	applyLevel(t, b, &seq, common.Sell, "100.50", "15")

	snap := b.Snapshot(1_000_000)
	assert.Equal(t, "AAPL", snap.Instrument)
	require.Len(t, snap.Bids, 1)
	require.Len(t, snap.Asks, 1)
	assert.True(t, d("100.00").Equal(snap.Bids[0].Price))
	assert.True(t, d("100.50").Equal(snap.Asks[0].Price))
}
