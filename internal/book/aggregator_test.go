package book

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradecore/internal/common"
)

func TestAggregator_CBBO(t *testing.T) {
	agg := NewAggregator("AAPL")

	venueA := common.Venue{VenueID: "A", TakerFee: d("0.0010")}
	venueB := common.Venue{VenueID: "B", TakerFee: d("0.0005")}

	bookA := New("AAPL", "A")
	var seqA uint64
	applyLevel(t, bookA, &seqA, common.Buy, "100.00", "10")
	applyLevel(t, bookA, &seqA, common.Sell, "100.50", "10")

	bookB := New("AAPL", "B")
	var seqB uint64
	applyLevel(t, bookB, &seqB, common.Buy, "100.10", "5")
	applyLevel(t, bookB, &seqB, common.Sell, "100.40", "5")

	agg.AddVenue(venueA, bookA)
	agg.AddVenue(venueB, bookB)

	bidPx, bidVenue, askPx, askVenue, ok := agg.CBBO()
	require.True(t, ok)
	assert.True(t, d("100.10").Equal(bidPx))
	assert.Equal(t, "B", bidVenue)
	assert.True(t, d("100.40").Equal(askPx))
	assert.Equal(t, "B", askVenue)
}

func TestAggregator_BestVenueFor_MinimizesEffectivePrice(t *testing.T) {
	agg := NewAggregator("AAPL")

	cheapFee := common.Venue{VenueID: "cheap-fee", TakerFee: d("0.0001")}
	tightSpread := common.Venue{VenueID: "tight-spread", TakerFee: d("0.0050")}

	cheapBook := New("AAPL", "cheap-fee")
	var seq1 uint64
	applyLevel(t, cheapBook, &seq1, common.Sell, "100.50", "10")

	tightBook := New("AAPL", "tight-spread")
	var seq2 uint64
	applyLevel(t, tightBook, &seq2, common.Sell, "100.00", "10")

	agg.AddVenue(cheapFee, cheapBook)
	agg.AddVenue(tightSpread, tightBook)

	venueID, _, err := agg.BestVenueFor(common.Buy, d("10"))
	require.NoError(t, err)
	// 100.00*(1+0.005)=100.50 vs 100.50*(1+0.0001)=100.51005 -> tight-spread wins
	assert.Equal(t, "tight-spread", venueID)
}

func TestAggregator_BestVenueFor_NoLiquidity(t *testing.T) {
	agg := NewAggregator("AAPL")
	v := common.Venue{VenueID: "only"}
	b := New("AAPL", "only")
	var seq uint64
	applyLevel(t, b, &seq, common.Sell, "100.00", "1")
	agg.AddVenue(v, b)

	_, _, err := agg.BestVenueFor(common.Buy, d("100"))
	assert.ErrorIs(t, err, ErrNoVenueLiquidity)
}
