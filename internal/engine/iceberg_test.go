package engine

import (
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tomb "gopkg.in/tomb.v2"

	"tradecore/internal/common"
)

func TestIcebergDisplaySize_ZeroVarianceMatchesConfigured(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	display := decimal.NewFromInt(100)
	remaining := decimal.NewFromInt(1000)

	size := icebergDisplaySize(display, 0, nil, nil, remaining, rng)
	assert.True(t, size.Equal(display), "got %s", size)
}

func TestIcebergDisplaySize_ClampedToRemaining(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	display := decimal.NewFromInt(100)
	remaining := decimal.NewFromInt(40)

	size := icebergDisplaySize(display, 0, nil, nil, remaining, rng)
	assert.True(t, size.Equal(remaining), "got %s", size)
}

func TestIcebergDisplaySize_RespectsMinAndMaxDisplay(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	display := decimal.NewFromInt(100)
	remaining := decimal.NewFromInt(1000)
	min := decimal.NewFromInt(20)
	max := decimal.NewFromInt(50)

	size := icebergDisplaySize(display, 0.05, &min, &max, remaining, rng)
	assert.True(t, size.LessThanOrEqual(max))
	assert.True(t, size.GreaterThanOrEqual(min))
}

func TestIcebergDisplaySize_JitterWithinVarianceBand(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	display := decimal.NewFromInt(100)
	remaining := decimal.NewFromInt(100000)

	for i := 0; i < 50; i++ {
		size := icebergDisplaySize(display, 0.05, nil, nil, remaining, rng)
		assert.True(t, size.GreaterThanOrEqual(decimal.NewFromFloat(95)))
		assert.True(t, size.LessThanOrEqual(decimal.NewFromFloat(105)))
	}
}

// TestEngine_SubmitIceberg_TenSlicesFillParentAtDisplayedPrice reproduces
// the documented scenario: a 1000-share LIMIT parent with a 100-share
// display and zero variance, each slice filling immediately at the limit
// price, expecting exactly ten child orders and a parent that ends up
// FILLED at an average price of 50.00.
func TestEngine_SubmitIceberg_TenSlicesFillParentAtDisplayedPrice(t *testing.T) {
	parent := common.NewOrder(common.Instrument{Symbol: "AAPL"}, common.Buy, common.Limit, decimal.NewFromInt(1000), common.DAY)
	limitPrice := decimal.NewFromFloat(50.00)
	parent.LimitPrice = &limitPrice

	var submittedChildren []*common.Order
	done := make(chan struct{})

	var eng *Engine
	eng = New(func(venueID string, order *common.Order) error {
		submittedChildren = append(submittedChildren, order)

		fill := common.Fill{
			OrderID:  order.OrderID,
			Venue:    venueID,
			Price:    decimal.NewFromFloat(50.00),
			Quantity: order.Quantity,
		}
		if err := eng.ApplyFill(parent.OrderID, fill, time.Now()); err != nil {
			return err
		}
		if parent.IsComplete() {
			close(done)
		}
		return nil
	})

	params := IcebergParams{
		DisplayQuantity: decimal.NewFromInt(100),
		Variance:        0,
		SliceTimeout:    time.Second,
	}
	bestPrice := func(common.Side) decimal.Decimal { return limitPrice }
	waitForFill := func(_ *tomb.Tomb, child *common.Order, _ time.Duration) bool {
		return child.IsComplete()
	}
	cancel := func(*common.Order) error { return nil }

	eng.SubmitIceberg(parent, "VENUE1", params, bestPrice, waitForFill, cancel)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("iceberg algorithm did not fill the parent in time")
	}
	require.NoError(t, eng.Shutdown())

	require.Len(t, submittedChildren, 10)
	for _, child := range submittedChildren {
		assert.Equal(t, common.Limit, child.Type)
		assert.True(t, child.Quantity.Equal(decimal.NewFromInt(100)), "got %s", child.Quantity)
		assert.Equal(t, common.Filled, child.Status)
	}

	assert.Equal(t, common.Filled, parent.Status)
	assert.True(t, parent.FilledQuantity.Equal(decimal.NewFromInt(1000)), "got %s", parent.FilledQuantity)
	assert.True(t, parent.AvgFillPrice.Equal(decimal.NewFromFloat(50.00)), "got %s", parent.AvgFillPrice)
}
