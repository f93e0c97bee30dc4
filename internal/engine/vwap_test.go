package engine

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"tradecore/internal/common"
)

func TestVWAPSliceTarget_FlatProfileGeometricTaper(t *testing.T) {
	weights := flatVolumeProfile(10)
	remaining := decimal.NewFromInt(10000)

	target1 := vwapSliceTarget(remaining, weights[0], 0, 0.05, 0.30)
	assert.True(t, target1.Equal(decimal.NewFromInt(3000)), "got %s", target1)
	remaining = remaining.Sub(target1)

	target2 := vwapSliceTarget(remaining, weights[1], 0, 0.05, 0.30)
	assert.True(t, target2.Equal(decimal.NewFromInt(2100)), "got %s", target2)
	remaining = remaining.Sub(target2)

	target3 := vwapSliceTarget(remaining, weights[2], 0, 0.05, 0.30)
	assert.True(t, target3.Equal(decimal.NewFromInt(1470)), "got %s", target3)
}

func TestVWAPSliceCount_FloorsAtTen(t *testing.T) {
	start := mustParseTime("2026-01-15T09:30:00Z")
	end := mustParseTime("2026-01-15T09:35:00Z") // 5 minutes, well under 10 slices
	assert.Equal(t, 10, vwapSliceCount(start, end))
}

func TestVWAPSliceCount_ScalesWithDuration(t *testing.T) {
	start := mustParseTime("2026-01-15T09:30:00Z")
	end := mustParseTime("2026-01-15T11:30:00Z") // 2 hours = 120 minutes
	assert.Equal(t, 120, vwapSliceCount(start, end))
}

func TestVWAPSlicePrice_BuySkewsFromBidToAsk(t *testing.T) {
	bid, ask := decimal.NewFromFloat(100.00), decimal.NewFromFloat(100.50)

	passive := vwapSlicePrice(common.Buy, bid, ask, 0.0, nil)
	assert.True(t, passive.Equal(bid))

	aggressive := vwapSlicePrice(common.Buy, bid, ask, 1.0, nil)
	assert.True(t, aggressive.Equal(ask))
}

func TestVWAPSlicePrice_PriceLimitCaps(t *testing.T) {
	bid, ask := decimal.NewFromFloat(100.00), decimal.NewFromFloat(100.50)
	cap := decimal.NewFromFloat(100.10)

	price := vwapSlicePrice(common.Buy, bid, ask, 1.0, &cap)
	assert.True(t, price.Equal(cap))
}

func TestUShapedVolumeProfile_AveragesToOne(t *testing.T) {
	weights := uShapedVolumeProfile(10)
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	assert.InDelta(t, 10.0, sum, 1e-9)
	assert.Greater(t, weights[0], weights[len(weights)/2])
}
