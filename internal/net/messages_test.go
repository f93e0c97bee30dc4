package net

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradecore/internal/common"
)

func TestNewOrderSingle_RoundTrip(t *testing.T) {
	msg := NewOrderSingle{
		ClOrdID:  "abc-123",
		Symbol:   "AAPL",
		Side:     SideBuy,
		OrdType:  OrdTypeLimit,
		Price:    decimal.NewFromFloat(150.25),
		OrderQty: decimal.NewFromInt(100),
	}

	frame := EncodeFrame(MsgNewOrderSingle, msg.encode())
	decoded, err := DecodeFrame(frame)
	require.NoError(t, err)
	assert.Equal(t, MsgNewOrderSingle, decoded.Type)

	out, err := Decode(decoded)
	require.NoError(t, err)
	got, ok := out.(NewOrderSingle)
	require.True(t, ok)

	assert.Equal(t, msg.ClOrdID, got.ClOrdID)
	assert.Equal(t, msg.Symbol, got.Symbol)
	assert.Equal(t, msg.Side, got.Side)
	assert.Equal(t, msg.OrdType, got.OrdType)
	assert.True(t, msg.Price.Equal(got.Price))
	assert.True(t, msg.OrderQty.Equal(got.OrderQty))
}

func TestExecutionReport_RoundTripWithText(t *testing.T) {
	msg := ExecutionReport{
		ClOrdID:   "xyz-789",
		Symbol:    "MSFT",
		Side:      SideSell,
		OrdStatus: OrdStatusPartiallyFilled,
		LastPx:    decimal.NewFromFloat(310.5),
		LastQty:   decimal.NewFromInt(50),
		LeavesQty: decimal.NewFromInt(50),
		Text:      "partial fill",
	}

	frame := EncodeFrame(MsgExecutionReport, msg.encode())
	decoded, err := DecodeFrame(frame)
	require.NoError(t, err)

	out, err := Decode(decoded)
	require.NoError(t, err)
	got := out.(ExecutionReport)

	assert.Equal(t, msg.ClOrdID, got.ClOrdID)
	assert.Equal(t, msg.OrdStatus, got.OrdStatus)
	assert.Equal(t, msg.Text, got.Text)
	assert.True(t, msg.LastPx.Equal(got.LastPx))
}

func TestDecodeFrame_TooShortErrors(t *testing.T) {
	_, err := DecodeFrame([]byte{1})
	assert.ErrorIs(t, err, ErrFrameTooShort)
}

func TestSideFromCommon_RoundTrip(t *testing.T) {
	buySide, err := SideToCommon(SideFromCommon(common.Buy))
	require.NoError(t, err)
	assert.Equal(t, common.Buy, buySide)

	sellSide, err := SideToCommon(SideFromCommon(common.Sell))
	require.NoError(t, err)
	assert.Equal(t, common.Sell, sellSide)
}

func TestOrdStatusFromCommon_CollapsesPendingNewToNew(t *testing.T) {
	assert.Equal(t, OrdStatusNew, OrdStatusFromCommon(common.PendingNew))
	assert.Equal(t, OrdStatusNew, OrdStatusFromCommon(common.New))
	assert.Equal(t, OrdStatusCanceled, OrdStatusFromCommon(common.Expired))
}

func TestNewOrderSingleFromOrder_UsesZeroPriceForMarketOrders(t *testing.T) {
	order := common.NewOrder(common.Instrument{Symbol: "AAPL"}, common.Buy, common.Market, decimal.NewFromInt(10), common.DAY)
	msg := NewOrderSingleFromOrder(order)
	assert.True(t, msg.Price.IsZero())
	assert.Equal(t, OrdTypeMarket, msg.OrdType)
}
