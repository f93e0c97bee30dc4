// Package net implements the venue-facing wire layer: a FIX-flavored
// message-type taxonomy and a TCP adapter that frames those messages for a
// live trading venue. Encoding here is a minimal framing scheme carrying the
// same tags and enumerations FIX uses; it is not a conformant FIX engine.
package net

import (
	"errors"

	"tradecore/internal/common"
)

// MsgType mirrors the FIX MsgType(35) tag values relevant to order entry and
// market data.
type MsgType byte

const (
	MsgLogon                          MsgType = 'A'
	MsgLogout                         MsgType = '5'
	MsgNewOrderSingle                 MsgType = 'D'
	MsgOrderCancelRequest             MsgType = 'F'
	MsgMarketDataRequest              MsgType = 'V'
	MsgHeartbeat                      MsgType = '0'
	MsgExecutionReport                MsgType = '8'
	MsgOrderCancelReject              MsgType = '9'
	MsgMarketDataSnapshotFullRefresh  MsgType = 'W'
	MsgMarketDataIncrementalRefresh   MsgType = 'X'
	MsgReject                         MsgType = '3'
)

// Side mirrors FIX tag 54.
type Side byte

const (
	SideBuy  Side = '1'
	SideSell Side = '2'
)

// OrdType mirrors FIX tag 40.
type OrdType byte

const (
	OrdTypeMarket OrdType = '1'
	OrdTypeLimit  OrdType = '2'
)

// OrdStatus mirrors FIX tag 39.
type OrdStatus byte

const (
	OrdStatusNew             OrdStatus = '0'
	OrdStatusPartiallyFilled OrdStatus = '1'
	OrdStatusFilled          OrdStatus = '2'
	OrdStatusCanceled        OrdStatus = '4'
	OrdStatusRejected        OrdStatus = '8'
)

var (
	ErrUnknownMessageType = errors.New("net: unknown message type")
	ErrFrameTooShort      = errors.New("net: frame too short")
	ErrUnknownSide        = errors.New("net: unknown side code")
)

// SideFromCommon maps the domain Side to its FIX wire code.
func SideFromCommon(s common.Side) Side {
	if s == common.Sell {
		return SideSell
	}
	return SideBuy
}

// SideToCommon maps a wire Side code back to the domain Side.
func SideToCommon(s Side) (common.Side, error) {
	switch s {
	case SideBuy:
		return common.Buy, nil
	case SideSell:
		return common.Sell, nil
	default:
		return common.Buy, ErrUnknownSide
	}
}

// OrdTypeFromCommon maps the domain OrderType to its FIX wire code.
func OrdTypeFromCommon(t common.OrderType) OrdType {
	if t == common.Limit {
		return OrdTypeLimit
	}
	return OrdTypeMarket
}

// OrdStatusFromCommon maps the domain OrderStatus to its FIX wire code. The
// finer-grained PENDING_NEW/EXPIRED states collapse onto NEW/CANCELED, which
// is the taxonomy's resolution.
func OrdStatusFromCommon(s common.OrderStatus) OrdStatus {
	switch s {
	case common.PendingNew, common.New:
		return OrdStatusNew
	case common.PartiallyFilled:
		return OrdStatusPartiallyFilled
	case common.Filled:
		return OrdStatusFilled
	case common.Canceled, common.Expired:
		return OrdStatusCanceled
	case common.Rejected:
		return OrdStatusRejected
	case common.PendingCancel:
		// The taxonomy has no dedicated pending-cancel code (spec.md §6);
		// the order is still resting from the venue's perspective until
		// the cancel is acknowledged or rejected.
		return OrdStatusNew
	default:
		return OrdStatusNew
	}
}
