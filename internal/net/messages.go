package net

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"tradecore/internal/common"
)

// Field widths for fixed-size string fields in message bodies. ClOrdID and Symbol are
// truncated or zero-padded to these lengths, matching the truncate-or-pad
// convention used throughout this wire layer.
const (
	clOrdIDLen = 36 // uuid string length
	symbolLen  = 16
)

// Frame is the decoded envelope shared by every message on the wire: a type
// byte followed by a type-specific body.
type Frame struct {
	Type MsgType
	Body []byte
}

func packString(dst []byte, s string) {
	copy(dst, s)
}

func unpackString(src []byte) string {
	n := 0
	for n < len(src) && src[n] != 0 {
		n++
	}
	return string(src[:n])
}

// Logon opens a FIX session with the venue.
type Logon struct {
	SenderCompID string
	HeartBtInt   time.Duration
}

// Logout closes a FIX session.
type Logout struct {
	Text string
}

// Heartbeat keeps a session alive; TestReqID is empty outside a test request
// round trip.
type Heartbeat struct {
	TestReqID string
}

// NewOrderSingle is the outbound order-entry message (tag 35=D).
type NewOrderSingle struct {
	ClOrdID  string
	Symbol   string
	Side     Side
	OrdType  OrdType
	Price    decimal.Decimal // zero for market orders
	OrderQty decimal.Decimal
}

const newOrderSingleBodyLen = clOrdIDLen + symbolLen + 1 + 1 + 8 + 8

func (m NewOrderSingle) encode() []byte {
	buf := make([]byte, newOrderSingleBodyLen)
	packString(buf[0:clOrdIDLen], m.ClOrdID)
	packString(buf[clOrdIDLen:clOrdIDLen+symbolLen], m.Symbol)
	off := clOrdIDLen + symbolLen
	buf[off] = byte(m.Side)
	buf[off+1] = byte(m.OrdType)
	price, _ := m.Price.Float64()
	binary.BigEndian.PutUint64(buf[off+2:off+10], math.Float64bits(price))
	qty, _ := m.OrderQty.Float64()
	binary.BigEndian.PutUint64(buf[off+10:off+18], math.Float64bits(qty))
	return buf
}

func decodeNewOrderSingle(body []byte) (NewOrderSingle, error) {
	if len(body) < newOrderSingleBodyLen {
		return NewOrderSingle{}, ErrFrameTooShort
	}
	off := clOrdIDLen + symbolLen
	return NewOrderSingle{
		ClOrdID:  unpackString(body[0:clOrdIDLen]),
		Symbol:   unpackString(body[clOrdIDLen : clOrdIDLen+symbolLen]),
		Side:     Side(body[off]),
		OrdType:  OrdType(body[off+1]),
		Price:    decimal.NewFromFloat(math.Float64frombits(binary.BigEndian.Uint64(body[off+2 : off+10]))),
		OrderQty: decimal.NewFromFloat(math.Float64frombits(binary.BigEndian.Uint64(body[off+10 : off+18]))),
	}, nil
}

// NewOrderSingleFromOrder builds the outbound representation of a domain order.
func NewOrderSingleFromOrder(o *common.Order) NewOrderSingle {
	price := decimal.Zero
	if o.LimitPrice != nil {
		price = *o.LimitPrice
	}
	return NewOrderSingle{
		ClOrdID:  o.OrderID,
		Symbol:   o.Instrument.Symbol,
		Side:     SideFromCommon(o.Side),
		OrdType:  OrdTypeFromCommon(o.Type),
		Price:    price,
		OrderQty: o.Quantity,
	}
}

// OrderCancelRequest is the outbound cancel message (tag 35=F).
type OrderCancelRequest struct {
	OrigClOrdID string
	ClOrdID     string
	Symbol      string
}

const orderCancelRequestBodyLen = clOrdIDLen + clOrdIDLen + symbolLen

func (m OrderCancelRequest) encode() []byte {
	buf := make([]byte, orderCancelRequestBodyLen)
	packString(buf[0:clOrdIDLen], m.OrigClOrdID)
	packString(buf[clOrdIDLen:2*clOrdIDLen], m.ClOrdID)
	packString(buf[2*clOrdIDLen:], m.Symbol)
	return buf
}

func decodeOrderCancelRequest(body []byte) (OrderCancelRequest, error) {
	if len(body) < orderCancelRequestBodyLen {
		return OrderCancelRequest{}, ErrFrameTooShort
	}
	return OrderCancelRequest{
		OrigClOrdID: unpackString(body[0:clOrdIDLen]),
		ClOrdID:     unpackString(body[clOrdIDLen : 2*clOrdIDLen]),
		Symbol:      unpackString(body[2*clOrdIDLen:]),
	}, nil
}

// MarketDataRequest subscribes to book or trade updates for a symbol.
type MarketDataRequest struct {
	MDReqID string
	Symbol  string
}

const marketDataRequestBodyLen = clOrdIDLen + symbolLen

func (m MarketDataRequest) encode() []byte {
	buf := make([]byte, marketDataRequestBodyLen)
	packString(buf[0:clOrdIDLen], m.MDReqID)
	packString(buf[clOrdIDLen:], m.Symbol)
	return buf
}

func decodeMarketDataRequest(body []byte) (MarketDataRequest, error) {
	if len(body) < marketDataRequestBodyLen {
		return MarketDataRequest{}, ErrFrameTooShort
	}
	return MarketDataRequest{
		MDReqID: unpackString(body[0:clOrdIDLen]),
		Symbol:  unpackString(body[clOrdIDLen:]),
	}, nil
}

// ExecutionReport is the inbound fill/ack/reject notification (tag 35=8).
type ExecutionReport struct {
	ClOrdID   string
	Symbol    string
	Side      Side
	OrdStatus OrdStatus
	LastPx    decimal.Decimal
	LastQty   decimal.Decimal
	LeavesQty decimal.Decimal
	Text      string
}

const executionReportFixedLen = clOrdIDLen + symbolLen + 1 + 1 + 8 + 8 + 8 + 2

func (m ExecutionReport) encode() []byte {
	textBytes := []byte(m.Text)
	buf := make([]byte, executionReportFixedLen+len(textBytes))
	packString(buf[0:clOrdIDLen], m.ClOrdID)
	packString(buf[clOrdIDLen:clOrdIDLen+symbolLen], m.Symbol)
	off := clOrdIDLen + symbolLen
	buf[off] = byte(m.Side)
	buf[off+1] = byte(m.OrdStatus)
	lastPx, _ := m.LastPx.Float64()
	binary.BigEndian.PutUint64(buf[off+2:off+10], math.Float64bits(lastPx))
	lastQty, _ := m.LastQty.Float64()
	binary.BigEndian.PutUint64(buf[off+10:off+18], math.Float64bits(lastQty))
	leavesQty, _ := m.LeavesQty.Float64()
	binary.BigEndian.PutUint64(buf[off+18:off+26], math.Float64bits(leavesQty))
	binary.BigEndian.PutUint16(buf[off+26:off+28], uint16(len(textBytes)))
	copy(buf[executionReportFixedLen:], textBytes)
	return buf
}

func decodeExecutionReport(body []byte) (ExecutionReport, error) {
	if len(body) < executionReportFixedLen {
		return ExecutionReport{}, ErrFrameTooShort
	}
	off := clOrdIDLen + symbolLen
	textLen := int(binary.BigEndian.Uint16(body[off+26 : off+28]))
	if len(body) < executionReportFixedLen+textLen {
		return ExecutionReport{}, ErrFrameTooShort
	}
	return ExecutionReport{
		ClOrdID:   unpackString(body[0:clOrdIDLen]),
		Symbol:    unpackString(body[clOrdIDLen : clOrdIDLen+symbolLen]),
		Side:      Side(body[off]),
		OrdStatus: OrdStatus(body[off+1]),
		LastPx:    decimal.NewFromFloat(math.Float64frombits(binary.BigEndian.Uint64(body[off+2 : off+10]))),
		LastQty:   decimal.NewFromFloat(math.Float64frombits(binary.BigEndian.Uint64(body[off+10 : off+18]))),
		LeavesQty: decimal.NewFromFloat(math.Float64frombits(binary.BigEndian.Uint64(body[off+18 : off+26]))),
		Text:      string(body[executionReportFixedLen : executionReportFixedLen+textLen]),
	}, nil
}

// OrderCancelReject is the inbound cancel-request rejection (tag 35=9).
type OrderCancelReject struct {
	ClOrdID string
	Text    string
}

// MarketDataSnapshotFullRefresh carries a full book snapshot (tag 35=W).
type MarketDataSnapshotFullRefresh struct {
	Symbol   string
	BidPrice decimal.Decimal
	BidSize  decimal.Decimal
	AskPrice decimal.Decimal
	AskSize  decimal.Decimal
}

// MarketDataIncrementalRefresh carries a single book-level delta (tag 35=X).
type MarketDataIncrementalRefresh struct {
	Symbol string
	Side   Side
	Price  decimal.Decimal
	Size   decimal.Decimal
}

// Reject is the inbound session-level rejection (tag 35=3).
type Reject struct {
	RefSeqNum int
	Text      string
}

const (
	logonBodyLen  = 32 + 4
	textLenPrefix = 2
)

func (m Logon) encode() []byte {
	buf := make([]byte, logonBodyLen)
	packString(buf[0:32], m.SenderCompID)
	binary.BigEndian.PutUint32(buf[32:36], uint32(m.HeartBtInt/time.Second))
	return buf
}

func decodeLogon(body []byte) (Logon, error) {
	if len(body) < logonBodyLen {
		return Logon{}, ErrFrameTooShort
	}
	return Logon{
		SenderCompID: unpackString(body[0:32]),
		HeartBtInt:   time.Duration(binary.BigEndian.Uint32(body[32:36])) * time.Second,
	}, nil
}

func encodeText(text string) []byte {
	b := []byte(text)
	buf := make([]byte, textLenPrefix+len(b))
	binary.BigEndian.PutUint16(buf[0:textLenPrefix], uint16(len(b)))
	copy(buf[textLenPrefix:], b)
	return buf
}

func decodeText(body []byte) (string, error) {
	if len(body) < textLenPrefix {
		return "", ErrFrameTooShort
	}
	n := int(binary.BigEndian.Uint16(body[0:textLenPrefix]))
	if len(body) < textLenPrefix+n {
		return "", ErrFrameTooShort
	}
	return string(body[textLenPrefix : textLenPrefix+n]), nil
}

func (m Logout) encode() []byte       { return encodeText(m.Text) }
func (m Heartbeat) encode() []byte    { return encodeText(m.TestReqID) }
func (m OrderCancelReject) encode() []byte {
	idBytes := make([]byte, clOrdIDLen)
	packString(idBytes, m.ClOrdID)
	return append(idBytes, encodeText(m.Text)...)
}

func decodeOrderCancelReject(body []byte) (OrderCancelReject, error) {
	if len(body) < clOrdIDLen {
		return OrderCancelReject{}, ErrFrameTooShort
	}
	text, err := decodeText(body[clOrdIDLen:])
	if err != nil {
		return OrderCancelReject{}, err
	}
	return OrderCancelReject{ClOrdID: unpackString(body[0:clOrdIDLen]), Text: text}, nil
}

const bookLevelBodyLen = symbolLen + 8 + 8 + 8 + 8

func (m MarketDataSnapshotFullRefresh) encode() []byte {
	buf := make([]byte, bookLevelBodyLen)
	packString(buf[0:symbolLen], m.Symbol)
	putDecimal := func(off int, d decimal.Decimal) {
		v, _ := d.Float64()
		binary.BigEndian.PutUint64(buf[off:off+8], math.Float64bits(v))
	}
	putDecimal(symbolLen, m.BidPrice)
	putDecimal(symbolLen+8, m.BidSize)
	putDecimal(symbolLen+16, m.AskPrice)
	putDecimal(symbolLen+24, m.AskSize)
	return buf
}

func decodeMarketDataSnapshotFullRefresh(body []byte) (MarketDataSnapshotFullRefresh, error) {
	if len(body) < bookLevelBodyLen {
		return MarketDataSnapshotFullRefresh{}, ErrFrameTooShort
	}
	getDecimal := func(off int) decimal.Decimal {
		return decimal.NewFromFloat(math.Float64frombits(binary.BigEndian.Uint64(body[off : off+8])))
	}
	return MarketDataSnapshotFullRefresh{
		Symbol:   unpackString(body[0:symbolLen]),
		BidPrice: getDecimal(symbolLen),
		BidSize:  getDecimal(symbolLen + 8),
		AskPrice: getDecimal(symbolLen + 16),
		AskSize:  getDecimal(symbolLen + 24),
	}, nil
}

const incrementalRefreshBodyLen = symbolLen + 1 + 8 + 8

func (m MarketDataIncrementalRefresh) encode() []byte {
	buf := make([]byte, incrementalRefreshBodyLen)
	packString(buf[0:symbolLen], m.Symbol)
	buf[symbolLen] = byte(m.Side)
	price, _ := m.Price.Float64()
	binary.BigEndian.PutUint64(buf[symbolLen+1:symbolLen+9], math.Float64bits(price))
	size, _ := m.Size.Float64()
	binary.BigEndian.PutUint64(buf[symbolLen+9:symbolLen+17], math.Float64bits(size))
	return buf
}

func decodeMarketDataIncrementalRefresh(body []byte) (MarketDataIncrementalRefresh, error) {
	if len(body) < incrementalRefreshBodyLen {
		return MarketDataIncrementalRefresh{}, ErrFrameTooShort
	}
	return MarketDataIncrementalRefresh{
		Symbol: unpackString(body[0:symbolLen]),
		Side:   Side(body[symbolLen]),
		Price:  decimal.NewFromFloat(math.Float64frombits(binary.BigEndian.Uint64(body[symbolLen+1 : symbolLen+9]))),
		Size:   decimal.NewFromFloat(math.Float64frombits(binary.BigEndian.Uint64(body[symbolLen+9 : symbolLen+17]))),
	}, nil
}

func (m Reject) encode() []byte {
	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, uint32(m.RefSeqNum))
	return append(header, encodeText(m.Text)...)
}

func decodeReject(body []byte) (Reject, error) {
	if len(body) < 4 {
		return Reject{}, ErrFrameTooShort
	}
	text, err := decodeText(body[4:])
	if err != nil {
		return Reject{}, err
	}
	return Reject{RefSeqNum: int(binary.BigEndian.Uint32(body[0:4])), Text: text}, nil
}

// Decode classifies a frame's body into its concrete message type.
func Decode(f Frame) (any, error) {
	switch f.Type {
	case MsgLogon:
		return decodeLogon(f.Body)
	case MsgLogout:
		text, err := decodeText(f.Body)
		return Logout{Text: text}, err
	case MsgHeartbeat:
		text, err := decodeText(f.Body)
		return Heartbeat{TestReqID: text}, err
	case MsgNewOrderSingle:
		return decodeNewOrderSingle(f.Body)
	case MsgOrderCancelRequest:
		return decodeOrderCancelRequest(f.Body)
	case MsgMarketDataRequest:
		return decodeMarketDataRequest(f.Body)
	case MsgExecutionReport:
		return decodeExecutionReport(f.Body)
	case MsgOrderCancelReject:
		return decodeOrderCancelReject(f.Body)
	case MsgMarketDataSnapshotFullRefresh:
		return decodeMarketDataSnapshotFullRefresh(f.Body)
	case MsgMarketDataIncrementalRefresh:
		return decodeMarketDataIncrementalRefresh(f.Body)
	case MsgReject:
		return decodeReject(f.Body)
	default:
		return nil, ErrUnknownMessageType
	}
}

// EncodeFrame serializes a message of the given type into a length-prefixed
// wire frame: [1-byte type][2-byte big-endian body length][body].
func EncodeFrame(t MsgType, body []byte) []byte {
	frame := make([]byte, 3+len(body))
	frame[0] = byte(t)
	binary.BigEndian.PutUint16(frame[1:3], uint16(len(body)))
	copy(frame[3:], body)
	return frame
}

// DecodeFrame strips the header off a raw frame and classifies its body.
func DecodeFrame(raw []byte) (Frame, error) {
	if len(raw) < 3 {
		return Frame{}, ErrFrameTooShort
	}
	t := MsgType(raw[0])
	bodyLen := int(binary.BigEndian.Uint16(raw[1:3]))
	if len(raw) < 3+bodyLen {
		return Frame{}, ErrFrameTooShort
	}
	return Frame{Type: t, Body: raw[3 : 3+bodyLen]}, nil
}

func (f Frame) String() string {
	return fmt.Sprintf("Frame{Type: %c, len(Body): %d}", byte(f.Type), len(f.Body))
}
