package tickstore

import (
	"encoding/binary"
	"math"

	"github.com/shopspring/decimal"

	"tradecore/internal/common"
)

// decimalFromFloat converts a float64 read off the wire format into an
// exact decimal.Decimal for in-memory use.
func decimalFromFloat(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// tradeRecordSize is the fixed width of one on-disk trade tick record:
// 8-byte timestamp_us, 8-byte price, 8-byte quantity, 1-byte side.
const tradeRecordSize = 25

func encodeTradeRecord(t common.TickData) [tradeRecordSize]byte {
	var buf [tradeRecordSize]byte
	binary.LittleEndian.PutUint64(buf[0:8], uint64(t.TimestampUs))
	binary.LittleEndian.PutUint64(buf[8:16], math.Float64bits(t.TradePrice))
	binary.LittleEndian.PutUint64(buf[16:24], math.Float64bits(t.TradeSize))
	if t.TradeSide == common.Sell {
		buf[24] = 1
	}
	return buf
}

func decodeTradeRecord(buf []byte, symbol, venueID string) common.TickData {
	side := common.Buy
	if buf[24] == 1 {
		side = common.Sell
	}
	return common.TickData{
		TimestampUs: int64(binary.LittleEndian.Uint64(buf[0:8])),
		Symbol:      symbol,
		VenueID:     venueID,
		DataType:    common.TickTrade,
		TradeSide:   side,
		TradePrice:  math.Float64frombits(binary.LittleEndian.Uint64(buf[8:16])),
		TradeSize:   math.Float64frombits(binary.LittleEndian.Uint64(buf[16:24])),
	}
}

// OHLCVBar is one aggregated bar over an interval of trade ticks. VWAP is
// the size-weighted mean trade price within the bar, not (O+H+L+C)/4.
type OHLCVBar struct {
	BarStartUs int64
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     float64
	VWAP       float64
	TradeCount int
}
