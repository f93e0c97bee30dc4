package common

// TickData is the in-memory representation of one persisted market-data
// record. Only the fields relevant to DataType are meaningful; the others
// are zero. This mirrors the fixed-width on-disk trade record and the
// variable-width snapshot record in internal/tickstore.
type TickData struct {
	TimestampUs int64 // microseconds since epoch
	Symbol      string
	VenueID     string
	DataType    TickDataType

	TradeSide  Side
	TradePrice float64
	TradeSize  float64

	BidPrice float64
	BidSize  float64
	AskPrice float64
	AskSize  float64
}
