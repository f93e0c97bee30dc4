package common

import "github.com/shopspring/decimal"

// Instrument identifies a tradable security and its trading constraints.
// Immutable after construction.
type Instrument struct {
	Symbol             string
	Exchange           string
	AssetClass         AssetType
	TickSize           decimal.Decimal
	LotSize            decimal.Decimal
	MinOrderQty        decimal.Decimal
	MaxOrderQty        decimal.Decimal
	ContractMultiplier decimal.Decimal
}

// NewInstrument builds an Instrument with a contract multiplier of 1 when
// one is not supplied (the common case for equities and FX).
func NewInstrument(symbol, exchange string, assetClass AssetType, tickSize, lotSize, minQty, maxQty decimal.Decimal) Instrument {
	return Instrument{
		Symbol:             symbol,
		Exchange:           exchange,
		AssetClass:         assetClass,
		TickSize:           tickSize,
		LotSize:            lotSize,
		MinOrderQty:        minQty,
		MaxOrderQty:        maxQty,
		ContractMultiplier: decimal.NewFromInt(1),
	}
}

// Venue is an exchange or liquidity pool. Immutable after construction.
//
// There are no swap, financing, or rollover fields: this system charges
// execution-only maker/taker fees and carries zero holding cost.
type Venue struct {
	VenueID       string
	Name          string
	IsDarkPool    bool
	MakerFee      decimal.Decimal // fraction of notional, e.g. 0.0001 = 1bp
	TakerFee      decimal.Decimal
	MinOrderSize  decimal.Decimal
	TickSize      decimal.Decimal
}

// FeeFor returns the applicable fee rate for the given liquidity flag.
func (v Venue) FeeFor(flag LiquidityFlag) decimal.Decimal {
	if flag == Maker {
		return v.MakerFee
	}
	return v.TakerFee
}
