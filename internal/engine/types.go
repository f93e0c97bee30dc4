// Package engine implements the parent-to-child order execution engine:
// the VWAP, Iceberg, and Smart Order Router algorithms, and the
// orchestration that dispatches a parent order to one of them and credits
// child fills back up to the parent.
package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"tradecore/internal/common"
)

// RouteStrategy selects how the Smart Order Router allocates quantity
// across candidate venues.
type RouteStrategy int

const (
	BestPrice RouteStrategy = iota
	ProRata
	Weighted
)

func (r RouteStrategy) String() string {
	switch r {
	case BestPrice:
		return "BEST_PRICE"
	case ProRata:
		return "PRO_RATA"
	case Weighted:
		return "WEIGHTED"
	default:
		return "UNKNOWN"
	}
}

// VWAPParams configures the VWAP slicing algorithm.
type VWAPParams struct {
	StartTime         time.Time
	EndTime           time.Time
	ParticipationRate float64 // default 0.10
	MinFillRatio      float64 // default 0.05, fraction of remaining
	MaxFillRatio      float64 // default 0.30, fraction of remaining
	Urgency           float64 // [0,1], default 0.5
	PriceLimit        *decimal.Decimal
}

// DefaultVWAPParams returns VWAPParams for the [start, end] window with the
// default participation rate, fill-ratio bounds and urgency, and no price
// limit.
func DefaultVWAPParams(start, end time.Time) VWAPParams {
	return VWAPParams{
		StartTime:         start,
		EndTime:           end,
		ParticipationRate: 0.10,
		MinFillRatio:      0.05,
		MaxFillRatio:      0.30,
		Urgency:           0.5,
	}
}

// IcebergParams configures the Iceberg display-and-refresh algorithm.
type IcebergParams struct {
	DisplayQuantity decimal.Decimal
	RefreshOnFill   bool    // default true
	Variance        float64 // default 0.05, multiplicative jitter
	MinDisplay      *decimal.Decimal
	MaxDisplay      *decimal.Decimal
	SliceTimeout    time.Duration // default 60s
}

// DefaultIcebergParams fills in the spec's defaults given only the
// mandatory display quantity.
func DefaultIcebergParams(display decimal.Decimal) IcebergParams {
	return IcebergParams{
		DisplayQuantity: display,
		RefreshOnFill:   true,
		Variance:        0.05,
		SliceTimeout:    60 * time.Second,
	}
}

// SORParams configures the Smart Order Router.
type SORParams struct {
	Venues            []string
	PreferMakerFee    bool
	IncludeDarkPools  bool
	MaxVenueLatencyMs float64
	Strategy          RouteStrategy
}

// VenueQuote is the router's view of one venue's top-of-book and fee
// schedule for a symbol at decision time.
type VenueQuote struct {
	VenueID    string
	Venue      common.Venue
	BidPrice   decimal.Decimal
	BidSize    decimal.Decimal
	AskPrice   decimal.Decimal
	AskSize    decimal.Decimal
	IsDarkPool bool
}

// VenueStats is the router's rolling performance record per venue,
// updated after every child order submitted to it.
type VenueStats struct {
	VenueID       string
	OrdersSent    int
	FillsReceived int
	FillRateEWMA  float64 // initial 1.0
	AvgLatencyMs  float64
}

const fillRateEWMAAlpha = 0.2

// RecordOrder registers a new child order sent to this venue, seeding the
// fill-rate EWMA at 1.0 on first use.
func (v *VenueStats) RecordOrder() {
	if v.OrdersSent == 0 && v.FillRateEWMA == 0 {
		v.FillRateEWMA = 1.0
	}
	v.OrdersSent++
}

// RecordFill credits a fill at the given round-trip latency to this
// venue's rolling statistics.
func (v *VenueStats) RecordFill(latencyMs float64) {
	v.FillsReceived++
	v.FillRateEWMA = fillRateEWMAAlpha*1.0 + (1-fillRateEWMAAlpha)*v.FillRateEWMA
	if v.AvgLatencyMs == 0 {
		v.AvgLatencyMs = latencyMs
	} else {
		v.AvgLatencyMs = fillRateEWMAAlpha*latencyMs + (1-fillRateEWMAAlpha)*v.AvgLatencyMs
	}
}

// RecordMiss decays the fill-rate EWMA toward zero for an order sent to
// this venue that was not filled.
func (v *VenueStats) RecordMiss() {
	v.FillRateEWMA = fillRateEWMAAlpha*0.0 + (1-fillRateEWMAAlpha)*v.FillRateEWMA
}

// ChildSubmitter is the venue-facing boundary the algorithms submit
// through. Implementations route a child order to a venue (or the risk
// gate ahead of it) and report whether it was accepted.
type ChildSubmitter interface {
	SubmitChild(order *common.Order) error
}
