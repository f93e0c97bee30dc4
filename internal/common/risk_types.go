package common

import "github.com/shopspring/decimal"

// RiskLimits configures the pre-trade and post-trade risk gate. All
// fields are fractions or absolute currency/quantity units per the
// engine's configured instrument; zero-value limits are not special-cased
// as "unlimited" — callers must set a deliberately large bound instead.
type RiskLimits struct {
	MaxPositionSize       decimal.Decimal
	MaxOrderSize          decimal.Decimal
	MinOrderValue         decimal.Decimal
	MaxOrderValue         decimal.Decimal
	MaxDailyLoss          decimal.Decimal
	MaxDailyVolume        decimal.Decimal
	MaxTradesPerDay       int
	MaxOpenOrders         int
	MaxOrdersPerSecond    int
	MaxCancelsPerSecond   int
	MaxPriceDeviation   decimal.Decimal // fraction of reference price
	MaxDrawdownFraction decimal.Decimal // fraction of daily-high equity
	MaxConcentration    decimal.Decimal // fraction of total exposure
}

// RiskMetrics is the runtime accumulator the risk gate checks limits
// against and exposes for monitoring.
type RiskMetrics struct {
	Positions        map[string]*Position
	TotalExposure    decimal.Decimal
	DailyRealizedPnL decimal.Decimal
	DailyUnrealPnL   decimal.Decimal
	DailyVolume      decimal.Decimal
	DailyTradeCount  int
	DailyHighEquity  decimal.Decimal
	OpenOrderCount   int
	MaxConcentration decimal.Decimal
}

// DailyPnL is DailyRealizedPnL + DailyUnrealPnL.
func (m RiskMetrics) DailyPnL() decimal.Decimal {
	return m.DailyRealizedPnL.Add(m.DailyUnrealPnL)
}

// RiskViolationType enumerates the pre/post-trade check a violation came from.
type RiskViolationType int

const (
	ViolationHalted RiskViolationType = iota
	ViolationFatFinger
	ViolationOrderSize
	ViolationOrderValue
	ViolationPositionLimit
	ViolationDailyLoss
	ViolationDailyVolume
	ViolationRate
	ViolationConcentration
	ViolationDrawdown
	ViolationInvalidPrice
	ViolationSelfTrade
)

func (v RiskViolationType) String() string {
	switch v {
	case ViolationHalted:
		return "HALTED"
	case ViolationFatFinger:
		return "FAT_FINGER"
	case ViolationOrderSize:
		return "ORDER_SIZE_LIMIT"
	case ViolationOrderValue:
		return "ORDER_VALUE_LIMIT"
	case ViolationPositionLimit:
		return "POSITION_LIMIT"
	case ViolationDailyLoss:
		return "DAILY_LOSS_LIMIT"
	case ViolationDailyVolume:
		return "DAILY_VOLUME_LIMIT"
	case ViolationRate:
		return "RATE_LIMIT"
	case ViolationConcentration:
		return "CONCENTRATION_LIMIT"
	case ViolationDrawdown:
		return "DRAWDOWN_LIMIT"
	case ViolationInvalidPrice:
		return "INVALID_PRICE"
	case ViolationSelfTrade:
		return "SELF_TRADE"
	default:
		return "UNKNOWN"
	}
}

// Severity classifies how serious a risk violation is, independent of
// which check raised it.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityRejection
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "WARNING"
	case SeverityRejection:
		return "REJECTION"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}
