package engine

import (
	"errors"

	"github.com/shopspring/decimal"

	"tradecore/internal/common"
)

// ErrNoEligibleVenues is returned when every candidate venue is filtered
// out by the router's dark-pool or latency constraints.
var ErrNoEligibleVenues = errors.New("engine: no eligible venues for routing")

// Allocation is one venue's share of a parent order's quantity.
type Allocation struct {
	VenueID  string
	Quantity decimal.Decimal
	Price    decimal.Decimal
}

func eligibleVenues(quotes []VenueQuote, params SORParams, stats map[string]*VenueStats) []VenueQuote {
	out := make([]VenueQuote, 0, len(quotes))
	for _, q := range quotes {
		if q.IsDarkPool && !params.IncludeDarkPools {
			continue
		}
		if params.MaxVenueLatencyMs > 0 {
			if s, ok := stats[q.VenueID]; ok && s.AvgLatencyMs > params.MaxVenueLatencyMs {
				continue
			}
		}
		out = append(out, q)
	}
	return out
}

func effectivePrice(side common.Side, q VenueQuote) decimal.Decimal {
	if side == common.Buy {
		return q.AskPrice.Mul(decimal.NewFromFloat(1).Add(q.Venue.TakerFee))
	}
	return q.BidPrice.Mul(decimal.NewFromFloat(1).Sub(q.Venue.TakerFee))
}

func quoteSize(side common.Side, q VenueQuote) decimal.Decimal {
	if side == common.Buy {
		return q.AskSize
	}
	return q.BidSize
}

func quotePrice(side common.Side, q VenueQuote) decimal.Decimal {
	if side == common.Buy {
		return q.AskPrice
	}
	return q.BidPrice
}

// routeBestPrice sends the whole order to the single venue with the best
// fee-adjusted effective price.
func routeBestPrice(side common.Side, qty decimal.Decimal, quotes []VenueQuote) []Allocation {
	best := quotes[0]
	bestEff := effectivePrice(side, best)
	for _, q := range quotes[1:] {
		eff := effectivePrice(side, q)
		if (side == common.Buy && eff.LessThan(bestEff)) || (side == common.Sell && eff.GreaterThan(bestEff)) {
			best, bestEff = q, eff
		}
	}
	return []Allocation{{VenueID: best.VenueID, Quantity: qty, Price: quotePrice(side, best)}}
}

// routeProRata allocates proportionally to each venue's displayed size on
// the relevant top-of-book side.
func routeProRata(side common.Side, qty decimal.Decimal, quotes []VenueQuote) []Allocation {
	total := decimal.Zero
	for _, q := range quotes {
		total = total.Add(quoteSize(side, q))
	}
	if total.Sign() <= 0 {
		return routeBestPrice(side, qty, quotes)
	}
	allocations := make([]Allocation, 0, len(quotes))
	allocated := decimal.Zero
	for i, q := range quotes {
		var share decimal.Decimal
		if i == len(quotes)-1 {
			share = qty.Sub(allocated)
		} else {
			share = qty.Mul(quoteSize(side, q)).Div(total)
			allocated = allocated.Add(share)
		}
		if share.Sign() > 0 {
			allocations = append(allocations, Allocation{VenueID: q.VenueID, Quantity: share, Price: quotePrice(side, q)})
		}
	}
	return allocations
}

// scoreVenues combines fee-adjusted price, rolling fill rate, latency
// tier, and fee into the composite 0.40/0.25/0.20/0.15 weighted score.
// priceScore and feeScore are normalized within the candidate set so the
// cheapest price and lowest fee always score 1.0.
func scoreVenues(side common.Side, quotes []VenueQuote, stats map[string]*VenueStats, maxLatencyMs float64) []float64 {
	prices := make([]float64, len(quotes))
	fees := make([]float64, len(quotes))
	var minPrice, maxPrice, minFee, maxFee float64
	for i, q := range quotes {
		p, _ := effectivePrice(side, q).Float64()
		f, _ := q.Venue.TakerFee.Float64()
		prices[i], fees[i] = p, f
		if i == 0 || p < minPrice {
			minPrice = p
		}
		if i == 0 || p > maxPrice {
			maxPrice = p
		}
		if i == 0 || f < minFee {
			minFee = f
		}
		if i == 0 || f > maxFee {
			maxFee = f
		}
	}

	scores := make([]float64, len(quotes))
	for i, q := range quotes {
		priceScore := normalizeLowerIsBetter(prices[i], minPrice, maxPrice)
		feeScore := normalizeLowerIsBetter(fees[i], minFee, maxFee)

		fillRateScore := 1.0
		latencyScore := 1.0
		if s, ok := stats[q.VenueID]; ok {
			fillRateScore = s.FillRateEWMA
			if maxLatencyMs > 0 && s.AvgLatencyMs > maxLatencyMs {
				latencyScore = 0.5
			}
		}

		scores[i] = 0.40*priceScore + 0.25*fillRateScore + 0.20*latencyScore + 0.15*feeScore
	}
	return scores
}

// normalizeLowerIsBetter maps v in [min,max] to [0,1] where min -> 1.0
// (best) and max -> 0.0 (worst); a degenerate range scores everything 1.0.
func normalizeLowerIsBetter(v, min, max float64) float64 {
	if max <= min {
		return 1.0
	}
	return 1.0 - (v-min)/(max-min)
}

// routeWeighted allocates proportionally to each venue's composite score.
func routeWeighted(side common.Side, qty decimal.Decimal, quotes []VenueQuote, stats map[string]*VenueStats, maxLatencyMs float64) []Allocation {
	scores := scoreVenues(side, quotes, stats, maxLatencyMs)
	totalScore := 0.0
	for _, s := range scores {
		totalScore += s
	}
	if totalScore <= 0 {
		return routeBestPrice(side, qty, quotes)
	}

	allocations := make([]Allocation, 0, len(quotes))
	allocated := decimal.Zero
	for i, q := range quotes {
		var share decimal.Decimal
		if i == len(quotes)-1 {
			share = qty.Sub(allocated)
		} else {
			share = qty.Mul(decimal.NewFromFloat(scores[i] / totalScore))
			allocated = allocated.Add(share)
		}
		if share.Sign() > 0 {
			allocations = append(allocations, Allocation{VenueID: q.VenueID, Quantity: share, Price: quotePrice(side, q)})
		}
	}
	return allocations
}

// Route allocates qty of side across the eligible venues in quotes per
// params.Strategy.
func Route(side common.Side, qty decimal.Decimal, quotes []VenueQuote, params SORParams, stats map[string]*VenueStats) ([]Allocation, error) {
	eligible := eligibleVenues(quotes, params, stats)
	if len(eligible) == 0 {
		return nil, ErrNoEligibleVenues
	}

	switch params.Strategy {
	case BestPrice:
		return routeBestPrice(side, qty, eligible), nil
	case ProRata:
		return routeProRata(side, qty, eligible), nil
	case Weighted:
		return routeWeighted(side, qty, eligible, stats, params.MaxVenueLatencyMs), nil
	default:
		return routeBestPrice(side, qty, eligible), nil
	}
}
