package backtest

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

const tradingDaysPerYear = 252

// EquityPoint is one sample on the equity curve.
type EquityPoint struct {
	Timestamp time.Time
	Equity    decimal.Decimal
}

// Result is the summary record produced at the end of a run.
type Result struct {
	EquityCurve []EquityPoint

	TotalReturn   decimal.Decimal
	PercentReturn float64
	Sharpe        float64
	Sortino       float64
	MaxDrawdown   float64

	WinRate      float64
	AvgWin       decimal.Decimal
	AvgLoss      decimal.Decimal
	ProfitFactor float64

	TotalTrades int
	TotalVolume decimal.Decimal
	TotalFees   decimal.Decimal

	AvgSlippageBps float64
	AvgImpactBps   float64
}

// periodReturns computes the simple fractional return between consecutive
// equity-curve points.
func periodReturns(curve []EquityPoint) []float64 {
	if len(curve) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev, _ := curve[i-1].Equity.Float64()
		cur, _ := curve[i].Equity.Float64()
		if prev == 0 {
			continue
		}
		returns = append(returns, (cur-prev)/prev)
	}
	return returns
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stddev(xs []float64, m float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	sumSq := 0.0
	for _, x := range xs {
		d := x - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(xs)-1))
}

func downsideStddev(xs []float64, m float64) float64 {
	var downside []float64
	for _, x := range xs {
		if x < 0 {
			downside = append(downside, x)
		}
	}
	if len(downside) < 2 {
		return 0
	}
	return stddev(downside, 0)
}

// sharpeRatio is mean(returns)/std(returns)·√252; zero when std is zero.
func sharpeRatio(returns []float64) float64 {
	m := mean(returns)
	s := stddev(returns, m)
	if s == 0 {
		return 0
	}
	return m / s * math.Sqrt(tradingDaysPerYear)
}

// sortinoRatio is mean(returns)/downside_std(returns)·√252.
func sortinoRatio(returns []float64) float64 {
	m := mean(returns)
	s := downsideStddev(returns, m)
	if s == 0 {
		return 0
	}
	return m / s * math.Sqrt(tradingDaysPerYear)
}

// maxDrawdown is the largest peak-to-trough fractional decline in the
// equity curve.
func maxDrawdown(curve []EquityPoint) float64 {
	if len(curve) == 0 {
		return 0
	}
	peak, _ := curve[0].Equity.Float64()
	worst := 0.0
	for _, p := range curve {
		v, _ := p.Equity.Float64()
		if v > peak {
			peak = v
		}
		if peak > 0 {
			dd := (peak - v) / peak
			if dd > worst {
				worst = dd
			}
		}
	}
	return worst
}

// BuildResult aggregates a completed run's equity curve and closed trades
// into the final summary, plus the per-fill slippage/impact bps samples
// recorded as the run executed.
func BuildResult(curve []EquityPoint, trades []ClosedTrade, totalVolume, totalFees decimal.Decimal, slippageBpsSamples, impactBpsSamples []float64) Result {
	r := Result{
		EquityCurve: curve,
		TotalVolume: totalVolume,
		TotalFees:   totalFees,
		TotalTrades: len(trades),
	}

	if len(curve) > 0 {
		initial := curve[0].Equity
		final := curve[len(curve)-1].Equity
		r.TotalReturn = final.Sub(initial)
		if !initial.IsZero() {
			tr, _ := r.TotalReturn.Div(initial).Float64()
			r.PercentReturn = tr * 100
		}
	}

	returns := periodReturns(curve)
	r.Sharpe = sharpeRatio(returns)
	r.Sortino = sortinoRatio(returns)
	r.MaxDrawdown = maxDrawdown(curve)

	var wins, losses int
	var winSum, lossSum decimal.Decimal
	for _, t := range trades {
		if t.PnL.Sign() > 0 {
			wins++
			winSum = winSum.Add(t.PnL)
		} else if t.PnL.Sign() < 0 {
			losses++
			lossSum = lossSum.Add(t.PnL)
		}
	}
	if len(trades) > 0 {
		r.WinRate = float64(wins) / float64(len(trades))
	}
	if wins > 0 {
		r.AvgWin = winSum.Div(decimal.NewFromInt(int64(wins)))
	}
	if losses > 0 {
		r.AvgLoss = lossSum.Div(decimal.NewFromInt(int64(losses)))
	}
	if !lossSum.IsZero() {
		pf, _ := winSum.Div(lossSum.Abs()).Float64()
		r.ProfitFactor = pf
	} else if wins > 0 {
		r.ProfitFactor = math.Inf(1)
	}

	r.AvgSlippageBps = mean(slippageBpsSamples)
	r.AvgImpactBps = mean(impactBpsSamples)

	return r
}
