package backtest

import "github.com/prometheus/client_golang/prometheus"

// Metrics groups the Prometheus collectors exposed by an Engine run. As
// with internal/risk, the registry is owned by the caller; this package
// never binds an HTTP handler.
type Metrics struct {
	fillsTotal       *prometheus.CounterVec
	notionalTraded   prometheus.Counter
	feesPaid         prometheus.Counter
	currentEquity    prometheus.Gauge
	slippageBpsGauge prometheus.Gauge
	impactBpsGauge   prometheus.Gauge
}

func newMetrics() *Metrics {
	return &Metrics{
		fillsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tradecore",
			Subsystem: "backtest",
			Name:      "fills_total",
			Help:      "Count of simulated fills by liquidity flag.",
		}, []string{"liquidity"}),
		notionalTraded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tradecore",
			Subsystem: "backtest",
			Name:      "notional_traded_total",
			Help:      "Cumulative notional (price*qty) of simulated fills.",
		}),
		feesPaid: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tradecore",
			Subsystem: "backtest",
			Name:      "fees_paid_total",
			Help:      "Cumulative maker/taker fees deducted during the run.",
		}),
		currentEquity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tradecore",
			Subsystem: "backtest",
			Name:      "current_equity",
			Help:      "Cash plus mark-to-market position value as of the latest tick.",
		}),
		slippageBpsGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tradecore",
			Subsystem: "backtest",
			Name:      "last_slippage_bps",
			Help:      "Slippage, in basis points of reference price, applied to the most recent market fill.",
		}),
		impactBpsGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tradecore",
			Subsystem: "backtest",
			Name:      "last_impact_bps",
			Help:      "Market-impact adjustment, in basis points, applied to the most recent market fill.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.fillsTotal,
		m.notionalTraded,
		m.feesPaid,
		m.currentEquity,
		m.slippageBpsGauge,
		m.impactBpsGauge,
	}
}
