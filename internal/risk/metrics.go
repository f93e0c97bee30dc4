package risk

import "github.com/prometheus/client_golang/prometheus"

// Metrics groups the Prometheus collectors exposed by a Gate. The
// registry into which these are ultimately registered is owned by the
// caller; this package never binds an HTTP handler.
type Metrics struct {
	rejections          *prometheus.CounterVec
	circuitBreakerTrips prometheus.Counter
	fillsProcessed      prometheus.Counter
	currentEquity       prometheus.Gauge
	currentDrawdownFrac prometheus.Gauge
	openPositionSymbols prometheus.Gauge
}

func newMetrics() *Metrics {
	return &Metrics{
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tradecore",
			Subsystem: "risk",
			Name:      "violations_total",
			Help:      "Count of pre-trade risk check failures by violation type.",
		}, []string{"type"}),
		circuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tradecore",
			Subsystem: "risk",
			Name:      "circuit_breaker_trips_total",
			Help:      "Count of times the risk circuit breaker has tripped.",
		}),
		fillsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tradecore",
			Subsystem: "risk",
			Name:      "fills_processed_total",
			Help:      "Count of fills applied to positions by the post-trade monitor.",
		}),
		currentEquity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tradecore",
			Subsystem: "risk",
			Name:      "current_equity",
			Help:      "Current mark-to-market capital.",
		}),
		currentDrawdownFrac: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tradecore",
			Subsystem: "risk",
			Name:      "current_drawdown_fraction",
			Help:      "Fractional drawdown from the intraday high-equity watermark.",
		}),
		openPositionSymbols: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tradecore",
			Subsystem: "risk",
			Name:      "open_position_symbols",
			Help:      "Number of symbols with a non-flat position.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.rejections,
		m.circuitBreakerTrips,
		m.fillsProcessed,
		m.currentEquity,
		m.currentDrawdownFrac,
		m.openPositionSymbols,
	}
}
