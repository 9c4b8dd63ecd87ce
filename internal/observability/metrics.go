package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the contagion simulation.
type Metrics struct {
	// --- Scheduler ---
	StepsTotal    prometheus.Counter
	AgentsAlive   prometheus.Gauge
	DefaultsTotal prometheus.Counter

	// --- Market ---
	MarketClearings prometheus.Counter
	OrdersPlaced    *prometheus.CounterVec
	AmountSoldTotal *prometheus.CounterVec
	AssetPrice      *prometheus.GaugeVec
	AssetHaircut    *prometheus.GaugeVec
	FireSaleFalls   *prometheus.CounterVec

	// --- Risk ---
	MarginCallsRun     prometheus.Counter
	MarginCallFailures prometheus.Counter

	// --- Mailbox ---
	ObligationsSettled prometheus.Counter
}

// NewMetrics registers all metrics with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		StepsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "risk_steps_total",
			Help: "Simulation steps executed.",
		}),
		AgentsAlive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "risk_agents_alive",
			Help: "Agents currently alive.",
		}),
		DefaultsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "risk_defaults_total",
			Help: "Agent defaults triggered.",
		}),
		MarketClearings: factory.NewCounter(prometheus.CounterOpts{
			Name: "risk_market_clearings_total",
			Help: "Market clearing rounds.",
		}),
		OrdersPlaced: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "risk_orders_placed_total",
			Help: "Sell orders placed, by asset type.",
		}, []string{"asset_type"}),
		AmountSoldTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "risk_amount_sold_total",
			Help: "Cumulative quantity sold, by asset type.",
		}, []string{"asset_type"}),
		AssetPrice: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "risk_asset_price",
			Help: "Current market price, by asset type.",
		}, []string{"asset_type"}),
		AssetHaircut: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "risk_asset_haircut",
			Help: "Current collateral haircut, by asset type.",
		}, []string{"asset_type"}),
		FireSaleFalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "risk_firesale_price_falls_total",
			Help: "Fire-sale price falls broadcast to holders, by asset type.",
		}, []string{"asset_type"}),

		MarginCallsRun: factory.NewCounter(prometheus.CounterOpts{
			Name: "risk_margin_calls_total",
			Help: "Margin-call sweeps executed.",
		}),
		MarginCallFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "risk_margin_call_failures_total",
			Help: "Margin calls that failed for lack of collateral or cash.",
		}),

		ObligationsSettled: factory.NewCounter(prometheus.CounterOpts{
			Name: "risk_obligations_settled_total",
			Help: "Obligation value settled at maturity.",
		}),
	}
}
