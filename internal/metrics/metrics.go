// Package metrics exposes Prometheus instrumentation for the daemon.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the daemon updates.
type Metrics struct {
	registry *prometheus.Registry

	FeesProcessed   prometheus.Counter
	FeeVolume       prometheus.Counter
	BurnsExecuted   prometheus.Counter
	BurnVolume      prometheus.Counter
	ClaimsPaid      *prometheus.CounterVec
	ClaimVolume     *prometheus.CounterVec
	Forfeitures     prometheus.Counter
	RejectedOps     *prometheus.CounterVec
	RatesRefreshes  prometheus.Counter
	TotalOwed       prometheus.Gauge
	TreasuryHeld    prometheus.Gauge
}

// New creates the collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		FeesProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "feesplitd_fees_processed_total",
			Help: "Fee events successfully distributed.",
		}),
		FeeVolume: factory.NewCounter(prometheus.CounterOpts{
			Name: "feesplitd_fee_volume_total",
			Help: "Sum of fee amounts distributed, in base units.",
		}),
		BurnsExecuted: factory.NewCounter(prometheus.CounterOpts{
			Name: "feesplitd_burns_total",
			Help: "Successful burn releases.",
		}),
		BurnVolume: factory.NewCounter(prometheus.CounterOpts{
			Name: "feesplitd_burn_volume_total",
			Help: "Sum of released burn amounts, in base units.",
		}),
		ClaimsPaid: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "feesplitd_claims_paid_total",
			Help: "Successful claims by kind.",
		}, []string{"kind"}),
		ClaimVolume: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "feesplitd_claim_volume_total",
			Help: "Sum of claimed amounts by kind, in base units.",
		}, []string{"kind"}),
		Forfeitures: factory.NewCounter(prometheus.CounterOpts{
			Name: "feesplitd_forfeitures_total",
			Help: "Reward epochs forfeited back to the free balance.",
		}),
		RejectedOps: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "feesplitd_rejected_operations_total",
			Help: "Operations rejected, by reason class.",
		}, []string{"reason"}),
		RatesRefreshes: factory.NewCounter(prometheus.CounterOpts{
			Name: "feesplitd_rates_refreshes_total",
			Help: "Accepted governance rate refreshes.",
		}),
		TotalOwed: factory.NewGauge(prometheus.GaugeOpts{
			Name: "feesplitd_total_owed",
			Help: "Sum of all unpaid tracked balances, in base units.",
		}),
		TreasuryHeld: factory.NewGauge(prometheus.GaugeOpts{
			Name: "feesplitd_treasury_held",
			Help: "Treasury held balance, in base units.",
		}),
	}
}

// Handler serves the registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
