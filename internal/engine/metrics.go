package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the engine's Prometheus collectors, registered once at
// startup and shared by all runs.
type Metrics struct {
	RunsTotal             *prometheus.CounterVec
	RunDuration           prometheus.Histogram
	CompaniesScored       prometheus.Counter
	CompaniesFailed       prometheus.Counter
	PropagationIterations prometheus.Gauge
	PortfolioGrade        *prometheus.GaugeVec
	AlertsRaised          *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_scoring_runs_total",
			Help: "Scoring runs by final status.",
		}, []string{"status"}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "beacon_scoring_run_duration_seconds",
			Help:    "Wall-clock duration of a full scoring run.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		CompaniesScored: factory.NewCounter(prometheus.CounterOpts{
			Name: "beacon_companies_scored_total",
			Help: "Companies scored successfully across all runs.",
		}),
		CompaniesFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "beacon_companies_failed_total",
			Help: "Companies whose scoring failed and was isolated.",
		}),
		PropagationIterations: factory.NewGauge(prometheus.GaugeOpts{
			Name: "beacon_propagation_iterations",
			Help: "Fixed-point iterations used by the latest propagation.",
		}),
		PortfolioGrade: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "beacon_portfolio_grade",
			Help: "Companies per grade after the latest run.",
		}, []string{"grade"}),
		AlertsRaised: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_alerts_raised_total",
			Help: "Alerts raised by severity.",
		}, []string{"severity"}),
	}
}
