// Package observability exposes the Prometheus metrics of the engine.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine's Prometheus collectors.
type Metrics struct {
	RuleRuns           *prometheus.CounterVec
	RuleRunDuration    prometheus.Histogram
	ItemsMatched       *prometheus.CounterVec
	ItemsExcluded      *prometheus.CounterVec
	CollectionAdds     prometheus.Counter
	CollectionRemovals prometheus.Counter
	MaintenanceActions *prometheus.CounterVec
	UpstreamErrors     *prometheus.CounterVec
}

// New registers the engine's collectors on the given registerer
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RuleRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "curatarr_rule_runs_total",
			Help: "Rule evaluation runs, partitioned by outcome.",
		}, []string{"outcome"}),
		RuleRunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "curatarr_rule_run_duration_seconds",
			Help:    "Wall time of a full rule evaluation run.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		ItemsMatched: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "curatarr_items_matched_total",
			Help: "Library items matched by a rule group.",
		}, []string{"rule_group"}),
		ItemsExcluded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "curatarr_items_excluded_total",
			Help: "Library items skipped due to exclusions.",
		}, []string{"rule_group"}),
		CollectionAdds: factory.NewCounter(prometheus.CounterOpts{
			Name: "curatarr_collection_additions_total",
			Help: "Items added to collections.",
		}),
		CollectionRemovals: factory.NewCounter(prometheus.CounterOpts{
			Name: "curatarr_collection_removals_total",
			Help: "Items removed from collections.",
		}),
		MaintenanceActions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "curatarr_maintenance_actions_total",
			Help: "Automation-server actions applied during maintenance.",
		}, []string{"action"}),
		UpstreamErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "curatarr_upstream_errors_total",
			Help: "Failed calls to external services.",
		}, []string{"service"}),
	}
}

// NewDefault registers on the default Prometheus registry
func NewDefault() *Metrics {
	return New(prometheus.DefaultRegisterer)
}
