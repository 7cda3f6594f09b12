package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// BootCount mirrors the persisted boot attempt counter read at Begin.
	BootCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bootguard_boot_count",
			Help: "Boot attempts on the running partition since the last confirmed success.",
		},
	)

	// FailoverTotal counts fail-over decisions by the action taken.
	FailoverTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bootguard_failover_total",
			Help: "Total fail-over decisions, labeled by action (switch, factory, continue).",
		},
		[]string{"action"},
	)

	// CriticalFailureTotal counts critical-failure reports by component.
	CriticalFailureTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bootguard_critical_failure_total",
			Help: "Total critical boot failures reported, labeled by component.",
		},
		[]string{"component"},
	)
)

func init() {
	prometheus.MustRegister(BootCount)
	prometheus.MustRegister(FailoverTotal)
	prometheus.MustRegister(CriticalFailureTotal)
}
