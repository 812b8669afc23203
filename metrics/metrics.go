package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReconcileTotal counts reconciliation outcomes on the updater side
	ReconcileTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_ip_reconcile_total",
			Help: "Total number of gateway peer IP reconciliations by outcome",
		},
		[]string{"status", "reason"},
	)

	// PollTicksTotal counts poll loop ticks by what happened in them
	PollTicksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_ip_poll_ticks_total",
			Help: "Total number of poll ticks by result",
		},
		[]string{"result"},
	)

	// MirrorUpdatesTotal counts DNS mirror pushes
	MirrorUpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_ip_mirror_updates_total",
			Help: "Total number of DNS mirror updates by mirror and status",
		},
		[]string{"mirror", "status"},
	)

	// ReconcileDuration tracks how long one reconciliation takes, network included
	ReconcileDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gateway_ip_reconcile_duration_seconds",
			Help:    "Duration of gateway peer IP reconciliations",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)
)

// Poll tick results
const (
	TickAbsent       = "absent"
	TickUnchanged    = "unchanged"
	TickReported     = "reported"
	TickReportFailed = "report_failed"
)
