// Package metrics provides Prometheus metrics for the huddle control plane.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LocalHuddles tracks the session mirrors held by this worker.
	LocalHuddles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "huddle_local_sessions",
			Help: "Number of session mirrors held by this worker",
		},
	)

	// ControlConnections tracks live control connections on this worker.
	ControlConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "huddle_control_connections",
			Help: "Number of live control connections on this worker",
		},
	)

	LifecycleEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "huddle_lifecycle_events_total",
			Help: "Session lifecycle events consumed",
		},
		[]string{"op"},
	)

	MemberEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "huddle_member_events_total",
			Help: "Membership events consumed",
		},
		[]string{"op"},
	)

	// ReconcileMutations counts local cache changes made by reconciliation.
	// scope is "verse" or "huddle", change is "added" or "removed".
	ReconcileMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "huddle_reconcile_mutations_total",
			Help: "Local cache mutations applied by reconciliation",
		},
		[]string{"scope", "change"},
	)

	ClientMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "huddle_client_messages_total",
			Help: "Control messages received from clients",
		},
		[]string{"type"},
	)

	RelayedProducers = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "huddle_relayed_new_producers_total",
			Help: "New-producer notifications forwarded to local clients",
		},
	)

	MediaRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "huddle_media_request_duration_seconds",
			Help:    "Duration of media server requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "outcome"},
	)
)
