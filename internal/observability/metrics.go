// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	// Feed metrics
	TicksProcessed      prometheus.Counter
	TicksStored         prometheus.Counter
	RaceSnapshotsStored prometheus.Counter
	FeedErrors          *prometheus.CounterVec
	ActiveSubscriptions prometheus.Gauge
	HighestSlotSeen     prometheus.Gauge

	// Claim metrics
	ClaimsResolved  *prometheus.CounterVec
	ClaimDuration   prometheus.Histogram
	ClaimPayoutSum  prometheus.Counter

	// Settlement metrics
	RacesSettled prometheus.Counter

	// RPC metrics
	RPCCallLatency *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "momentum_engine"
	}

	return &Metrics{
		TicksProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "ticks_processed_total",
			Help:      "Total number of price ticks decoded from account notifications",
		}),
		TicksStored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "ticks_stored_total",
			Help:      "Total number of price ticks written to storage",
		}),
		RaceSnapshotsStored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "race_snapshots_stored_total",
			Help:      "Total number of race snapshots upserted",
		}),
		FeedErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "errors_total",
			Help:      "Total number of feed errors by stage",
		}, []string{"stage"}),
		ActiveSubscriptions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "active_subscriptions",
			Help:      "Current number of account subscriptions",
		}),
		HighestSlotSeen: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "highest_slot_seen",
			Help:      "Highest Solana slot observed on the feed",
		}),

		ClaimsResolved: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "claim",
			Name:      "resolved_total",
			Help:      "Total number of resolved claims by status and kind",
		}, []string{"status", "kind"}),
		ClaimDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "claim",
			Name:      "duration_seconds",
			Help:      "End-to-end claim resolution duration",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 90, 120},
		}),
		ClaimPayoutSum: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "claim",
			Name:      "payout_micros_total",
			Help:      "Total payout micro-units resolved as claimed",
		}),

		RacesSettled: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "races_settled_total",
			Help:      "Total number of races resolved to a settlement result",
		}),

		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "call_duration_seconds",
			Help:      "Solana RPC call latency by method",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}
}

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
