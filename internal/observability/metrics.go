// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the auction engine.
type Metrics struct {
	// Commit/reveal metrics
	CommitsTotal   prometheus.Counter
	CommitFailures *prometheus.CounterVec
	RevealsTotal   *prometheus.CounterVec // by kind
	RevealFailures *prometheus.CounterVec // by reason

	// Batch metrics
	CurrentBatchID   prometheus.Gauge
	BatchesSettled   prometheus.Counter
	RevealedPerBatch prometheus.Histogram

	// Settlement metrics
	OrdersExecuted     prometheus.Counter
	OrdersRefunded     prometheus.Counter
	OrdersSkipped      prometheus.Counter
	ClearingPrice      *prometheus.GaugeVec // by pool
	SettlementDuration prometheus.Histogram
	SettlementFailures *prometheus.CounterVec // by reason

	// Slashing metrics
	SlashesTotal  prometheus.Counter
	SlashedAmount prometheus.Counter

	// API metrics
	WSClients prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "sealed_batch_dex"
	}

	return &Metrics{
		CommitsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auction",
			Name:      "commits_total",
			Help:      "Total number of accepted commitments",
		}),
		CommitFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auction",
			Name:      "commit_failures_total",
			Help:      "Total number of rejected commits by reason",
		}, []string{"reason"}),
		RevealsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auction",
			Name:      "reveals_total",
			Help:      "Total number of accepted reveals by kind",
		}, []string{"kind"}),
		RevealFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auction",
			Name:      "reveal_failures_total",
			Help:      "Total number of rejected reveals by reason",
		}, []string{"reason"}),
		CurrentBatchID: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "current_id",
			Help:      "Identifier of the live batch",
		}),
		BatchesSettled: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "settled_total",
			Help:      "Total number of settled batches",
		}),
		RevealedPerBatch: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "revealed_orders",
			Help:      "Revealed orders per settled batch",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		OrdersExecuted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "orders_executed_total",
			Help:      "Total number of orders executed at a clearing price",
		}),
		OrdersRefunded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "orders_refunded_total",
			Help:      "Total number of orders refunded (limit, reclaim, mismatch)",
		}),
		OrdersSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "orders_skipped_total",
			Help:      "Total number of orders skipped on failed bid forwarding",
		}),
		ClearingPrice: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "clearing_price",
			Help:      "Last clearing price by pool",
		}, []string{"pool"}),
		SettlementDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "duration_seconds",
			Help:      "Wall time of batch settlement",
			Buckets:   prometheus.DefBuckets,
		}),
		SettlementFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "failures_total",
			Help:      "Total number of failed settlement attempts by reason",
		}, []string{"reason"}),
		SlashesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "slashing",
			Name:      "slashes_total",
			Help:      "Total number of slashed commitments",
		}),
		SlashedAmount: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "slashing",
			Name:      "amount_total",
			Help:      "Total deposit amount forfeited to the treasury",
		}),
		WSClients: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "ws_clients",
			Help:      "Connected websocket event-feed clients",
		}),
	}
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
