// Package metrics exposes Prometheus counters/gauges for the engine's
// alert, order, position, and subscription activity, grounded on the
// teacher's `promauto.With(Registry)` pattern (SynapseStrike/metrics).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry is the engine's custom prometheus registry, kept separate from
// the global default registry so /metrics exposes only engine series.
var Registry = prometheus.NewRegistry()

var (
	// AlertsReceivedTotal counts every accepted POST /alert call, before
	// dedupe.
	AlertsReceivedTotal = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Namespace: "momentum",
		Subsystem: "alert",
		Name:      "received_total",
		Help:      "Total alerts received on /alert.",
	})

	// AlertsDeduplicatedTotal counts alerts dropped as duplicates of an
	// in-flight (ticker, minute) key.
	AlertsDeduplicatedTotal = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Namespace: "momentum",
		Subsystem: "alert",
		Name:      "deduplicated_total",
		Help:      "Total alerts dropped by the LRU dedupe set.",
	})

	// AlertsAcceptedTotal counts (alert, strategy) pairs that produced a
	// PendingEntry.
	AlertsAcceptedTotal = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: "momentum",
		Subsystem: "alert",
		Name:      "accepted_total",
		Help:      "Total alerts accepted into a pending entry, by strategy.",
	}, []string{"strategy"})

	// AlertsFilteredTotal counts (alert, strategy) pairs rejected by the
	// filter chain, labeled by strategy only.
	AlertsFilteredTotal = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: "momentum",
		Subsystem: "alert",
		Name:      "filtered_total",
		Help:      "Total alerts rejected by a strategy's filter chain.",
	}, []string{"strategy"})

	// PendingEntriesGauge tracks the live count of pending entries per
	// strategy.
	PendingEntriesGauge = promauto.With(Registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "momentum",
		Subsystem: "strategy",
		Name:      "pending_entries",
		Help:      "Current pending entries held by a strategy.",
	}, []string{"strategy"})

	// ActiveTradesGauge tracks the live count of open positions per
	// strategy.
	ActiveTradesGauge = promauto.With(Registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "momentum",
		Subsystem: "strategy",
		Name:      "active_trades",
		Help:      "Current active trades held by a strategy.",
	}, []string{"strategy"})

	// OrdersSubmittedTotal counts buy/sell submissions by side.
	OrdersSubmittedTotal = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: "momentum",
		Subsystem: "order",
		Name:      "submitted_total",
		Help:      "Total orders submitted to the broker, by side.",
	}, []string{"side"})

	// OrdersRejectedTotal counts broker submit failures by side.
	OrdersRejectedTotal = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: "momentum",
		Subsystem: "order",
		Name:      "rejected_total",
		Help:      "Total order submissions rejected by the broker, by side.",
	}, []string{"side"})

	// TradesCompletedTotal counts closed trades by exit reason.
	TradesCompletedTotal = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: "momentum",
		Subsystem: "trade",
		Name:      "completed_total",
		Help:      "Total completed trades, by exit reason.",
	}, []string{"exit_reason"})

	// TradePnLTotal accumulates realized P&L by strategy. A gauge, not a
	// counter, since a losing trade's P&L leg is negative.
	TradePnLTotal = promauto.With(Registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "momentum",
		Subsystem: "trade",
		Name:      "pnl_total",
		Help:      "Cumulative realized P&L, by strategy.",
	}, []string{"strategy"})

	// NeedsManualExitGauge flags trades that exhausted automated sell
	// retries (§4.4.6). It is exported on /metrics only; GET /status does
	// not report the flag.
	NeedsManualExitGauge = promauto.With(Registry).NewGauge(prometheus.GaugeOpts{
		Namespace: "momentum",
		Subsystem: "trade",
		Name:      "needs_manual_exit",
		Help:      "Count of active trades that exhausted automated sell retries.",
	})

	// SubscriptionsGauge tracks the quote provider's live subscription
	// count against S_max.
	SubscriptionsGauge = promauto.With(Registry).NewGauge(prometheus.GaugeOpts{
		Namespace: "momentum",
		Subsystem: "quote",
		Name:      "subscriptions",
		Help:      "Current live quote subscriptions.",
	})

	// SubscriptionDeniedTotal counts Subscribe calls rejected by the cap.
	SubscriptionDeniedTotal = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Namespace: "momentum",
		Subsystem: "quote",
		Name:      "subscription_denied_total",
		Help:      "Total subscription requests denied by the S_max cap.",
	})

	// QuoteReconnectsTotal counts WebSocket reconnect attempts.
	QuoteReconnectsTotal = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Namespace: "momentum",
		Subsystem: "quote",
		Name:      "reconnects_total",
		Help:      "Total WebSocket reconnect attempts to the quote vendor.",
	})

	// ReconciliationGhostsTotal counts ActiveTrades removed because the
	// broker no longer confirms the position (§4.4 ghost handling).
	ReconciliationGhostsTotal = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Namespace: "momentum",
		Subsystem: "reconcile",
		Name:      "ghosts_total",
		Help:      "Total ghost positions removed by the reconciliation loop.",
	})

	// ReconciliationRunsTotal counts reconciliation loop iterations.
	ReconciliationRunsTotal = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Namespace: "momentum",
		Subsystem: "reconcile",
		Name:      "runs_total",
		Help:      "Total reconciliation loop iterations.",
	})
)

// Init registers the standard Go/process collectors against Registry. Call
// once at process startup before the /metrics handler is served.
func Init() {
	Registry.MustRegister(prometheus.NewGoCollector())
	Registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
}
