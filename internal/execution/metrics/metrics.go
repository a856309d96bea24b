// Package metrics exposes Prometheus instrumentation for the execution
// pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OrdersSubmitted counts submissions by outcome (accepted, risk_rejected,
	// venue_failed).
	OrdersSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bist",
		Subsystem: "execution",
		Name:      "orders_submitted_total",
		Help:      "Order submissions by outcome",
	}, []string{"outcome"})

	// RiskRejections counts risk gate rejections by rule.
	RiskRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bist",
		Subsystem: "execution",
		Name:      "risk_rejections_total",
		Help:      "Risk gate rejections by rule",
	}, []string{"rule"})

	// VenueCalls counts venue gateway calls by operation and result.
	VenueCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bist",
		Subsystem: "execution",
		Name:      "venue_calls_total",
		Help:      "Venue calls by operation and result",
	}, []string{"operation", "result"})

	// VenueCallDuration observes venue call latency per operation.
	VenueCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "bist",
		Subsystem: "execution",
		Name:      "venue_call_duration_seconds",
		Help:      "Venue call latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})

	// BreakerState reports the circuit breaker state (0 closed, 1 open,
	// 2 half-open).
	BreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "bist",
		Subsystem: "execution",
		Name:      "breaker_state",
		Help:      "Circuit breaker state: 0=closed 1=open 2=half-open",
	}, []string{"name"})

	// ActiveOrders reports the number of currently tracked non-final orders.
	ActiveOrders = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "bist",
		Subsystem: "execution",
		Name:      "active_orders",
		Help:      "Currently tracked non-final orders",
	})

	// DroppedTransitions counts venue updates discarded by the tracker.
	DroppedTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bist",
		Subsystem: "execution",
		Name:      "dropped_transitions_total",
		Help:      "Venue updates dropped by the tracker",
	}, []string{"reason"})

	// EventsDispatched counts lifecycle events handed to subscribers.
	EventsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bist",
		Subsystem: "execution",
		Name:      "events_dispatched_total",
		Help:      "Lifecycle events dispatched by type",
	}, []string{"type"})

	// EventsDropped counts lifecycle events that could not be enqueued.
	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bist",
		Subsystem: "execution",
		Name:      "events_dropped_total",
		Help:      "Lifecycle events dropped due to full dispatch queues",
	})
)
