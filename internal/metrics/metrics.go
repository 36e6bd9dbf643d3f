// Package metrics holds the Prometheus collectors of the sync engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ChangesDelivered counts change events handed to subscribers by table
	ChangesDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_changes_delivered_total",
		Help: "Change events delivered to subscriptions by table",
	}, []string{"table"})

	// ChangesDropped counts change events dropped before delivery by reason
	ChangesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_changes_dropped_total",
		Help: "Change events dropped before delivery by reason",
	}, []string{"reason"})

	// ActiveSubscriptions tracks open subscriptions
	ActiveSubscriptions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sync_active_subscriptions",
		Help: "Number of open change feed subscriptions",
	})

	// TransportState is 1 while the push transport is connected
	TransportState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sync_transport_connected",
		Help: "1 while the push transport is connected, 0 otherwise",
	})

	// OptimisticWrites counts optimistic entries by scope kind and outcome
	OptimisticWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_optimistic_writes_total",
		Help: "Optimistic writes by scope kind and outcome (applied, confirmed, reverted, discarded)",
	}, []string{"scope", "outcome"})

	// EchoesSuppressed counts pushed records already present in a view
	EchoesSuppressed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_echoes_suppressed_total",
		Help: "Pushed records that were already represented in the view",
	}, []string{"scope"})

	// StaleResults counts network results discarded because their view moved on
	StaleResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_stale_results_total",
		Help: "Network results discarded because the originating scope is no longer active",
	}, []string{"scope"})

	// ReactionFailures counts like/unlike writes that failed after the local toggle
	ReactionFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sync_reaction_write_failures_total",
		Help: "Reaction writes that failed after the optimistic toggle",
	})

	// NotificationsDispatched counts notification items by sink and result
	NotificationsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_notifications_dispatched_total",
		Help: "Notification items handed to sinks by sink and result",
	}, []string{"sink", "result"})
)
