// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package metrics holds the prometheus instruments for the bridge.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsLive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "varbridge_sessions_live",
		Help: "Number of live sessions in the store",
	})

	SessionsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "varbridge_sessions_created_total",
		Help: "Total number of sessions created",
	})

	SessionsExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "varbridge_sessions_expired_total",
		Help: "Total number of sessions removed by TTL eviction",
	})

	VariablesRegisteredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "varbridge_variables_registered_total",
		Help: "Total number of variables registered, by type",
	}, []string{"type"})

	VariableUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "varbridge_variable_updates_total",
		Help: "Total number of variable update attempts, by result",
	}, []string{"result"})

	WatchStreamsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "varbridge_watch_streams_active",
		Help: "Number of active watch streams",
	})

	ObserversActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "varbridge_observers_active",
		Help: "Number of registered observers",
	})

	EventsDispatchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "varbridge_events_dispatched_total",
		Help: "Total number of update events enqueued to observer sinks",
	})

	EventsDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "varbridge_events_dropped_total",
		Help: "Total number of update events dropped, by reason",
	}, []string{"reason"})

	HeartbeatsSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "varbridge_heartbeats_sent_total",
		Help: "Total number of idle heartbeats sent on watch streams",
	})
)

// IncUpdateResult records one update attempt outcome.
func IncUpdateResult(result string) {
	if result == "" {
		result = "unknown"
	}
	VariableUpdatesTotal.WithLabelValues(result).Inc()
}

// IncEventDrop records a dropped event with a concrete reason.
func IncEventDrop(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	EventsDroppedTotal.WithLabelValues(reason).Inc()
}
