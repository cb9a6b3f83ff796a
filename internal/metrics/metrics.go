// plex-discord-rpc - Discord Rich Presence for Plex Media Server
// Copyright 2026 brokiem
// SPDX-License-Identifier: MIT
// https://github.com/brokiem/plex-discord-rpc

// Package metrics exposes Prometheus instrumentation for the presence
// engine: tick outcomes, Plex fetches, push-channel signals, and the
// Discord connection lifecycle.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TicksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "presence_ticks_total",
			Help: "Total number of engine ticks executed",
		},
	)

	FetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plex_session_fetches_total",
			Help: "Total number of Plex session fetches by result",
		},
		[]string{"result"}, // "success", "error", "skipped"
	)

	PushSignalsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "plex_push_signals_total",
			Help: "Total number of notification signals received on the push channel",
		},
	)

	PushChannelReopens = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "plex_push_channel_reopens_total",
			Help: "Total number of push channel open attempts after a drop",
		},
	)

	PresencePublishesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discord_presence_publishes_total",
			Help: "Total number of presence publishes by result",
		},
		[]string{"result"}, // "success", "error"
	)

	PresenceClearsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "discord_presence_clears_total",
			Help: "Total number of presence clear attempts",
		},
	)

	PresenceReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "discord_forced_reconnects_total",
			Help: "Total number of forced reconnects after a failed publish",
		},
	)

	PresenceConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "discord_connected",
			Help: "Whether the Discord IPC connection is currently live (1) or not (0)",
		},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state: 0=closed, 1=half-open, 2=open",
		},
		[]string{"name"},
	)
)

// RecordFetch tracks one session fetch attempt.
func RecordFetch(success bool) {
	if success {
		FetchesTotal.WithLabelValues("success").Inc()
		return
	}
	FetchesTotal.WithLabelValues("error").Inc()
}

// RecordFetchSkipped tracks a tick that decided not to fetch.
func RecordFetchSkipped() {
	FetchesTotal.WithLabelValues("skipped").Inc()
}

// RecordPublish tracks one presence publish attempt.
func RecordPublish(success bool) {
	if success {
		PresencePublishesTotal.WithLabelValues("success").Inc()
		return
	}
	PresencePublishesTotal.WithLabelValues("error").Inc()
}

// SetPresenceConnected flips the connectivity gauge.
func SetPresenceConnected(connected bool) {
	if connected {
		PresenceConnected.Set(1)
		return
	}
	PresenceConnected.Set(0)
}
