// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "whatsapp_campaigns"

var (
	// SessionTransitions counts state machine transitions by target state
	SessionTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_transitions_total",
		Help:      "Session state transitions by target state.",
	}, []string{"state"})

	// SessionsLive tracks sessions currently holding a client handle
	SessionsLive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sessions_live",
		Help:      "Sessions currently registered with a live client.",
	})

	// SessionReinitializations counts automatic recoveries after a disconnect
	SessionReinitializations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_reinitializations_total",
		Help:      "Automatic session re-initializations after a disconnect.",
	})

	// Dispatches counts per-recipient delivery outcomes
	Dispatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dispatches_total",
		Help:      "Per-recipient dispatch outcomes.",
	}, []string{"outcome"})

	// CampaignsRecorded counts persisted campaigns by source
	CampaignsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "campaigns_recorded_total",
		Help:      "Campaigns persisted by send path.",
	}, []string{"source"})

	// ScheduledPending tracks armed scheduled sends
	ScheduledPending = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "scheduled_sends_pending",
		Help:      "Scheduled sends waiting for their fire time.",
	})

	// AutoReplies counts replies sent by the auto-responder
	AutoReplies = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auto_replies_total",
		Help:      "Auto-responder replies by outcome.",
	}, []string{"outcome"})

	// WebSocketClients tracks connected realtime clients
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "websocket_clients",
		Help:      "Connected realtime clients.",
	})
)
