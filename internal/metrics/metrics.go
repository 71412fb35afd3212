// Package metrics exposes Prometheus counters/histograms for the core
// engine, generalized from the teacher's internal/fraud/metrics.go promauto
// vectors (dropped with the rest of internal/fraud per SPEC_FULL.md's
// Non-goals carry-forward) to the concerns this spec actually has: turn
// timeouts, broadcasts, hand duration, and registry housekeeping.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TurnTimeoutsTotal counts turns that were resolved by the automatic
	// timeout path (auto-discard/auto-check/auto-fold) rather than an
	// explicit player action.
	TurnTimeoutsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pineapple_turn_timeouts_total",
		Help: "Total number of turns resolved by the automatic timeout path",
	}, []string{"resolution"})

	// BroadcastsSentTotal counts game_update broadcasts emitted by the
	// scheduler ("scheduler_tick") or by an immediate state-changing Game
	// event (labelled with the event's reason).
	BroadcastsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pineapple_broadcasts_sent_total",
		Help: "Total number of game_update broadcasts sent",
	}, []string{"trigger"})

	// HandDurationSeconds measures wall-clock time from StartRound to
	// finishHand.
	HandDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pineapple_hand_duration_seconds",
		Help:    "Duration of a single hand from deal to settle",
		Buckets: prometheus.DefBuckets,
	})

	// RoomsActive is the current count of rooms in status=playing.
	RoomsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pineapple_rooms_active",
		Help: "Number of rooms currently in the playing status",
	})

	// RegistryReapsTotal counts reaper runs by outcome (expired, expiring,
	// noop).
	RegistryReapsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pineapple_registry_reaps_total",
		Help: "Total number of registry reaper actions taken",
	}, []string{"outcome"})

	// RegistrySnapshotsTotal counts snapshotter runs by outcome.
	RegistrySnapshotsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pineapple_registry_snapshots_total",
		Help: "Total number of registry snapshot writes",
	}, []string{"outcome"})

	// ConnectedSessions is the current count of authenticated sockets held
	// by the Session Hub.
	ConnectedSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pineapple_connected_sessions",
		Help: "Number of currently connected player sessions",
	})
)
