// Package scheduler implements the Broadcast Scheduler (§4.6): a 1Hz sampler
// that polls every active room's Fingerprint and pushes a game_update only
// when it has changed since the last tick, as a backstop for any state
// transition that didn't already trigger an immediate action-driven push.
package scheduler

import (
	"sync"
	"time"

	"pineapple-room-server/internal/game"
	"pineapple-room-server/internal/metrics"
	"pineapple-room-server/internal/registry"
	"pineapple-room-server/internal/room"
)

// TickInterval is the scheduler's polling period (§4.6).
const TickInterval = 1 * time.Second

// Pusher delivers a freshly rendered snapshot to a room's occupants; in
// production this is Hub.BroadcastToRoom.
type Pusher func(roomID string, snap game.Snapshot, reason string)

// Scheduler owns the last-broadcast fingerprint per room so it can tell
// whether a tick actually changed anything worth re-sending.
type Scheduler struct {
	reg  *registry.Registry
	push Pusher
	mu   sync.Mutex
	last map[string]game.Fingerprint
}

// New builds a Scheduler around reg, pushing changed snapshots via push.
func New(reg *registry.Registry, push Pusher) *Scheduler {
	return &Scheduler{
		reg:  reg,
		push: push,
		last: make(map[string]game.Fingerprint),
	}
}

// Run starts the sampling loop on TickInterval. It blocks until stop is
// closed.
func (s *Scheduler) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Tick samples every known room once; exported so tests can drive it
// directly instead of waiting on a real ticker.
func (s *Scheduler) Tick() {
	for _, r := range s.reg.All() {
		if r.Status != room.StatusActive {
			s.forget(r.ID)
			continue
		}
		s.sample(r)
	}
}

func (s *Scheduler) sample(r *room.Room) {
	fp := r.Fingerprint()

	s.mu.Lock()
	prev, seen := s.last[r.ID]
	changed := !seen || prev != fp
	s.last[r.ID] = fp
	s.mu.Unlock()

	if !changed {
		return
	}
	metrics.BroadcastsSentTotal.WithLabelValues("scheduler_tick").Inc()
	s.push(r.ID, r.Snapshot(), "scheduler_tick")
}

func (s *Scheduler) forget(roomID string) {
	s.mu.Lock()
	delete(s.last, roomID)
	s.mu.Unlock()
}
