// Package registry creates, looks up, and reaps Rooms, and periodically
// snapshots their metadata to durable storage (§4.4).
package registry

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pineapple-room-server/internal/game"
	"pineapple-room-server/internal/metrics"
	"pineapple-room-server/internal/room"
	"pineapple-room-server/pkg/poker"
	"pineapple-room-server/pkg/rng"
)

// CleanupInterval and SaveInterval are the reaper/snapshotter tick periods
// (§4.4).
const (
	CleanupInterval = 5 * time.Minute
	SaveInterval    = 30 * time.Second
)

// ErrRoomNotFound is returned by Get when no room matches, exactly or
// case-insensitively.
var ErrRoomNotFound = fmt.Errorf("room not found")

// ErrDuplicateName is returned by Create when dedup is requested and a room
// with the same name already exists.
var ErrDuplicateName = fmt.Errorf("a room with this name already exists")

// Params configures a newly created Room (§3 Room fields).
type Params struct {
	Name           string
	Owner          string
	MaxPlayers     int
	SmallBlind     decimal.Decimal
	BigBlind       decimal.Decimal
	BuyInMin       decimal.Decimal
	BuyInMax       decimal.Decimal
	GameDuration   time.Duration
	IdleLimit      time.Duration
	TurnSeconds    int
	HandGapSeconds int
}

// Meta is the durable, non-Game part of a Room, what the snapshotter
// actually persists (§3 RoomRegistry, never live Game state).
type Meta struct {
	ID           string
	Name         string
	Owner        string
	Status       string
	MaxPlayers   int
	SmallBlind   decimal.Decimal
	BigBlind     decimal.Decimal
	BuyInMin     decimal.Decimal
	BuyInMax     decimal.Decimal
	GameDuration time.Duration
	IdleLimit    time.Duration
	CreatedAt    time.Time
	LastActivity time.Time
	Seats        []SeatMeta
}

// SeatMeta is one seat's durable fields, enough to restore membership and
// chip counts but never mid-hand cards or betting state.
type SeatMeta struct {
	Seat     int
	Username string
	Chips    decimal.Decimal
}

// Store is the persistence adapter the registry snapshots to. A file-backed
// implementation lives in internal/storage; tests use an in-memory stub.
type Store interface {
	Save(metas []Meta) error
	Load() ([]Meta, error)
}

// entry bundles a Room with the bookkeeping the registry needs that the Room
// itself does not track (display name, owner, configured params).
type entry struct {
	room   *room.Room
	params Params
}

// ExpiryNotifier is called by the reaper when a room transitions due to
// idleness; the caller wires this to the Session Hub's broadcast path.
type ExpiryNotifier func(roomID string, event string)

// Registry owns the room_id -> Room map and the optional name -> room_id
// dedup index. Its own mutex is never held while calling into a Room (§5
// lock order: Registry -> Room -> Hub).
type Registry struct {
	mu       sync.RWMutex
	rooms    map[string]*entry
	byName   map[string]string
	clock    game.Clock
	rngSys   *rng.System
	evalr    *poker.HandEvaluator
	store    Store
	notify   ExpiryNotifier
	expiring map[string]bool // rooms that already received one "expiring soon" notice
}

// New builds an empty Registry. rngSys and evaluator are shared across every
// Room's Game, matching how the teacher's GameServer constructs one rng.System
// for all tables.
func New(clock game.Clock, rngSys *rng.System, evalr *poker.HandEvaluator, store Store) *Registry {
	return &Registry{
		rooms:    make(map[string]*entry),
		byName:   make(map[string]string),
		clock:    clock,
		rngSys:   rngSys,
		evalr:    evalr,
		store:    store,
		expiring: make(map[string]bool),
	}
}

// BroadcastFunc and HandHistorySink mirror room.BroadcastFunc / HandHistorySink
// so callers don't need to import internal/room just to wire a Registry.
type BroadcastFunc = room.BroadcastFunc
type HandHistorySink = room.HandHistorySink

// SetExpiryNotifier wires the callback used for room_expiring/room_expired.
func (reg *Registry) SetExpiryNotifier(f ExpiryNotifier) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.notify = f
}

// Create builds a new Room in status=waiting and registers it. dedup, when
// true, rejects a name collision (case-insensitive).
func (reg *Registry) Create(p Params, dedup bool, broadcast BroadcastFunc, history HandHistorySink) (*room.Room, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if dedup {
		if _, exists := reg.byName[strings.ToLower(p.Name)]; exists {
			return nil, ErrDuplicateName
		}
	}
	if p.MaxPlayers <= 0 || p.MaxPlayers > game.MaxSeats {
		p.MaxPlayers = game.MaxSeats
	}

	cfg := game.Config{
		MaxSeats:       p.MaxPlayers,
		SmallBlind:     p.SmallBlind,
		BigBlind:       p.BigBlind,
		TurnSeconds:    p.TurnSeconds,
		HandGapSeconds: p.HandGapSeconds,
	}
	id := uuid.NewString()
	g := game.NewGame(cfg, reg.clock, reg.rngSys, reg.evalr)
	r := room.NewWithGame(id, cfg, g, reg.clock, p.BuyInMax, broadcast, history)

	reg.rooms[id] = &entry{room: r, params: p}
	reg.byName[strings.ToLower(p.Name)] = id
	log.Printf("registry: created room id=%s name=%q owner=%s", id, p.Name, p.Owner)
	return r, nil
}

// Get finds a room by exact ID, falling back to a case-insensitive match
// against the name index for robustness (§4.4).
func (reg *Registry) Get(idOrName string) (*room.Room, error) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	if e, ok := reg.rooms[idOrName]; ok {
		return e.room, nil
	}
	if id, ok := reg.byName[strings.ToLower(idOrName)]; ok {
		if e, ok := reg.rooms[id]; ok {
			return e.room, nil
		}
	}
	return nil, ErrRoomNotFound
}

// Params returns the configured parameters a room was created with.
func (reg *Registry) Params(id string) (Params, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	e, ok := reg.rooms[id]
	if !ok {
		return Params{}, false
	}
	return e.params, true
}

// RemovePlayer delegates to the room and, if the room is now empty and
// eligible, drops it from the registry (§4.4).
func (reg *Registry) RemovePlayer(roomID, username string) error {
	r, err := reg.Get(roomID)
	if err != nil {
		return err
	}
	if err := r.Leave(username); err != nil {
		return err
	}
	reg.dropIfEmpty(roomID)
	return nil
}

func (reg *Registry) dropIfEmpty(roomID string) {
	reg.mu.RLock()
	e, ok := reg.rooms[roomID]
	reg.mu.RUnlock()
	if !ok {
		return
	}
	if e.room.MemberCount() != 0 {
		return
	}
	if e.room.Status != room.StatusWaiting && e.room.Status != room.StatusEnded {
		return
	}
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if reg.rooms[roomID] != e {
		return
	}
	delete(reg.rooms, roomID)
	delete(reg.byName, strings.ToLower(e.params.Name))
	log.Printf("registry: dropped empty room id=%s", roomID)
}

// All returns a snapshot of the currently known rooms, for the scheduler and
// reaper to iterate without holding the registry lock during their own work.
func (reg *Registry) All() []*room.Room {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	out := make([]*room.Room, 0, len(reg.rooms))
	for _, e := range reg.rooms {
		out = append(out, e.room)
	}
	return out
}

// Count reports the number of known rooms.
func (reg *Registry) Count() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.rooms)
}

// RunReaper starts the background idle-room reaper on CleanupInterval. It
// blocks until stop is closed.
func (reg *Registry) RunReaper(stop <-chan struct{}) {
	ticker := time.NewTicker(CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			reg.reapOnce()
		}
	}
}

func (reg *Registry) reapOnce() {
	rooms := reg.All()
	active := 0
	for _, r := range rooms {
		if r.Status == room.StatusActive {
			active++
		}
	}
	metrics.RoomsActive.Set(float64(active))

	for _, r := range rooms {
		if r.Status != room.StatusWaiting {
			continue
		}
		idle := r.IdleSince()
		idleLimit := reg.idleLimitFor(r.ID)
		if idleLimit <= 0 {
			metrics.RegistryReapsTotal.WithLabelValues("noop").Inc()
			continue
		}
		if idle > idleLimit {
			metrics.RegistryReapsTotal.WithLabelValues("expired").Inc()
			reg.expireRoom(r)
			continue
		}
		if idleLimit-idle < 5*time.Minute {
			metrics.RegistryReapsTotal.WithLabelValues("expiring").Inc()
			reg.notifyExpiringOnce(r.ID)
		}
	}
}

func (reg *Registry) idleLimitFor(roomID string) time.Duration {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	if e, ok := reg.rooms[roomID]; ok {
		return e.params.IdleLimit
	}
	return 0
}

func (reg *Registry) expireRoom(r *room.Room) {
	r.EndGame()
	reg.mu.Lock()
	if e, ok := reg.rooms[r.ID]; ok {
		delete(reg.rooms, r.ID)
		delete(reg.byName, strings.ToLower(e.params.Name))
	}
	delete(reg.expiring, r.ID)
	notify := reg.notify
	reg.mu.Unlock()
	log.Printf("registry: expired idle room id=%s", r.ID)
	if notify != nil {
		notify(r.ID, "room_expired")
	}
}

func (reg *Registry) notifyExpiringOnce(roomID string) {
	reg.mu.Lock()
	if reg.expiring[roomID] {
		reg.mu.Unlock()
		return
	}
	reg.expiring[roomID] = true
	notify := reg.notify
	reg.mu.Unlock()
	if notify != nil {
		notify(roomID, "room_expiring")
	}
}

// RunSnapshotter starts the background metadata snapshotter on SaveInterval.
// It blocks until stop is closed.
func (reg *Registry) RunSnapshotter(stop <-chan struct{}) {
	if reg.store == nil {
		return
	}
	ticker := time.NewTicker(SaveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := reg.snapshotOnce(); err != nil {
				metrics.RegistrySnapshotsTotal.WithLabelValues("error").Inc()
				log.Printf("registry: snapshot failed: %v", err)
			} else {
				metrics.RegistrySnapshotsTotal.WithLabelValues("ok").Inc()
			}
		}
	}
}

func (reg *Registry) snapshotOnce() error {
	rooms := reg.All()
	metas := make([]Meta, 0, len(rooms))
	for _, r := range rooms {
		snap := r.Snapshot()
		p, _ := reg.Params(r.ID)
		seats := make([]SeatMeta, 0, len(snap.Seats))
		for _, sv := range snap.Seats {
			if !sv.Occupied {
				continue
			}
			seats = append(seats, SeatMeta{Seat: sv.Seat, Username: sv.Username, Chips: sv.Chips})
		}
		metas = append(metas, Meta{
			ID:           r.ID,
			Name:         p.Name,
			Owner:        p.Owner,
			Status:       r.Status.String(),
			MaxPlayers:   p.MaxPlayers,
			SmallBlind:   p.SmallBlind,
			BigBlind:     p.BigBlind,
			BuyInMin:     p.BuyInMin,
			BuyInMax:     p.BuyInMax,
			GameDuration: p.GameDuration,
			IdleLimit:    p.IdleLimit,
			CreatedAt:    r.CreatedAt,
			LastActivity: r.LastSeen,
			Seats:        seats,
		})
	}
	return reg.store.Save(metas)
}
