// Package room owns one table's membership and lifecycle and is the sole
// lock boundary around the Game state machine it wraps (§4.3, §5).
package room

import (
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"pineapple-room-server/internal/game"
	"pineapple-room-server/pkg/poker"
)

// Status is the lifecycle state of a Room.
type Status int

const (
	StatusWaiting Status = iota
	StatusActive
	StatusPaused
	StatusEnded
)

func (s Status) String() string {
	switch s {
	case StatusWaiting:
		return "waiting"
	case StatusActive:
		return "active"
	case StatusPaused:
		return "paused"
	case StatusEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Error mirrors game.Error's flat kind+message shape for Room-level failures
// (§7 taxonomy).
type Error struct {
	Kind    string
	Message string
}

func (e *Error) Error() string { return e.Message }

func newError(kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

var (
	ErrRoomEnded        = newError("lifecycle", "room has ended")
	ErrSeatOccupied     = newError("state", "seat is already occupied")
	ErrSeatOutOfRange   = newError("validation", "seat index out of range")
	ErrPlayerNotFound   = newError("state", "player is not a member of this room")
	ErrAlreadySeated    = newError("state", "player is already seated")
	ErrInsufficientFunds = newError("validation", "buy-in exceeds allowed amount")
	ErrNotSeated        = newError("state", "player is not seated")
	ErrCannotStandMidHand = newError("state", "cannot stand up while still live in the current hand")
)

// Member is a room participant independent of whether they currently hold a
// seat: join/leave/reconnect are tracked per username, not per seat.
type Member struct {
	Username string
	Seat     int // -1 if unseated
	Online   bool
	IsOwner  bool
	JoinedAt time.Time
}

// BroadcastFunc is invoked with a room's current snapshot whenever state
// changes; the Hub/Scheduler layer wires this to actual socket pushes.
type BroadcastFunc func(roomID string, snap game.Snapshot, reason string)

// HandHistorySink persists a finished hand for analytics (§2 Persistence
// Adapter).
type HandHistorySink func(roomID string, rec game.HandHistoryRecord)

// CashOutFunc credits a player's current stack back to their account balance
// when their seat is vacated: on stand-up, or when an offline player's seat is
// reclaimed at a hand boundary (the
// original's cash_out behavior, preserved per SPEC_FULL.md).
type CashOutFunc func(username string, chips decimal.Decimal)

// Room serializes all access to its Game behind a single mutex: the
// registry never holds this lock while calling in, and this lock is always
// released before any I/O (broadcast, persistence) is performed (§5).
type Room struct {
	mu sync.Mutex

	ID        string
	CreatedAt time.Time
	LastSeen  time.Time
	Status    Status

	config  game.Config
	g       *game.Game
	clock   game.Clock
	members map[string]*Member

	maxBuyIn decimal.Decimal

	onBroadcast  BroadcastFunc
	onHandResult HandHistorySink
	onCashOut    CashOutFunc
}

// SetCashOutHook wires the balance-credit callback used when a seat is
// vacated by stand-up or an offline player's seat is reclaimed.
func (r *Room) SetCashOutHook(f CashOutFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onCashOut = f
}

// NewWithGame builds a Room around an already-constructed Game (the normal
// path: the caller wires rng.System and poker.HandEvaluator once and shares
// them across rooms).
func NewWithGame(id string, cfg game.Config, g *game.Game, clock game.Clock, maxBuyIn decimal.Decimal, broadcast BroadcastFunc, history HandHistorySink) *Room {
	r := &Room{
		ID:           id,
		CreatedAt:    clock.Now(),
		LastSeen:     clock.Now(),
		Status:       StatusWaiting,
		config:       cfg,
		g:            g,
		clock:        clock,
		members:      make(map[string]*Member),
		maxBuyIn:     maxBuyIn,
		onBroadcast:  broadcast,
		onHandResult: history,
	}

	g.OnBroadcast = func(reason string) {
		go r.pushLocked(reason)
	}
	g.OnTurnTimeout = func(seat int) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.g.HandleTurnTimeout(seat)
	}
	g.OnHandGapElapsed = func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.reapOfflineSeatsLocked()
		if err := r.g.StartNextHand(); err != nil {
			r.Status = StatusPaused
		}
	}
	g.OnSessionEnd = func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.endGameLocked()
	}
	g.OnHandHistory = func(rec game.HandHistoryRecord) {
		rec.RoomID = r.ID
		if r.onHandResult != nil {
			go r.onHandResult(r.ID, rec)
		}
	}

	return r
}

// pushLocked renders a fresh snapshot under the room lock, then calls the
// broadcast hook after releasing it, per the "never hold the lock during
// I/O" rule (§5).
func (r *Room) pushLocked(reason string) {
	r.mu.Lock()
	snap := r.g.Snapshot()
	r.mu.Unlock()
	if r.onBroadcast != nil {
		r.onBroadcast(r.ID, snap, reason)
	}
}

// Snapshot returns the current game state for display.
func (r *Room) Snapshot() game.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.g.Snapshot()
}

// Fingerprint returns the current change-detection digest, used by the
// broadcast scheduler's polling loop (§4.6).
func (r *Room) Fingerprint() game.Fingerprint {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.g.Fingerprint()
}

// Touch refreshes the room's idle-expiry clock (LastSeen).
func (r *Room) Touch() {
	r.mu.Lock()
	r.LastSeen = r.clock.Now()
	r.mu.Unlock()
}

// IdleSince reports how long the room has gone without activity.
func (r *Room) IdleSince() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clock.Now().Sub(r.LastSeen)
}

// AddMember registers a username as present in the room without seating
// them. The first member to join becomes the owner.
func (r *Room) AddMember(username string) (*Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Status == StatusEnded {
		return nil, ErrRoomEnded
	}
	if m, ok := r.members[username]; ok {
		m.Online = true
		return m, nil
	}
	m := &Member{Username: username, Seat: -1, Online: true, JoinedAt: r.clock.Now(), IsOwner: len(r.members) == 0}
	r.members[username] = m
	r.touchLocked()
	return m, nil
}

func (r *Room) touchLocked() { r.LastSeen = r.clock.Now() }

// SitDown seats a member with an initial buy-in. If a hand is in progress
// the seat is occupied immediately but marked sitting out until the next
// hand boundary, matching the Game's own per-hand dealing rules.
func (r *Room) SitDown(username string, seat int, buyIn decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Status == StatusEnded {
		return ErrRoomEnded
	}
	m, ok := r.members[username]
	if !ok {
		return ErrPlayerNotFound
	}
	if m.Seat >= 0 {
		return ErrAlreadySeated
	}
	if seat < 0 || seat >= r.g.SeatCount() {
		return ErrSeatOutOfRange
	}
	if r.maxBuyIn.GreaterThan(decimal.Zero) && buyIn.GreaterThan(r.maxBuyIn) {
		return ErrInsufficientFunds
	}
	s := r.g.Seat(seat)
	if s.Occupied {
		return ErrSeatOccupied
	}

	s.Occupied = true
	s.Username = username
	s.Chips = buyIn
	s.TotalBuyIn = buyIn
	s.Online = true
	s.SittingOut = r.g.Phase.IsBetting() || r.g.Phase == game.PhaseShowdown || r.g.Phase == game.PhaseSettle

	m.Seat = seat
	r.touchLocked()
	return nil
}

// BuyIn adds chips to a seated player. If a hand is in progress the amount
// is queued as PendingBuyIn and applied at the next hand boundary (§4.2,
// §4.3), so a mid-hand top-up never changes a player's stack size while
// they're at risk.
func (r *Room) BuyIn(username string, amount decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[username]
	if !ok || m.Seat < 0 {
		return ErrNotSeated
	}
	s := r.g.Seat(m.Seat)
	if r.g.Phase.IsBetting() || r.g.Phase == game.PhaseShowdown || r.g.Phase == game.PhaseSettle {
		s.PendingBuyIn = s.PendingBuyIn.Add(amount)
	} else {
		s.Chips = s.Chips.Add(amount)
	}
	s.TotalBuyIn = s.TotalBuyIn.Add(amount)
	r.touchLocked()
	return nil
}

// StandUp vacates a player's seat. Any player still live in the hand
// currently in progress — dealt in, not folded, whether or not it is their
// turn, whether or not they are all-in — cannot stand up; they must fold
// first (§4.3 "only allowed when game not in progress or player not in the
// current hand").
func (r *Room) StandUp(username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[username]
	if !ok || m.Seat < 0 {
		return ErrNotSeated
	}
	seat := m.Seat
	if r.g.SeatLiveInHand(seat) {
		return ErrCannotStandMidHand
	}
	r.cashOutSeatLocked(seat, username)
	m.Seat = -1
	r.touchLocked()
	return nil
}

// cashOutSeatLocked reclaims a seat and, if chips remain, credits them back
// to the player's account balance outside the lock (the original's
// cash_out behavior, preserved per SPEC_FULL.md supplemented features). Any
// bet the seat already placed in the current round is folded into the pot
// first, so a seat vacated mid-round never simply erases its contribution
// (Invariant F).
func (r *Room) cashOutSeatLocked(seat int, username string) {
	r.g.ForfeitBet(seat)
	chips := r.g.Seat(seat).Chips
	r.vacateSeatLocked(seat)
	if r.onCashOut != nil && chips.GreaterThan(decimal.Zero) {
		hook := r.onCashOut
		go hook(username, chips)
	}
}

func (r *Room) vacateSeatLocked(seat int) {
	s := r.g.Seat(seat)
	*s = game.Seat{Chips: decimal.Zero, BetAmount: decimal.Zero, TotalBuyIn: decimal.Zero, PendingBuyIn: decimal.Zero}
}

// ChangeSeat moves a seated, unengaged player to a different empty seat.
func (r *Room) ChangeSeat(username string, newSeat int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[username]
	if !ok || m.Seat < 0 {
		return ErrNotSeated
	}
	if newSeat < 0 || newSeat >= r.g.SeatCount() {
		return ErrSeatOutOfRange
	}
	if r.g.Seat(newSeat).Occupied {
		return ErrSeatOccupied
	}
	old := r.g.Seat(m.Seat)
	dest := r.g.Seat(newSeat)
	*dest = *old
	r.vacateSeatLocked(m.Seat)
	m.Seat = newSeat
	r.touchLocked()
	return nil
}

// Leave marks a member offline. Their seat (if any) is retained so they can
// reconnect; if they are the current owner, ownership passes as
// reassignOwnerLocked describes. The seat is vacated for real at the next
// hand boundary, when the room's hand-gap handler (or StartGame) reaps
// offline seats.
func (r *Room) Leave(username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[username]
	if !ok {
		return ErrPlayerNotFound
	}
	m.Online = false
	if m.Seat >= 0 {
		r.g.Seat(m.Seat).Online = false
	}
	if m.IsOwner {
		r.reassignOwnerLocked()
	}
	r.touchLocked()
	return nil
}

// reassignOwnerLocked promotes the next-seated player in seat order, mirroring
// the original room_manager.py's rule (SPEC_FULL.md supplemented features).
// Falls back to the earliest-joined online member if nobody is seated.
func (r *Room) reassignOwnerLocked() {
	var seated []*Member
	var unseated []*Member
	for _, m := range r.members {
		if !m.Online {
			continue
		}
		if m.Seat >= 0 {
			seated = append(seated, m)
		} else {
			unseated = append(unseated, m)
		}
	}
	sort.Slice(seated, func(i, j int) bool { return seated[i].Seat < seated[j].Seat })
	sort.Slice(unseated, func(i, j int) bool { return unseated[i].JoinedAt.Before(unseated[j].JoinedAt) })

	for _, m := range r.members {
		m.IsOwner = false
	}
	switch {
	case len(seated) > 0:
		seated[0].IsOwner = true
	case len(unseated) > 0:
		unseated[0].IsOwner = true
	}
}

// ReapOfflineSeats stands up any offline player's seat once no hand is
// using it (called at hand boundaries: PhaseGap or before the game starts).
func (r *Room) ReapOfflineSeats() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reapOfflineSeatsLocked()
}

func (r *Room) reapOfflineSeatsLocked() {
	if r.g.Phase.IsBetting() || r.g.Phase == game.PhaseShowdown || r.g.Phase == game.PhaseSettle {
		return
	}
	for username, m := range r.members {
		if !m.Online && m.Seat >= 0 {
			r.cashOutSeatLocked(m.Seat, username)
			m.Seat = -1
		}
	}
}

// Reconnect marks a returning member online again and restores their seat's
// online flag.
func (r *Room) Reconnect(username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[username]
	if !ok {
		return ErrPlayerNotFound
	}
	m.Online = true
	if m.Seat >= 0 {
		r.g.Seat(m.Seat).Online = true
	}
	r.touchLocked()
	return nil
}

// StartGame assigns the dealer button to the earliest seated player and
// deals the first hand.
func (r *Room) StartGame(sessionDuration time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Status == StatusEnded {
		return ErrRoomEnded
	}
	r.reapOfflineSeatsLocked()
	dealer := -1
	for i := 0; i < r.g.SeatCount(); i++ {
		if s := r.g.Seat(i); s.Occupied && s.Chips.GreaterThan(decimal.Zero) {
			dealer = i
			break
		}
	}
	if dealer >= 0 {
		r.g.SetDealer(dealer)
	}
	if sessionDuration > 0 {
		r.g.SetSessionDeadline(r.clock.Now().Add(sessionDuration))
	}
	if err := r.g.StartRound(); err != nil {
		return err
	}
	r.Status = StatusActive
	r.touchLocked()
	return nil
}

// EndGame stops all timers and marks the room ended.
func (r *Room) EndGame() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endGameLocked()
}

func (r *Room) endGameLocked() {
	r.g.CancelTimers()
	r.Status = StatusEnded
	r.touchLocked()
}

// HandleAction forwards a wagering action to the Game under lock.
func (r *Room) HandleAction(username string, action game.ActionType, amount decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[username]
	if !ok || m.Seat < 0 {
		return ErrNotSeated
	}
	r.touchLocked()
	return r.g.HandleAction(m.Seat, action, amount)
}

// HandleDiscard forwards a discard to the Game under lock.
func (r *Room) HandleDiscard(username string, cardIndex int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[username]
	if !ok || m.Seat < 0 {
		return ErrNotSeated
	}
	r.touchLocked()
	return r.g.HandleDiscard(m.Seat, cardIndex)
}

// MemberCount reports how many members (seated or not) belong to the room.
func (r *Room) MemberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// SeatOf reports a member's current seat, or -1 if unseated or unknown.
func (r *Room) SeatOf(username string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.members[username]; ok {
		return m.Seat
	}
	return -1
}

// HoleCardsOf returns a seated player's current hole cards, for the
// show_card supplemented action (§9) where a player voluntarily reveals
// their hand outside of showdown.
func (r *Room) HoleCardsOf(username string) ([]poker.Card, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[username]
	if !ok || m.Seat < 0 {
		return nil, ErrNotSeated
	}
	cards := r.g.Seat(m.Seat).HoleCards
	out := make([]poker.Card, len(cards))
	copy(out, cards)
	return out, nil
}

// HandViewOf returns a seated player's current hole cards plus their
// discarded card (nil if not yet discarded), for the private player_hand
// push (§4.5 sendPlayerHand, §6 "player_hand with my_hand and
// discarded_card").
func (r *Room) HandViewOf(username string) ([]poker.Card, *poker.Card, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[username]
	if !ok || m.Seat < 0 {
		return nil, nil, ErrNotSeated
	}
	s := r.g.Seat(m.Seat)
	cards := make([]poker.Card, len(s.HoleCards))
	copy(cards, s.HoleCards)
	var discarded *poker.Card
	if s.DiscardedCard != nil {
		c := *s.DiscardedCard
		discarded = &c
	}
	return cards, discarded, nil
}

// Owner reports the current owning member's username, empty if none.
func (r *Room) Owner() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.members {
		if m.IsOwner {
			return m.Username
		}
	}
	return ""
}

// IsMember reports whether username has ever joined this room (used by the
// auth Gate's MembershipChecker).
func (r *Room) IsMember(username string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.members[username]
	return ok
}
