// Package game implements the per-table betting-round state machine for one
// hand of Pineapple Hold'em: blinds, discard enforcement, turn sequencing,
// community dealing, and showdown settlement.
package game

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pineapple-room-server/internal/metrics"
	"pineapple-room-server/pkg/poker"
	"pineapple-room-server/pkg/rng"
)

// Game runs one table's hands end to end. It is not safe for concurrent use
// on its own: the owning Room serializes every call behind its mutex,
// including the timer callbacks wired through OnTurnTimeout and
// OnHandGapElapsed.
type Game struct {
	Config Config

	HandID         string
	Seats          []*Seat
	Dealer         int
	CurrentPlayer  int
	Phase          Phase
	BettingRound   int
	CommunityCards []poker.Card
	Deck           *poker.Deck
	Pot            decimal.Decimal
	CurrentBet     decimal.Decimal
	Winners        []HandWinner
	HeadsUp        bool

	TurnStart       time.Time
	TurnTimer       Timer
	NextHandTimer   Timer
	SessionDeadline time.Time
	handStarted     time.Time

	// OnBroadcast fires after any state-changing mutation, reason is a short
	// tag for logging; the Room wires this to its broadcaster.
	OnBroadcast func(reason string)
	// OnTurnTimeout fires from the clock, outside the Room mutex; the Room's
	// handler must acquire its lock before calling HandleTurnTimeout.
	OnTurnTimeout func(seat int)
	// OnHandGapElapsed fires when the 5s post-settle gap ends; the Room's
	// handler acquires its lock and calls StartNextHand.
	OnHandGapElapsed func()
	// OnSessionEnd fires when the session deadline has passed at a hand
	// boundary; the Room's handler calls EndGame.
	OnSessionEnd func()
	// OnHandHistory fires once per settled hand with a persistable record;
	// the Room wires this to the hand-history store.
	OnHandHistory func(HandHistoryRecord)

	clock     Clock
	rngSys    *rng.System
	evaluator *poker.HandEvaluator
}

// NewGame builds an idle Game with the given seat count. Call StartRound to
// deal the first hand once at least two seats are occupied with chips.
func NewGame(cfg Config, clock Clock, rngSys *rng.System, evaluator *poker.HandEvaluator) *Game {
	if cfg.TurnSeconds <= 0 {
		cfg.TurnSeconds = DefaultTurnSeconds
	}
	if cfg.HandGapSeconds <= 0 {
		cfg.HandGapSeconds = DefaultHandGapSeconds
	}
	seats := make([]*Seat, cfg.MaxSeats)
	for i := range seats {
		seats[i] = &Seat{Chips: decimal.Zero, BetAmount: decimal.Zero, TotalBuyIn: decimal.Zero, PendingBuyIn: decimal.Zero}
	}
	return &Game{
		Config:    cfg,
		Seats:     seats,
		Phase:     PhaseGap,
		Pot:       decimal.Zero,
		clock:     clock,
		rngSys:    rngSys,
		evaluator: evaluator,
	}
}

// Seat returns the seat record at idx for the Room to mutate between hands.
func (g *Game) Seat(idx int) *Seat {
	if idx < 0 || idx >= len(g.Seats) {
		return nil
	}
	return g.Seats[idx]
}

// SeatCount reports the number of seats at the table.
func (g *Game) SeatCount() int { return len(g.Seats) }

// SetDealer sets the initial dealer seat; used once, before the first hand.
func (g *Game) SetDealer(seat int) { g.Dealer = seat }

// SetSessionDeadline records the wall-clock time at which the session ends.
func (g *Game) SetSessionDeadline(t time.Time) { g.SessionDeadline = t }

// SeatLiveInHand reports whether seat still holds a stake in the hand
// currently in progress: dealt in and not folded, regardless of whose turn
// it is or whether they are all-in. The Room uses this to forbid standing
// up anyone still contesting the pot (§4.3 standUp).
func (g *Game) SeatLiveInHand(seat int) bool {
	if !(g.Phase.IsBetting() || g.Phase == PhaseShowdown || g.Phase == PhaseSettle) {
		return false
	}
	s := g.Seats[seat]
	return s.inHand() && !s.Folded
}

// ForfeitBet folds seat's current-round bet into the pot. The Room calls
// this before permanently vacating a seat outside the normal
// betting-round-close path, so a folded player's already-wagered chips are
// never simply discarded (Invariant F).
func (g *Game) ForfeitBet(seat int) {
	s := g.Seats[seat]
	g.Pot = g.Pot.Add(s.BetAmount)
	s.BetAmount = decimal.Zero
}

func (g *Game) notify(reason string) {
	metrics.BroadcastsSentTotal.WithLabelValues(reason).Inc()
	if g.OnBroadcast != nil {
		g.OnBroadcast(reason)
	}
}

// CancelTimers stops any armed turn or hand-gap timer, for Room shutdown.
func (g *Game) CancelTimers() {
	g.cancelTurnTimer()
	if g.NextHandTimer != nil {
		g.NextHandTimer.Stop()
		g.NextHandTimer = nil
	}
}

func (g *Game) cancelTurnTimer() {
	if g.TurnTimer != nil {
		g.TurnTimer.Stop()
		g.TurnTimer = nil
	}
}

func (g *Game) armTurnTimer(seat int) {
	g.cancelTurnTimer()
	g.TurnStart = g.clock.Now()
	g.TurnTimer = g.clock.AfterFunc(time.Duration(g.Config.TurnSeconds)*time.Second, func() {
		if g.OnTurnTimeout != nil {
			g.OnTurnTimeout(seat)
		}
	})
}

// playableSeats returns, ascending, seats that can be dealt into a fresh
// hand: occupied, not sitting out, holding chips.
func (g *Game) playableSeats() []int {
	var out []int
	for i, s := range g.Seats {
		if s.Occupied && !s.SittingOut && s.Chips.GreaterThan(decimal.Zero) {
			out = append(out, i)
		}
	}
	return out
}

func nextSeatInList(list []int, from int) int {
	for _, v := range list {
		if v > from {
			return v
		}
	}
	return list[0]
}

func rotateFromDealer(list []int, dealer int) []int {
	start := nextSeatInList(list, dealer)
	idx := 0
	for i, v := range list {
		if v == start {
			idx = i
			break
		}
	}
	out := make([]int, 0, len(list))
	out = append(out, list[idx:]...)
	out = append(out, list[:idx]...)
	return out
}

// StartRound deals a fresh hand: shuffle, deal three cards per playable
// seat, post blinds, pick the first actor, arm the turn timer (§4.2).
func (g *Game) StartRound() error {
	playable := g.playableSeats()
	if len(playable) < 2 {
		return ErrNotEnoughPlayers
	}

	g.HandID = uuid.NewString()
	g.handStarted = g.clock.Now()
	g.Deck = poker.NewDeck()
	g.Deck.Shuffle(g.rngSys)
	g.CommunityCards = nil
	g.Pot = decimal.Zero
	g.CurrentBet = decimal.Zero
	g.Winners = nil
	g.HeadsUp = len(playable) == 2

	dealOrder := rotateFromDealer(playable, g.Dealer)
	for round := 0; round < 3; round++ {
		for _, seat := range dealOrder {
			s := g.Seats[seat]
			s.HoleCards = append(s.HoleCards, g.Deck.Pop())
		}
	}

	// Occupied seats that are not dealt in take no part in this hand.
	for _, s := range g.Seats {
		if s.Occupied {
			s.Folded = true
		}
	}
	for _, seat := range playable {
		s := g.Seats[seat]
		s.Folded = false
		s.AllIn = false
		s.HasDiscarded = false
		s.Acted = false
		s.BetAmount = decimal.Zero
		s.DiscardedCard = nil
	}

	var sbSeat, bbSeat int
	if g.HeadsUp {
		sbSeat = g.Dealer
		bbSeat = nextSeatInList(playable, g.Dealer)
	} else {
		sbSeat = nextSeatInList(playable, g.Dealer)
		bbSeat = nextSeatInList(playable, sbSeat)
	}
	g.postBlind(sbSeat, g.Config.SmallBlind)
	g.postBlind(bbSeat, g.Config.BigBlind)
	g.CurrentBet = g.Seats[bbSeat].BetAmount
	for _, seat := range playable {
		g.Seats[seat].Acted = false
	}

	var first int
	if g.HeadsUp {
		first = sbSeat
	} else {
		first = nextSeatInList(playable, bbSeat)
	}
	g.CurrentPlayer = first
	g.Phase = PhasePreFlopBet
	g.BettingRound = 0
	g.armTurnTimer(first)
	g.notify("start_round")
	return nil
}

func (g *Game) postBlind(seat int, blind decimal.Decimal) {
	s := g.Seats[seat]
	amt := blind
	if s.Chips.LessThan(blind) {
		amt = s.Chips
		s.AllIn = true
	}
	s.Chips = s.Chips.Sub(amt)
	s.BetAmount = amt
}

func (g *Game) minRaiseAmount() decimal.Decimal {
	if g.CurrentBet.IsZero() {
		return g.Config.BigBlind
	}
	return g.CurrentBet.Mul(decimal.NewFromInt(2))
}

// HandleAction processes a wagering action from the current player (§4.2).
func (g *Game) HandleAction(seatIdx int, action ActionType, amount decimal.Decimal) error {
	if seatIdx < 0 || seatIdx >= len(g.Seats) {
		return ErrSeatOutOfRange
	}
	s := g.Seats[seatIdx]
	if s == nil || !s.Occupied {
		return ErrSeatEmpty
	}
	if !g.Phase.IsBetting() {
		return ErrActionNotAllowed
	}
	if !s.HasDiscarded && len(s.HoleCards) == 3 {
		return ErrMustDiscardFirst
	}
	if seatIdx != g.CurrentPlayer {
		return ErrNotYourTurn
	}
	if s.Folded {
		return ErrPlayerFolded
	}
	if s.AllIn {
		return ErrPlayerAllIn
	}

	switch action {
	case ActionFold:
		s.Folded = true
		s.Acted = true

	case ActionCheck:
		if !s.BetAmount.Equal(g.CurrentBet) {
			return ErrCannotCheck
		}
		s.Acted = true

	case ActionCall:
		target := g.CurrentBet.Sub(s.BetAmount)
		if target.LessThanOrEqual(decimal.Zero) {
			s.Acted = true
			break
		}
		if s.Chips.LessThan(target) {
			s.BetAmount = s.BetAmount.Add(s.Chips)
			s.Chips = decimal.Zero
			s.AllIn = true
		} else {
			s.Chips = s.Chips.Sub(target)
			s.BetAmount = s.BetAmount.Add(target)
		}
		s.Acted = true

	case ActionRaise:
		if amount.LessThanOrEqual(g.CurrentBet) {
			return ErrInvalidAmount
		}
		maxPossible := s.Chips.Add(s.BetAmount)
		if amount.GreaterThan(maxPossible) {
			return ErrInvalidAmount
		}
		if !amount.Equal(maxPossible) {
			if amount.LessThan(g.minRaiseAmount()) {
				return ErrRaiseTooSmall
			}
		}
		delta := amount.Sub(s.BetAmount)
		s.Chips = s.Chips.Sub(delta)
		s.BetAmount = amount
		if s.Chips.IsZero() {
			s.AllIn = true
		}
		g.CurrentBet = amount
		g.resetActedExcept(seatIdx)
		s.Acted = true

	case ActionAllIn:
		delta := s.Chips
		s.BetAmount = s.BetAmount.Add(delta)
		s.Chips = decimal.Zero
		s.AllIn = true
		if s.BetAmount.GreaterThan(g.CurrentBet) {
			g.CurrentBet = s.BetAmount
			g.resetActedExcept(seatIdx)
		}
		s.Acted = true

	default:
		return ErrActionNotAllowed
	}

	g.cancelTurnTimer()
	g.afterAction()
	g.notify("action:" + action.String())
	return nil
}

func (g *Game) resetActedExcept(seatIdx int) {
	for i, s := range g.Seats {
		if s.Occupied && i != seatIdx {
			s.Acted = false
		}
	}
}

// HandleDiscard removes one of a player's three hole cards (§4.2). It may be
// called at any time before the player's first wagering action, regardless
// of whose turn it is, and never advances the turn.
func (g *Game) HandleDiscard(seatIdx, cardIndex int) error {
	if seatIdx < 0 || seatIdx >= len(g.Seats) {
		return ErrSeatOutOfRange
	}
	s := g.Seats[seatIdx]
	if s == nil || !s.Occupied {
		return ErrSeatEmpty
	}
	if err := g.discardCard(seatIdx, cardIndex); err != nil {
		return err
	}
	g.notify("discard")
	return nil
}

func (g *Game) discardCard(seatIdx, idx int) error {
	s := g.Seats[seatIdx]
	if s.HasDiscarded {
		return ErrAlreadyDiscarded
	}
	if idx < 0 || idx >= len(s.HoleCards) {
		return ErrInvalidDiscard
	}
	card := s.HoleCards[idx]
	s.DiscardedCard = &card
	s.HoleCards = append(append([]poker.Card{}, s.HoleCards[:idx]...), s.HoleCards[idx+1:]...)
	s.HasDiscarded = true
	return nil
}

// HandleTurnTimeout applies the default action for a player who let their
// clock expire: an auto-discard if still owed, then auto-check or auto-fold
// (§4.2 turn timer). It is a no-op if the turn already moved on.
func (g *Game) HandleTurnTimeout(seat int) {
	if !g.Phase.IsBetting() || g.CurrentPlayer != seat {
		return
	}
	s := g.Seats[seat]
	if s == nil || !s.Occupied {
		return
	}
	if !s.HasDiscarded && len(s.HoleCards) == 3 {
		idx := g.rngSys.RandomInt(len(s.HoleCards))
		_ = g.discardCard(seat, idx)
		g.notify("turn_timeout_discard")
	}
	if s.BetAmount.Equal(g.CurrentBet) {
		metrics.TurnTimeoutsTotal.WithLabelValues("check").Inc()
		_ = g.HandleAction(seat, ActionCheck, decimal.Zero)
	} else {
		metrics.TurnTimeoutsTotal.WithLabelValues("fold").Inc()
		_ = g.HandleAction(seat, ActionFold, decimal.Zero)
	}
}

func (g *Game) seatsInHandNotFolded() []int {
	var out []int
	for i, s := range g.Seats {
		if s.inHand() && !s.Folded {
			out = append(out, i)
		}
	}
	return out
}

func (g *Game) countActive() int {
	count := 0
	for _, s := range g.Seats {
		if s.active() {
			count++
		}
	}
	return count
}

func (g *Game) bettingRoundClosed() bool {
	for _, s := range g.Seats {
		if s.inHand() && !s.Folded && !s.AllIn {
			if !s.Acted || !s.BetAmount.Equal(g.CurrentBet) {
				return false
			}
		}
	}
	return true
}

func (g *Game) nextActiveFrom(start int, inclusive bool) int {
	n := len(g.Seats)
	offset := 1
	if inclusive {
		offset = 0
	}
	for i := 0; i < n; i++ {
		idx := (start + offset + i) % n
		if g.Seats[idx].active() {
			return idx
		}
	}
	return -1
}

func (g *Game) afterAction() {
	remaining := g.seatsInHandNotFolded()
	if len(remaining) == 1 {
		g.foldBetsIntoPot()
		g.finishHand()
		return
	}
	if g.bettingRoundClosed() {
		g.advanceBettingRound()
		return
	}
	next := g.nextActiveFrom(g.CurrentPlayer, false)
	if next < 0 {
		g.advanceBettingRound()
		return
	}
	g.CurrentPlayer = next
	g.armTurnTimer(next)
}

func (g *Game) foldBetsIntoPot() {
	for _, s := range g.Seats {
		if s.Occupied {
			g.Pot = g.Pot.Add(s.BetAmount)
			s.BetAmount = decimal.Zero
		}
	}
}

func (g *Game) dealCommunity(n int, burn bool) {
	if burn && g.Deck.Len() > 0 {
		g.Deck.Pop()
	}
	for i := 0; i < n && g.Deck.Len() > 0; i++ {
		g.CommunityCards = append(g.CommunityCards, g.Deck.Pop())
	}
}

func (g *Game) otherHeadsUpSeat() int {
	for i, s := range g.Seats {
		if s.inHand() && i != g.Dealer {
			return i
		}
	}
	return -1
}

func (g *Game) firstActorPostflop() int {
	if g.HeadsUp {
		nd := g.otherHeadsUpSeat()
		if nd >= 0 && g.Seats[nd].active() {
			return nd
		}
	}
	return g.nextActiveFrom(g.Dealer, false)
}

// advanceBettingRound folds bets into the pot, deals the next street, and
// either hands off to the first postflop actor or, when no more than one
// seat can still act, recurses straight through to showdown (§4.2).
func (g *Game) advanceBettingRound() {
	g.foldBetsIntoPot()
	for _, s := range g.Seats {
		if s.inHand() && !s.AllIn {
			s.Acted = false
		}
	}
	g.CurrentBet = decimal.Zero

	switch g.Phase {
	case PhasePreFlopBet:
		g.dealCommunity(3, true)
		g.Phase = PhaseFlopBet
		g.BettingRound = 1
	case PhaseFlopBet:
		g.dealCommunity(1, true)
		g.Phase = PhaseTurnBet
		g.BettingRound = 2
	case PhaseTurnBet:
		g.dealCommunity(1, true)
		g.Phase = PhaseRiverBet
		g.BettingRound = 3
	case PhaseRiverBet:
		g.Phase = PhaseShowdown
		g.finishHand()
		return
	default:
		return
	}

	if g.countActive() <= 1 && len(g.seatsInHandNotFolded()) >= 2 {
		g.advanceBettingRound()
		return
	}

	first := g.firstActorPostflop()
	if first < 0 {
		g.advanceBettingRound()
		return
	}
	g.CurrentPlayer = first
	g.armTurnTimer(first)
	g.notify("advance_betting_round")
}

// finishHand awards the pot (uncontested or by showdown), persists a
// hand-history record, and schedules the next hand or session end (§4.2).
func (g *Game) finishHand() {
	g.cancelTurnTimer()
	remaining := g.seatsInHandNotFolded()

	var winners []HandWinner
	if len(remaining) == 1 {
		seat := remaining[0]
		amount := g.Pot
		g.Seats[seat].Chips = g.Seats[seat].Chips.Add(amount)
		winners = []HandWinner{{Seat: seat, Username: g.Seats[seat].Username, Amount: amount, HandDesc: "uncontested"}}
		g.Pot = decimal.Zero
	} else {
		for len(g.CommunityCards) < 5 && g.Deck.Len() > 0 {
			if len(g.CommunityCards) == 0 {
				g.dealCommunity(3, true)
			} else {
				g.dealCommunity(1, true)
			}
		}
		best := make(map[int]poker.EvaluatedHand, len(remaining))
		for _, seat := range remaining {
			best[seat] = g.evaluator.Evaluate(g.Seats[seat].HoleCards, g.CommunityCards)
		}
		winnerSeats := []int{remaining[0]}
		for _, seat := range remaining[1:] {
			cmp := g.evaluator.Compare(best[seat], best[winnerSeats[0]])
			switch {
			case cmp > 0:
				winnerSeats = []int{seat}
			case cmp == 0:
				winnerSeats = append(winnerSeats, seat)
			}
		}
		winners = g.splitPot(winnerSeats, best)
	}

	g.Winners = winners
	g.Phase = PhaseSettle
	if !g.handStarted.IsZero() {
		metrics.HandDurationSeconds.Observe(g.clock.Now().Sub(g.handStarted).Seconds())
	}
	g.recordHistory()
	g.scheduleNextHandOrEnd()
	g.notify("settle")
}

// splitPot divides the pot in minor units (cents) evenly among winnerSeats,
// handing any remainder unit to the earliest winners in seat order starting
// from dealer+1 (§4.2 numeric semantics, §8 scenario 6).
func (g *Game) splitPot(winnerSeats []int, best map[int]poker.EvaluatedHand) []HandWinner {
	potMinor := g.Pot.Shift(2).Round(0).IntPart()
	order := append([]int{}, winnerSeats...)
	n := len(g.Seats)
	sort.Slice(order, func(i, j int) bool {
		di := ((order[i]-g.Dealer-1)%n + n) % n
		dj := ((order[j]-g.Dealer-1)%n + n) % n
		return di < dj
	})

	share := potMinor / int64(len(order))
	remainder := potMinor % int64(len(order))

	winners := make([]HandWinner, 0, len(order))
	for i, seat := range order {
		units := share
		if int64(i) < remainder {
			units++
		}
		amount := decimal.New(units, -2)
		g.Seats[seat].Chips = g.Seats[seat].Chips.Add(amount)
		winners = append(winners, HandWinner{
			Seat:     seat,
			Username: g.Seats[seat].Username,
			Amount:   amount,
			Hand:     best[seat],
			HandDesc: best[seat].Category.String(),
		})
	}
	g.Pot = decimal.Zero
	return winners
}

func (g *Game) recordHistory() {
	if g.OnHandHistory == nil {
		return
	}
	// g.Pot is already zeroed by settlement; the awarded amounts sum to it.
	pot := decimal.Zero
	for _, w := range g.Winners {
		pot = pot.Add(w.Amount)
	}
	g.OnHandHistory(HandHistoryRecord{
		HandID:         g.HandID,
		FinishedAt:     g.clock.Now(),
		CommunityCards: append([]poker.Card{}, g.CommunityCards...),
		Winners:        g.Winners,
		Pot:            pot,
	})
}

func (g *Game) scheduleNextHandOrEnd() {
	if !g.SessionDeadline.IsZero() && !g.clock.Now().Before(g.SessionDeadline) {
		if g.OnSessionEnd != nil {
			g.OnSessionEnd()
		}
		return
	}
	g.Phase = PhaseGap
	if g.NextHandTimer != nil {
		g.NextHandTimer.Stop()
	}
	g.NextHandTimer = g.clock.AfterFunc(time.Duration(g.Config.HandGapSeconds)*time.Second, func() {
		if g.OnHandGapElapsed != nil {
			g.OnHandGapElapsed()
		}
	})
}

func nextPlayableSeatForDealer(seats []*Seat, from int) int {
	n := len(seats)
	for i := 1; i <= n; i++ {
		idx := (from + i) % n
		s := seats[idx]
		if s.Occupied && !s.SittingOut && s.Chips.GreaterThan(decimal.Zero) {
			return idx
		}
	}
	return -1
}

// StartNextHand rotates the dealer, settles pending buy-ins, resets
// per-hand seat fields, and deals a new hand. If fewer than two seats remain
// playable, it leaves the Game idle in PhaseGap and returns
// ErrNotEnoughPlayers; the Room then marks the room paused (§4.2).
func (g *Game) StartNextHand() error {
	g.CancelTimers()

	if newDealer := nextPlayableSeatForDealer(g.Seats, g.Dealer); newDealer >= 0 {
		g.Dealer = newDealer
	}

	for _, s := range g.Seats {
		if !s.Occupied {
			continue
		}
		if s.PendingBuyIn.GreaterThan(decimal.Zero) {
			s.Chips = s.Chips.Add(s.PendingBuyIn)
			s.PendingBuyIn = decimal.Zero
		}
		s.HoleCards = nil
		s.DiscardedCard = nil
		s.BetAmount = decimal.Zero
		s.Folded = false
		s.AllIn = false
		s.HasDiscarded = false
		s.Acted = false
		s.SittingOut = false
	}
	g.CommunityCards = nil
	g.Pot = decimal.Zero
	g.Winners = nil

	return g.StartRound()
}

// Snapshot renders the full client-facing game state (§6).
func (g *Game) Snapshot() Snapshot {
	seats := make([]SeatView, len(g.Seats))
	for i, s := range g.Seats {
		seats[i] = SeatView{
			Seat:         i,
			Username:     s.Username,
			Chips:        s.Chips,
			BetAmount:    s.BetAmount,
			Folded:       s.Folded,
			HasDiscarded: s.HasDiscarded,
			TotalBuyIn:   s.TotalBuyIn,
			PendingBuyIn: s.PendingBuyIn,
			Online:       s.Online,
			IsCurrent:    i == g.CurrentPlayer && g.Phase.IsBetting(),
			Occupied:     s.Occupied,
		}
	}
	for _, w := range g.Winners {
		seats[w.Seat].IsWinner = true
	}

	remaining := 0.0
	if g.Phase.IsBetting() && !g.TurnStart.IsZero() {
		elapsed := g.clock.Now().Sub(g.TurnStart).Seconds()
		remaining = float64(g.Config.TurnSeconds) - elapsed
		if remaining < 0 {
			remaining = 0
		}
	}

	name := ""
	if g.CurrentPlayer >= 0 && g.CurrentPlayer < len(g.Seats) {
		name = g.Seats[g.CurrentPlayer].Username
	}

	return Snapshot{
		HandID:            g.HandID,
		Phase:             g.Phase.String(),
		BettingRound:      g.BettingRound,
		CommunityCards:    append([]poker.Card{}, g.CommunityCards...),
		Pot:               g.Pot,
		CurrentBet:        g.CurrentBet,
		CurrentPlayerSeat: g.CurrentPlayer,
		CurrentPlayerName: name,
		SmallBlind:        g.Config.SmallBlind,
		BigBlind:          g.Config.BigBlind,
		DealerSeat:        g.Dealer,
		Seats:             seats,
		TurnRemainingSecs: remaining,
		TurnTimeLimitSecs: g.Config.TurnSeconds,
		HandWinners:       g.Winners,
	}
}

// Fingerprint reduces the snapshot to the fields the broadcast scheduler
// diffs to decide whether to push an update (§4.6).
func (g *Game) Fingerprint() Fingerprint {
	return Fingerprint{
		Phase:             g.Phase.String(),
		CurrentPlayerSeat: g.CurrentPlayer,
		Pot:               g.Pot.StringFixed(2),
		CommunityCardLen:  len(g.CommunityCards),
		BettingRound:      g.BettingRound,
	}
}
