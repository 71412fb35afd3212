package game

import (
	"time"

	"github.com/shopspring/decimal"

	"pineapple-room-server/pkg/poker"
)

// Phase is the per-hand state machine position (§4.2).
type Phase int

const (
	PhaseDeal Phase = iota
	PhasePreFlopBet
	PhaseFlopBet
	PhaseTurnBet
	PhaseRiverBet
	PhaseShowdown
	PhaseSettle
	PhaseGap
)

func (p Phase) String() string {
	switch p {
	case PhaseDeal:
		return "deal"
	case PhasePreFlopBet:
		return "preflop"
	case PhaseFlopBet:
		return "flop"
	case PhaseTurnBet:
		return "turn"
	case PhaseRiverBet:
		return "river"
	case PhaseShowdown:
		return "showdown"
	case PhaseSettle:
		return "settle"
	case PhaseGap:
		return "gap"
	default:
		return "unknown"
	}
}

// IsBetting reports whether the phase accepts wagering actions.
func (p Phase) IsBetting() bool {
	return p == PhasePreFlopBet || p == PhaseFlopBet || p == PhaseTurnBet || p == PhaseRiverBet
}

// ActionType is a wagering or housekeeping action a seated player may submit.
type ActionType int

const (
	ActionFold ActionType = iota
	ActionCheck
	ActionCall
	ActionRaise
	ActionAllIn
	ActionDiscard
)

func (a ActionType) String() string {
	switch a {
	case ActionFold:
		return "fold"
	case ActionCheck:
		return "check"
	case ActionCall:
		return "call"
	case ActionRaise:
		return "raise"
	case ActionAllIn:
		return "all_in"
	case ActionDiscard:
		return "discard"
	default:
		return "unknown"
	}
}

// ParseAction maps a wire action string (§6) to an ActionType. "bet" is
// accepted as an alias of raise whatever the current bet.
func ParseAction(s string) (ActionType, bool) {
	switch s {
	case "fold":
		return ActionFold, true
	case "check":
		return ActionCheck, true
	case "call":
		return ActionCall, true
	case "raise", "bet":
		return ActionRaise, true
	case "all-in", "all_in":
		return ActionAllIn, true
	case "discard":
		return ActionDiscard, true
	default:
		return 0, false
	}
}

// Error is a Game error kind (§7 taxonomy), not a Go error type hierarchy —
// every Game-level failure is one of these flat kinds with a message.
type Error struct {
	Kind    string
	Message string
}

func (e *Error) Error() string { return e.Message }

func newError(kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

var (
	ErrNotEnoughPlayers  = newError("state", "not enough seated players with chips to start a hand")
	ErrHandInProgress    = newError("state", "a hand is already in progress")
	ErrSeatEmpty         = newError("state", "seat is not occupied")
	ErrSeatOutOfRange    = newError("validation", "seat index out of range")
	ErrNotYourTurn       = newError("state", "not your turn")
	ErrMustDiscardFirst  = newError("validation", "玩家必须先弃掉一张牌")
	ErrAlreadyDiscarded  = newError("validation", "player has already discarded")
	ErrInvalidDiscard    = newError("validation", "invalid discard index")
	ErrCannotCheck       = newError("state", "cannot check: a bet is outstanding")
	ErrRaiseTooSmall     = newError("validation", "raise amount is below the minimum raise")
	ErrInvalidAmount     = newError("validation", "invalid amount")
	ErrPlayerFolded      = newError("state", "player has folded")
	ErrPlayerAllIn       = newError("state", "player is already all-in")
	ErrActionNotAllowed  = newError("state", "action is not legal in the current phase")
)

// Seat is one position at the table for the duration of a single hand. A
// Room owns the backing array and mutates it between hands; a Game only
// reads and updates fields during an active hand.
type Seat struct {
	Occupied      bool
	Username      string
	Chips         decimal.Decimal
	HoleCards     []poker.Card
	DiscardedCard *poker.Card
	BetAmount     decimal.Decimal
	TotalBuyIn    decimal.Decimal
	PendingBuyIn  decimal.Decimal
	Online        bool
	Folded        bool
	AllIn         bool
	HasDiscarded  bool
	Acted         bool
	SittingOut    bool
}

// inHand reports whether the seat takes part in the current hand (occupied,
// not sitting out for the whole hand); it does not look at Folded, which
// callers check separately.
func (s *Seat) inHand() bool {
	return s.Occupied && !s.SittingOut
}

// active reports whether the seat can still act this betting round.
func (s *Seat) active() bool {
	return s.inHand() && !s.Folded && !s.AllIn
}

// SeatView is the read-only snapshot of a seat sent to clients (§6 game
// state snapshot, per-seat view).
type SeatView struct {
	Seat          int             `json:"seat"`
	Username      string          `json:"username,omitempty"`
	Chips         decimal.Decimal `json:"chips"`
	BetAmount     decimal.Decimal `json:"bet_amount"`
	Folded        bool            `json:"folded"`
	HasDiscarded  bool            `json:"has_discarded"`
	TotalBuyIn    decimal.Decimal `json:"total_buy_in"`
	PendingBuyIn  decimal.Decimal `json:"pending_buy_in"`
	Online        bool            `json:"online"`
	IsCurrent     bool            `json:"is_current"`
	IsWinner      bool            `json:"is_winner,omitempty"`
	Occupied      bool            `json:"occupied"`
}

// HandWinner records one winning seat's share of the pot at showdown.
type HandWinner struct {
	Seat     int             `json:"seat"`
	Username string          `json:"username"`
	Amount   decimal.Decimal `json:"amount"`
	Hand     poker.EvaluatedHand `json:"-"`
	HandDesc string          `json:"hand_description"`
}

// Snapshot is the full, client-renderable view of a Game at a point in time
// (§6 game state snapshot).
type Snapshot struct {
	HandID            string          `json:"hand_id"`
	Phase             string          `json:"phase"`
	BettingRound      int             `json:"betting_round"`
	CommunityCards    []poker.Card    `json:"community_cards"`
	Pot               decimal.Decimal `json:"pot"`
	CurrentBet        decimal.Decimal `json:"current_bet"`
	CurrentPlayerSeat int             `json:"current_player_seat"`
	CurrentPlayerName string          `json:"current_player_name,omitempty"`
	SmallBlind        decimal.Decimal `json:"small_blind"`
	BigBlind          decimal.Decimal `json:"big_blind"`
	DealerSeat        int             `json:"dealer_seat"`
	Seats             []SeatView      `json:"seats"`
	TurnRemainingSecs float64         `json:"turn_remaining_time"`
	TurnTimeLimitSecs int             `json:"turn_time_limit"`
	HandWinners       []HandWinner    `json:"hand_winners,omitempty"`
}

// Fingerprint is the subset of Snapshot fields the broadcast scheduler
// compares to decide whether a room's state has semantically changed
// (§4.6). Wall-clock time remaining is deliberately excluded.
type Fingerprint struct {
	Phase             string
	CurrentPlayerSeat int
	Pot               string
	CommunityCardLen  int
	BettingRound      int
}

// HandHistoryRecord is what finishHand persists for analytics (§2
// Persistence Adapter, HandHistoryStore).
type HandHistoryRecord struct {
	HandID         string
	RoomID         string
	FinishedAt     time.Time
	CommunityCards []poker.Card
	Winners        []HandWinner
	Pot            decimal.Decimal
}

// Config parameterizes a Game: blinds, seat count, and timing.
type Config struct {
	MaxSeats       int
	SmallBlind     decimal.Decimal
	BigBlind       decimal.Decimal
	TurnSeconds    int
	HandGapSeconds int
}

// DefaultTurnSeconds and DefaultHandGapSeconds are the §4.2 defaults.
const (
	DefaultTurnSeconds    = 30
	DefaultHandGapSeconds = 5
)

// MaxSeats is the hard upper bound on seats at one table (§3 Room, "≤ MAX").
const MaxSeats = 8
