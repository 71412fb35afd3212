package game

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"pineapple-room-server/pkg/poker"
	"pineapple-room-server/pkg/rng"
)

// fakeTimer lets tests fire a scheduled callback on demand instead of
// sleeping for it.
type fakeTimer struct {
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	wasStopped := t.stopped
	t.stopped = true
	return !wasStopped
}

// fakeClock is a Clock whose AfterFunc never schedules anything in real
// time; tests advance it explicitly via fire().
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
	due []*fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{fn: f}
	c.due = append(c.due, t)
	return t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fireLatest invokes the most recently armed, not-yet-stopped timer's
// callback, simulating its deadline elapsing.
func (c *fakeClock) fireLatest() {
	c.mu.Lock()
	var target *fakeTimer
	for i := len(c.due) - 1; i >= 0; i-- {
		if !c.due[i].stopped {
			target = c.due[i]
			break
		}
	}
	c.mu.Unlock()
	if target != nil {
		target.fn()
	}
}

func newTestGame(t *testing.T, seats int) (*Game, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	rngSys, err := rng.NewSystemWithSeed([]byte("game-test-seed"), nil)
	require.NoError(t, err)
	cfg := Config{
		MaxSeats:       seats,
		SmallBlind:     decimal.NewFromFloat(0.5),
		BigBlind:       decimal.NewFromInt(1),
		TurnSeconds:    30,
		HandGapSeconds: 5,
	}
	g := NewGame(cfg, clock, rngSys, poker.NewHandEvaluator())
	return g, clock
}

func seatPlayer(g *Game, idx int, name string, chips float64) {
	s := g.Seat(idx)
	s.Occupied = true
	s.Username = name
	s.Chips = decimal.NewFromFloat(chips)
}

func totalChips(g *Game) decimal.Decimal {
	total := g.Pot
	for _, s := range g.Seats {
		if s.Occupied {
			total = total.Add(s.Chips).Add(s.BetAmount)
		}
	}
	return total
}

func discardAllHands(t *testing.T, g *Game, seats ...int) {
	t.Helper()
	for _, seat := range seats {
		require.NoError(t, g.HandleDiscard(seat, 0))
	}
}

func TestStartRoundRequiresTwoPlayers(t *testing.T) {
	g, _ := newTestGame(t, 6)
	seatPlayer(g, 0, "alice", 100)
	err := g.StartRound()
	require.ErrorIs(t, err, ErrNotEnoughPlayers)
}

func TestHeadsUpDealerPostsSmallBlindAndActsFirstPreflop(t *testing.T) {
	g, _ := newTestGame(t, 2)
	seatPlayer(g, 0, "alice", 100)
	seatPlayer(g, 1, "bob", 100)
	g.SetDealer(0)

	require.NoError(t, g.StartRound())
	require.True(t, g.HeadsUp)
	require.Equal(t, PhasePreFlopBet, g.Phase)
	require.Equal(t, 0, g.CurrentPlayer, "heads-up dealer (SB) acts first preflop")
	require.True(t, g.Seats[0].BetAmount.Equal(decimal.NewFromFloat(0.5)))
	require.True(t, g.Seats[1].BetAmount.Equal(decimal.NewFromInt(1)))
	require.Len(t, g.Seats[0].HoleCards, 3)
	require.Len(t, g.Seats[1].HoleCards, 3)
}

func TestMustDiscardBeforeFirstWager(t *testing.T) {
	g, _ := newTestGame(t, 2)
	seatPlayer(g, 0, "alice", 100)
	seatPlayer(g, 1, "bob", 100)
	require.NoError(t, g.StartRound())

	err := g.HandleAction(g.CurrentPlayer, ActionCall, decimal.Zero)
	require.ErrorIs(t, err, ErrMustDiscardFirst)
}

func TestDiscardIsIdempotentFailure(t *testing.T) {
	g, _ := newTestGame(t, 2)
	seatPlayer(g, 0, "alice", 100)
	seatPlayer(g, 1, "bob", 100)
	require.NoError(t, g.StartRound())

	require.NoError(t, g.HandleDiscard(0, 1))
	require.Len(t, g.Seats[0].HoleCards, 2)
	err := g.HandleDiscard(0, 0)
	require.ErrorIs(t, err, ErrAlreadyDiscarded)
}

func TestNotYourTurn(t *testing.T) {
	g, _ := newTestGame(t, 3)
	seatPlayer(g, 0, "alice", 100)
	seatPlayer(g, 1, "bob", 100)
	seatPlayer(g, 2, "carl", 100)
	g.SetDealer(0)
	require.NoError(t, g.StartRound())
	discardAllHands(t, g, 0, 1, 2)

	other := (g.CurrentPlayer + 1) % 3
	err := g.HandleAction(other, ActionCheck, decimal.Zero)
	require.ErrorIs(t, err, ErrNotYourTurn)
}

func TestRaiseResetsActedFlags(t *testing.T) {
	g, _ := newTestGame(t, 3)
	seatPlayer(g, 0, "p1", 100)
	seatPlayer(g, 1, "p2", 100)
	seatPlayer(g, 2, "p3-bb", 100)
	g.SetDealer(0)
	require.NoError(t, g.StartRound())
	discardAllHands(t, g, 0, 1, 2)

	// preflop multiway: first actor is seat after BB (seat 0, dealer, since BB is seat 2)
	require.Equal(t, 0, g.CurrentPlayer)
	require.NoError(t, g.HandleAction(0, ActionCall, decimal.Zero))
	require.Equal(t, 1, g.CurrentPlayer)
	require.NoError(t, g.HandleAction(1, ActionCall, decimal.Zero))
	require.Equal(t, 2, g.CurrentPlayer)
	require.True(t, g.Seats[0].Acted)
	require.True(t, g.Seats[1].Acted)

	require.NoError(t, g.HandleAction(2, ActionRaise, decimal.NewFromInt(3)))
	require.False(t, g.Seats[0].Acted, "raise must reopen action for callers")
	require.False(t, g.Seats[1].Acted)
	require.Equal(t, 0, g.CurrentPlayer)
}

func TestCheckRejectedWhenBetOutstanding(t *testing.T) {
	g, _ := newTestGame(t, 2)
	seatPlayer(g, 0, "alice", 100)
	seatPlayer(g, 1, "bob", 100)
	require.NoError(t, g.StartRound())
	discardAllHands(t, g, 0, 1)

	err := g.HandleAction(g.CurrentPlayer, ActionCheck, decimal.Zero)
	require.ErrorIs(t, err, ErrCannotCheck)
}

func TestFoldToOneRemainingAwardsPotAndChipsConserved(t *testing.T) {
	g, _ := newTestGame(t, 2)
	seatPlayer(g, 0, "alice", 100)
	seatPlayer(g, 1, "bob", 100)
	g.SetDealer(0)
	before := totalChips(g)
	require.NoError(t, g.StartRound())
	discardAllHands(t, g, 0, 1)

	require.Equal(t, 0, g.CurrentPlayer)
	require.NoError(t, g.HandleAction(0, ActionFold, decimal.Zero))

	require.Equal(t, PhaseGap, g.Phase)
	require.Len(t, g.Winners, 1)
	require.Equal(t, 1, g.Winners[0].Seat)
	require.True(t, totalChips(g).Equal(before), "chip conservation must hold after settle")
}

func TestAllInShortCallRunsOutBoardToShowdown(t *testing.T) {
	g, _ := newTestGame(t, 2)
	seatPlayer(g, 0, "alice", 5)
	seatPlayer(g, 1, "bob", 100)
	g.SetDealer(0)
	before := totalChips(g)
	require.NoError(t, g.StartRound())
	discardAllHands(t, g, 0, 1)

	// alice (dealer/SB, acts first heads-up) shoves her remaining stack
	require.NoError(t, g.HandleAction(0, ActionAllIn, decimal.Zero))
	require.True(t, g.Seats[0].AllIn)
	require.NoError(t, g.HandleAction(1, ActionCall, decimal.Zero))

	require.Equal(t, PhaseGap, g.Phase)
	require.Len(t, g.CommunityCards, 5)
	require.True(t, totalChips(g).Equal(before))
}

func TestPotSplitRemainderGoesToEarliestSeatFromDealerPlusOne(t *testing.T) {
	g, _ := newTestGame(t, 4)
	for i := 0; i < 3; i++ {
		seatPlayer(g, i, "p", 100)
	}
	g.SetDealer(0)
	best := map[int]poker.EvaluatedHand{
		0: {Category: poker.OnePair, TieBreakers: []poker.Rank{poker.Rank7}},
		1: {Category: poker.OnePair, TieBreakers: []poker.Rank{poker.Rank7}},
		2: {Category: poker.OnePair, TieBreakers: []poker.Rank{poker.Rank7}},
	}
	g.Pot = decimal.NewFromFloat(1.00) // 100 minor units / 3 winners = 33,33,34

	winners := g.splitPot([]int{0, 1, 2}, best)
	require.Len(t, winners, 3)
	total := decimal.Zero
	for _, w := range winners {
		total = total.Add(w.Amount)
	}
	require.True(t, total.Equal(decimal.NewFromFloat(1.00)))

	bySeat := map[int]decimal.Decimal{}
	for _, w := range winners {
		bySeat[w.Seat] = w.Amount
	}
	// dealer+1 = seat 1 is earliest in distribution order, gets the extra cent
	require.True(t, bySeat[1].Equal(decimal.NewFromFloat(0.34)))
	require.True(t, bySeat[2].Equal(decimal.NewFromFloat(0.33)))
	require.True(t, bySeat[0].Equal(decimal.NewFromFloat(0.33)))
}

func TestTurnTimeoutAutoDiscardsThenChecksOrFolds(t *testing.T) {
	g, clock := newTestGame(t, 2)
	g.OnTurnTimeout = func(seat int) { g.HandleTurnTimeout(seat) }
	seatPlayer(g, 0, "alice", 100)
	seatPlayer(g, 1, "bob", 100)
	g.SetDealer(0)
	require.NoError(t, g.StartRound())

	actor := g.CurrentPlayer
	require.Len(t, g.Seats[actor].HoleCards, 3)

	clock.advance(2500 * time.Millisecond)
	clock.fireLatest()

	require.Len(t, g.Seats[actor].HoleCards, 2, "timeout must auto-discard before acting")
	// actor owed a call (bb=1 vs own bet); auto-fold is the default
	require.True(t, g.Seats[actor].Folded || g.Seats[actor].BetAmount.Equal(g.CurrentBet))
}

func TestSessionDeadlineEndsSessionInsteadOfSchedulingGap(t *testing.T) {
	g, clock := newTestGame(t, 2)
	var ended bool
	g.OnSessionEnd = func() { ended = true }
	seatPlayer(g, 0, "alice", 100)
	seatPlayer(g, 1, "bob", 100)
	g.SetDealer(0)
	g.SetSessionDeadline(clock.Now().Add(-time.Second)) // already past
	require.NoError(t, g.StartRound())
	discardAllHands(t, g, 0, 1)

	require.NoError(t, g.HandleAction(0, ActionFold, decimal.Zero))
	require.True(t, ended)
	require.Nil(t, g.NextHandTimer)
}

func TestStartNextHandRotatesDealerAndAppliesPendingBuyIn(t *testing.T) {
	g, _ := newTestGame(t, 2)
	seatPlayer(g, 0, "alice", 100)
	seatPlayer(g, 1, "bob", 100)
	g.SetDealer(0)
	require.NoError(t, g.StartRound())
	discardAllHands(t, g, 0, 1)
	g.Seat(1).PendingBuyIn = decimal.NewFromInt(20)

	require.NoError(t, g.HandleAction(0, ActionFold, decimal.Zero))
	require.NoError(t, g.StartNextHand())

	require.Equal(t, 1, g.Dealer)
	require.True(t, g.Seat(1).PendingBuyIn.IsZero())
}
