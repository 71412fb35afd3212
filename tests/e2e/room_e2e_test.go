// Package e2e exercises Room+Game together the way a client session would
// drive them, mirroring the teacher's tests/e2e/game_e2e_test.go shape:
// build the real collaborators (no mocks below the Clock/rng seams) and
// assert on the externally observable snapshot after each step.
package e2e

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"pineapple-room-server/internal/game"
	"pineapple-room-server/internal/room"
	"pineapple-room-server/pkg/poker"
	"pineapple-room-server/pkg/rng"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }
func (c *fakeClock) AfterFunc(d time.Duration, f func()) game.Timer {
	return &fakeTimer{}
}

type fakeTimer struct{}

func (t *fakeTimer) Stop() bool { return true }

func newE2ERoom(t *testing.T, seed string, maxSeats int, sb, bb decimal.Decimal) (*room.Room, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	rngSys, err := rng.NewSystemWithSeed([]byte(seed), nil)
	require.NoError(t, err)
	cfg := game.Config{
		MaxSeats:       maxSeats,
		SmallBlind:     sb,
		BigBlind:       bb,
		TurnSeconds:    30,
		HandGapSeconds: 5,
	}
	g := game.NewGame(cfg, clock, rngSys, poker.NewHandEvaluator())
	var broadcasts []string
	r := room.NewWithGame("e2e-room", cfg, g, clock, decimal.NewFromInt(1000), func(roomID string, snap game.Snapshot, reason string) {
		broadcasts = append(broadcasts, reason)
	}, nil)
	return r, clock
}

// TestE2ETwoPlayerHeadsUpPreflop walks spec.md §8 scenario 1 end to end
// through the public Room API: blinds post, Alice calls, Bob checks, the
// flop is dealt, and the pot/board match the scenario's literal numbers.
func TestE2ETwoPlayerHeadsUpPreflop(t *testing.T) {
	r, _ := newE2ERoom(t, "heads-up-seed", 2, decimal.NewFromFloat(0.5), decimal.NewFromInt(1))

	_, err := r.AddMember("alice")
	require.NoError(t, err)
	_, err = r.AddMember("bob")
	require.NoError(t, err)
	require.NoError(t, r.SitDown("alice", 0, decimal.NewFromInt(100)))
	require.NoError(t, r.SitDown("bob", 1, decimal.NewFromInt(100)))

	require.NoError(t, r.StartGame(0))

	snap := r.Snapshot()
	require.Equal(t, "preflop", snap.Phase)
	require.True(t, snap.CurrentBet.Equal(decimal.NewFromInt(1)))
	require.True(t, decimal.NewFromFloat(1.5).Equal(snap.Seats[0].BetAmount.Add(snap.Seats[1].BetAmount)))

	// Both seats hold three hole cards and must discard before acting.
	require.Equal(t, "alice", snap.Seats[0].Username)
	require.NoError(t, r.HandleDiscard("alice", 0))
	require.NoError(t, r.HandleDiscard("bob", 0))

	require.NoError(t, r.HandleAction("alice", game.ActionCall, decimal.Zero))
	require.NoError(t, r.HandleAction("bob", game.ActionCheck, decimal.Zero))

	snap = r.Snapshot()
	require.Len(t, snap.CommunityCards, 3)
	require.True(t, snap.Pot.Equal(decimal.NewFromInt(2)))
	require.Equal(t, 1, snap.BettingRound)
	require.Equal(t, "bob", snap.CurrentPlayerName)
}

// TestE2EDiscardEnforcement mirrors spec.md §8 scenario 2: a player who
// hasn't discarded cannot act, and the same action succeeds immediately
// after discarding.
func TestE2EDiscardEnforcement(t *testing.T) {
	r, _ := newE2ERoom(t, "discard-seed", 3, decimal.NewFromFloat(0.5), decimal.NewFromInt(1))

	for i, name := range []string{"alice", "bob", "carol"} {
		_, err := r.AddMember(name)
		require.NoError(t, err)
		require.NoError(t, r.SitDown(name, i, decimal.NewFromInt(100)))
	}
	require.NoError(t, r.StartGame(0))

	snap := r.Snapshot()
	utgName := snap.CurrentPlayerName

	err := r.HandleAction(utgName, game.ActionCall, decimal.Zero)
	require.Error(t, err)

	require.NoError(t, r.HandleDiscard(utgName, 1))
	require.NoError(t, r.HandleAction(utgName, game.ActionCall, decimal.Zero))
}

// TestE2EAllInSkipsToShowdown mirrors spec.md §8 scenario 5: once every
// remaining active seat is all-in, the server deals straight through to
// showdown and chip conservation holds.
func TestE2EAllInSkipsToShowdown(t *testing.T) {
	r, _ := newE2ERoom(t, "allin-seed", 2, decimal.NewFromFloat(0.5), decimal.NewFromInt(1))

	_, err := r.AddMember("alice")
	require.NoError(t, err)
	_, err = r.AddMember("bob")
	require.NoError(t, err)
	require.NoError(t, r.SitDown("alice", 0, decimal.NewFromInt(5)))
	require.NoError(t, r.SitDown("bob", 1, decimal.NewFromInt(100)))
	require.NoError(t, r.StartGame(0))

	before := r.Snapshot()
	totalBefore := before.Pot
	for _, sv := range before.Seats {
		totalBefore = totalBefore.Add(sv.Chips).Add(sv.BetAmount)
	}

	require.NoError(t, r.HandleDiscard("alice", 0))
	require.NoError(t, r.HandleDiscard("bob", 0))
	require.NoError(t, r.HandleAction("alice", game.ActionAllIn, decimal.Zero))
	require.NoError(t, r.HandleAction("bob", game.ActionCall, decimal.Zero))

	after := r.Snapshot()
	require.Equal(t, "gap", after.Phase)
	require.Len(t, after.CommunityCards, 5)

	totalAfter := after.Pot
	for _, sv := range after.Seats {
		totalAfter = totalAfter.Add(sv.Chips).Add(sv.BetAmount)
	}
	require.True(t, totalBefore.Equal(totalAfter), "chip conservation: before=%s after=%s", totalBefore, totalAfter)
}
