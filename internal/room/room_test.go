package room

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"pineapple-room-server/internal/game"
	"pineapple-room-server/pkg/poker"
	"pineapple-room-server/pkg/rng"
)

type stubClock struct{ now time.Time }

func (c *stubClock) Now() time.Time { return c.now }
func (c *stubClock) AfterFunc(d time.Duration, f func()) game.Timer {
	return &stubTimer{}
}

type stubTimer struct{ stopped bool }

func (t *stubTimer) Stop() bool { t.stopped = true; return true }

func newTestRoom(t *testing.T, maxSeats int) *Room {
	t.Helper()
	clock := &stubClock{now: time.Unix(1700000000, 0)}
	rngSys, err := rng.NewSystemWithSeed([]byte("room-test-seed"), nil)
	require.NoError(t, err)
	cfg := game.Config{
		MaxSeats:       maxSeats,
		SmallBlind:     decimal.NewFromFloat(0.5),
		BigBlind:       decimal.NewFromInt(1),
		TurnSeconds:    30,
		HandGapSeconds: 5,
	}
	g := game.NewGame(cfg, clock, rngSys, poker.NewHandEvaluator())
	return NewWithGame("room-1", cfg, g, clock, decimal.Zero, nil, nil)
}

func TestFirstMemberBecomesOwner(t *testing.T) {
	r := newTestRoom(t, 6)
	alice, err := r.AddMember("alice")
	require.NoError(t, err)
	require.True(t, alice.IsOwner)

	bob, err := r.AddMember("bob")
	require.NoError(t, err)
	require.False(t, bob.IsOwner)
}

func TestSitDownThenStartGame(t *testing.T) {
	r := newTestRoom(t, 6)
	_, err := r.AddMember("alice")
	require.NoError(t, err)
	_, err = r.AddMember("bob")
	require.NoError(t, err)

	require.NoError(t, r.SitDown("alice", 0, decimal.NewFromInt(100)))
	require.NoError(t, r.SitDown("bob", 1, decimal.NewFromInt(100)))
	require.NoError(t, r.StartGame(0))

	require.Equal(t, StatusActive, r.Status)
	snap := r.Snapshot()
	require.Equal(t, "preflop", snap.Phase)
}

func TestCannotSitDownTwice(t *testing.T) {
	r := newTestRoom(t, 6)
	_, err := r.AddMember("alice")
	require.NoError(t, err)
	require.NoError(t, r.SitDown("alice", 0, decimal.NewFromInt(50)))
	err = r.SitDown("alice", 1, decimal.NewFromInt(50))
	require.ErrorIs(t, err, ErrAlreadySeated)
}

func TestSeatOccupiedRejected(t *testing.T) {
	r := newTestRoom(t, 6)
	_, _ = r.AddMember("alice")
	_, _ = r.AddMember("bob")
	require.NoError(t, r.SitDown("alice", 0, decimal.NewFromInt(50)))
	err := r.SitDown("bob", 0, decimal.NewFromInt(50))
	require.ErrorIs(t, err, ErrSeatOccupied)
}

func TestBuyInQueuesDuringHand(t *testing.T) {
	r := newTestRoom(t, 2)
	_, _ = r.AddMember("alice")
	_, _ = r.AddMember("bob")
	require.NoError(t, r.SitDown("alice", 0, decimal.NewFromInt(10)))
	require.NoError(t, r.SitDown("bob", 1, decimal.NewFromInt(10)))
	require.NoError(t, r.StartGame(0))

	require.NoError(t, r.BuyIn("alice", decimal.NewFromInt(5)))
	seat := r.g.Seat(0)
	require.True(t, seat.PendingBuyIn.Equal(decimal.NewFromInt(5)), "buy-in mid-hand must queue, not apply immediately")
}

func TestLeaveReassignsOwnerToEarliestOnlineMember(t *testing.T) {
	r := newTestRoom(t, 6)
	_, _ = r.AddMember("alice")
	_, _ = r.AddMember("bob")

	require.NoError(t, r.Leave("alice"))
	require.NoError(t, r.Reconnect("alice")) // reconnecting does not reclaim ownership

	bob := r.members["bob"]
	require.True(t, bob.IsOwner)
}

func TestCannotStandUpMidTurn(t *testing.T) {
	r := newTestRoom(t, 2)
	_, _ = r.AddMember("alice")
	_, _ = r.AddMember("bob")
	require.NoError(t, r.SitDown("alice", 0, decimal.NewFromInt(100)))
	require.NoError(t, r.SitDown("bob", 1, decimal.NewFromInt(100)))
	require.NoError(t, r.StartGame(0))

	current := r.g.CurrentPlayer
	var currentUsername string
	for name, m := range r.members {
		if m.Seat == current {
			currentUsername = name
		}
	}
	err := r.StandUp(currentUsername)
	require.ErrorIs(t, err, ErrCannotStandMidHand)
}
