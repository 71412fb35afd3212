package rng

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRandomIntWithinBounds(t *testing.T) {
	sys, err := NewSystemWithSeed([]byte("deterministic-test-seed"), nil)
	require.NoError(t, err)

	for i := 0; i < 1000; i++ {
		v := sys.RandomInt(7)
		require.GreaterOrEqual(t, v, 0)
		require.Less(t, v, 7)
	}
}

func TestRandomIntZeroBoundIsZero(t *testing.T) {
	sys, err := NewSystemWithSeed([]byte("seed"), nil)
	require.NoError(t, err)
	require.Equal(t, 0, sys.RandomInt(0))
	require.Equal(t, 0, sys.RandomInt(-5))
}

func TestRandomBytesLength(t *testing.T) {
	sys, err := NewSystemWithSeed([]byte("seed"), nil)
	require.NoError(t, err)

	b := sys.RandomBytes(37)
	require.Len(t, b, 37)
}

func TestSameSeedDiffersOverTime(t *testing.T) {
	sys, err := NewSystemWithSeed([]byte("seed"), nil)
	require.NoError(t, err)

	a := sys.RandomUint64()
	b := sys.RandomUint64()
	require.NotEqual(t, a, b)
}

func TestAuditLoggerNilSafe(t *testing.T) {
	var logger *AuditLogger
	require.NotPanics(t, func() {
		logger.Log(&ShuffleAuditEvent{})
	})
}

func TestCreateAuditEntry(t *testing.T) {
	sys, err := NewSystemWithSeed([]byte("seed"), NewAuditLogger())
	require.NoError(t, err)

	entry := sys.CreateAuditEntry("room-1", "hand-1", []int{0, 1, 2}, []int{2, 0, 1})
	require.Equal(t, "room-1", entry.RoomID)
	require.Equal(t, "hand-1", entry.HandID)
	require.NotEmpty(t, entry.SeedHash)
	require.Equal(t, "Fisher-Yates", entry.Algorithm)
}
