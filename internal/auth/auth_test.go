package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAuthenticateRoundTrip(t *testing.T) {
	g := NewGate("test-secret", nil)
	token, err := g.IssueToken("alice", time.Minute)
	require.NoError(t, err)

	username, err := g.Authenticate(token)
	require.NoError(t, err)
	require.Equal(t, "alice", username)
}

func TestAuthenticateRejectsExpired(t *testing.T) {
	g := NewGate("test-secret", nil)
	token, err := g.IssueToken("alice", -time.Minute)
	require.NoError(t, err)

	_, err = g.Authenticate(token)
	require.ErrorIs(t, err, ErrExpiredToken)
}

func TestAuthenticateRejectsBadSignature(t *testing.T) {
	g1 := NewGate("secret-one", nil)
	g2 := NewGate("secret-two", nil)
	token, err := g1.IssueToken("alice", time.Minute)
	require.NoError(t, err)

	_, err = g2.Authenticate(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthenticateAndAuthorizeChecksMembership(t *testing.T) {
	g := NewGate("test-secret", func(roomID, username string) bool {
		return roomID == "room-1" && username == "alice"
	})
	token, err := g.IssueToken("alice", time.Minute)
	require.NoError(t, err)

	_, err = g.AuthenticateAndAuthorize(token, "room-2")
	require.ErrorIs(t, err, ErrNotMember)

	username, err := g.AuthenticateAndAuthorize(token, "room-1")
	require.NoError(t, err)
	require.Equal(t, "alice", username)
}

func TestAuthenticateRejectsMissingToken(t *testing.T) {
	g := NewGate("test-secret", nil)
	_, err := g.Authenticate("")
	require.ErrorIs(t, err, ErrMissingToken)
}
