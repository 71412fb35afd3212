// Package auth validates the bearer token presented at socket open and the
// player's membership in the room they're connecting to (§4 Auth Gate, §6
// Token format, §7 Authentication/Authorization taxonomy).
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Error distinguishes authentication (bad/missing/expired token) from
// authorization (valid token, not a member of the room) failures so the
// caller can close the socket with the right code and reason (§7: both map
// to close code 1008; the reason carries the message).
type Error struct {
	Kind    string // "authentication" | "authorization"
	Message string
}

func (e *Error) Error() string { return e.Message }

// ErrMissingToken, ErrInvalidToken, ErrExpiredToken, ErrNotMember are the
// flat error kinds the Gate returns.
var (
	ErrMissingToken = &Error{Kind: "authentication", Message: "missing bearer token"}
	ErrInvalidToken = &Error{Kind: "authentication", Message: "invalid bearer token"}
	ErrExpiredToken = &Error{Kind: "authentication", Message: "bearer token has expired"}
	ErrNotMember    = &Error{Kind: "authorization", Message: "not a member of this room"}
)

// MembershipChecker reports whether a username is a member of a room; the
// Session Hub's caller wires this to the Registry/Room lookup, kept as an
// interface here so auth has no dependency on internal/room.
type MembershipChecker func(roomID, username string) bool

// Gate verifies HS256 JWTs signed with a preshared secret and checks room
// membership (§6 "Handshake: server validates token (HS256 with a
// preshared secret)...").
type Gate struct {
	secret    []byte
	isMember  MembershipChecker
	clockSkew time.Duration
}

// NewGate builds a Gate. isMember may be nil during early bring-up (no
// membership check performed, only signature/expiry); production wiring
// always supplies one.
func NewGate(secret string, isMember MembershipChecker) *Gate {
	return &Gate{secret: []byte(secret), isMember: isMember, clockSkew: 5 * time.Second}
}

// claims is the minimal claim set the core requires: sub and exp (§6 "Token
// format... claim sub=username, exp in the future").
type claims struct {
	jwt.RegisteredClaims
}

// Authenticate parses and verifies tokenString, returning the subject
// (username) on success.
func (g *Gate) Authenticate(tokenString string) (string, error) {
	if tokenString == "" {
		return "", ErrMissingToken
	}

	var c claims
	token, err := jwt.ParseWithClaims(tokenString, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("auth: unexpected signing method %v", t.Header["alg"])
		}
		return g.secret, nil
	}, jwt.WithLeeway(g.clockSkew))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", ErrInvalidToken
	}
	if !token.Valid {
		return "", ErrInvalidToken
	}
	username := c.Subject
	if username == "" {
		return "", ErrInvalidToken
	}
	return username, nil
}

// AuthenticateAndAuthorize additionally verifies the subject is a member of
// roomID via the configured MembershipChecker.
func (g *Gate) AuthenticateAndAuthorize(tokenString, roomID string) (string, error) {
	username, err := g.Authenticate(tokenString)
	if err != nil {
		return "", err
	}
	if g.isMember != nil && !g.isMember(roomID, username) {
		return "", ErrNotMember
	}
	return username, nil
}

// IssueToken mints a token for test harnesses and the out-of-core login flow
// to use; the core's own contract never requires refresh (§6 "No refresh is
// required by the core").
func (g *Gate) IssueToken(username string, ttl time.Duration) (string, error) {
	now := time.Now()
	c := claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return token.SignedString(g.secret)
}
