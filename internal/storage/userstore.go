package storage

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// User is the external credential/profile record the core treats as opaque
// beyond the fields it needs (§1 "out of scope... a simple relational store
// keyed by username").
type User struct {
	Username     string
	DisplayName  string
	Balance      decimal.Decimal
	PasswordHash string
	CreatedAt    time.Time
}

// GameRecord is what the core reports back after a hand/session for
// statistics and leaderboards, also out of core scope beyond this shape.
type GameRecord struct {
	RoomID    string
	HandID    string
	Username  string
	Delta     decimal.Decimal
	PlayedAt  time.Time
}

// UserStore is the external collaborator interface the core consumes
// (verifyUser, getUser, updateBalance, recordGame); a concrete
// implementation lives in internal/storage/postgres. The core never blocks
// its Room mutex on these calls (§5 "made without holding the Room mutex
// where possible").
type UserStore interface {
	VerifyUser(ctx context.Context, username, password string) (bool, error)
	GetUser(ctx context.Context, username string) (*User, error)
	UpdateBalance(ctx context.Context, username string, delta decimal.Decimal) error
	RecordGame(ctx context.Context, rec GameRecord) error
}

// NoopUserStore is used when POSTGRES_DSN is unset, so the core can run
// stand-alone per §1 scope: verification always succeeds (any bearer token
// whose JWT signature checks out is trusted), balance writes are silently
// dropped.
type NoopUserStore struct{}

func (NoopUserStore) VerifyUser(ctx context.Context, username, password string) (bool, error) {
	return true, nil
}

func (NoopUserStore) GetUser(ctx context.Context, username string) (*User, error) {
	return &User{Username: username}, nil
}

func (NoopUserStore) UpdateBalance(ctx context.Context, username string, delta decimal.Decimal) error {
	return nil
}

func (NoopUserStore) RecordGame(ctx context.Context, rec GameRecord) error {
	return nil
}
