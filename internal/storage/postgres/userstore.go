// Package postgres implements the external user/profile store over
// database/sql, grounded on the teacher's own Postgres adapters
// (postgres_sessions.go, postgres_alerts.go) but generalized from
// fraud-session bookkeeping to the core's verifyUser/getUser/updateBalance/
// recordGame contract (§1, §2).
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"pineapple-room-server/internal/storage"
)

// UserStore implements storage.UserStore against a Postgres `users` table
// plus an append-only `game_records` table.
type UserStore struct {
	db *sql.DB
}

// New opens a UserStore over an existing *sql.DB (the caller owns its
// lifecycle, same as NewSessionPostgresStorage in the teacher's adapters).
func New(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

// Open connects to dsn and builds a UserStore, matching the teacher's
// ClickHouse adapter's connect-then-ping shape.
func Open(ctx context.Context, dsn string) (*UserStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return New(db), nil
}

// VerifyUser checks a username/password pair against the stored bcrypt hash.
// An unknown username is reported as a failed verification, not an error, so
// callers can't distinguish "no such user" from "wrong password" by error type.
func (s *UserStore) VerifyUser(ctx context.Context, username, password string) (bool, error) {
	var hash string
	err := s.db.QueryRowContext(ctx, `SELECT password_hash FROM users WHERE username = $1`, username).Scan(&hash)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("postgres: verify user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return false, nil
	}
	return true, nil
}

// GetUser loads a user's profile and balance.
func (s *UserStore) GetUser(ctx context.Context, username string) (*storage.User, error) {
	u := &storage.User{}
	var balance string
	err := s.db.QueryRowContext(ctx,
		`SELECT username, display_name, balance, created_at FROM users WHERE username = $1`,
		username,
	).Scan(&u.Username, &u.DisplayName, &balance, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("postgres: user %q not found", username)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get user: %w", err)
	}
	dec, err := decimal.NewFromString(balance)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse balance: %w", err)
	}
	u.Balance = dec
	return u, nil
}

// UpdateBalance applies a signed delta to a user's stored balance. Used both
// for ordinary cash-out crediting (§9 Open Questions: cash_out records the
// player's current stack, buy_in is not recalled) and for admin corrections.
func (s *UserStore) UpdateBalance(ctx context.Context, username string, delta decimal.Decimal) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET balance = balance + $1 WHERE username = $2`,
		delta.String(), username,
	)
	if err != nil {
		return fmt.Errorf("postgres: update balance: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("postgres: update balance: user %q not found", username)
	}
	return nil
}

// RecordGame inserts one append-only row per settled hand a player
// participated in, for statistics/leaderboards (§1 out-of-scope collaborator,
// consumed here only as a write sink).
func (s *UserStore) RecordGame(ctx context.Context, rec storage.GameRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO game_records (room_id, hand_id, username, delta, played_at) VALUES ($1, $2, $3, $4, $5)`,
		rec.RoomID, rec.HandID, rec.Username, rec.Delta.String(), rec.PlayedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: record game: %w", err)
	}
	return nil
}
