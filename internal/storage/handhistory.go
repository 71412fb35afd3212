package storage

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// HandHistoryRecord is what the process wiring (cmd/gameserver's
// recordHandHistory) hands the sink per settled hand (mirrors
// game.HandHistoryRecord's shape without importing the game package from
// storage).
type HandHistoryRecord struct {
	HandID         string
	RoomID         string
	FinishedAt     time.Time
	CommunityCards []string
	Winners        []HandWinnerRecord
	Pot            string
}

// HandWinnerRecord is one winning seat's share, flattened for the wide
// ClickHouse row.
type HandWinnerRecord struct {
	Seat     int
	Username string
	Amount   string
	HandDesc string
}

// HandHistoryStore appends finished-hand records for analytics and for the
// `get_game_history` room_action (§2 Persistence Adapter, SPEC_FULL.md
// supplemented features). ClickHouseHandHistory needs a live connection;
// NoopHandHistory stands in when CLICKHOUSE_HOST is not configured, so the
// core runs without ClickHouse.
type HandHistoryStore interface {
	Record(ctx context.Context, rec HandHistoryRecord) error
	Recent(ctx context.Context, roomID string, limit int) ([]HandHistoryRecord, error)
}

// ClickHouseHandHistory implements HandHistoryStore over ClickHouse, the
// same connect/ping/CreateTables shape as the teacher's
// internal/storage/clickhouse.go, generalized from its hand_analytics table
// to the core's HandHistoryRecord.
type ClickHouseHandHistory struct {
	db clickhouse.Conn
}

// ClickHouseConfig mirrors the teacher's own config struct.
type ClickHouseConfig struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	Secure   bool
}

// NewClickHouseHandHistory connects and ensures the hand_history table exists.
func NewClickHouseHandHistory(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseHandHistory, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{"max_execution_time": 60},
		TLS:      &tls.Config{InsecureSkipVerify: cfg.Secure},
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse: open: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse: ping: %w", err)
	}
	ch := &ClickHouseHandHistory{db: conn}
	if err := ch.createTable(ctx); err != nil {
		return nil, err
	}
	return ch, nil
}

func (ch *ClickHouseHandHistory) createTable(ctx context.Context) error {
	return ch.db.Exec(ctx, `CREATE TABLE IF NOT EXISTS hand_history (
		hand_id String,
		room_id String,
		finished_at DateTime64(3),
		community_cards Array(String),
		winner_seats Array(Int32),
		winner_usernames Array(String),
		winner_amounts Array(String),
		winner_descriptions Array(String),
		pot String
	) ENGINE = ReplacingMergeTree(finished_at)
	ORDER BY (room_id, finished_at, hand_id)`)
}

// Record inserts one row per settled hand.
func (ch *ClickHouseHandHistory) Record(ctx context.Context, rec HandHistoryRecord) error {
	seats := make([]int32, 0, len(rec.Winners))
	names := make([]string, 0, len(rec.Winners))
	amounts := make([]string, 0, len(rec.Winners))
	descs := make([]string, 0, len(rec.Winners))
	for _, w := range rec.Winners {
		seats = append(seats, int32(w.Seat))
		names = append(names, w.Username)
		amounts = append(amounts, w.Amount)
		descs = append(descs, w.HandDesc)
	}
	return ch.db.Exec(ctx,
		`INSERT INTO hand_history (hand_id, room_id, finished_at, community_cards, winner_seats, winner_usernames, winner_amounts, winner_descriptions, pot) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.HandID, rec.RoomID, rec.FinishedAt, rec.CommunityCards, seats, names, amounts, descs, rec.Pot,
	)
}

// Recent returns the most recent finished hands for a room, newest first,
// for the `get_game_history` room_action reply.
func (ch *ClickHouseHandHistory) Recent(ctx context.Context, roomID string, limit int) ([]HandHistoryRecord, error) {
	rows, err := ch.db.Query(ctx,
		`SELECT hand_id, room_id, finished_at, community_cards, winner_seats, winner_usernames, winner_amounts, winner_descriptions, pot
		 FROM hand_history WHERE room_id = ? ORDER BY finished_at DESC LIMIT ?`,
		roomID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse: query recent hands: %w", err)
	}
	defer rows.Close()

	var out []HandHistoryRecord
	for rows.Next() {
		var rec HandHistoryRecord
		var seats []int32
		var names, amounts, descs []string
		if err := rows.Scan(&rec.HandID, &rec.RoomID, &rec.FinishedAt, &rec.CommunityCards, &seats, &names, &amounts, &descs, &rec.Pot); err != nil {
			return nil, fmt.Errorf("clickhouse: scan recent hand: %w", err)
		}
		for i := range seats {
			rec.Winners = append(rec.Winners, HandWinnerRecord{
				Seat: int(seats[i]), Username: names[i], Amount: amounts[i], HandDesc: descs[i],
			})
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// NoopHandHistory is used when CLICKHOUSE_HOST is unset; Recent
// always returns an empty slice (SPEC_FULL.md: "falls back to an empty list
// when ClickHouse is not configured").
type NoopHandHistory struct{}

func (NoopHandHistory) Record(ctx context.Context, rec HandHistoryRecord) error { return nil }
func (NoopHandHistory) Recent(ctx context.Context, roomID string, limit int) ([]HandHistoryRecord, error) {
	return nil, nil
}
