// Package dbtasks is the DB Task Pipeline (spec component G): every durable
// write the auction engine makes is first queued here and applied against
// Postgres by a pool of workers, with failures pushed onto a Redis-backed
// retry set and, past a retry ceiling, a dead-letter table.
package dbtasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/phanidharguttikonda0/ipl-auction-sub000/internal/roomstore"
)

// Store executes one DBCommand's relational write. Every method must be
// idempotent: a command may be replayed by the retry poller after a prior
// attempt partially succeeded.
type Store struct {
	db *sqlx.DB
}

// Connect opens and verifies a Postgres connection.
func Connect(ctx context.Context, dsn string, maxOpenConns int) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("dbtasks: failed to connect: %w", err)
	}
	db.SetMaxOpenConns(maxOpenConns)
	return &Store{db: db}, nil
}

// NewStore wraps an already-open *sqlx.DB (used by tests against a local instance).
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying connection pool so other components that read
// the same relational store (the Session Handler's team lookup) can share
// it instead of opening a second pool.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Execute dispatches cmd to its relational write, by kind.
func (s *Store) Execute(ctx context.Context, cmd roomstore.DBCommand) error {
	switch cmd.Kind {
	case roomstore.CmdUpdateRemainingRTMs:
		return s.updateRemainingRTMs(ctx, cmd)
	case roomstore.CmdBalanceUpdate:
		return s.updateBalance(ctx, cmd)
	case roomstore.CmdPlayerSold:
		return s.addSoldPlayer(ctx, cmd)
	case roomstore.CmdPlayerUnsold:
		return s.addUnsoldPlayer(ctx, cmd)
	case roomstore.CmdUpdateRoomStatus:
		return s.updateRoomStatus(ctx, cmd)
	case roomstore.CmdCompletedRoom:
		return s.completeRoom(ctx, cmd)
	case roomstore.CmdAddUserExternalDetail, roomstore.CmdUpdateFavoriteTeam:
		// Out of scope: IP-geolocation enrichment and favorite-team profile
		// updates belong to the wider user-account service, not this engine.
		return nil
	default:
		return fmt.Errorf("dbtasks: unknown command kind %q", cmd.Kind)
	}
}

func str(cmd roomstore.DBCommand, key string) string {
	v, _ := cmd.Payload[key].(string)
	return v
}

func num(cmd roomstore.DBCommand, key string) float64 {
	switch v := cmd.Payload[key].(type) {
	case float64:
		return v
	case int32:
		return float64(v)
	case int:
		return float64(v)
	default:
		return 0
	}
}

func (s *Store) updateRemainingRTMs(ctx context.Context, cmd roomstore.DBCommand) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE participants SET remaining_rtms = remaining_rtms - 1 WHERE room_id = $1 AND participant_id = $2`,
		cmd.RoomID, str(cmd, "participant_id"))
	return err
}

func (s *Store) updateBalance(ctx context.Context, cmd roomstore.DBCommand) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE participants SET balance = $3 WHERE room_id = $1 AND participant_id = $2`,
		cmd.RoomID, str(cmd, "participant_id"), num(cmd, "remaining_balance"))
	return err
}

func (s *Store) addSoldPlayer(ctx context.Context, cmd roomstore.DBCommand) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sold_players (room_id, player_id, participant_id, bid_amount)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (room_id, player_id) DO UPDATE SET participant_id = EXCLUDED.participant_id, bid_amount = EXCLUDED.bid_amount`,
		cmd.RoomID, num(cmd, "player_id"), str(cmd, "participant_id"), num(cmd, "bid_amount"))
	return err
}

func (s *Store) addUnsoldPlayer(ctx context.Context, cmd roomstore.DBCommand) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO unsold_players (room_id, player_id) VALUES ($1, $2) ON CONFLICT (room_id, player_id) DO NOTHING`,
		cmd.RoomID, num(cmd, "player_id"))
	return err
}

func (s *Store) updateRoomStatus(ctx context.Context, cmd roomstore.DBCommand) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE rooms SET status = $2 WHERE room_id = $1`,
		cmd.RoomID, str(cmd, "status"))
	return err
}

// completeRoom fans the room's sold/unsold players out into the completed
// archive tables inside one transaction, rolling back entirely on failure
// so a retry never double-copies.
func (s *Store) completeRoom(ctx context.Context, cmd roomstore.DBCommand) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO completed_room_sold_players (room_id, player_id, participant_id, bid_amount)
		 SELECT room_id, player_id, participant_id, bid_amount FROM sold_players WHERE room_id = $1`,
		cmd.RoomID); err != nil {
		return fmt.Errorf("dbtasks: failed to archive sold players: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sold_players WHERE room_id = $1`, cmd.RoomID); err != nil {
		return fmt.Errorf("dbtasks: failed to clear sold players: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO completed_room_unsold_players (room_id, player_id)
		 SELECT room_id, player_id FROM unsold_players WHERE room_id = $1`,
		cmd.RoomID); err != nil {
		return fmt.Errorf("dbtasks: failed to archive unsold players: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM unsold_players WHERE room_id = $1`, cmd.RoomID); err != nil {
		return fmt.Errorf("dbtasks: failed to clear unsold players: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO completed_rooms (room_id, completed_at) VALUES ($1, now())
		 ON CONFLICT (room_id) DO UPDATE SET completed_at = EXCLUDED.completed_at`,
		cmd.RoomID); err != nil {
		return fmt.Errorf("dbtasks: failed to record completed room: %w", err)
	}

	return tx.Commit()
}

// AddToDLQ records a command that exhausted its retry budget.
func (s *Store) AddToDLQ(ctx context.Context, cmd roomstore.DBCommand) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dead_letter_queue (kind, room_id, payload, retry_count, last_error)
		 VALUES ($1, $2, $3, $4, $5)`,
		string(cmd.Kind), cmd.RoomID, payloadJSON(cmd), cmd.RetryCount, cmd.LastError)
	return err
}

func payloadJSON(cmd roomstore.DBCommand) []byte {
	b, err := json.Marshal(cmd.Payload)
	if err != nil {
		return []byte("{}")
	}
	return b
}
