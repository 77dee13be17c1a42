// Package userstore resolves a participant's franchise assignment from the
// relational store at connect time. Team selection itself happens outside
// the auction engine (room-join/profile flows, spec.md §1 Non-goals); this
// package only reads the result.
package userstore

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Store is a read-only view over the participants table's team assignment.
type Store struct {
	db *sqlx.DB
}

// NewStore wraps an already-open *sqlx.DB (shared with the DB Task Pipeline's
// connection pool).
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// GetTeamName looks up the franchise participantID selected when they joined.
func (s *Store) GetTeamName(ctx context.Context, participantID string) (string, error) {
	var team string
	err := s.db.GetContext(ctx, &team, `SELECT team_selected FROM participants WHERE id = $1`, participantID)
	if err != nil {
		return "", fmt.Errorf("userstore: failed to look up team for participant %s: %w", participantID, err)
	}
	return team, nil
}
