// Package catalogue holds the immutable list of auctionable players loaded
// once at startup, independent of per-room mutable state (spec.md §3 Data
// Model: Player is shared/static, Room/Participant/Bid state is per-room).
package catalogue

import (
	"encoding/json"
	"fmt"
	"os"
)

// Role is a player's playing role, used by the Bot Bidder's role-need scoring.
type Role string

const (
	RoleBatsman    Role = "batsman"
	RoleBowler     Role = "bowler"
	RoleAllRounder Role = "all_rounder"
	RoleWicketKeeper Role = "wicket_keeper"
)

// Player is one catalogue entry: a static, never-mutated auction item.
type Player struct {
	ID           int32   `json:"id" db:"id"`
	Name         string  `json:"name" db:"name"`
	BasePrice    float32 `json:"base_price" db:"base_price"`
	Country      string  `json:"country" db:"country"`
	Role         Role    `json:"role" db:"role"`
	IsIndian     bool    `json:"is_indian" db:"is_indian"`
	PreviousTeam string  `json:"previous_team,omitempty" db:"previous_team"`
	Rating       float32 `json:"rating" db:"rating"`
}

// Catalogue is the full, ordered player list plus an id index.
type Catalogue struct {
	players []Player
	byID    map[int32]Player
}

// Load reads a JSON array of Player records from path and indexes it by id.
func Load(path string) (*Catalogue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalogue: failed to read %s: %w", path, err)
	}
	var players []Player
	if err := json.Unmarshal(data, &players); err != nil {
		return nil, fmt.Errorf("catalogue: failed to parse %s: %w", path, err)
	}
	return New(players), nil
}

// New builds a Catalogue directly from an in-memory player list (used by tests).
func New(players []Player) *Catalogue {
	byID := make(map[int32]Player, len(players))
	for _, p := range players {
		byID[p.ID] = p
	}
	return &Catalogue{players: players, byID: byID}
}

// Get looks up a player by id.
func (c *Catalogue) Get(id int32) (Player, bool) {
	p, ok := c.byID[id]
	return p, ok
}

// All returns the full ordered player list; callers must not mutate it.
func (c *Catalogue) All() []Player {
	return c.players
}

// Len reports the catalogue size.
func (c *Catalogue) Len() int {
	return len(c.players)
}
