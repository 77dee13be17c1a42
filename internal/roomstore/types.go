// Package roomstore is the Room Store (spec component A): the single
// authoritative writer for per-room state — room metadata, participants,
// the current bid, and the skip set — held in a shared cache.
package roomstore

import "fmt"

// RoomStatus tracks an auction room's lifecycle. Transitions are monotone:
// NotStarted -> InProgress -> Completed, never reversed.
type RoomStatus string

const (
	StatusNotStarted RoomStatus = "not_started"
	StatusInProgress RoomStatus = "in_progress"
	StatusCompleted  RoomStatus = "completed"
)

// NoBidder is the sentinel participant id meaning "no bid yet".
const NoBidder = ""

// RoomMeta is a room's metadata: everything except the live participant set
// and current bid, which have their own keys.
type RoomMeta struct {
	RoomID         string     `json:"room_id"`
	CreatorID      string     `json:"creator_id"`
	CurrentPlayer  int32      `json:"current_player"` // 0 = none loaded yet
	Paused         bool       `json:"paused"`
	RoomMode       bool       `json:"room_mode"` // relaxed roster-size mode
	Status         RoomStatus `json:"status"`
}

// Participant is one room member's mutable auction state. Balance and the
// acquired/foreign/RTM counters are mutated only by the Expiry Resolver.
type Participant struct {
	ID              string  `json:"id"`
	Team            string  `json:"team"`
	Balance         float64 `json:"balance"`
	Acquired        int     `json:"acquired"`
	RemainingRTMs   int     `json:"remaining_rtms"`
	ForeignAcquired int     `json:"foreign_acquired"`
	Muted           bool    `json:"muted"`
}

// Bid is the room's single live bid. A zero Bid (ParticipantID == NoBidder,
// Amount == 0) means "item on the block, no takers yet".
type Bid struct {
	ParticipantID string  `json:"participant_id"`
	PlayerID      int32   `json:"player_id"`
	Amount        float64 `json:"amount"`
	BasePrice     float64 `json:"base_price"`
	IsRTM         bool    `json:"is_rtm"`
	RTMBid        bool    `json:"rtm_bid"`
}

// IsEmpty reports whether the bid represents "no takers yet".
func (b Bid) IsEmpty() bool {
	return b.ParticipantID == NoBidder && b.Amount == 0
}

// DBCommand is a tagged, idempotent write destined for the DB Task Pipeline.
type DBCommandKind string

const (
	CmdUpdateRemainingRTMs   DBCommandKind = "update_remaining_rtms"
	CmdBalanceUpdate         DBCommandKind = "balance_update"
	CmdPlayerSold            DBCommandKind = "player_sold"
	CmdPlayerUnsold          DBCommandKind = "player_unsold"
	CmdUpdateRoomStatus      DBCommandKind = "update_room_status"
	CmdCompletedRoom         DBCommandKind = "completed_room"
	CmdAddUserExternalDetail DBCommandKind = "add_user_external_details" // stub, out of scope (IP geo)
	CmdUpdateFavoriteTeam    DBCommandKind = "update_favorite_team"      // stub, out of scope
)

// DBCommand is the envelope a worker in the DB Task Pipeline executes.
type DBCommand struct {
	Kind       DBCommandKind          `json:"kind"`
	RoomID     string                 `json:"room_id"`
	Payload    map[string]interface{} `json:"payload"`
	RetryCount int                    `json:"retry_count"`
	LastError  string                 `json:"last_error,omitempty"`
}

// Errors returned by the Room Store. Rule-violation errors carry the exact
// participant-facing reply text from §7 Error Handling Design.
var (
	ErrBidNotAllowed       = fmt.Errorf("Bid not allowed")
	ErrAlreadyHighest      = fmt.Errorf("You are already the highest bidder")
	ErrTimerAbsent         = fmt.Errorf("Bid is Invalid, auction window is closed")
	ErrForeignCap          = fmt.Errorf("You reached Foreign Player limit")
	ErrRoomNotFound        = fmt.Errorf("room not found")
	ErrParticipantNotFound = fmt.Errorf("participant not found")
	ErrPlayerNotFound      = fmt.Errorf("player not found")
	ErrTechnical           = fmt.Errorf("Technical Problem")
)
