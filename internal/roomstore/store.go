package roomstore

import (
	"context"
	"time"

	"github.com/phanidharguttikonda0/ipl-auction-sub000/internal/catalogue"
)

// TimerFamily distinguishes the two timer-key families spec.md §3 names.
type TimerFamily string

const (
	TimerBid TimerFamily = "bid"
	TimerRTM TimerFamily = "rtm"
)

// Store is the Room Store contract (spec.md §4.A), implemented against a
// shared cache. Every method is safe for concurrent use by multiple rooms;
// per-room atomicity is the implementation's responsibility.
type Store interface {
	// SetRoom creates a room if absent (idempotent on room id), with
	// room_creator_id = creatorID and status NotStarted.
	SetRoom(ctx context.Context, roomID, creatorID string, roomMode bool) (created bool, err error)
	GetRoomMeta(ctx context.Context, roomID string) (RoomMeta, error)
	SetPause(ctx context.Context, roomID string, paused bool) error
	SetRoomStatus(ctx context.Context, roomID string, status RoomStatus) error

	GetCurrentPlayer(ctx context.Context, roomID string) (int32, error)
	SetCurrentPlayer(ctx context.Context, roomID string, playerID int32) error

	AddParticipant(ctx context.Context, roomID string, p Participant) error
	GetParticipant(ctx context.Context, roomID, participantID string) (Participant, error)
	ListParticipants(ctx context.Context, roomID string) ([]Participant, error)
	ApplyParticipantDelta(ctx context.Context, roomID, participantID string, delta ParticipantDelta) error

	// UpdateCurrentBid is the critical atomic operation of §4.A: validates
	// the bid allowance, writes the bid, and arms/clears the named timer
	// family in one serialized step per room.
	UpdateCurrentBid(ctx context.Context, roomID string, bid Bid, family TimerFamily, ttl time.Duration, rosterSize int) (float64, error)
	GetCurrentBid(ctx context.Context, roomID string) (Bid, error)

	MarkSkipped(ctx context.Context, roomID, participantID string) error
	IsSkipped(ctx context.Context, roomID, participantID string) (bool, error)
	GetSkippedCount(ctx context.Context, roomID string) (int, error)
	ClearSkipSet(ctx context.Context, roomID string) error

	CheckKeyExists(ctx context.Context, key string) (bool, error)
	AtomicDelete(ctx context.Context, key string) error

	// ArmTimer sets the given timer family's TTL; ttl<=0 deletes the key,
	// which clears the timer without raising an expiry event. The "fire-now"
	// signal described in the glossary is a 1-second ttl.
	ArmTimer(ctx context.Context, roomID string, family TimerFamily, ttl time.Duration) error
	TimerKey(roomID string, family TimerFamily) string

	AddRetryTask(ctx context.Context, cmd DBCommand, notBefore time.Time) error

	GetPlayer(ctx context.Context, roomID string, playerID int32) (catalogue.Player, error)
}

// ParticipantDelta is an additive mutation applied atomically to a
// participant by the Expiry Resolver (the only writer of these fields).
type ParticipantDelta struct {
	BalanceDelta         float64
	AcquiredDelta        int
	ForeignAcquiredDelta int
	RemainingRTMsDelta   int
	SetMuted             *bool
}
