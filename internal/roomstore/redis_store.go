package roomstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/phanidharguttikonda0/ipl-auction-sub000/internal/bus"
	"github.com/phanidharguttikonda0/ipl-auction-sub000/internal/catalogue"
)

// RedisStore implements Store against the shared cache. Multi-step
// operations (notably UpdateCurrentBid) are serialized per room with an
// in-process mutex, per spec.md §9 Design Note 3: a store without the
// single-threaded command guarantee of the original Redis source needs an
// explicit per-room lock.
type RedisStore struct {
	cache      *bus.Service
	catalogue  *catalogue.Catalogue
	roomLocks  sync.Map // roomID -> *sync.Mutex
}

// NewRedisStore builds a Store over cache, resolving players against catalogue.
func NewRedisStore(cache *bus.Service, cat *catalogue.Catalogue) *RedisStore {
	return &RedisStore{cache: cache, catalogue: cat}
}

func (s *RedisStore) lock(roomID string) func() {
	v, _ := s.roomLocks.LoadOrStore(roomID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func metaKey(roomID string) string         { return "room:" + roomID + ":meta" }
func participantKey(roomID, pid string) string { return "room:" + roomID + ":participant:" + pid }
func participantsSetKey(roomID string) string  { return "room:" + roomID + ":participants" }
func bidKey(roomID string) string           { return "room:" + roomID + ":bid" }
func skipSetKey(roomID string) string       { return "room:" + roomID + ":skip" }

// TimerKey returns the cache key for the given timer family, per spec.md §3.
func (s *RedisStore) TimerKey(roomID string, family TimerFamily) string {
	if family == TimerRTM {
		return "auction:rtm:" + roomID
	}
	return "auction:timer:" + roomID
}

func (s *RedisStore) SetRoom(ctx context.Context, roomID, creatorID string, roomMode bool) (bool, error) {
	unlock := s.lock(roomID)
	defer unlock()

	exists, err := s.cache.Exists(ctx, metaKey(roomID))
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	if err := s.cache.HSet(ctx, metaKey(roomID),
		"creator_id", creatorID,
		"current_player", "0",
		"paused", "false",
		"room_mode", strconv.FormatBool(roomMode),
		"status", string(StatusNotStarted),
	); err != nil {
		return false, err
	}
	return true, nil
}

func (s *RedisStore) GetRoomMeta(ctx context.Context, roomID string) (RoomMeta, error) {
	fields, err := s.cache.HGetAll(ctx, metaKey(roomID))
	if err != nil {
		return RoomMeta{}, err
	}
	if len(fields) == 0 {
		return RoomMeta{}, ErrRoomNotFound
	}
	cp, _ := strconv.ParseInt(fields["current_player"], 10, 32)
	return RoomMeta{
		RoomID:        roomID,
		CreatorID:     fields["creator_id"],
		CurrentPlayer: int32(cp),
		Paused:        fields["paused"] == "true",
		RoomMode:      fields["room_mode"] == "true",
		Status:        RoomStatus(fields["status"]),
	}, nil
}

func (s *RedisStore) SetPause(ctx context.Context, roomID string, paused bool) error {
	return s.cache.HSet(ctx, metaKey(roomID), "paused", strconv.FormatBool(paused))
}

func (s *RedisStore) SetRoomStatus(ctx context.Context, roomID string, status RoomStatus) error {
	unlock := s.lock(roomID)
	defer unlock()

	meta, err := s.GetRoomMeta(ctx, roomID)
	if err != nil {
		return err
	}
	if !statusAdvances(meta.Status, status) {
		return nil // monotone: last-write-wins but never regresses
	}
	return s.cache.HSet(ctx, metaKey(roomID), "status", string(status))
}

func statusAdvances(from, to RoomStatus) bool {
	order := map[RoomStatus]int{StatusNotStarted: 0, StatusInProgress: 1, StatusCompleted: 2}
	return order[to] >= order[from]
}

func (s *RedisStore) GetCurrentPlayer(ctx context.Context, roomID string) (int32, error) {
	v, err := s.cache.HGet(ctx, metaKey(roomID), "current_player")
	if err != nil {
		return 0, err
	}
	n, _ := strconv.ParseInt(v, 10, 32)
	return int32(n), nil
}

func (s *RedisStore) SetCurrentPlayer(ctx context.Context, roomID string, playerID int32) error {
	return s.cache.HSet(ctx, metaKey(roomID), "current_player", strconv.FormatInt(int64(playerID), 10))
}

func (s *RedisStore) AddParticipant(ctx context.Context, roomID string, p Participant) error {
	if err := s.cache.HSet(ctx, participantKey(roomID, p.ID),
		"team", p.Team,
		"balance", formatFloat(p.Balance),
		"acquired", strconv.Itoa(p.Acquired),
		"remaining_rtms", strconv.Itoa(p.RemainingRTMs),
		"foreign_acquired", strconv.Itoa(p.ForeignAcquired),
		"muted", strconv.FormatBool(p.Muted),
	); err != nil {
		return err
	}
	return s.cache.SAdd(ctx, participantsSetKey(roomID), p.ID)
}

func (s *RedisStore) GetParticipant(ctx context.Context, roomID, participantID string) (Participant, error) {
	fields, err := s.cache.HGetAll(ctx, participantKey(roomID, participantID))
	if err != nil {
		return Participant{}, err
	}
	if len(fields) == 0 {
		return Participant{}, ErrParticipantNotFound
	}
	balance, _ := strconv.ParseFloat(fields["balance"], 64)
	acquired, _ := strconv.Atoi(fields["acquired"])
	rtms, _ := strconv.Atoi(fields["remaining_rtms"])
	foreign, _ := strconv.Atoi(fields["foreign_acquired"])
	return Participant{
		ID:              participantID,
		Team:            fields["team"],
		Balance:         balance,
		Acquired:        acquired,
		RemainingRTMs:   rtms,
		ForeignAcquired: foreign,
		Muted:           fields["muted"] == "true",
	}, nil
}

func (s *RedisStore) ListParticipants(ctx context.Context, roomID string) ([]Participant, error) {
	ids, err := s.cache.SMembers(ctx, participantsSetKey(roomID))
	if err != nil {
		return nil, err
	}
	out := make([]Participant, 0, len(ids))
	for _, id := range ids {
		p, err := s.GetParticipant(ctx, roomID, id)
		if err != nil {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *RedisStore) ApplyParticipantDelta(ctx context.Context, roomID, participantID string, delta ParticipantDelta) error {
	unlock := s.lock(roomID)
	defer unlock()

	p, err := s.GetParticipant(ctx, roomID, participantID)
	if err != nil {
		return err
	}
	p.Balance += delta.BalanceDelta
	p.Acquired += delta.AcquiredDelta
	p.ForeignAcquired += delta.ForeignAcquiredDelta
	p.RemainingRTMs += delta.RemainingRTMsDelta
	if delta.SetMuted != nil {
		p.Muted = *delta.SetMuted
	}
	if p.Balance < 0 {
		p.Balance = 0 // invariant: balance never negative
	}
	return s.cache.HSet(ctx, participantKey(roomID, participantID),
		"balance", formatFloat(p.Balance),
		"acquired", strconv.Itoa(p.Acquired),
		"remaining_rtms", strconv.Itoa(p.RemainingRTMs),
		"foreign_acquired", strconv.Itoa(p.ForeignAcquired),
		"muted", strconv.FormatBool(p.Muted),
	)
}

// BidAllowed implements the §4.C budget reserve rule:
// required_slots = rosterSize - acquired; reserve = required_slots * 0.30;
// allowed iff balance - amount >= reserve.
func BidAllowed(balance float64, acquired, rosterSize int, amount float64) bool {
	requiredSlots := rosterSize - acquired
	if requiredSlots < 0 {
		requiredSlots = 0
	}
	reserve := float64(requiredSlots) * 0.30
	// The small tolerance keeps a bid that lands exactly on the reserve
	// (e.g. 5 - 4.7 vs 0.30) from failing on float64 rounding.
	return balance-amount+1e-9 >= reserve
}

// UpdateCurrentBid is the critical atomic operation described in §4.A.
func (s *RedisStore) UpdateCurrentBid(ctx context.Context, roomID string, bid Bid, family TimerFamily, ttl time.Duration, rosterSize int) (float64, error) {
	unlock := s.lock(roomID)
	defer unlock()

	if bid.ParticipantID != NoBidder {
		p, err := s.GetParticipant(ctx, roomID, bid.ParticipantID)
		if err != nil {
			return 0, err
		}
		if !BidAllowed(p.Balance, p.Acquired, rosterSize, bid.Amount) {
			return 0, ErrBidNotAllowed
		}
	}

	if err := s.cache.HSet(ctx, bidKey(roomID),
		"participant_id", bid.ParticipantID,
		"player_id", strconv.FormatInt(int64(bid.PlayerID), 10),
		"amount", formatFloat(bid.Amount),
		"base_price", formatFloat(bid.BasePrice),
		"is_rtm", strconv.FormatBool(bid.IsRTM),
		"rtm_bid", strconv.FormatBool(bid.RTMBid),
	); err != nil {
		return 0, err
	}

	// The bid write above must land before the timer is (re)armed, so a
	// resolver waking on expiry never observes a stale bid.
	if err := s.ArmTimer(ctx, roomID, family, ttl); err != nil {
		return 0, err
	}

	return bid.Amount, nil
}

func (s *RedisStore) GetCurrentBid(ctx context.Context, roomID string) (Bid, error) {
	fields, err := s.cache.HGetAll(ctx, bidKey(roomID))
	if err != nil {
		return Bid{}, err
	}
	if len(fields) == 0 {
		return Bid{ParticipantID: NoBidder}, nil
	}
	playerID, _ := strconv.ParseInt(fields["player_id"], 10, 32)
	amount, _ := strconv.ParseFloat(fields["amount"], 64)
	basePrice, _ := strconv.ParseFloat(fields["base_price"], 64)
	return Bid{
		ParticipantID: fields["participant_id"],
		PlayerID:      int32(playerID),
		Amount:        amount,
		BasePrice:     basePrice,
		IsRTM:         fields["is_rtm"] == "true",
		RTMBid:        fields["rtm_bid"] == "true",
	}, nil
}

func (s *RedisStore) MarkSkipped(ctx context.Context, roomID, participantID string) error {
	return s.cache.SAdd(ctx, skipSetKey(roomID), participantID)
}

func (s *RedisStore) IsSkipped(ctx context.Context, roomID, participantID string) (bool, error) {
	return s.cache.SIsMember(ctx, skipSetKey(roomID), participantID)
}

func (s *RedisStore) GetSkippedCount(ctx context.Context, roomID string) (int, error) {
	members, err := s.cache.SMembers(ctx, skipSetKey(roomID))
	if err != nil {
		return 0, err
	}
	return len(members), nil
}

func (s *RedisStore) ClearSkipSet(ctx context.Context, roomID string) error {
	return s.cache.Del(ctx, skipSetKey(roomID))
}

func (s *RedisStore) CheckKeyExists(ctx context.Context, key string) (bool, error) {
	return s.cache.Exists(ctx, key)
}

func (s *RedisStore) AtomicDelete(ctx context.Context, key string) error {
	return s.cache.Del(ctx, key)
}

func (s *RedisStore) ArmTimer(ctx context.Context, roomID string, family TimerFamily, ttl time.Duration) error {
	key := s.TimerKey(roomID, family)
	if ttl <= 0 {
		return s.cache.Del(ctx, key)
	}
	return s.cache.Set(ctx, key, roomID, ttl)
}

func (s *RedisStore) AddRetryTask(ctx context.Context, cmd DBCommand, notBefore time.Time) error {
	data, err := encodeCommand(cmd)
	if err != nil {
		return err
	}
	return s.cache.ZAdd(ctx, RetrySetKey, float64(notBefore.Unix()), data)
}

func (s *RedisStore) GetPlayer(ctx context.Context, roomID string, playerID int32) (catalogue.Player, error) {
	p, ok := s.catalogue.Get(playerID)
	if !ok {
		return catalogue.Player{}, ErrPlayerNotFound
	}
	return p, nil
}

// RetrySetKey is the shared retry ZSET the DB Task Pipeline polls.
const RetrySetKey = "auction:retry:zset"

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}

func encodeCommand(cmd DBCommand) (string, error) {
	return EncodeCommand(cmd)
}

// EncodeCommand serializes cmd for storage in the retry ZSET (used directly
// by the DB Task Pipeline when rescheduling a failed command).
func EncodeCommand(cmd DBCommand) (string, error) {
	b, err := json.Marshal(cmd)
	if err != nil {
		return "", fmt.Errorf("roomstore: failed to encode retry task: %w", err)
	}
	return string(b), nil
}

// DecodeCommand parses a retry-set payload back into a DBCommand (used by
// the DB Task Pipeline's retry poller).
func DecodeCommand(payload string) (DBCommand, error) {
	var cmd DBCommand
	if err := json.Unmarshal([]byte(payload), &cmd); err != nil {
		return DBCommand{}, fmt.Errorf("roomstore: failed to decode retry task: %w", err)
	}
	return cmd, nil
}
