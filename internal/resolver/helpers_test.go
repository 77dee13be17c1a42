package resolver

import (
	"context"
	"sync"
	"time"

	"github.com/phanidharguttikonda0/ipl-auction-sub000/internal/catalogue"
	"github.com/phanidharguttikonda0/ipl-auction-sub000/internal/roomstore"
)

type fakeStore struct {
	mu           sync.Mutex
	meta         roomstore.RoomMeta
	participants map[string]roomstore.Participant
	bid          roomstore.Bid
	players      map[int32]catalogue.Player
	timers       map[string]bool
	skipped      map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		meta:         roomstore.RoomMeta{RoomID: "room1", CreatorID: "p1", Status: roomstore.StatusInProgress},
		participants: make(map[string]roomstore.Participant),
		players:      make(map[int32]catalogue.Player),
		timers:       make(map[string]bool),
		skipped:      make(map[string]bool),
	}
}

func (s *fakeStore) SetRoom(ctx context.Context, roomID, creatorID string, roomMode bool) (bool, error) {
	return false, nil
}

func (s *fakeStore) GetRoomMeta(ctx context.Context, roomID string) (roomstore.RoomMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meta, nil
}

func (s *fakeStore) SetPause(ctx context.Context, roomID string, paused bool) error {
	s.meta.Paused = paused
	return nil
}

func (s *fakeStore) SetRoomStatus(ctx context.Context, roomID string, status roomstore.RoomStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta.Status = status
	return nil
}

func (s *fakeStore) GetCurrentPlayer(ctx context.Context, roomID string) (int32, error) {
	return s.meta.CurrentPlayer, nil
}

func (s *fakeStore) SetCurrentPlayer(ctx context.Context, roomID string, playerID int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta.CurrentPlayer = playerID
	return nil
}

func (s *fakeStore) AddParticipant(ctx context.Context, roomID string, p roomstore.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.participants[p.ID] = p
	return nil
}

func (s *fakeStore) GetParticipant(ctx context.Context, roomID, participantID string) (roomstore.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[participantID]
	if !ok {
		return roomstore.Participant{}, roomstore.ErrParticipantNotFound
	}
	return p, nil
}

func (s *fakeStore) ListParticipants(ctx context.Context, roomID string) ([]roomstore.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]roomstore.Participant, 0, len(s.participants))
	for _, p := range s.participants {
		out = append(out, p)
	}
	return out, nil
}

func (s *fakeStore) ApplyParticipantDelta(ctx context.Context, roomID, participantID string, delta roomstore.ParticipantDelta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.participants[participantID]
	p.Balance += delta.BalanceDelta
	p.Acquired += delta.AcquiredDelta
	p.ForeignAcquired += delta.ForeignAcquiredDelta
	p.RemainingRTMs += delta.RemainingRTMsDelta
	if delta.SetMuted != nil {
		p.Muted = *delta.SetMuted
	}
	s.participants[participantID] = p
	return nil
}

func (s *fakeStore) UpdateCurrentBid(ctx context.Context, roomID string, bid roomstore.Bid, family roomstore.TimerFamily, ttl time.Duration, rosterSize int) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bid = bid
	s.timers[string(family)] = ttl > 0
	return bid.Amount, nil
}

func (s *fakeStore) GetCurrentBid(ctx context.Context, roomID string) (roomstore.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bid, nil
}

func (s *fakeStore) MarkSkipped(ctx context.Context, roomID, participantID string) error {
	s.skipped[participantID] = true
	return nil
}

func (s *fakeStore) IsSkipped(ctx context.Context, roomID, participantID string) (bool, error) {
	return s.skipped[participantID], nil
}

func (s *fakeStore) GetSkippedCount(ctx context.Context, roomID string) (int, error) {
	return len(s.skipped), nil
}

func (s *fakeStore) ClearSkipSet(ctx context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skipped = make(map[string]bool)
	return nil
}

func (s *fakeStore) CheckKeyExists(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timers[key], nil
}

func (s *fakeStore) AtomicDelete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.timers, key)
	return nil
}

func (s *fakeStore) ArmTimer(ctx context.Context, roomID string, family roomstore.TimerFamily, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timers[string(family)] = ttl > 0
	return nil
}

func (s *fakeStore) TimerKey(roomID string, family roomstore.TimerFamily) string {
	return string(family)
}

func (s *fakeStore) AddRetryTask(ctx context.Context, cmd roomstore.DBCommand, notBefore time.Time) error {
	return nil
}

func (s *fakeStore) GetPlayer(ctx context.Context, roomID string, playerID int32) (catalogue.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[playerID]
	if !ok {
		return catalogue.Player{}, roomstore.ErrPlayerNotFound
	}
	return p, nil
}

type fakeEnqueuer struct {
	mu       sync.Mutex
	enqueued []roomstore.DBCommand
}

func (f *fakeEnqueuer) Enqueue(cmd roomstore.DBCommand) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enqueued = append(f.enqueued, cmd)
}

func (f *fakeEnqueuer) kinds() []roomstore.DBCommandKind {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]roomstore.DBCommandKind, 0, len(f.enqueued))
	for _, c := range f.enqueued {
		out = append(out, c.Kind)
	}
	return out
}
