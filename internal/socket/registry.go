// Package socket is the Socket Registry (spec component B): a room-scoped
// map from participant id to outbound channel, supporting broadcast,
// targeted send, and self-send. It never stores a handle back into the
// Room Store or vice versa — cross-references are by id (spec.md §9).
package socket

import (
	"encoding/json"
	"sync"

	"github.com/phanidharguttikonda0/ipl-auction-sub000/internal/logging"
	"github.com/phanidharguttikonda0/ipl-auction-sub000/internal/metrics"
)

// Outbound is one queued frame waiting to be written to a participant's socket.
type Outbound struct {
	Text  string // pre-serialized text frame; mutually exclusive with JSON
	JSON  interface{}
}

// outboundChanBuffer bounds how far a slow client's writer can lag before
// broadcasts start dropping frames for it rather than blocking the room.
const outboundChanBuffer = 32

type room struct {
	mu       sync.RWMutex
	channels map[string]chan Outbound
}

// Registry holds every room's live outbound channels.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*room
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*room)}
}

func (r *Registry) roomFor(roomID string) *room {
	r.mu.RLock()
	rm, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if ok {
		return rm
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if rm, ok = r.rooms[roomID]; ok {
		return rm
	}
	rm = &room{channels: make(map[string]chan Outbound)}
	r.rooms[roomID] = rm
	return rm
}

// Register installs the outbound channel for participantID in roomID,
// replacing any prior entry (a reconnect with the same id supersedes it,
// per spec.md §4.B).
func (r *Registry) Register(roomID, participantID string) <-chan Outbound {
	rm := r.roomFor(roomID)
	ch := make(chan Outbound, outboundChanBuffer)

	rm.mu.Lock()
	rm.channels[participantID] = ch
	rm.mu.Unlock()

	metrics.IncConnection()
	return ch
}

// Unregister removes participantID's channel from roomID, if it is still
// the one registered (a newer reconnect's channel is left untouched).
func (r *Registry) Unregister(roomID, participantID string, ch <-chan Outbound) {
	rm := r.roomFor(roomID)

	rm.mu.Lock()
	if existing, ok := rm.channels[participantID]; ok && sameChan(existing, ch) {
		delete(rm.channels, participantID)
		close(existing)
	}
	rm.mu.Unlock()

	metrics.DecConnection()
}

func sameChan(a chan Outbound, b <-chan Outbound) bool {
	return (<-chan Outbound)(a) == b
}

// Broadcast sends msg to every participant currently registered in roomID.
// It holds the read lock only long enough to copy the channel handles.
func (r *Registry) Broadcast(roomID string, msg Outbound) {
	rm := r.roomFor(roomID)

	rm.mu.RLock()
	targets := make([]chan Outbound, 0, len(rm.channels))
	for _, ch := range rm.channels {
		targets = append(targets, ch)
	}
	rm.mu.RUnlock()

	for _, ch := range targets {
		nonBlockingSend(ch, msg)
	}
}

// SendToParticipant sends msg only to participantID, if connected.
func (r *Registry) SendToParticipant(roomID, participantID string, msg Outbound) bool {
	rm := r.roomFor(roomID)

	rm.mu.RLock()
	ch, ok := rm.channels[participantID]
	rm.mu.RUnlock()

	if !ok {
		return false
	}
	nonBlockingSend(ch, msg)
	return true
}

// Count reports how many participants are currently registered in roomID.
func (r *Registry) Count(roomID string) int {
	rm := r.roomFor(roomID)
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.channels)
}

// SendSelf is SendToParticipant distinguished for logging: the sender
// receiving their own echo (e.g. a private bid confirmation).
func (r *Registry) SendSelf(roomID, participantID string, msg Outbound) bool {
	sent := r.SendToParticipant(roomID, participantID, msg)
	if !sent {
		logging.Warn(nil, "send_self target not connected")
	}
	return sent
}

func nonBlockingSend(ch chan Outbound, msg Outbound) {
	select {
	case ch <- msg:
	default:
		// Slow or stalled client: drop rather than block the broadcaster.
	}
}

// TextFrame builds an Outbound carrying a literal text frame.
func TextFrame(text string) Outbound {
	return Outbound{Text: text}
}

// JSONFrame builds an Outbound carrying a value to be JSON-encoded by the writer.
func JSONFrame(v interface{}) Outbound {
	return Outbound{JSON: v}
}

// Encode renders an Outbound to the bytes that go on the wire.
func (o Outbound) Encode() ([]byte, error) {
	if o.JSON != nil {
		return json.Marshal(o.JSON)
	}
	return []byte(o.Text), nil
}
