// Package resolver is the Expiry Resolver (spec component D): background
// subscribers on the cache's key-expiry notifications, one per timer family,
// that finalize an auction item the instant its timer key dies, whether that
// death was a natural timeout or a fire-now TTL=1 armed by the Bid State
// Machine. Each subscriber handles its family's expiries one at a time, so
// two expiries of the same family for the same room never race.
package resolver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/phanidharguttikonda0/ipl-auction-sub000/internal/auction"
	"github.com/phanidharguttikonda0/ipl-auction-sub000/internal/bus"
	"github.com/phanidharguttikonda0/ipl-auction-sub000/internal/catalogue"
	"github.com/phanidharguttikonda0/ipl-auction-sub000/internal/logging"
	"github.com/phanidharguttikonda0/ipl-auction-sub000/internal/metrics"
	"github.com/phanidharguttikonda0/ipl-auction-sub000/internal/roomstore"
	"github.com/phanidharguttikonda0/ipl-auction-sub000/internal/socket"
)

// Enqueuer hands a durable DB command to the DB Task Pipeline.
type Enqueuer interface {
	Enqueue(cmd roomstore.DBCommand)
}

// Resolver owns the expiry subscription loop.
type Resolver struct {
	cache     *bus.Service
	store     roomstore.Store
	sockets   *socket.Registry
	catalogue *catalogue.Catalogue
	db        Enqueuer
	cfg       auction.Config
}

// New builds a Resolver.
func New(cache *bus.Service, store roomstore.Store, sockets *socket.Registry, cat *catalogue.Catalogue, db Enqueuer, cfg auction.Config) *Resolver {
	return &Resolver{cache: cache, store: store, sockets: sockets, catalogue: cat, db: db, cfg: cfg}
}

// Run subscribes to the bid timer-key family and resolves every expiry
// until ctx is cancelled. Call on its own goroutine alongside RunRTM; wg is
// passed straight through to the underlying subscription.
func (r *Resolver) Run(ctx context.Context, wg *sync.WaitGroup) {
	r.cache.SubscribeExpiry(ctx, "auction:timer:", wg, func(key string) {
		r.handleBidExpiry(ctx, key)
	})
}

// RunRTM subscribes the RTM timer-key family; a separate entry point so
// main can run it on its own goroutine alongside Run.
func (r *Resolver) RunRTM(ctx context.Context, wg *sync.WaitGroup) {
	r.cache.SubscribeExpiry(ctx, "auction:rtm:", wg, func(key string) {
		r.handleRTMExpiry(ctx, key)
	})
}

func roomIDFromKey(key, prefix string) string {
	if len(key) <= len(prefix) {
		return ""
	}
	return key[len(prefix):]
}

// handleRTMExpiry fires when an RTM offer goes unanswered: treat it as an
// instant decline so the item still resolves rather than hanging forever.
func (r *Resolver) handleRTMExpiry(ctx context.Context, key string) {
	roomID := roomIDFromKey(key, "auction:rtm:")
	if roomID == "" {
		return
	}
	bid, err := r.store.GetCurrentBid(ctx, roomID)
	if err != nil {
		logging.Error(ctx, "resolver: failed to read current bid on rtm expiry")
		return
	}
	bid.RTMBid = true
	meta, err := r.store.GetRoomMeta(ctx, roomID)
	if err != nil {
		return
	}
	rosterSize := 15
	if meta.RoomMode {
		rosterSize = r.cfg.RosterSize
	}
	if _, err := r.store.UpdateCurrentBid(ctx, roomID, bid, roomstore.TimerBid, time.Second, rosterSize); err != nil {
		logging.Error(ctx, "resolver: failed to fire-now after rtm timeout")
	}
}

// handleBidExpiry is the Component D core: on a normal-timer expiry, check
// RTM eligibility against the bid that is resolving (§4.D step 2) before
// anything else; only once that's ruled out does it classify SOLD vs
// UNSOLD, settle the winning participant's balance and counters, persist
// the outcome, and advance the room to its next item (or Completed).
func (r *Resolver) handleBidExpiry(ctx context.Context, key string) {
	roomID := roomIDFromKey(key, "auction:timer:")
	if roomID == "" {
		return
	}

	bid, err := r.store.GetCurrentBid(ctx, roomID)
	if err != nil {
		logging.Error(ctx, "resolver: failed to read current bid on expiry")
		return
	}

	if holder, eligible := r.rtmEligibleHolder(ctx, roomID, bid); eligible {
		r.offerRTM(ctx, roomID, bid, holder)
		return
	}

	if bid.Amount != 0 {
		r.resolveSold(ctx, roomID, bid)
	} else {
		r.resolveUnsold(ctx, roomID, bid)
	}

	// Clear the room's skip set: it only ever constrains bidding on the item
	// that just resolved.
	if err := r.store.ClearSkipSet(ctx, roomID); err != nil {
		logging.Error(ctx, "resolver: failed to clear skip set")
	}

	r.advance(ctx, roomID, bid.PlayerID)
}

// rtmEligibleHolder implements §4.D step 2 and §4.E: a normal-timer expiry
// with a live bid (amount > 0) whose item's previous team still holds an
// RTM, and hasn't already been offered one this item (RTMBid) or already
// won it (IsRTM), returns that participant and true.
func (r *Resolver) rtmEligibleHolder(ctx context.Context, roomID string, bid roomstore.Bid) (roomstore.Participant, bool) {
	if bid.Amount <= 0 || bid.RTMBid || bid.IsRTM {
		return roomstore.Participant{}, false
	}
	player, err := r.store.GetPlayer(ctx, roomID, bid.PlayerID)
	if err != nil {
		return roomstore.Participant{}, false
	}
	fullTeamName := auction.PreviousTeamFullNames[player.PreviousTeam]
	if fullTeamName == "" {
		return roomstore.Participant{}, false
	}
	participants, err := r.store.ListParticipants(ctx, roomID)
	if err != nil {
		return roomstore.Participant{}, false
	}
	for _, p := range participants {
		if p.Team == fullTeamName && p.RemainingRTMs > 0 {
			return p, true
		}
	}
	return roomstore.Participant{}, false
}

// offerRTM implements the OnBlock -> AwaitingRTM transition: arm T_rtm for
// the resolving bid, privately notify the eligible holder, and broadcast a
// neutral notice to the rest of the room.
func (r *Resolver) offerRTM(ctx context.Context, roomID string, bid roomstore.Bid, holder roomstore.Participant) {
	meta, err := r.store.GetRoomMeta(ctx, roomID)
	if err != nil {
		logging.Error(ctx, "resolver: failed to read room meta offering rtm")
		return
	}
	rosterSize := 15
	if meta.RoomMode {
		rosterSize = r.cfg.RosterSize
	}
	if _, err := r.store.UpdateCurrentBid(ctx, roomID, bid, roomstore.TimerRTM, time.Duration(r.cfg.RTMTimerSeconds)*time.Second, rosterSize); err != nil {
		logging.Error(ctx, "resolver: failed to arm rtm offer")
		return
	}
	r.sockets.SendToParticipant(roomID, holder.ID, socket.TextFrame(fmt.Sprintf("You have RTM to match %.2f", bid.Amount)))
	r.sockets.Broadcast(roomID, socket.TextFrame("RTM offered"))
}

func (r *Resolver) resolveSold(ctx context.Context, roomID string, bid roomstore.Bid) {
	winner, err := r.store.GetParticipant(ctx, roomID, bid.ParticipantID)
	teamName := bid.ParticipantID
	if err == nil {
		teamName = winner.Team
	}

	player, _ := r.store.GetPlayer(ctx, roomID, bid.PlayerID)
	isForeign := 0
	if !player.IsIndian {
		isForeign = 1
	}

	delta := roomstore.ParticipantDelta{BalanceDelta: -bid.Amount, AcquiredDelta: 1, ForeignAcquiredDelta: isForeign}
	if bid.IsRTM {
		delta.RemainingRTMsDelta = -1
	}
	if err := r.store.ApplyParticipantDelta(ctx, roomID, bid.ParticipantID, delta); err != nil {
		logging.Error(ctx, "resolver: failed to settle sold player's participant state")
	}

	participant, _ := r.store.GetParticipant(ctx, roomID, bid.ParticipantID)
	sold := SoldPlayer{
		TeamName:              teamName,
		SoldPrice:             bid.Amount,
		RemainingBalance:       participant.Balance,
		RemainingRTMs:          participant.RemainingRTMs,
		ForeignPlayersBrought: participant.ForeignAcquired,
	}
	r.sockets.Broadcast(roomID, socket.JSONFrame(sold))
	metrics.ExpiryResolutions.WithLabelValues("sold").Inc()

	r.db.Enqueue(roomstore.DBCommand{
		Kind:   roomstore.CmdPlayerSold,
		RoomID: roomID,
		Payload: map[string]interface{}{
			"player_id":      bid.PlayerID,
			"participant_id": bid.ParticipantID,
			"bid_amount":     bid.Amount,
		},
	})
	if bid.IsRTM {
		r.db.Enqueue(roomstore.DBCommand{
			Kind:   roomstore.CmdUpdateRemainingRTMs,
			RoomID: roomID,
			Payload: map[string]interface{}{
				"participant_id": bid.ParticipantID,
			},
		})
	}
	r.db.Enqueue(roomstore.DBCommand{
		Kind:   roomstore.CmdBalanceUpdate,
		RoomID: roomID,
		Payload: map[string]interface{}{
			"participant_id":    bid.ParticipantID,
			"remaining_balance": participant.Balance,
		},
	})
}

// SoldPlayer is the outbound frame broadcast when an item sells (§6).
type SoldPlayer struct {
	TeamName              string  `json:"team_name"`
	SoldPrice             float64 `json:"sold_price"`
	RemainingBalance      float64 `json:"remaining_balance"`
	RemainingRTMs         int     `json:"remaining_rtms"`
	ForeignPlayersBrought int     `json:"foreign_players_brought"`
}

func (r *Resolver) resolveUnsold(ctx context.Context, roomID string, bid roomstore.Bid) {
	r.sockets.Broadcast(roomID, socket.TextFrame("UnSold"))
	metrics.ExpiryResolutions.WithLabelValues("unsold").Inc()

	r.db.Enqueue(roomstore.DBCommand{
		Kind:   roomstore.CmdPlayerUnsold,
		RoomID: roomID,
		Payload: map[string]interface{}{
			"player_id": bid.PlayerID,
		},
	})
}

// advance loads the next catalogue item (or marks the room Completed) and
// unconditionally arms a fresh T_bid for it; RTM eligibility for that item
// is only checked later, when its own bid timer expires (§4.D step 2).
func (r *Resolver) advance(ctx context.Context, roomID string, resolvedPlayerID int32) {
	nextID := resolvedPlayerID + 1
	player, ok := r.catalogue.Get(nextID)
	if !ok {
		if err := r.store.SetRoomStatus(ctx, roomID, roomstore.StatusCompleted); err != nil {
			logging.Error(ctx, "resolver: failed to mark room completed")
		}
		r.sockets.Broadcast(roomID, socket.TextFrame("Auction Completed"))
		r.db.Enqueue(roomstore.DBCommand{Kind: roomstore.CmdCompletedRoom, RoomID: roomID})
		return
	}

	if err := r.store.SetCurrentPlayer(ctx, roomID, nextID); err != nil {
		logging.Error(ctx, "resolver: failed to advance current player")
		return
	}

	meta, err := r.store.GetRoomMeta(ctx, roomID)
	if err != nil {
		return
	}
	rosterSize := 15
	if meta.RoomMode {
		rosterSize = r.cfg.RosterSize
	}

	bid := roomstore.Bid{ParticipantID: roomstore.NoBidder, PlayerID: player.ID, BasePrice: float64(player.BasePrice)}
	if _, err := r.store.UpdateCurrentBid(ctx, roomID, bid, roomstore.TimerBid, time.Duration(r.cfg.BidTimerSeconds)*time.Second, rosterSize); err != nil {
		logging.Error(ctx, "resolver: failed to arm next item")
	}

	r.sockets.Broadcast(roomID, socket.JSONFrame(player))
}

