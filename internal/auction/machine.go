// Package auction is the Bid State Machine and RTM Sub-protocol (spec
// components C and E): validates and applies bid, skip, start, and RTM
// frames, computing next-increment and enforcing the budget-reserve and
// foreign-player invariants. Per spec.md §4.C, a room's messages are
// serialized through the Room Store's atomic operations; this machine adds
// no locking of its own beyond that.
package auction

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/phanidharguttikonda0/ipl-auction-sub000/internal/bot"
	"github.com/phanidharguttikonda0/ipl-auction-sub000/internal/catalogue"
	"github.com/phanidharguttikonda0/ipl-auction-sub000/internal/logging"
	"github.com/phanidharguttikonda0/ipl-auction-sub000/internal/metrics"
	"github.com/phanidharguttikonda0/ipl-auction-sub000/internal/roomstore"
	"github.com/phanidharguttikonda0/ipl-auction-sub000/internal/socket"
)

// PreviousTeamFullNames maps the short codes carried on catalogue players'
// PreviousTeam field to the franchise names the Bot Bidder and RTM
// eligibility check use. Not given explicitly by the source auction this
// engine is patterned on; adopted as the conventional IPL short codes.
var PreviousTeamFullNames = map[string]string{
	"MI":   "Mumbai Indians",
	"CSK":  "Chennai Super Kings",
	"RCB":  "Royal Challengers Bangalore",
	"SRH":  "Sun Risers Hyderabad",
	"DC":   "Delhi Capitals",
	"KKR":  "Kolkata Knight Riders",
	"LSG":  "Lucknow Super Gaints",
	"PBKS": "Punjab Kings",
	"GT":   "Gujarat Titans",
	"RR":   "Rajasthan Royals",
}

// Config tunes the machine's timers and roster-size policy.
type Config struct {
	BidTimerSeconds int
	RTMTimerSeconds int
	MinParticipants int
	RosterSize      int
}

// Enqueuer hands a durable DB command to the DB Task Pipeline (component G).
type Enqueuer interface {
	Enqueue(cmd roomstore.DBCommand)
}

// Machine is the per-process Bid State Machine shared across every room; it
// carries no per-room mutable state of its own beyond the bot engines.
type Machine struct {
	store     roomstore.Store
	sockets   *socket.Registry
	catalogue *catalogue.Catalogue
	cfg       Config
	bots      *bot.RoomEngines
	db        Enqueuer
}

// New builds a Machine.
func New(store roomstore.Store, sockets *socket.Registry, cat *catalogue.Catalogue, cfg Config, bots *bot.RoomEngines, db Enqueuer) *Machine {
	return &Machine{store: store, sockets: sockets, catalogue: cat, cfg: cfg, bots: bots, db: db}
}

func (m *Machine) bidTimerTTL() time.Duration {
	return time.Duration(m.cfg.BidTimerSeconds) * time.Second
}

func (m *Machine) rtmTimerTTL() time.Duration {
	return time.Duration(m.cfg.RTMTimerSeconds) * time.Second
}

// sendSelf is a thin wrapper matching the teacher's send_himself naming for
// a private reply to the frame's sender.
func (m *Machine) sendSelf(roomID, participantID, text string) {
	m.sockets.SendSelf(roomID, participantID, socket.TextFrame(text))
}

func (m *Machine) broadcast(roomID string, frame socket.Outbound) {
	m.sockets.Broadcast(roomID, frame)
}

// Start implements the Idle -> OnBlock transition: creator only, requires
// at least MinParticipants live participants, loads the next item.
func (m *Machine) Start(ctx context.Context, roomID, participantID string) error {
	meta, err := m.store.GetRoomMeta(ctx, roomID)
	if err != nil {
		return err
	}
	if meta.CreatorID != participantID {
		m.sendSelf(roomID, participantID, "You will not having permissions")
		return nil
	}
	if m.sockets.Count(roomID) < m.cfg.MinParticipants {
		m.sendSelf(roomID, participantID, "Min of 3 participants should be in the room to start auction")
		return nil
	}

	if err := m.store.SetPause(ctx, roomID, false); err != nil {
		logging.Error(ctx, "failed to clear pause on start")
		m.sendSelf(roomID, participantID, "Technical Problem")
		return nil
	}

	playerID := meta.CurrentPlayer
	if playerID == 0 {
		playerID = 1
		if err := m.store.SetCurrentPlayer(ctx, roomID, playerID); err != nil {
			return err
		}
	}

	player, err := m.store.GetPlayer(ctx, roomID, playerID)
	if err != nil {
		m.sendSelf(roomID, participantID, "Technical Problem")
		return nil
	}

	if playerID == 1 {
		if err := m.store.SetRoomStatus(ctx, roomID, roomstore.StatusInProgress); err != nil {
			logging.Error(ctx, "failed to mark room in_progress")
		} else {
			m.db.Enqueue(roomstore.DBCommand{
				Kind:   roomstore.CmdUpdateRoomStatus,
				RoomID: roomID,
				Payload: map[string]interface{}{
					"status": string(roomstore.StatusInProgress),
				},
			})
		}
	}

	bid := roomstore.Bid{ParticipantID: roomstore.NoBidder, PlayerID: player.ID, Amount: 0, BasePrice: float64(player.BasePrice)}
	if _, err := m.store.UpdateCurrentBid(ctx, roomID, bid, roomstore.TimerBid, m.bidTimerTTL(), m.rosterSize(meta)); err != nil {
		logging.Error(ctx, "failed to arm first item")
		m.sendSelf(roomID, participantID, "Technical Problem")
		return nil
	}

	m.broadcast(roomID, socket.JSONFrame(player))
	metrics.BidOutcomes.WithLabelValues("start").Inc()
	return nil
}

func (m *Machine) rosterSize(meta roomstore.RoomMeta) int {
	if meta.RoomMode {
		return m.cfg.RosterSize
	}
	return 15
}

// NextIncrement implements the tiered increment rule of §4.C.
func NextIncrement(previousAmount float64) float64 {
	switch {
	case previousAmount < 1.0:
		return 0.05
	case previousAmount < 10.0:
		return 0.10
	default:
		return 0.25
	}
}

// Bid implements the OnBlock -> OnBlock "raise" transition.
func (m *Machine) Bid(ctx context.Context, roomID, participantID, teamName string) error {
	meta, err := m.store.GetRoomMeta(ctx, roomID)
	if err != nil {
		return err
	}

	timerKey := m.store.TimerKey(roomID, roomstore.TimerBid)
	exists, err := m.store.CheckKeyExists(ctx, timerKey)
	if err != nil {
		m.sendSelf(roomID, participantID, "Technical Problem")
		return nil
	}
	if !exists {
		m.sendSelf(roomID, participantID, "Bid is Invalid, RTM is taking place")
		return nil
	}

	currentBid, err := m.store.GetCurrentBid(ctx, roomID)
	if err != nil {
		return err
	}
	if currentBid.IsEmpty() && currentBid.PlayerID == 0 {
		logging.Warn(ctx, "no current bid found for bid frame")
		return nil
	}

	participant, err := m.store.GetParticipant(ctx, roomID, participantID)
	if err != nil {
		logging.Warn(ctx, "no participant found for bid frame")
		return nil
	}

	player, err := m.store.GetPlayer(ctx, roomID, currentBid.PlayerID)
	if err != nil {
		m.sendSelf(roomID, participantID, "Technical Problem")
		return nil
	}

	if !player.IsIndian && participant.ForeignAcquired >= 8 {
		m.sendSelf(roomID, participantID, "You reached Foreign Player limit")
		return nil
	}

	skipped, err := m.store.IsSkipped(ctx, roomID, participantID)
	if err != nil {
		return err
	}
	if skipped {
		m.sendSelf(roomID, participantID, "Bid is Invalid, you skipped the player")
		return nil
	}

	live := m.sockets.Count(roomID)
	if live < m.cfg.MinParticipants {
		// Matches the original's mid-bid fallback: pause the item rather
		// than let a thinning room keep bidding below the floor.
		if err := m.store.ArmTimer(ctx, roomID, roomstore.TimerBid, 0); err != nil {
			logging.Error(ctx, "failed to clear timer on below-minimum bid")
		}
		resetBid := currentBid
		resetBid.ParticipantID = roomstore.NoBidder
		resetBid.Amount = 0
		if _, err := m.store.UpdateCurrentBid(ctx, roomID, resetBid, roomstore.TimerBid, 0, m.rosterSize(meta)); err != nil {
			logging.Error(ctx, "failed to reset bid on below-minimum")
		}
		m.sendSelf(roomID, participantID, "Min of 3 participants should be in the room to bid")
		return nil
	}

	if currentBid.ParticipantID == participantID {
		m.sendSelf(roomID, participantID, "You are already the highest bidder")
		return nil
	}

	newAmount := currentBid.Amount + NextIncrement(currentBid.Amount)
	newBid := currentBid
	newBid.ParticipantID = participantID
	newBid.Amount = newAmount

	ttl := m.bidTimerTTL()
	skippedCount, err := m.store.GetSkippedCount(ctx, roomID)
	if err == nil && skippedCount == live-1 {
		ttl = time.Second
	}

	amount, err := m.store.UpdateCurrentBid(ctx, roomID, newBid, roomstore.TimerBid, ttl, m.rosterSize(meta))
	if err != nil {
		if err == roomstore.ErrBidNotAllowed {
			m.sendSelf(roomID, participantID, "Bid not allowed")
		} else {
			m.sendSelf(roomID, participantID, "Technical Issue")
		}
		return nil
	}

	m.broadcast(roomID, socket.JSONFrame(BidOutput{Team: teamName, BidAmount: amount}))
	metrics.BidOutcomes.WithLabelValues("bid").Inc()
	return nil
}

// BidOutput is the outbound frame broadcast on every accepted bid (§6).
type BidOutput struct {
	Team      string  `json:"team"`
	BidAmount float64 `json:"bid_amount"`
}

// Skip implements the OnBlock skip-accumulation and fire-now transitions.
func (m *Machine) Skip(ctx context.Context, roomID, participantID, teamName, rawFrame string) error {
	meta, err := m.store.GetRoomMeta(ctx, roomID)
	if err != nil {
		return err
	}

	if err := m.store.MarkSkipped(ctx, roomID, participantID); err != nil {
		return err
	}
	skippedCount, err := m.store.GetSkippedCount(ctx, roomID)
	if err != nil {
		return err
	}
	live := m.sockets.Count(roomID)

	if skippedCount == live-1 {
		currentBid, err := m.store.GetCurrentBid(ctx, roomID)
		if err != nil {
			logging.Warn(ctx, "no current bid found resolving near-total skip")
			return nil
		}
		holderSkipped, _ := m.store.IsSkipped(ctx, roomID, currentBid.ParticipantID)
		if currentBid.ParticipantID != roomstore.NoBidder && !holderSkipped {
			skippedCount++
		}
	}

	timerKey := m.store.TimerKey(roomID, roomstore.TimerBid)
	if skippedCount == live {
		exists, err := m.store.CheckKeyExists(ctx, timerKey)
		if err != nil {
			return err
		}
		if !exists {
			m.sendSelf(roomID, participantID, "At this Stage Skip won't work")
			return nil
		}
		currentBid, err := m.store.GetCurrentBid(ctx, roomID)
		if err != nil {
			return err
		}
		if _, err := m.store.UpdateCurrentBid(ctx, roomID, currentBid, roomstore.TimerBid, time.Second, m.rosterSize(meta)); err != nil {
			logging.Error(ctx, "failed to fire-now resolve full skip")
		}
		return nil
	}

	var message string
	if strings.Contains(rawFrame, "-") {
		reason := strings.SplitN(rawFrame, "-", 2)[1]
		message = fmt.Sprintf("%s was out of bid, due to %s", teamName, reason)
	} else {
		message = fmt.Sprintf("%s skipped the player", teamName)
	}
	m.broadcast(roomID, socket.TextFrame(message))
	metrics.BidOutcomes.WithLabelValues("skip").Inc()
	return nil
}

// Pause implements Any -> Paused (creator only), deleting both timer keys.
func (m *Machine) Pause(ctx context.Context, roomID, participantID string) error {
	meta, err := m.store.GetRoomMeta(ctx, roomID)
	if err != nil {
		return err
	}
	if meta.CreatorID != participantID {
		m.sendSelf(roomID, participantID, "You will not having permissions")
		return nil
	}
	if err := m.store.SetPause(ctx, roomID, true); err != nil {
		return err
	}
	_ = m.store.ArmTimer(ctx, roomID, roomstore.TimerBid, 0)
	_ = m.store.ArmTimer(ctx, roomID, roomstore.TimerRTM, 0)
	m.broadcast(roomID, socket.TextFrame("Auction Paused"))
	return nil
}

// Resume clears the pause flag and re-arms the bid timer for the current item.
func (m *Machine) Resume(ctx context.Context, roomID, participantID string) error {
	meta, err := m.store.GetRoomMeta(ctx, roomID)
	if err != nil {
		return err
	}
	if meta.CreatorID != participantID {
		m.sendSelf(roomID, participantID, "You will not having permissions")
		return nil
	}
	if err := m.store.SetPause(ctx, roomID, false); err != nil {
		return err
	}
	if err := m.store.ArmTimer(ctx, roomID, roomstore.TimerBid, m.bidTimerTTL()); err != nil {
		return err
	}
	m.broadcast(roomID, socket.TextFrame("Auction Resumed"))
	return nil
}

// Unmute clears a participant's mute flag.
func (m *Machine) Unmute(ctx context.Context, roomID, participantID string) error {
	unmuted := false
	return m.store.ApplyParticipantDelta(ctx, roomID, participantID, roomstore.ParticipantDelta{SetMuted: &unmuted})
}

func parseRTMDelta(frame string) (float64, error) {
	parts := strings.SplitN(frame, "-", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("malformed rtm frame")
	}
	return strconv.ParseFloat(parts[1], 64)
}

// RTMUse implements the "rtm-<delta>" frame: the previous-team participant
// raises the current bid by delta to exercise their Right to Match.
func (m *Machine) RTMUse(ctx context.Context, roomID, participantID, frame string) error {
	meta, err := m.store.GetRoomMeta(ctx, roomID)
	if err != nil {
		return err
	}
	rtmKey := m.store.TimerKey(roomID, roomstore.TimerRTM)
	exists, err := m.store.CheckKeyExists(ctx, rtmKey)
	if err != nil {
		return err
	}
	if !exists {
		m.sendSelf(roomID, participantID, "No RTM Bids are taking place")
		return nil
	}
	if err := m.store.ArmTimer(ctx, roomID, roomstore.TimerRTM, 0); err != nil {
		return err
	}

	bid, err := m.store.GetCurrentBid(ctx, roomID)
	if err != nil {
		return err
	}
	delta, err := parseRTMDelta(frame)
	if err != nil {
		logging.Warn(ctx, "malformed rtm frame")
		return nil
	}

	rtmPlacer, err := m.store.GetParticipant(ctx, roomID, participantID)
	if err != nil {
		return err
	}
	player, err := m.store.GetPlayer(ctx, roomID, bid.PlayerID)
	if err != nil {
		return err
	}
	fullTeamName := PreviousTeamFullNames[player.PreviousTeam]
	rosterSize := m.rosterSize(meta)

	resolved := false
	if fullTeamName != "" && fullTeamName == rtmPlacer.Team {
		newAmount := delta + bid.Amount
		if rtmPlacer.RemainingRTMs > 0 {
			highestBidder, err := m.store.GetParticipant(ctx, roomID, bid.ParticipantID)
			if err != nil {
				return err
			}
			placerAllowed := roomstore.BidAllowed(rtmPlacer.Balance, rtmPlacer.Acquired, rosterSize, newAmount)
			holderAllowed := roomstore.BidAllowed(highestBidder.Balance, highestBidder.Acquired, rosterSize, newAmount)

			switch {
			case placerAllowed && holderAllowed:
				newBid := roomstore.Bid{ParticipantID: participantID, PlayerID: bid.PlayerID, Amount: newAmount, BasePrice: bid.BasePrice, IsRTM: true}
				if _, err := m.store.UpdateCurrentBid(ctx, roomID, newBid, roomstore.TimerBid, m.bidTimerTTL(), rosterSize); err != nil {
					if err == roomstore.ErrBidNotAllowed {
						m.sendSelf(roomID, participantID, "Bid not allowed")
					} else {
						m.sendSelf(roomID, participantID, "Technical Issue")
					}
				}
				m.sockets.SendToParticipant(roomID, bid.ParticipantID, socket.TextFrame(fmt.Sprintf("rtm-amount-%.2f", newAmount)))
				resolved = true
			case placerAllowed:
				newBid := roomstore.Bid{ParticipantID: participantID, PlayerID: bid.PlayerID, Amount: newAmount, BasePrice: bid.BasePrice, IsRTM: true}
				if _, err := m.store.UpdateCurrentBid(ctx, roomID, newBid, roomstore.TimerBid, time.Second, rosterSize); err != nil {
					if err == roomstore.ErrBidNotAllowed {
						m.sendSelf(roomID, participantID, "Bid not allowed")
					} else {
						m.sendSelf(roomID, participantID, "Technical Issue")
					}
				}
				m.sockets.SendToParticipant(roomID, bid.ParticipantID, socket.TextFrame(fmt.Sprintf("no balance to accept the bid price of %.2f", newAmount)))
				resolved = true
			default:
				m.sendSelf(roomID, participantID, "Invalid Price, You Lost RTM for this Bid")
			}
		} else {
			m.sendSelf(roomID, participantID, "All RTMS were used")
		}
	} else {
		m.sendSelf(roomID, participantID, "The current player is not in ur team previously")
	}

	if resolved {
		metrics.BidOutcomes.WithLabelValues("rtm_used").Inc()
		return nil
	}

	// RTM not exercised: mark the bid as already-offered and fire the bid
	// timer now so the resolver finalizes without waiting on a second offer.
	bid.RTMBid = true
	if _, err := m.store.UpdateCurrentBid(ctx, roomID, bid, roomstore.TimerBid, time.Second, rosterSize); err != nil {
		logging.Error(ctx, "failed to fire-now resolve declined rtm")
	}
	metrics.BidOutcomes.WithLabelValues("rtm_declined").Inc()
	return nil
}

// RTMInstantCancel implements "rtm-instant-cancel": the previous-team
// participant declines to exercise RTM before the offer is even evaluated.
func (m *Machine) RTMInstantCancel(ctx context.Context, roomID, participantID string) error {
	if err := m.store.ArmTimer(ctx, roomID, roomstore.TimerRTM, 0); err != nil {
		return err
	}
	bid, err := m.store.GetCurrentBid(ctx, roomID)
	if err != nil {
		return err
	}
	bid.RTMBid = true
	meta, err := m.store.GetRoomMeta(ctx, roomID)
	if err != nil {
		return err
	}
	if _, err := m.store.UpdateCurrentBid(ctx, roomID, bid, roomstore.TimerBid, time.Second, m.rosterSize(meta)); err != nil {
		logging.Error(ctx, "failed to fire-now resolve instant rtm cancel")
	}
	m.sockets.SendToParticipant(roomID, participantID, socket.TextFrame("Cancelled the RTM"))
	return nil
}

// RTMCancel implements "rtm-cancel": the current highest bidder declines to
// top the price the previous team matched. The bid timer is fired now with
// IsRTM set, so the item sells to the RTM holder at the matched price.
func (m *Machine) RTMCancel(ctx context.Context, roomID, participantID string) error {
	if err := m.store.ArmTimer(ctx, roomID, roomstore.TimerRTM, 0); err != nil {
		return err
	}
	bid, err := m.store.GetCurrentBid(ctx, roomID)
	if err != nil {
		return err
	}
	bid.IsRTM = true
	meta, err := m.store.GetRoomMeta(ctx, roomID)
	if err != nil {
		return err
	}
	if _, err := m.store.UpdateCurrentBid(ctx, roomID, bid, roomstore.TimerBid, time.Second, m.rosterSize(meta)); err != nil {
		logging.Error(ctx, "failed to fire-now resolve rtm cancel")
	}
	m.sockets.SendToParticipant(roomID, participantID, socket.TextFrame("Cancelled the RTM Price"))
	return nil
}

// BotTick lets the room's bot engine consider a counter-bid against the
// current highest bid, immediately after a human bid or a new item loads.
// Not itself part of the wire protocol — invoked by the session handler
// after every recognized inbound frame so bots react on the same cadence a
// human would, without a dedicated background poller per room.
func (m *Machine) BotTick(ctx context.Context, roomID string, skip map[string]bool) error {
	if m.bots == nil {
		return nil
	}
	bid, err := m.store.GetCurrentBid(ctx, roomID)
	if err != nil || bid.PlayerID == 0 {
		return err
	}
	player, err := m.store.GetPlayer(ctx, roomID, bid.PlayerID)
	if err != nil {
		return err
	}
	engine := m.bots.Get(roomID)
	candidate := bot.Candidate{Role: bot.RoleOf(player.Role), Rating: int(player.Rating)}
	teamName, participantID, _ := engine.Decide(candidate, bid.Amount, skip)
	if participantID == "" {
		return nil
	}
	return m.Bid(ctx, roomID, participantID, teamName)
}
