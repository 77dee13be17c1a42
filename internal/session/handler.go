package session

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/phanidharguttikonda0/ipl-auction-sub000/internal/auction"
	"github.com/phanidharguttikonda0/ipl-auction-sub000/internal/auth"
	"github.com/phanidharguttikonda0/ipl-auction-sub000/internal/logging"
	"github.com/phanidharguttikonda0/ipl-auction-sub000/internal/metrics"
	"github.com/phanidharguttikonda0/ipl-auction-sub000/internal/ratelimit"
	"github.com/phanidharguttikonda0/ipl-auction-sub000/internal/roomstore"
	"github.com/phanidharguttikonda0/ipl-auction-sub000/internal/socket"
	"github.com/phanidharguttikonda0/ipl-auction-sub000/internal/userstore"
)

// Teams looks up the franchise a participant is playing for; satisfied by
// *userstore.Store in production and a fake in tests.
type Teams interface {
	GetTeamName(ctx context.Context, participantID string) (string, error)
}

// Handler owns the WebSocket upgrade route and the lifecycle of every
// connection it accepts: authenticate, join the room, pump frames, clean up.
type Handler struct {
	store     roomstore.Store
	sockets   *socket.Registry
	machine   *auction.Machine
	teams     Teams
	validator auth.Validator
	limiter   *ratelimit.RateLimiter
	upgrader  websocket.Upgrader
	roomMode  bool
}

// New builds a Handler. limiter may be nil to disable connection throttling.
// roomMode mirrors config.Config.RoomMode: the relaxed roster-size mode new
// rooms are created with on this deployment.
func New(store roomstore.Store, sockets *socket.Registry, machine *auction.Machine, teams *userstore.Store, validator auth.Validator, limiter *ratelimit.RateLimiter, roomMode bool) *Handler {
	return &Handler{
		store:     store,
		sockets:   sockets,
		machine:   machine,
		teams:     teams,
		validator: validator,
		limiter:   limiter,
		roomMode:  roomMode,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Register mounts the upgrade route onto router at /{room_id}/{participant_id}.
func (h *Handler) Register(router gin.IRoutes) {
	router.GET("/:room_id/:participant_id", h.ServeWs)
}

// ServeWs authenticates the caller, joins them to the room, and upgrades the
// connection. The connect sequence is: look up team_name, ensure the room
// exists (room_creator_id = first connecting participant), add the
// participant, upgrade, register the outbound channel, then hand off to the
// reader/writer pumps.
func (h *Handler) ServeWs(c *gin.Context) {
	ctx := c.Request.Context()
	roomID := c.Param("room_id")
	participantID := c.Param("participant_id")

	if h.limiter != nil && !h.limiter.CheckWebSocketIP(c) {
		return
	}

	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token not provided"})
		return
	}
	claims, err := h.validator.ValidateToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	if claims.Subject != participantID {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token subject does not match participant id"})
		return
	}

	if h.limiter != nil {
		if err := h.limiter.CheckWebSocketParticipant(ctx, participantID); err != nil {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many connection attempts"})
			return
		}
	}

	teamName, err := h.teams.GetTeamName(ctx, participantID)
	if err != nil {
		logging.Error(ctx, "session: failed to resolve participant's team")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Technical Problem"})
		return
	}

	created, err := h.store.SetRoom(ctx, roomID, participantID, h.roomMode)
	if err != nil {
		logging.Error(ctx, "session: failed to ensure room exists")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Technical Problem"})
		return
	}
	if created {
		metrics.ActiveRooms.Inc()
	}

	if _, err := h.store.GetParticipant(ctx, roomID, participantID); err != nil {
		if err := h.store.AddParticipant(ctx, roomID, roomstore.Participant{ID: participantID, Team: teamName}); err != nil {
			logging.Error(ctx, "session: failed to add participant")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Technical Problem"})
			return
		}
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Warn(ctx, "session: websocket upgrade failed")
		return
	}

	outbound := h.sockets.Register(roomID, participantID)
	client := &Client{
		conn:          conn,
		outbound:      outbound,
		RoomID:        roomID,
		ParticipantID: participantID,
		TeamName:      teamName,
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		client.writePump()
	}()

	client.readPump(func(frame string) {
		h.dispatch(context.Background(), client, frame)
	})

	h.sockets.Unregister(roomID, participantID, outbound)
	wg.Wait()
}

// dispatch decodes one inbound text frame per spec.md §6 and routes it to
// the Bid State Machine / RTM Sub-protocol, then lets at most one bot react.
func (h *Handler) dispatch(ctx context.Context, c *Client, frame string) {
	switch {
	case frame == "start":
		h.run(ctx, c, h.machine.Start(ctx, c.RoomID, c.ParticipantID))
	case frame == "bid":
		h.run(ctx, c, h.machine.Bid(ctx, c.RoomID, c.ParticipantID, c.TeamName))
	case frame == "skip" || strings.HasPrefix(frame, "skip-"):
		h.run(ctx, c, h.machine.Skip(ctx, c.RoomID, c.ParticipantID, c.TeamName, frame))
	case strings.HasPrefix(frame, "rtm-instant-cancel"):
		h.run(ctx, c, h.machine.RTMInstantCancel(ctx, c.RoomID, c.ParticipantID))
	case strings.HasPrefix(frame, "rtm-cancel"):
		h.run(ctx, c, h.machine.RTMCancel(ctx, c.RoomID, c.ParticipantID))
	case strings.HasPrefix(frame, "rtm-"):
		h.run(ctx, c, h.machine.RTMUse(ctx, c.RoomID, c.ParticipantID, frame))
	case frame == "unmute":
		h.run(ctx, c, h.machine.Unmute(ctx, c.RoomID, c.ParticipantID))
	case frame == "pause":
		h.run(ctx, c, h.machine.Pause(ctx, c.RoomID, c.ParticipantID))
	case frame == "resume":
		h.run(ctx, c, h.machine.Resume(ctx, c.RoomID, c.ParticipantID))
	default:
		h.sockets.SendSelf(c.RoomID, c.ParticipantID, socket.TextFrame("Invalid command"))
		return
	}

	if err := h.machine.BotTick(ctx, c.RoomID, map[string]bool{}); err != nil {
		logging.Error(ctx, "session: bot tick failed")
	}
}

func (h *Handler) run(ctx context.Context, c *Client, err error) {
	if err == nil {
		return
	}
	logging.Error(ctx, "session: engine call failed")
	h.sockets.SendSelf(c.RoomID, c.ParticipantID, socket.TextFrame("Technical Problem"))
}
