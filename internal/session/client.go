// Package session is the Session Handler (spec component H): per-socket
// connection lifecycle, participant authentication, and the translation of
// inbound text frames into Bid State Machine calls.
package session

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/phanidharguttikonda0/ipl-auction-sub000/internal/socket"
)

// wsConnection is the subset of *websocket.Conn the Client depends on,
// narrowed so tests can substitute a fake transport.
type wsConnection interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
	SetWriteDeadline(t time.Time) error
}

const writeWait = 10 * time.Second

// Client is one participant's live connection to a room. It owns no auction
// state itself: RoomID/ParticipantID/TeamName only address state that lives
// in the Room Store and Socket Registry.
type Client struct {
	conn          wsConnection
	outbound      <-chan socket.Outbound
	RoomID        string
	ParticipantID string
	TeamName      string
}

// writePump drains the participant's outbound channel to the socket until it
// closes (on disconnect, the Socket Registry closes the channel it handed
// out). Runs on its own goroutine per spec.md §5.
func (c *Client) writePump() {
	defer c.conn.Close()
	for frame := range c.outbound {
		data, err := frame.Encode()
		if err != nil {
			continue
		}
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// readPump blocks reading text frames from the socket, invoking dispatch for
// each one, until the peer closes or a read error occurs.
func (c *Client) readPump(dispatch func(frame string)) {
	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		dispatch(string(data))
	}
}
