package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phanidharguttikonda0/ipl-auction-sub000/internal/socket"
)

// fakeConn is a minimal wsConnection for exercising the pumps without a real
// network socket.
type fakeConn struct {
	mu       sync.Mutex
	writes   [][]byte
	closed   bool
	inbound  chan []byte
	closeErr error
}

func newFakeConn() *fakeConn {
	return &fakeConn{inbound: make(chan []byte, 8)}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	data, ok := <-f.inbound
	if !ok {
		return 0, nil, errors.New("connection closed")
	}
	return 1, data, nil
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, data)
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return f.closeErr
}

func (f *fakeConn) SetWriteDeadline(t time.Time) error { return nil }

func (f *fakeConn) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

func TestWritePumpDrainsUntilChannelCloses(t *testing.T) {
	conn := newFakeConn()
	ch := make(chan socket.Outbound, 4)
	ch <- socket.TextFrame("hello")
	ch <- socket.JSONFrame(map[string]int{"a": 1})
	close(ch)

	client := &Client{conn: conn, outbound: ch}
	client.writePump()

	assert.Equal(t, 3, conn.writeCount(), "two frames plus the final close message")
	assert.True(t, conn.closed)
}

func TestReadPumpDispatchesEachFrame(t *testing.T) {
	conn := newFakeConn()
	client := &Client{conn: conn}

	var got []string
	var mu sync.Mutex
	conn.inbound <- []byte("start")
	conn.inbound <- []byte("bid")
	close(conn.inbound)

	client.readPump(func(frame string) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, frame)
	})

	require.Len(t, got, 2)
	assert.Equal(t, []string{"start", "bid"}, got)
}
