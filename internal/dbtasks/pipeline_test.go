package dbtasks

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/phanidharguttikonda0/ipl-auction-sub000/internal/roomstore"
)

func TestBackoffDoublesUntilCap(t *testing.T) {
	cap := 30 * time.Second
	assert.Equal(t, 2*time.Second, backoff(1, cap))
	assert.Equal(t, 4*time.Second, backoff(2, cap))
	assert.Equal(t, 8*time.Second, backoff(3, cap))
}

func TestBackoffNeverExceedsCap(t *testing.T) {
	cap := 10 * time.Second
	assert.Equal(t, cap, backoff(10, cap))
}

func TestEnqueueDropsWhenQueueFull(t *testing.T) {
	p := New(nil, nil, Config{WorkerCount: 1, PollEvery: time.Second, BackoffCap: time.Minute, MaxAttempts: 3})
	p.queue = make(chan roomstore.DBCommand, 1)

	p.Enqueue(roomstore.DBCommand{Kind: roomstore.CmdPlayerSold})
	p.Enqueue(roomstore.DBCommand{Kind: roomstore.CmdPlayerUnsold}) // queue full, must not block

	assert.Len(t, p.queue, 1)
	got := <-p.queue
	assert.Equal(t, roomstore.CmdPlayerSold, got.Kind)
}
