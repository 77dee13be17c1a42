package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestIncConnectionIncrementsGauge(t *testing.T) {
	before := testutil.ToFloat64(ActiveWebSocketConnections)

	IncConnection()

	assert.Equal(t, before+1, testutil.ToFloat64(ActiveWebSocketConnections))
}

func TestDecConnectionDecrementsGauge(t *testing.T) {
	IncConnection()
	before := testutil.ToFloat64(ActiveWebSocketConnections)

	DecConnection()

	assert.Equal(t, before-1, testutil.ToFloat64(ActiveWebSocketConnections))
}

func TestRoomParticipantsTracksPerRoomLabel(t *testing.T) {
	RoomParticipants.WithLabelValues("room-42").Set(7)

	assert.Equal(t, float64(7), testutil.ToFloat64(RoomParticipants.WithLabelValues("room-42")))
}

func TestSocketEventsCountsByFrameTypeAndStatus(t *testing.T) {
	before := testutil.ToFloat64(SocketEvents.WithLabelValues("bid", "accepted"))

	SocketEvents.WithLabelValues("bid", "accepted").Inc()

	assert.Equal(t, before+1, testutil.ToFloat64(SocketEvents.WithLabelValues("bid", "accepted")))
}

func TestCircuitBreakerStateTracksPerServiceLabel(t *testing.T) {
	CircuitBreakerState.WithLabelValues("cache").Set(1)

	assert.Equal(t, float64(1), testutil.ToFloat64(CircuitBreakerState.WithLabelValues("cache")))
}
