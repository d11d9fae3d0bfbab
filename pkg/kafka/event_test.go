package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cartClearedPayload struct {
	UserID string `json:"user_id"`
}

func TestNewEvent(t *testing.T) {
	ev, err := NewEvent("cart.cleared", "user-1", "cart", "cart-service", cartClearedPayload{UserID: "user-1"})
	require.NoError(t, err)

	assert.NotEmpty(t, ev.EventID)
	assert.Equal(t, "cart.cleared", ev.EventType)
	assert.Equal(t, "user-1", ev.AggregateID)
	assert.Equal(t, "cart", ev.AggregateType)
	assert.Equal(t, "cart-service", ev.Source)
	assert.Equal(t, 1, ev.Version)
	assert.NotZero(t, ev.Timestamp)
}

func TestEvent_RoundTrip(t *testing.T) {
	ev, err := NewEvent("cart.cleared", "user-2", "cart", "cart-service", cartClearedPayload{UserID: "user-2"})
	require.NoError(t, err)
	ev.WithCorrelationID("corr-9")

	raw, err := ev.Marshal()
	require.NoError(t, err)

	decoded, err := UnmarshalEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, ev.EventID, decoded.EventID)
	assert.Equal(t, "corr-9", decoded.CorrelationID)

	var payload cartClearedPayload
	require.NoError(t, decoded.UnmarshalData(&payload))
	assert.Equal(t, "user-2", payload.UserID)
}

func TestNewEvent_UnmarshalableData(t *testing.T) {
	_, err := NewEvent("x", "a", "cart", "cart-service", make(chan int))
	require.Error(t, err)
}
