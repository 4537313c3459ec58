package notifications

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_RegisterAndUnregister(t *testing.T) {
	hub := NewHub()

	a, err := hub.Register(1, nil)
	require.NoError(t, err)
	b, err := hub.Register(1, nil)
	require.NoError(t, err)
	assert.True(t, hub.IsOnline(1))

	hub.UnregisterClient(a)
	assert.True(t, hub.IsOnline(1))
	hub.UnregisterClient(b)
	assert.False(t, hub.IsOnline(1))

	// Second unregister is a no-op and does not double-close the queue.
	assert.NotPanics(t, func() { hub.UnregisterClient(b) })
}

func TestHub_PerUserLimit(t *testing.T) {
	hub := NewHub()
	for i := 0; i < maxConnsPerUser; i++ {
		_, err := hub.Register(2, nil)
		require.NoError(t, err)
	}
	_, err := hub.Register(2, nil)
	assert.ErrorIs(t, err, ErrUserFull)

	_, err = hub.Register(3, nil)
	assert.NoError(t, err)
}

func TestHub_DispatchRoutesByChannel(t *testing.T) {
	hub := NewHub()
	alice, _ := hub.Register(1, nil)
	bob, _ := hub.Register(2, nil)

	hub.Dispatch(UserChannel(1), "for-alice")
	hub.Dispatch("garbage", "dropped")
	assert.Len(t, alice.Send, 1)
	assert.Len(t, bob.Send, 0)

	hub.Dispatch(broadcastChannel, "everyone")
	assert.Len(t, alice.Send, 2)
	assert.Len(t, bob.Send, 1)
}

func TestClient_TrySendDropsWhenFull(t *testing.T) {
	hub := NewHub()
	c, err := hub.Register(4, nil)
	require.NoError(t, err)

	for i := 0; i < sendBuffer+5; i++ {
		c.TrySend([]byte("x"))
	}
	assert.Len(t, c.Send, sendBuffer)

	hub.UnregisterClient(c)
	assert.NotPanics(t, func() { c.TrySend([]byte("after close")) })
}

func TestHub_ShutdownRefusesNewClients(t *testing.T) {
	hub := NewHub()
	c, err := hub.Register(5, nil)
	require.NoError(t, err)

	require.NoError(t, hub.Shutdown(context.Background()))
	_, open := <-c.Send
	assert.False(t, open)
	assert.False(t, hub.IsOnline(5))

	_, err = hub.Register(5, nil)
	assert.ErrorIs(t, err, ErrServerFull)
}
