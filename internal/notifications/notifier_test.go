package notifications

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifier_NilRedisIsNoop(t *testing.T) {
	n := NewNotifier(nil)
	assert.NoError(t, n.PublishUser(context.Background(), 1, "test payload"))
	assert.NoError(t, n.Notify(context.Background(), 1, EventSaved, map[string]int{"id": 1}))
	assert.NoError(t, n.StartPatternSubscriber(context.Background(), func(string, string) {}))

	var nilNotifier *Notifier
	assert.NoError(t, nilNotifier.Notify(context.Background(), 1, EventSaved, nil))
}

func TestUserChannel(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "notifications:user:1", UserChannel(1))
	assert.Equal(t, "notifications:user:100", UserChannel(100))

	id, ok := parseUserChannel(UserChannel(42))
	assert.True(t, ok)
	assert.Equal(t, uint(42), id)

	for _, bad := range []string{"notifications:user:", "notifications:user:x", "chat:conv:1", "notifications:user:0"} {
		_, ok := parseUserChannel(bad)
		assert.False(t, ok, bad)
	}
}

func TestNotifier_LocalDelivery(t *testing.T) {
	hub := NewHub()
	n := NewNotifier(nil)
	require.NoError(t, hub.StartWiring(context.Background(), n))

	client, err := hub.Register(7, nil)
	require.NoError(t, err)

	require.NoError(t, n.Notify(context.Background(), 7, MessageReceived, map[string]uint{"conversation_id": 3}))

	select {
	case raw := <-client.Send:
		var env Envelope
		require.NoError(t, json.Unmarshal(raw, &env))
		assert.Equal(t, MessageReceived, env.Type)
		assert.False(t, env.SentAt.IsZero())
	case <-time.After(time.Second):
		t.Fatal("expected local delivery")
	}
}

func TestNotifier_RedisRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub()
	n := NewNotifier(rdb)
	require.NoError(t, hub.StartWiring(ctx, n))

	client, err := hub.Register(9, nil)
	require.NoError(t, err)
	other, err := hub.Register(10, nil)
	require.NoError(t, err)

	require.NoError(t, n.PublishUser(ctx, 9, `{"type":"event_saved"}`))
	select {
	case got := <-client.Send:
		assert.JSONEq(t, `{"type":"event_saved"}`, string(got))
	case <-time.After(2 * time.Second):
		t.Fatal("expected message via redis")
	}

	require.NoError(t, n.PublishBroadcast(ctx, `{"type":"ping"}`))
	assert.Eventually(t, func() bool {
		return len(other.Send) == 1
	}, 2*time.Second, 10*time.Millisecond)
}
