package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"timeout/internal/notifications"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebsocket_DeliversFollowNotification(t *testing.T) {
	api := newTestAPI(t)
	bobID, bobToken := api.signup("bob")
	_, aliceToken := api.signup("alice")

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, api.srv.hub.StartWiring(ctx, api.srv.notifier))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = api.app.Listener(ln) }()
	t.Cleanup(func() { _ = api.app.Shutdown() })

	url := fmt.Sprintf("ws://%s/api/ws?token=%s", ln.Addr().String(), bobToken)
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })

	require.Eventually(t, func() bool { return api.srv.hub.IsOnline(bobID) }, 2*time.Second, 10*time.Millisecond)

	var follow map[string]bool
	status := api.do(http.MethodPost, fmt.Sprintf("/api/users/%d/follow", bobID), aliceToken, nil, &follow)
	require.Equal(t, http.StatusOK, status)
	require.True(t, follow["following"])

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var env notifications.Envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	assert.Equal(t, notifications.NewFollower, env.Type)
}

func TestWebsocket_RejectsMissingToken(t *testing.T) {
	api := newTestAPI(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = api.app.Listener(ln) }()
	t.Cleanup(func() { _ = api.app.Shutdown() })

	_, resp, err := websocket.DefaultDialer.Dial(fmt.Sprintf("ws://%s/api/ws", ln.Addr().String()), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
