package livebus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func TestHubBroadcastToSubscriber(t *testing.T) {
	hub := NewHub()
	defer hub.Shutdown()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, hub.ServeWS(w, r, "req-1", nil))
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var connected Event
	require.NoError(t, conn.ReadJSON(&connected))
	require.Equal(t, "connected", connected.Type)

	// give the hub's listen() goroutine time to process the registration
	// before the broadcast is sent.
	time.Sleep(50 * time.Millisecond)
	hub.Broadcast("req-1", "status", map[string]string{"status": "transcribing"})

	var event Event
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, conn.ReadJSON(&event))
	require.Equal(t, "status", event.Type)
}

func TestHubIgnoresBroadcastForOtherRequestID(t *testing.T) {
	hub := NewHub()
	defer hub.Shutdown()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, hub.ServeWS(w, r, "req-1", nil))
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var connected Event
	require.NoError(t, conn.ReadJSON(&connected))

	time.Sleep(50 * time.Millisecond)
	hub.Broadcast("req-2", "status", map[string]string{"status": "transcribing"})

	conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	var event Event
	err = conn.ReadJSON(&event)
	require.Error(t, err, "expected read timeout since req-1 client should not receive req-2's broadcast")
}
