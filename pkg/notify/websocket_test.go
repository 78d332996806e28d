// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func startWSServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = Serve(r.Context(), hub, NewWSConnection(conn), zaptest.NewLogger(t).Sugar())
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestServePingPong(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t).Sugar())
	conn := dial(t, startWSServer(t, hub))

	for _, probe := range []string{"ping", `{"type":"ping"}`} {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(probe)))
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, PongMessage, string(msg))
	}
}

func TestServeIgnoresOtherMessages(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t).Sugar())
	conn := dial(t, startWSServer(t, hub))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("hello")))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ping")))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, PongMessage, string(msg))
}

func TestServeReceivesBroadcastAndUnregistersOnClose(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t).Sugar())
	conn := dial(t, startWSServer(t, hub))

	require.Eventually(t, func() bool { return hub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	res := hub.Broadcast(context.Background(), NewRequest{RequestID: "r-1", Question: "Do you do hair transplants?"})
	assert.Equal(t, 1, res.Delivered)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	var env Envelope
	require.NoError(t, json.Unmarshal(msg, &env))
	assert.Equal(t, EventNewRequest, env.Type)
	assert.False(t, env.Timestamp.IsZero())

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	require.Eventually(t, func() bool { return hub.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestIsPing(t *testing.T) {
	assert.True(t, isPing([]byte("ping")))
	assert.True(t, isPing([]byte(" ping\n")))
	assert.True(t, isPing([]byte(`{"type":"ping"}`)))
	assert.False(t, isPing([]byte(`{"type":"pong"}`)))
	assert.False(t, isPing([]byte("PING!")))
}
