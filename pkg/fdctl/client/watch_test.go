package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telekom/frontdesk/pkg/notify"
)

// fakeSupervisorSocket answers pings and pushes one envelope after the first ping.
func fakeSupervisorSocket(t *testing.T, pings *atomic.Int32) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws/supervisor" {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if string(msg) != notify.PingMessage {
				continue
			}
			pings.Add(1)
			if err := conn.WriteMessage(websocket.TextMessage, []byte(notify.PongMessage)); err != nil {
				return
			}
			env, err := notify.NewEnvelope(notify.NewRequest{RequestID: "r1", Question: "q"}, time.Now())
			if err != nil {
				return
			}
			if err := conn.WriteJSON(env); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestWatch(t *testing.T) {
	var pings atomic.Int32
	srv := fakeSupervisorSocket(t, &pings)
	c, err := New(WithServer(srv.URL))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var got []notify.Envelope
	err = c.Watch(ctx, WatchOptions{Keepalive: 10 * time.Millisecond}, func(env notify.Envelope) error {
		got = append(got, env)
		return ErrStopWatch
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, notify.EventNewRequest, got[0].Type)
	assert.GreaterOrEqual(t, pings.Load(), int32(1))
}

func TestWatchStopsOnContextCancel(t *testing.T) {
	var pings atomic.Int32
	srv := fakeSupervisorSocket(t, &pings)
	c, err := New(WithServer(srv.URL))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	// keepalive longer than the context, so no event is ever pushed
	err = c.Watch(ctx, WatchOptions{Keepalive: time.Hour}, func(notify.Envelope) error {
		t.Fatal("unexpected event")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int32(0), pings.Load())
}

func TestWatchDialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)
	c, err := New(WithServer(srv.URL))
	require.NoError(t, err)

	err = c.Watch(context.Background(), WatchOptions{}, func(notify.Envelope) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}
