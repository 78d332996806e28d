package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/telekom/frontdesk/pkg/notify"
)

const (
	defaultKeepalive = 30 * time.Second
	watchPath        = "/ws/supervisor"
)

type WatchOptions struct {
	// Keepalive is the interval between pings. Defaults to 30s.
	Keepalive time.Duration
}

// Watch streams live events from the operator channel to handle until ctx is
// done, the server closes the connection or handle returns an error.
// Pong replies are consumed here and never passed to handle.
func (c *Client) Watch(ctx context.Context, opts WatchOptions, handle func(notify.Envelope) error) error {
	keepalive := opts.Keepalive
	if keepalive <= 0 {
		keepalive = defaultKeepalive
	}

	wsURL := *c.baseURL
	switch wsURL.Scheme {
	case "https":
		wsURL.Scheme = "wss"
	default:
		wsURL.Scheme = "ws"
	}
	wsURL.Path = strings.TrimSuffix(wsURL.Path, "/") + watchPath

	header := http.Header{}
	header.Set("User-Agent", c.userAgent)
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL.String(), header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("connect to %s: %w (status %d)", wsURL.String(), err, resp.StatusCode)
		}
		return fmt.Errorf("connect to %s: %w", wsURL.String(), err)
	}
	defer func() { _ = conn.Close() }()

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(keepalive)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
				_ = conn.SetReadDeadline(time.Now())
				return
			case <-ticker.C:
				// the reader never writes, so this is the only writer
				_ = conn.SetWriteDeadline(time.Now().Add(keepalive))
				if err := conn.WriteMessage(websocket.TextMessage, []byte(notify.PingMessage)); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		if string(msg) == notify.PongMessage {
			continue
		}
		var env notify.Envelope
		if err := json.Unmarshal(msg, &env); err != nil {
			if c.verbose != nil {
				c.verbose("ignoring malformed message: %v", err)
			}
			continue
		}
		if err := handle(env); err != nil {
			if errors.Is(err, ErrStopWatch) {
				return nil
			}
			return err
		}
	}
}

// ErrStopWatch may be returned by a Watch handler to end the stream without error.
var ErrStopWatch = errors.New("stop watching")
