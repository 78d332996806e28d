// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// PingMessage is the liveness check a client may send on the live channel.
	PingMessage = "ping"
	// PongMessage is the fixed acknowledgement returned for PingMessage.
	PongMessage = "pong"

	maxInboundMessageSize = 4096
	defaultWriteTimeout   = 10 * time.Second
)

// WSConnection adapts a gorilla websocket to Connection.
// gorilla connections allow one concurrent writer, so writes are serialised.
type WSConnection struct {
	id           string
	conn         *websocket.Conn
	writeTimeout time.Duration

	writeMu sync.Mutex
}

var _ Connection = (*WSConnection)(nil)

func NewWSConnection(conn *websocket.Conn) *WSConnection {
	return &WSConnection{
		id:           uuid.NewString(),
		conn:         conn,
		writeTimeout: defaultWriteTimeout,
	}
}

func (c *WSConnection) ID() string { return c.id }

func (c *WSConnection) Send(ctx context.Context, msg []byte) error {
	return c.write(ctx, websocket.TextMessage, msg)
}

func (c *WSConnection) write(ctx context.Context, messageType int, msg []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	deadline := time.Now().Add(c.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, msg)
}

func (c *WSConnection) Close() error {
	c.writeMu.Lock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(time.Second))
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	return c.conn.Close()
}

// isPing accepts both the bare "ping" text and a {"type":"ping"} envelope.
func isPing(msg []byte) bool {
	trimmed := bytes.TrimSpace(msg)
	if string(trimmed) == PingMessage {
		return true
	}
	var inbound struct {
		Type string `json:"type"`
	}
	if json.Unmarshal(trimmed, &inbound) == nil {
		return inbound.Type == PingMessage
	}
	return false
}

// Serve registers c with hub and reads from it until the client disconnects or ctx is done.
// Pings are answered with PongMessage; every other inbound message is ignored.
// The connection is unregistered and closed before Serve returns.
func Serve(ctx context.Context, hub *Hub, c *WSConnection, log *zap.SugaredLogger) error {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	log = log.With("connection", c.ID())

	reg := hub.Register(c)
	defer func() {
		hub.Unregister(reg)
		_ = c.Close()
	}()

	// hijacked connections keep the HTTP server's read deadline
	_ = c.conn.SetReadDeadline(time.Time{})

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			// unblock ReadMessage
			_ = c.conn.SetReadDeadline(time.Now())
		case <-done:
		}
	}()

	c.conn.SetReadLimit(maxInboundMessageSize)
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				log.Debugw("Operator connection closed by client")
				return nil
			}
			var netErr interface{ Timeout() bool }
			if errors.As(err, &netErr) && netErr.Timeout() {
				return nil
			}
			log.Debugw("Operator connection read failed", "error", err)
			return err
		}
		if !isPing(msg) {
			continue
		}
		if err := c.write(ctx, websocket.TextMessage, []byte(PongMessage)); err != nil {
			log.Debugw("Failed to answer ping", "error", err)
			return err
		}
	}
}
