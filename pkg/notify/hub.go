// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

// Package notify fans typed events out to live operator connections.
//
// Delivery is best-effort: every registered connection gets one attempt per event,
// with no buffering or replay. A connection whose send fails is unregistered.
// Clients reconcile state through the query API after (re)connecting.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/telekom/frontdesk/pkg/metrics"
)

// ErrDeliveryFailed marks a failed send to a single connection.
var ErrDeliveryFailed = errors.New("delivery failed")

// DefaultSendTimeout bounds a single connection send during a broadcast.
const DefaultSendTimeout = 5 * time.Second

// Connection is one live operator client.
type Connection interface {
	// ID must be unique among concurrently registered connections.
	ID() string
	Send(ctx context.Context, msg []byte) error
}

// Broadcaster is the subset of Hub used by event producers.
type Broadcaster interface {
	Broadcast(ctx context.Context, ev Event) BroadcastResult
}

// BroadcastResult summarises one fan-out.
type BroadcastResult struct {
	Attempted int
	Delivered int
	// Failed holds the ids of connections that were dropped.
	Failed []string
}

type Option func(*Hub)

func WithSendTimeout(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.sendTimeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(h *Hub) {
		if now != nil {
			h.now = now
		}
	}
}

// Registration identifies one Register call. Connections are never compared
// directly, so implementations need not be comparable.
type Registration struct {
	ID  string
	seq uint64
}

type registered struct {
	conn Connection
	reg  Registration
}

// Hub is the registry of live connections.
type Hub struct {
	log         *zap.SugaredLogger
	sendTimeout time.Duration
	now         func() time.Time

	mu    sync.RWMutex
	seq   uint64
	conns map[string]registered
}

var _ Broadcaster = (*Hub)(nil)

func NewHub(log *zap.SugaredLogger, opts ...Option) *Hub {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	h := &Hub{
		log:         log,
		sendTimeout: DefaultSendTimeout,
		now:         time.Now,
		conns:       map[string]registered{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register adds c to the registry. A connection already registered under the same id is replaced.
func (h *Hub) Register(c Connection) Registration {
	id := c.ID()
	h.mu.Lock()
	h.seq++
	reg := Registration{ID: id, seq: h.seq}
	h.conns[id] = registered{conn: c, reg: reg}
	n := len(h.conns)
	h.mu.Unlock()

	metrics.HubConnections.Set(float64(n))
	h.log.Infow("Operator connection registered", "connection", id, "connections", n)
	return reg
}

// Unregister removes the connection added by reg. It reports whether that registration
// was still current; a connection registered later under the same id is left in place.
func (h *Hub) Unregister(reg Registration) bool {
	h.mu.Lock()
	cur, ok := h.conns[reg.ID]
	removed := ok && cur.reg == reg
	if removed {
		delete(h.conns, reg.ID)
	}
	n := len(h.conns)
	h.mu.Unlock()

	if removed {
		metrics.HubConnections.Set(float64(n))
		h.log.Infow("Operator connection unregistered", "connection", reg.ID, "connections", n)
	}
	return removed
}

// Count returns the number of registered connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *Hub) snapshot() []registered {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]registered, 0, len(h.conns))
	for _, r := range h.conns {
		out = append(out, r)
	}
	return out
}

// Broadcast delivers ev to every connection registered at call time. Sends run in
// parallel so a slow connection cannot stall the others. Failures never propagate.
func (h *Hub) Broadcast(ctx context.Context, ev Event) BroadcastResult {
	env, err := NewEnvelope(ev, h.now())
	if err != nil {
		h.log.Errorw("Failed to encode event", "event", ev.EventType(), "error", err)
		return BroadcastResult{}
	}
	msg, err := json.Marshal(env)
	if err != nil {
		h.log.Errorw("Failed to encode envelope", "event", ev.EventType(), "error", err)
		return BroadcastResult{}
	}

	conns := h.snapshot()
	res := BroadcastResult{Attempted: len(conns)}
	if len(conns) == 0 {
		h.log.Debugw("No operator connections for broadcast", "event", env.Type)
		return res
	}

	// The caller's context only carries values here; a cancelled request must not
	// suppress a broadcast for a transition that was already committed.
	sendCtx := context.WithoutCancel(ctx)

	var (
		wg     sync.WaitGroup
		failMu sync.Mutex
		failed []Registration
	)
	for _, r := range conns {
		wg.Add(1)
		go func(r registered) {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(sendCtx, h.sendTimeout)
			defer cancel()
			if err := r.conn.Send(cctx, msg); err != nil {
				h.log.Warnw("Dropping operator connection after failed delivery",
					"connection", r.reg.ID,
					"event", env.Type,
					"error", fmt.Errorf("%w: %w", ErrDeliveryFailed, err))
				failMu.Lock()
				failed = append(failed, r.reg)
				failMu.Unlock()
			}
		}(r)
	}
	wg.Wait()

	for _, reg := range failed {
		h.Unregister(reg)
		res.Failed = append(res.Failed, reg.ID)
	}
	res.Delivered = res.Attempted - len(failed)

	metrics.BroadcastDeliveries.WithLabelValues(string(env.Type), "delivered").Add(float64(res.Delivered))
	if len(failed) > 0 {
		metrics.BroadcastDeliveries.WithLabelValues(string(env.Type), "failed").Add(float64(len(failed)))
	}
	h.log.Debugw("Broadcast event", "event", env.Type, "attempted", res.Attempted, "delivered", res.Delivered)
	return res
}

// Close drops every registration. Transports own their close handshake.
func (h *Hub) Close() {
	h.mu.Lock()
	n := len(h.conns)
	h.conns = map[string]registered{}
	h.mu.Unlock()

	metrics.HubConnections.Set(0)
	h.log.Infow("Notification hub closed", "droppedConnections", n)
}
