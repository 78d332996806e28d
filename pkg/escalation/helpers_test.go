// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package escalation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	frontdeskv1 "github.com/telekom/frontdesk/api/v1"
	"github.com/telekom/frontdesk/pkg/notify"
	"github.com/telekom/frontdesk/pkg/store"
	"github.com/telekom/frontdesk/pkg/store/memory"
	"github.com/telekom/frontdesk/pkg/utils"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingHub stands in for the notification hub and keeps every event.
type recordingHub struct {
	mu     sync.Mutex
	events []notify.Event
}

func (h *recordingHub) Broadcast(_ context.Context, ev notify.Event) notify.BroadcastResult {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, ev)
	return notify.BroadcastResult{Attempted: 1, Delivered: 1}
}

func (h *recordingHub) count(t notify.EventType, requestID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, ev := range h.events {
		if ev.EventType() != t {
			continue
		}
		switch e := ev.(type) {
		case notify.NewRequest:
			if requestID == "" || e.RequestID == requestID {
				n++
			}
		case notify.RequestResolved:
			if requestID == "" || e.RequestID == requestID {
				n++
			}
		case notify.RequestTimeout:
			if requestID == "" || e.RequestID == requestID {
				n++
			}
		default:
			n++
		}
	}
	return n
}

type recordingCustomer struct {
	mu       sync.Mutex
	answered []*frontdeskv1.Escalation
	delayed  []*frontdeskv1.Escalation
}

func (c *recordingCustomer) NotifyAnswered(_ context.Context, e *frontdeskv1.Escalation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.answered = append(c.answered, e)
}

func (c *recordingCustomer) NotifyDelayed(_ context.Context, e *frontdeskv1.Escalation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delayed = append(c.delayed, e)
}

// hookStore wraps a store and lets tests fail or interleave individual calls.
type hookStore struct {
	store.Store

	listErr      atomic.Pointer[error]
	listCalls    atomic.Int32
	listBlock    chan struct{}
	createErr    error
	knowledgeErr error
	// beforeReplace runs once, ahead of the next conditional write.
	beforeReplace atomic.Pointer[func()]
}

func (s *hookStore) ListEscalations(ctx context.Context) ([]*frontdeskv1.Escalation, error) {
	s.listCalls.Add(1)
	if s.listBlock != nil {
		<-s.listBlock
	}
	if p := s.listErr.Load(); p != nil && *p != nil {
		return nil, *p
	}
	return s.Store.ListEscalations(ctx)
}

func (s *hookStore) setListErr(err error) { s.listErr.Store(&err) }

func (s *hookStore) CreateEscalation(ctx context.Context, e *frontdeskv1.Escalation) error {
	if s.createErr != nil {
		return s.createErr
	}
	return s.Store.CreateEscalation(ctx, e)
}

func (s *hookStore) CreateKnowledge(ctx context.Context, k *frontdeskv1.KnowledgeEntry) error {
	if s.knowledgeErr != nil {
		return s.knowledgeErr
	}
	return s.Store.CreateKnowledge(ctx, k)
}

func (s *hookStore) ReplaceEscalation(ctx context.Context, e *frontdeskv1.Escalation, expectedVersion int64) error {
	if hook := s.beforeReplace.Swap(nil); hook != nil {
		(*hook)()
	}
	return s.Store.ReplaceEscalation(ctx, e, expectedVersion)
}

var errBackendDown = store.Unavailable("list", errors.New("connection refused"))

type fixture struct {
	store     *hookStore
	hub       *recordingHub
	customer  *recordingCustomer
	clock     *fakeClock
	knowledge *KnowledgeBase
	manager   *Manager
	monitor   *TimeoutMonitor
}

func fastRetry() utils.RetryConfig {
	return utils.RetryConfig{MaxRetries: 3, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond, BackoffMultiplier: 2}
}

func newFixture(t *testing.T, opts ...MonitorOption) *fixture {
	t.Helper()
	log := zaptest.NewLogger(t).Sugar()
	f := &fixture{
		store:    &hookStore{Store: memory.New()},
		hub:      &recordingHub{},
		customer: &recordingCustomer{},
		clock:    newFakeClock(),
	}
	f.knowledge = NewKnowledgeBase(f.store, f.hub, WithKnowledgeLogger(log), WithKnowledgeClock(f.clock.Now))
	f.manager = NewManager(f.store, f.hub,
		WithLogger(log),
		WithClock(f.clock.Now),
		WithTimeout(2*time.Hour),
		WithRetryConfig(fastRetry()),
		WithKnowledge(f.knowledge),
		WithCustomerNotifier(f.customer),
	)
	f.monitor = NewTimeoutMonitor(f.manager, append([]MonitorOption{WithMonitorLogger(log)}, opts...)...)
	return f
}
