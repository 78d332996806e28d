/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package audit

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	frontdeskv1 "github.com/telekom/frontdesk/api/v1"
	"github.com/telekom/frontdesk/pkg/metrics"
)

const (
	targetEscalation = "Escalation"
	targetKnowledge  = "KnowledgeEntry"
)

// Manager stamps audit events and hands them to every configured sink.
// Emit never blocks: each sink is wrapped in a QueuedSink with its own queue.
//
// Manager also implements the escalation and knowledge observer interfaces,
// so it can be registered directly with the lifecycle manager.
type Manager struct {
	sinks  []*QueuedSink
	logger *zap.Logger
	now    func() time.Time
	closed atomic.Bool

	emitted atomic.Int64
}

// NewManager wraps each sink in its own QueuedSink.
func NewManager(sinks []Sink, cfg QueuedSinkConfig, logger *zap.Logger) *Manager {
	m := &Manager{
		logger: logger.Named("audit-manager"),
		now:    time.Now,
	}
	for _, s := range sinks {
		m.sinks = append(m.sinks, NewQueuedSink(s, cfg, logger))
	}

	names := make([]string, 0, len(m.sinks))
	for _, s := range m.sinks {
		names = append(names, s.Name())
	}
	m.logger.Info("audit manager started", zap.Strings("sinks", names))
	return m
}

// Emit fills in ID, timestamp and severity when missing and enqueues the
// event on every sink. Events emitted after Close are discarded.
func (m *Manager) Emit(ctx context.Context, event *Event) {
	if m == nil || m.closed.Load() {
		return
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = m.now().UTC()
	}
	if event.Severity == "" {
		event.Severity = SeverityForEventType(event.Type)
	}

	m.emitted.Add(1)
	metrics.AuditEventsEmitted.WithLabelValues(string(event.Type)).Inc()

	for _, s := range m.sinks {
		_ = s.Write(ctx, event)
	}
}

// Emitted returns the number of accepted events.
func (m *Manager) Emitted() int64 {
	if m == nil {
		return 0
	}
	return m.emitted.Load()
}

// Health reports the state of every sink.
func (m *Manager) Health() []SinkHealth {
	if m == nil {
		return nil
	}
	out := make([]SinkHealth, 0, len(m.sinks))
	for _, s := range m.sinks {
		out = append(out, s.Health())
	}
	return out
}

// Close drains all sink queues and closes the sinks.
func (m *Manager) Close() error {
	if m == nil || m.closed.Swap(true) {
		return nil
	}
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	m.logger.Info("audit manager stopped", zap.Int64("emitted", m.emitted.Load()))
	return errors.Join(errs...)
}

func escalationContext(e *frontdeskv1.Escalation) *RequestContext {
	if e.SessionID == "" {
		return nil
	}
	return &RequestContext{SessionID: e.SessionID}
}

func (m *Manager) EscalationCreated(ctx context.Context, e *frontdeskv1.Escalation) {
	actor := e.CallerInfo
	if actor == "" {
		actor = "caller"
	}
	m.Emit(ctx, &Event{
		Type:   EventEscalationCreated,
		Actor:  Actor{User: actor},
		Target: Target{Kind: targetEscalation, ID: e.ID},
		Details: map[string]interface{}{
			"question":  e.Question,
			"timeoutAt": e.TimeoutAt,
		},
		RequestContext: escalationContext(e),
	})
}

func (m *Manager) EscalationResolved(ctx context.Context, e *frontdeskv1.Escalation) {
	m.Emit(ctx, &Event{
		Type:   EventEscalationResolved,
		Actor:  Actor{User: e.AnsweredBy},
		Target: Target{Kind: targetEscalation, ID: e.ID},
		Details: map[string]interface{}{
			"question": e.Question,
			"answer":   e.Answer,
		},
		RequestContext: escalationContext(e),
	})
}

func (m *Manager) EscalationTimedOut(ctx context.Context, e *frontdeskv1.Escalation) {
	m.Emit(ctx, &Event{
		Type:   EventEscalationTimeout,
		Actor:  Actor{User: SystemActor},
		Target: Target{Kind: targetEscalation, ID: e.ID},
		Details: map[string]interface{}{
			"question":  e.Question,
			"createdAt": e.CreatedAt,
			"timeoutAt": e.TimeoutAt,
		},
		RequestContext: escalationContext(e),
	})
}

func (m *Manager) KnowledgeCreated(ctx context.Context, k *frontdeskv1.KnowledgeEntry) {
	m.Emit(ctx, &Event{
		Type:   EventKnowledgeCreated,
		Actor:  Actor{User: SystemActor},
		Target: Target{Kind: targetKnowledge, ID: k.ID},
		Details: map[string]interface{}{
			"question": k.Question,
			"source":   string(k.Source),
		},
	})
}

// SystemEvent records startup and shutdown of the server.
func (m *Manager) SystemEvent(ctx context.Context, t EventType, details map[string]interface{}) {
	m.Emit(ctx, &Event{
		Type:    t,
		Actor:   Actor{User: SystemActor},
		Target:  Target{Kind: "Server", ID: "frontdesk"},
		Details: details,
	})
}
