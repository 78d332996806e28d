// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

// Package escalation implements the escalation lifecycle: creation, the operator
// resolve transition, the automatic timeout transition and the knowledge feedback
// produced by resolved escalations.
//
// Both transitions use the same conditional write against the record version read
// from the store, so a resolve racing a timeout sweep on one record always ends with
// exactly one terminal state.
package escalation

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	frontdeskv1 "github.com/telekom/frontdesk/api/v1"
	"github.com/telekom/frontdesk/pkg/metrics"
	"github.com/telekom/frontdesk/pkg/notify"
	"github.com/telekom/frontdesk/pkg/store"
	"github.com/telekom/frontdesk/pkg/utils"
)

// DefaultTimeout is how long an escalation may stay pending.
const DefaultTimeout = 2 * time.Hour

const (
	transitionResolve = "resolve"
	transitionTimeout = "timeout"
)

var tracer = otel.Tracer("github.com/telekom/frontdesk/pkg/escalation")

// Observer is told about committed transitions. Calls happen synchronously after the
// store write, so implementations must hand slow work off (queue, goroutine).
type Observer interface {
	EscalationCreated(ctx context.Context, e *frontdeskv1.Escalation)
	EscalationResolved(ctx context.Context, e *frontdeskv1.Escalation)
	EscalationTimedOut(ctx context.Context, e *frontdeskv1.Escalation)
}

// CustomerNotifier delivers the out-of-band message to the original caller.
type CustomerNotifier interface {
	NotifyAnswered(ctx context.Context, e *frontdeskv1.Escalation)
	NotifyDelayed(ctx context.Context, e *frontdeskv1.Escalation)
}

// KnowledgeRecorder turns a resolved question into a knowledge entry.
type KnowledgeRecorder interface {
	Record(ctx context.Context, question, answer string) (*frontdeskv1.KnowledgeEntry, error)
}

// ListOptions filters ListEscalations.
type ListOptions struct {
	// Status restricts the result to one state. Empty means all.
	Status frontdeskv1.EscalationStatus
}

type Option func(*Manager)

func WithLogger(log *zap.SugaredLogger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithTimeout sets the escalation deadline relative to creation.
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

func WithRetryConfig(cfg utils.RetryConfig) Option {
	return func(m *Manager) { m.retry = cfg }
}

func WithKnowledge(k KnowledgeRecorder) Option {
	return func(m *Manager) { m.knowledge = k }
}

func WithCustomerNotifier(n CustomerNotifier) Option {
	return func(m *Manager) { m.customer = n }
}

func WithObservers(o ...Observer) Option {
	return func(m *Manager) { m.observers = append(m.observers, o...) }
}

func WithTracer(t trace.Tracer) Option {
	return func(m *Manager) {
		if t != nil {
			m.tracer = t
		}
	}
}

// Manager owns the escalation state machine.
type Manager struct {
	store     store.EscalationStore
	hub       notify.Broadcaster
	knowledge KnowledgeRecorder
	customer  CustomerNotifier
	observers []Observer

	log     *zap.SugaredLogger
	now     func() time.Time
	timeout time.Duration
	retry   utils.RetryConfig
	tracer  trace.Tracer
}

func NewManager(s store.EscalationStore, hub notify.Broadcaster, opts ...Option) *Manager {
	m := &Manager{
		store:   s,
		hub:     hub,
		log:     zap.NewNop().Sugar(),
		now:     time.Now,
		timeout: DefaultTimeout,
		retry:   utils.DefaultRetryConfig(),
		tracer:  tracer,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Timeout returns the configured escalation deadline.
func (m *Manager) Timeout() time.Duration { return m.timeout }

// Create stores a new pending escalation and announces it to operators.
func (m *Manager) Create(ctx context.Context, question, callerInfo, sessionID string) (*frontdeskv1.Escalation, error) {
	ctx, span := m.tracer.Start(ctx, "escalation.Create")
	defer span.End()

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question must not be empty", ErrInvalidInput)
	}
	callerInfo = strings.TrimSpace(callerInfo)
	if callerInfo == "" {
		callerInfo = frontdeskv1.DefaultCallerInfo
	}

	now := m.now()
	e := &frontdeskv1.Escalation{
		ID:         uuid.NewString(),
		Question:   question,
		CallerInfo: callerInfo,
		Status:     frontdeskv1.EscalationStatusPending,
		CreatedAt:  now,
		TimeoutAt:  now.Add(m.timeout),
		SessionID:  strings.TrimSpace(sessionID),
	}
	span.SetAttributes(attribute.String("escalation.id", e.ID))

	if err := m.store.CreateEscalation(ctx, e); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store write failed")
		m.log.Errorw("Failed to create escalation", "error", err)
		return nil, fmt.Errorf("failed to create escalation: %w", err)
	}

	metrics.EscalationsCreated.Inc()
	m.log.Infow("Escalation created",
		"escalation", e.ID,
		"callerInfo", e.CallerInfo,
		"sessionID", e.SessionID,
		"timeoutAt", e.TimeoutAt.Format(time.RFC3339))

	m.hub.Broadcast(ctx, notify.NewRequest{
		RequestID:  e.ID,
		Question:   e.Question,
		CallerInfo: e.CallerInfo,
		CreatedAt:  e.CreatedAt,
	})
	for _, o := range m.observers {
		o.EscalationCreated(ctx, e.DeepCopy())
	}
	return e, nil
}

// Resolve records the operator's answer. It fails with ErrInvalidState when the
// escalation is no longer pending at write time, including when a concurrent
// timeout won the race.
func (m *Manager) Resolve(ctx context.Context, id, answer, answeredBy string) (*frontdeskv1.Escalation, error) {
	ctx, span := m.tracer.Start(ctx, "escalation.Resolve", trace.WithAttributes(attribute.String("escalation.id", id)))
	defer span.End()

	answer = strings.TrimSpace(answer)
	answeredBy = strings.TrimSpace(answeredBy)
	if answer == "" || answeredBy == "" {
		return nil, fmt.Errorf("%w: answer and answered_by must not be empty", ErrInvalidInput)
	}

	e, err := m.transition(ctx, transitionResolve, id, nil, func(e *frontdeskv1.Escalation, now time.Time) {
		e.Status = frontdeskv1.EscalationStatusResolved
		e.ResolvedAt = &now
		e.Answer = answer
		e.AnsweredBy = answeredBy
	})
	if err != nil {
		if !errors.Is(err, ErrInvalidState) && !errors.Is(err, ErrNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "resolve failed")
		}
		return nil, err
	}

	metrics.EscalationsResolved.Inc()
	m.log.Infow("Escalation resolved", "escalation", e.ID, "answeredBy", e.AnsweredBy)

	// The resolve is committed; a failed knowledge write must not turn it into an error.
	if m.knowledge != nil {
		if _, err := m.knowledge.Record(ctx, e.Question, e.Answer); err != nil {
			metrics.KnowledgeRecordFailures.Inc()
			m.log.Errorw("Failed to record knowledge entry for resolved escalation",
				"escalation", e.ID, "error", err)
		}
	}

	m.hub.Broadcast(ctx, notify.RequestResolved{
		RequestID:  e.ID,
		Answer:     e.Answer,
		AnsweredBy: e.AnsweredBy,
		ResolvedAt: *e.ResolvedAt,
	})
	if m.customer != nil {
		m.customer.NotifyAnswered(ctx, e.DeepCopy())
	}
	for _, o := range m.observers {
		o.EscalationResolved(ctx, e.DeepCopy())
	}
	return e, nil
}

// expire applies the timeout transition to one escalation whose deadline has passed.
func (m *Manager) expire(ctx context.Context, id string) (*frontdeskv1.Escalation, error) {
	e, err := m.transition(ctx, transitionTimeout, id,
		func(e *frontdeskv1.Escalation, now time.Time) error {
			if !e.Expired(now) {
				return fmt.Errorf("%w: escalation %q deadline %s not reached", ErrInvalidState, e.ID, e.TimeoutAt.Format(time.RFC3339))
			}
			return nil
		},
		func(e *frontdeskv1.Escalation, _ time.Time) {
			e.Status = frontdeskv1.EscalationStatusTimeout
		})
	if err != nil {
		return nil, err
	}

	metrics.EscalationsTimedOut.Inc()
	m.log.Infow("Escalation timed out", "escalation", e.ID, "timeoutAt", e.TimeoutAt.Format(time.RFC3339))

	m.hub.Broadcast(ctx, notify.RequestTimeout{
		RequestID:  e.ID,
		Question:   e.Question,
		CreatedAt:  e.CreatedAt,
		CallerInfo: e.CallerInfo,
	})
	if m.customer != nil {
		m.customer.NotifyDelayed(ctx, e.DeepCopy())
	}
	for _, o := range m.observers {
		o.EscalationTimedOut(ctx, e.DeepCopy())
	}
	return e, nil
}

// transition re-reads the escalation, checks it is pending, applies mutate and writes it
// back conditioned on the version that was read. A version conflict re-runs the whole
// read-check-write cycle, which then observes the winner's terminal state.
func (m *Manager) transition(
	ctx context.Context,
	name, id string,
	precondition func(*frontdeskv1.Escalation, time.Time) error,
	mutate func(*frontdeskv1.Escalation, time.Time),
) (*frontdeskv1.Escalation, error) {
	var out *frontdeskv1.Escalation
	err := utils.UpdateWithRetry(ctx, m.retry, isConflict, func(ctx context.Context, attempt int) error {
		cur, err := m.store.GetEscalation(ctx, id)
		if err != nil {
			return err
		}
		if cur.Status != frontdeskv1.EscalationStatusPending {
			if attempt > 0 {
				metrics.EscalationTransitionConflicts.WithLabelValues(name, "rejected").Inc()
			}
			return fmt.Errorf("%w: escalation %q is %s", ErrInvalidState, id, cur.Status)
		}
		now := m.now()
		if precondition != nil {
			if err := precondition(cur, now); err != nil {
				return err
			}
		}

		next := cur.DeepCopy()
		mutate(next, now)
		if err := m.store.ReplaceEscalation(ctx, next, cur.Version); err != nil {
			if isConflict(err) {
				metrics.EscalationTransitionConflicts.WithLabelValues(name, "retried").Inc()
				m.log.Debugw("Escalation changed concurrently, re-reading",
					"escalation", id, "transition", name, "attempt", attempt+1)
			}
			return err
		}
		out = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func isConflict(err error) bool {
	return errors.Is(err, store.ErrConflict)
}

// Get returns one escalation.
func (m *Manager) Get(ctx context.Context, id string) (*frontdeskv1.Escalation, error) {
	return m.store.GetEscalation(ctx, id)
}

// List returns escalations newest first.
func (m *Manager) List(ctx context.Context, opts ListOptions) ([]*frontdeskv1.Escalation, error) {
	all, err := m.store.ListEscalations(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, e := range all {
		if opts.Status == "" || e.Status == opts.Status {
			out = append(out, e)
		}
	}
	slices.SortStableFunc(out, func(a, b *frontdeskv1.Escalation) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

// ListPending returns pending escalations newest first.
func (m *Manager) ListPending(ctx context.Context) ([]*frontdeskv1.Escalation, error) {
	return m.List(ctx, ListOptions{Status: frontdeskv1.EscalationStatusPending})
}

// Stats counts escalations by status.
//
// This is a full scan on every call. Volumes are low; switch to counters maintained
// on transition if that stops being true.
func (m *Manager) Stats(ctx context.Context) (frontdeskv1.Stats, error) {
	all, err := m.store.ListEscalations(ctx)
	if err != nil {
		return frontdeskv1.Stats{}, err
	}
	var st frontdeskv1.Stats
	for _, e := range all {
		switch e.Status {
		case frontdeskv1.EscalationStatusPending:
			st.Pending++
		case frontdeskv1.EscalationStatusResolved:
			st.Resolved++
		case frontdeskv1.EscalationStatusTimeout:
			st.Timeout++
		}
	}
	st.Total = st.Pending + st.Resolved + st.Timeout
	return st, nil
}
