// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package escalation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/telekom/frontdesk/pkg/metrics"
)

const (
	DefaultSweepInterval = 5 * time.Minute
	// DefaultRetryInterval is the shorter wait after the first failed sweep in a row.
	DefaultRetryInterval = time.Minute
)

var ErrMonitorRunning = errors.New("timeout monitor already running")

// SweepResult describes one sweep.
type SweepResult struct {
	// Scanned is the number of pending escalations inspected.
	Scanned int
	// Expired is the number of escalations moved to timeout by this sweep.
	Expired int
	// Skipped counts escalations that left pending between the scan and the write.
	Skipped int
}

type MonitorOption func(*TimeoutMonitor)

func WithSweepInterval(d time.Duration) MonitorOption {
	return func(tm *TimeoutMonitor) {
		if d > 0 {
			tm.interval = d
		}
	}
}

func WithRetryInterval(d time.Duration) MonitorOption {
	return func(tm *TimeoutMonitor) {
		if d > 0 {
			tm.retryInterval = d
		}
	}
}

// WithSweepTimeout bounds a single sweep. Defaults to the sweep interval.
func WithSweepTimeout(d time.Duration) MonitorOption {
	return func(tm *TimeoutMonitor) {
		if d > 0 {
			tm.sweepTimeout = d
		}
	}
}

func WithMonitorLogger(log *zap.SugaredLogger) MonitorOption {
	return func(tm *TimeoutMonitor) {
		if log != nil {
			tm.log = log
		}
	}
}

// TimeoutMonitor periodically moves overdue pending escalations to timeout.
// It is either stopped or running; Stop waits for an in-flight sweep to finish.
type TimeoutMonitor struct {
	manager       *Manager
	log           *zap.SugaredLogger
	interval      time.Duration
	retryInterval time.Duration
	sweepTimeout  time.Duration

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

func NewTimeoutMonitor(m *Manager, opts ...MonitorOption) *TimeoutMonitor {
	tm := &TimeoutMonitor{
		manager:       m,
		log:           zap.NewNop().Sugar(),
		interval:      DefaultSweepInterval,
		retryInterval: DefaultRetryInterval,
	}
	for _, opt := range opts {
		opt(tm)
	}
	if tm.sweepTimeout == 0 {
		tm.sweepTimeout = tm.interval
	}
	return tm
}

// Start launches the sweep loop. The first sweep runs immediately.
func (tm *TimeoutMonitor) Start() error {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if tm.stop != nil {
		return ErrMonitorRunning
	}
	tm.stop = make(chan struct{})
	tm.done = make(chan struct{})
	go tm.run(tm.stop, tm.done)

	tm.log.Infow("Timeout monitor started",
		"sweepInterval", tm.interval.String(),
		"retryInterval", tm.retryInterval.String())
	return nil
}

// Stop signals the loop and waits until it has exited. Safe to call while a sweep
// is running, more than once, or on a monitor that was never started.
func (tm *TimeoutMonitor) Stop() {
	tm.mu.Lock()
	stop, done := tm.stop, tm.done
	tm.stop, tm.done = nil, nil
	tm.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
	tm.log.Info("Timeout monitor stopped")
}

// Running reports whether the loop is active.
func (tm *TimeoutMonitor) Running() bool {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.stop != nil
}

func (tm *TimeoutMonitor) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	consecutiveFailures := 0
	for {
		wait := tm.interval
		if err := tm.sweepOnce(); err != nil {
			consecutiveFailures++
			if consecutiveFailures == 1 {
				wait = tm.retryInterval
			}
			tm.log.Errorw("Timeout sweep failed",
				"error", err,
				"consecutiveFailures", consecutiveFailures,
				"nextSweepIn", wait.String())
		} else {
			consecutiveFailures = 0
		}

		timer := time.NewTimer(wait)
		select {
		case <-stop:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// sweepOnce runs a sweep on its own context; Stop never interrupts it.
func (tm *TimeoutMonitor) sweepOnce() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in timeout sweep: %v", r)
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), tm.sweepTimeout)
	defer cancel()
	_, err = tm.Sweep(ctx)
	return err
}

// Sweep expires every pending escalation whose deadline has passed. An escalation
// resolved between the scan and the write is skipped silently. Errors for single
// escalations do not stop the sweep; they are joined into the returned error.
func (tm *TimeoutMonitor) Sweep(ctx context.Context) (SweepResult, error) {
	ctx, span := tm.manager.tracer.Start(ctx, "escalation.Sweep")
	defer span.End()

	start := time.Now()
	var res SweepResult
	defer func() {
		metrics.SweepDuration.Observe(time.Since(start).Seconds())
		span.SetAttributes(
			attribute.Int("sweep.scanned", res.Scanned),
			attribute.Int("sweep.expired", res.Expired),
			attribute.Int("sweep.skipped", res.Skipped))
	}()

	pending, err := tm.manager.ListPending(ctx)
	if err != nil {
		metrics.SweepRuns.WithLabelValues("failure").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "listing pending escalations failed")
		return res, fmt.Errorf("failed to list pending escalations: %w", err)
	}
	res.Scanned = len(pending)

	now := tm.manager.now()
	var errs []error
	for _, e := range pending {
		if !e.Expired(now) {
			continue
		}
		if _, err := tm.manager.expire(ctx, e.ID); err != nil {
			if errors.Is(err, ErrInvalidState) || errors.Is(err, ErrNotFound) {
				res.Skipped++
				tm.log.Debugw("Escalation left pending before timeout could be applied",
					"escalation", e.ID, "reason", err)
				continue
			}
			errs = append(errs, fmt.Errorf("escalation %q: %w", e.ID, err))
			continue
		}
		res.Expired++
	}

	if err := errors.Join(errs...); err != nil {
		metrics.SweepRuns.WithLabelValues("failure").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "some escalations could not be expired")
		return res, err
	}
	metrics.SweepRuns.WithLabelValues("success").Inc()
	tm.log.Debugw("Timeout sweep finished",
		"scanned", res.Scanned, "expired", res.Expired, "skipped", res.Skipped,
		"duration", time.Since(start).String())
	return res, nil
}
