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
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/telekom/frontdesk/pkg/metrics"
)

// QueuedSinkConfig configures a QueuedSink.
type QueuedSinkConfig struct {
	// QueueSize is the number of events buffered per sink. Default: 1000
	QueueSize int

	// WorkerCount is the number of goroutines draining the queue. Default: 1
	WorkerCount int

	// WriteTimeout bounds a single write to the wrapped sink. Default: 5s
	WriteTimeout time.Duration

	// FailureThreshold is the number of consecutive write failures that
	// pauses the sink. Default: 5
	FailureThreshold int

	// PauseDuration is how long a paused sink drops events before it is
	// tried again. Default: 30s
	PauseDuration time.Duration
}

func DefaultQueuedSinkConfig() QueuedSinkConfig {
	return QueuedSinkConfig{
		QueueSize:        1000,
		WorkerCount:      1,
		WriteTimeout:     5 * time.Second,
		FailureThreshold: 5,
		PauseDuration:    30 * time.Second,
	}
}

func (c QueuedSinkConfig) withDefaults() QueuedSinkConfig {
	d := DefaultQueuedSinkConfig()
	if c.QueueSize <= 0 {
		c.QueueSize = d.QueueSize
	}
	if c.WorkerCount <= 0 {
		c.WorkerCount = d.WorkerCount
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = d.FailureThreshold
	}
	if c.PauseDuration <= 0 {
		c.PauseDuration = d.PauseDuration
	}
	return c
}

// SinkHealth is a point-in-time view of a queued sink.
type SinkHealth struct {
	Name             string    `json:"name"`
	Healthy          bool      `json:"healthy"`
	QueueLength      int       `json:"queueLength"`
	QueueCapacity    int       `json:"queueCapacity"`
	Dropped          int64     `json:"dropped"`
	Processed        int64     `json:"processed"`
	Failed           int64     `json:"failed"`
	ConsecutiveFails int       `json:"consecutiveFails"`
	Paused           bool      `json:"paused"`
	LastError        string    `json:"lastError,omitempty"`
	LastErrorTime    time.Time `json:"lastErrorTime,omitempty"`
}

// QueuedSink gives a Sink its own bounded queue and workers, so a slow or
// failing destination never blocks the caller or the other sinks.
// After FailureThreshold consecutive failures the sink is paused and events
// are dropped until PauseDuration has passed.
type QueuedSink struct {
	sink   Sink
	queue  chan *Event
	cfg    QueuedSinkConfig
	logger *zap.Logger
	now    func() time.Time

	dropped   atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64

	consecutiveFails atomic.Int32
	pausedUntil      atomic.Int64 // unix nanos, 0 when not paused

	mu            sync.Mutex
	lastError     string
	lastErrorTime time.Time

	wg     sync.WaitGroup
	closed atomic.Bool
	// closeMu keeps Write from sending on the queue while Close closes it.
	closeMu sync.RWMutex
}

func NewQueuedSink(sink Sink, cfg QueuedSinkConfig, logger *zap.Logger) *QueuedSink {
	cfg = cfg.withDefaults()
	qs := &QueuedSink{
		sink:   sink,
		queue:  make(chan *Event, cfg.QueueSize),
		cfg:    cfg,
		logger: logger.Named("queued-sink").With(zap.String("sink", sink.Name())),
		now:    time.Now,
	}

	for i := 0; i < cfg.WorkerCount; i++ {
		qs.wg.Add(1)
		go qs.drain(i)
	}

	qs.logger.Info("queued audit sink started",
		zap.Int("queue_size", cfg.QueueSize),
		zap.Int("workers", cfg.WorkerCount),
		zap.Int("failure_threshold", cfg.FailureThreshold))
	return qs
}

// Write enqueues the event without blocking. Events are dropped when the
// sink is paused or its queue is full.
func (qs *QueuedSink) Write(_ context.Context, event *Event) error {
	qs.closeMu.RLock()
	defer qs.closeMu.RUnlock()
	if qs.closed.Load() {
		return fmt.Errorf("queued sink %s is closed", qs.sink.Name())
	}

	if until := qs.pausedUntil.Load(); until != 0 {
		if qs.now().UnixNano() < until {
			qs.drop(event, "paused")
			return nil
		}
		if qs.pausedUntil.CompareAndSwap(until, 0) {
			qs.consecutiveFails.Store(0)
			qs.logger.Info("resuming paused audit sink")
		}
	}

	select {
	case qs.queue <- event:
	default:
		qs.drop(event, "queue_full")
	}
	return nil
}

func (qs *QueuedSink) drop(event *Event, reason string) {
	qs.dropped.Add(1)
	metrics.AuditEventsDropped.WithLabelValues(qs.sink.Name(), reason).Inc()
	qs.logger.Debug("dropping audit event",
		zap.String("reason", reason),
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)))
}

func (qs *QueuedSink) drain(worker int) {
	defer qs.wg.Done()

	for event := range qs.queue {
		ctx, cancel := context.WithTimeout(context.Background(), qs.cfg.WriteTimeout)
		err := qs.sink.Write(ctx, event)
		cancel()

		if err == nil {
			qs.processed.Add(1)
			qs.consecutiveFails.Store(0)
			metrics.AuditEventsProcessed.WithLabelValues(qs.sink.Name()).Inc()
			continue
		}

		qs.failed.Add(1)
		fails := qs.consecutiveFails.Add(1)
		metrics.AuditSinkErrors.WithLabelValues(qs.sink.Name(), errorType(err)).Inc()

		qs.mu.Lock()
		qs.lastError = err.Error()
		qs.lastErrorTime = qs.now()
		qs.mu.Unlock()

		qs.logger.Warn("failed to write audit event",
			zap.Int("worker", worker),
			zap.String("event_id", event.ID),
			zap.Int32("consecutive_fails", fails),
			zap.Error(err))

		if int(fails) >= qs.cfg.FailureThreshold {
			until := qs.now().Add(qs.cfg.PauseDuration).UnixNano()
			if qs.pausedUntil.CompareAndSwap(0, until) {
				qs.logger.Warn("pausing audit sink after repeated failures",
					zap.Int32("consecutive_fails", fails),
					zap.Duration("pause", qs.cfg.PauseDuration))
			}
		}
	}
}

// typedError lets a sink label its errors for the error metric.
type typedError interface {
	ErrorType() string
}

func errorType(err error) string {
	var typed typedError
	if errors.As(err, &typed) {
		return typed.ErrorType()
	}
	return "write"
}

func (qs *QueuedSink) Health() SinkHealth {
	qs.mu.Lock()
	lastError, lastErrorTime := qs.lastError, qs.lastErrorTime
	qs.mu.Unlock()

	paused := qs.pausedUntil.Load() != 0
	queueLen, queueCap := len(qs.queue), cap(qs.queue)
	return SinkHealth{
		Name:             qs.sink.Name(),
		Healthy:          !paused && queueLen*5 < queueCap*4,
		QueueLength:      queueLen,
		QueueCapacity:    queueCap,
		Dropped:          qs.dropped.Load(),
		Processed:        qs.processed.Load(),
		Failed:           qs.failed.Load(),
		ConsecutiveFails: int(qs.consecutiveFails.Load()),
		Paused:           paused,
		LastError:        lastError,
		LastErrorTime:    lastErrorTime,
	}
}

// Close stops accepting events, drains what is queued and closes the wrapped sink.
func (qs *QueuedSink) Close() error {
	qs.closeMu.Lock()
	if qs.closed.Swap(true) {
		qs.closeMu.Unlock()
		return nil
	}
	close(qs.queue)
	qs.closeMu.Unlock()

	qs.wg.Wait()
	return qs.sink.Close()
}

func (qs *QueuedSink) Name() string {
	return qs.sink.Name()
}
