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

package mail

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/telekom/frontdesk/pkg/metrics"
)

var (
	ErrQueueFull    = errors.New("mail queue is full")
	ErrQueueStopped = errors.New("mail queue is stopped")
	ErrNoReceivers  = errors.New("mail has no receivers")
)

const (
	defaultQueueSize  = 100
	defaultMaxRetries = 3
	defaultRetryDelay = 10 * time.Second
	maxRetryDelay     = 10 * time.Minute
	retryTick         = 50 * time.Millisecond
)

// QueueItem is one mail waiting to be sent.
type QueueItem struct {
	ID        string
	Receivers []string
	Subject   string
	Body      string
	Attempt   int
	NextRetry time.Time
}

// QueueOptions tunes retry behavior. Zero values select the defaults.
type QueueOptions struct {
	Size       int
	MaxRetries int
	RetryDelay time.Duration
}

// Queue sends mails on a single background worker. A failed send is retried
// with exponential backoff; mails that arrive while the buffer is full are dropped.
type Queue struct {
	sender Sender
	items  chan *QueueItem
	log    *zap.SugaredLogger
	opts   QueueOptions

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewQueue(sender Sender, log *zap.SugaredLogger, opts QueueOptions) *Queue {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if opts.Size <= 0 {
		opts.Size = defaultQueueSize
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = defaultRetryDelay
	}
	return &Queue{
		sender: sender,
		items:  make(chan *QueueItem, opts.Size),
		log:    log,
		opts:   opts,
		done:   make(chan struct{}),
	}
}

// Start launches the worker. Calling Start more than once has no effect.
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.stopped {
		return
	}
	q.started = true

	ctx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel
	go q.run(ctx)
	q.log.Infow("Mail queue started", "size", q.opts.Size, "maxRetries", q.opts.MaxRetries)
}

// Enqueue hands a mail to the worker without blocking.
func (q *Queue) Enqueue(id string, receivers []string, subject, body string) error {
	host := q.sender.GetHost()
	if len(receivers) == 0 {
		metrics.MailQueueDropped.WithLabelValues(host).Inc()
		return ErrNoReceivers
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		metrics.MailQueueDropped.WithLabelValues(host).Inc()
		return ErrQueueStopped
	}

	select {
	case q.items <- &QueueItem{ID: id, Receivers: receivers, Subject: subject, Body: body}:
		metrics.MailQueued.WithLabelValues(host).Inc()
		q.log.Debugw("Mail queued", "id", id, "receivers", len(receivers))
		return nil
	default:
		metrics.MailQueueDropped.WithLabelValues(host).Inc()
		q.log.Warnw("Mail queue is full, dropping mail", "id", id, "size", q.opts.Size)
		return fmt.Errorf("%w (capacity %d)", ErrQueueFull, q.opts.Size)
	}
}

func (q *Queue) run(ctx context.Context) {
	defer close(q.done)

	var retries []*QueueItem
	ticker := time.NewTicker(retryTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			q.drain(retries)
			return

		case item := <-q.items:
			if q.attempt(item) {
				retries = append(retries, item)
			}

		case now := <-ticker.C:
			kept := retries[:0]
			for _, item := range retries {
				if now.Before(item.NextRetry) || q.attempt(item) {
					kept = append(kept, item)
				}
			}
			retries = kept
		}
	}
}

// attempt sends the item once and reports whether it should be retried.
func (q *Queue) attempt(item *QueueItem) (retry bool) {
	host := q.sender.GetHost()
	defer func() {
		if r := recover(); r != nil {
			q.log.Errorw("Panic while sending mail", "id", item.ID, "panic", r)
			metrics.MailFailed.WithLabelValues(host).Inc()
			retry = false
		}
	}()

	item.Attempt++
	err := q.sender.Send(item.Receivers, item.Subject, item.Body)
	if err == nil {
		metrics.MailSent.WithLabelValues(host).Inc()
		q.log.Infow("Mail delivered", "id", item.ID, "attempt", item.Attempt)
		return false
	}

	if item.Attempt > q.opts.MaxRetries {
		metrics.MailFailed.WithLabelValues(host).Inc()
		q.log.Errorw("Giving up on mail", "id", item.ID, "attempts", item.Attempt, "subject", item.Subject, "error", err)
		return false
	}

	delay := q.retryDelay(item.Attempt)
	item.NextRetry = time.Now().Add(delay)
	metrics.MailRetryScheduled.WithLabelValues(host).Inc()
	q.log.Warnw("Mail send failed, scheduling retry", "id", item.ID, "attempt", item.Attempt, "retryIn", delay, "error", err)
	return true
}

func (q *Queue) retryDelay(attempt int) time.Duration {
	d := q.opts.RetryDelay
	for i := 1; i < attempt && d < maxRetryDelay; i++ {
		d *= 2
	}
	return min(d, maxRetryDelay)
}

// drain makes one last attempt for everything still buffered or awaiting retry.
func (q *Queue) drain(retries []*QueueItem) {
buffered:
	for {
		select {
		case item := <-q.items:
			retries = append(retries, item)
		default:
			break buffered
		}
	}
	if len(retries) > 0 {
		q.log.Infow("Sending remaining mails before shutdown", "count", len(retries))
	}
	for _, item := range retries {
		if q.attempt(item) {
			metrics.MailFailed.WithLabelValues(q.sender.GetHost()).Inc()
		}
	}
}

// Stop ends the worker after a final delivery attempt of pending mails.
// It returns ctx.Err() if that takes longer than ctx allows.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return nil
	}
	q.stopped = true
	started := q.started
	cancel := q.cancel
	q.mu.Unlock()

	if !started {
		return nil
	}
	cancel()

	select {
	case <-q.done:
		q.log.Info("Mail queue stopped")
		return nil
	case <-ctx.Done():
		q.log.Warnw("Mail queue shutdown timed out, some mails may be lost")
		return ctx.Err()
	}
}

// Length returns the number of mails waiting in the buffer.
func (q *Queue) Length() int {
	return len(q.items)
}
