// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

// Package callback delivers the out-of-band message to the caller whose
// question was escalated. There is no telephony integration: messages are
// rendered, logged and kept in a small in-memory outbox.
package callback

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"text/template"
	"time"
	"unicode/utf8"

	"github.com/Masterminds/sprig/v3"
	"go.uber.org/zap"

	frontdeskv1 "github.com/telekom/frontdesk/api/v1"
	"github.com/telekom/frontdesk/pkg/metrics"
)

const (
	KindAnswered = "answered"
	KindDelayed  = "delayed"

	DefaultBusinessName = "Beautiful Hair Salon"

	// DefaultAnsweredTemplate is the message sent when an operator answered.
	DefaultAnsweredTemplate = `Hi! Thanks for calling {{ .Business }}. ` +
		`Your question: "{{ clip 60 .Question }}" ` +
		`Our {{ .AnsweredBy | default "Supervisor" }} has answered: "{{ clip 100 .Answer }}" ` +
		`Feel free to call us again if you have more questions!`

	// DefaultDelayedTemplate is the follow-up sent when an escalation timed out.
	DefaultDelayedTemplate = `Hi! Your question "{{ clip 60 .Question }}" is taking longer than expected. ` +
		`{{ .Business }} will get back to you as soon as possible.`

	outboxSize = 50
)

// Message is one rendered customer message.
type Message struct {
	Kind         string    `json:"kind"`
	EscalationID string    `json:"escalation_id"`
	To           string    `json:"to"`
	Text         string    `json:"text"`
	SentAt       time.Time `json:"sent_at"`
}

// templateData is what message templates can reference.
type templateData struct {
	Business   string
	Caller     string
	Question   string
	Answer     string
	AnsweredBy string
}

type Option func(*Notifier)

func WithLogger(log *zap.SugaredLogger) Option {
	return func(n *Notifier) {
		if log != nil {
			n.log = log
		}
	}
}

func WithBusinessName(name string) Option {
	return func(n *Notifier) {
		if name != "" {
			n.business = name
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(n *Notifier) {
		if now != nil {
			n.now = now
		}
	}
}

// Notifier renders and records customer callbacks.
type Notifier struct {
	answered *template.Template
	delayed  *template.Template
	business string
	log      *zap.SugaredLogger
	now      func() time.Time

	mu     sync.Mutex
	outbox []Message
}

// New parses the answered template; an empty string selects DefaultAnsweredTemplate.
func New(answeredTemplate string, opts ...Option) (*Notifier, error) {
	if answeredTemplate == "" {
		answeredTemplate = DefaultAnsweredTemplate
	}
	answered, err := parse("answered", answeredTemplate)
	if err != nil {
		return nil, fmt.Errorf("invalid callback template: %w", err)
	}
	n := &Notifier{
		answered: answered,
		delayed:  template.Must(parse("delayed", DefaultDelayedTemplate)),
		business: DefaultBusinessName,
		log:      zap.NewNop().Sugar(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

func parse(name, text string) (*template.Template, error) {
	funcs := sprig.TxtFuncMap()
	funcs["clip"] = clip
	return template.New(name).Funcs(funcs).Option("missingkey=error").Parse(text)
}

// clip shortens s to n runes and marks the cut with "...".
func clip(n int, s string) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

func (n *Notifier) NotifyAnswered(ctx context.Context, e *frontdeskv1.Escalation) {
	n.deliver(ctx, KindAnswered, n.answered, e)
}

func (n *Notifier) NotifyDelayed(ctx context.Context, e *frontdeskv1.Escalation) {
	n.deliver(ctx, KindDelayed, n.delayed, e)
}

func (n *Notifier) deliver(_ context.Context, kind string, t *template.Template, e *frontdeskv1.Escalation) {
	var buf bytes.Buffer
	err := t.Execute(&buf, templateData{
		Business:   n.business,
		Caller:     e.CallerInfo,
		Question:   e.Question,
		Answer:     e.Answer,
		AnsweredBy: e.AnsweredBy,
	})
	if err != nil {
		metrics.CustomerCallbacks.WithLabelValues(kind, "error").Inc()
		n.log.Errorw("Failed to render customer callback", "kind", kind, "escalation", e.ID, "error", err)
		return
	}

	msg := Message{
		Kind:         kind,
		EscalationID: e.ID,
		To:           e.CallerInfo,
		Text:         buf.String(),
		SentAt:       n.now(),
	}

	n.mu.Lock()
	n.outbox = append(n.outbox, msg)
	if len(n.outbox) > outboxSize {
		n.outbox = n.outbox[len(n.outbox)-outboxSize:]
	}
	n.mu.Unlock()

	metrics.CustomerCallbacks.WithLabelValues(kind, "sent").Inc()
	n.log.Infow("Customer callback", "kind", kind, "escalation", e.ID, "to", msg.To, "message", msg.Text)
}

// Recent returns the most recent messages, oldest first.
func (n *Notifier) Recent() []Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Message(nil), n.outbox...)
}
