package mail

import (
	"context"
	"time"

	"go.uber.org/zap"

	frontdeskv1 "github.com/telekom/frontdesk/api/v1"
)

// Enqueuer accepts mails for asynchronous delivery.
type Enqueuer interface {
	Enqueue(id string, receivers []string, subject, body string) error
}

// Alerter mails operators about new and timed out escalations. It is
// registered as an escalation observer and never blocks the lifecycle.
type Alerter struct {
	queue        Enqueuer
	operators    []string
	dashboardURL string
	now          func() time.Time
	log          *zap.SugaredLogger
}

func NewAlerter(queue Enqueuer, operators []string, dashboardURL string, log *zap.SugaredLogger) *Alerter {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Alerter{
		queue:        queue,
		operators:    operators,
		dashboardURL: dashboardURL,
		now:          time.Now,
		log:          log.Named("mail-alerter"),
	}
}

func (a *Alerter) params(e *frontdeskv1.Escalation) EscalationMailParams {
	return EscalationMailParams{
		ID:         e.ID,
		Question:   e.Question,
		CallerInfo: e.CallerInfo,
		SessionID:  e.SessionID,
		TimeoutAt:  e.TimeoutAt,
		Remaining:  e.TimeoutAt.Sub(a.now()).Round(time.Minute).String(),
		Waited:     e.TimeoutAt.Sub(e.CreatedAt).Round(time.Minute).String(),
		URL:        a.dashboardURL,
	}
}

func (a *Alerter) EscalationCreated(_ context.Context, e *frontdeskv1.Escalation) {
	body, err := RenderEscalationCreated(a.params(e))
	if err != nil {
		a.log.Errorw("Failed to render escalation mail", "id", e.ID, "error", err)
		return
	}
	a.send(e.ID+"-created", "[Frontdesk] New question from "+e.CallerInfo, body)
}

func (a *Alerter) EscalationResolved(context.Context, *frontdeskv1.Escalation) {}

func (a *Alerter) EscalationTimedOut(_ context.Context, e *frontdeskv1.Escalation) {
	body, err := RenderEscalationTimeout(a.params(e))
	if err != nil {
		a.log.Errorw("Failed to render timeout mail", "id", e.ID, "error", err)
		return
	}
	a.send(e.ID+"-timeout", "[Frontdesk] Unanswered question from "+e.CallerInfo, body)
}

func (a *Alerter) send(id, subject, body string) {
	if err := a.queue.Enqueue(id, a.operators, subject, body); err != nil {
		a.log.Warnw("Operator alert mail not queued", "id", id, "error", err)
	}
}
