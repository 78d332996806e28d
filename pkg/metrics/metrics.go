package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Escalation lifecycle metrics
	EscalationsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "frontdesk_escalations_created_total",
		Help: "Total number of escalations created",
	})
	EscalationsResolved = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "frontdesk_escalations_resolved_total",
		Help: "Total number of escalations resolved by an operator",
	})
	EscalationsTimedOut = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "frontdesk_escalations_timed_out_total",
		Help: "Total number of escalations that reached their deadline while pending",
	})
	// Conditional writes that lost against a concurrent writer, by transition and outcome
	// (retried: the record was still pending, rejected: it was already terminal).
	EscalationTransitionConflicts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "frontdesk_escalation_transition_conflicts_total",
		Help: "Total number of escalation transitions that hit a version conflict",
	}, []string{"transition", "outcome"})

	// Timeout monitor metrics
	SweepRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "frontdesk_timeout_sweeps_total",
		Help: "Total number of timeout sweeps by result",
	}, []string{"result"})
	SweepDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "frontdesk_timeout_sweep_duration_seconds",
		Help:    "Duration of timeout sweeps",
		Buckets: prometheus.DefBuckets,
	})

	// Notification hub metrics
	HubConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "frontdesk_hub_connections",
		Help: "Number of live operator connections registered with the notification hub",
	})
	BroadcastDeliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "frontdesk_broadcast_deliveries_total",
		Help: "Per-connection delivery attempts of broadcast events by result",
	}, []string{"event", "result"})

	// Knowledge feedback metrics
	KnowledgeEntriesCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "frontdesk_knowledge_entries_created_total",
		Help: "Total number of knowledge entries created by source",
	}, []string{"source"})
	KnowledgeRecordFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "frontdesk_knowledge_record_failures_total",
		Help: "Resolved escalations whose learned knowledge entry could not be stored",
	})

	// Customer callback metrics
	CustomerCallbacks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "frontdesk_customer_callbacks_total",
		Help: "Total number of customer callback messages by kind and result",
	}, []string{"kind", "result"})

	// API metrics
	APIRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "frontdesk_api_requests_total",
		Help: "Total number of API requests",
	}, []string{"method", "route", "code"})
	APIRateLimited = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "frontdesk_api_rate_limited_total",
		Help: "Total number of API requests rejected by the rate limiter",
	}, []string{"route"})

	// Mail metrics
	MailSendSuccess = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "frontdesk_mail_send_success_total",
		Help: "Total number of successful mail sends",
	}, []string{"host"})
	MailSendFailure = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "frontdesk_mail_send_failure_total",
		Help: "Total number of failed mail sends",
	}, []string{"host"})
	MailQueued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "frontdesk_mail_queued_total",
		Help: "Total number of mails accepted into the send queue",
	}, []string{"host"})
	MailQueueDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "frontdesk_mail_queue_dropped_total",
		Help: "Total number of mails dropped before being queued",
	}, []string{"host"})
	MailSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "frontdesk_mail_sent_total",
		Help: "Total number of queued mails delivered",
	}, []string{"host"})
	MailRetryScheduled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "frontdesk_mail_retry_scheduled_total",
		Help: "Total number of queued mail retries scheduled",
	}, []string{"host"})
	MailFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "frontdesk_mail_failed_total",
		Help: "Total number of queued mails given up after all retries",
	}, []string{"host"})

	// Audit metrics
	AuditEventsEmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "frontdesk_audit_events_emitted_total",
		Help: "Total number of audit events emitted by type",
	}, []string{"type"})
	AuditEventsProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "frontdesk_audit_events_processed_total",
		Help: "Total number of audit events written by sink",
	}, []string{"sink"})
	AuditEventsDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "frontdesk_audit_events_dropped_total",
		Help: "Total number of audit events dropped by sink and reason",
	}, []string{"sink", "reason"})
	AuditSinkErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "frontdesk_audit_sink_errors_total",
		Help: "Total number of audit sink errors by sink and error type",
	}, []string{"sink", "error_type"})
)

func init() {
	prometheus.MustRegister(EscalationsCreated)
	prometheus.MustRegister(EscalationsResolved)
	prometheus.MustRegister(EscalationsTimedOut)
	prometheus.MustRegister(EscalationTransitionConflicts)
	prometheus.MustRegister(SweepRuns)
	prometheus.MustRegister(SweepDuration)
	prometheus.MustRegister(HubConnections)
	prometheus.MustRegister(BroadcastDeliveries)
	prometheus.MustRegister(KnowledgeEntriesCreated)
	prometheus.MustRegister(KnowledgeRecordFailures)
	prometheus.MustRegister(CustomerCallbacks)
	prometheus.MustRegister(APIRequests)
	prometheus.MustRegister(APIRateLimited)
	prometheus.MustRegister(MailSendSuccess)
	prometheus.MustRegister(MailSendFailure)
	prometheus.MustRegister(MailQueued)
	prometheus.MustRegister(MailQueueDropped)
	prometheus.MustRegister(MailSent)
	prometheus.MustRegister(MailRetryScheduled)
	prometheus.MustRegister(MailFailed)
	prometheus.MustRegister(AuditEventsEmitted)
	prometheus.MustRegister(AuditEventsProcessed)
	prometheus.MustRegister(AuditEventsDropped)
	prometheus.MustRegister(AuditSinkErrors)
}

// MetricsHandler returns an http.Handler exposing Prometheus metrics.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
