// Package metrics defines Prometheus metrics for the frontdesk service,
// covering escalation transitions, timeout sweeps, live notification fan-out,
// knowledge feedback, the HTTP API, mail delivery and audit sinks.
package metrics
