// Package audit records what happened to escalations and knowledge entries.
// Events are emitted without blocking the caller and delivered to log, webhook
// and Kafka sinks, each behind its own queue and circuit breaker.
package audit
