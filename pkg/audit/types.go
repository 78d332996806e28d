// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"time"
)

// EventType represents the type of audit event.
type EventType string

const (
	// === Escalation lifecycle events ===
	EventEscalationCreated  EventType = "escalation.created"
	EventEscalationResolved EventType = "escalation.resolved"
	EventEscalationTimeout  EventType = "escalation.timeout"

	// === Knowledge base events ===
	EventKnowledgeCreated EventType = "knowledge.created"

	// === System events ===
	EventSystemStartup  EventType = "system.startup"
	EventSystemShutdown EventType = "system.shutdown"
)

// Severity represents the severity level of an audit event
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Event represents a single audit event
type Event struct {
	// ID is a unique identifier for this event
	ID string `json:"id"`

	// Type is the type of event
	Type EventType `json:"type"`

	// Severity indicates the importance of the event
	Severity Severity `json:"severity"`

	// Timestamp is when the event occurred
	Timestamp time.Time `json:"timestamp"`

	// Actor is who triggered the event
	Actor Actor `json:"actor"`

	// Target is what was affected by the event
	Target Target `json:"target"`

	// Details contains event-specific information
	Details map[string]interface{} `json:"details,omitempty"`

	// RequestContext contains correlation information
	RequestContext *RequestContext `json:"requestContext,omitempty"`
}

// Actor represents who triggered an audit event
type Actor struct {
	// User is the operator name, the caller info of a customer, or "system".
	User string `json:"user"`

	// SourceIP is the IP address of the request origin
	SourceIP string `json:"sourceIP,omitempty"`
}

// Target represents what was affected by an audit event
type Target struct {
	// Kind is "Escalation" or "KnowledgeEntry"
	Kind string `json:"kind"`

	// ID of the affected record
	ID string `json:"id"`
}

// RequestContext contains correlation and context information
type RequestContext struct {
	// CorrelationID for tracing requests across components
	CorrelationID string `json:"correlationId,omitempty"`

	// SessionID is the voice agent session that raised the escalation
	SessionID string `json:"sessionId,omitempty"`
}

// SystemActor is recorded for transitions nobody triggered directly.
const SystemActor = "system"

// SeverityForEventType returns the default severity for an event type
func SeverityForEventType(eventType EventType) Severity {
	switch eventType {
	// A customer question went unanswered.
	case EventEscalationTimeout:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}
