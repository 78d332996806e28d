// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package notify

import (
	"encoding/json"
	"time"
)

type EventType string

const (
	EventNewRequest           EventType = "new_request"
	EventRequestResolved      EventType = "request_resolved"
	EventRequestTimeout       EventType = "request_timeout"
	EventKnowledgeBaseUpdated EventType = "knowledge_base_updated"
)

// Event is a typed payload that can be broadcast to operators.
type Event interface {
	EventType() EventType
}

type NewRequest struct {
	RequestID  string    `json:"request_id"`
	Question   string    `json:"question"`
	CallerInfo string    `json:"caller_info"`
	CreatedAt  time.Time `json:"created_at"`
}

func (NewRequest) EventType() EventType { return EventNewRequest }

type RequestResolved struct {
	RequestID  string    `json:"request_id"`
	Answer     string    `json:"answer"`
	AnsweredBy string    `json:"answered_by"`
	ResolvedAt time.Time `json:"resolved_at"`
}

func (RequestResolved) EventType() EventType { return EventRequestResolved }

type RequestTimeout struct {
	RequestID  string    `json:"request_id"`
	Question   string    `json:"question"`
	CreatedAt  time.Time `json:"created_at"`
	CallerInfo string    `json:"caller_info"`
}

func (RequestTimeout) EventType() EventType { return EventRequestTimeout }

type KnowledgeBaseUpdated struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

func (KnowledgeBaseUpdated) EventType() EventType { return EventKnowledgeBaseUpdated }

// Envelope is the wire format pushed on the live channel.
type Envelope struct {
	Type      EventType       `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewEnvelope wraps ev for delivery.
func NewEnvelope(ev Event, now time.Time) (Envelope, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: ev.EventType(), Data: data, Timestamp: now.UTC()}, nil
}

// Decode unmarshals the envelope payload into its typed event.
func (e Envelope) Decode() (Event, error) {
	var ev Event
	switch e.Type {
	case EventNewRequest:
		ev = &NewRequest{}
	case EventRequestResolved:
		ev = &RequestResolved{}
	case EventRequestTimeout:
		ev = &RequestTimeout{}
	case EventKnowledgeBaseUpdated:
		ev = &KnowledgeBaseUpdated{}
	default:
		return nil, &UnknownEventError{Type: e.Type}
	}
	if err := json.Unmarshal(e.Data, ev); err != nil {
		return nil, err
	}
	return ev, nil
}

type UnknownEventError struct {
	Type EventType
}

func (e *UnknownEventError) Error() string {
	return "unknown event type " + string(e.Type)
}
