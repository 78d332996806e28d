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

// Package v1 contains the records exchanged between the frontdesk service,
// its store backends and its clients.
package v1

import (
	"errors"
	"fmt"
	"time"
)

type EscalationStatus string

const (
	EscalationStatusPending  EscalationStatus = "pending"
	EscalationStatusResolved EscalationStatus = "resolved"
	EscalationStatusTimeout  EscalationStatus = "timeout"
)

// DefaultCallerInfo is stored when the front end does not know who is calling.
const DefaultCallerInfo = "Anonymous"

// IsValid reports whether s is one of the known escalation states.
func (s EscalationStatus) IsValid() bool {
	switch s {
	case EscalationStatusPending, EscalationStatusResolved, EscalationStatusTimeout:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is allowed from s.
func (s EscalationStatus) IsTerminal() bool {
	return s == EscalationStatusResolved || s == EscalationStatusTimeout
}

// ParseEscalationStatus converts user input into a status. Empty input is rejected.
func ParseEscalationStatus(s string) (EscalationStatus, error) {
	st := EscalationStatus(s)
	if !st.IsValid() {
		return "", fmt.Errorf("unknown escalation status %q", s)
	}
	return st, nil
}

// Escalation is a customer question the automated agent handed off to a human operator.
type Escalation struct {
	// id is assigned at creation and never changes.
	ID string `json:"id"`

	// question is the customer's original question.
	Question string `json:"question"`

	// callerInfo identifies the caller (name or phone number).
	CallerInfo string `json:"caller_info"`

	// status is the lifecycle state. Only pending->resolved and pending->timeout are allowed.
	Status EscalationStatus `json:"status"`

	CreatedAt time.Time `json:"created_at"`

	// timeoutAt is fixed at creation. A pending escalation past this deadline is eligible for timeout.
	TimeoutAt time.Time `json:"timeout_at"`

	// resolvedAt, answer and answeredBy are set together when status is resolved.
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	Answer     string     `json:"answer,omitempty"`
	AnsweredBy string     `json:"answered_by,omitempty"`

	// sessionID correlates the escalation with the originating conversation.
	SessionID string `json:"session_id,omitempty"`

	// version is bumped by the store on every successful write and used for conditional replaces.
	Version int64 `json:"version"`
}

// Expired reports whether the escalation is pending and its deadline has been reached at now.
func (e *Escalation) Expired(now time.Time) bool {
	return e.Status == EscalationStatusPending && !e.TimeoutAt.After(now)
}

// Validate checks the record shape. Stores call it on every read and write so that
// malformed data never flows into the lifecycle logic.
func (e *Escalation) Validate() error {
	var errs []error
	if e.ID == "" {
		errs = append(errs, errors.New("id is required"))
	}
	if e.Question == "" {
		errs = append(errs, errors.New("question is required"))
	}
	if !e.Status.IsValid() {
		errs = append(errs, fmt.Errorf("invalid status %q", e.Status))
	}
	if e.TimeoutAt.Before(e.CreatedAt) {
		errs = append(errs, errors.New("timeout_at precedes created_at"))
	}

	resolvedFields := 0
	if e.ResolvedAt != nil {
		resolvedFields++
	}
	if e.Answer != "" {
		resolvedFields++
	}
	if e.AnsweredBy != "" {
		resolvedFields++
	}
	switch {
	case e.Status == EscalationStatusResolved && resolvedFields != 3:
		errs = append(errs, errors.New("resolved escalation requires resolved_at, answer and answered_by"))
	case e.Status != EscalationStatusResolved && resolvedFields != 0:
		errs = append(errs, fmt.Errorf("%s escalation must not carry resolution fields", e.Status))
	}

	if len(errs) > 0 {
		return fmt.Errorf("escalation %q: %w", e.ID, errors.Join(errs...))
	}
	return nil
}

// DeepCopy returns an independent copy of e.
func (e *Escalation) DeepCopy() *Escalation {
	if e == nil {
		return nil
	}
	out := *e
	if e.ResolvedAt != nil {
		t := *e.ResolvedAt
		out.ResolvedAt = &t
	}
	return &out
}

// Stats is the per-status breakdown of all escalations.
type Stats struct {
	Pending  int `json:"pending"`
	Resolved int `json:"resolved"`
	Timeout  int `json:"timeout"`
	Total    int `json:"total"`
}
