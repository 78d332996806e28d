// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

// Package store defines the persistence boundary for escalations and knowledge entries.
//
// Every backend supports conditional replaces keyed on a per-record version. A replace
// only succeeds when the stored version equals the version the caller read; otherwise
// ErrConflict is returned and nothing is written. This is the only locking discipline
// the lifecycle engine relies on.
package store

import (
	"context"
	"errors"
	"fmt"

	frontdeskv1 "github.com/telekom/frontdesk/api/v1"
)

var (
	// ErrNotFound is returned when no record exists for the requested id.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a conditional write lost against a concurrent writer.
	ErrConflict = errors.New("version conflict")
	// ErrAlreadyExists is returned when creating a record whose id is already taken.
	ErrAlreadyExists = errors.New("record already exists")
	// ErrUnavailable wraps transient backend failures.
	ErrUnavailable = errors.New("store unavailable")
)

// ConflictError carries the versions involved in a failed conditional write.
type ConflictError struct {
	Kind            string
	ID              string
	ExpectedVersion int64
	CurrentVersion  int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %q: expected version %d, current version %d", e.Kind, e.ID, e.ExpectedVersion, e.CurrentVersion)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// Unavailable wraps err so that errors.Is(err, ErrUnavailable) holds while keeping the cause.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

// EscalationStore persists escalation records.
type EscalationStore interface {
	// CreateEscalation stores a new record. The stored version is set to 1 and written back to e.
	CreateEscalation(ctx context.Context, e *frontdeskv1.Escalation) error
	GetEscalation(ctx context.Context, id string) (*frontdeskv1.Escalation, error)
	ListEscalations(ctx context.Context) ([]*frontdeskv1.Escalation, error)
	// ReplaceEscalation overwrites the record only if its stored version equals expectedVersion.
	// On success e.Version is set to the new stored version.
	ReplaceEscalation(ctx context.Context, e *frontdeskv1.Escalation, expectedVersion int64) error
}

// KnowledgeStore persists knowledge entries.
type KnowledgeStore interface {
	CreateKnowledge(ctx context.Context, k *frontdeskv1.KnowledgeEntry) error
	GetKnowledge(ctx context.Context, id string) (*frontdeskv1.KnowledgeEntry, error)
	ListKnowledge(ctx context.Context) ([]*frontdeskv1.KnowledgeEntry, error)
	ReplaceKnowledge(ctx context.Context, k *frontdeskv1.KnowledgeEntry, expectedVersion int64) error
}

// Store is the full backend surface used by the service.
type Store interface {
	EscalationStore
	KnowledgeStore
	Ping(ctx context.Context) error
	Close() error
}
