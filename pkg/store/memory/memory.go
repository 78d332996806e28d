// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

// Package memory implements store.Store in process memory.
package memory

import (
	"context"
	"fmt"
	"sync"

	frontdeskv1 "github.com/telekom/frontdesk/api/v1"
	"github.com/telekom/frontdesk/pkg/store"
)

// Store keeps copies of every record so callers can never mutate stored state.
type Store struct {
	mu          sync.RWMutex
	escalations map[string]*frontdeskv1.Escalation
	knowledge   map[string]*frontdeskv1.KnowledgeEntry
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		escalations: map[string]*frontdeskv1.Escalation{},
		knowledge:   map[string]*frontdeskv1.KnowledgeEntry{},
	}
}

func (s *Store) CreateEscalation(ctx context.Context, e *frontdeskv1.Escalation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.escalations[e.ID]; ok {
		return fmt.Errorf("escalation %q: %w", e.ID, store.ErrAlreadyExists)
	}
	e.Version = 1
	s.escalations[e.ID] = e.DeepCopy()
	return nil
}

func (s *Store) GetEscalation(ctx context.Context, id string) (*frontdeskv1.Escalation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.escalations[id]
	if !ok {
		return nil, fmt.Errorf("escalation %q: %w", id, store.ErrNotFound)
	}
	return e.DeepCopy(), nil
}

func (s *Store) ListEscalations(ctx context.Context) ([]*frontdeskv1.Escalation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*frontdeskv1.Escalation, 0, len(s.escalations))
	for _, e := range s.escalations {
		out = append(out, e.DeepCopy())
	}
	return out, nil
}

func (s *Store) ReplaceEscalation(ctx context.Context, e *frontdeskv1.Escalation, expectedVersion int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.escalations[e.ID]
	if !ok {
		return fmt.Errorf("escalation %q: %w", e.ID, store.ErrNotFound)
	}
	if cur.Version != expectedVersion {
		return &store.ConflictError{Kind: "escalation", ID: e.ID, ExpectedVersion: expectedVersion, CurrentVersion: cur.Version}
	}
	e.Version = expectedVersion + 1
	s.escalations[e.ID] = e.DeepCopy()
	return nil
}

func (s *Store) CreateKnowledge(ctx context.Context, k *frontdeskv1.KnowledgeEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := k.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.knowledge[k.ID]; ok {
		return fmt.Errorf("knowledge entry %q: %w", k.ID, store.ErrAlreadyExists)
	}
	k.Version = 1
	s.knowledge[k.ID] = k.DeepCopy()
	return nil
}

func (s *Store) GetKnowledge(ctx context.Context, id string) (*frontdeskv1.KnowledgeEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	k, ok := s.knowledge[id]
	if !ok {
		return nil, fmt.Errorf("knowledge entry %q: %w", id, store.ErrNotFound)
	}
	return k.DeepCopy(), nil
}

func (s *Store) ListKnowledge(ctx context.Context) ([]*frontdeskv1.KnowledgeEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*frontdeskv1.KnowledgeEntry, 0, len(s.knowledge))
	for _, k := range s.knowledge {
		out = append(out, k.DeepCopy())
	}
	return out, nil
}

func (s *Store) ReplaceKnowledge(ctx context.Context, k *frontdeskv1.KnowledgeEntry, expectedVersion int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := k.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.knowledge[k.ID]
	if !ok {
		return fmt.Errorf("knowledge entry %q: %w", k.ID, store.ErrNotFound)
	}
	if cur.Version != expectedVersion {
		return &store.ConflictError{Kind: "knowledge entry", ID: k.ID, ExpectedVersion: expectedVersion, CurrentVersion: cur.Version}
	}
	k.Version = expectedVersion + 1
	s.knowledge[k.ID] = k.DeepCopy()
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) Close() error { return nil }
