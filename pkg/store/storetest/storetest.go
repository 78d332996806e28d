// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

// Package storetest holds the behavioural suite every store.Store backend must pass.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	frontdeskv1 "github.com/telekom/frontdesk/api/v1"
	"github.com/telekom/frontdesk/pkg/store"
)

// Factory returns a fresh, empty store for one subtest.
type Factory func(t *testing.T) store.Store

func NewPendingEscalation(id string, createdAt time.Time) *frontdeskv1.Escalation {
	return &frontdeskv1.Escalation{
		ID:         id,
		Question:   "Do you do hair transplants?",
		CallerInfo: "555-0101",
		Status:     frontdeskv1.EscalationStatusPending,
		CreatedAt:  createdAt,
		TimeoutAt:  createdAt.Add(2 * time.Hour),
		SessionID:  "room-42",
	}
}

// Run executes the conformance suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	ctx := context.Background()
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	t.Run("create and get escalation", func(t *testing.T) {
		s := newStore(t)
		e := NewPendingEscalation("e-1", base)
		require.NoError(t, s.CreateEscalation(ctx, e))
		assert.Equal(t, int64(1), e.Version)

		got, err := s.GetEscalation(ctx, "e-1")
		require.NoError(t, err)
		assert.Equal(t, e.Question, got.Question)
		assert.Equal(t, e.CallerInfo, got.CallerInfo)
		assert.Equal(t, frontdeskv1.EscalationStatusPending, got.Status)
		assert.True(t, e.CreatedAt.Equal(got.CreatedAt))
		assert.True(t, e.TimeoutAt.Equal(got.TimeoutAt))
		assert.Nil(t, got.ResolvedAt)
		assert.Equal(t, "room-42", got.SessionID)
		assert.Equal(t, int64(1), got.Version)
	})

	t.Run("duplicate create is rejected", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.CreateEscalation(ctx, NewPendingEscalation("dup", base)))
		err := s.CreateEscalation(ctx, NewPendingEscalation("dup", base))
		require.ErrorIs(t, err, store.ErrAlreadyExists)
	})

	t.Run("invalid record is rejected at write", func(t *testing.T) {
		s := newStore(t)
		e := NewPendingEscalation("bad", base)
		e.Status = "answered"
		require.Error(t, s.CreateEscalation(ctx, e))
		_, err := s.GetEscalation(ctx, "bad")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("get unknown escalation", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetEscalation(ctx, "missing")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("list escalations", func(t *testing.T) {
		s := newStore(t)
		for i := 0; i < 3; i++ {
			require.NoError(t, s.CreateEscalation(ctx, NewPendingEscalation(fmt.Sprintf("e-%d", i), base.Add(time.Duration(i)*time.Minute))))
		}
		all, err := s.ListEscalations(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("conditional replace", func(t *testing.T) {
		s := newStore(t)
		e := NewPendingEscalation("e-1", base)
		require.NoError(t, s.CreateEscalation(ctx, e))

		resolved := e.DeepCopy()
		now := base.Add(time.Minute)
		resolved.Status = frontdeskv1.EscalationStatusResolved
		resolved.ResolvedAt = &now
		resolved.Answer = "24 hours notice required"
		resolved.AnsweredBy = "Sarah"
		require.NoError(t, s.ReplaceEscalation(ctx, resolved, 1))
		assert.Equal(t, int64(2), resolved.Version)

		stale := e.DeepCopy()
		stale.Status = frontdeskv1.EscalationStatusTimeout
		err := s.ReplaceEscalation(ctx, stale, 1)
		require.ErrorIs(t, err, store.ErrConflict)

		got, err := s.GetEscalation(ctx, "e-1")
		require.NoError(t, err)
		assert.Equal(t, frontdeskv1.EscalationStatusResolved, got.Status)
		assert.Equal(t, "Sarah", got.AnsweredBy)
		require.NotNil(t, got.ResolvedAt)
		assert.True(t, now.Equal(*got.ResolvedAt))
	})

	t.Run("replace unknown escalation", func(t *testing.T) {
		s := newStore(t)
		err := s.ReplaceEscalation(ctx, NewPendingEscalation("ghost", base), 1)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("concurrent replaces with the same version have one winner", func(t *testing.T) {
		s := newStore(t)
		e := NewPendingEscalation("race", base)
		require.NoError(t, s.CreateEscalation(ctx, e))

		const writers = 8
		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				next := e.DeepCopy()
				next.Status = frontdeskv1.EscalationStatusTimeout
				if err := s.ReplaceEscalation(ctx, next, 1); err == nil {
					wins.Add(1)
				} else {
					assert.ErrorIs(t, err, store.ErrConflict)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
	})

	t.Run("knowledge entries", func(t *testing.T) {
		s := newStore(t)
		k := &frontdeskv1.KnowledgeEntry{
			ID:        "k-1",
			Question:  "What are your hours?",
			Answer:    "9 to 5",
			Source:    frontdeskv1.KnowledgeSourceManual,
			CreatedAt: base,
			UpdatedAt: base,
		}
		require.NoError(t, s.CreateKnowledge(ctx, k))
		assert.Equal(t, int64(1), k.Version)

		got, err := s.GetKnowledge(ctx, "k-1")
		require.NoError(t, err)
		assert.Equal(t, frontdeskv1.KnowledgeSourceManual, got.Source)

		got.UseCount++
		got.UpdatedAt = base.Add(time.Hour)
		require.NoError(t, s.ReplaceKnowledge(ctx, got, 1))
		require.ErrorIs(t, s.ReplaceKnowledge(ctx, got, 1), store.ErrConflict)

		all, err := s.ListKnowledge(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, int64(1), all[0].UseCount)

		_, err = s.GetKnowledge(ctx, "missing")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("ping", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Ping(ctx))
	})
}
