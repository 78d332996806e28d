// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telekom/frontdesk/pkg/store"
	"github.com/telekom/frontdesk/pkg/store/storetest"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return New()
	})
}

func TestStoredRecordsAreIsolated(t *testing.T) {
	ctx := context.Background()
	s := New()
	e := storetest.NewPendingEscalation("e-1", time.Now())
	require.NoError(t, s.CreateEscalation(ctx, e))

	e.Question = "mutated by caller"
	got, err := s.GetEscalation(ctx, "e-1")
	require.NoError(t, err)
	assert.Equal(t, "Do you do hair transplants?", got.Question)

	got.Question = "mutated again"
	again, err := s.GetEscalation(ctx, "e-1")
	require.NoError(t, err)
	assert.Equal(t, "Do you do hair transplants?", again.Question)
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().ListEscalations(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
