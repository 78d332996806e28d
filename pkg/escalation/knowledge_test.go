// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package escalation

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	frontdeskv1 "github.com/telekom/frontdesk/api/v1"
	"github.com/telekom/frontdesk/pkg/notify"
)

type recordingKnowledgeObserver struct {
	created []*frontdeskv1.KnowledgeEntry
}

func (o *recordingKnowledgeObserver) KnowledgeCreated(_ context.Context, k *frontdeskv1.KnowledgeEntry) {
	o.created = append(o.created, k)
}

func TestKnowledgeBase(t *testing.T) {
	ctx := context.Background()

	t.Run("manual entry", func(t *testing.T) {
		f := newFixture(t)
		obs := &recordingKnowledgeObserver{}
		kb := NewKnowledgeBase(f.store, f.hub, WithKnowledgeClock(f.clock.Now), WithKnowledgeObservers(obs))

		k, err := kb.CreateManual(ctx, "Do you offer beard trims?", "Yes, from $20")
		require.NoError(t, err)
		assert.Equal(t, frontdeskv1.KnowledgeSourceManual, k.Source)
		assert.Equal(t, int64(0), k.UseCount)
		assert.True(t, f.clock.Now().Equal(k.CreatedAt))
		assert.Equal(t, 1, f.hub.count(notify.EventKnowledgeBaseUpdated, ""))
		require.Len(t, obs.created, 1)
		assert.Equal(t, k.ID, obs.created[0].ID)
	})

	t.Run("empty input is rejected", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.knowledge.CreateManual(ctx, "", "answer")
		require.ErrorIs(t, err, ErrInvalidInput)
		_, err = f.knowledge.Record(ctx, "question", " ")
		require.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("identical questions are not deduplicated", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.knowledge.Record(ctx, "Do you do hair transplants?", "No")
		require.NoError(t, err)
		_, err = f.knowledge.Record(ctx, "Do you do hair transplants?", "No")
		require.NoError(t, err)
		_, err = f.knowledge.CreateManual(ctx, "Do you do hair transplants?", "No, sorry")
		require.NoError(t, err)

		entries, err := f.knowledge.List(ctx)
		require.NoError(t, err)
		assert.Len(t, entries, 3)
	})

	t.Run("list is ordered by last update", func(t *testing.T) {
		f := newFixture(t)
		older, err := f.knowledge.CreateManual(ctx, "older", "a")
		require.NoError(t, err)
		f.clock.Advance(time.Minute)
		newer, err := f.knowledge.CreateManual(ctx, "newer", "b")
		require.NoError(t, err)

		entries, err := f.knowledge.List(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, newer.ID, entries[0].ID)

		f.clock.Advance(time.Minute)
		used, err := f.knowledge.IncrementUseCount(ctx, older.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), used.UseCount)

		entries, err = f.knowledge.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, older.ID, entries[0].ID)
	})

	t.Run("increment unknown entry", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.knowledge.IncrementUseCount(ctx, "missing")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("export as map", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.knowledge.CreateManual(ctx, "What are your Hours", "9 to 5")
		require.NoError(t, err)
		long := strings.Repeat("Très long question ", 5)
		_, err = f.knowledge.CreateManual(ctx, long, "long answer")
		require.NoError(t, err)
		f.clock.Advance(time.Minute)
		_, err = f.knowledge.Record(ctx, "What are your hours", "10 to 6")
		require.NoError(t, err)

		m, err := f.knowledge.ExportAsMap(ctx)
		require.NoError(t, err)
		assert.Len(t, m, 2)
		assert.Equal(t, "10 to 6", m["what_are_your_hours"])
		assert.Equal(t, "long answer", m[ExportKey(long)])
		assert.Len(t, []rune(ExportKey(long)), 50)
	})

	t.Run("seed only fills an empty knowledge base", func(t *testing.T) {
		f := newFixture(t)
		n, err := f.knowledge.Seed(ctx, DefaultSeed())
		require.NoError(t, err)
		assert.Equal(t, len(DefaultSeed()), n)

		entries, err := f.knowledge.List(ctx)
		require.NoError(t, err)
		require.Len(t, entries, len(DefaultSeed()))
		for _, e := range entries {
			assert.Equal(t, frontdeskv1.KnowledgeSourceInitial, e.Source)
		}
		assert.Equal(t, 0, f.hub.count(notify.EventKnowledgeBaseUpdated, ""))

		n, err = f.knowledge.Seed(ctx, DefaultSeed())
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})
}

func TestExportKey(t *testing.T) {
	assert.Equal(t, "do_you_do_hair_transplants?", ExportKey("Do you do hair transplants?"))
	assert.Equal(t, "", ExportKey(""))
	assert.Equal(t, strings.Repeat("ü", 50), ExportKey(strings.Repeat("Ü", 60)))
}
