// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package escalation

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	frontdeskv1 "github.com/telekom/frontdesk/api/v1"
	"github.com/telekom/frontdesk/pkg/metrics"
	"github.com/telekom/frontdesk/pkg/notify"
	"github.com/telekom/frontdesk/pkg/store"
	"github.com/telekom/frontdesk/pkg/utils"
)

// exportKeyLength is the number of question runes used as export key.
const exportKeyLength = 50

// KnowledgeObserver is told about every stored knowledge entry.
type KnowledgeObserver interface {
	KnowledgeCreated(ctx context.Context, k *frontdeskv1.KnowledgeEntry)
}

// SeedEntry is one initial question/answer pair.
type SeedEntry struct {
	Question string
	Answer   string
}

// KnowledgeBase stores reusable answers. Entries are never deduplicated:
// the same question answered twice yields two entries.
type KnowledgeBase struct {
	store     store.KnowledgeStore
	hub       notify.Broadcaster
	observers []KnowledgeObserver
	log       *zap.SugaredLogger
	now       func() time.Time
	retry     utils.RetryConfig
}

var _ KnowledgeRecorder = (*KnowledgeBase)(nil)

type KnowledgeOption func(*KnowledgeBase)

func WithKnowledgeLogger(log *zap.SugaredLogger) KnowledgeOption {
	return func(k *KnowledgeBase) {
		if log != nil {
			k.log = log
		}
	}
}

func WithKnowledgeClock(now func() time.Time) KnowledgeOption {
	return func(k *KnowledgeBase) {
		if now != nil {
			k.now = now
		}
	}
}

func WithKnowledgeObservers(o ...KnowledgeObserver) KnowledgeOption {
	return func(k *KnowledgeBase) { k.observers = append(k.observers, o...) }
}

func NewKnowledgeBase(s store.KnowledgeStore, hub notify.Broadcaster, opts ...KnowledgeOption) *KnowledgeBase {
	k := &KnowledgeBase{
		store: s,
		hub:   hub,
		log:   zap.NewNop().Sugar(),
		now:   time.Now,
		retry: utils.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Record stores a learned entry for a resolved escalation.
func (k *KnowledgeBase) Record(ctx context.Context, question, answer string) (*frontdeskv1.KnowledgeEntry, error) {
	return k.create(ctx, question, answer, frontdeskv1.KnowledgeSourceLearned)
}

// CreateManual stores an operator-curated entry.
func (k *KnowledgeBase) CreateManual(ctx context.Context, question, answer string) (*frontdeskv1.KnowledgeEntry, error) {
	return k.create(ctx, question, answer, frontdeskv1.KnowledgeSourceManual)
}

func (k *KnowledgeBase) create(ctx context.Context, question, answer string, source frontdeskv1.KnowledgeSource) (*frontdeskv1.KnowledgeEntry, error) {
	question = strings.TrimSpace(question)
	answer = strings.TrimSpace(answer)
	if question == "" || answer == "" {
		return nil, fmt.Errorf("%w: question and answer must not be empty", ErrInvalidInput)
	}

	now := k.now()
	entry := &frontdeskv1.KnowledgeEntry{
		ID:        uuid.NewString(),
		Question:  question,
		Answer:    answer,
		Source:    source,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := k.store.CreateKnowledge(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to create knowledge entry: %w", err)
	}

	metrics.KnowledgeEntriesCreated.WithLabelValues(string(source)).Inc()
	k.log.Infow("Knowledge entry created", "entry", entry.ID, "source", source)

	if source != frontdeskv1.KnowledgeSourceInitial {
		k.hub.Broadcast(ctx, notify.KnowledgeBaseUpdated{Question: entry.Question, Answer: entry.Answer})
	}
	for _, o := range k.observers {
		o.KnowledgeCreated(ctx, entry.DeepCopy())
	}
	return entry, nil
}

// List returns all entries, most recently updated first.
func (k *KnowledgeBase) List(ctx context.Context) ([]*frontdeskv1.KnowledgeEntry, error) {
	entries, err := k.store.ListKnowledge(ctx)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(entries, func(a, b *frontdeskv1.KnowledgeEntry) int {
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})
	return entries, nil
}

func (k *KnowledgeBase) Get(ctx context.Context, id string) (*frontdeskv1.KnowledgeEntry, error) {
	return k.store.GetKnowledge(ctx, id)
}

// ExportKey normalises a question into its export key: the first 50 runes,
// lower-cased, with spaces replaced by underscores.
func ExportKey(question string) string {
	r := []rune(question)
	if len(r) > exportKeyLength {
		r = r[:exportKeyLength]
	}
	return strings.ReplaceAll(strings.ToLower(string(r)), " ", "_")
}

// ExportAsMap maps each entry's export key to its answer. When keys collide the most
// recently created entry wins.
func (k *KnowledgeBase) ExportAsMap(ctx context.Context) (map[string]string, error) {
	entries, err := k.store.ListKnowledge(ctx)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(entries, func(a, b *frontdeskv1.KnowledgeEntry) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		out[ExportKey(e.Question)] = e.Answer
	}
	return out, nil
}

// IncrementUseCount records that the agent used an entry.
func (k *KnowledgeBase) IncrementUseCount(ctx context.Context, id string) (*frontdeskv1.KnowledgeEntry, error) {
	var out *frontdeskv1.KnowledgeEntry
	err := utils.UpdateWithRetry(ctx, k.retry, isConflict, func(ctx context.Context, _ int) error {
		cur, err := k.store.GetKnowledge(ctx, id)
		if err != nil {
			return err
		}
		next := cur.DeepCopy()
		next.UseCount++
		next.UpdatedAt = k.now()
		if err := k.store.ReplaceKnowledge(ctx, next, cur.Version); err != nil {
			return err
		}
		out = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	k.log.Debugw("Knowledge entry used", "entry", id, "useCount", out.UseCount)
	return out, nil
}

// Seed inserts entries tagged initial when the knowledge base is empty.
// It returns the number of inserted entries.
func (k *KnowledgeBase) Seed(ctx context.Context, entries []SeedEntry) (int, error) {
	existing, err := k.store.ListKnowledge(ctx)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		k.log.Debugw("Knowledge base already populated, skipping seed", "entries", len(existing))
		return 0, nil
	}
	for i, e := range entries {
		if _, err := k.create(ctx, e.Question, e.Answer, frontdeskv1.KnowledgeSourceInitial); err != nil {
			return i, fmt.Errorf("failed to seed knowledge entry %d: %w", i, err)
		}
	}
	k.log.Infow("Seeded knowledge base", "entries", len(entries))
	return len(entries), nil
}

// DefaultSeed is the salon's initial knowledge.
func DefaultSeed() []SeedEntry {
	return []SeedEntry{
		{Question: "What are your hours?", Answer: "Monday-Saturday 9 AM to 7 PM, Sunday 10 AM to 5 PM"},
		{Question: "What services do you offer?", Answer: "Hair cutting, coloring, styling, treatments, extensions, perms"},
		{Question: "What are your prices?", Answer: "Haircuts from $45, coloring from $85, styling from $35, treatments from $25"},
		{Question: "Where are you located?", Answer: "123 Beauty Lane, Downtown District, City"},
		{Question: "What is your phone number?", Answer: "(555) 123-4567"},
		{Question: "What is your website?", Answer: "beautyhairsalon.com"},
		{Question: "How do I book an appointment?", Answer: "Book online at beautyhairsalon.com or call us"},
		{Question: "Is there parking?", Answer: "Free parking available in building lot"},
		{Question: "Do you take walk-ins?", Answer: "Walk-ins welcome, but appointments recommended"},
	}
}
