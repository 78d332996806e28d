// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

// Package redis implements store.Store on Redis.
//
// Records are stored as JSON under <prefix><kind>:<id>, and every id is tracked in a
// per-kind index set. An index entry whose key is missing is ignored. Conditional replaces run inside WATCH/MULTI so that a concurrent
// write to the same key aborts the transaction.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	frontdeskv1 "github.com/telekom/frontdesk/api/v1"
	"github.com/telekom/frontdesk/pkg/store"
)

const (
	kindEscalation = "escalation"
	kindKnowledge  = "knowledge"
)

// Config holds the connection settings.
type Config struct {
	Address      string
	Password     string
	Database     int
	KeyPrefix    string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
}

// DefaultConfig returns settings for a local Redis.
func DefaultConfig() Config {
	return Config{
		Address:      "localhost:6379",
		KeyPrefix:    "frontdesk:",
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	}
}

// Store is a Redis backed store.Store.
type Store struct {
	client redis.UniversalClient
	prefix string
}

var _ store.Store = (*Store)(nil)

// New connects to Redis and verifies the connection.
func New(ctx context.Context, cfg Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.Database,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
	})
	s := NewWithClient(client, cfg.KeyPrefix)
	if err := s.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return s, nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client redis.UniversalClient, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

func (s *Store) Ping(ctx context.Context) error {
	return store.Unavailable("ping redis", s.client.Ping(ctx).Err())
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) key(kind, id string) string {
	return s.prefix + kind + ":" + id
}

func (s *Store) indexKey(kind string) string {
	return s.prefix + kind + "s"
}

func (s *Store) CreateEscalation(ctx context.Context, e *frontdeskv1.Escalation) error {
	if err := e.Validate(); err != nil {
		return err
	}
	stored := e.DeepCopy()
	stored.Version = 1
	if err := s.create(ctx, kindEscalation, e.ID, stored); err != nil {
		return err
	}
	e.Version = 1
	return nil
}

func (s *Store) GetEscalation(ctx context.Context, id string) (*frontdeskv1.Escalation, error) {
	var e frontdeskv1.Escalation
	if err := s.get(ctx, s.client, kindEscalation, id, &e); err != nil {
		return nil, err
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Store) ListEscalations(ctx context.Context) ([]*frontdeskv1.Escalation, error) {
	raw, err := s.list(ctx, kindEscalation)
	if err != nil {
		return nil, err
	}
	out := make([]*frontdeskv1.Escalation, 0, len(raw))
	for _, data := range raw {
		var e frontdeskv1.Escalation
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("failed to decode escalation: %w", err)
		}
		if err := e.Validate(); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, nil
}

func (s *Store) ReplaceEscalation(ctx context.Context, e *frontdeskv1.Escalation, expectedVersion int64) error {
	if err := e.Validate(); err != nil {
		return err
	}
	next := e.DeepCopy()
	next.Version = expectedVersion + 1
	err := s.replace(ctx, kindEscalation, e.ID, expectedVersion, next, func(tx *redis.Tx) (int64, error) {
		var cur frontdeskv1.Escalation
		if err := s.get(ctx, tx, kindEscalation, e.ID, &cur); err != nil {
			return 0, err
		}
		return cur.Version, nil
	})
	if err != nil {
		return err
	}
	e.Version = next.Version
	return nil
}

func (s *Store) CreateKnowledge(ctx context.Context, k *frontdeskv1.KnowledgeEntry) error {
	if err := k.Validate(); err != nil {
		return err
	}
	stored := k.DeepCopy()
	stored.Version = 1
	if err := s.create(ctx, kindKnowledge, k.ID, stored); err != nil {
		return err
	}
	k.Version = 1
	return nil
}

func (s *Store) GetKnowledge(ctx context.Context, id string) (*frontdeskv1.KnowledgeEntry, error) {
	var k frontdeskv1.KnowledgeEntry
	if err := s.get(ctx, s.client, kindKnowledge, id, &k); err != nil {
		return nil, err
	}
	if err := k.Validate(); err != nil {
		return nil, err
	}
	return &k, nil
}

func (s *Store) ListKnowledge(ctx context.Context) ([]*frontdeskv1.KnowledgeEntry, error) {
	raw, err := s.list(ctx, kindKnowledge)
	if err != nil {
		return nil, err
	}
	out := make([]*frontdeskv1.KnowledgeEntry, 0, len(raw))
	for _, data := range raw {
		var k frontdeskv1.KnowledgeEntry
		if err := json.Unmarshal(data, &k); err != nil {
			return nil, fmt.Errorf("failed to decode knowledge entry: %w", err)
		}
		if err := k.Validate(); err != nil {
			return nil, err
		}
		out = append(out, &k)
	}
	return out, nil
}

func (s *Store) ReplaceKnowledge(ctx context.Context, k *frontdeskv1.KnowledgeEntry, expectedVersion int64) error {
	if err := k.Validate(); err != nil {
		return err
	}
	next := k.DeepCopy()
	next.Version = expectedVersion + 1
	err := s.replace(ctx, kindKnowledge, k.ID, expectedVersion, next, func(tx *redis.Tx) (int64, error) {
		var cur frontdeskv1.KnowledgeEntry
		if err := s.get(ctx, tx, kindKnowledge, k.ID, &cur); err != nil {
			return 0, err
		}
		return cur.Version, nil
	})
	if err != nil {
		return err
	}
	k.Version = next.Version
	return nil
}

func (s *Store) create(ctx context.Context, kind, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", kind, err)
	}
	// The id is indexed before the record is written. A failed write leaves an
	// index entry without a key, which list and get treat as absent.
	if err := s.client.SAdd(ctx, s.indexKey(kind), id).Err(); err != nil {
		return store.Unavailable("failed to index "+kind, err)
	}
	ok, err := s.client.SetNX(ctx, s.key(kind, id), data, 0).Result()
	if err != nil {
		return store.Unavailable("failed to create "+kind, err)
	}
	if !ok {
		return fmt.Errorf("%s %q: %w", kind, id, store.ErrAlreadyExists)
	}
	return nil
}

func (s *Store) get(ctx context.Context, c redis.Cmdable, kind, id string, v any) error {
	data, err := c.Get(ctx, s.key(kind, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("%s %q: %w", kind, id, store.ErrNotFound)
	}
	if err != nil {
		return store.Unavailable("failed to get "+kind, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s %q: %w", kind, id, err)
	}
	return nil
}

func (s *Store) list(ctx context.Context, kind string) ([][]byte, error) {
	ids, err := s.client.SMembers(ctx, s.indexKey(kind)).Result()
	if err != nil {
		return nil, store.Unavailable("failed to list "+kind, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(kind, id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, store.Unavailable("failed to list "+kind, err)
	}
	out := make([][]byte, 0, len(vals))
	for _, v := range vals {
		str, ok := v.(string)
		if !ok {
			// indexed but never written, or deleted in between
			continue
		}
		out = append(out, []byte(str))
	}
	return out, nil
}

// replace writes next under WATCH so that any concurrent change to the key aborts the write.
func (s *Store) replace(ctx context.Context, kind, id string, expectedVersion int64, next any, currentVersion func(*redis.Tx) (int64, error)) error {
	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", kind, err)
	}
	key := s.key(kind, id)

	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := currentVersion(tx)
		if err != nil {
			return err
		}
		if cur != expectedVersion {
			return &store.ConflictError{Kind: kind, ID: id, ExpectedVersion: expectedVersion, CurrentVersion: cur}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.TxFailedErr):
		return &store.ConflictError{Kind: kind, ID: id, ExpectedVersion: expectedVersion, CurrentVersion: -1}
	case errors.Is(err, store.ErrConflict), errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrUnavailable):
		return err
	default:
		return store.Unavailable("failed to replace "+kind, err)
	}
}
