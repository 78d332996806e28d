// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

// Package sqlite implements store.Store on top of SQLite.
//
// Conditional replaces are expressed as UPDATE ... WHERE id = ? AND version = ?;
// zero affected rows means either the record is gone or a concurrent writer won.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	frontdeskv1 "github.com/telekom/frontdesk/api/v1"
	"github.com/telekom/frontdesk/pkg/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS escalations (
	id          TEXT PRIMARY KEY,
	question    TEXT NOT NULL,
	caller_info TEXT NOT NULL,
	status      TEXT NOT NULL,
	created_at  TEXT NOT NULL,
	timeout_at  TEXT NOT NULL,
	resolved_at TEXT,
	answer      TEXT,
	answered_by TEXT,
	session_id  TEXT,
	version     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_escalations_status ON escalations(status);

CREATE TABLE IF NOT EXISTS knowledge_entries (
	id         TEXT PRIMARY KEY,
	question   TEXT NOT NULL,
	answer     TEXT NOT NULL,
	source     TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	use_count  INTEGER NOT NULL DEFAULT 0,
	version    INTEGER NOT NULL
);
`

// timeLayout is fixed width so that lexical order on the text columns matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store is a SQLite backed store.Store.
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// Open opens (or creates) the database at path and applies the schema.
// Use ":memory:" for an ephemeral database.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %q: %w", path, err)
	}
	// SQLite allows a single writer; a single connection also keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply sqlite schema: %w", err)
	}
	return s, nil
}

// New wraps an already opened database. The schema must be applied by the caller.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Ping(ctx context.Context) error {
	return store.Unavailable("ping sqlite", s.db.PingContext(ctx))
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateEscalation(ctx context.Context, e *frontdeskv1.Escalation) error {
	if err := e.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO escalations (id, question, caller_info, status, created_at, timeout_at, resolved_at, answer, answered_by, session_id, version) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
		e.ID, e.Question, e.CallerInfo, string(e.Status),
		e.CreatedAt.UTC().Format(timeLayout), e.TimeoutAt.UTC().Format(timeLayout),
		nullTime(e.ResolvedAt), nullString(e.Answer), nullString(e.AnsweredBy), nullString(e.SessionID),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("escalation %q: %w", e.ID, store.ErrAlreadyExists)
		}
		return store.Unavailable("failed to create escalation", err)
	}
	e.Version = 1
	return nil
}

const escalationColumns = `id, question, caller_info, status, created_at, timeout_at, resolved_at, answer, answered_by, session_id, version`

func (s *Store) GetEscalation(ctx context.Context, id string) (*frontdeskv1.Escalation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+escalationColumns+` FROM escalations WHERE id = ?`, id)
	e, err := scanEscalation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("escalation %q: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Store) ListEscalations(ctx context.Context) ([]*frontdeskv1.Escalation, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+escalationColumns+` FROM escalations ORDER BY created_at DESC`)
	if err != nil {
		return nil, store.Unavailable("failed to list escalations", err)
	}
	defer rows.Close()

	var out []*frontdeskv1.Escalation
	for rows.Next() {
		e, err := scanEscalation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Unavailable("failed to iterate escalations", err)
	}
	return out, nil
}

func (s *Store) ReplaceEscalation(ctx context.Context, e *frontdeskv1.Escalation, expectedVersion int64) error {
	if err := e.Validate(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE escalations SET question = ?, caller_info = ?, status = ?, created_at = ?, timeout_at = ?, resolved_at = ?, answer = ?, answered_by = ?, session_id = ?, version = version + 1 WHERE id = ? AND version = ?`,
		e.Question, e.CallerInfo, string(e.Status),
		e.CreatedAt.UTC().Format(timeLayout), e.TimeoutAt.UTC().Format(timeLayout),
		nullTime(e.ResolvedAt), nullString(e.Answer), nullString(e.AnsweredBy), nullString(e.SessionID),
		e.ID, expectedVersion,
	)
	if err != nil {
		return store.Unavailable("failed to replace escalation", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return store.Unavailable("failed to replace escalation", err)
	}
	if n == 0 {
		return s.missOrConflict(ctx, "escalations", "escalation", e.ID, expectedVersion)
	}
	e.Version = expectedVersion + 1
	return nil
}

func (s *Store) CreateKnowledge(ctx context.Context, k *frontdeskv1.KnowledgeEntry) error {
	if err := k.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO knowledge_entries (id, question, answer, source, created_at, updated_at, use_count, version) VALUES (?, ?, ?, ?, ?, ?, ?, 1)`,
		k.ID, k.Question, k.Answer, string(k.Source),
		k.CreatedAt.UTC().Format(timeLayout), k.UpdatedAt.UTC().Format(timeLayout), k.UseCount,
	)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("knowledge entry %q: %w", k.ID, store.ErrAlreadyExists)
		}
		return store.Unavailable("failed to create knowledge entry", err)
	}
	k.Version = 1
	return nil
}

const knowledgeColumns = `id, question, answer, source, created_at, updated_at, use_count, version`

func (s *Store) GetKnowledge(ctx context.Context, id string) (*frontdeskv1.KnowledgeEntry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+knowledgeColumns+` FROM knowledge_entries WHERE id = ?`, id)
	k, err := scanKnowledge(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("knowledge entry %q: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return k, nil
}

func (s *Store) ListKnowledge(ctx context.Context) ([]*frontdeskv1.KnowledgeEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+knowledgeColumns+` FROM knowledge_entries ORDER BY updated_at DESC`)
	if err != nil {
		return nil, store.Unavailable("failed to list knowledge entries", err)
	}
	defer rows.Close()

	var out []*frontdeskv1.KnowledgeEntry
	for rows.Next() {
		k, err := scanKnowledge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Unavailable("failed to iterate knowledge entries", err)
	}
	return out, nil
}

func (s *Store) ReplaceKnowledge(ctx context.Context, k *frontdeskv1.KnowledgeEntry, expectedVersion int64) error {
	if err := k.Validate(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE knowledge_entries SET question = ?, answer = ?, source = ?, created_at = ?, updated_at = ?, use_count = ?, version = version + 1 WHERE id = ? AND version = ?`,
		k.Question, k.Answer, string(k.Source),
		k.CreatedAt.UTC().Format(timeLayout), k.UpdatedAt.UTC().Format(timeLayout), k.UseCount,
		k.ID, expectedVersion,
	)
	if err != nil {
		return store.Unavailable("failed to replace knowledge entry", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return store.Unavailable("failed to replace knowledge entry", err)
	}
	if n == 0 {
		return s.missOrConflict(ctx, "knowledge_entries", "knowledge entry", k.ID, expectedVersion)
	}
	k.Version = expectedVersion + 1
	return nil
}

// missOrConflict explains why a conditional update touched no rows.
func (s *Store) missOrConflict(ctx context.Context, table, kind, id string, expectedVersion int64) error {
	var current int64
	err := s.db.QueryRowContext(ctx, `SELECT version FROM `+table+` WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %q: %w", kind, id, store.ErrNotFound)
	}
	if err != nil {
		return store.Unavailable("failed to read version", err)
	}
	return &store.ConflictError{Kind: kind, ID: id, ExpectedVersion: expectedVersion, CurrentVersion: current}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEscalation(row scanner) (*frontdeskv1.Escalation, error) {
	var (
		e                    frontdeskv1.Escalation
		status               string
		createdAt, timeoutAt string
		resolvedAt           sql.NullString
		answer, answeredBy   sql.NullString
		sessionID            sql.NullString
	)
	err := row.Scan(&e.ID, &e.Question, &e.CallerInfo, &status, &createdAt, &timeoutAt, &resolvedAt, &answer, &answeredBy, &sessionID, &e.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, store.Unavailable("failed to scan escalation", err)
	}

	e.Status = frontdeskv1.EscalationStatus(status)
	if e.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("escalation %q: invalid created_at: %w", e.ID, err)
	}
	if e.TimeoutAt, err = time.Parse(timeLayout, timeoutAt); err != nil {
		return nil, fmt.Errorf("escalation %q: invalid timeout_at: %w", e.ID, err)
	}
	if resolvedAt.Valid {
		t, err := time.Parse(timeLayout, resolvedAt.String)
		if err != nil {
			return nil, fmt.Errorf("escalation %q: invalid resolved_at: %w", e.ID, err)
		}
		e.ResolvedAt = &t
	}
	e.Answer = answer.String
	e.AnsweredBy = answeredBy.String
	e.SessionID = sessionID.String

	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}

func scanKnowledge(row scanner) (*frontdeskv1.KnowledgeEntry, error) {
	var (
		k                    frontdeskv1.KnowledgeEntry
		source               string
		createdAt, updatedAt string
	)
	err := row.Scan(&k.ID, &k.Question, &k.Answer, &source, &createdAt, &updatedAt, &k.UseCount, &k.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, store.Unavailable("failed to scan knowledge entry", err)
	}
	k.Source = frontdeskv1.KnowledgeSource(source)
	if k.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("knowledge entry %q: invalid created_at: %w", k.ID, err)
	}
	if k.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return nil, fmt.Errorf("knowledge entry %q: invalid updated_at: %w", k.ID, err)
	}
	if err := k.Validate(); err != nil {
		return nil, err
	}
	return &k, nil
}

func isConstraintViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return false
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(timeLayout), Valid: true}
}
