// Package state persists sessions so a stopped or interrupted run can
// resume with its history and iteration count intact. Sessions are
// keyed by id and share nothing in memory; isolation between sessions
// is a hard requirement.
package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/driftworks/agentd/internal/events"
)

// ErrNotFound is returned when no session with the given id exists.
var ErrNotFound = errors.New("session not found")

// Session is the persisted snapshot of one controller run.
type Session struct {
	ID        string
	Agent     string
	Task      string
	State     string
	Iteration int
	Records   []events.Record
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Save upserts the session row and appends any records not yet
// persisted. Records are immutable, so existing rows are never
// rewritten.
func (s *Store) Save(ctx context.Context, sess Session) error {
	if sess.ID == "" {
		return fmt.Errorf("session id is required")
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (id, agent, task, state, iteration, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET state = excluded.state, iteration = excluded.iteration, updated_at = excluded.updated_at
	`, sess.ID, sess.Agent, sess.Task, sess.State, sess.Iteration, now, now)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	for _, rec := range sess.Records {
		data, err := events.MarshalRecord(rec)
		if err != nil {
			return fmt.Errorf("encode record %d: %w", rec.Seq, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO session_records (session_id, seq, record, created_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(session_id, seq) DO NOTHING
		`, sess.ID, rec.Seq, string(data), now)
		if err != nil {
			return fmt.Errorf("insert record %d: %w", rec.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

// Load restores a session snapshot, or ErrNotFound.
func (s *Store) Load(ctx context.Context, id string) (Session, error) {
	var sess Session
	var createdAtStr, updatedAtStr string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, agent, task, state, iteration, created_at, updated_at FROM sessions WHERE id = ?
	`, id).Scan(&sess.ID, &sess.Agent, &sess.Task, &sess.State, &sess.Iteration, &createdAtStr, &updatedAtStr)
	if err == sql.ErrNoRows {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("load session: %w", err)
	}
	sess.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAtStr)
	sess.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAtStr)

	rows, err := s.db.QueryContext(ctx, `
		SELECT record FROM session_records WHERE session_id = ? ORDER BY seq ASC
	`, id)
	if err != nil {
		return Session{}, fmt.Errorf("load records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return Session{}, fmt.Errorf("scan record: %w", err)
		}
		rec, err := events.UnmarshalRecord([]byte(data))
		if err != nil {
			return Session{}, fmt.Errorf("decode record: %w", err)
		}
		sess.Records = append(sess.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return Session{}, fmt.Errorf("iterate records: %w", err)
	}
	return sess, nil
}

// List returns recent sessions, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, agent, task, state, iteration, created_at, updated_at
		FROM sessions ORDER BY updated_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var sess Session
		var createdAtStr, updatedAtStr string
		if err := rows.Scan(&sess.ID, &sess.Agent, &sess.Task, &sess.State, &sess.Iteration, &createdAtStr, &updatedAtStr); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sess.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAtStr)
		sess.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAtStr)
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}
