// Package queue persists the per-user offline mutation queue. The store is
// the single source of truth for pending work: a record enqueued here has
// survived the user action even if the process dies before any sync attempt.
package queue

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"kudi/internal/mutation"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the device-local queue database and
// applies migrations.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Enqueue durably appends a record to the user's queue. When Enqueue returns
// without error the record survives a process restart; any failure here is
// surfaced to the caller because silently dropping a mutation would violate
// durability.
func (s *Store) Enqueue(ctx context.Context, rec *mutation.Record) error {
	payload, err := rec.EncodePayload()
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO mutation_queue (id, user_id, kind, payload, created_at, retry_count, last_attempt_at, last_error)
		VALUES (?, ?, ?, ?, ?, 0, NULL, NULL)`,
		rec.ID, rec.UserID, string(rec.Kind), string(payload), rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("enqueue mutation %s: %w", rec.ID, err)
	}

	slog.DebugContext(ctx, "Mutation enqueued",
		"mutation_id", rec.ID,
		"user_id", rec.UserID,
		"kind", rec.Kind)

	return nil
}

// List returns a snapshot of the user's pending mutations in enqueue order.
func (s *Store) List(ctx context.Context, userID string) ([]mutation.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, kind, payload, created_at, retry_count, last_attempt_at, last_error
		FROM mutation_queue
		WHERE user_id = ?
		ORDER BY seq ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list mutations for %s: %w", userID, err)
	}
	defer rows.Close()

	var out []mutation.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mutations for %s: %w", userID, err)
	}
	return out, nil
}

// Get returns a single queued mutation, or sql.ErrNoRows if absent.
func (s *Store) Get(ctx context.Context, userID, id string) (*mutation.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, kind, payload, created_at, retry_count, last_attempt_at, last_error
		FROM mutation_queue
		WHERE user_id = ? AND id = ?`,
		userID, id,
	)
	return scanRecord(row)
}

// RetryPatch carries the retry metadata the executor writes back after a
// failed attempt. Only the executor produces these.
type RetryPatch struct {
	RetryCount    int
	LastAttemptAt time.Time
	LastError     string
}

// Update merges retry metadata into the stored record. A missing id is a
// benign no-op: the record was already removed by a racing successful sync.
func (s *Store) Update(ctx context.Context, userID, id string, patch RetryPatch) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE mutation_queue
		SET retry_count = ?, last_attempt_at = ?, last_error = ?
		WHERE user_id = ? AND id = ?`,
		patch.RetryCount, patch.LastAttemptAt.UTC().Format(time.RFC3339Nano), patch.LastError,
		userID, id,
	)
	if err != nil {
		return fmt.Errorf("update mutation %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		slog.DebugContext(ctx, "Update on already-removed mutation", "mutation_id", id, "user_id", userID)
	}
	return nil
}

// Remove deletes a record after its remote application was confirmed.
// Removing an absent id is a no-op.
func (s *Store) Remove(ctx context.Context, userID, id string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM mutation_queue WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("remove mutation %s: %w", id, err)
	}
	return nil
}

// Clear drops the user's entire queue without contacting the remote store.
// Already-synced remote data is unaffected.
func (s *Store) Clear(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM mutation_queue WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("clear queue for %s: %w", userID, err)
	}
	slog.InfoContext(ctx, "Local mutation queue cleared", "user_id", userID)
	return nil
}

// Depth returns the number of pending mutations for a user.
func (s *Store) Depth(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM mutation_queue WHERE user_id = ?`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("queue depth for %s: %w", userID, err)
	}
	return n, nil
}

// TotalDepth returns the number of pending mutations across all users.
func (s *Store) TotalDepth(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM mutation_queue`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("total queue depth: %w", err)
	}
	return n, nil
}

// UsersWithPending lists user ids that currently have queued mutations,
// ordered by their oldest entry so the longest-waiting user flushes first.
func (s *Store) UsersWithPending(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id FROM mutation_queue
		GROUP BY user_id
		ORDER BY MIN(seq) ASC`)
	if err != nil {
		return nil, fmt.Errorf("users with pending mutations: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user ids: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*mutation.Record, error) {
	var (
		rec           mutation.Record
		kind          string
		payload       string
		createdAt     string
		lastAttemptAt sql.NullString
		lastError     sql.NullString
	)
	if err := row.Scan(&rec.ID, &rec.UserID, &kind, &payload, &createdAt,
		&rec.RetryCount, &lastAttemptAt, &lastError); err != nil {
		return nil, err
	}

	rec.Kind = mutation.Kind(kind)

	created, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at for %s: %w", rec.ID, err)
	}
	rec.CreatedAt = created

	if lastAttemptAt.Valid && lastAttemptAt.String != "" {
		attempt, err := time.Parse(time.RFC3339Nano, lastAttemptAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse last_attempt_at for %s: %w", rec.ID, err)
		}
		rec.LastAttemptAt = &attempt
	}
	if lastError.Valid {
		rec.LastError = lastError.String
	}

	decoded, err := mutation.DecodePayload(rec.Kind, []byte(payload))
	if err != nil {
		return nil, err
	}
	rec.Payload = decoded

	return &rec, nil
}
