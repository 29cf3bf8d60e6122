package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/prompt-labs/internal/domain"
	"github.com/ashureev/prompt-labs/internal/shared"
	_ "modernc.org/sqlite"
)

// Options tunes retry behavior on SQLITE_BUSY.
type Options struct {
	MaxRetries     int
	RetryBaseDelay time.Duration
}

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db   *sql.DB
	opts Options
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string, opts Options) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = 100 * time.Millisecond
	}

	store := &SQLiteStore{db: db, opts: opts}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		last_seen_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_users_last_seen ON users(last_seen_at);

	CREATE TABLE IF NOT EXISTS datasets (
		user_id TEXT PRIMARY KEY,
		samples_json TEXT NOT NULL,
		row_count INTEGER NOT NULL,
		original_filename TEXT NOT NULL,
		labels_json TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS attempts (
		id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		attempt_number INTEGER NOT NULL,
		prompt TEXT NOT NULL,
		llm_output TEXT NOT NULL,
		feedback TEXT NOT NULL,
		chat_history_json TEXT NOT NULL,
		predictions_json TEXT NOT NULL,
		metrics_json TEXT,
		meta_json TEXT NOT NULL,
		task_type TEXT NOT NULL,
		feedback_level TEXT NOT NULL,
		technique TEXT NOT NULL DEFAULT '',
		completed INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (user_id, attempt_number)
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_attempts_id ON attempts(id);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

func (s *SQLiteStore) withRetry(ctx context.Context, op string, fn func() error) error {
	return shared.RetryOnConflict(ctx, op, s.opts.MaxRetries, s.opts.RetryBaseDelay, fn)
}

// GetUser retrieves a user by their user ID.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	query := `
		SELECT user_id, username, last_seen_at, created_at, updated_at
		FROM users WHERE user_id = ?`

	var user domain.User
	var lastSeen, createdAt, updatedAt int64
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&user.UserID, &user.Username, &lastSeen, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}

	user.LastSeenAt = time.Unix(lastSeen, 0)
	user.CreatedAt = time.Unix(createdAt, 0)
	user.UpdatedAt = time.Unix(updatedAt, 0)
	return &user, nil
}

// UpsertUser creates or updates a user record.
func (s *SQLiteStore) UpsertUser(ctx context.Context, user *domain.User) error {
	query := `
	INSERT INTO users (user_id, username, last_seen_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		username = excluded.username,
		last_seen_at = excluded.last_seen_at,
		updated_at = excluded.updated_at`

	err := s.withRetry(ctx, "upsert user", func() error {
		_, err := s.db.ExecContext(ctx, query,
			user.UserID, user.Username, user.LastSeenAt.Unix(),
			user.CreatedAt.Unix(), user.UpdatedAt.Unix(),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// UpdateLastSeen updates the last_seen_at timestamp for a user.
func (s *SQLiteStore) UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error {
	query := `UPDATE users SET last_seen_at = ?, updated_at = ? WHERE user_id = ?`
	result, err := s.db.ExecContext(ctx, query, lastSeen.Unix(), time.Now().Unix(), userID)
	if err != nil {
		return fmt.Errorf("update last_seen: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("UpdateLastSeen affected 0 rows", "user_id", userID)
	}
	return nil
}

// GetDataset retrieves the custom dataset uploaded by a user.
func (s *SQLiteStore) GetDataset(ctx context.Context, userID string) (*domain.Dataset, error) {
	query := `
		SELECT user_id, samples_json, row_count, original_filename, labels_json, created_at, updated_at
		FROM datasets WHERE user_id = ?`

	var ds domain.Dataset
	var samplesJSON, labelsJSON string
	var createdAt, updatedAt int64
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&ds.UserID, &samplesJSON, &ds.Metadata.RowCount, &ds.Metadata.OriginalFilename,
		&labelsJSON, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan dataset row: %w", err)
	}

	if err := json.Unmarshal([]byte(samplesJSON), &ds.Samples); err != nil {
		return nil, fmt.Errorf("decode dataset samples: %w", err)
	}
	if err := json.Unmarshal([]byte(labelsJSON), &ds.Metadata.Labels); err != nil {
		return nil, fmt.Errorf("decode dataset labels: %w", err)
	}
	ds.CreatedAt = time.Unix(createdAt, 0)
	ds.UpdatedAt = time.Unix(updatedAt, 0)
	return &ds, nil
}

// UpsertDataset stores a user's dataset, replacing any previous upload.
func (s *SQLiteStore) UpsertDataset(ctx context.Context, ds *domain.Dataset) error {
	samplesJSON, err := json.Marshal(ds.Samples)
	if err != nil {
		return fmt.Errorf("encode dataset samples: %w", err)
	}
	labelsJSON, err := json.Marshal(ds.Metadata.Labels)
	if err != nil {
		return fmt.Errorf("encode dataset labels: %w", err)
	}

	query := `
	INSERT INTO datasets (user_id, samples_json, row_count, original_filename, labels_json, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		samples_json = excluded.samples_json,
		row_count = excluded.row_count,
		original_filename = excluded.original_filename,
		labels_json = excluded.labels_json,
		updated_at = excluded.updated_at`

	err = s.withRetry(ctx, "upsert dataset", func() error {
		_, err := s.db.ExecContext(ctx, query,
			ds.UserID, string(samplesJSON), ds.Metadata.RowCount, ds.Metadata.OriginalFilename,
			string(labelsJSON), ds.CreatedAt.Unix(), ds.UpdatedAt.Unix(),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("upsert dataset: %w", err)
	}
	return nil
}

// DeleteDataset removes a user's dataset.
func (s *SQLiteStore) DeleteDataset(ctx context.Context, userID string) (bool, error) {
	var rows int64
	err := s.withRetry(ctx, "delete dataset", func() error {
		result, err := s.db.ExecContext(ctx, `DELETE FROM datasets WHERE user_id = ?`, userID)
		if err != nil {
			return err
		}
		rows, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return false, fmt.Errorf("delete dataset for %s: %w", userID, err)
	}
	return rows > 0, nil
}

const attemptColumns = `id, user_id, attempt_number, prompt, llm_output, feedback,
	chat_history_json, predictions_json, metrics_json, meta_json,
	task_type, feedback_level, technique, completed, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAttempt(row rowScanner) (*domain.Attempt, error) {
	var a domain.Attempt
	var historyJSON, predictionsJSON, metaJSON string
	var metricsJSON sql.NullString
	var createdAt, updatedAt int64

	if err := row.Scan(
		&a.ID, &a.UserID, &a.AttemptNumber, &a.Prompt, &a.LLMOutput, &a.Feedback,
		&historyJSON, &predictionsJSON, &metricsJSON, &metaJSON,
		&a.TaskType, &a.FeedbackLevel, &a.Technique, &a.Completed, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(historyJSON), &a.ChatHistory); err != nil {
		return nil, fmt.Errorf("decode chat history: %w", err)
	}
	if err := json.Unmarshal([]byte(predictionsJSON), &a.Predictions); err != nil {
		return nil, fmt.Errorf("decode predictions: %w", err)
	}
	if metricsJSON.Valid && metricsJSON.String != "" {
		a.Metrics = &domain.Report{}
		if err := json.Unmarshal([]byte(metricsJSON.String), a.Metrics); err != nil {
			return nil, fmt.Errorf("decode metrics: %w", err)
		}
	}
	if err := json.Unmarshal([]byte(metaJSON), &a.Meta); err != nil {
		return nil, fmt.Errorf("decode meta: %w", err)
	}
	a.CreatedAt = time.Unix(createdAt, 0)
	a.UpdatedAt = time.Unix(updatedAt, 0)
	return &a, nil
}

// GetAttempt retrieves the attempt stored in a slot.
func (s *SQLiteStore) GetAttempt(ctx context.Context, userID string, attemptNumber int) (*domain.Attempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM attempts WHERE user_id = ? AND attempt_number = ?`
	a, err := scanAttempt(s.db.QueryRowContext(ctx, query, userID, attemptNumber))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan attempt row: %w", err)
	}
	return a, nil
}

// ListAttempts returns a user's attempts ordered by attempt number.
func (s *SQLiteStore) ListAttempts(ctx context.Context, userID string) ([]*domain.Attempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM attempts WHERE user_id = ? ORDER BY attempt_number ASC`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close attempt rows", "error", closeErr)
		}
	}()

	attempts := []*domain.Attempt{}
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attempt row: %w", err)
		}
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}
	return attempts, nil
}

// UpsertAttempt replaces the attempt stored in (UserID, AttemptNumber). On
// return a.ID and a.CreatedAt hold the values kept by the slot.
func (s *SQLiteStore) UpsertAttempt(ctx context.Context, a *domain.Attempt) error {
	history, err := json.Marshal(a.ChatHistory)
	if err != nil {
		return fmt.Errorf("encode chat history: %w", err)
	}
	predictions, err := json.Marshal(a.Predictions)
	if err != nil {
		return fmt.Errorf("encode predictions: %w", err)
	}
	var metrics any
	if a.Metrics != nil {
		b, err := json.Marshal(a.Metrics)
		if err != nil {
			return fmt.Errorf("encode metrics: %w", err)
		}
		metrics = string(b)
	}
	meta, err := json.Marshal(a.Meta)
	if err != nil {
		return fmt.Errorf("encode meta: %w", err)
	}

	query := `
	INSERT INTO attempts (` + attemptColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(user_id, attempt_number) DO UPDATE SET
		prompt = excluded.prompt,
		llm_output = excluded.llm_output,
		feedback = excluded.feedback,
		chat_history_json = excluded.chat_history_json,
		predictions_json = excluded.predictions_json,
		metrics_json = excluded.metrics_json,
		meta_json = excluded.meta_json,
		task_type = excluded.task_type,
		feedback_level = excluded.feedback_level,
		technique = excluded.technique,
		completed = excluded.completed,
		updated_at = excluded.updated_at
	RETURNING id, created_at`

	var id string
	var createdAt int64
	err = s.withRetry(ctx, "upsert attempt", func() error {
		return s.db.QueryRowContext(ctx, query,
			a.ID, a.UserID, a.AttemptNumber, a.Prompt, a.LLMOutput, a.Feedback,
			string(history), string(predictions), metrics, string(meta),
			a.TaskType, a.FeedbackLevel, a.Technique, a.Completed,
			a.CreatedAt.Unix(), a.UpdatedAt.Unix(),
		).Scan(&id, &createdAt)
	})
	if err != nil {
		return fmt.Errorf("upsert attempt: %w", err)
	}

	a.ID = id
	a.CreatedAt = time.Unix(createdAt, 0)
	return nil
}

// PurgeInactiveUsers deletes users idle longer than ttl with their data.
func (s *SQLiteStore) PurgeInactiveUsers(ctx context.Context, ttl time.Duration) (int64, error) {
	threshold := time.Now().Add(-ttl).Unix()

	var purged int64
	err := s.withRetry(ctx, "purge inactive users", func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		stale := `SELECT user_id FROM users WHERE last_seen_at < ?`
		if _, err := tx.ExecContext(ctx, `DELETE FROM attempts WHERE user_id IN (`+stale+`)`, threshold); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM datasets WHERE user_id IN (`+stale+`)`, threshold); err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM users WHERE last_seen_at < ?`, threshold)
		if err != nil {
			return err
		}
		if purged, err = result.RowsAffected(); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return 0, fmt.Errorf("purge inactive users: %w", err)
	}
	return purged, nil
}
