package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Event statuses recorded per item outcome.
const (
	EventCompleted = "completed"
	EventFailed    = "failed"
	EventSkipped   = "skipped"
)

// Event is one per-item outcome within a run.
type Event struct {
	ID           int64
	RunID        string
	ItemID       string
	ItemName     string
	Section      string
	Provider     string
	Status       string
	ProviderRef  string
	ArtifactPath string
	ErrorMessage string
	Duration     time.Duration
	CreatedAt    time.Time
}

// Store persists run history in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the history database.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ensureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	var version int
	err := s.db.QueryRowContext(ctx, `SELECT version FROM schema_info LIMIT 1`).Scan(&version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_info (version) VALUES (?)`, schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("read schema version: %w", err)
	}

	if version != schemaVersion {
		if _, err := s.db.ExecContext(ctx, `DROP TABLE run_events`); err != nil {
			return fmt.Errorf("drop outdated run_events: %w", err)
		}
		if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("recreate schema: %w", err)
		}
		if _, err := s.db.ExecContext(ctx, `UPDATE schema_info SET version = ?`, schemaVersion); err != nil {
			return fmt.Errorf("update schema version: %w", err)
		}
	}
	return nil
}

// RecordEvent inserts one item outcome.
func (s *Store) RecordEvent(ctx context.Context, event Event) error {
	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO run_events (
            run_id, item_id, item_name, section, provider, status,
            provider_ref, artifact_path, error, duration_ms, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.RunID,
		event.ItemID,
		event.ItemName,
		event.Section,
		event.Provider,
		event.Status,
		event.ProviderRef,
		event.ArtifactPath,
		event.ErrorMessage,
		event.Duration.Milliseconds(),
		createdAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert run event: %w", err)
	}
	return nil
}

// LatestRunID returns the run_id of the most recent event, or "" when the
// history is empty.
func (s *Store) LatestRunID(ctx context.Context) (string, error) {
	var runID string
	err := s.db.QueryRowContext(ctx, `SELECT run_id FROM run_events ORDER BY id DESC LIMIT 1`).Scan(&runID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query latest run: %w", err)
	}
	return runID, nil
}

// RunEvents returns all events for one run in insertion order.
func (s *Store) RunEvents(ctx context.Context, runID string) ([]Event, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, run_id, item_id, item_name, section, provider, status,
                provider_ref, artifact_path, error, duration_ms, created_at
         FROM run_events WHERE run_id = ? ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query run events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// ItemEvents returns every recorded outcome for one item across all runs,
// newest first. This is the post-hoc audit path for provider refs.
func (s *Store) ItemEvents(ctx context.Context, itemID string) ([]Event, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, run_id, item_id, item_name, section, provider, status,
                provider_ref, artifact_path, error, duration_ms, created_at
         FROM run_events WHERE item_id = ? ORDER BY id DESC`,
		itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("query item events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]Event, error) {
	var events []Event
	for rows.Next() {
		var (
			event      Event
			durationMS int64
			createdAt  string
		)
		if err := rows.Scan(
			&event.ID,
			&event.RunID,
			&event.ItemID,
			&event.ItemName,
			&event.Section,
			&event.Provider,
			&event.Status,
			&event.ProviderRef,
			&event.ArtifactPath,
			&event.ErrorMessage,
			&durationMS,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan run event: %w", err)
		}
		event.Duration = time.Duration(durationMS) * time.Millisecond
		if parsed, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			event.CreatedAt = parsed
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run events: %w", err)
	}
	return events, nil
}
