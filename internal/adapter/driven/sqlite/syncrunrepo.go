package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"figpanel/internal/domain/model"
	"figpanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SyncRunStore = (*SyncRunRepo)(nil)

// SyncRunRepo is the SQLite implementation of the SyncRunStore port.
type SyncRunRepo struct {
	db *DB
}

// NewSyncRunRepo creates a new SyncRunRepo.
func NewSyncRunRepo(db *DB) *SyncRunRepo {
	return &SyncRunRepo{db: db}
}

// Insert records a finished sync run.
func (r *SyncRunRepo) Insert(ctx context.Context, run model.SyncRun) error {
	warnings, err := marshalJSON(run.Warnings, "[]")
	if err != nil {
		return fmt.Errorf("marshal warnings: %w", err)
	}

	const query = `
		INSERT INTO sync_runs (session_id, status, parsed, queued, skipped, warnings, error, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.Writer.ExecContext(ctx, query,
		run.SessionID, string(run.Status), run.Parsed, run.Queued, run.Skipped,
		warnings, run.Error,
		run.StartedAt.UTC().Format("2006-01-02 15:04:05"),
		run.CompletedAt.UTC().Format("2006-01-02 15:04:05"),
	)
	if err != nil {
		return fmt.Errorf("insert sync run %q: %w", run.SessionID, err)
	}
	return nil
}

// ListRecent returns up to limit runs, most recent first.
func (r *SyncRunRepo) ListRecent(ctx context.Context, limit int) ([]model.SyncRun, error) {
	const query = `
		SELECT id, session_id, status, parsed, queued, skipped, warnings, error, started_at, completed_at
		FROM sync_runs
		ORDER BY completed_at DESC, id DESC
		LIMIT ?`

	rows, err := r.db.Reader.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list sync runs: %w", err)
	}
	defer rows.Close()

	runs := []model.SyncRun{}
	for rows.Next() {
		var run model.SyncRun
		var status, warnings, startedAt, completedAt string

		if err := rows.Scan(&run.ID, &run.SessionID, &status, &run.Parsed, &run.Queued,
			&run.Skipped, &warnings, &run.Error, &startedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("scan sync run: %w", err)
		}

		run.Status = model.SyncRunStatus(status)
		if err := json.Unmarshal([]byte(warnings), &run.Warnings); err != nil {
			return nil, fmt.Errorf("unmarshal warnings for %q: %w", run.SessionID, err)
		}
		if run.StartedAt, err = parseTime(startedAt); err != nil {
			return nil, fmt.Errorf("parse started_at for %q: %w", run.SessionID, err)
		}
		if run.CompletedAt, err = parseTime(completedAt); err != nil {
			return nil, fmt.Errorf("parse completed_at for %q: %w", run.SessionID, err)
		}

		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sync runs: %w", err)
	}

	return runs, nil
}
