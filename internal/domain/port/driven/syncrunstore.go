package driven

import (
	"context"

	"figpanel/internal/domain/model"
)

// SyncRunStore defines the driven port for local sync-run history.
type SyncRunStore interface {
	// Insert records a finished run. Session ids are unique per run.
	Insert(ctx context.Context, run model.SyncRun) error

	// ListRecent returns up to limit runs, most recent first.
	ListRecent(ctx context.Context, limit int) ([]model.SyncRun, error)
}
