package driven

import (
	"context"

	"figpanel/internal/domain/model"
)

// FigureStore defines the driven port for the local collection cache.
type FigureStore interface {
	// Upsert inserts or updates a figure keyed by its remote id.
	Upsert(ctx context.Context, fig model.Figure) error

	// GetByRemoteID returns the figure with the given remote id, or nil when
	// it is not cached.
	GetByRemoteID(ctx context.Context, remoteID int64) (*model.Figure, error)

	// ListAll returns every cached figure ordered by name.
	ListAll(ctx context.Context) ([]model.Figure, error)

	// ReplaceAll atomically swaps the whole cache for the given figures.
	// Used when a completed sync invalidates the local mirror.
	ReplaceAll(ctx context.Context, figs []model.Figure) error

	// Count returns the number of cached figures.
	Count(ctx context.Context) (int, error)
}
