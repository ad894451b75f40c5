package application

import (
	"context"
	"fmt"
	"log/slog"

	"figpanel/internal/domain/model"
	"figpanel/internal/domain/port/driven"
)

// CollectionService maintains the local mirror of the remote collection. It
// is the wizard's cache invalidation listener: a completed run that queued
// items triggers a full refresh.
type CollectionService struct {
	figures driven.FigureStore
	client  driven.RemoteClient
}

var _ CacheInvalidator = (*CollectionService)(nil)

func NewCollectionService(figures driven.FigureStore, client driven.RemoteClient) *CollectionService {
	return &CollectionService{figures: figures, client: client}
}

// List returns all locally cached figures.
func (s *CollectionService) List(ctx context.Context) ([]model.Figure, error) {
	return s.figures.ListAll(ctx)
}

// Get returns one cached figure by its remote id, or nil when not cached.
func (s *CollectionService) Get(ctx context.Context, remoteID int64) (*model.Figure, error) {
	return s.figures.GetByRemoteID(ctx, remoteID)
}

// Count returns the number of cached figures.
func (s *CollectionService) Count(ctx context.Context) (int, error) {
	return s.figures.Count(ctx)
}

// Save upserts one figure into the local mirror.
func (s *CollectionService) Save(ctx context.Context, fig model.Figure) error {
	return s.figures.Upsert(ctx, fig)
}

// RefreshFromRemote replaces the local mirror with the remote collection.
func (s *CollectionService) RefreshFromRemote(ctx context.Context) (int, error) {
	figs, err := s.client.FetchCollection(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetching collection: %w", err)
	}
	if err := s.figures.ReplaceAll(ctx, figs); err != nil {
		return 0, fmt.Errorf("replacing local collection: %w", err)
	}
	return len(figs), nil
}

// Invalidate refreshes the mirror after a sync run queued items. Refresh
// failures are logged, never propagated; the next manual refresh catches up.
func (s *CollectionService) Invalidate(queued int) {
	n, err := s.RefreshFromRemote(context.Background())
	if err != nil {
		slog.Error("collection refresh after sync failed", "queued", queued, "error", err)
		return
	}
	slog.Info("collection refreshed after sync", "queued", queued, "figures", n)
}
