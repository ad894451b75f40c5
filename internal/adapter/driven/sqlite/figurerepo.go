package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"figpanel/internal/domain/model"
	"figpanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.FigureStore = (*FigureRepo)(nil)

// FigureRepo is the SQLite implementation of the FigureStore port.
// Role, release, and sub-object fields are stored as JSON columns.
type FigureRepo struct {
	db *DB
}

// NewFigureRepo creates a new FigureRepo.
func NewFigureRepo(db *DB) *FigureRepo {
	return &FigureRepo{db: db}
}

const figureColumns = `remote_id, name, character, origin, version, scale, category,
	manufacturer, status, count, notes, image_url, item_url,
	companies, artists, releases, dimensions, purchase, merchant,
	added_at, updated_at`

// Upsert inserts or updates a figure keyed by remote_id.
func (r *FigureRepo) Upsert(ctx context.Context, fig model.Figure) error {
	cols, err := marshalFigure(fig)
	if err != nil {
		return err
	}

	const query = `
		INSERT INTO figures (` + figureColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(remote_id) DO UPDATE SET
			name = excluded.name,
			character = excluded.character,
			origin = excluded.origin,
			version = excluded.version,
			scale = excluded.scale,
			category = excluded.category,
			manufacturer = excluded.manufacturer,
			status = excluded.status,
			count = excluded.count,
			notes = excluded.notes,
			image_url = excluded.image_url,
			item_url = excluded.item_url,
			companies = excluded.companies,
			artists = excluded.artists,
			releases = excluded.releases,
			dimensions = excluded.dimensions,
			purchase = excluded.purchase,
			merchant = excluded.merchant,
			updated_at = excluded.updated_at`

	if _, err := r.db.Writer.ExecContext(ctx, query, cols...); err != nil {
		return fmt.Errorf("upsert figure %d: %w", fig.RemoteID, err)
	}
	return nil
}

// GetByRemoteID returns the figure with the given remote id, or nil when absent.
func (r *FigureRepo) GetByRemoteID(ctx context.Context, remoteID int64) (*model.Figure, error) {
	const query = `SELECT id, ` + figureColumns + ` FROM figures WHERE remote_id = ?`

	row := r.db.Reader.QueryRowContext(ctx, query, remoteID)
	fig, err := scanFigure(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get figure %d: %w", remoteID, err)
	}
	return fig, nil
}

// ListAll returns every cached figure ordered by name.
func (r *FigureRepo) ListAll(ctx context.Context) ([]model.Figure, error) {
	const query = `SELECT id, ` + figureColumns + ` FROM figures ORDER BY name COLLATE NOCASE`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list figures: %w", err)
	}
	defer rows.Close()

	figs := []model.Figure{}
	for rows.Next() {
		fig, err := scanFigure(rows)
		if err != nil {
			return nil, fmt.Errorf("scan figure: %w", err)
		}
		figs = append(figs, *fig)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate figures: %w", err)
	}

	return figs, nil
}

// ReplaceAll swaps the whole cache for the given figures in one transaction.
func (r *FigureRepo) ReplaceAll(ctx context.Context, figs []model.Figure) error {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM figures`); err != nil {
		return fmt.Errorf("clear figures: %w", err)
	}

	const query = `
		INSERT INTO figures (` + figureColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	for _, fig := range figs {
		cols, err := marshalFigure(fig)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, cols...); err != nil {
			return fmt.Errorf("insert figure %d: %w", fig.RemoteID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace: %w", err)
	}
	return nil
}

// Count returns the number of cached figures.
func (r *FigureRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.Reader.QueryRowContext(ctx, `SELECT COUNT(*) FROM figures`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count figures: %w", err)
	}
	return n, nil
}

// marshalFigure renders a figure into the column order of figureColumns.
func marshalFigure(fig model.Figure) ([]any, error) {
	companies, err := marshalJSON(fig.Companies, "[]")
	if err != nil {
		return nil, fmt.Errorf("marshal companies: %w", err)
	}
	artists, err := marshalJSON(fig.Artists, "[]")
	if err != nil {
		return nil, fmt.Errorf("marshal artists: %w", err)
	}
	releases, err := marshalJSON(fig.Releases, "[]")
	if err != nil {
		return nil, fmt.Errorf("marshal releases: %w", err)
	}

	dimensions, err := marshalNullable(fig.Dimensions)
	if err != nil {
		return nil, fmt.Errorf("marshal dimensions: %w", err)
	}
	purchase, err := marshalNullable(fig.Purchase)
	if err != nil {
		return nil, fmt.Errorf("marshal purchase: %w", err)
	}
	merchant, err := marshalNullable(fig.Merchant)
	if err != nil {
		return nil, fmt.Errorf("marshal merchant: %w", err)
	}

	count := fig.Count
	if count == 0 {
		count = 1
	}

	return []any{
		fig.RemoteID, fig.Name, fig.Character, fig.Origin, fig.Version, fig.Scale,
		fig.Category, fig.Manufacturer, string(fig.Status), count, fig.Notes,
		fig.ImageURL, fig.ItemURL, companies, artists, releases,
		dimensions, purchase, merchant,
		fig.AddedAt.UTC().Format("2006-01-02 15:04:05"),
		fig.UpdatedAt.UTC().Format("2006-01-02 15:04:05"),
	}, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanFigure reads one row in the `id, figureColumns` order.
func scanFigure(s scanner) (*model.Figure, error) {
	var fig model.Figure
	var status string
	var companies, artists, releases string
	var dimensions, purchase, merchant sql.NullString
	var addedAt, updatedAt string

	err := s.Scan(
		&fig.ID, &fig.RemoteID, &fig.Name, &fig.Character, &fig.Origin, &fig.Version,
		&fig.Scale, &fig.Category, &fig.Manufacturer, &status, &fig.Count, &fig.Notes,
		&fig.ImageURL, &fig.ItemURL, &companies, &artists, &releases,
		&dimensions, &purchase, &merchant, &addedAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	fig.Status = model.CollectionStatus(status)

	if err := json.Unmarshal([]byte(companies), &fig.Companies); err != nil {
		return nil, fmt.Errorf("unmarshal companies: %w", err)
	}
	if err := json.Unmarshal([]byte(artists), &fig.Artists); err != nil {
		return nil, fmt.Errorf("unmarshal artists: %w", err)
	}
	if err := json.Unmarshal([]byte(releases), &fig.Releases); err != nil {
		return nil, fmt.Errorf("unmarshal releases: %w", err)
	}

	if dimensions.Valid && dimensions.String != "" {
		fig.Dimensions = &model.Dimensions{}
		if err := json.Unmarshal([]byte(dimensions.String), fig.Dimensions); err != nil {
			return nil, fmt.Errorf("unmarshal dimensions: %w", err)
		}
	}
	if purchase.Valid && purchase.String != "" {
		fig.Purchase = &model.PurchaseInfo{}
		if err := json.Unmarshal([]byte(purchase.String), fig.Purchase); err != nil {
			return nil, fmt.Errorf("unmarshal purchase: %w", err)
		}
	}
	if merchant.Valid && merchant.String != "" {
		fig.Merchant = &model.Merchant{}
		if err := json.Unmarshal([]byte(merchant.String), fig.Merchant); err != nil {
			return nil, fmt.Errorf("unmarshal merchant: %w", err)
		}
	}

	if fig.AddedAt, err = parseTime(addedAt); err != nil {
		return nil, fmt.Errorf("parse added_at: %w", err)
	}
	if fig.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &fig, nil
}

// marshalJSON marshals v, substituting fallback for nil slices so columns
// never hold SQL NULL for array fields.
func marshalJSON(v any, fallback string) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	if string(data) == "null" {
		return fallback, nil
	}
	return string(data), nil
}

// marshalNullable marshals a pointer sub-object, mapping nil to SQL NULL.
func marshalNullable(v any) (any, error) {
	switch t := v.(type) {
	case *model.Dimensions:
		if t == nil {
			return nil, nil
		}
	case *model.PurchaseInfo:
		if t == nil {
			return nil, nil
		}
	case *model.Merchant:
		if t == nil {
			return nil, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}
