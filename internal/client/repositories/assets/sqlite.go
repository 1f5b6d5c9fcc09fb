package assets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/notekeeper/internal/client/models"
	"github.com/dmitrijs2005/notekeeper/internal/common"
	"github.com/dmitrijs2005/notekeeper/internal/dbx"
	"github.com/dmitrijs2005/notekeeper/internal/timex"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Get(ctx context.Context, url string) (models.CachedAsset, error) {
	var (
		a        models.CachedAsset
		cachedAt int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, source_url, blob, content_type, cached_at
		FROM cached_assets WHERE source_url = ?`, url).
		Scan(&a.ID, &a.SourceURL, &a.Blob, &a.ContentType, &cachedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.CachedAsset{}, common.ErrNotFound
	}
	if err != nil {
		return models.CachedAsset{}, fmt.Errorf("get cached asset: %w", err)
	}
	a.CachedAt = timex.UnixMilli(cachedAt)
	return a, nil
}

func (r *SQLiteRepository) Put(ctx context.Context, a models.CachedAsset) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cached_assets (id, source_url, blob, content_type, cached_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(source_url) DO UPDATE SET
			blob         = excluded.blob,
			content_type = excluded.content_type,
			cached_at    = excluded.cached_at`,
		a.ID, a.SourceURL, a.Blob, a.ContentType, timex.ToUnixMilli(a.CachedAt))
	if err != nil {
		return fmt.Errorf("put cached asset: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteByURL(ctx context.Context, url string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM cached_assets WHERE source_url = ?`, url); err != nil {
		return fmt.Errorf("delete cached asset: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) ([]models.CachedAsset, error) {
	rows, err := r.db.QueryContext(ctx, `
		DELETE FROM cached_assets WHERE cached_at < ?
		RETURNING id, source_url, content_type, cached_at`, timex.ToUnixMilli(cutoff))
	if err != nil {
		return nil, fmt.Errorf("evict cached assets: %w", err)
	}
	defer rows.Close()

	var evicted []models.CachedAsset
	for rows.Next() {
		var (
			a        models.CachedAsset
			cachedAt int64
		)
		if err := rows.Scan(&a.ID, &a.SourceURL, &a.ContentType, &cachedAt); err != nil {
			return nil, fmt.Errorf("scan evicted asset: %w", err)
		}
		a.CachedAt = timex.UnixMilli(cachedAt)
		evicted = append(evicted, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate evicted assets: %w", err)
	}
	return evicted, nil
}

func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cached_assets`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count cached assets: %w", err)
	}
	return n, nil
}
