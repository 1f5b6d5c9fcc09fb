package assets

import (
	"context"
	"time"

	"github.com/dmitrijs2005/notekeeper/internal/client/models"
)

// Repository stores cached image blobs keyed by their source URL.
type Repository interface {
	// Get returns common.ErrNotFound when the URL is not cached.
	Get(ctx context.Context, url string) (models.CachedAsset, error)
	// Put inserts or overwrites the row for a.SourceURL.
	Put(ctx context.Context, a models.CachedAsset) error
	DeleteByURL(ctx context.Context, url string) error
	// DeleteOlderThan removes rows cached before cutoff and returns them
	// without their blobs.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) ([]models.CachedAsset, error)
	Count(ctx context.Context) (int, error)
}
