package models

import "time"

// CachedAsset is a locally stored copy of a remote image, keyed by its
// source URL. There is at most one row per SourceURL.
type CachedAsset struct {
	ID          string
	SourceURL   string
	Blob        []byte
	ContentType string
	CachedAt    time.Time
}
