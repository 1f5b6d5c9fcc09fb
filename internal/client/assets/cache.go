// Package assets keeps local copies of remote images so notes render
// without refetching covers and inline pictures.
package assets

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/singleflight"

	"github.com/dmitrijs2005/notekeeper/internal/client/models"
	assetsrepo "github.com/dmitrijs2005/notekeeper/internal/client/repositories/assets"
	"github.com/dmitrijs2005/notekeeper/internal/common"
	"github.com/dmitrijs2005/notekeeper/internal/filex"
	"github.com/dmitrijs2005/notekeeper/internal/logging"
)

const (
	DefaultFetchTimeout = 10 * time.Second
	DefaultMaxSize      = 20 << 20
	DefaultRetention    = 30 * 24 * time.Hour
)

// RetryPolicy bounds background caching attempts.
type RetryPolicy struct {
	MaxRetries int
	Delay      time.Duration
}

var DefaultRetryPolicy = RetryPolicy{MaxRetries: 2, Delay: time.Second}

type RepositoryProvider interface {
	Assets() (assetsrepo.Repository, error)
}

// OnlineChecker is satisfied by *connectivity.Monitor.
type OnlineChecker interface {
	Online() bool
}

type Options struct {
	// Dir receives materialized blobs.
	Dir          string
	FetchTimeout time.Duration
	MaxSize      int64
	Retry        RetryPolicy
	HTTPClient   *http.Client
	Now          func() time.Time
}

func (o Options) withDefaults() Options {
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = DefaultFetchTimeout
	}
	if o.MaxSize <= 0 {
		o.MaxSize = DefaultMaxSize
	}
	if o.Retry == (RetryPolicy{}) {
		o.Retry = DefaultRetryPolicy
	}
	if o.HTTPClient == nil {
		o.HTTPClient = http.DefaultClient
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

type Cache struct {
	repos  RepositoryProvider
	online OnlineChecker
	logger logging.Logger
	opts   Options

	group singleflight.Group
	files sync.Mutex

	bg   context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup
}

func New(repos RepositoryProvider, online OnlineChecker, logger logging.Logger, opts Options) *Cache {
	bg, stop := context.WithCancel(context.Background())
	return &Cache{
		repos:  repos,
		online: online,
		logger: logger.With("component", "assets"),
		opts:   opts.withDefaults(),
		bg:     bg,
		stop:   stop,
	}
}

// IsRemote reports whether ref must be fetched over the network. Every
// other scheme (blob:, data:, file:) is already local.
func IsRemote(ref string) bool {
	u, err := url.Parse(ref)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return u.Host != ""
	default:
		return false
	}
}

func (c *Cache) isOnline() bool {
	return c.online == nil || c.online.Online()
}

// Resolve maps a remote URL to a local file reference when the image is
// cached, fetching and caching it first when online. Local references are
// returned as is. On any failure the original URL is returned.
func (c *Cache) Resolve(ctx context.Context, ref string) string {
	if !IsRemote(ref) {
		return ref
	}

	repo, err := c.repos.Assets()
	if err != nil {
		return ref
	}

	asset, err := repo.Get(ctx, ref)
	switch {
	case err == nil:
	case errors.Is(err, common.ErrNotFound):
		if !c.isOnline() {
			return ref
		}
		asset, err = c.fetchShared(ctx, ref)
		if err != nil {
			c.logger.Debug(ctx, "asset fetch failed", "url", ref, "error", err)
			return ref
		}
	default:
		c.logger.Warn(ctx, "asset lookup failed", "url", ref, "error", err)
		return ref
	}

	local, err := c.materialize(asset)
	if err != nil {
		c.logger.Warn(ctx, "asset materialize failed", "url", ref, "error", err)
		return ref
	}
	return local
}

// fetchShared lets concurrent callers for one URL share a single download.
// The download runs on the cache's own context, so a caller that gives up
// only stops waiting.
func (c *Cache) fetchShared(ctx context.Context, ref string) (models.CachedAsset, error) {
	ch := c.group.DoChan(ref, func() (any, error) {
		return c.fetchAndStore(c.bg, ref)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return models.CachedAsset{}, res.Err
		}
		return res.Val.(models.CachedAsset), nil
	case <-ctx.Done():
		return models.CachedAsset{}, ctx.Err()
	}
}

func (c *Cache) fetchAndStore(ctx context.Context, ref string) (models.CachedAsset, error) {
	repo, err := c.repos.Assets()
	if err != nil {
		return models.CachedAsset{}, err
	}

	body, contentType, err := c.fetch(ctx, ref)
	if err != nil {
		return models.CachedAsset{}, err
	}

	asset := models.CachedAsset{
		ID:          uuid.NewString(),
		SourceURL:   ref,
		Blob:        body,
		ContentType: contentType,
		CachedAt:    c.opts.Now(),
	}
	if err := repo.Put(ctx, asset); err != nil {
		return models.CachedAsset{}, err
	}
	// A re-cached URL may have new content.
	c.removeFile(ref, contentType)
	return asset, nil
}

// AutoCache caches ref in the background. It never blocks the caller.
func (c *Cache) AutoCache(ref string) {
	if !IsRemote(ref) {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			if p := recover(); p != nil {
				c.logger.Error(c.bg, "auto-cache panicked", "url", ref, "panic", p)
			}
		}()

		backoff := retry.WithMaxRetries(uint64(c.opts.Retry.MaxRetries), retry.NewConstant(c.opts.Retry.Delay))
		err := retry.Do(c.bg, backoff, func(ctx context.Context) error {
			if c.Cached(ctx, ref) {
				return nil
			}
			_, err := c.fetchShared(ctx, ref)
			return markRetryable(err)
		})
		if err != nil {
			c.logger.Debug(c.bg, "auto-cache gave up", "url", ref, "error", err)
		}
	}()
}

// Cached reports whether ref has a stored row.
func (c *Cache) Cached(ctx context.Context, ref string) bool {
	repo, err := c.repos.Assets()
	if err != nil {
		return false
	}
	_, err = repo.Get(ctx, ref)
	return err == nil
}

// Wait blocks until background caching finished.
func (c *Cache) Wait() {
	c.wg.Wait()
}

// Close cancels background work and waits for it.
func (c *Cache) Close() {
	c.stop()
	c.wg.Wait()
}

// EvictOlderThan drops assets cached more than retention ago together with
// their materialized files and returns how many were removed.
func (c *Cache) EvictOlderThan(ctx context.Context, retention time.Duration) (int, error) {
	repo, err := c.repos.Assets()
	if err != nil {
		return 0, err
	}
	evicted, err := repo.DeleteOlderThan(ctx, c.opts.Now().Add(-retention))
	if err != nil {
		return 0, err
	}
	for _, a := range evicted {
		c.removeFile(a.SourceURL, a.ContentType)
	}
	if len(evicted) > 0 {
		c.logger.Info(ctx, "evicted cached assets", "count", len(evicted), "retention", retention.String())
	}
	return len(evicted), nil
}

// Forget removes a single cached asset.
func (c *Cache) Forget(ctx context.Context, ref string) error {
	repo, err := c.repos.Assets()
	if err != nil {
		return err
	}
	asset, err := repo.Get(ctx, ref)
	if errors.Is(err, common.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := repo.DeleteByURL(ctx, ref); err != nil {
		return err
	}
	c.removeFile(ref, asset.ContentType)
	return nil
}

func (c *Cache) blobPath(ref, contentType string) string {
	sum := blake2b.Sum256([]byte(ref))
	name := hex.EncodeToString(sum[:])
	if m := mimetype.Lookup(contentType); m != nil {
		name += m.Extension()
	}
	return filepath.Join(c.opts.Dir, name)
}

func fileURL(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
}

// materialize writes the blob to the blob directory once and returns a
// file:// reference to it.
func (c *Cache) materialize(a models.CachedAsset) (string, error) {
	path := c.blobPath(a.SourceURL, a.ContentType)

	c.files.Lock()
	defer c.files.Unlock()

	if st, err := os.Stat(path); err == nil && st.Size() == int64(len(a.Blob)) {
		return fileURL(path), nil
	}
	if err := filex.WriteAtomic(path, a.Blob); err != nil {
		return "", fmt.Errorf("write blob: %w", err)
	}
	return fileURL(path), nil
}

func (c *Cache) removeFile(ref, contentType string) {
	c.files.Lock()
	defer c.files.Unlock()
	if err := os.Remove(c.blobPath(ref, contentType)); err != nil && !os.IsNotExist(err) {
		c.logger.Warn(c.bg, "remove cached blob failed", "url", ref, "error", err)
	}
}
