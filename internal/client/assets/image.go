package assets

import (
	"context"
	"errors"
)

type ImageState int

const (
	ImageLoading ImageState = iota
	ImageLoaded
	ImageError
)

func (s ImageState) String() string {
	switch s {
	case ImageLoaded:
		return "loaded"
	case ImageError:
		return "error"
	default:
		return "loading"
	}
}

var (
	ErrEmptyURL = errors.New("image has no url")
	ErrOffline  = errors.New("image is not cached and the client is offline")
)

// Image is what a view needs to render a picture.
type Image struct {
	State ImageState
	Src   string
	Err   error
}

// Load resolves ref for display. A remote image that could not be cached
// is shown from its URL while online and queued for background caching.
func (c *Cache) Load(ctx context.Context, ref string) Image {
	if ref == "" {
		return Image{State: ImageError, Err: ErrEmptyURL}
	}

	src := c.Resolve(ctx, ref)
	if src != ref || !IsRemote(ref) {
		return Image{State: ImageLoaded, Src: src}
	}

	if c.isOnline() {
		c.AutoCache(ref)
		return Image{State: ImageLoaded, Src: ref}
	}
	return Image{State: ImageError, Src: ref, Err: ErrOffline}
}
