package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/sethvargo/go-retry"
)

var (
	ErrNotImage = errors.New("response is not an image")
	ErrTooLarge = errors.New("asset exceeds size limit")
)

type httpStatusError struct {
	code int
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s", e.code, http.StatusText(e.code))
}

// retryable reports whether another attempt could succeed. Client errors
// and non-image bodies will not change on retry.
func retryable(err error) bool {
	var se *httpStatusError
	if errors.As(err, &se) {
		return se.code >= 500 || se.code == http.StatusTooManyRequests
	}
	return !errors.Is(err, ErrNotImage) && !errors.Is(err, ErrTooLarge)
}

func markRetryable(err error) error {
	if err != nil && retryable(err) {
		return retry.RetryableError(err)
	}
	return err
}

// fetch downloads url and returns its body and image content type.
func (c *Cache) fetch(ctx context.Context, url string) ([]byte, string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "image/*")

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", &httpStatusError{code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.opts.MaxSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", url, err)
	}
	if int64(len(body)) > c.opts.MaxSize {
		return nil, "", ErrTooLarge
	}

	contentType, err := imageType(resp.Header.Get("Content-Type"), body)
	if err != nil {
		return nil, "", err
	}
	return body, contentType, nil
}

// imageType trusts an image/* header and sniffs the body otherwise, since
// object stores often serve application/octet-stream.
func imageType(header string, body []byte) (string, error) {
	if mt, _, err := mime.ParseMediaType(header); err == nil && strings.HasPrefix(mt, "image/") {
		return mt, nil
	}
	detected := mimetype.Detect(body)
	for m := detected; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "image/") {
			return detected.String(), nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotImage, detected.String())
}
