// Package fetch downloads images over HTTP.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DefaultLimit is the body cap used when Image is given a limit of zero.
const DefaultLimit = 20 << 20

var (
	ErrNotImage = errors.New("not an image")
	ErrStatus   = errors.New("unexpected response status")
	ErrTooLarge = errors.New("image too large")
)

// StatusError is returned for any response other than 200 OK. It matches
// ErrStatus with errors.Is.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%v: %s", ErrStatus, e.Status)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrStatus
}

// Image downloads url and returns the body if it looks like an image.
// Bodies longer than limit bytes are rejected rather than truncated.
func Image(ctx context.Context, client *http.Client, url string, limit int64) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("bad image url: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("can't download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("can't read image: %w", err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, limit)
	}
	if mtype := mimetype.Detect(body); !strings.HasPrefix(mtype.String(), "image/") {
		return nil, fmt.Errorf("%w: got %s", ErrNotImage, mtype)
	}
	return body, nil
}
