// Package blob stores generated media and uploaded files by path and returns
// a URL the browser can fetch.
package blob

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("blob not found")

// Store writes and removes objects addressed by slash-separated paths.
type Store interface {
	Put(ctx context.Context, path string, data []byte, contentType string) (url string, err error)
	Delete(ctx context.Context, path string) error
}
