// Package archive keeps the raw pages that reports were parsed from.
package archive

import (
	"context"
	"errors"
)

// ErrEmptyContent is returned when asked to archive nothing.
var ErrEmptyContent = errors.New("archive: empty content")

// Store writes archived blobs. Put returns the path or object name under
// which the blob can later be found.
type Store interface {
	Put(ctx context.Context, name string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, path string) ([]byte, error)
	Delete(ctx context.Context, path string) error
}
