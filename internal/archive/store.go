// Package archive persists generated bundles so they can be fetched again
// by run id.
package archive

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrBundleNotFound = errors.New("bundle not found")
	ErrObjectNotFound = errors.New("archive object not found")
)

// BlobStore stores opaque objects grouped by run id.
type BlobStore interface {
	Put(ctx context.Context, runID, path string, content []byte, contentType string) error
	Get(ctx context.Context, runID, path string) ([]byte, error)
	List(ctx context.Context, runID string) ([]string, error)
}

func objectKey(runID, path string) string {
	normalized := strings.TrimLeft(strings.TrimSpace(path), "/")
	return strings.TrimSpace(runID) + "/" + normalized
}

func checkKey(runID, path string) error {
	if strings.TrimSpace(runID) == "" {
		return errors.New("run_id is required")
	}
	if strings.TrimSpace(path) == "" {
		return errors.New("path is required")
	}
	return nil
}
