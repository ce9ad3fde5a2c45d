package domain

import (
	"context"
	"io"
	"time"
)

// BlobWriter writes objects to cold storage. Used by the registry sweeper to
// archive terminal swap records before eviction.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// BlobInfo describes one object in cold storage.
type BlobInfo struct {
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// BlobReader reads archived objects back out of cold storage. The archive
// browse API uses it to list and fetch swept swap records.
type BlobReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
}

// SwapArchiver archives a batch of terminal swap snapshots.
type SwapArchiver interface {
	ArchiveSwaps(ctx context.Context, swaps []SwapState) error
}
