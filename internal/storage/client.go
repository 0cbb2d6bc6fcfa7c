package storage

import (
	"context"
	"io"
	"time"
)

// FileInfo contains metadata about an object in cloud storage
type FileInfo struct {
	Name        string
	Path        string
	Size        int64
	ModifiedAt  time.Time
	ContentType string
}

// Client defines the interface for cloud storage operations
type Client interface {
	// List returns objects under the specified key prefix
	List(ctx context.Context, prefix string) ([]FileInfo, error)

	// Download retrieves the contents of an object
	Download(ctx context.Context, path string) (io.ReadCloser, error)

	// Upload writes content to an object key
	Upload(ctx context.Context, path string, content io.Reader, contentType string) error

	// Delete removes an object
	Delete(ctx context.Context, path string) error

	// Exists checks if an object exists
	Exists(ctx context.Context, path string) (bool, error)

	// GetMetadata retrieves object info without downloading content
	GetMetadata(ctx context.Context, path string) (*FileInfo, error)

	// GetDownloadURL returns a time-scoped URL for direct client download
	GetDownloadURL(ctx context.Context, path string) (string, error)
}
