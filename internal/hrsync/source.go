package hrsync

import (
	"context"
	"time"
)

// RemoteFile describes one file on the file source.
type RemoteFile struct {
	Name       string
	Path       string
	Size       int64
	ModifiedAt time.Time
}

// FileSource is the remote drop location the exports arrive in.
type FileSource interface {
	// ListFiles returns the regular files directly inside dir.
	ListFiles(ctx context.Context, dir string) ([]RemoteFile, error)

	// Download returns the full content of the file at path.
	Download(ctx context.Context, path string) ([]byte, error)

	// Close releases the connection.
	Close() error
}
