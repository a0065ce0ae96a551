// Package storage provides the object storage abstraction used for the
// judged-source archive.
package storage

import (
	"context"
	"io"
)

// ObjectStat is the metadata returned by Stat.
type ObjectStat struct {
	SizeBytes   int64
	ETag        string
	ContentType string
}

// ObjectStorage is the minimal contract the archive needs. Kept small so a
// different backend never touches business logic.
type ObjectStorage interface {
	// Put streams an object. size must match the reader's length.
	Put(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) error

	// Get opens a reader for an object. Caller closes it.
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, error)

	// Stat returns object metadata without the body.
	Stat(ctx context.Context, bucket, key string) (ObjectStat, error)
}
