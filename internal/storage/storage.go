// Package storage contains the blob-store abstraction the document registry
// writes file content through. Two interchangeable backends implement it: an
// S3-compatible chunked object store (MinIO) and a local filesystem root.
// The backend is a construction-time decision; nothing outside this package
// knows which one is in use.
package storage

import (
	"context"
	"io"
	"time"
)

// PutObjectOptions define optional parameters for storing a blob.
// Size should be the exact number of bytes if known; if unknown, set to -1
// and the implementation will buffer/chunk as the backend supports.
// ContentType and Metadata are optional.
type PutObjectOptions struct {
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo contains basic information about a stored blob. Size is the
// stored byte length when the backend knows it (used for Content-Length).
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
	Metadata     map[string]string
}

// BlobStore stores and retrieves raw file bytes by an opaque storage key.
// Keys are generated by the caller so that collisions are negligible; the
// store enforces no relationship between keys and document metadata.
// Implementations must be safe for concurrent use and must use streaming
// I/O only.
type BlobStore interface {
	// Put persists the blob under the given key using the provided reader
	// and options. A partially written blob must never become visible under
	// the key.
	Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error)
	// Get retrieves a blob's content as a streaming reader alongside its info.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	// Delete removes a blob by key. Best effort: used by purge tooling, not
	// by the upload/download paths.
	Delete(ctx context.Context, key string) error
}
