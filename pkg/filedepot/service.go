package filedepot

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// Default resource bounds.
const (
	// DefaultMaxUploadBytes caps upload size at 10 MiB unless overridden.
	DefaultMaxUploadBytes int64 = 10 << 20

	// DefaultListLimit bounds a listing when the caller supplies none.
	DefaultListLimit = 100
)

// Service is the boundary the HTTP layer (or any caller) talks to. It
// bundles ingestion, retrieval and deletion over one catalog and one blob
// store.
type Service interface {
	// Ingest validates the upload, stages and hashes the byte stream,
	// writes the blob and registers a catalog record. Any failure before
	// the catalog insert leaves no record and no visible blob.
	Ingest(ctx context.Context, req IngestRequest) (*FileRecord, error)

	// Get returns the catalog record for id.
	Get(ctx context.Context, id uuid.UUID) (*FileRecord, error)

	// List returns catalog records newest first.
	List(ctx context.Context, req ListRequest) ([]*FileRecord, error)

	// Open resolves id to its record and a reader over the blob bytes.
	// A record whose blob is missing surfaces ErrCorruptedState.
	Open(ctx context.Context, id uuid.UUID) (*FileRecord, io.ReadCloser, error)

	// Delete removes the record, then the blob if no other record
	// references its hash.
	Delete(ctx context.Context, id uuid.UUID) error
}
