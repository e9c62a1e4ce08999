package filedepot

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// BlobStore is durable byte storage keyed by content hash.
//
// Blobs are immutable once written. Put is idempotent: writing a hash that
// already exists verifies the stored length and returns without rewriting.
// Implementations must treat Put and Remove on the same hash as mutually
// exclusive (per-hash lock or rename-on-completion writes) so a concurrent
// remove can never observe a half-written blob.
type BlobStore interface {
	// Put writes size bytes from r under hash if absent. If the hash is
	// already present it verifies the stored length matches size and
	// returns without rewriting.
	Put(ctx context.Context, hash string, r io.Reader, size int64) error

	// Exists reports whether a blob is stored under hash.
	Exists(ctx context.Context, hash string) (bool, error)

	// Open returns a reader over the blob's bytes. Returns ErrBlobNotFound
	// if the hash is absent.
	Open(ctx context.Context, hash string) (io.ReadCloser, error)

	// Remove deletes the blob. Removing an absent hash is a no-op, not an
	// error: the last-reference check and the physical delete are separate
	// steps and may race.
	Remove(ctx context.Context, hash string) error
}

// BlobWalker is implemented by blob stores that can enumerate stored hashes.
// Enumeration is only used by the out-of-band orphan sweep; correctness of
// the core never depends on listing.
type BlobWalker interface {
	// WalkHashes calls fn for every stored blob until fn returns an error
	// or the walk completes. sizeBytes is the stored blob length.
	WalkHashes(ctx context.Context, fn func(hash string, sizeBytes int64) error) error
}

// Catalog is the authoritative table of logical files. A list call never
// observes a record in a partially written state.
type Catalog interface {
	// Insert persists the record atomically. The record's ID must already
	// be assigned by the caller and unique. Returns a *ValidationError for
	// an empty display name, negative size or disallowed MIME type.
	Insert(ctx context.Context, rec *FileRecord) error

	// Get returns the record with the given id, or ErrFileNotFound.
	Get(ctx context.Context, id uuid.UUID) (*FileRecord, error)

	// List returns records ordered by creation time descending, newest
	// first, bounded by limit and offset.
	List(ctx context.Context, limit, offset int) ([]*FileRecord, error)

	// CountReferences returns the number of records pointing at hash.
	CountReferences(ctx context.Context, hash string) (int64, error)

	// Delete removes the record and returns how many other records still
	// reference the same content hash, evaluated in the same transaction
	// (or critical section) as the delete so the count is a consistent
	// snapshot. Returns ErrFileNotFound if the id is absent.
	Delete(ctx context.Context, id uuid.UUID) (remaining int64, err error)
}
