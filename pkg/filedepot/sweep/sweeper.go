// Package sweep reconciles the blob store against the catalog. A crash
// between a catalog delete and the blob removal, or between a blob write
// and the catalog insert, leaves an unreferenced blob behind; the sweeper
// is the out-of-band recovery path that collects them.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/filedepot/filedepot/pkg/filedepot"
)

// Sweeper walks stored blobs and removes those with zero catalog
// references. Run it during quiet periods: a blob written by an in-flight
// ingestion whose catalog insert has not landed yet looks orphaned, and
// although the store's put/remove exclusion keeps the race harmless for
// readers, the ingestion would have to be retried.
type Sweeper struct {
	catalog filedepot.Catalog
	blobs   filedepot.BlobStore
	walker  filedepot.BlobWalker
}

// New creates a new Sweeper. The blob store must support hash enumeration.
func New(catalog filedepot.Catalog, blobs filedepot.BlobStore) (*Sweeper, error) {
	walker, ok := blobs.(filedepot.BlobWalker)
	if !ok {
		return nil, errors.New("blob store does not support hash enumeration")
	}
	return &Sweeper{catalog: catalog, blobs: blobs, walker: walker}, nil
}

// Options configures a sweep run.
type Options struct {
	// DryRun reports what would be removed without removing anything.
	DryRun bool

	// OnProgress is called after each scanned blob (optional).
	OnProgress func(scanned, removed int64)
}

// Result contains statistics about a sweep run.
type Result struct {
	Scanned      int64
	Removed      int64
	RemovedBytes int64
	Failed       int64
	FailedHashes []string
}

// Sweep walks every stored blob, checks its reference count and removes
// unreferenced ones. A failing blob is recorded and the sweep continues.
func (s *Sweeper) Sweep(ctx context.Context, opts Options) (*Result, error) {
	result := &Result{}

	err := s.walker.WalkHashes(ctx, func(hash string, sizeBytes int64) error {
		result.Scanned++

		refs, err := s.catalog.CountReferences(ctx, hash)
		if err != nil {
			return fmt.Errorf("failed to count references for %s: %w", hash, err)
		}

		if refs == 0 {
			if opts.DryRun {
				slog.Info("sweep would remove orphaned blob", "hash", hash, "size_bytes", sizeBytes)
				result.Removed++
				result.RemovedBytes += sizeBytes
			} else if err := s.blobs.Remove(ctx, hash); err != nil {
				slog.Error("sweep failed to remove orphaned blob", "hash", hash, "error", err)
				result.Failed++
				result.FailedHashes = append(result.FailedHashes, hash)
			} else {
				result.Removed++
				result.RemovedBytes += sizeBytes
			}
		}

		if opts.OnProgress != nil {
			opts.OnProgress(result.Scanned, result.Removed)
		}
		return nil
	})
	if err != nil {
		return result, err
	}

	return result, nil
}
