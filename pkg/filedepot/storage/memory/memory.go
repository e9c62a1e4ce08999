package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/filedepot/filedepot/pkg/filedepot"
)

// Backend is an in-memory implementation of the filedepot.BlobStore
// interface, intended for tests and development.
type Backend struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// New creates a new in-memory storage backend
func New() *Backend {
	return &Backend{
		blobs: make(map[string][]byte),
	}
}

// Put stores the blob under hash if absent. An existing blob is verified by
// length and left untouched.
func (b *Backend) Put(ctx context.Context, hash string, r io.Reader, size int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return &filedepot.StorageError{Hash: hash, Op: "put", Err: err}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if existing, ok := b.blobs[hash]; ok {
		if int64(len(existing)) != size {
			return &filedepot.StorageError{Hash: hash, Op: "put", Err: filedepot.ErrHashSizeMismatch}
		}
		return nil
	}

	b.blobs[hash] = data
	return nil
}

// Exists reports whether a blob is stored under hash.
func (b *Backend) Exists(ctx context.Context, hash string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	_, ok := b.blobs[hash]
	return ok, nil
}

// Open returns a reader over the blob bytes.
func (b *Backend) Open(ctx context.Context, hash string) (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	data, ok := b.blobs[hash]
	if !ok {
		return nil, fmt.Errorf("hash %s: %w", hash, filedepot.ErrBlobNotFound)
	}

	return io.NopCloser(bytes.NewReader(data)), nil
}

// Remove deletes the blob. Removing an absent hash is a no-op.
func (b *Backend) Remove(ctx context.Context, hash string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.blobs, hash)
	return nil
}

// WalkHashes enumerates stored blobs for the orphan sweep.
func (b *Backend) WalkHashes(ctx context.Context, fn func(hash string, sizeBytes int64) error) error {
	b.mu.RLock()
	snapshot := make(map[string]int64, len(b.blobs))
	for h, data := range b.blobs {
		snapshot[h] = int64(len(data))
	}
	b.mu.RUnlock()

	for h, size := range snapshot {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(h, size); err != nil {
			return err
		}
	}
	return nil
}
