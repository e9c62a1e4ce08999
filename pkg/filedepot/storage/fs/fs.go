package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/filedepot/filedepot/pkg/filedepot"
)

const (
	blobDirName = "blobs"
	tempDirName = ".tmp"

	// hex sha256
	hashLength = 64
)

// Backend is a filesystem implementation of the filedepot.BlobStore
// interface. Blobs live under a two-level sharded directory keyed by the
// content hash, which keeps any single directory from accumulating an
// unbounded number of entries.
//
// Writes go to a temp file and are renamed into place, so a blob is either
// fully present under its hash or absent. Put and Remove on the same hash
// are serialized by a striped lock, preventing a remove from deleting a
// blob an in-flight put is still committing.
type Backend struct {
	baseDir string
	locks   [64]sync.Mutex
}

// Config options for the filesystem backend
type Config struct {
	BaseDir string // Base directory for storing blobs
}

// New creates a new filesystem storage backend. The base and temp
// directories are created once here, at startup, never per request.
func New(config Config) (*Backend, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}

	if err := os.MkdirAll(filepath.Join(config.BaseDir, blobDirName), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(config.BaseDir, tempDirName), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	return &Backend{baseDir: config.BaseDir}, nil
}

// Put writes the blob under hash if absent. An existing blob is verified by
// length and left untouched, making Put idempotent.
func (b *Backend) Put(ctx context.Context, hash string, r io.Reader, size int64) error {
	if err := validateHash(hash); err != nil {
		return err
	}

	lock := b.lockFor(hash)
	lock.Lock()
	defer lock.Unlock()

	dataPath := b.pathFor(hash)
	if info, err := os.Stat(dataPath); err == nil {
		if info.Size() != size {
			return &filedepot.StorageError{Hash: hash, Op: "put", Err: filedepot.ErrHashSizeMismatch}
		}
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return &filedepot.StorageError{Hash: hash, Op: "put", Err: err}
	}

	tmp, err := os.CreateTemp(filepath.Join(b.baseDir, tempDirName), "put-*")
	if err != nil {
		return &filedepot.StorageError{Hash: hash, Op: "put", Err: err}
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return &filedepot.StorageError{Hash: hash, Op: "put", Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &filedepot.StorageError{Hash: hash, Op: "put", Err: err}
	}

	if err := os.MkdirAll(filepath.Dir(dataPath), 0o755); err != nil {
		return &filedepot.StorageError{Hash: hash, Op: "put", Err: err}
	}

	// Rename last: the blob becomes visible only once fully written.
	if err := os.Rename(tmpPath, dataPath); err != nil {
		return &filedepot.StorageError{Hash: hash, Op: "put", Err: err}
	}

	return nil
}

// Exists reports whether a blob is stored under hash.
func (b *Backend) Exists(ctx context.Context, hash string) (bool, error) {
	if err := validateHash(hash); err != nil {
		return false, err
	}

	_, err := os.Stat(b.pathFor(hash))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, &filedepot.StorageError{Hash: hash, Op: "stat", Err: err}
	}
	return true, nil
}

// Open returns a reader over the blob bytes.
func (b *Backend) Open(ctx context.Context, hash string) (io.ReadCloser, error) {
	if err := validateHash(hash); err != nil {
		return nil, err
	}

	f, err := os.Open(b.pathFor(hash))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("hash %s: %w", hash, filedepot.ErrBlobNotFound)
	}
	if err != nil {
		return nil, &filedepot.StorageError{Hash: hash, Op: "open", Err: err}
	}
	return f, nil
}

// Remove deletes the blob. Removing an absent hash is a no-op.
func (b *Backend) Remove(ctx context.Context, hash string) error {
	if err := validateHash(hash); err != nil {
		return err
	}

	lock := b.lockFor(hash)
	lock.Lock()
	defer lock.Unlock()

	dataPath := b.pathFor(hash)
	if err := os.Remove(dataPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &filedepot.StorageError{Hash: hash, Op: "remove", Err: err}
	}

	b.cleanupEmptyDirectories(filepath.Dir(dataPath))
	return nil
}

// WalkHashes enumerates stored blobs for the orphan sweep.
func (b *Backend) WalkHashes(ctx context.Context, fn func(hash string, sizeBytes int64) error) error {
	blobsDir := filepath.Join(b.baseDir, blobDirName)

	return filepath.WalkDir(blobsDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			return nil
		}
		if validateHash(d.Name()) != nil {
			// Stray file, not one of ours.
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		return fn(d.Name(), info.Size())
	})
}

func (b *Backend) pathFor(hash string) string {
	return filepath.Join(b.baseDir, blobDirName, hash[:2], hash[2:4], hash)
}

func (b *Backend) lockFor(hash string) *sync.Mutex {
	var sum int
	for i := 0; i < len(hash); i++ {
		sum += int(hash[i])
	}
	return &b.locks[sum%len(b.locks)]
}

// cleanupEmptyDirectories removes empty shard directories up to the blobs root
func (b *Backend) cleanupEmptyDirectories(dir string) {
	blobsDir := filepath.Join(b.baseDir, blobDirName)
	for dir != blobsDir && dir != b.baseDir {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if os.Remove(dir) != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

// validateHash rejects anything that is not a lowercase hex sha256 digest.
// Hashes are used as path components, so this also rules out traversal.
func validateHash(hash string) error {
	if len(hash) != hashLength {
		return fmt.Errorf("invalid content hash %q", hash)
	}
	for i := 0; i < len(hash); i++ {
		c := hash[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return fmt.Errorf("invalid content hash %q", hash)
		}
	}
	return nil
}
