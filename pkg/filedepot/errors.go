package filedepot

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Error types
var (
	// ErrFileNotFound indicates the catalog has no record with the given id.
	ErrFileNotFound = errors.New("file not found")

	// ErrBlobNotFound indicates the blob store has no blob under the hash.
	ErrBlobNotFound = errors.New("blob not found")

	// ErrPayloadTooLarge indicates a declared or streamed upload exceeded
	// the configured maximum size.
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrCorruptedState indicates a catalog record references a hash the
	// blob store does not hold. This is a data-integrity violation and is
	// never downgraded to an empty result.
	ErrCorruptedState = errors.New("catalog references missing blob")

	// ErrIngestTimeout indicates the caller's deadline expired while the
	// upload was being staged.
	ErrIngestTimeout = errors.New("ingestion deadline exceeded")

	// ErrHashSizeMismatch indicates an existing blob under the same hash
	// has a different length than the bytes being written.
	ErrHashSizeMismatch = errors.New("existing blob size does not match")
)

// ValidationError reports a user-correctable problem with an upload's shape.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// FileError wraps a failure of an operation on a specific catalog record.
type FileError struct {
	FileID uuid.UUID
	Op     string
	Err    error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("file operation %s failed for %s: %v", e.Op, e.FileID, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// StorageError wraps an I/O failure in a blob store. Callers may retry.
type StorageError struct {
	Hash string
	Op   string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for hash %s: %v", e.Op, e.Hash, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
