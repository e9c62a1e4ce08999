package filedepot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// service implements the Service interface
type service struct {
	catalog        Catalog
	blobs          BlobStore
	maxUploadBytes int64
	spoolDir       string
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithCatalog sets the metadata catalog for the service
func WithCatalog(c Catalog) Option {
	return func(s *service) {
		s.catalog = c
	}
}

// WithBlobStore sets the blob storage backend for the service
func WithBlobStore(store BlobStore) Option {
	return func(s *service) {
		s.blobs = store
	}
}

// WithMaxUploadBytes overrides the default 10 MiB upload cap
func WithMaxUploadBytes(n int64) Option {
	return func(s *service) {
		s.maxUploadBytes = n
	}
}

// WithSpoolDir sets the directory used to stage in-flight uploads.
// Defaults to the system temp directory.
func WithSpoolDir(dir string) Option {
	return func(s *service) {
		s.spoolDir = dir
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		maxUploadBytes: DefaultMaxUploadBytes,
	}

	for _, option := range options {
		option(s)
	}

	if s.catalog == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	if s.blobs == nil {
		return nil, fmt.Errorf("blob store is required")
	}

	return s, nil
}

// Ingest stages the stream, hashes it, commits the blob and registers the
// catalog record, in that order. Nothing is committed before the full
// stream has been read and validated, so any failure up to the blob write
// rolls back by construction. A failure after a successful Put leaves an
// unreferenced blob at worst; Put is idempotent, so retrying the whole
// ingestion is safe and reuses it.
func (s *service) Ingest(ctx context.Context, req IngestRequest) (*FileRecord, error) {
	if req.DisplayName == "" {
		return nil, &ValidationError{Field: "display_name", Reason: "must not be empty"}
	}
	if req.DeclaredSize > s.maxUploadBytes {
		return nil, fmt.Errorf("declared %d bytes, cap %d: %w", req.DeclaredSize, s.maxUploadBytes, ErrPayloadTooLarge)
	}

	// Cap the stream at the declared size when one was given, so a body
	// larger than its Content-Length is rejected mid-stream.
	limit := s.maxUploadBytes
	if req.DeclaredSize > 0 && req.DeclaredSize < limit {
		limit = req.DeclaredSize
	}

	staged, err := newStagedUpload(s.spoolDir, limit)
	if err != nil {
		return nil, err
	}
	defer staged.Discard()

	if _, err := io.Copy(staged, &contextReader{ctx: ctx, r: req.Reader}); err != nil {
		return nil, mapStreamErr(err)
	}

	contentHash := staged.Hash()
	spool, err := staged.Reopen()
	if err != nil {
		return nil, err
	}

	if err := s.blobs.Put(ctx, contentHash, spool, staged.Size()); err != nil {
		return nil, err
	}

	rec := &FileRecord{
		ID:          uuid.New(),
		DisplayName: req.DisplayName,
		ContentHash: contentHash,
		SizeBytes:   staged.Size(),
		MimeType:    req.MimeType,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.catalog.Insert(ctx, rec); err != nil {
		return nil, err
	}

	return rec, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*FileRecord, error) {
	return s.catalog.Get(ctx, id)
}

func (s *service) List(ctx context.Context, req ListRequest) ([]*FileRecord, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	offset := req.Offset
	if offset < 0 {
		offset = 0
	}
	return s.catalog.List(ctx, limit, offset)
}

func (s *service) Open(ctx context.Context, id uuid.UUID) (*FileRecord, io.ReadCloser, error) {
	rec, err := s.catalog.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	rc, err := s.blobs.Open(ctx, rec.ContentHash)
	if err != nil {
		if errors.Is(err, ErrBlobNotFound) {
			// Metadata/blob divergence must never be papered over as an
			// empty file.
			return nil, nil, &FileError{FileID: id, Op: "open", Err: ErrCorruptedState}
		}
		return nil, nil, &FileError{FileID: id, Op: "open", Err: err}
	}

	return rec, rc, nil
}

// Delete removes the catalog record first so the file is immediately
// invisible to readers, then garbage-collects the blob when the delete's
// own snapshot says no other record references the hash. A crash between
// the two steps leaves an orphaned blob, recoverable by sweep.Sweeper;
// the reverse ordering could leave a record pointing at a missing blob.
func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	rec, err := s.catalog.Get(ctx, id)
	if err != nil {
		return err
	}

	remaining, err := s.catalog.Delete(ctx, id)
	if err != nil {
		return &FileError{FileID: id, Op: "delete", Err: err}
	}

	if remaining == 0 {
		if err := s.blobs.Remove(ctx, rec.ContentHash); err != nil {
			return &FileError{FileID: id, Op: "delete", Err: err}
		}
	}

	return nil
}
