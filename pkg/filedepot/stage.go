package filedepot

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
)

// stagedUpload spools an incoming byte stream to a temporary file while
// computing its SHA-256 incrementally, so the stream is read exactly once.
// The temp file is never visible under a final hash; the blob store commit
// happens only after the full stream has been validated.
type stagedUpload struct {
	file   *os.File
	path   string
	hasher hash.Hash
	size   int64
	limit  int64
	closed bool
}

func newStagedUpload(spoolDir string, limit int64) (*stagedUpload, error) {
	f, err := os.CreateTemp(spoolDir, "filedepot-stage-*")
	if err != nil {
		return nil, &StorageError{Op: "stage", Err: err}
	}
	return &stagedUpload{
		file:   f,
		path:   f.Name(),
		hasher: sha256.New(),
		limit:  limit,
	}, nil
}

// Write implements io.Writer. It rejects bytes past the cap mid-stream so a
// caller lying about Content-Length cannot make us spool an unbounded body.
func (s *stagedUpload) Write(p []byte) (int, error) {
	if s.closed {
		return 0, os.ErrClosed
	}
	if s.size+int64(len(p)) > s.limit {
		return 0, ErrPayloadTooLarge
	}
	n, err := s.file.Write(p)
	if n > 0 {
		s.hasher.Write(p[:n])
		s.size += int64(n)
	}
	if err != nil {
		return n, &StorageError{Op: "stage", Err: err}
	}
	return n, nil
}

// Hash returns the hex-encoded SHA-256 of everything written so far.
func (s *stagedUpload) Hash() string {
	return hex.EncodeToString(s.hasher.Sum(nil))
}

// Size returns the number of bytes staged.
func (s *stagedUpload) Size() int64 {
	return s.size
}

// Reopen rewinds the spool file for reading back into the blob store.
func (s *stagedUpload) Reopen() (io.Reader, error) {
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return nil, &StorageError{Op: "stage", Err: err}
	}
	return s.file, nil
}

// Discard closes and removes the spool file. Safe to call multiple times;
// always called so canceled or failed ingestions leave no staged bytes.
func (s *stagedUpload) Discard() {
	if s.closed {
		return
	}
	s.closed = true
	s.file.Close()
	os.Remove(s.path)
}

// contextReader makes a blocking stream read observe cancellation between
// chunks, so a client disconnect or deadline stops the staging copy.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *contextReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}

// mapStreamErr translates context errors from a staging copy into the
// service's error taxonomy.
func mapStreamErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrIngestTimeout, err)
	default:
		return err
	}
}
