package filedepot

import "io"

// IngestRequest carries one upload into the store.
type IngestRequest struct {
	// DisplayName is the client-supplied file name. Untrusted; stored
	// verbatim, never used as a storage path.
	DisplayName string

	// MimeType declared by the client, validated against the catalog's
	// MIME policy.
	MimeType string

	// Reader supplies the file bytes.
	Reader io.Reader

	// DeclaredSize is the size the client claims, in bytes. Uploads whose
	// declared or actual size exceeds the configured maximum are rejected
	// with ErrPayloadTooLarge. Zero means unknown; the stream cap still
	// applies.
	DeclaredSize int64
}

// ListRequest bounds a catalog listing.
type ListRequest struct {
	Limit  int // defaults to DefaultListLimit when <= 0
	Offset int
}
