package filedepot

import (
	"time"

	"github.com/google/uuid"
)

// HashAlgorithm identifies the digest used for content addressing.
const HashAlgorithm = "sha256"

// FileRecord is a catalog entry describing one logical uploaded file.
//
// ID is unique and immutable after creation. ContentHash together with
// SizeBytes determines the physical blob location; several records may share
// one hash (deduplicated uploads).
type FileRecord struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"name"`
	ContentHash string    `json:"content_hash"`
	SizeBytes   int64     `json:"size_bytes"`
	MimeType    string    `json:"mime_type"`
	CreatedAt   time.Time `json:"created_at"`
}

// MimePolicy decides which MIME types a catalog accepts.
type MimePolicy struct {
	// Allowed lists acceptable MIME types. A trailing "/*" acts as a
	// wildcard for the major type (e.g. "image/*"). Empty means any.
	Allowed []string
}

// AnyMime accepts every MIME type.
var AnyMime = MimePolicy{}

// Accepts reports whether the policy allows the given MIME type.
func (p MimePolicy) Accepts(mimeType string) bool {
	if len(p.Allowed) == 0 {
		return true
	}
	for _, a := range p.Allowed {
		if a == mimeType {
			return true
		}
		if n := len(a); n > 2 && a[n-2:] == "/*" && len(mimeType) >= n-1 && mimeType[:n-1] == a[:n-1] {
			return true
		}
	}
	return false
}

// ValidateRecord checks the record fields a catalog must reject on insert.
// Both catalog implementations call this before persisting.
func ValidateRecord(rec *FileRecord, policy MimePolicy) error {
	if rec.DisplayName == "" {
		return &ValidationError{Field: "display_name", Reason: "must not be empty"}
	}
	if rec.SizeBytes < 0 {
		return &ValidationError{Field: "size_bytes", Reason: "must not be negative"}
	}
	if rec.ContentHash == "" {
		return &ValidationError{Field: "content_hash", Reason: "must not be empty"}
	}
	if !policy.Accepts(rec.MimeType) {
		return &ValidationError{Field: "mime_type", Reason: "type " + rec.MimeType + " is not allowed"}
	}
	return nil
}
