// Package urls derives client-facing download URLs from file record IDs.
// The URL is presentation-layer concern: the core never stores it.
package urls

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Strategy defines the interface for download URL generation
type Strategy interface {
	// DownloadURL creates a download URL for a file record
	DownloadURL(id uuid.UUID) string
}

// RouteBased generates URLs that route back through the application
// server, which enforces access control and integrity checks.
type RouteBased struct {
	APIBaseURL string // e.g. "https://api.example.com/api/v1" or "/api/v1"
}

// NewRouteBased creates a new route-based URL strategy
func NewRouteBased(apiBaseURL string) *RouteBased {
	return &RouteBased{APIBaseURL: strings.TrimSuffix(apiBaseURL, "/")}
}

func (s *RouteBased) DownloadURL(id uuid.UUID) string {
	return fmt.Sprintf("%s/files/%s/content", s.APIBaseURL, id.String())
}

// CDN generates URLs that point directly at a CDN which fronts the
// application's fetch endpoint.
type CDN struct {
	CDNBaseURL string // e.g. "https://cdn.example.com"
}

// NewCDN creates a new CDN URL strategy
func NewCDN(cdnBaseURL string) *CDN {
	return &CDN{CDNBaseURL: strings.TrimSuffix(cdnBaseURL, "/")}
}

func (s *CDN) DownloadURL(id uuid.UUID) string {
	return fmt.Sprintf("%s/files/%s/content", s.CDNBaseURL, id.String())
}
