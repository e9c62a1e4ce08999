package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/filedepot/filedepot/pkg/filedepot"
)

// Repository implements filedepot.Catalog using in-memory storage. All
// mutations happen under one lock, so readers never observe a partially
// written record and Delete's reference count is a consistent snapshot.
type Repository struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*filedepot.FileRecord
	policy  filedepot.MimePolicy
}

// Option configures the repository
type Option func(*Repository)

// WithMimePolicy restricts the MIME types Insert accepts
func WithMimePolicy(policy filedepot.MimePolicy) Option {
	return func(r *Repository) {
		r.policy = policy
	}
}

// New creates a new in-memory catalog
func New(opts ...Option) *Repository {
	r := &Repository{
		records: make(map[uuid.UUID]*filedepot.FileRecord),
		policy:  filedepot.AnyMime,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Repository) Insert(ctx context.Context, rec *filedepot.FileRecord) error {
	if err := filedepot.ValidateRecord(rec, r.policy); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[rec.ID]; exists {
		return fmt.Errorf("record %s already exists", rec.ID)
	}

	// Store a copy to avoid external modifications
	recCopy := *rec
	r.records[rec.ID] = &recCopy

	return nil
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*filedepot.FileRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, exists := r.records[id]
	if !exists {
		return nil, filedepot.ErrFileNotFound
	}

	recCopy := *rec
	return &recCopy, nil
}

func (r *Repository) List(ctx context.Context, limit, offset int) ([]*filedepot.FileRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*filedepot.FileRecord, 0, len(r.records))
	for _, rec := range r.records {
		recCopy := *rec
		all = append(all, &recCopy)
	}

	// Newest first; break created-at ties by id for a stable order
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID.String() > all[j].ID.String()
	})

	if offset >= len(all) {
		return []*filedepot.FileRecord{}, nil
	}
	all = all[offset:]
	if limit < len(all) {
		all = all[:limit]
	}

	return all, nil
}

func (r *Repository) CountReferences(ctx context.Context, hash string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.countReferencesLocked(hash), nil
}

func (r *Repository) countReferencesLocked(hash string) int64 {
	var n int64
	for _, rec := range r.records {
		if rec.ContentHash == hash {
			n++
		}
	}
	return n
}

// Delete removes the record and counts the remaining references to its hash
// inside the same critical section, so concurrent deletes of records sharing
// a hash see exactly one zero.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, exists := r.records[id]
	if !exists {
		return 0, filedepot.ErrFileNotFound
	}

	hash := rec.ContentHash
	delete(r.records, id)

	return r.countReferencesLocked(hash), nil
}
