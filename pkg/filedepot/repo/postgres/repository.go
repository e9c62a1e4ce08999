package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/filedepot/filedepot/pkg/filedepot"
)

// DB is the subset of pgxpool.Pool the repository needs. Satisfied by both
// *pgxpool.Pool and *pgx.Conn.
type DB interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repository implements filedepot.Catalog using PostgreSQL. Mutations are
// single statements or transactions, so list readers never observe a
// half-written record.
type Repository struct {
	db     DB
	policy filedepot.MimePolicy
}

// Option configures the repository
type Option func(*Repository)

// WithMimePolicy restricts the MIME types Insert accepts
func WithMimePolicy(policy filedepot.MimePolicy) Option {
	return func(r *Repository) {
		r.policy = policy
	}
}

// New creates a new PostgreSQL catalog
func New(db DB, opts ...Option) *Repository {
	r := &Repository{db: db, policy: filedepot.AnyMime}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewWithPool creates a new PostgreSQL catalog backed by a connection pool
func NewWithPool(pool *pgxpool.Pool, opts ...Option) *Repository {
	return New(pool, opts...)
}

// handlePostgresError maps driver errors onto the catalog's error taxonomy
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("record already exists")
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return filedepot.ErrFileNotFound
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

func (r *Repository) Insert(ctx context.Context, rec *filedepot.FileRecord) error {
	if err := filedepot.ValidateRecord(rec, r.policy); err != nil {
		return err
	}

	query := `
		INSERT INTO files (
			id, display_name, content_hash, size_bytes, mime_type, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.Exec(ctx, query,
		rec.ID, rec.DisplayName, rec.ContentHash, rec.SizeBytes, rec.MimeType, rec.CreatedAt)
	if err != nil {
		return r.handlePostgresError("insert file", err)
	}

	return nil
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*filedepot.FileRecord, error) {
	query := `
		SELECT id, display_name, content_hash, size_bytes, mime_type, created_at
		FROM files WHERE id = $1`

	var rec filedepot.FileRecord
	err := r.db.QueryRow(ctx, query, id).Scan(
		&rec.ID, &rec.DisplayName, &rec.ContentHash, &rec.SizeBytes, &rec.MimeType, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, filedepot.ErrFileNotFound
		}
		return nil, r.handlePostgresError("get file", err)
	}

	return &rec, nil
}

func (r *Repository) List(ctx context.Context, limit, offset int) ([]*filedepot.FileRecord, error) {
	query := `
		SELECT id, display_name, content_hash, size_bytes, mime_type, created_at
		FROM files
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, r.handlePostgresError("list files", err)
	}
	defer rows.Close()

	records := []*filedepot.FileRecord{}
	for rows.Next() {
		var rec filedepot.FileRecord
		if err := rows.Scan(
			&rec.ID, &rec.DisplayName, &rec.ContentHash, &rec.SizeBytes, &rec.MimeType, &rec.CreatedAt); err != nil {
			return nil, r.handlePostgresError("list files", err)
		}
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list files", err)
	}

	return records, nil
}

func (r *Repository) CountReferences(ctx context.Context, hash string) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM files WHERE content_hash = $1`, hash).Scan(&n)
	if err != nil {
		return 0, r.handlePostgresError("count references", err)
	}
	return n, nil
}

// Delete removes the record and counts the remaining references to its hash
// in the same transaction. Two concurrent deletes of records sharing a hash
// therefore agree on which one observed zero.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, r.handlePostgresError("delete file", err)
	}
	defer tx.Rollback(ctx)

	var hash string
	err = tx.QueryRow(ctx,
		`DELETE FROM files WHERE id = $1 RETURNING content_hash`, id).Scan(&hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, filedepot.ErrFileNotFound
		}
		return 0, r.handlePostgresError("delete file", err)
	}

	var remaining int64
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM files WHERE content_hash = $1`, hash).Scan(&remaining)
	if err != nil {
		return 0, r.handlePostgresError("delete file", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, r.handlePostgresError("delete file", err)
	}

	return remaining, nil
}
