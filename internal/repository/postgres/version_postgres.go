package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"docvault/internal/model"
	"docvault/internal/repository"
)

// maxAppendAttempts bounds the retry loop when two appends race on the same
// document and one loses the uniqueness constraint.
const maxAppendAttempts = 3

// uniqueViolation is the PostgreSQL SQLSTATE for a unique constraint error.
const uniqueViolation = "23505"

// VersionPostgres is a PostgreSQL implementation of repository.VersionRepository.
type VersionPostgres struct {
	db *sql.DB
}

// NewVersionPostgres creates a new VersionPostgres repository.
func NewVersionPostgres(db *sql.DB) *VersionPostgres {
	return &VersionPostgres{db: db}
}

var _ repository.VersionRepository = (*VersionPostgres)(nil)

const versionColumns = `id, document_id, version_number, storage_key, original_filename, mime_type, size,
		uploaded_by, change_log, created_at`

func scanVersion(s interface{ Scan(...any) error }) (*model.Version, error) {
	var v model.Version
	if err := s.Scan(
		&v.ID,
		&v.DocumentID,
		&v.VersionNumber,
		&v.StorageKey,
		&v.OriginalFilename,
		&v.MimeType,
		&v.Size,
		&v.UploadedBy,
		&v.ChangeLog,
		&v.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &v, nil
}

// Append inserts ver with the next version number for its document and
// updates the parent row's cached file attributes and current-version
// pointer in the same transaction. The number is computed inside the insert
// (read-max-then-insert); the UNIQUE (document_id, version_number)
// constraint turns a concurrent race into a retryable conflict instead of a
// duplicate number.
func (r *VersionPostgres) Append(ctx context.Context, ver *model.Version) (*model.Version, error) {
	for attempt := 0; attempt < maxAppendAttempts; attempt++ {
		out, err := r.tryAppend(ctx, ver)
		if err == nil {
			return out, nil
		}
		if !isUniqueViolation(err) {
			return nil, err
		}
	}
	return nil, repository.ErrVersionConflict
}

func (r *VersionPostgres) tryAppend(ctx context.Context, ver *model.Version) (*model.Version, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	const qInsert = `
		INSERT INTO versions (id, document_id, version_number, storage_key, original_filename, mime_type, size,
			uploaded_by, change_log, created_at)
		SELECT $1, $2, COALESCE(MAX(version_number), 0) + 1, $3, $4, $5, $6, $7, $8, $9
		FROM versions
		WHERE document_id = $2
		RETURNING ` + versionColumns
	row := tx.QueryRowContext(ctx, qInsert,
		ver.ID,
		ver.DocumentID,
		ver.StorageKey,
		ver.OriginalFilename,
		ver.MimeType,
		ver.Size,
		ver.UploadedBy,
		ver.ChangeLog,
		ver.CreatedAt,
	)
	out, err := scanVersion(row)
	if err != nil {
		return nil, err
	}

	const qUpdate = `
		UPDATE documents
		SET current_version_number = $2, original_filename = $3, mime_type = $4, size = $5, updated_at = now()
		WHERE id = $1
	`
	if _, err := tx.ExecContext(ctx, qUpdate,
		out.DocumentID,
		out.VersionNumber,
		out.OriginalFilename,
		out.MimeType,
		out.Size,
	); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// ListByDocument returns all versions of a document, newest first.
func (r *VersionPostgres) ListByDocument(ctx context.Context, documentID string) ([]model.Version, error) {
	const q = `
		SELECT ` + versionColumns + `
		FROM versions
		WHERE document_id = $1
		ORDER BY version_number DESC
	`
	rows, err := r.db.QueryContext(ctx, q, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	versions := make([]model.Version, 0)
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return versions, nil
}

// FindByNumber returns one version by its number within the document.
func (r *VersionPostgres) FindByNumber(ctx context.Context, documentID string, number int) (*model.Version, error) {
	const q = `
		SELECT ` + versionColumns + `
		FROM versions
		WHERE document_id = $1 AND version_number = $2
	`
	return scanVersion(r.db.QueryRowContext(ctx, q, documentID, number))
}

// FindLatest returns the highest-numbered version of the document.
func (r *VersionPostgres) FindLatest(ctx context.Context, documentID string) (*model.Version, error) {
	const q = `
		SELECT ` + versionColumns + `
		FROM versions
		WHERE document_id = $1
		ORDER BY version_number DESC
		LIMIT 1
	`
	return scanVersion(r.db.QueryRowContext(ctx, q, documentID))
}
