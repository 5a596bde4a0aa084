package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"docvault/internal/model"
	"docvault/internal/repository"
)

// DocumentPostgres is a PostgreSQL implementation of repository.DocumentRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type DocumentPostgres struct {
	db *sql.DB
}

// NewDocumentPostgres creates a new DocumentPostgres repository.
func NewDocumentPostgres(db *sql.DB) *DocumentPostgres {
	return &DocumentPostgres{db: db}
}

var _ repository.DocumentRepository = (*DocumentPostgres)(nil)

const documentColumns = `id, title, description, original_filename, mime_type, size, owner_id, tags,
		current_version_number, is_deleted, deleted_at, created_at, updated_at`

// sortColumns whitelists the sortable fields; anything else falls back to
// created_at so caller input can never reach the ORDER BY clause verbatim.
var sortColumns = map[string]string{
	"size":      "size",
	"createdAt": "created_at",
	"title":     "title",
	"updatedAt": "updated_at",
}

func scanDocument(s interface{ Scan(...any) error }) (*model.Document, error) {
	var d model.Document
	var tags []byte
	if err := s.Scan(
		&d.ID,
		&d.Title,
		&d.Description,
		&d.OriginalFilename,
		&d.MimeType,
		&d.Size,
		&d.OwnerID,
		&tags,
		&d.CurrentVersionNumber,
		&d.IsDeleted,
		&d.DeletedAt,
		&d.CreatedAt,
		&d.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := unmarshalTags(tags, &d.Tags); err != nil {
		return nil, err
	}
	return &d, nil
}

func unmarshalTags(raw []byte, dst *[]string) error {
	*dst = []string{}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode tags: %w", err)
	}
	return nil
}

func marshalTags(tags []string) ([]byte, error) {
	if tags == nil {
		tags = []string{}
	}
	return json.Marshal(tags)
}

// CreateWithVersion inserts the document and its initial version in one
// transaction and returns the stored rows.
func (r *DocumentPostgres) CreateWithVersion(ctx context.Context, doc *model.Document, ver *model.Version) (*model.Document, *model.Version, error) {
	tags, err := marshalTags(doc.Tags)
	if err != nil {
		return nil, nil, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	const qDoc = `
		INSERT INTO documents (id, title, description, original_filename, mime_type, size, owner_id, tags,
			current_version_number, is_deleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1, FALSE, $9, $9)
		RETURNING ` + documentColumns
	row := tx.QueryRowContext(ctx, qDoc,
		doc.ID,
		doc.Title,
		doc.Description,
		doc.OriginalFilename,
		doc.MimeType,
		doc.Size,
		doc.OwnerID,
		tags,
		doc.CreatedAt,
	)
	outDoc, err := scanDocument(row)
	if err != nil {
		return nil, nil, err
	}

	const qVer = `
		INSERT INTO versions (id, document_id, version_number, storage_key, original_filename, mime_type, size,
			uploaded_by, change_log, created_at)
		VALUES ($1, $2, 1, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, document_id, version_number, storage_key, original_filename, mime_type, size,
			uploaded_by, change_log, created_at
	`
	row = tx.QueryRowContext(ctx, qVer,
		ver.ID,
		doc.ID,
		ver.StorageKey,
		ver.OriginalFilename,
		ver.MimeType,
		ver.Size,
		ver.UploadedBy,
		ver.ChangeLog,
		ver.CreatedAt,
	)
	outVer, err := scanVersion(row)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}
	return outDoc, outVer, nil
}

// FindByID fetches a non-deleted document and loads its ACL entries.
func (r *DocumentPostgres) FindByID(ctx context.Context, id string) (*model.Document, error) {
	const q = `
		SELECT ` + documentColumns + `
		FROM documents
		WHERE id = $1 AND NOT is_deleted
	`
	doc, err := scanDocument(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, err
	}

	const qACL = `
		SELECT user_id, access
		FROM permissions
		WHERE document_id = $1
		ORDER BY created_at
	`
	rows, err := r.db.QueryContext(ctx, qACL, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	doc.ACL = make([]model.Permission, 0)
	for rows.Next() {
		var p model.Permission
		if err := rows.Scan(&p.UserID, &p.Access); err != nil {
			return nil, err
		}
		doc.ACL = append(doc.ACL, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return doc, nil
}

// UpdateMetadata applies the non-nil patch fields and returns the updated row.
func (r *DocumentPostgres) UpdateMetadata(ctx context.Context, id string, patch repository.MetadataPatch) (*model.Document, error) {
	sets := []string{"updated_at = now()"}
	args := []any{id}

	if patch.Title != nil {
		args = append(args, *patch.Title)
		sets = append(sets, fmt.Sprintf("title = $%d", len(args)))
	}
	if patch.Description != nil {
		args = append(args, *patch.Description)
		sets = append(sets, fmt.Sprintf("description = $%d", len(args)))
	}
	if patch.Tags != nil {
		tags, err := marshalTags(patch.Tags)
		if err != nil {
			return nil, err
		}
		args = append(args, tags)
		sets = append(sets, fmt.Sprintf("tags = $%d", len(args)))
	}

	q := fmt.Sprintf(`
		UPDATE documents
		SET %s
		WHERE id = $1 AND NOT is_deleted
		RETURNING %s`, strings.Join(sets, ", "), documentColumns)

	return scanDocument(r.db.QueryRowContext(ctx, q, args...))
}

// SoftDelete flags the row deleted; returns sql.ErrNoRows if it was absent
// or already flagged.
func (r *DocumentPostgres) SoftDelete(ctx context.Context, id string, at time.Time) error {
	const q = `
		UPDATE documents
		SET is_deleted = TRUE, deleted_at = $2, updated_at = now()
		WHERE id = $1 AND NOT is_deleted
	`
	res, err := r.db.ExecContext(ctx, q, id, at)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpsertPermission writes the ACL entry in one atomic statement; an existing
// entry for the same user has its level overwritten.
func (r *DocumentPostgres) UpsertPermission(ctx context.Context, documentID string, perm model.Permission) error {
	const q = `
		INSERT INTO permissions (document_id, user_id, access)
		VALUES ($1, $2, $3)
		ON CONFLICT (document_id, user_id)
		DO UPDATE SET access = EXCLUDED.access, updated_at = now()
	`
	_, err := r.db.ExecContext(ctx, q, documentID, perm.UserID, perm.Access)
	return err
}

// DeletePermission removes the entry and reports whether one existed.
func (r *DocumentPostgres) DeletePermission(ctx context.Context, documentID, userID string) (bool, error) {
	const q = `DELETE FROM permissions WHERE document_id = $1 AND user_id = $2`
	res, err := r.db.ExecContext(ctx, q, documentID, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListOwned returns a filtered page of the owner's non-deleted documents.
// The tag filter matches documents containing any of the given tags.
func (r *DocumentPostgres) ListOwned(ctx context.Context, f repository.OwnedFilter) (*repository.PageResult[model.Document], error) {
	where := []string{"owner_id = $1", "NOT is_deleted"}
	args := []any{f.OwnerID}

	if f.Query != "" {
		args = append(args, "%"+f.Query+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(title ILIKE $%d OR original_filename ILIKE $%d OR description ILIKE $%d)", n, n, n))
	}
	if len(f.Tags) > 0 {
		ph := make([]string, 0, len(f.Tags))
		for _, tag := range f.Tags {
			args = append(args, tag)
			ph = append(ph, fmt.Sprintf("$%d", len(args)))
		}
		where = append(where, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM jsonb_array_elements_text(tags) AS t(tag) WHERE t.tag IN (%s))",
			strings.Join(ph, ", ")))
	}

	cond := strings.Join(where, " AND ")

	qCount := fmt.Sprintf(`SELECT COUNT(*) FROM documents WHERE %s`, cond)
	var total int
	if err := r.db.QueryRowContext(ctx, qCount, args...).Scan(&total); err != nil {
		return nil, err
	}

	col, ok := sortColumns[f.SortBy]
	if !ok {
		col = "created_at"
	}
	dir := "ASC"
	if f.SortDesc {
		dir = "DESC"
	}

	args = append(args, f.Limit, f.Offset)
	qList := fmt.Sprintf(`
		SELECT %s
		FROM documents
		WHERE %s
		ORDER BY %s %s, id DESC
		LIMIT $%d OFFSET $%d`, documentColumns, cond, col, dir, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, qList, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Document, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.Document]{Items: items, Total: total}, nil
}

// ListShared returns documents where the user holds an ACL entry, together
// with that entry's access level, most recently updated first.
func (r *DocumentPostgres) ListShared(ctx context.Context, userID string, pq repository.PageQuery) (*repository.PageResult[repository.SharedDocument], error) {
	const qCount = `
		SELECT COUNT(*)
		FROM documents d
		JOIN permissions p ON p.document_id = d.id
		WHERE p.user_id = $1 AND NOT d.is_deleted
	`
	var total int
	if err := r.db.QueryRowContext(ctx, qCount, userID).Scan(&total); err != nil {
		return nil, err
	}

	const qList = `
		SELECT d.id, d.title, d.description, d.original_filename, d.mime_type, d.size, d.owner_id, d.tags,
			d.current_version_number, d.is_deleted, d.deleted_at, d.created_at, d.updated_at, p.access
		FROM documents d
		JOIN permissions p ON p.document_id = d.id
		WHERE p.user_id = $1 AND NOT d.is_deleted
		ORDER BY d.updated_at DESC, d.id DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.QueryContext(ctx, qList, userID, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]repository.SharedDocument, 0)
	for rows.Next() {
		var sd repository.SharedDocument
		var tags []byte
		if err := rows.Scan(
			&sd.ID,
			&sd.Title,
			&sd.Description,
			&sd.OriginalFilename,
			&sd.MimeType,
			&sd.Size,
			&sd.OwnerID,
			&tags,
			&sd.CurrentVersionNumber,
			&sd.IsDeleted,
			&sd.DeletedAt,
			&sd.CreatedAt,
			&sd.UpdatedAt,
			&sd.Access,
		); err != nil {
			return nil, err
		}
		if err := unmarshalTags(tags, &sd.Tags); err != nil {
			return nil, err
		}
		items = append(items, sd)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[repository.SharedDocument]{Items: items, Total: total}, nil
}

// StatsByOwner returns the slim rows the dashboard aggregates over.
func (r *DocumentPostgres) StatsByOwner(ctx context.Context, ownerID string) ([]repository.DocumentStat, error) {
	const q = `
		SELECT size, mime_type, tags
		FROM documents
		WHERE owner_id = $1 AND NOT is_deleted
	`
	rows, err := r.db.QueryContext(ctx, q, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := make([]repository.DocumentStat, 0)
	for rows.Next() {
		var st repository.DocumentStat
		var tags []byte
		if err := rows.Scan(&st.Size, &st.MimeType, &tags); err != nil {
			return nil, err
		}
		if err := unmarshalTags(tags, &st.Tags); err != nil {
			return nil, err
		}
		stats = append(stats, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return stats, nil
}

// ListTags returns the distinct tags across documents the user owns or has
// an ACL entry for.
func (r *DocumentPostgres) ListTags(ctx context.Context, userID string) ([]string, error) {
	const q = `
		SELECT DISTINCT t.tag
		FROM documents d
		CROSS JOIN LATERAL jsonb_array_elements_text(d.tags) AS t(tag)
		WHERE NOT d.is_deleted
			AND (d.owner_id = $1
				OR EXISTS (SELECT 1 FROM permissions p WHERE p.document_id = d.id AND p.user_id = $1))
		ORDER BY t.tag
	`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tags := make([]string, 0)
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tags, nil
}
