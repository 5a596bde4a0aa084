package repository

import (
	"context"
	"time"

	"docvault/internal/model"
)

// MetadataPatch carries a partial metadata update. Nil fields are left
// unchanged; Tags must already be normalized by the caller.
type MetadataPatch struct {
	Title       *string
	Description *string
	Tags        []string
}

// OwnedFilter selects and orders an owner's documents.
// SortBy must be one of the whitelisted sortable fields; implementations
// map it to a column and fall back to creation time for anything else.
type OwnedFilter struct {
	OwnerID  string
	Query    string
	Tags     []string
	SortBy   string
	SortDesc bool
	Limit    int
	Offset   int
}

// SharedDocument is a document row joined with the access level the listing
// user holds on it.
type SharedDocument struct {
	model.Document
	Access model.AccessLevel
}

// DocumentStat is the slim per-document row used for dashboard aggregation.
type DocumentStat struct {
	Size     int64
	MimeType string
	Tags     []string
}

// DocumentRepository defines data access for documents and their ACLs using
// SQL queries only. No business logic here — strictly persistence
// operations. Soft-deleted documents are filtered out by every read.
type DocumentRepository interface {
	// CreateWithVersion inserts the document row and its initial version in
	// one transaction, so a document can never exist without version 1.
	CreateWithVersion(ctx context.Context, doc *model.Document, ver *model.Version) (*model.Document, *model.Version, error)

	// FindByID returns a non-deleted document with its ACL entries loaded.
	// Returns sql.ErrNoRows when absent or soft-deleted.
	FindByID(ctx context.Context, id string) (*model.Document, error)

	// UpdateMetadata applies the non-nil fields of the patch and returns the
	// updated row.
	UpdateMetadata(ctx context.Context, id string, patch MetadataPatch) (*model.Document, error)

	// SoftDelete flags the document deleted at the given instant. Returns
	// sql.ErrNoRows if the row is absent or already deleted.
	SoftDelete(ctx context.Context, id string, at time.Time) error

	// UpsertPermission inserts or overwrites the ACL entry for the
	// permission's user in a single atomic statement.
	UpsertPermission(ctx context.Context, documentID string, perm model.Permission) error

	// DeletePermission removes the ACL entry and reports whether one existed.
	DeletePermission(ctx context.Context, documentID, userID string) (bool, error)

	// ListOwned returns a filtered, sorted page of the owner's documents and
	// the total match count.
	ListOwned(ctx context.Context, f OwnedFilter) (*PageResult[model.Document], error)

	// ListShared returns a page of documents carrying an ACL entry for
	// userID, newest activity first, with the caller's access level.
	ListShared(ctx context.Context, userID string, pq PageQuery) (*PageResult[SharedDocument], error)

	// StatsByOwner returns one stat row per non-deleted owned document.
	StatsByOwner(ctx context.Context, ownerID string) ([]DocumentStat, error)

	// ListTags returns the distinct tags across documents the user owns or
	// has an ACL entry for, sorted ascending.
	ListTags(ctx context.Context, userID string) ([]string, error)
}
