package repository

import (
	"context"

	"docvault/internal/model"
)

// VersionRepository defines data access for a document's version chain.
// Version rows are append-only: nothing here edits or deletes one.
type VersionRepository interface {
	// Append assigns the next version number to ver, inserts it, and updates
	// the parent document's cached filename/mime/size and current-version
	// pointer in the same transaction. Concurrent appends on one document
	// are serialized by the uniqueness constraint on
	// (document_id, version_number); losing inserts are retried a bounded
	// number of times before ErrVersionConflict is returned.
	Append(ctx context.Context, ver *model.Version) (*model.Version, error)

	// ListByDocument returns all versions of a document, newest first.
	ListByDocument(ctx context.Context, documentID string) ([]model.Version, error)

	// FindByNumber returns one version by its number within the document.
	// Returns sql.ErrNoRows when the number does not exist.
	FindByNumber(ctx context.Context, documentID string, number int) (*model.Version, error)

	// FindLatest returns the highest-numbered version of the document.
	// Returns sql.ErrNoRows when the document has no versions.
	FindLatest(ctx context.Context, documentID string) (*model.Version, error)
}
