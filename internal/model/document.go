package model

import "time"

// AccessLevel is the level granted to a user through a document's ACL.
// The owner never appears in the ACL; ownership is tracked on the document.
type AccessLevel string

const (
	AccessViewer AccessLevel = "viewer"
	AccessEditor AccessLevel = "editor"
)

// Valid reports whether the level is one of the grantable ACL levels.
func (a AccessLevel) Valid() bool {
	return a == AccessViewer || a == AccessEditor
}

// Document represents a logical document: mutable metadata plus cached
// attributes of its latest version. These are pure domain models with no
// database-specific dependencies or tags; they can be used across layers
// (HTTP, service, storage) without coupling to persistence.
type Document struct {
	ID                   string       `json:"id"`
	Title                string       `json:"title"`
	Description          string       `json:"description"`
	OriginalFilename     string       `json:"original_filename"`
	MimeType             string       `json:"mime_type"`
	Size                 int64        `json:"size"`
	OwnerID              string       `json:"owner_id"`
	Tags                 []string     `json:"tags"`
	CurrentVersionNumber int          `json:"current_version_number"`
	ACL                  []Permission `json:"acl,omitempty"`
	IsDeleted            bool         `json:"-"`
	DeletedAt            *time.Time   `json:"-"`
	CreatedAt            time.Time    `json:"created_at"`
	UpdatedAt            time.Time    `json:"updated_at"`
}

// Version is one immutable entry in a document's version chain. Once
// created it is never edited and its storage key is never reassigned.
type Version struct {
	ID               string    `json:"id"`
	DocumentID       string    `json:"document_id"`
	VersionNumber    int       `json:"version_number"`
	StorageKey       string    `json:"-"`
	OriginalFilename string    `json:"original_filename"`
	MimeType         string    `json:"mime_type"`
	Size             int64     `json:"size"`
	UploadedBy       string    `json:"uploaded_by"`
	ChangeLog        string    `json:"change_log"`
	CreatedAt        time.Time `json:"created_at"`
}

// Permission is a single ACL entry: at most one per (document, user).
type Permission struct {
	UserID string      `json:"user_id"`
	Access AccessLevel `json:"access"`
}

// FileMeta describes an incoming upload before it is persisted.
type FileMeta struct {
	OriginalFilename string
	MimeType         string
	Size             int64
}
