package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"docvault/internal/access"
	"docvault/internal/apperr"
	"docvault/internal/config"
	"docvault/internal/model"
	"docvault/internal/repository"
	"docvault/internal/storage"
)

// initialChangeLog is recorded on version 1 of every document.
const initialChangeLog = "Initial upload"

// UploadInput is one incoming file with its caller-supplied metadata.
type UploadInput struct {
	Reader      io.Reader
	Meta        model.FileMeta
	Title       string
	Description string
	Tags        []string
}

// MetadataUpdate is a partial metadata edit; nil fields are left unchanged.
type MetadataUpdate struct {
	Title       *string
	Description *string
	Tags        []string
}

// BatchFailure reports one file that could not be uploaded in a batch.
type BatchFailure struct {
	Filename string
	Err      error
}

// BatchResult collects per-file outcomes of a batch upload.
type BatchResult struct {
	Documents []model.Document
	Failures  []BatchFailure
}

// DocumentDetail is the full read view of a document for a caller: the
// document, its version chain newest first, and the caller's capability.
type DocumentDetail struct {
	Document   model.Document
	Versions   []model.Version
	Capability access.Capability
}

// DownloadResult carries a version's content stream and the metadata needed
// for response headers. Size is 0 when the backend does not know the length.
type DownloadResult struct {
	Content       io.ReadCloser
	Filename      string
	MimeType      string
	Size          int64
	VersionNumber int
}

// DocumentService is the document registry: the only component that creates
// or mutates documents, versions, and ACL entries, enforcing the capability
// rules on every operation.
type DocumentService interface {
	// Create validates the upload, stores the content, and creates the
	// document together with version 1.
	Create(ctx context.Context, ownerID string, in UploadInput) (*model.Document, error)

	// CreateBatch applies Create to each file independently. One file's
	// failure does not abort the rest; it fails wholesale only when zero
	// files succeed. The batch size cap is enforced before any blob write.
	CreateBatch(ctx context.Context, ownerID string, files []UploadInput, tags []string) (*BatchResult, error)

	// UploadVersion appends a new version to an existing document. Requires
	// edit capability.
	UploadVersion(ctx context.Context, documentID, userID string, r io.Reader, meta model.FileMeta, changeLog string) (*model.Version, error)

	// UpdateMetadata applies a partial title/description/tags edit. Requires
	// edit capability.
	UpdateMetadata(ctx context.Context, documentID, userID string, upd MetadataUpdate) (*model.Document, error)

	// SoftDelete hides the document from every subsequent read. Owner only;
	// storage and version rows are untouched.
	SoftDelete(ctx context.Context, documentID, userID string) error

	// SetPermission grants or updates an ACL entry. Owner only; the owner
	// can never be a target. Returns the resulting ACL.
	SetPermission(ctx context.Context, documentID, userID, targetUserID string, level model.AccessLevel) ([]model.Permission, error)

	// RemovePermission revokes an ACL entry. Owner only.
	RemovePermission(ctx context.Context, documentID, userID, targetUserID string) error

	// Get returns the document, its versions newest first, and the caller's
	// capability. Requires view capability.
	Get(ctx context.Context, documentID, userID string) (*DocumentDetail, error)

	// Download streams the content of the given version, or the current one
	// when versionNumber is nil. Requires view capability.
	Download(ctx context.Context, documentID, userID string, versionNumber *int) (*DownloadResult, error)
}

// documentService is a concrete implementation of DocumentService.
type documentService struct {
	blobs    storage.BlobStore
	docs     repository.DocumentRepository
	versions repository.VersionRepository
	limits   config.UploadConfig
}

// NewDocumentService constructs a new DocumentService.
func NewDocumentService(blobs storage.BlobStore, docs repository.DocumentRepository, versions repository.VersionRepository, limits config.UploadConfig) DocumentService {
	return &documentService{blobs: blobs, docs: docs, versions: versions, limits: limits}
}

func (s *documentService) Create(ctx context.Context, ownerID string, in UploadInput) (*model.Document, error) {
	if err := s.validateFile(in.Reader, in.Meta); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = titleFromFilename(in.Meta.OriginalFilename)
	}
	if err := validateTitle(title); err != nil {
		return nil, err
	}
	if err := validateDescription(in.Description); err != nil {
		return nil, err
	}
	tags := NormalizeTags(in.Tags)

	// Blob write first: a failure here leaves no metadata behind, and a
	// metadata failure below leaves only an orphaned blob for later purge.
	key := storage.NewKey(in.Meta.OriginalFilename)
	if _, err := s.blobs.Put(ctx, key, in.Reader, storage.PutObjectOptions{
		Size:        in.Meta.Size,
		ContentType: in.Meta.MimeType,
		Metadata:    map[string]string{"original-filename": in.Meta.OriginalFilename},
	}); err != nil {
		return nil, apperr.Wrap(apperr.KindBlobUnavailable, "store file content", err)
	}

	now := time.Now().UTC()
	doc := &model.Document{
		ID:               uuid.New().String(),
		Title:            title,
		Description:      in.Description,
		OriginalFilename: in.Meta.OriginalFilename,
		MimeType:         in.Meta.MimeType,
		Size:             in.Meta.Size,
		OwnerID:          ownerID,
		Tags:             tags,
		CreatedAt:        now,
	}
	ver := &model.Version{
		ID:               uuid.New().String(),
		DocumentID:       doc.ID,
		StorageKey:       key,
		OriginalFilename: in.Meta.OriginalFilename,
		MimeType:         in.Meta.MimeType,
		Size:             in.Meta.Size,
		UploadedBy:       ownerID,
		ChangeLog:        initialChangeLog,
		CreatedAt:        now,
	}

	stored, _, err := s.docs.CreateWithVersion(ctx, doc, ver)
	if err != nil {
		// Rollback: delete the blob so the failed upload leaves no trace.
		if delErr := s.blobs.Delete(ctx, key); delErr != nil {
			return nil, fmt.Errorf("create document: %v; rollback delete failed: %v", err, delErr)
		}
		return nil, fmt.Errorf("create document: %w", err)
	}
	return stored, nil
}

func (s *documentService) CreateBatch(ctx context.Context, ownerID string, files []UploadInput, tags []string) (*BatchResult, error) {
	if len(files) == 0 {
		return nil, apperr.Validation("at least one file is required")
	}
	if len(files) > s.limits.MaxBatchFiles {
		return nil, apperr.Validation("at most %d files may be uploaded at once", s.limits.MaxBatchFiles)
	}

	res := &BatchResult{
		Documents: make([]model.Document, 0, len(files)),
		Failures:  make([]BatchFailure, 0),
	}
	for _, f := range files {
		f.Tags = tags
		doc, err := s.Create(ctx, ownerID, f)
		if err != nil {
			res.Failures = append(res.Failures, BatchFailure{Filename: f.Meta.OriginalFilename, Err: err})
			continue
		}
		res.Documents = append(res.Documents, *doc)
	}

	if len(res.Documents) == 0 {
		return nil, res.Failures[0].Err
	}
	return res, nil
}

func (s *documentService) UploadVersion(ctx context.Context, documentID, userID string, r io.Reader, meta model.FileMeta, changeLog string) (*model.Version, error) {
	if err := s.validateFile(r, meta); err != nil {
		return nil, err
	}

	doc, err := s.findDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if !access.ForDocument(doc, userID).CanEdit() {
		return nil, apperr.Forbidden("edit access required")
	}

	if changeLog == "" {
		changeLog = fmt.Sprintf("Version %d", doc.CurrentVersionNumber+1)
	}

	key := storage.NewKey(meta.OriginalFilename)
	if _, err := s.blobs.Put(ctx, key, r, storage.PutObjectOptions{
		Size:        meta.Size,
		ContentType: meta.MimeType,
		Metadata:    map[string]string{"original-filename": meta.OriginalFilename},
	}); err != nil {
		return nil, apperr.Wrap(apperr.KindBlobUnavailable, "store file content", err)
	}

	ver := &model.Version{
		ID:               uuid.New().String(),
		DocumentID:       documentID,
		StorageKey:       key,
		OriginalFilename: meta.OriginalFilename,
		MimeType:         meta.MimeType,
		Size:             meta.Size,
		UploadedBy:       userID,
		ChangeLog:        changeLog,
		CreatedAt:        time.Now().UTC(),
	}

	stored, err := s.versions.Append(ctx, ver)
	if err != nil {
		if delErr := s.blobs.Delete(ctx, key); delErr != nil {
			return nil, fmt.Errorf("append version: %v; rollback delete failed: %v", err, delErr)
		}
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, apperr.Wrap(apperr.KindConflict, "version upload lost a concurrent race, please retry", err)
		}
		return nil, fmt.Errorf("append version: %w", err)
	}
	return stored, nil
}

func (s *documentService) UpdateMetadata(ctx context.Context, documentID, userID string, upd MetadataUpdate) (*model.Document, error) {
	doc, err := s.findDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if !access.ForDocument(doc, userID).CanEdit() {
		return nil, apperr.Forbidden("edit access required")
	}

	patch := repository.MetadataPatch{}
	if upd.Title != nil {
		title := strings.TrimSpace(*upd.Title)
		if err := validateTitle(title); err != nil {
			return nil, err
		}
		patch.Title = &title
	}
	if upd.Description != nil {
		if err := validateDescription(*upd.Description); err != nil {
			return nil, err
		}
		patch.Description = upd.Description
	}
	if upd.Tags != nil {
		patch.Tags = NormalizeTags(upd.Tags)
	}

	updated, err := s.docs.UpdateMetadata(ctx, documentID, patch)
	if err != nil {
		return nil, mapNoRows(err, "document not found")
	}
	return updated, nil
}

func (s *documentService) SoftDelete(ctx context.Context, documentID, userID string) error {
	doc, err := s.findDocument(ctx, documentID)
	if err != nil {
		return err
	}
	if !access.ForDocument(doc, userID).CanManage() {
		return apperr.Forbidden("only the owner can delete a document")
	}
	if err := s.docs.SoftDelete(ctx, documentID, time.Now().UTC()); err != nil {
		return mapNoRows(err, "document not found")
	}
	return nil
}

func (s *documentService) SetPermission(ctx context.Context, documentID, userID, targetUserID string, level model.AccessLevel) ([]model.Permission, error) {
	if targetUserID == "" {
		return nil, apperr.Validation("target user id is required")
	}
	if !level.Valid() {
		return nil, apperr.Validation("access level must be %q or %q", model.AccessViewer, model.AccessEditor)
	}

	doc, err := s.findDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if !access.ForDocument(doc, userID).CanManage() {
		return nil, apperr.Forbidden("only the owner can manage permissions")
	}
	if targetUserID == doc.OwnerID {
		return nil, apperr.Validation("the owner cannot appear in the ACL")
	}

	if err := s.docs.UpsertPermission(ctx, documentID, model.Permission{UserID: targetUserID, Access: level}); err != nil {
		return nil, fmt.Errorf("upsert permission: %w", err)
	}

	// Reflect the upsert in the copy we already hold.
	acl := doc.ACL
	found := false
	for i := range acl {
		if acl[i].UserID == targetUserID {
			acl[i].Access = level
			found = true
			break
		}
	}
	if !found {
		acl = append(acl, model.Permission{UserID: targetUserID, Access: level})
	}
	return acl, nil
}

func (s *documentService) RemovePermission(ctx context.Context, documentID, userID, targetUserID string) error {
	doc, err := s.findDocument(ctx, documentID)
	if err != nil {
		return err
	}
	if !access.ForDocument(doc, userID).CanManage() {
		return apperr.Forbidden("only the owner can manage permissions")
	}

	existed, err := s.docs.DeletePermission(ctx, documentID, targetUserID)
	if err != nil {
		return fmt.Errorf("delete permission: %w", err)
	}
	if !existed {
		return apperr.NotFound("no permission entry for that user")
	}
	return nil
}

func (s *documentService) Get(ctx context.Context, documentID, userID string) (*DocumentDetail, error) {
	doc, err := s.findDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	cap := access.ForDocument(doc, userID)
	if !cap.CanView() {
		return nil, apperr.Forbidden("access denied")
	}

	versions, err := s.versions.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}

	return &DocumentDetail{Document: *doc, Versions: versions, Capability: cap}, nil
}

func (s *documentService) Download(ctx context.Context, documentID, userID string, versionNumber *int) (*DownloadResult, error) {
	doc, err := s.findDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if !access.ForDocument(doc, userID).CanView() {
		return nil, apperr.Forbidden("access denied")
	}

	var ver *model.Version
	if versionNumber != nil {
		ver, err = s.versions.FindByNumber(ctx, documentID, *versionNumber)
	} else {
		ver, err = s.versions.FindLatest(ctx, documentID)
	}
	if err != nil {
		return nil, mapNoRows(err, "version not found")
	}

	rc, info, err := s.openBlob(ctx, ver.StorageKey)
	if err != nil {
		return nil, err
	}

	size := ver.Size
	if info.Size > 0 {
		size = info.Size
	}
	return &DownloadResult{
		Content:       rc,
		Filename:      ver.OriginalFilename,
		MimeType:      ver.MimeType,
		Size:          size,
		VersionNumber: ver.VersionNumber,
	}, nil
}

// openBlob reads from the blob store, retrying a failed read once. Reads are
// idempotent; writes are never retried here.
func (s *documentService) openBlob(ctx context.Context, key string) (io.ReadCloser, storage.ObjectInfo, error) {
	rc, info, err := s.blobs.Get(ctx, key)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		rc, info, err = s.blobs.Get(ctx, key)
	}
	if err != nil {
		return nil, storage.ObjectInfo{}, apperr.Wrap(apperr.KindBlobUnavailable, "read file content", err)
	}
	return rc, info, nil
}

// findDocument loads a document or returns NotFound; soft-deleted rows are
// already filtered by the repository, so they are indistinguishable from
// absent ones here.
func (s *documentService) findDocument(ctx context.Context, documentID string) (*model.Document, error) {
	if documentID == "" {
		return nil, apperr.Validation("document id is required")
	}
	doc, err := s.docs.FindByID(ctx, documentID)
	if err != nil {
		return nil, mapNoRows(err, "document not found")
	}
	return doc, nil
}

func (s *documentService) validateFile(r io.Reader, meta model.FileMeta) error {
	if r == nil {
		return apperr.Validation("file is required")
	}
	if meta.Size <= 0 {
		return apperr.Validation("file is empty")
	}
	if meta.Size > s.limits.MaxFileSize {
		return apperr.Validation("file exceeds the maximum size of %d bytes", s.limits.MaxFileSize)
	}
	for _, mt := range s.limits.AllowedMimeTypes {
		if meta.MimeType == mt {
			return nil
		}
	}
	return apperr.Validation("file type %q is not allowed", meta.MimeType)
}

func validateTitle(title string) error {
	if title == "" {
		return apperr.Validation("title is required")
	}
	if len(title) > 255 {
		return apperr.Validation("title must be at most 255 characters")
	}
	return nil
}

func validateDescription(desc string) error {
	if len(desc) > 1000 {
		return apperr.Validation("description must be at most 1000 characters")
	}
	return nil
}

// titleFromFilename strips the extension from the original filename.
func titleFromFilename(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// NormalizeTags lowercases and trims tags, dropping empties and duplicates
// while preserving first-seen order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func mapNoRows(err error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound(msg)
	}
	return err
}
