package handler

import (
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"docvault/internal/http/middleware"
	"docvault/internal/model"
	"docvault/internal/service"
)

// createDocument handles a single multipart upload (field name: file).
// Optional form fields: title, description, tags (repeated or comma-separated).
func createDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		doc, err := svc.Create(c.UserContext(), middleware.UserID(c), service.UploadInput{
			Reader:      f,
			Meta:        fileMeta(fh),
			Title:       c.FormValue("title"),
			Description: c.FormValue("description"),
			Tags:        formTags(c),
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(doc)
	}
}

// createDocumentBatch handles a multipart upload of several files (field
// name: files). The shared tags field applies to every file; titles are
// derived from the filenames.
func createDocumentBatch(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		form, err := c.MultipartForm()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILES_REQUIRED", "multipart form is required")
		}
		headers := form.File["files"]
		if len(headers) == 0 {
			return writeError(c, fiber.StatusBadRequest, "FILES_REQUIRED", "at least one file is required")
		}

		files := make([]service.UploadInput, 0, len(headers))
		opened := make([]multipart.File, 0, len(headers))
		defer func() {
			for _, f := range opened {
				f.Close()
			}
		}()
		for _, fh := range headers {
			f, err := fh.Open()
			if err != nil {
				return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
			}
			opened = append(opened, f)
			files = append(files, service.UploadInput{Reader: f, Meta: fileMeta(fh)})
		}

		res, err := svc.CreateBatch(c.UserContext(), middleware.UserID(c), files, formTags(c))
		if err != nil {
			return respondError(c, err)
		}

		failures := make([]fiber.Map, 0, len(res.Failures))
		for _, f := range res.Failures {
			failures = append(failures, fiber.Map{
				"filename": f.Filename,
				"message":  safeMessage(f.Err),
			})
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"documents": res.Documents,
			"failures":  failures,
		})
	}
}

// getDocument returns the document, its version history, and what the caller
// may do with it.
func getDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}

		detail, err := svc.Get(c.UserContext(), id, middleware.UserID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{
			"document": detail.Document,
			"versions": detail.Versions,
			"access": fiber.Map{
				"is_owner": detail.Capability.CanManage(),
				"can_edit": detail.Capability.CanEdit(),
			},
		})
	}
}

// uploadVersion appends a new version (multipart, field name: file; optional
// change_log form field).
func uploadVersion(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}

		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}
		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		ver, err := svc.UploadVersion(c.UserContext(), id, middleware.UserID(c), f, fileMeta(fh), c.FormValue("change_log"))
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(ver)
	}
}

// downloadDocument streams a version's content. Query parameters:
// - version: pin a specific version number (default: current)
// - preview: "true" renders inline instead of as an attachment
func downloadDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}

		var versionNumber *int
		if v := c.Query("version"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				return writeError(c, fiber.StatusBadRequest, "INVALID_VERSION", "invalid version number")
			}
			versionNumber = &n
		}

		res, err := svc.Download(c.UserContext(), id, middleware.UserID(c), versionNumber)
		if err != nil {
			return respondError(c, err)
		}

		disposition := "attachment"
		if p := c.Query("preview"); p == "true" || p == "1" {
			disposition = "inline"
		}
		c.Set(fiber.HeaderContentType, res.MimeType)
		c.Set(fiber.HeaderContentDisposition, disposition+`; filename="`+strings.ReplaceAll(res.Filename, `"`, "")+`"`)

		if res.Size > 0 {
			return c.SendStream(res.Content, int(res.Size))
		}
		return c.SendStream(res.Content)
	}
}

// updateDocument applies a partial metadata edit. Absent JSON fields are left
// untouched.
func updateDocument(svc service.DocumentService) fiber.Handler {
	type request struct {
		Title       *string  `json:"title"`
		Description *string  `json:"description"`
		Tags        []string `json:"tags"`
	}

	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}

		var req request
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
		}

		doc, err := svc.UpdateMetadata(c.UserContext(), id, middleware.UserID(c), service.MetadataUpdate{
			Title:       req.Title,
			Description: req.Description,
			Tags:        req.Tags,
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(doc)
	}
}

// deleteDocument soft-deletes a document. Owner only.
func deleteDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}

		if err := svc.SoftDelete(c.UserContext(), id, middleware.UserID(c)); err != nil {
			return respondError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// setPermission grants or updates an ACL entry. Owner only.
func setPermission(svc service.DocumentService) fiber.Handler {
	type request struct {
		UserID string `json:"user_id"`
		Access string `json:"access"`
	}

	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}

		var req request
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
		}

		acl, err := svc.SetPermission(c.UserContext(), id, middleware.UserID(c), req.UserID, model.AccessLevel(req.Access))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"acl": acl})
	}
}

// removePermission revokes an ACL entry. Owner only.
func removePermission(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}

		if err := svc.RemovePermission(c.UserContext(), id, middleware.UserID(c), c.Params("userId")); err != nil {
			return respondError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

func fileMeta(fh *multipart.FileHeader) model.FileMeta {
	ct := fh.Header.Get("Content-Type")
	if ct == "" {
		ct = "application/octet-stream"
	}
	return model.FileMeta{
		OriginalFilename: fh.Filename,
		MimeType:         ct,
		Size:             fh.Size,
	}
}

// formTags collects tags from repeated form fields, splitting any
// comma-separated values.
func formTags(c *fiber.Ctx) []string {
	form, err := c.MultipartForm()
	if err != nil {
		return nil
	}
	var tags []string
	for _, v := range form.Value["tags"] {
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
	}
	return tags
}
