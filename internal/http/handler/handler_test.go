package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"docvault/internal/access"
	"docvault/internal/apperr"
	"docvault/internal/http/middleware"
	"docvault/internal/model"
	"docvault/internal/service"
	serviceMocks "docvault/internal/service/mocks"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// newApp returns a Fiber app with the caller pre-authenticated, so handlers
// can be exercised without minting real tokens.
func newApp(userID string) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(middleware.UserIDLocalKey, userID)
		return c.Next()
	})
	return app
}

func multipartBody(t *testing.T, fileField, filename, content string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(fileField, filename)
	require.NoError(t, err)
	part.Write([]byte(content))
	for k, v := range fields {
		writer.WriteField(k, v)
	}
	writer.Close()
	return body, writer.FormDataContentType()
}

func TestRegisterRoutes_Health(t *testing.T) {
	db, dbMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
	RegisterRoutes(app, db, "secret", new(serviceMocks.MockDocumentService), new(serviceMocks.MockListingService))

	t.Run("healthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(nil)

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]string
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "healthy", body["status"])
	})

	t.Run("unhealthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(errors.New("db error"))

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "SERVICE_UNAVAILABLE", body.Error.Code)
	})

	t.Run("liveness probe", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("api routes require a token", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/api/documents", nil))
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestCreateDocument(t *testing.T) {
	mockSvc := new(serviceMocks.MockDocumentService)
	app := newApp("user-1")
	app.Post("/documents", createDocument(mockSvc))

	t.Run("success", func(t *testing.T) {
		body, contentType := multipartBody(t, "file", "report.pdf", "content", map[string]string{
			"title": "Q3 Report",
			"tags":  "finance,q3",
		})

		expected := &model.Document{ID: uuid.New().String(), Title: "Q3 Report"}
		mockSvc.On("Create", mock.Anything, "user-1", mock.MatchedBy(func(in service.UploadInput) bool {
			return in.Title == "Q3 Report" &&
				in.Meta.OriginalFilename == "report.pdf" &&
				assert.ObjectsAreEqual([]string{"finance", "q3"}, in.Tags)
		})).Return(expected, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/documents", body)
		req.Header.Set("Content-Type", contentType)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		var result model.Document
		json.NewDecoder(resp.Body).Decode(&result)
		assert.Equal(t, expected.ID, result.ID)
		mockSvc.AssertExpectations(t)
	})

	t.Run("no file", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodPost, "/documents", nil))

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "FILE_REQUIRED", res.Error.Code)
	})

	t.Run("validation error from service", func(t *testing.T) {
		body, contentType := multipartBody(t, "file", "huge.pdf", "content", nil)

		mockSvc.On("Create", mock.Anything, "user-1", mock.Anything).
			Return(nil, apperr.Validation("file exceeds the maximum size")).Once()

		req := httptest.NewRequest(http.MethodPost, "/documents", body)
		req.Header.Set("Content-Type", contentType)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "VALIDATION_ERROR", res.Error.Code)
		assert.Contains(t, res.Error.Message, "maximum size")
		mockSvc.AssertExpectations(t)
	})
}

func TestCreateDocumentBatch(t *testing.T) {
	mockSvc := new(serviceMocks.MockDocumentService)
	app := newApp("user-1")
	app.Post("/documents/batch", createDocumentBatch(mockSvc))

	t.Run("mixed outcome is reported per file", func(t *testing.T) {
		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		for _, name := range []string{"good.pdf", "bad.exe"} {
			part, _ := writer.CreateFormFile("files", name)
			part.Write([]byte("content"))
		}
		writer.WriteField("tags", "shared")
		writer.Close()

		mockSvc.On("CreateBatch", mock.Anything, "user-1", mock.Anything, []string{"shared"}).
			Return(&service.BatchResult{
				Documents: []model.Document{{ID: "ok-id"}},
				Failures: []service.BatchFailure{
					{Filename: "bad.exe", Err: apperr.Validation("file type not allowed")},
				},
			}, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/documents/batch", body)
		req.Header.Set("Content-Type", writer.FormDataContentType())
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		var res struct {
			Documents []model.Document `json:"documents"`
			Failures  []struct {
				Filename string `json:"filename"`
				Message  string `json:"message"`
			} `json:"failures"`
		}
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Len(t, res.Documents, 1)
		require.Len(t, res.Failures, 1)
		assert.Equal(t, "bad.exe", res.Failures[0].Filename)
		assert.Equal(t, "file type not allowed", res.Failures[0].Message)
		mockSvc.AssertExpectations(t)
	})

	t.Run("no files", func(t *testing.T) {
		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		writer.WriteField("tags", "shared")
		writer.Close()

		req := httptest.NewRequest(http.MethodPost, "/documents/batch", body)
		req.Header.Set("Content-Type", writer.FormDataContentType())
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestGetDocument(t *testing.T) {
	mockSvc := new(serviceMocks.MockDocumentService)
	app := newApp("user-1")
	app.Get("/documents/:id", getDocument(mockSvc))

	docID := uuid.New().String()

	t.Run("success includes access flags", func(t *testing.T) {
		mockSvc.On("Get", mock.Anything, docID, "user-1").
			Return(&service.DocumentDetail{
				Document:   model.Document{ID: docID, OwnerID: "someone-else"},
				Versions:   []model.Version{{VersionNumber: 1}},
				Capability: access.CapabilityEditor,
			}, nil).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/documents/"+docID, nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var res struct {
			Document model.Document  `json:"document"`
			Versions []model.Version `json:"versions"`
			Access   struct {
				IsOwner bool `json:"is_owner"`
				CanEdit bool `json:"can_edit"`
			} `json:"access"`
		}
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, docID, res.Document.ID)
		assert.Len(t, res.Versions, 1)
		assert.True(t, res.Access.CanEdit)
		assert.False(t, res.Access.IsOwner)
		mockSvc.AssertExpectations(t)
	})

	t.Run("invalid id", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/documents/not-a-uuid", nil))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("forbidden", func(t *testing.T) {
		mockSvc.On("Get", mock.Anything, docID, "user-1").
			Return(nil, apperr.Forbidden("access denied")).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/documents/"+docID, nil))
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("not found", func(t *testing.T) {
		mockSvc.On("Get", mock.Anything, docID, "user-1").
			Return(nil, apperr.NotFound("document not found")).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/documents/"+docID, nil))
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestUploadVersion(t *testing.T) {
	mockSvc := new(serviceMocks.MockDocumentService)
	app := newApp("user-1")
	app.Post("/documents/:id/versions", uploadVersion(mockSvc))

	docID := uuid.New().String()

	t.Run("success", func(t *testing.T) {
		body, contentType := multipartBody(t, "file", "v2.pdf", "new content", map[string]string{
			"change_log": "Fixed totals",
		})

		mockSvc.On("UploadVersion", mock.Anything, docID, "user-1", mock.Anything, mock.Anything, "Fixed totals").
			Return(&model.Version{VersionNumber: 2}, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/documents/"+docID+"/versions", body)
		req.Header.Set("Content-Type", contentType)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		var ver model.Version
		json.NewDecoder(resp.Body).Decode(&ver)
		assert.Equal(t, 2, ver.VersionNumber)
		mockSvc.AssertExpectations(t)
	})

	t.Run("conflict maps to 409", func(t *testing.T) {
		body, contentType := multipartBody(t, "file", "v2.pdf", "new content", nil)

		mockSvc.On("UploadVersion", mock.Anything, docID, "user-1", mock.Anything, mock.Anything, "").
			Return(nil, apperr.New(apperr.KindConflict, "please retry")).Once()

		req := httptest.NewRequest(http.MethodPost, "/documents/"+docID+"/versions", body)
		req.Header.Set("Content-Type", contentType)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "CONFLICT", res.Error.Code)
		mockSvc.AssertExpectations(t)
	})
}

func TestDownloadDocument(t *testing.T) {
	mockSvc := new(serviceMocks.MockDocumentService)
	app := newApp("user-1")
	app.Get("/documents/:id/download", downloadDocument(mockSvc))

	docID := uuid.New().String()

	t.Run("attachment by default", func(t *testing.T) {
		mockSvc.On("Download", mock.Anything, docID, "user-1", (*int)(nil)).
			Return(&service.DownloadResult{
				Content:       newReadCloser("file content"),
				Filename:      "report.pdf",
				MimeType:      "application/pdf",
				Size:          12,
				VersionNumber: 3,
			}, nil).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/documents/"+docID+"/download", nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/pdf", resp.Header.Get(fiber.HeaderContentType))
		assert.Equal(t, `attachment; filename="report.pdf"`, resp.Header.Get(fiber.HeaderContentDisposition))

		buf := new(bytes.Buffer)
		buf.ReadFrom(resp.Body)
		assert.Equal(t, "file content", buf.String())
		mockSvc.AssertExpectations(t)
	})

	t.Run("preview renders inline and pins a version", func(t *testing.T) {
		mockSvc.On("Download", mock.Anything, docID, "user-1", mock.MatchedBy(func(n *int) bool {
			return n != nil && *n == 2
		})).Return(&service.DownloadResult{
			Content:  newReadCloser("old"),
			Filename: "report.pdf",
			MimeType: "application/pdf",
			Size:     3,
		}, nil).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/documents/"+docID+"/download?version=2&preview=true", nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.True(t, strings.HasPrefix(resp.Header.Get(fiber.HeaderContentDisposition), "inline"))
		mockSvc.AssertExpectations(t)
	})

	t.Run("invalid version", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/documents/"+docID+"/download?version=zero", nil))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("storage outage maps to 503", func(t *testing.T) {
		mockSvc.On("Download", mock.Anything, docID, "user-1", (*int)(nil)).
			Return(nil, apperr.New(apperr.KindBlobUnavailable, "read file content")).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/documents/"+docID+"/download", nil))
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}

func TestUpdateDocument(t *testing.T) {
	mockSvc := new(serviceMocks.MockDocumentService)
	app := newApp("user-1")
	app.Patch("/documents/:id", updateDocument(mockSvc))

	docID := uuid.New().String()

	t.Run("partial patch forwards only present fields", func(t *testing.T) {
		mockSvc.On("UpdateMetadata", mock.Anything, docID, "user-1", mock.MatchedBy(func(upd service.MetadataUpdate) bool {
			return upd.Title != nil && *upd.Title == "New" && upd.Description == nil && upd.Tags == nil
		})).Return(&model.Document{ID: docID, Title: "New"}, nil).Once()

		req := httptest.NewRequest(http.MethodPatch, "/documents/"+docID, strings.NewReader(`{"title":"New"}`))
		req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("invalid body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPatch, "/documents/"+docID, strings.NewReader(`{not json`))
		req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestDeleteDocument(t *testing.T) {
	mockSvc := new(serviceMocks.MockDocumentService)
	app := newApp("user-1")
	app.Delete("/documents/:id", deleteDocument(mockSvc))

	docID := uuid.New().String()

	t.Run("owner deletes", func(t *testing.T) {
		mockSvc.On("SoftDelete", mock.Anything, docID, "user-1").Return(nil).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodDelete, "/documents/"+docID, nil))
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("non-owner is forbidden", func(t *testing.T) {
		mockSvc.On("SoftDelete", mock.Anything, docID, "user-1").
			Return(apperr.Forbidden("only the owner can delete a document")).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodDelete, "/documents/"+docID, nil))
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}

func TestPermissions(t *testing.T) {
	mockSvc := new(serviceMocks.MockDocumentService)
	app := newApp("user-1")
	app.Post("/documents/:id/permissions", setPermission(mockSvc))
	app.Delete("/documents/:id/permissions/:userId", removePermission(mockSvc))

	docID := uuid.New().String()

	t.Run("grant", func(t *testing.T) {
		mockSvc.On("SetPermission", mock.Anything, docID, "user-1", "user-2", model.AccessViewer).
			Return([]model.Permission{{UserID: "user-2", Access: model.AccessViewer}}, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/documents/"+docID+"/permissions",
			strings.NewReader(`{"user_id":"user-2","access":"viewer"}`))
		req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var res struct {
			ACL []model.Permission `json:"acl"`
		}
		json.NewDecoder(resp.Body).Decode(&res)
		require.Len(t, res.ACL, 1)
		assert.Equal(t, "user-2", res.ACL[0].UserID)
		mockSvc.AssertExpectations(t)
	})

	t.Run("granting to the owner is rejected", func(t *testing.T) {
		mockSvc.On("SetPermission", mock.Anything, docID, "user-1", "user-1", model.AccessEditor).
			Return(nil, apperr.Validation("the owner cannot appear in the ACL")).Once()

		req := httptest.NewRequest(http.MethodPost, "/documents/"+docID+"/permissions",
			strings.NewReader(`{"user_id":"user-1","access":"editor"}`))
		req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("revoke", func(t *testing.T) {
		mockSvc.On("RemovePermission", mock.Anything, docID, "user-1", "user-2").Return(nil).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodDelete, "/documents/"+docID+"/permissions/user-2", nil))
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("revoking an absent entry is 404", func(t *testing.T) {
		mockSvc.On("RemovePermission", mock.Anything, docID, "user-1", "user-9").
			Return(apperr.NotFound("no permission entry for that user")).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodDelete, "/documents/"+docID+"/permissions/user-9", nil))
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}

func TestListDocuments(t *testing.T) {
	mockSvc := new(serviceMocks.MockListingService)
	app := newApp("user-1")
	app.Get("/documents", listDocuments(mockSvc))

	t.Run("query parameters pass through", func(t *testing.T) {
		mockSvc.On("ListOwned", mock.Anything, "user-1", service.ListOwnedParams{
			Query:     "report",
			Tags:      []string{"finance", "q3"},
			SortBy:    "size",
			SortOrder: "asc",
			Page:      2,
			PageSize:  10,
		}).Return(&service.DocumentPage{
			Documents: []model.Document{{ID: "d1"}},
			Page:      service.PageInfo{Page: 2, PageSize: 10, Total: 11, TotalPages: 2},
		}, nil).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet,
			"/documents?q=report&tags=finance,q3&sort_by=size&sort_order=asc&page=2&page_size=10", nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var res service.DocumentPage
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Len(t, res.Documents, 1)
		assert.Equal(t, 11, res.Page.Total)
		mockSvc.AssertExpectations(t)
	})

	t.Run("invalid page", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/documents?page=abc", nil))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestListSharedDocuments(t *testing.T) {
	mockSvc := new(serviceMocks.MockListingService)
	app := newApp("user-1")
	app.Get("/documents/shared", listSharedDocuments(mockSvc))

	mockSvc.On("ListShared", mock.Anything, "user-1", 1, 0).
		Return(&service.SharedPage{Page: service.PageInfo{Page: 1, PageSize: 20}}, nil).Once()

	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/documents/shared", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	mockSvc.AssertExpectations(t)
}

func TestDashboard(t *testing.T) {
	mockSvc := new(serviceMocks.MockListingService)
	app := newApp("user-1")
	app.Get("/documents/dashboard", dashboard(mockSvc))

	mockSvc.On("Dashboard", mock.Anything, "user-1").
		Return(&service.DashboardSummary{TotalDocuments: 3, TotalSize: 1024}, nil).Once()

	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/documents/dashboard", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var res service.DashboardSummary
	json.NewDecoder(resp.Body).Decode(&res)
	assert.Equal(t, 3, res.TotalDocuments)
	mockSvc.AssertExpectations(t)
}

func TestListTags(t *testing.T) {
	mockSvc := new(serviceMocks.MockListingService)
	app := newApp("user-1")
	app.Get("/documents/tags", listTags(mockSvc))

	mockSvc.On("ListTags", mock.Anything, "user-1").Return([]string{"design", "finance"}, nil).Once()

	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/documents/tags", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var res struct {
		Tags []string `json:"tags"`
	}
	json.NewDecoder(resp.Body).Decode(&res)
	assert.Equal(t, []string{"design", "finance"}, res.Tags)
	mockSvc.AssertExpectations(t)
}

func newReadCloser(s string) io.ReadCloser {
	return io.NopCloser(strings.NewReader(s))
}
