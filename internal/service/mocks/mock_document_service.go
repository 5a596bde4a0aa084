package mocks

import (
	"context"
	"io"

	"docvault/internal/model"
	"docvault/internal/service"

	"github.com/stretchr/testify/mock"
)

type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) Create(ctx context.Context, ownerID string, in service.UploadInput) (*model.Document, error) {
	args := m.Called(ctx, ownerID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDocumentService) CreateBatch(ctx context.Context, ownerID string, files []service.UploadInput, tags []string) (*service.BatchResult, error) {
	args := m.Called(ctx, ownerID, files, tags)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.BatchResult), args.Error(1)
}

func (m *MockDocumentService) UploadVersion(ctx context.Context, documentID, userID string, r io.Reader, meta model.FileMeta, changeLog string) (*model.Version, error) {
	args := m.Called(ctx, documentID, userID, r, meta, changeLog)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Version), args.Error(1)
}

func (m *MockDocumentService) UpdateMetadata(ctx context.Context, documentID, userID string, upd service.MetadataUpdate) (*model.Document, error) {
	args := m.Called(ctx, documentID, userID, upd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDocumentService) SoftDelete(ctx context.Context, documentID, userID string) error {
	args := m.Called(ctx, documentID, userID)
	return args.Error(0)
}

func (m *MockDocumentService) SetPermission(ctx context.Context, documentID, userID, targetUserID string, level model.AccessLevel) ([]model.Permission, error) {
	args := m.Called(ctx, documentID, userID, targetUserID, level)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Permission), args.Error(1)
}

func (m *MockDocumentService) RemovePermission(ctx context.Context, documentID, userID, targetUserID string) error {
	args := m.Called(ctx, documentID, userID, targetUserID)
	return args.Error(0)
}

func (m *MockDocumentService) Get(ctx context.Context, documentID, userID string) (*service.DocumentDetail, error) {
	args := m.Called(ctx, documentID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DocumentDetail), args.Error(1)
}

func (m *MockDocumentService) Download(ctx context.Context, documentID, userID string, versionNumber *int) (*service.DownloadResult, error) {
	args := m.Called(ctx, documentID, userID, versionNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DownloadResult), args.Error(1)
}
