package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"nutrilab/internal/model"
	"nutrilab/internal/repository"
	"nutrilab/internal/service"
	"nutrilab/internal/worker"
)

type MockPostService struct {
	mock.Mock
}

var _ service.PostService = (*MockPostService)(nil)

func (m *MockPostService) Upload(ctx context.Context, in service.UploadInput) (*model.Post, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Post), args.Error(1)
}

func (m *MockPostService) List(ctx context.Context, f service.ListFilter) (*service.PostListResult, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.PostListResult), args.Error(1)
}

func (m *MockPostService) Get(ctx context.Context, id string) (*model.Post, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Post), args.Error(1)
}

func (m *MockPostService) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockPostService) DownloadURL(ctx context.Context, id string) (string, error) {
	args := m.Called(ctx, id)
	return args.String(0), args.Error(1)
}

type MockAdminService struct {
	mock.Mock
}

var _ service.AdminService = (*MockAdminService)(nil)

func (m *MockAdminService) Reprocess(ctx context.Context, id string) (*model.Post, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Post), args.Error(1)
}

func (m *MockAdminService) ExtractNow(ctx context.Context, id string) (*model.Post, worker.Outcome, error) {
	args := m.Called(ctx, id)
	out, _ := args.Get(1).(worker.Outcome)
	if args.Get(0) == nil {
		return nil, out, args.Error(2)
	}
	return args.Get(0).(*model.Post), out, args.Error(2)
}

func (m *MockAdminService) Pending(ctx context.Context, limit int) ([]model.Post, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Post), args.Error(1)
}

func (m *MockAdminService) AnalyzeFood(ctx context.Context, id string) (*model.Post, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Post), args.Error(1)
}

type MockExportService struct {
	mock.Mock
}

var _ service.ExportService = (*MockExportService)(nil)

func (m *MockExportService) Export(ctx context.Context, f repository.ExportFilter) (*service.ExportResult, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ExportResult), args.Error(1)
}
