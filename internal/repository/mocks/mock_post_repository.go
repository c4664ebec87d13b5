package mocks

import (
	"context"
	"encoding/json"
	"time"

	"github.com/stretchr/testify/mock"

	"nutrilab/internal/model"
	"nutrilab/internal/repository"
)

type MockPostRepository struct {
	mock.Mock
}

var _ repository.PostRepository = (*MockPostRepository)(nil)

func (m *MockPostRepository) Create(ctx context.Context, p *model.Post) (*model.Post, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Post), args.Error(1)
}

func (m *MockPostRepository) FindByID(ctx context.Context, id string) (*model.Post, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Post), args.Error(1)
}

func (m *MockPostRepository) List(ctx context.Context, q repository.PostQuery) (*repository.PageResult[model.Post], error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.Post]), args.Error(1)
}

func (m *MockPostRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockPostRepository) FindUnprocessed(ctx context.Context, limit int) ([]model.Post, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Post), args.Error(1)
}

func (m *MockPostRepository) ClaimUnprocessed(ctx context.Context, limit int, lease time.Duration) ([]model.Post, error) {
	args := m.Called(ctx, limit, lease)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Post), args.Error(1)
}

func (m *MockPostRepository) ClaimForReprocess(ctx context.Context, id string, lease time.Duration) (*model.Post, error) {
	args := m.Called(ctx, id, lease)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Post), args.Error(1)
}

func (m *MockPostRepository) MarkProcessed(ctx context.Context, id, token string, data json.RawMessage) error {
	args := m.Called(ctx, id, token, data)
	return args.Error(0)
}

func (m *MockPostRepository) MarkSkipped(ctx context.Context, id, token string) error {
	args := m.Called(ctx, id, token)
	return args.Error(0)
}

func (m *MockPostRepository) ResetForReprocess(ctx context.Context, id string, lease time.Duration) error {
	args := m.Called(ctx, id, lease)
	return args.Error(0)
}

func (m *MockPostRepository) ReleaseClaim(ctx context.Context, id, token string) error {
	args := m.Called(ctx, id, token)
	return args.Error(0)
}

func (m *MockPostRepository) UpdateExtractedData(ctx context.Context, id string, data json.RawMessage) error {
	args := m.Called(ctx, id, data)
	return args.Error(0)
}

func (m *MockPostRepository) ListProcessedDocuments(ctx context.Context, f repository.ExportFilter) ([]model.Post, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Post), args.Error(1)
}
