package mocks

import (
	"context"
	"io"
	"time"

	"github.com/stretchr/testify/mock"

	"nutrilab/internal/storage"
)

// MockStorage is a testify mock of storage.Storage. Put and Get also accept
// a function in place of the first return value, so a test can inspect the
// uploaded reader or hand out a fresh body on every call.
type MockStorage struct {
	mock.Mock
}

var _ storage.Storage = (*MockStorage)(nil)

// NewMockStorage returns a mock whose expectations are asserted when t ends.
func NewMockStorage(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockStorage {
	m := new(MockStorage)
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockStorage) Put(ctx context.Context, key string, r io.Reader, opt storage.PutObjectOptions) (storage.ObjectInfo, error) {
	args := m.Called(ctx, key, r, opt)
	switch v := args.Get(0).(type) {
	case func(context.Context, string, io.Reader, storage.PutObjectOptions) storage.ObjectInfo:
		return v(ctx, key, r, opt), args.Error(1)
	case storage.ObjectInfo:
		return v, args.Error(1)
	default:
		return storage.ObjectInfo{}, args.Error(1)
	}
}

func (m *MockStorage) Get(ctx context.Context, key string) (io.ReadCloser, storage.ObjectInfo, error) {
	args := m.Called(ctx, key)
	info, _ := args.Get(1).(storage.ObjectInfo)
	switch v := args.Get(0).(type) {
	case func() io.ReadCloser:
		return v(), info, args.Error(2)
	case io.ReadCloser:
		return v, info, args.Error(2)
	default:
		return nil, info, args.Error(2)
	}
}

func (m *MockStorage) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *MockStorage) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	args := m.Called(ctx, key, expiry)
	return args.String(0), args.Error(1)
}
