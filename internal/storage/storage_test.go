package storage

import (
	"context"
	"net/http"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nutrilab/internal/config"
)

func TestLocationRoundTrip(t *testing.T) {
	loc := Location("posts/abc.pdf")
	assert.Equal(t, "s3://posts/abc.pdf", loc)

	key, ok := KeyFromLocation(loc)
	assert.True(t, ok)
	assert.Equal(t, "posts/abc.pdf", key)
}

func TestKeyFromLocation_NotObjectStore(t *testing.T) {
	for _, loc := range []string{"https://cdn.example.com/a.pdf", "/uploads/a.pdf", "s3://", ""} {
		_, ok := KeyFromLocation(loc)
		assert.False(t, ok, loc)
	}
}

func TestValidateMinIO(t *testing.T) {
	err := validateMinIO(config.MinIOConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "endpoint")
	assert.Contains(t, err.Error(), "credentials")
	assert.Contains(t, err.Error(), "bucket")

	assert.NoError(t, validateMinIO(config.MinIOConfig{
		Endpoint:  "minio:9000",
		AccessKey: "minio",
		SecretKey: "minio123",
		Bucket:    "posts",
	}))
}

func TestNewMinIO_InvalidConfig(t *testing.T) {
	store, err := NewMinIO(context.Background(), config.MinIOConfig{Endpoint: "minio:9000"})
	assert.Error(t, err)
	assert.Nil(t, store)
}

func TestTranslate(t *testing.T) {
	assert.NoError(t, translate(nil))

	err := translate(minio.ErrorResponse{Code: "NoSuchKey", Key: "posts/a.pdf", StatusCode: http.StatusNotFound})
	assert.ErrorIs(t, err, ErrObjectNotFound)
	assert.Contains(t, err.Error(), "posts/a.pdf")

	other := minio.ErrorResponse{Code: "AccessDenied", StatusCode: http.StatusForbidden}
	assert.NotErrorIs(t, translate(other), ErrObjectNotFound)
}
