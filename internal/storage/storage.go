// Package storage contains object storage abstractions for S3-compatible backends.
// Implementations stream content and never stage it on local disk.
package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"
)

// ErrObjectNotFound is returned by Get when the key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// LocationScheme prefixes content locations that live in the object store.
const LocationScheme = "s3://"

// Location renders an object key as a post content location.
func Location(key string) string {
	return LocationScheme + key
}

// KeyFromLocation returns the object key for an s3:// location.
func KeyFromLocation(location string) (string, bool) {
	if !strings.HasPrefix(location, LocationScheme) {
		return "", false
	}
	key := strings.TrimPrefix(location, LocationScheme)
	return key, key != ""
}

// PutObjectOptions define optional parameters for uploading objects.
// Size should be the exact number of bytes if known, or -1 to let the backend chunk.
type PutObjectOptions struct {
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo contains basic information about an object in storage.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
	Metadata     map[string]string
}

// Storage is the object store holding uploaded post content.
type Storage interface {
	// Put uploads an object under the given key using the provided reader and options.
	Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error)
	// Get retrieves an object's content as a streaming reader alongside its info.
	// A missing key yields ErrObjectNotFound.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	// Delete removes an object by key.
	Delete(ctx context.Context, key string) error
	// PresignGet returns a time-limited download URL that needs no credentials.
	// The response is served as an attachment named after the key's base name.
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}
