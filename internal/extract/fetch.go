package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strings"

	"nutrilab/internal/storage"
)

// ObjectGetter is the read side of storage.Storage.
type ObjectGetter interface {
	Get(ctx context.Context, key string) (io.ReadCloser, storage.ObjectInfo, error)
}

// Blob is a fetched document.
type Blob struct {
	Data        []byte
	ContentType string
	Name        string
}

// Fetcher resolves a content location to bytes. Supported locations:
// http(s) URLs, s3://<key> objects, and paths under the document root
// (a leading "/uploads/" or "uploads/" is ignored).
type Fetcher struct {
	client   *http.Client
	objects  ObjectGetter
	root     string
	maxBytes int64
}

// NewFetcher wires a fetcher. objects may be nil when no object store is configured.
func NewFetcher(client *http.Client, objects ObjectGetter, root string, maxBytes int64) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{client: client, objects: objects, root: root, maxBytes: maxBytes}
}

// Fetch returns the document at location. Errors are *ExtractionError.
func (f *Fetcher) Fetch(ctx context.Context, location string) (*Blob, error) {
	var (
		blob *Blob
		err  error
	)
	switch {
	case strings.HasPrefix(location, "http://"), strings.HasPrefix(location, "https://"):
		blob, err = f.fetchHTTP(ctx, location)
	case strings.HasPrefix(location, storage.LocationScheme):
		blob, err = f.fetchObject(ctx, location)
	default:
		blob, err = f.fetchLocal(location)
	}
	if err != nil {
		return nil, fetchErr(location, err)
	}
	return blob, nil
}

func (f *Fetcher) fetchHTTP(ctx context.Context, location string) (*Blob, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	data, err := f.readLimited(resp.Body)
	if err != nil {
		return nil, err
	}
	return &Blob{Data: data, ContentType: resp.Header.Get("Content-Type"), Name: path.Base(req.URL.Path)}, nil
}

func (f *Fetcher) fetchObject(ctx context.Context, location string) (*Blob, error) {
	if f.objects == nil {
		return nil, ErrNoObjectStore
	}
	key, ok := storage.KeyFromLocation(location)
	if !ok {
		return nil, fmt.Errorf("invalid object location")
	}
	rc, info, err := f.objects.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := f.readLimited(rc)
	if err != nil {
		return nil, err
	}
	return &Blob{Data: data, ContentType: info.ContentType, Name: path.Base(key)}, nil
}

// fetchLocal reads through os.OpenInRoot so "..", absolute paths and
// symlinks cannot escape the document root.
func (f *Fetcher) fetchLocal(location string) (*Blob, error) {
	if f.root == "" {
		return nil, ErrNoDocumentRoot
	}
	rel := location
	for _, prefix := range []string{"/uploads/", "uploads/"} {
		if strings.HasPrefix(rel, prefix) {
			rel = strings.TrimPrefix(rel, prefix)
			break
		}
	}
	rel = strings.TrimLeft(rel, "/")
	if rel == "" {
		return nil, fmt.Errorf("empty path")
	}
	file, err := os.OpenInRoot(f.root, rel)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	data, err := f.readLimited(file)
	if err != nil {
		return nil, err
	}
	return &Blob{Data: data, Name: path.Base(rel)}, nil
}

func (f *Fetcher) readLimited(r io.Reader) ([]byte, error) {
	if f.maxBytes <= 0 {
		return io.ReadAll(r)
	}
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, f.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if n > f.maxBytes {
		return nil, ErrTooLarge
	}
	return buf.Bytes(), nil
}
