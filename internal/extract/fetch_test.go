package extract

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nutrilab/internal/storage"
	storeMocks "nutrilab/internal/storage/mocks"
)

func TestFetcher_HTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/report.txt":
			w.Header().Set("Content-Type", "text/plain")
			io.WriteString(w, "Glucose 5.1 mmol/L")
		case "/big.txt":
			io.WriteString(w, strings.Repeat("x", 64))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client(), nil, "", 32)
	ctx := context.Background()

	t.Run("ok", func(t *testing.T) {
		blob, err := f.Fetch(ctx, srv.URL+"/report.txt")
		require.NoError(t, err)
		assert.Equal(t, "Glucose 5.1 mmol/L", string(blob.Data))
		assert.Equal(t, "text/plain", blob.ContentType)
		assert.Equal(t, "report.txt", blob.Name)
	})

	t.Run("non-2xx", func(t *testing.T) {
		_, err := f.Fetch(ctx, srv.URL+"/missing.pdf")
		var extErr *ExtractionError
		require.ErrorAs(t, err, &extErr)
		assert.Equal(t, "fetch", extErr.Op)
		assert.Contains(t, err.Error(), "unexpected status 404")
	})

	t.Run("too large", func(t *testing.T) {
		_, err := f.Fetch(ctx, srv.URL+"/big.txt")
		assert.ErrorIs(t, err, ErrTooLarge)
	})
}

func TestFetcher_Local(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "reports"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "reports", "a.txt"), []byte("ALT 30 U/L"), 0o600))

	f := NewFetcher(nil, nil, root, 0)
	ctx := context.Background()

	for _, loc := range []string{"/uploads/reports/a.txt", "uploads/reports/a.txt", "reports/a.txt", "/reports/a.txt"} {
		t.Run(loc, func(t *testing.T) {
			blob, err := f.Fetch(ctx, loc)
			require.NoError(t, err)
			assert.Equal(t, "ALT 30 U/L", string(blob.Data))
			assert.Equal(t, "a.txt", blob.Name)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := f.Fetch(ctx, "/uploads/none.pdf")
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("escape attempt", func(t *testing.T) {
		_, err := f.Fetch(ctx, "/uploads/../../etc/passwd")
		var extErr *ExtractionError
		assert.ErrorAs(t, err, &extErr)
	})

	t.Run("no root", func(t *testing.T) {
		_, err := NewFetcher(nil, nil, "", 0).Fetch(ctx, "a.txt")
		assert.ErrorIs(t, err, ErrNoDocumentRoot)
	})
}

func TestFetcher_Object(t *testing.T) {
	ctx := context.Background()

	t.Run("ok", func(t *testing.T) {
		store := storeMocks.NewMockStorage(t)
		body := func() io.ReadCloser { return io.NopCloser(strings.NewReader("%PDF-1.7")) }
		store.On("Get", ctx, "posts/p1.pdf").
			Return(body, storage.ObjectInfo{ContentType: "application/pdf"}, nil).
			Twice()

		fetcher := NewFetcher(nil, store, "", 0)
		for range 2 {
			blob, err := fetcher.Fetch(ctx, "s3://posts/p1.pdf")
			require.NoError(t, err)
			assert.Equal(t, "application/pdf", blob.ContentType)
			assert.Equal(t, "p1.pdf", blob.Name)
			assert.Equal(t, []byte("%PDF-1.7"), blob.Data)
		}
	})

	t.Run("store error", func(t *testing.T) {
		store := storeMocks.NewMockStorage(t)
		store.On("Get", ctx, "posts/gone.pdf").Return(nil, storage.ObjectInfo{}, storage.ErrObjectNotFound).Once()

		_, err := NewFetcher(nil, store, "", 0).Fetch(ctx, "s3://posts/gone.pdf")
		assert.ErrorIs(t, err, storage.ErrObjectNotFound)
		var extractErr *ExtractionError
		assert.ErrorAs(t, err, &extractErr)
	})

	t.Run("no store configured", func(t *testing.T) {
		_, err := NewFetcher(nil, nil, "", 0).Fetch(ctx, "s3://posts/p1.pdf")
		assert.ErrorIs(t, err, ErrNoObjectStore)
	})
}
