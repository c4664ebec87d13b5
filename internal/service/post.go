package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"nutrilab/internal/model"
	"nutrilab/internal/repository"
	"nutrilab/internal/storage"
)

var (
	ErrIDRequired    = errors.New("id is required")
	ErrNotFound      = errors.New("post not found")
	ErrReaderNil     = errors.New("reader is nil")
	ErrTitleRequired = errors.New("title is required")
	ErrNotStored     = errors.New("post content is not in the object store")
	ErrInvalidKind   = errors.New("invalid post kind")
)

// downloadURLExpiry is how long a presigned download link stays valid.
const downloadURLExpiry = 15 * time.Minute

// UploadInput is one multipart upload.
type UploadInput struct {
	Reader      io.Reader
	Filename    string
	ContentType string
	Size        int64
	Title       string
	Kind        model.Kind
	UserID      string
	TestID      string
	HappenedAt  *time.Time
}

// ListFilter narrows List. Zero values mean "no filter".
type ListFilter struct {
	Limit     int
	Offset    int
	Kind      model.Kind
	Processed *bool
	UserID    string
}

// PostListResult is the service-level DTO for paginated posts.
type PostListResult struct {
	Items []model.Post `json:"data"`
	Total int          `json:"total"`
}

// PostService defines the use cases for user uploads.
type PostService interface {
	// Upload stores the content in object storage and creates an unprocessed
	// post pointing at it. The object is removed again if the insert fails.
	Upload(ctx context.Context, in UploadInput) (*model.Post, error)

	// List returns posts using limit/offset and a total count.
	List(ctx context.Context, f ListFilter) (*PostListResult, error)

	// Get returns a single post by its ID.
	Get(ctx context.Context, id string) (*model.Post, error)

	// Delete removes a post and, for object-store content, its object.
	Delete(ctx context.Context, id string) error

	// DownloadURL returns a presigned URL for object-store content.
	DownloadURL(ctx context.Context, id string) (string, error)
}

type postService struct {
	store storage.Storage
	repo  repository.PostRepository
	now   func() time.Time
}

// NewPostService constructs a new PostService.
func NewPostService(store storage.Storage, repo repository.PostRepository) PostService {
	return &postService{store: store, repo: repo, now: time.Now}
}

func (s *postService) Upload(ctx context.Context, in UploadInput) (*model.Post, error) {
	if in.Reader == nil {
		return nil, ErrReaderNil
	}
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		in.Title = strings.TrimSuffix(filepath.Base(in.Filename), filepath.Ext(in.Filename))
	}
	if in.Title == "" || in.Title == "." {
		return nil, ErrTitleRequired
	}
	kind, err := model.ParseKind(string(in.Kind))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKind, err)
	}

	// Stored name is UUID + original extension.
	key := filepath.ToSlash(filepath.Join("posts", uuid.New().String()+strings.ToLower(filepath.Ext(in.Filename))))
	objInfo, err := s.store.Put(ctx, key, in.Reader, storage.PutObjectOptions{
		Size:        in.Size,
		ContentType: in.ContentType,
		Metadata: map[string]string{
			"original-filename": in.Filename,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("upload to storage: %w", err)
	}
	if objInfo.Key != "" {
		key = objInfo.Key
	}

	now := s.now().UTC()
	post := &model.Post{
		ID:              uuid.New().String(),
		UserID:          in.UserID,
		Title:           in.Title,
		Kind:            kind,
		ContentLocation: storage.Location(key),
		TestID:          in.TestID,
		HappenedAt:      in.HappenedAt,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	stored, err := s.repo.Create(ctx, post)
	if err != nil {
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			return nil, fmt.Errorf("db save failed: %v; rollback delete failed: %v", err, delErr)
		}
		return nil, fmt.Errorf("db save failed: %w", err)
	}
	return stored, nil
}

func (s *postService) List(ctx context.Context, f ListFilter) (*PostListResult, error) {
	if f.Limit <= 0 {
		f.Limit = 10
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	res, err := s.repo.List(ctx, repository.PostQuery{
		PageQuery: repository.PageQuery{Limit: f.Limit, Offset: f.Offset},
		Kind:      f.Kind,
		Processed: f.Processed,
		UserID:    f.UserID,
	})
	if err != nil {
		return nil, err
	}
	return &PostListResult{Items: res.Items, Total: res.Total}, nil
}

func (s *postService) Get(ctx context.Context, id string) (*model.Post, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	return findPost(ctx, s.repo, id)
}

// Delete removes the object first; if that fails the row is kept so the
// object is not orphaned.
func (s *postService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrIDRequired
	}
	post, err := findPost(ctx, s.repo, id)
	if err != nil {
		return err
	}
	if key, ok := storage.KeyFromLocation(post.ContentLocation); ok {
		if err := s.store.Delete(ctx, key); err != nil {
			return fmt.Errorf("delete storage: %w", err)
		}
	}
	return s.repo.Delete(ctx, id)
}

func (s *postService) DownloadURL(ctx context.Context, id string) (string, error) {
	if id == "" {
		return "", ErrIDRequired
	}
	post, err := findPost(ctx, s.repo, id)
	if err != nil {
		return "", err
	}
	key, ok := storage.KeyFromLocation(post.ContentLocation)
	if !ok {
		return "", ErrNotStored
	}
	url, err := s.store.PresignGet(ctx, key, downloadURLExpiry)
	if err != nil {
		return "", fmt.Errorf("presign: %w", err)
	}
	return url, nil
}

func findPost(ctx context.Context, repo repository.PostRepository, id string) (*model.Post, error) {
	post, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return post, nil
}
