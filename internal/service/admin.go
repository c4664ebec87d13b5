package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"nutrilab/internal/extract"
	"nutrilab/internal/model"
	"nutrilab/internal/repository"
	"nutrilab/internal/worker"
)

var (
	ErrNotDocument = errors.New("post is not a document")
	ErrNotImage    = errors.New("post is not an image")
	ErrBusy        = errors.New("post is being processed")
)

const (
	DefaultPendingLimit = 50
	MaxPendingLimit     = 500
)

// RecordProcessor runs one claimed post through the extraction pipeline.
type RecordProcessor interface {
	Process(ctx context.Context, post model.Post) worker.Outcome
}

// BlobFetcher resolves a content location to bytes.
type BlobFetcher interface {
	Fetch(ctx context.Context, location string) (*extract.Blob, error)
}

// FoodAnalyzer estimates the macros of a meal photo.
type FoodAnalyzer interface {
	AnalyzeFood(ctx context.Context, image []byte, mimeType string) (*model.FoodAnalysis, error)
}

// AdminService holds the manual review actions.
type AdminService interface {
	// Reprocess clears the result so the next pipeline tick picks the post up
	// again. ErrBusy while a worker holds a live claim on it.
	Reprocess(ctx context.Context, id string) (*model.Post, error)

	// ExtractNow runs extraction for one document synchronously. A failed
	// extraction is not an error: the outcome carries it and the post holds
	// the error marker. ErrBusy while a worker holds a live claim on it.
	ExtractNow(ctx context.Context, id string) (*model.Post, worker.Outcome, error)

	// Pending lists up to limit unprocessed posts in the order the pipeline
	// will claim them. Nothing is claimed.
	Pending(ctx context.Context, limit int) ([]model.Post, error)

	// AnalyzeFood runs the vision model on an image post and stores the estimate.
	AnalyzeFood(ctx context.Context, id string) (*model.Post, error)
}

type adminService struct {
	repo     repository.PostRepository
	proc     RecordProcessor
	fetcher  BlobFetcher
	analyzer FoodAnalyzer
	lease    time.Duration
}

// NewAdminService constructs an AdminService. lease is the claim lease used
// by ExtractNow and should match the worker's.
func NewAdminService(repo repository.PostRepository, proc RecordProcessor, fetcher BlobFetcher, analyzer FoodAnalyzer, lease time.Duration) AdminService {
	if lease <= 0 {
		lease = worker.DefaultClaimLease
	}
	return &adminService{repo: repo, proc: proc, fetcher: fetcher, analyzer: analyzer, lease: lease}
}

func (s *adminService) Reprocess(ctx context.Context, id string) (*model.Post, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	if _, err := findPost(ctx, s.repo, id); err != nil {
		return nil, err
	}
	if err := s.repo.ResetForReprocess(ctx, id, s.lease); err != nil {
		return nil, busyOr(err)
	}
	return findPost(ctx, s.repo, id)
}

func (s *adminService) ExtractNow(ctx context.Context, id string) (*model.Post, worker.Outcome, error) {
	if id == "" {
		return nil, worker.Outcome{}, ErrIDRequired
	}
	post, err := findPost(ctx, s.repo, id)
	if err != nil {
		return nil, worker.Outcome{}, err
	}
	if !post.IsDocument() {
		return nil, worker.Outcome{}, ErrNotDocument
	}

	claimed, err := s.repo.ClaimForReprocess(ctx, id, s.lease)
	if err != nil {
		return nil, worker.Outcome{}, busyOr(err)
	}

	out := s.proc.Process(ctx, *claimed)
	updated, err := findPost(ctx, s.repo, id)
	if err != nil {
		return nil, out, err
	}
	return updated, out, nil
}

func (s *adminService) Pending(ctx context.Context, limit int) ([]model.Post, error) {
	if limit <= 0 {
		limit = DefaultPendingLimit
	}
	limit = min(limit, MaxPendingLimit)
	items, err := s.repo.FindUnprocessed(ctx, limit)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.Post{}
	}
	return items, nil
}

// busyOr maps a lost claim to ErrBusy. The post was looked up just before, so
// a lost claim means a worker holds it rather than that it vanished.
func busyOr(err error) error {
	if errors.Is(err, repository.ErrClaimLost) {
		return ErrBusy
	}
	return err
}

func (s *adminService) AnalyzeFood(ctx context.Context, id string) (*model.Post, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	post, err := findPost(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	if post.Kind != model.KindImage {
		return nil, ErrNotImage
	}

	blob, err := s.fetcher.Fetch(ctx, post.ContentLocation)
	if err != nil {
		return nil, err
	}
	mimeType := blob.ContentType
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(blob.Data)
	}
	food, err := s.analyzer.AnalyzeFood(ctx, blob.Data, mimeType)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(food)
	if err != nil {
		return nil, fmt.Errorf("encode analysis: %w", err)
	}
	if err := s.repo.UpdateExtractedData(ctx, id, raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return findPost(ctx, s.repo, id)
}
