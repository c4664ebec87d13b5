package worker

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"nutrilab/internal/model"
	"nutrilab/internal/repository"
)

// memStore mimics the claim semantics of the Postgres repository,
// including lease expiry against its own clock.
type memStore struct {
	mu        sync.Mutex
	posts     map[string]*model.Post
	claimedAt map[string]time.Time
	seq       int
	skew      time.Duration

	claimErr   error
	claimPanic bool
	markErr    error
}

func newMemStore() *memStore {
	return &memStore{posts: map[string]*model.Post{}, claimedAt: map[string]time.Time{}}
}

// advance moves the store clock forward, aging every held lease.
func (s *memStore) advance(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skew += d
}

func (s *memStore) now() time.Time {
	return time.Now().Add(s.skew)
}

func (s *memStore) add(kind model.Kind, location string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	id := fmt.Sprintf("post-%02d", s.seq)
	s.posts[id] = &model.Post{
		ID:              id,
		Title:           id,
		Kind:            kind,
		ContentLocation: location,
		CreatedAt:       time.Date(2025, 1, 1, 0, 0, s.seq, 0, time.UTC),
	}
	return id
}

func (s *memStore) get(id string) model.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.posts[id]
}

func (s *memStore) processedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.posts {
		if p.Processed {
			n++
		}
	}
	return n
}

func (s *memStore) ClaimUnprocessed(_ context.Context, limit int, lease time.Duration) ([]model.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claimPanic {
		panic("store exploded")
	}
	if s.claimErr != nil {
		return nil, s.claimErr
	}

	now := s.now()
	pending := make([]*model.Post, 0)
	for _, p := range s.posts {
		if p.Processed {
			continue
		}
		if p.ClaimToken == "" || s.claimedAt[p.ID].Before(now.Add(-lease)) {
			pending = append(pending, p)
		}
	}
	slices.SortFunc(pending, func(a, b *model.Post) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	if len(pending) > limit {
		pending = pending[:limit]
	}

	token := uuid.NewString()
	out := make([]model.Post, 0, len(pending))
	for _, p := range pending {
		p.ClaimToken = token
		s.claimedAt[p.ID] = now
		out = append(out, *p)
	}
	return out, nil
}

func (s *memStore) MarkProcessed(_ context.Context, id, token string, data json.RawMessage) error {
	if s.markErr != nil {
		return s.markErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok || p.Processed || token == "" || p.ClaimToken != token {
		return repository.ErrClaimLost
	}
	p.Processed = true
	p.ExtractedData = data
	p.ClaimToken = ""
	delete(s.claimedAt, id)
	return nil
}

func (s *memStore) MarkSkipped(_ context.Context, id, token string) error {
	if s.markErr != nil {
		return s.markErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok || p.Processed || token == "" || p.ClaimToken != token {
		return repository.ErrClaimLost
	}
	p.Processed = true
	p.ClaimToken = ""
	delete(s.claimedAt, id)
	return nil
}

func (s *memStore) ReleaseClaim(_ context.Context, id, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok || p.Processed || token == "" || p.ClaimToken != token {
		return repository.ErrClaimLost
	}
	p.ClaimToken = ""
	delete(s.claimedAt, id)
	return nil
}

type fakeText struct {
	calls atomic.Int32
	fn    func(ctx context.Context, location string) (string, error)
}

func (f *fakeText) ExtractText(ctx context.Context, location string) (string, error) {
	f.calls.Add(1)
	if f.fn != nil {
		return f.fn(ctx, location)
	}
	return "text of " + location, nil
}

type fakeAI struct {
	calls atomic.Int32
	fn    func(ctx context.Context, text string) (*model.MedicalData, error)
}

func (f *fakeAI) ExtractMedicalData(ctx context.Context, text, _ string) (*model.MedicalData, error) {
	f.calls.Add(1)
	if f.fn != nil {
		return f.fn(ctx, text)
	}
	return sampleData(text), nil
}

func sampleData(text string) *model.MedicalData {
	return &model.MedicalData{
		TestType: "CBC",
		Results: []model.TestResult{
			{Parameter: "Hemoglobin", Value: "140", Unit: "g/L", Status: model.StatusNormal},
		},
		Summary: "from " + text,
	}
}
