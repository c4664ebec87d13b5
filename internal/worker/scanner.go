package worker

import (
	"context"
	"time"

	"nutrilab/internal/model"
)

const (
	DefaultBatchSize  = 10
	DefaultClaimLease = 10 * time.Minute
)

// Scanner claims pending posts. A claimed post is invisible to other
// scanners until it is marked or its lease expires.
type Scanner struct {
	store Store
	lease time.Duration
}

func NewScanner(store Store, lease time.Duration) *Scanner {
	if lease <= 0 {
		lease = DefaultClaimLease
	}
	return &Scanner{store: store, lease: lease}
}

// Claim returns at most limit pending posts, oldest first.
func (s *Scanner) Claim(ctx context.Context, limit int) ([]model.Post, error) {
	if limit <= 0 {
		limit = DefaultBatchSize
	}
	return s.store.ClaimUnprocessed(ctx, limit, s.lease)
}
