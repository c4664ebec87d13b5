package repository

import (
	"context"
	"encoding/json"
	"time"

	"nutrilab/internal/model"
)

// PostQuery filters the paginated post listing. Zero values mean "any".
type PostQuery struct {
	PageQuery
	Kind      model.Kind
	Processed *bool
	UserID    string
}

// ExportFilter narrows the processed-document export.
type ExportFilter struct {
	UserID string
	From   *time.Time
	To     *time.Time
}

// PostRepository defines data access for posts using SQL queries only.
// Writes issued by the pipeline are targeted updates of the processing columns;
// no method overwrites a whole row.
type PostRepository interface {
	// Create inserts a new, unprocessed post.
	Create(ctx context.Context, p *model.Post) (*model.Post, error)

	// FindByID returns a post by its ID or sql.ErrNoRows.
	FindByID(ctx context.Context, id string) (*model.Post, error)

	// List returns a page of posts, newest first, and the total matching count.
	List(ctx context.Context, q PostQuery) (*PageResult[model.Post], error)

	// Delete removes a post by ID. It returns nil if the row did not exist.
	Delete(ctx context.Context, id string) error

	// FindUnprocessed is a read-only view of the pending queue in insertion order.
	FindUnprocessed(ctx context.Context, limit int) ([]model.Post, error)

	// ClaimUnprocessed atomically leases up to limit unprocessed posts in insertion
	// order. Posts holding a live lease are skipped; leases older than lease are
	// taken over. Returned posts carry the ClaimToken for their terminal write.
	ClaimUnprocessed(ctx context.Context, limit int, lease time.Duration) ([]model.Post, error)

	// ClaimForReprocess clears a post's result and leases it in one step.
	// ErrClaimLost if it holds a live lease or does not exist.
	ClaimForReprocess(ctx context.Context, id string, lease time.Duration) (*model.Post, error)

	// ReleaseClaim hands a claimed, unprocessed post back to the queue.
	// ErrClaimLost if token no longer owns the claim.
	ReleaseClaim(ctx context.Context, id, token string) error

	// MarkProcessed sets processed=true and stores data for a post claimed with token.
	MarkProcessed(ctx context.Context, id, token string, data json.RawMessage) error

	// MarkSkipped sets processed=true without touching extracted_data.
	MarkSkipped(ctx context.Context, id, token string) error

	// ResetForReprocess returns a post to the pending queue. ErrClaimLost if it
	// holds a live lease or does not exist.
	ResetForReprocess(ctx context.Context, id string, lease time.Duration) error

	// UpdateExtractedData replaces extracted_data outside the claim protocol (admin actions).
	UpdateExtractedData(ctx context.Context, id string, data json.RawMessage) error

	// ListProcessedDocuments returns processed document posts, oldest first, for export.
	ListProcessedDocuments(ctx context.Context, f ExportFilter) ([]model.Post, error)
}
