package postgres

import (
	"cmp"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"nutrilab/internal/model"
	"nutrilab/internal/repository"
)

const postColumns = `id, user_id, title, kind, content, test_id, happened_at, processed, extracted_data, claim_token, created_at, updated_at`

// returningColumns is postColumns qualified for statements that join on posts p.
const returningColumns = `p.id, p.user_id, p.title, p.kind, p.content, p.test_id, p.happened_at, p.processed, p.extracted_data, p.claim_token, p.created_at, p.updated_at`

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostPostgres is a PostgreSQL implementation of repository.PostRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type PostPostgres struct {
	db *sql.DB
}

// NewPostPostgres creates a new PostPostgres repository.
func NewPostPostgres(db *sql.DB) *PostPostgres {
	return &PostPostgres{db: db}
}

var _ repository.PostRepository = (*PostPostgres)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(s rowScanner) (*model.Post, error) {
	var (
		p          model.Post
		kind       string
		userID     sql.NullString
		testID     sql.NullString
		happenedAt sql.NullTime
		extracted  []byte
		claimToken sql.NullString
	)
	if err := s.Scan(
		&p.ID,
		&userID,
		&p.Title,
		&kind,
		&p.ContentLocation,
		&testID,
		&happenedAt,
		&p.Processed,
		&extracted,
		&claimToken,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.Kind = model.Kind(kind)
	p.UserID = userID.String
	p.TestID = testID.String
	p.ClaimToken = claimToken.String
	if happenedAt.Valid {
		t := happenedAt.Time
		p.HappenedAt = &t
	}
	if len(extracted) > 0 {
		p.ExtractedData = append(json.RawMessage(nil), extracted...)
	}
	return &p, nil
}

func scanPosts(rows *sql.Rows) ([]model.Post, error) {
	defer rows.Close()
	items := make([]model.Post, 0)
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

// Create inserts a new post row and returns the stored record.
func (r *PostPostgres) Create(ctx context.Context, p *model.Post) (*model.Post, error) {
	const q = `
		INSERT INTO posts (id, user_id, title, kind, content, test_id, happened_at, processed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, false, $8, $8)
		RETURNING ` + postColumns
	var happenedAt any
	if p.HappenedAt != nil {
		happenedAt = *p.HappenedAt
	}
	row := r.db.QueryRowContext(ctx, q,
		p.ID,
		nullString(p.UserID),
		p.Title,
		string(p.Kind),
		p.ContentLocation,
		nullString(p.TestID),
		happenedAt,
		p.CreatedAt,
	)
	return scanPost(row)
}

// FindByID fetches a single post by its ID.
func (r *PostPostgres) FindByID(ctx context.Context, id string) (*model.Post, error) {
	const q = `SELECT ` + postColumns + ` FROM posts WHERE id = $1`
	return scanPost(r.db.QueryRowContext(ctx, q, id))
}

// postQuery adds SQL building to repository.PostQuery.
type postQuery repository.PostQuery

func (q postQuery) apply(b sq.SelectBuilder) sq.SelectBuilder {
	if q.Kind != "" {
		b = b.Where(sq.Eq{"kind": string(q.Kind)})
	}
	if q.Processed != nil {
		b = b.Where(sq.Eq{"processed": *q.Processed})
	}
	if q.UserID != "" {
		b = b.Where(sq.Eq{"user_id": q.UserID})
	}
	return b
}

// List returns posts using LIMIT/OFFSET pagination and a total count.
func (r *PostPostgres) List(ctx context.Context, pq repository.PostQuery) (*repository.PageResult[model.Post], error) {
	filter := postQuery(pq)

	countSQL, countArgs, err := filter.apply(psql.Select("COUNT(*)").From("posts")).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build count query: %w", err)
	}
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, err
	}

	listSQL, listArgs, err := filter.apply(psql.Select(postColumns).From("posts")).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(pq.Limit)).
		Offset(uint64(pq.Offset)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, listSQL, listArgs...)
	if err != nil {
		return nil, err
	}
	items, err := scanPosts(rows)
	if err != nil {
		return nil, err
	}

	return &repository.PageResult[model.Post]{
		Items: items,
		Total: total,
	}, nil
}

// Delete removes a post by ID. It does not return an error if the row does not exist.
func (r *PostPostgres) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM posts WHERE id = $1`
	_, err := r.db.ExecContext(ctx, q, id)
	return err
}

// FindUnprocessed lists pending posts without claiming them.
func (r *PostPostgres) FindUnprocessed(ctx context.Context, limit int) ([]model.Post, error) {
	const q = `
		SELECT ` + postColumns + `
		FROM posts
		WHERE processed = false
		ORDER BY created_at, id
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	return scanPosts(rows)
}

// ClaimUnprocessed leases a batch in one statement. SKIP LOCKED keeps two
// concurrent claimers from blocking on, or returning, the same rows.
func (r *PostPostgres) ClaimUnprocessed(ctx context.Context, limit int, lease time.Duration) ([]model.Post, error) {
	const q = `
		WITH batch AS (
			SELECT id FROM posts
			WHERE processed = false
			  AND (claimed_at IS NULL OR claimed_at < now() - make_interval(secs => $2))
			ORDER BY created_at, id
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE posts p
		SET claimed_at = now(), claim_token = $3
		FROM batch
		WHERE p.id = batch.id
		RETURNING ` + returningColumns
	token := uuid.NewString()
	rows, err := r.db.QueryContext(ctx, q, limit, lease.Seconds(), token)
	if err != nil {
		return nil, err
	}
	items, err := scanPosts(rows)
	if err != nil {
		return nil, err
	}
	// RETURNING order is unspecified.
	slices.SortFunc(items, func(a, b model.Post) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), strings.Compare(a.ID, b.ID))
	})
	return items, nil
}

// ClaimForReprocess resets a post and leases it in the same statement, so a
// post already leased by a worker is never reset underneath it.
func (r *PostPostgres) ClaimForReprocess(ctx context.Context, id string, lease time.Duration) (*model.Post, error) {
	const q = `
		UPDATE posts p
		SET processed = false, extracted_data = NULL, claimed_at = now(), claim_token = $2, updated_at = now()
		WHERE p.id = $1
		  AND (p.claimed_at IS NULL OR p.claimed_at < now() - make_interval(secs => $3))
		RETURNING ` + returningColumns
	p, err := scanPost(r.db.QueryRowContext(ctx, q, id, uuid.NewString(), lease.Seconds()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrClaimLost
	}
	return p, err
}

// MarkProcessed stores data and releases the claim.
func (r *PostPostgres) MarkProcessed(ctx context.Context, id, token string, data json.RawMessage) error {
	const q = `
		UPDATE posts
		SET processed = true, extracted_data = $2, claimed_at = NULL, claim_token = NULL, updated_at = now()
		WHERE id = $1 AND processed = false AND claim_token = $3
	`
	return r.execClaimed(ctx, q, id, nullJSON(data), token)
}

// MarkSkipped flags the post processed and leaves extracted_data as it is.
func (r *PostPostgres) MarkSkipped(ctx context.Context, id, token string) error {
	const q = `
		UPDATE posts
		SET processed = true, claimed_at = NULL, claim_token = NULL, updated_at = now()
		WHERE id = $1 AND processed = false AND claim_token = $2
	`
	return r.execClaimed(ctx, q, id, token)
}

func (r *PostPostgres) execClaimed(ctx context.Context, q string, args ...any) error {
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrClaimLost
	}
	return nil
}

// ResetForReprocess clears the result and an expired lease so the next tick
// picks the post up. A live lease is left alone.
func (r *PostPostgres) ResetForReprocess(ctx context.Context, id string, lease time.Duration) error {
	const q = `
		UPDATE posts
		SET processed = false, extracted_data = NULL, claimed_at = NULL, claim_token = NULL, updated_at = now()
		WHERE id = $1
		  AND (claimed_at IS NULL OR claimed_at < now() - make_interval(secs => $2))
	`
	return r.execClaimed(ctx, q, id, lease.Seconds())
}

// ReleaseClaim drops the lease of a post the worker did not get to.
func (r *PostPostgres) ReleaseClaim(ctx context.Context, id, token string) error {
	const q = `
		UPDATE posts
		SET claimed_at = NULL, claim_token = NULL
		WHERE id = $1 AND processed = false AND claim_token = $2
	`
	return r.execClaimed(ctx, q, id, token)
}

// UpdateExtractedData overwrites extracted_data and marks the post processed.
func (r *PostPostgres) UpdateExtractedData(ctx context.Context, id string, data json.RawMessage) error {
	const q = `
		UPDATE posts
		SET processed = true, extracted_data = $2, updated_at = now()
		WHERE id = $1
	`
	return r.execExisting(ctx, q, id, nullJSON(data))
}

func (r *PostPostgres) execExisting(ctx context.Context, q string, args ...any) error {
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListProcessedDocuments returns processed document posts that carry data.
func (r *PostPostgres) ListProcessedDocuments(ctx context.Context, f repository.ExportFilter) ([]model.Post, error) {
	b := psql.Select(postColumns).From("posts").
		Where(sq.Eq{"kind": string(model.KindDocument)}).
		Where(sq.Eq{"processed": true}).
		Where(sq.NotEq{"extracted_data": nil})
	if f.UserID != "" {
		b = b.Where(sq.Eq{"user_id": f.UserID})
	}
	if f.From != nil {
		b = b.Where(sq.GtOrEq{"created_at": *f.From})
	}
	if f.To != nil {
		b = b.Where(sq.Lt{"created_at": *f.To})
	}
	q, args, err := b.OrderBy("created_at", "id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build export query: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return scanPosts(rows)
}
