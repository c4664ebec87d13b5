package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nutrilab/internal/ai"
	"nutrilab/internal/extract"
	"nutrilab/internal/logging"
	"nutrilab/internal/model"
	"nutrilab/internal/repository"
)

func TestFailureReason(t *testing.T) {
	tests := []struct {
		err  error
		want model.FailureReason
	}{
		{err: &extract.ExtractionError{Op: "parse", Err: extract.ErrEmptyContent}, want: model.ReasonExtraction},
		{err: fmt.Errorf("wrap: %w", &ai.MalformedResponseError{Err: errors.New("x")}), want: model.ReasonMalformedResponse},
		{err: &ai.UpstreamError{StatusCode: 429, Err: errors.New("rate limited")}, want: model.ReasonUpstream},
		{err: &ai.UpstreamError{Err: context.DeadlineExceeded}, want: model.ReasonTimeout},
		{err: &extract.ExtractionError{Op: "fetch", Err: context.DeadlineExceeded}, want: model.ReasonTimeout},
		{err: errors.New("other"), want: model.ReasonInternal},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, failureReason(tt.err))
		})
	}
}

func TestProcess_ClaimLost(t *testing.T) {
	store := newMemStore()
	id := store.add(model.KindDocument, "uploads/a.pdf")
	proc := NewProcessor(store, &fakeText{}, &fakeAI{}, logging.Discard())

	// Never claimed, so the token does not match.
	out := proc.Process(context.Background(), store.get(id))
	assert.Equal(t, StatusFailed, out.Status)
	assert.ErrorIs(t, out.Err, repository.ErrClaimLost)
	assert.False(t, out.MarkerStored)
	assert.False(t, store.get(id).Processed)
}

func TestProcess_MarkSkippedFails(t *testing.T) {
	store := newMemStore()
	store.add(model.KindImage, "uploads/a.jpg")
	posts, err := store.ClaimUnprocessed(context.Background(), 10, 0)
	require.NoError(t, err)
	store.markErr = errors.New("db down")

	out := NewProcessor(store, &fakeText{}, &fakeAI{}, logging.Discard()).Process(context.Background(), posts[0])
	assert.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, model.ReasonInternal, out.Reason)
	assert.Equal(t, "db down", out.Error)
}

func TestProcess_CanceledReleasesClaim(t *testing.T) {
	store := newMemStore()
	id := store.add(model.KindDocument, "uploads/a.pdf")
	posts, err := store.ClaimUnprocessed(context.Background(), 10, time.Minute)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	text := &fakeText{fn: func(context.Context, string) (string, error) {
		cancel()
		return "", context.Canceled
	}}

	out := NewProcessor(store, text, &fakeAI{}, logging.Discard()).Process(ctx, posts[0])
	assert.Equal(t, StatusDeferred, out.Status)
	assert.NoError(t, out.Err)
	got := store.get(id)
	assert.False(t, got.Processed)
	assert.Nil(t, got.ExtractedData)
	assert.Empty(t, got.ClaimToken)

	again, err := store.ClaimUnprocessed(context.Background(), 10, time.Minute)
	require.NoError(t, err)
	assert.Len(t, again, 1, "released post is claimable right away")
}

func TestProcess_ExpiredContextIsNotAttempted(t *testing.T) {
	for _, kind := range []model.Kind{model.KindDocument, model.KindImage} {
		t.Run(string(kind), func(t *testing.T) {
			store := newMemStore()
			id := store.add(kind, "uploads/a")
			posts, err := store.ClaimUnprocessed(context.Background(), 10, time.Minute)
			require.NoError(t, err)

			ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
			defer cancel()
			text, data := &fakeText{}, &fakeAI{}

			out := NewProcessor(store, text, data, logging.Discard()).Process(ctx, posts[0])
			assert.Equal(t, StatusDeferred, out.Status)
			assert.Zero(t, text.calls.Load())
			assert.Zero(t, data.calls.Load())
			assert.False(t, store.get(id).Processed)
			assert.Empty(t, store.get(id).ClaimToken)
		})
	}
}

func TestProcess_NilDataIsFailure(t *testing.T) {
	store := newMemStore()
	id := store.add(model.KindDocument, "uploads/a.pdf")
	posts, err := store.ClaimUnprocessed(context.Background(), 10, 0)
	require.NoError(t, err)
	data := &fakeAI{fn: func(context.Context, string) (*model.MedicalData, error) { return nil, nil }}

	out := NewProcessor(store, &fakeText{}, data, logging.Discard()).Process(context.Background(), posts[0])
	assert.Equal(t, StatusFailed, out.Status)
	assert.True(t, out.MarkerStored)
	assert.True(t, model.IsErrorMarker(store.get(id).ExtractedData))
}

func TestScanner_DefaultLimit(t *testing.T) {
	store := newMemStore()
	for range 12 {
		store.add(model.KindImage, "x")
	}
	posts, err := NewScanner(store, 0).Claim(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, posts, DefaultBatchSize)
}
