package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nutrilab/internal/ai"
	"nutrilab/internal/config"
	"nutrilab/internal/extract"
	"nutrilab/internal/logging"
	"nutrilab/internal/model"
	"nutrilab/internal/repository"
)

type pipeline struct {
	store *memStore
	text  *fakeText
	ai    *fakeAI
	sched *Scheduler
}

func newPipeline(t *testing.T, cfg config.WorkerConfig) *pipeline {
	t.Helper()
	p := &pipeline{store: newMemStore(), text: &fakeText{}, ai: &fakeAI{}}
	p.sched = p.newScheduler(cfg, nil)
	return p
}

func (p *pipeline) newScheduler(cfg config.WorkerConfig, m *Metrics) *Scheduler {
	log := logging.Discard()
	return NewScheduler(cfg, NewScanner(p.store, time.Minute), NewProcessor(p.store, p.text, p.ai, log), log, m)
}

func markerOf(t *testing.T, raw json.RawMessage) model.ErrorMarker {
	t.Helper()
	require.True(t, model.IsErrorMarker(raw), "expected error marker, got %s", raw)
	var m model.ErrorMarker
	require.NoError(t, json.Unmarshal(raw, &m))
	return m
}

func TestRunOnce_NonDocumentSkipped(t *testing.T) {
	p := newPipeline(t, config.WorkerConfig{})
	id := p.store.add(model.KindImage, "uploads/meal.jpg")

	report, err := p.sched.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Skipped)
	got := p.store.get(id)
	assert.True(t, got.Processed)
	assert.Nil(t, got.ExtractedData)
	assert.Zero(t, p.text.calls.Load())
	assert.Zero(t, p.ai.calls.Load())
}

func TestRunOnce_DocumentSucceeds(t *testing.T) {
	p := newPipeline(t, config.WorkerConfig{})
	id := p.store.add(model.KindDocument, "uploads/cbc.pdf")

	report, err := p.sched.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, StatusSucceeded, report.Outcomes[0].Status)

	got := p.store.get(id)
	assert.True(t, got.Processed)
	want, _ := json.Marshal(sampleData("text of uploads/cbc.pdf"))
	assert.JSONEq(t, string(want), string(got.ExtractedData))
}

func TestRunOnce_FailuresBecomeMarkers(t *testing.T) {
	tests := []struct {
		name   string
		text   func(context.Context, string) (string, error)
		ai     func(context.Context, string) (*model.MedicalData, error)
		reason model.FailureReason
	}{
		{
			name: "upstream non-2xx",
			ai: func(context.Context, string) (*model.MedicalData, error) {
				return nil, &ai.UpstreamError{StatusCode: 503, Err: errors.New("overloaded")}
			},
			reason: model.ReasonUpstream,
		},
		{
			name: "malformed response",
			ai: func(context.Context, string) (*model.MedicalData, error) {
				return nil, &ai.MalformedResponseError{Err: errors.New("invalid JSON")}
			},
			reason: model.ReasonMalformedResponse,
		},
		{
			name: "extraction",
			text: func(_ context.Context, loc string) (string, error) {
				return "", &extract.ExtractionError{Location: loc, Op: "fetch", Err: errors.New("unexpected status 404")}
			},
			reason: model.ReasonExtraction,
		},
		{
			name: "unclassified error",
			text: func(context.Context, string) (string, error) {
				return "", errors.New("something odd")
			},
			reason: model.ReasonInternal,
		},
		{
			name: "panic in extractor",
			ai: func(context.Context, string) (*model.MedicalData, error) {
				panic("nil map")
			},
			reason: model.ReasonInternal,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPipeline(t, config.WorkerConfig{})
			p.text.fn, p.ai.fn = tt.text, tt.ai
			id := p.store.add(model.KindDocument, "uploads/a.pdf")

			report, err := p.sched.RunOnce(context.Background())
			require.NoError(t, err)
			require.Len(t, report.Outcomes, 1)
			assert.Equal(t, StatusFailed, report.Outcomes[0].Status)
			assert.True(t, report.Outcomes[0].MarkerStored)

			got := p.store.get(id)
			assert.True(t, got.Processed)
			m := markerOf(t, got.ExtractedData)
			assert.Equal(t, tt.reason, m.Reason)
			assert.Equal(t, model.FailureSummary, m.Summary)
		})
	}
}

func TestRunOnce_FailureDoesNotAbortSiblings(t *testing.T) {
	p := newPipeline(t, config.WorkerConfig{})
	a := p.store.add(model.KindDocument, "uploads/a.pdf")
	b := p.store.add(model.KindDocument, "uploads/broken.pdf")
	c := p.store.add(model.KindDocument, "uploads/c.pdf")
	p.ai.fn = func(_ context.Context, text string) (*model.MedicalData, error) {
		if text == "text of uploads/broken.pdf" {
			return nil, &ai.UpstreamError{StatusCode: 500, Err: errors.New("boom")}
		}
		return sampleData(text), nil
	}

	report, err := p.sched.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.Claimed)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 1, report.Failed)

	assert.False(t, model.IsErrorMarker(p.store.get(a).ExtractedData))
	assert.True(t, model.IsErrorMarker(p.store.get(b).ExtractedData))
	assert.False(t, model.IsErrorMarker(p.store.get(c).ExtractedData))
}

func TestRunOnce_ProcessedRecordsAreNotRefetched(t *testing.T) {
	p := newPipeline(t, config.WorkerConfig{})
	p.store.add(model.KindDocument, "uploads/a.pdf")

	_, err := p.sched.RunOnce(context.Background())
	require.NoError(t, err)
	report, err := p.sched.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Zero(t, report.Claimed)
	assert.Equal(t, int32(1), p.text.calls.Load())
	assert.Equal(t, int32(1), p.ai.calls.Load())
}

func TestRunOnce_BatchLimit(t *testing.T) {
	p := newPipeline(t, config.WorkerConfig{BatchSize: 10})
	for range 15 {
		p.store.add(model.KindDocument, "uploads/r.pdf")
	}

	first, err := p.sched.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, first.Claimed)
	assert.Equal(t, 10, p.store.processedCount())
	assert.Equal(t, "post-01", first.Outcomes[0].PostID)

	second, err := p.sched.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, second.Claimed)
	assert.Equal(t, 15, p.store.processedCount())
}

// blockingAI holds every call until release is closed.
func blockingAI(entered chan<- struct{}, release <-chan struct{}) func(context.Context, string) (*model.MedicalData, error) {
	var once sync.Once
	return func(ctx context.Context, text string) (*model.MedicalData, error) {
		once.Do(func() { close(entered) })
		select {
		case <-release:
			return sampleData(text), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func TestRunOnce_OverlappingTicksProcessOnce(t *testing.T) {
	p := newPipeline(t, config.WorkerConfig{})
	id := p.store.add(model.KindDocument, "uploads/a.pdf")
	entered, release := make(chan struct{}), make(chan struct{})
	p.ai.fn = blockingAI(entered, release)

	done := make(chan error, 1)
	go func() {
		_, err := p.sched.RunOnce(context.Background())
		done <- err
	}()
	<-entered

	_, err := p.sched.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrTickInProgress)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), p.ai.calls.Load())
	assert.True(t, p.store.get(id).Processed)
}

func TestRunOnce_TwoSchedulersShareStore(t *testing.T) {
	p := newPipeline(t, config.WorkerConfig{})
	other := p.newScheduler(config.WorkerConfig{}, nil)
	p.store.add(model.KindDocument, "uploads/a.pdf")
	entered, release := make(chan struct{}), make(chan struct{})
	p.ai.fn = blockingAI(entered, release)

	done := make(chan error, 1)
	go func() {
		_, err := p.sched.RunOnce(context.Background())
		done <- err
	}()
	<-entered

	report, err := other.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Claimed)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), p.ai.calls.Load())
}

func TestRunOnce_TickDeadlineDefersUnstartedPosts(t *testing.T) {
	p := newPipeline(t, config.WorkerConfig{TickTimeout: 50 * time.Millisecond})
	slow := p.store.add(model.KindDocument, "uploads/slow.pdf")
	healthy := p.store.add(model.KindDocument, "uploads/healthy.pdf")

	// The first AI call runs past the tick budget; later calls answer at once.
	var first atomic.Bool
	p.ai.fn = func(ctx context.Context, text string) (*model.MedicalData, error) {
		if first.CompareAndSwap(false, true) {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return sampleData(text), nil
	}

	report, err := p.sched.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Claimed)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Deferred)
	assert.Equal(t, StatusFailed, report.Outcomes[0].Status)
	assert.Equal(t, StatusDeferred, report.Outcomes[1].Status)

	// The post that was running when time ran out carries the marker.
	assert.Equal(t, model.ReasonTimeout, markerOf(t, p.store.get(slow).ExtractedData).Reason)

	// The post that never started is untouched and back in the queue.
	got := p.store.get(healthy)
	assert.False(t, got.Processed)
	assert.Nil(t, got.ExtractedData)
	assert.Empty(t, got.ClaimToken)
	assert.Equal(t, int32(1), p.text.calls.Load())
	assert.Equal(t, int32(1), p.ai.calls.Load())

	// The next tick gives it a real result.
	report, err = p.sched.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)
	want, _ := json.Marshal(sampleData("text of uploads/healthy.pdf"))
	assert.JSONEq(t, string(want), string(p.store.get(healthy).ExtractedData))
}

func TestRunOnce_TickDeadlineDefersQueuedPostsWhenConcurrent(t *testing.T) {
	p := newPipeline(t, config.WorkerConfig{TickTimeout: 50 * time.Millisecond, Concurrency: 2, BatchSize: 5})
	for range 5 {
		p.store.add(model.KindDocument, "uploads/r.pdf")
	}
	p.ai.fn = func(ctx context.Context, _ string) (*model.MedicalData, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	report, err := p.sched.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, report.Claimed)
	assert.Equal(t, 2, report.Failed, "only the two in-flight posts time out")
	assert.Equal(t, 3, report.Deferred)
	assert.Equal(t, 2, p.store.processedCount())
}

func TestRunOnce_AbandonedClaimIsReclaimed(t *testing.T) {
	p := newPipeline(t, config.WorkerConfig{})
	id := p.store.add(model.KindDocument, "uploads/a.pdf")

	// A worker that claimed the post and then died.
	crashed, err := p.store.ClaimUnprocessed(context.Background(), 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, crashed, 1)

	report, err := p.sched.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Claimed, "a live lease is not taken over")

	p.store.advance(2 * time.Minute)
	report, err = p.sched.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)
	assert.True(t, p.store.get(id).Processed)
	assert.Equal(t, int32(1), p.ai.calls.Load())

	// The crashed worker's late write is rejected.
	err = p.store.MarkProcessed(context.Background(), id, crashed[0].ClaimToken, json.RawMessage(`{}`))
	assert.ErrorIs(t, err, repository.ErrClaimLost)
}

func TestRunOnce_ClaimFailure(t *testing.T) {
	p := newPipeline(t, config.WorkerConfig{})
	p.store.claimErr = errors.New("connection refused")

	_, err := p.sched.RunOnce(context.Background())
	var tickErr *TickError
	require.ErrorAs(t, err, &tickErr)
	assert.Equal(t, "claim", tickErr.Op)
	assert.ErrorContains(t, err, "connection refused")
}

func TestRunOnce_PanicIsRecovered(t *testing.T) {
	p := newPipeline(t, config.WorkerConfig{})
	p.store.claimPanic = true

	_, err := p.sched.RunOnce(context.Background())
	var tickErr *TickError
	require.ErrorAs(t, err, &tickErr)
	assert.Equal(t, "panic", tickErr.Op)

	// The tick lock was released.
	p.store.claimPanic = false
	_, err = p.sched.RunOnce(context.Background())
	assert.NoError(t, err)
}

func TestRunOnce_Concurrent(t *testing.T) {
	p := newPipeline(t, config.WorkerConfig{BatchSize: 20, Concurrency: 4})
	for range 8 {
		p.store.add(model.KindDocument, "uploads/r.pdf")
	}
	p.store.add(model.KindImage, "uploads/meal.jpg")

	report, err := p.sched.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 9, report.Claimed)
	assert.Equal(t, 8, report.Succeeded)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 9, p.store.processedCount())
}

func TestRunOnce_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	p := newPipeline(t, config.WorkerConfig{})
	p.sched = p.newScheduler(config.WorkerConfig{}, m)
	p.store.add(model.KindDocument, "uploads/a.pdf")
	p.store.add(model.KindImage, "uploads/b.jpg")

	_, err = p.sched.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.records.WithLabelValues("succeeded", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.records.WithLabelValues("skipped", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ticks.WithLabelValues("ok")))

	_, err = NewMetrics(reg)
	assert.Error(t, err, "duplicate registration")
}

func TestScheduler_StartStop(t *testing.T) {
	p := newPipeline(t, config.WorkerConfig{PollInterval: 10 * time.Millisecond})
	p.store.add(model.KindDocument, "uploads/a.pdf")

	ctx := context.Background()
	require.NoError(t, p.sched.Start(ctx))
	assert.ErrorIs(t, p.sched.Start(ctx), ErrAlreadyStarted)

	// First tick runs immediately.
	assert.Eventually(t, func() bool { return p.store.processedCount() == 1 }, time.Second, 5*time.Millisecond)

	// Later ticks pick up new records.
	p.store.add(model.KindDocument, "uploads/b.pdf")
	assert.Eventually(t, func() bool { return p.store.processedCount() == 2 }, time.Second, 5*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, p.sched.Stop(stopCtx))
	assert.NoError(t, p.sched.Stop(stopCtx))

	// Restartable after Stop.
	require.NoError(t, p.sched.Start(ctx))
	require.NoError(t, p.sched.Stop(stopCtx))
}

func TestScheduler_LoopSurvivesTickErrors(t *testing.T) {
	p := newPipeline(t, config.WorkerConfig{PollInterval: 5 * time.Millisecond})
	p.store.claimErr = errors.New("db down")

	require.NoError(t, p.sched.Start(context.Background()))
	time.Sleep(20 * time.Millisecond)

	p.store.mu.Lock()
	p.store.claimErr = nil
	p.store.mu.Unlock()
	p.store.add(model.KindDocument, "uploads/a.pdf")

	assert.Eventually(t, func() bool { return p.store.processedCount() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, p.sched.Stop(context.Background()))
}
