package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"nutrilab/internal/config"
	"nutrilab/internal/model"
)

const (
	DefaultPollInterval = 30 * time.Second
	DefaultTickTimeout  = 5 * time.Minute
)

var (
	ErrTickInProgress = errors.New("worker: tick already in progress")
	ErrAlreadyStarted = errors.New("worker: scheduler already started")
)

// TickError is a failure of a tick as a whole, as opposed to one post.
type TickError struct {
	Op  string
	Err error
}

func (e *TickError) Error() string {
	return fmt.Sprintf("worker tick %s: %v", e.Op, e.Err)
}

func (e *TickError) Unwrap() error { return e.Err }

// Scheduler drives the scanner on a fixed interval. Ticks never overlap
// within one Scheduler; across processes the claim lease keeps two
// schedulers off the same post.
type Scheduler struct {
	scanner     *Scanner
	proc        *Processor
	log         *slog.Logger
	metrics     *Metrics
	batchSize   int
	interval    time.Duration
	tickTimeout time.Duration
	concurrency int

	tickMu sync.Mutex

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler wires a scheduler. metrics may be nil.
func NewScheduler(cfg config.WorkerConfig, scanner *Scanner, proc *Processor, log *slog.Logger, metrics *Metrics) *Scheduler {
	s := &Scheduler{
		scanner:     scanner,
		proc:        proc,
		log:         log.With("component", "worker"),
		metrics:     metrics,
		batchSize:   cfg.BatchSize,
		interval:    cfg.PollInterval,
		tickTimeout: cfg.TickTimeout,
		concurrency: cfg.Concurrency,
	}
	if s.batchSize <= 0 {
		s.batchSize = DefaultBatchSize
	}
	if s.interval <= 0 {
		s.interval = DefaultPollInterval
	}
	if s.tickTimeout <= 0 {
		s.tickTimeout = DefaultTickTimeout
	}
	if s.concurrency <= 0 {
		s.concurrency = 1
	}
	return s
}

// Start runs a tick immediately and then every poll interval until ctx is
// done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return ErrAlreadyStarted
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(loopCtx, s.done)

	s.log.Info("worker.started",
		"batch_size", s.batchSize,
		"poll_interval", s.interval.String(),
		"tick_timeout", s.tickTimeout.String(),
		"concurrency", s.concurrency,
	)
	return nil
}

// Stop ends the loop and waits for an in-flight tick to finish, or for ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if done == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		s.log.Info("worker.stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	// In-flight ticks are not cut short by Stop; only the tick timeout applies.
	tickCtx := context.WithoutCancel(ctx)

	s.tick(tickCtx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(tickCtx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	report, err := s.RunOnce(ctx)
	switch {
	case errors.Is(err, ErrTickInProgress):
		s.log.Debug("worker.tick.skipped", "reason", "in_progress")
	case err != nil:
		s.log.Error("worker.tick.failed", "error", err)
	case report.Claimed > 0:
		s.log.Info("worker.tick.done",
			"claimed", report.Claimed,
			"succeeded", report.Succeeded,
			"failed", report.Failed,
			"skipped", report.Skipped,
			"deferred", report.Deferred,
			"elapsed_ms", report.ElapsedMs,
		)
	default:
		s.log.Debug("worker.tick.idle")
	}
}

// RunOnce runs a single tick synchronously. It returns ErrTickInProgress if
// another tick of this scheduler is running and a *TickError if the batch
// could not be claimed. Per-post failures are reported in the BatchReport.
func (s *Scheduler) RunOnce(ctx context.Context) (report BatchReport, err error) {
	if !s.tickMu.TryLock() {
		s.metrics.observeTick("skipped")
		return BatchReport{}, ErrTickInProgress
	}
	defer s.tickMu.Unlock()

	startedAt := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.tickTimeout)
	defer cancel()
	ctx, span := tracer.Start(ctx, "worker.tick")
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err = &TickError{Op: "panic", Err: fmt.Errorf("%v", r)}
		}
		if err != nil {
			s.metrics.observeTick("error")
			span.RecordError(err)
			span.SetStatus(codes.Error, "tick failed")
			return
		}
		s.metrics.observeReport(report)
		span.SetAttributes(
			attribute.Int("batch.claimed", report.Claimed),
			attribute.Int("batch.failed", report.Failed),
		)
	}()

	posts, err := s.scanner.Claim(ctx, s.batchSize)
	if err != nil {
		return BatchReport{}, &TickError{Op: "claim", Err: err}
	}
	return newBatchReport(startedAt, s.processAll(ctx, posts)), nil
}

func (s *Scheduler) processAll(ctx context.Context, posts []model.Post) []Outcome {
	outcomes := make([]Outcome, len(posts))
	if s.concurrency == 1 {
		for i, p := range posts {
			outcomes[i] = s.proc.Process(ctx, p)
		}
		return outcomes
	}

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, p := range posts {
		g.Go(func() error {
			outcomes[i] = s.proc.Process(ctx, p)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}
