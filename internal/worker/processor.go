package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"nutrilab/internal/ai"
	"nutrilab/internal/config"
	"nutrilab/internal/extract"
	"nutrilab/internal/model"
	"nutrilab/internal/repository"
)

// persistTimeout bounds the terminal write, which runs detached from the
// tick deadline so a timed-out record still gets its marker.
const persistTimeout = config.WorkerPersistTimeout

// Processor handles a single claimed post.
type Processor struct {
	store Store
	text  TextExtractor
	data  DataExtractor
	log   *slog.Logger
	now   func() time.Time
}

func NewProcessor(store Store, text TextExtractor, data DataExtractor, log *slog.Logger) *Processor {
	return &Processor{
		store: store,
		text:  text,
		data:  data,
		log:   log.With("component", "worker"),
		now:   time.Now,
	}
}

// Process runs one post through the pipeline and always returns an outcome.
// Documents end processed with either their data or an error marker; other
// kinds are marked processed untouched. The post must carry its claim token.
//
// A post whose context is already done when Process starts, or which is
// canceled mid-way, is not attempted: its claim is released and it is
// reported as deferred. Only a deadline that expires while the post's own
// work is running produces a timeout marker.
func (p *Processor) Process(ctx context.Context, post model.Post) (out Outcome) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "worker.process", trace.WithAttributes(
		attribute.String("post.id", post.ID),
		attribute.String("post.kind", string(post.Kind)),
	))
	defer span.End()

	out = Outcome{PostID: post.ID}
	defer func() {
		if r := recover(); r != nil {
			out = Outcome{PostID: post.ID, Status: StatusFailed, Reason: model.ReasonInternal, Err: fmt.Errorf("panic: %v", r)}
		}
		out.ElapsedMs = time.Since(start).Milliseconds()
		if out.Err != nil {
			out.Error = out.Err.Error()
			span.RecordError(out.Err)
			span.SetStatus(codes.Error, string(out.Reason))
		}
		span.SetAttributes(attribute.String("outcome", string(out.Status)))
	}()

	log := p.log.With("post_id", post.ID, "kind", post.Kind)
	if sc := span.SpanContext(); sc.IsValid() {
		log = log.With("trace_id", sc.TraceID().String())
	}

	if err := ctx.Err(); err != nil {
		return p.release(ctx, post, out, log, err)
	}

	if !post.IsDocument() {
		if err := p.persist(ctx, func(ctx context.Context) error {
			return p.store.MarkSkipped(ctx, post.ID, post.ClaimToken)
		}); err != nil {
			log.Error("worker.record.mark_failed", "error", err)
			out.Status, out.Reason, out.Err = StatusFailed, model.ReasonInternal, err
			return out
		}
		log.Debug("worker.record.skipped")
		out.Status = StatusSkipped
		return out
	}

	data, err := p.extract(ctx, post)
	if err != nil && errors.Is(err, context.Canceled) && ctx.Err() != nil {
		// Shutdown, not a document failure.
		return p.release(ctx, post, out, log, err)
	}

	var payload []byte
	if err != nil {
		out.Status, out.Reason, out.Err = StatusFailed, failureReason(err), err
		payload, _ = json.Marshal(model.NewErrorMarker(out.Reason, err, p.now()))
	} else {
		out.Status = StatusSucceeded
		if payload, err = json.Marshal(data); err != nil {
			out.Status, out.Reason, out.Err = StatusFailed, model.ReasonInternal, err
			payload, _ = json.Marshal(model.NewErrorMarker(out.Reason, err, p.now()))
		}
	}

	if err := p.persist(ctx, func(ctx context.Context) error {
		return p.store.MarkProcessed(ctx, post.ID, post.ClaimToken, payload)
	}); err != nil {
		if errors.Is(err, repository.ErrClaimLost) {
			log.Warn("worker.record.claim_lost")
		} else {
			log.Error("worker.record.mark_failed", "error", err)
		}
		if out.Err != nil {
			err = errors.Join(out.Err, err)
		}
		out.Status, out.Reason, out.Err = StatusFailed, model.ReasonInternal, err
		return out
	}

	if out.Status == StatusFailed {
		out.MarkerStored = true
		log.Warn("worker.record.failed", "reason", out.Reason, "error", out.Err)
	} else {
		log.Info("worker.record.ok", "elapsed_ms", time.Since(start).Milliseconds())
	}
	return out
}

// release hands the post back to the queue without touching its data. If the
// release itself fails the lease still expires on its own.
func (p *Processor) release(ctx context.Context, post model.Post, out Outcome, log *slog.Logger, cause error) Outcome {
	if err := p.persist(ctx, func(ctx context.Context) error {
		return p.store.ReleaseClaim(ctx, post.ID, post.ClaimToken)
	}); err != nil && !errors.Is(err, repository.ErrClaimLost) {
		log.Warn("worker.record.release_failed", "error", err)
	}
	log.Info("worker.record.deferred", "cause", cause.Error())
	out.Status = StatusDeferred
	return out
}

func (p *Processor) extract(ctx context.Context, post model.Post) (data *model.MedicalData, err error) {
	defer func() {
		if r := recover(); r != nil {
			data, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	text, err := p.text.ExtractText(ctx, post.ContentLocation)
	if err != nil {
		return nil, err
	}
	data, err = p.data.ExtractMedicalData(ctx, text, post.TestID)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, errors.New("extractor returned no data")
	}
	return data, nil
}

func (p *Processor) persist(ctx context.Context, write func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	return write(ctx)
}

func failureReason(err error) model.FailureReason {
	var (
		extErr      *extract.ExtractionError
		malformed   *ai.MalformedResponseError
		upstreamErr *ai.UpstreamError
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return model.ReasonTimeout
	case errors.As(err, &extErr):
		return model.ReasonExtraction
	case errors.As(err, &malformed):
		return model.ReasonMalformedResponse
	case errors.As(err, &upstreamErr):
		return model.ReasonUpstream
	default:
		return model.ReasonInternal
	}
}
