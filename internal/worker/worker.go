// Package worker runs the background document extraction pipeline: claim a
// batch of pending posts, extract structured data from each document, and
// persist either the result or an error marker.
package worker

import (
	"context"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel"

	"nutrilab/internal/model"
)

var tracer = otel.Tracer("nutrilab/internal/worker")

// Store is the slice of the record store the pipeline needs.
type Store interface {
	ClaimUnprocessed(ctx context.Context, limit int, lease time.Duration) ([]model.Post, error)
	MarkProcessed(ctx context.Context, id, token string, data json.RawMessage) error
	MarkSkipped(ctx context.Context, id, token string) error
	ReleaseClaim(ctx context.Context, id, token string) error
}

// TextExtractor turns a content location into plain text.
type TextExtractor interface {
	ExtractText(ctx context.Context, location string) (string, error)
}

// DataExtractor turns report text into a structured record.
type DataExtractor interface {
	ExtractMedicalData(ctx context.Context, text, hint string) (*model.MedicalData, error)
}
