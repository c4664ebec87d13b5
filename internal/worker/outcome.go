package worker

import (
	"time"

	"nutrilab/internal/model"
)

// Status is the result of processing one post.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
	// StatusDeferred means the post was not attempted and went back to the queue.
	StatusDeferred  Status = "deferred"
)

// Outcome describes what happened to one claimed post.
// A failed outcome with MarkerStored set has an error marker persisted.
type Outcome struct {
	PostID       string              `json:"postId"`
	Status       Status              `json:"status"`
	Reason       model.FailureReason `json:"reason,omitempty"`
	MarkerStored bool                `json:"markerStored,omitempty"`
	Err          error               `json:"-"`
	Error        string              `json:"error,omitempty"`
	ElapsedMs    int64               `json:"elapsedMs"`
}

// BatchReport summarizes a tick.
type BatchReport struct {
	Claimed   int       `json:"claimed"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Skipped   int       `json:"skipped"`
	Deferred  int       `json:"deferred"`
	Outcomes  []Outcome `json:"outcomes"`
	StartedAt time.Time `json:"startedAt"`
	ElapsedMs int64     `json:"elapsedMs"`
}

func newBatchReport(startedAt time.Time, outcomes []Outcome) BatchReport {
	r := BatchReport{
		Claimed:   len(outcomes),
		Outcomes:  outcomes,
		StartedAt: startedAt,
		ElapsedMs: time.Since(startedAt).Milliseconds(),
	}
	if r.Outcomes == nil {
		r.Outcomes = []Outcome{}
	}
	for _, o := range outcomes {
		switch o.Status {
		case StatusSucceeded:
			r.Succeeded++
		case StatusFailed:
			r.Failed++
		case StatusSkipped:
			r.Skipped++
		case StatusDeferred:
			r.Deferred++
		}
	}
	return r
}
