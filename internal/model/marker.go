package model

import (
	"encoding/json"
	"time"
)

// FailureSummary is the fixed text shown to reviewers for failed extractions.
const FailureSummary = "Processing failed - manual review required"

// FailureReason is the coarse class of a per-record pipeline failure.
type FailureReason string

const (
	ReasonExtraction        FailureReason = "extraction"
	ReasonMalformedResponse FailureReason = "malformed_response"
	ReasonUpstream          FailureReason = "upstream"
	ReasonTimeout           FailureReason = "timeout"
	ReasonInternal          FailureReason = "internal"
)

// ErrorMarker is stored in extracted_data when a document could not be processed.
type ErrorMarker struct {
	Error    string        `json:"error"`
	Reason   FailureReason `json:"reason"`
	Summary  string        `json:"summary"`
	FailedAt time.Time     `json:"failedAt"`
}

// NewErrorMarker builds a marker for err.
func NewErrorMarker(reason FailureReason, err error, at time.Time) ErrorMarker {
	msg := "Failed to process document"
	if err != nil {
		msg += ": " + err.Error()
	}
	return ErrorMarker{
		Error:    msg,
		Reason:   reason,
		Summary:  FailureSummary,
		FailedAt: at.UTC(),
	}
}

// IsErrorMarker reports whether a stored payload is an error marker,
// i.e. a JSON object with a non-empty "error" key.
func IsErrorMarker(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var head struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return false
	}
	return head.Error != ""
}
