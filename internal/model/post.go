package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Kind distinguishes uploads that need AI extraction from those that don't.
type Kind string

const (
	KindImage    Kind = "image"
	KindDocument Kind = "document"
)

// ParseKind accepts "image", "document" and the legacy alias "pdf".
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "image", "photo":
		return KindImage, nil
	case "document", "pdf":
		return KindDocument, nil
	default:
		return "", fmt.Errorf("unknown post kind %q", s)
	}
}

// Post is one user upload and the pipeline state attached to it.
//
// ExtractedData is nil until the record is processed; afterwards it holds a
// MedicalData, a FoodAnalysis or an ErrorMarker document.
type Post struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id,omitempty"`
	Title           string          `json:"title"`
	Kind            Kind            `json:"kind"`
	ContentLocation string          `json:"content_location"`
	TestID          string          `json:"test_id,omitempty"`
	HappenedAt      *time.Time      `json:"happened_at,omitempty"`
	Processed       bool            `json:"processed"`
	ExtractedData   json.RawMessage `json:"extracted_data,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`

	// ClaimToken is set on records returned by a claim and must accompany the
	// terminal write for that record.
	ClaimToken string `json:"-"`
}

// IsDocument reports whether the post goes through text + structured extraction.
func (p Post) IsDocument() bool {
	return p.Kind == KindDocument
}
