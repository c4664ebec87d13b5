package model

import (
	"strings"
	"time"
)

// ResultStatus classifies a single measured parameter.
type ResultStatus string

const (
	StatusNormal   ResultStatus = "normal"
	StatusHigh     ResultStatus = "high"
	StatusLow      ResultStatus = "low"
	StatusCritical ResultStatus = "critical"
	StatusUnknown  ResultStatus = "unknown"
)

// NormalizeStatus maps any input to one of the known statuses.
func NormalizeStatus(s string) ResultStatus {
	switch ResultStatus(strings.ToLower(strings.TrimSpace(s))) {
	case StatusNormal:
		return StatusNormal
	case StatusHigh:
		return StatusHigh
	case StatusLow:
		return StatusLow
	case StatusCritical:
		return StatusCritical
	default:
		return StatusUnknown
	}
}

// PatientInfo is optional demographic data printed on a lab report.
type PatientInfo struct {
	Name   string `json:"name,omitempty"`
	Age    string `json:"age,omitempty"`
	Gender string `json:"gender,omitempty"`
}

// TestResult is one row of a lab report.
type TestResult struct {
	Parameter      string       `json:"parameter"`
	Value          string       `json:"value"`
	Unit           string       `json:"unit,omitempty"`
	ReferenceRange string       `json:"referenceRange,omitempty"`
	Status         ResultStatus `json:"status"`
	Notes          string       `json:"notes,omitempty"`
}

// ExtractionMetadata is stamped by the extractor, never by the model.
type ExtractionMetadata struct {
	ExtractedAt  time.Time `json:"extractedAt"`
	Model        string    `json:"model,omitempty"`
	ProcessingMs int64     `json:"processingMs"`
}

// MedicalData is the structured form of a lab report.
type MedicalData struct {
	TestType        string              `json:"testType,omitempty"`
	TestDate        string              `json:"testDate,omitempty"`
	PatientInfo     *PatientInfo        `json:"patientInfo,omitempty"`
	Laboratory      string              `json:"laboratory,omitempty"`
	DoctorName      string              `json:"doctorName,omitempty"`
	Results         []TestResult        `json:"results"`
	Summary         string              `json:"summary"`
	Recommendations []string            `json:"recommendations,omitempty"`
	Metadata        *ExtractionMetadata `json:"metadata,omitempty"`
}
