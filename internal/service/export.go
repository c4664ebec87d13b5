package service

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"nutrilab/internal/model"
	"nutrilab/internal/repository"
)

// ExportRow is one measured parameter of one processed document. Documents
// with no parameters contribute a single "Summary" row.
type ExportRow struct {
	PostID           string    `json:"postId"`
	Title            string    `json:"title"`
	UserID           string    `json:"userId,omitempty"`
	PatientName      string    `json:"patientName,omitempty"`
	PatientAge       string    `json:"patientAge,omitempty"`
	PatientGender    string    `json:"patientGender,omitempty"`
	TestType         string    `json:"testType"`
	TestDate         string    `json:"testDate,omitempty"`
	Laboratory       string    `json:"laboratory,omitempty"`
	DoctorName       string    `json:"doctorName,omitempty"`
	UploadDate       time.Time `json:"uploadDate"`
	Parameter        string    `json:"parameter"`
	Value            string    `json:"value"`
	Unit             string    `json:"unit,omitempty"`
	ReferenceRange   string    `json:"referenceRange,omitempty"`
	Status           string    `json:"status"`
	Notes            string    `json:"notes,omitempty"`
	ProcessingTimeMs int64     `json:"processingTime"`
	ExtractionDate   string    `json:"extractionDate,omitempty"`
}

// ExportResult is the export payload.
type ExportResult struct {
	TotalFiles      int         `json:"totalFiles"`
	TotalParameters int         `json:"totalParameters"`
	ExportDate      time.Time   `json:"exportDate"`
	Data            []ExportRow `json:"data"`
}

// ExportService flattens processed lab results for spreadsheets.
type ExportService interface {
	Export(ctx context.Context, f repository.ExportFilter) (*ExportResult, error)
}

type exportService struct {
	repo   repository.PostRepository
	logger *slog.Logger
	now    func() time.Time
}

func NewExportService(repo repository.PostRepository, logger *slog.Logger) ExportService {
	if logger == nil {
		logger = slog.Default()
	}
	return &exportService{repo: repo, logger: logger.With("component", "export"), now: time.Now}
}

// Export skips error markers and payloads that are not lab results.
func (s *exportService) Export(ctx context.Context, f repository.ExportFilter) (*ExportResult, error) {
	start := time.Now()
	posts, err := s.repo.ListProcessedDocuments(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}

	rows := make([]ExportRow, 0, len(posts))
	skipped := 0
	for _, p := range posts {
		if model.IsErrorMarker(p.ExtractedData) {
			skipped++
			continue
		}
		var data model.MedicalData
		if err := json.Unmarshal(p.ExtractedData, &data); err != nil {
			skipped++
			continue
		}
		rows = append(rows, flatten(p, &data)...)
	}

	s.logger.Info("export.ok",
		"files", len(posts),
		"rows", len(rows),
		"skipped", skipped,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return &ExportResult{
		TotalFiles:      len(posts),
		TotalParameters: len(rows),
		ExportDate:      s.now().UTC(),
		Data:            rows,
	}, nil
}

func flatten(p model.Post, data *model.MedicalData) []ExportRow {
	base := ExportRow{
		PostID:     p.ID,
		Title:      p.Title,
		UserID:     p.UserID,
		TestType:   data.TestType,
		TestDate:   data.TestDate,
		Laboratory: data.Laboratory,
		DoctorName: data.DoctorName,
		UploadDate: p.CreatedAt.UTC(),
	}
	if pi := data.PatientInfo; pi != nil {
		base.PatientName, base.PatientAge, base.PatientGender = pi.Name, pi.Age, pi.Gender
	}
	if md := data.Metadata; md != nil {
		base.ProcessingTimeMs = md.ProcessingMs
		if !md.ExtractedAt.IsZero() {
			base.ExtractionDate = md.ExtractedAt.UTC().Format(time.RFC3339)
		}
	}

	if len(data.Results) == 0 {
		row := base
		row.Parameter = "Summary"
		row.Value = data.Summary
		row.Status = string(model.StatusUnknown)
		row.Notes = strings.Join(data.Recommendations, "; ")
		return []ExportRow{row}
	}

	rows := make([]ExportRow, 0, len(data.Results))
	for _, r := range data.Results {
		row := base
		row.Parameter = r.Parameter
		row.Value = r.Value
		row.Unit = r.Unit
		row.ReferenceRange = r.ReferenceRange
		row.Status = string(model.NormalizeStatus(string(r.Status)))
		row.Notes = r.Notes
		rows = append(rows, row)
	}
	return rows
}

var exportHeaders = []string{
	"Post ID", "Title", "Patient Name", "Patient Age", "Patient Gender",
	"Test Type", "Test Date", "Laboratory", "Doctor Name", "Upload Date",
	"Parameter", "Value", "Unit", "Reference Range", "Status", "Notes",
	"Processing Time (ms)", "Extraction Date",
}

func (r ExportRow) record() []string {
	return []string{
		r.PostID, r.Title, r.PatientName, r.PatientAge, r.PatientGender,
		r.TestType, r.TestDate, r.Laboratory, r.DoctorName, r.UploadDate.Format(time.RFC3339),
		r.Parameter, r.Value, r.Unit, r.ReferenceRange, r.Status, r.Notes,
		strconv.FormatInt(r.ProcessingTimeMs, 10), r.ExtractionDate,
	}
}

// WriteCSV writes the export as RFC 4180 CSV with a header row.
func WriteCSV(w io.Writer, res *ExportResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeaders); err != nil {
		return err
	}
	for _, row := range res.Data {
		if err := cw.Write(row.record()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

const exportSheet = "Results"

// WriteXLSX writes the export as a single-sheet workbook.
func WriteXLSX(w io.Writer, res *ExportResult) error {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return err
	}

	for i, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(exportSheet, cell, h)
	}
	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		last, _ := excelize.CoordinatesToCellName(len(exportHeaders), 1)
		_ = f.SetCellStyle(exportSheet, "A1", last, header)
	}

	for i, row := range res.Data {
		for j, v := range row.record() {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
			if j == 16 {
				// processing time stays numeric
				_ = f.SetCellValue(exportSheet, cell, row.ProcessingTimeMs)
				continue
			}
			_ = f.SetCellValue(exportSheet, cell, v)
		}
	}

	_ = f.SetColWidth(exportSheet, "A", "A", 38) // post id
	_ = f.SetColWidth(exportSheet, "B", "B", 28) // title
	_ = f.SetColWidth(exportSheet, "F", "F", 24) // test type
	_ = f.SetColWidth(exportSheet, "K", "K", 28) // parameter
	_ = f.SetColWidth(exportSheet, "P", "P", 40) // notes

	buf, err := f.WriteToBuffer()
	if err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	_, err = buf.WriteTo(w)
	return err
}
