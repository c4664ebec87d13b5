package extract

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// MaxPDFPages caps how many pages of a single PDF are converted.
const MaxPDFPages = 200

func init() {
	// Keep pdfcpu from creating a config directory under $HOME.
	pdfmodel.ConfigPath = "disable"
}

// BlobFetcher resolves a location to bytes.
type BlobFetcher interface {
	Fetch(ctx context.Context, location string) (*Blob, error)
}

// Extractor turns a content location into plain text.
type Extractor struct {
	fetcher BlobFetcher
	log     *slog.Logger
}

func NewExtractor(fetcher BlobFetcher, log *slog.Logger) *Extractor {
	return &Extractor{fetcher: fetcher, log: log.With("component", "extract")}
}

// ExtractText fetches location and converts it to text. Any failure,
// including an empty result, is an *ExtractionError.
func (e *Extractor) ExtractText(ctx context.Context, location string) (string, error) {
	start := time.Now()
	blob, err := e.fetcher.Fetch(ctx, location)
	if err != nil {
		return "", err
	}
	text, err := Text(blob)
	if err != nil {
		return "", parseErr(location, err)
	}
	e.log.Debug("extract.text.ok",
		"location", location,
		"bytes", len(blob.Data),
		"chars", len(text),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}

type format int

const (
	formatUnknown format = iota
	formatPDF
	formatHTML
	formatText
)

func detectFormat(b *Blob) format {
	head := b.Data
	if len(head) > 1024 {
		head = head[:1024]
	}
	if bytes.HasPrefix(bytes.TrimLeft(head, " \t\r\n"), []byte("%PDF-")) {
		return formatPDF
	}

	ct := b.ContentType
	if ct == "" || strings.HasPrefix(ct, "application/octet-stream") {
		ct = http.DetectContentType(head)
	}
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		switch {
		case mt == "application/pdf":
			return formatPDF
		case mt == "text/html", mt == "application/xhtml+xml":
			return formatHTML
		case strings.HasPrefix(mt, "text/"), mt == "application/json":
			return formatText
		}
	}

	switch strings.ToLower(path.Ext(b.Name)) {
	case ".pdf":
		return formatPDF
	case ".html", ".htm":
		return formatHTML
	case ".txt", ".csv", ".md":
		return formatText
	}
	return formatUnknown
}

// Text converts a fetched blob to normalized plain text.
func Text(b *Blob) (string, error) {
	var (
		text string
		err  error
	)
	switch detectFormat(b) {
	case formatPDF:
		text, err = pdfText(b.Data)
	case formatHTML:
		text, err = htmlText(b.Data)
	case formatText:
		text = string(b.Data)
	default:
		return "", ErrUnsupportedFormat
	}
	if err != nil {
		return "", err
	}
	text = normalizeWhitespace(text)
	if text == "" {
		return "", ErrEmptyContent
	}
	return text, nil
}

// pdfText panics inside ledongthuc/pdf on some malformed xref tables; those
// are reported as ErrCorruptPDF.
func pdfText(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: %v", ErrCorruptPDF, r)
		}
	}()

	conf := pdfmodel.NewDefaultConfiguration()
	conf.ValidationMode = pdfmodel.ValidationRelaxed
	// pdfcpu is stricter than the text reader; a failure here is not fatal.
	if pages, err := api.PageCount(bytes.NewReader(data), conf); err == nil && pages > MaxPDFPages {
		return "", fmt.Errorf("pdf has %d pages, limit is %d", pages, MaxPDFPages)
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var sb strings.Builder
	numPages := min(reader.NumPage(), MaxPDFPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(pageText)
		sb.WriteString("\n\n")
	}
	return sb.String(), nil
}

func htmlText(data []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style, noscript, template, head").Remove()

	var sb strings.Builder
	doc.Find("body").Contents().Each(func(_ int, s *goquery.Selection) {
		sb.WriteString(s.Text())
		sb.WriteString("\n")
	})
	if sb.Len() == 0 {
		sb.WriteString(doc.Text())
	}
	return sb.String(), nil
}

var (
	spaceRun = regexp.MustCompile(`[ \t\f\v\r]+`)
	blankRun = regexp.MustCompile(`\n{3,}`)
)

func normalizeWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = spaceRun.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	s = blankRun.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(s)
}
