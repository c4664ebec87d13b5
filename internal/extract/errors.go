package extract

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyContent      = errors.New("empty content")
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrCorruptPDF        = errors.New("corrupt pdf")
	ErrTooLarge          = errors.New("document exceeds size limit")
	ErrNoDocumentRoot    = errors.New("document root is not configured")
	ErrNoObjectStore     = errors.New("object store is not configured")
)

// ExtractionError reports that a location could not be turned into text.
// Op is "fetch" or "parse".
type ExtractionError struct {
	Location string
	Op       string
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s %q: %v", e.Op, e.Location, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

func fetchErr(location string, err error) error {
	return &ExtractionError{Location: location, Op: "fetch", Err: err}
}

func parseErr(location string, err error) error {
	return &ExtractionError{Location: location, Op: "parse", Err: err}
}
