package ai

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	openai "github.com/sashabaranov/go-openai"
)

var (
	errNoChoices    = errors.New("no choices in response")
	errEmptyContent = errors.New("empty message content")
	errNotObject    = errors.New("response is not a JSON object")
)

// maxLoggedContent bounds, in bytes, how much of a bad response is kept on
// the error.
const maxLoggedContent = 512

// MalformedResponseError means the completion API answered but the content
// could not be turned into the expected structure.
type MalformedResponseError struct {
	Content string
	Err     error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed AI response: %v", e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

func malformed(content string, err error) error {
	if len(content) > maxLoggedContent {
		cut := maxLoggedContent
		for cut > 0 && !utf8.RuneStart(content[cut]) {
			cut--
		}
		content = content[:cut]
	}
	return &MalformedResponseError{Content: content, Err: err}
}

// UpstreamError means the call to the completion API itself failed.
// StatusCode is zero for transport failures and timeouts.
type UpstreamError struct {
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("AI upstream error (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("AI upstream error: %v", e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Timeout reports whether the call ran out of time.
func (e *UpstreamError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

func upstream(err error) error {
	ue := &UpstreamError{Err: err}
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		ue.StatusCode = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		ue.StatusCode = reqErr.HTTPStatusCode
	}
	return ue
}
