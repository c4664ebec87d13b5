package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"nutrilab/internal/ai"
	"nutrilab/internal/extract"
	"nutrilab/internal/http/middleware"
	"nutrilab/internal/service"
)

// apiError is the body of every non-2xx response:
//
//	{"request_id": "...", "error": {"code": "NOT_FOUND", "message": "post not found"}}
type apiError struct {
	RequestID string    `json:"request_id"`
	Error     errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// failure is a status/code/message triple that is safe to show to clients.
type failure struct {
	status  int
	code    string
	message string
}

var internalFailure = failure{fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error"}

// sentinelFailures is checked in order with errors.Is.
var sentinelFailures = []struct {
	target error
	failure
}{
	{service.ErrNotFound, failure{fiber.StatusNotFound, "NOT_FOUND", "post not found"}},
	{service.ErrInvalidKind, failure{fiber.StatusBadRequest, "INVALID_KIND", "kind must be image or document"}},
	{service.ErrTitleRequired, failure{fiber.StatusBadRequest, "TITLE_REQUIRED", "title is required"}},
	{service.ErrNotDocument, failure{fiber.StatusUnprocessableEntity, "NOT_DOCUMENT", "post is not a document"}},
	{service.ErrNotImage, failure{fiber.StatusUnprocessableEntity, "NOT_IMAGE", "post is not an image"}},
	{service.ErrNotStored, failure{fiber.StatusConflict, "NOT_STORED", "post content is not in the object store"}},
	{service.ErrBusy, failure{fiber.StatusConflict, "BUSY", "post is being processed"}},
}

// statusFailures backs the global ErrorHandler, keyed by fiber.Error code.
var statusFailures = map[int]failure{
	fiber.StatusBadRequest:            {fiber.StatusBadRequest, "BAD_REQUEST", "bad request"},
	fiber.StatusUnauthorized:          {fiber.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid admin token"},
	fiber.StatusNotFound:              {fiber.StatusNotFound, "NOT_FOUND", "resource not found"},
	fiber.StatusMethodNotAllowed:      {fiber.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed"},
	fiber.StatusRequestEntityTooLarge: {fiber.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "request body too large"},
}

func requestID(c *fiber.Ctx) string {
	id, _ := c.Locals(middleware.RequestIDLocalKey).(string)
	return id
}

// writeError never includes err text; callers pass a fixed message.
func writeError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(apiError{
		RequestID: requestID(c),
		Error:     errorBody{Code: code, Message: message},
	})
}

func (f failure) write(c *fiber.Ctx) error {
	return writeError(c, f.status, f.code, f.message)
}

// classify maps service and pipeline errors to a client-facing failure.
func classify(err error) failure {
	for _, s := range sentinelFailures {
		if errors.Is(err, s.target) {
			return s.failure
		}
	}

	var (
		extractErr   *extract.ExtractionError
		upstreamErr  *ai.UpstreamError
		malformedErr *ai.MalformedResponseError
	)
	switch {
	case errors.As(err, &extractErr):
		return failure{fiber.StatusUnprocessableEntity, "EXTRACTION_FAILED", "content could not be read"}
	case errors.As(err, &upstreamErr):
		return failure{fiber.StatusBadGateway, "UPSTREAM_ERROR", "AI service unavailable"}
	case errors.As(err, &malformedErr):
		return failure{fiber.StatusBadGateway, "MALFORMED_RESPONSE", "AI service returned an unusable response"}
	}
	return internalFailure
}

func writeServiceError(c *fiber.Ctx, err error) error {
	return classify(err).write(c)
}

// ErrorHandler is the app-wide fiber error handler. Unknown codes are
// reported as INTERNAL_ERROR but keep their status.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if !errors.As(err, &fe) {
			return internalFailure.write(c)
		}
		if f, ok := statusFailures[fe.Code]; ok {
			return f.write(c)
		}
		return writeError(c, fe.Code, internalFailure.code, internalFailure.message)
	}
}
