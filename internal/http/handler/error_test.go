package handler

import (
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nutrilab/internal/ai"
	"nutrilab/internal/extract"
	"nutrilab/internal/service"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found wrapped", fmt.Errorf("get: %w", service.ErrNotFound), fiber.StatusNotFound, "NOT_FOUND"},
		{"invalid kind", fmt.Errorf("%w: bad", service.ErrInvalidKind), fiber.StatusBadRequest, "INVALID_KIND"},
		{"busy", service.ErrBusy, fiber.StatusConflict, "BUSY"},
		{"extraction", &extract.ExtractionError{Location: "s3://posts/a.pdf", Err: errors.New("empty content")}, fiber.StatusUnprocessableEntity, "EXTRACTION_FAILED"},
		{"upstream", &ai.UpstreamError{StatusCode: 503, Err: errors.New("unavailable")}, fiber.StatusBadGateway, "UPSTREAM_ERROR"},
		{"malformed", &ai.MalformedResponseError{Err: errors.New("no choices")}, fiber.StatusBadGateway, "MALFORMED_RESPONSE"},
		{"unknown", errors.New("connection reset"), fiber.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := classify(tt.err)
			assert.Equal(t, tt.status, f.status)
			assert.Equal(t, tt.code, f.code)
		})
	}
}

func TestErrorHandler_HidesInternalDetails(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
	app.Get("/boom", func(c *fiber.Ctx) error {
		return errors.New("pq: password authentication failed")
	})
	app.Get("/teapot", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusTeapot, "short and stout")
	})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/boom", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	body := decodeError(t, resp)
	assert.Equal(t, "INTERNAL_ERROR", body.Error.Code)
	assert.NotContains(t, body.Error.Message, "password")

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/teapot", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTeapot, resp.StatusCode)
	assert.Equal(t, "INTERNAL_ERROR", decodeError(t, resp).Error.Code)
}
