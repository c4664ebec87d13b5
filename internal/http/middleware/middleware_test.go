package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoRequestID answers with whatever RequestID stored in locals.
func echoRequestID(c *fiber.Ctx) error {
	id, _ := c.Locals(RequestIDLocalKey).(string)
	return c.SendString(id)
}

func TestRequestID(t *testing.T) {
	app := fiber.New()
	app.Use(RequestID())
	app.Get("/echo", echoRequestID)

	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{name: "generated when absent"},
		{name: "client value kept", incoming: "lab-upload-7f3a", keep: true},
		{name: "max length kept", incoming: strings.Repeat("r", maxRequestIDLen), keep: true},
		{name: "too long replaced", incoming: strings.Repeat("r", maxRequestIDLen+1)},
		{name: "whitespace replaced", incoming: "abc def"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(fiber.MethodGet, "/echo", nil)
			if tt.incoming != "" {
				req.Header.Set(RequestIDHeader, tt.incoming)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			require.Equal(t, fiber.StatusOK, resp.StatusCode)

			got := resp.Header.Get(RequestIDHeader)
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.Equal(t, got, string(body), "locals and response header disagree")

			if tt.keep {
				assert.Equal(t, tt.incoming, got)
				return
			}
			_, err = uuid.Parse(got)
			assert.NoError(t, err, "expected a generated UUID, got %q", got)
		})
	}
}

func TestAdminAuth(t *testing.T) {
	newApp := func(token string) *fiber.App {
		app := fiber.New()
		app.Use(AdminAuth(token))
		app.Post("/admin", func(c *fiber.Ctx) error {
			return c.SendString("ok")
		})
		return app
	}

	tests := []struct {
		name       string
		token      string
		header     string
		wantStatus int
	}{
		{name: "valid token", token: "s3cret", header: "Bearer s3cret", wantStatus: fiber.StatusOK},
		{name: "wrong token", token: "s3cret", header: "Bearer nope", wantStatus: fiber.StatusUnauthorized},
		{name: "token prefix only", token: "s3cret", header: "Bearer s3c", wantStatus: fiber.StatusUnauthorized},
		{name: "missing header", token: "s3cret", wantStatus: fiber.StatusUnauthorized},
		{name: "wrong scheme", token: "s3cret", header: "Basic s3cret", wantStatus: fiber.StatusUnauthorized},
		{name: "unconfigured token rejects everything", token: "", header: "Bearer ", wantStatus: fiber.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(fiber.MethodPost, "/admin", nil)
			if tt.header != "" {
				req.Header.Set(fiber.HeaderAuthorization, tt.header)
			}
			resp, err := newApp(tt.token).Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}

// logLine runs one request through RequestID and Logger and returns the
// decoded access log entry.
func logLine(t *testing.T, handler fiber.Handler) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	app := fiber.New()
	app.Use(RequestID())
	app.Use(LoggerWithWriter(&buf, time.UTC))
	app.Get("/posts/:id", handler)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/posts/42", nil))
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "log output: %s", buf.String())
	return resp.StatusCode, entry
}

func TestLogger(t *testing.T) {
	tests := []struct {
		name      string
		handler   fiber.Handler
		status    int
		wantLevel string
	}{
		{
			name:      "success logs at info",
			handler:   func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusAccepted) },
			status:    fiber.StatusAccepted,
			wantLevel: "INFO",
		},
		{
			name:      "fiber error logs at warn",
			handler:   func(c *fiber.Ctx) error { return fiber.ErrNotFound },
			status:    fiber.StatusNotFound,
			wantLevel: "WARN",
		},
		{
			name:      "plain error logs at error",
			handler:   func(c *fiber.Ctx) error { return errors.New("db down") },
			status:    fiber.StatusInternalServerError,
			wantLevel: "ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, entry := logLine(t, tt.handler)
			assert.Equal(t, tt.status, status)

			assert.Equal(t, "http_request", entry["msg"])
			assert.Equal(t, tt.wantLevel, entry["level"])
			assert.Equal(t, float64(tt.status), entry["status"])
			assert.Equal(t, fiber.MethodGet, entry["method"])
			assert.Equal(t, "/posts/42", entry["path"])
			assert.NotEmpty(t, entry["request_id"])
			assert.NotEmpty(t, entry["ts"])
			assert.IsType(t, float64(0), entry["latency"])
		})
	}
}
