// Package ai wraps an OpenAI-compatible chat completion API and turns its
// JSON answers into typed, validated records.
package ai

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"nutrilab/internal/config"
	"nutrilab/internal/model"
)

var ErrNoAPIKey = errors.New("AI API key is not configured")

// Client calls the completion API. It is safe for concurrent use.
type Client struct {
	api           *openai.Client
	model         string
	visionModel   string
	temperature   float32
	maxTokens     int
	maxInputChars int
	timeout       time.Duration
	log           *slog.Logger
	now           func() time.Time
}

// NewClient builds a client from cfg. When httpClient is nil a traced
// default client is used.
func NewClient(cfg config.LLMConfig, httpClient *http.Client, log *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if httpClient == nil {
		httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	oc.HTTPClient = httpClient

	visionModel := cfg.VisionModel
	if visionModel == "" {
		visionModel = cfg.Model
	}
	return &Client{
		api:           openai.NewClientWithConfig(oc),
		model:         cfg.Model,
		visionModel:   visionModel,
		temperature:   float32(cfg.Temperature),
		maxTokens:     cfg.MaxTokens,
		maxInputChars: cfg.MaxInputChars,
		timeout:       cfg.Timeout,
		log:           log.With("component", "ai"),
		now:           time.Now,
	}, nil
}

// ExtractMedicalData asks the model to structure the text of a lab report.
// hint is an optional test type (e.g. "blood") used only as prompt context.
//
// Errors are *UpstreamError or *MalformedResponseError.
func (c *Client) ExtractMedicalData(ctx context.Context, text, hint string) (*model.MedicalData, error) {
	start := time.Now()
	content, err := c.complete(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: medicalSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: medicalUserPrompt(text, hint, c.maxInputChars)},
		},
		Temperature:    c.temperature,
		MaxTokens:      c.maxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		return nil, err
	}

	data, err := parseMedicalData(content)
	if err != nil {
		c.log.Warn("ai.extract.malformed", "error", err, "content_chars", len(content))
		return nil, err
	}
	data.Metadata = &model.ExtractionMetadata{
		ExtractedAt:  c.now().UTC(),
		Model:        c.model,
		ProcessingMs: time.Since(start).Milliseconds(),
	}
	c.log.Info("ai.extract.ok",
		"results", len(data.Results),
		"input_chars", len(text),
		"elapsed_ms", data.Metadata.ProcessingMs,
	)
	return data, nil
}

// AnalyzeFood estimates the macros of a meal photo using the vision model.
func (c *Client) AnalyzeFood(ctx context.Context, image []byte, mimeType string) (*model.FoodAnalysis, error) {
	if mimeType == "" || !strings.HasPrefix(mimeType, "image/") {
		mimeType = "image/jpeg"
	}
	dataURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image)

	start := time.Now()
	content, err := c.complete(ctx, openai.ChatCompletionRequest{
		Model: c.visionModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: foodSystemPrompt},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: foodUserPrompt},
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: dataURL, Detail: openai.ImageURLDetailAuto},
					},
				},
			},
		},
		Temperature:    c.temperature,
		MaxTokens:      c.maxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		return nil, err
	}
	food, err := parseFoodAnalysis(content)
	if err != nil {
		c.log.Warn("ai.food.malformed", "error", err, "content_chars", len(content))
		return nil, err
	}
	c.log.Info("ai.food.ok", "food", food.FoodName, "elapsed_ms", time.Since(start).Milliseconds())
	return food, nil
}

func (c *Client) complete(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		c.log.Warn("ai.request.failed", "model", req.Model, "error", err)
		return "", upstream(err)
	}
	if len(resp.Choices) == 0 {
		return "", malformed("", errNoChoices)
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", malformed("", errEmptyContent)
	}
	c.log.Debug("ai.request.ok",
		"model", req.Model,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"finish_reason", resp.Choices[0].FinishReason,
	)
	return content, nil
}
