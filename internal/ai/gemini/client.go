// Package gemini wraps the Google GenAI client behind a small prompt-in,
// text-out interface with retries on transient API failures.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	defaultModel      = "gemini-2.5-flash"
	defaultMaxRetries = 3
	retryBackoff      = 2 * time.Second
)

// Test seam.
var sleep = time.Sleep

// Generator sends prompts to the Gemini API and returns the textual
// response.
type Generator struct {
	model      string
	maxRetries int
	logger     *zap.Logger

	// generate is the API seam, replaced in tests.
	generate func(ctx context.Context, prompt string) (*genai.GenerateContentResponse, error)
}

// NewGenerator creates a Generator against the Gemini API backend.
func NewGenerator(ctx context.Context, apiKey, model string, maxRetries int, logger *zap.Logger) (*Generator, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	g := &Generator{
		model:      model,
		maxRetries: maxRetries,
		logger:     logger,
	}
	g.generate = func(ctx context.Context, prompt string) (*genai.GenerateContentResponse, error) {
		return client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	}
	return g, nil
}

// GenerateContent sends the prompt and returns the joined candidate text.
// Server-side errors (5xx) are retried with a fixed backoff; client errors
// fail immediately.
func (g *Generator) GenerateContent(ctx context.Context, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	var lastErr error
	for attempt := 1; attempt <= g.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		resp, err := g.generate(ctx, prompt)
		if err == nil {
			return collectText(resp)
		}
		lastErr = err

		if !retryable(err) {
			return "", fmt.Errorf("generate content: %w", err)
		}

		g.logger.Warn("gemini api error, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", g.maxRetries),
			zap.Error(err),
		)
		if attempt < g.maxRetries {
			sleep(retryBackoff)
		}
	}

	return "", fmt.Errorf("generate content after %d attempts: %w", g.maxRetries, lastErr)
}

// Model returns the configured model name.
func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.model
}

func retryable(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code >= 500
	}
	return false
}

func collectText(resp *genai.GenerateContentResponse) (string, error) {
	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return "", errors.New("gemini api returned empty response")
	}
	return output, nil
}
