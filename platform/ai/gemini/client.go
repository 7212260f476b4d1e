// Package gemini provides the AI completion backend used for result
// enhancement. It wraps the Google Gen AI SDK behind a single completion
// call; callers treat failures as "no completion", never as errors to
// propagate.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// Config for the Gemini completion client.
type Config struct {
	APIKey       string
	DefaultModel string
}

// CompletionOptions bound a single completion call.
type CompletionOptions struct {
	Model       string
	MaxTokens   int32
	Temperature float32
}

// Client issues single-shot text completions against the Gemini API.
type Client struct {
	config Config
	client *genai.Client
}

// NewClient creates a Gemini completion client.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &Client{config: cfg, client: client}, nil
}

// Complete issues exactly one completion call and returns the generated text.
// The caller is responsible for the timeout on ctx; no retries are performed.
func (c *Client) Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error) {
	model := opts.Model
	if model == "" {
		model = c.config.DefaultModel
	}

	genConfig := &genai.GenerateContentConfig{
		MaxOutputTokens: opts.MaxTokens,
	}
	if opts.Temperature > 0 {
		genConfig.Temperature = genai.Ptr[float32](opts.Temperature)
	}

	resp, err := c.client.Models.GenerateContent(ctx, model, genai.Text(prompt), genConfig)
	if err != nil {
		return "", err
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("empty completion from model %s", model)
	}

	return text, nil
}
