package perception

import (
	"context"
	"fmt"

	"bizlens/internal/logging"
	"bizlens/internal/types"

	"google.golang.org/genai"
)

// GeminiClient implements LLMClient against Google's Gemini API.
type GeminiClient struct {
	client      *genai.Client
	model       string
	maxTokens   int
	temperature float64
}

// NewGeminiClient creates a Gemini-backed LLM client.
func NewGeminiClient(ctx context.Context, apiKey, model string, maxTokens int, temperature float64) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: gemini API key is required", types.ErrInvalidArgument)
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	if maxTokens == 0 {
		maxTokens = 4000
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("%w: create gemini client: %v", types.ErrProvider, err)
	}
	logging.LLM("Gemini client created: model=%s", model)

	return &GeminiClient{
		client:      client,
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
	}, nil
}

// Complete sends a prompt with the client's default generation settings.
func (c *GeminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.CompleteWithOptions(ctx, prompt, c.maxTokens, c.temperature)
}

// CompleteWithOptions sends a prompt with explicit generation settings.
func (c *GeminiClient) CompleteWithOptions(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	timer := logging.StartTimer(logging.CategoryLLM, "Gemini.Complete")
	defer timer.Stop()

	temp := float32(temperature)
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature:     &temp,
		MaxOutputTokens: int32(maxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("%w: gemini: %v", types.ErrProvider, err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("%w: gemini returned empty response", types.ErrProvider)
	}
	return text, nil
}
