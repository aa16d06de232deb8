// Package perception provides language-model access for the pipeline core.
// The planner, validator and executor fallback all consume the LLMClient
// capability; production wires an HTTP-backed implementation, tests supply
// deterministic stubs.
package perception

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"bizlens/internal/logging"
	"bizlens/internal/types"
)

// LLMClient is the language-model capability used throughout the core.
type LLMClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteWithOptions(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error)
}

// HTTPClient implements LLMClient against an OpenAI-compatible
// chat-completions endpoint.
type HTTPClient struct {
	apiKey     string
	baseURL    string
	model      string
	maxTokens  int
	temp       float64
	httpClient *http.Client
}

// HTTPConfig holds configuration for the HTTP client.
type HTTPConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// DefaultHTTPConfig returns sensible defaults. The API key falls back to the
// BIZLENS_LLM_API_KEY environment variable.
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		APIKey:      os.Getenv("BIZLENS_LLM_API_KEY"),
		BaseURL:     "https://api.z.ai/api/paas/v4",
		Model:       "glm-4.6",
		MaxTokens:   4000,
		Temperature: 0.2,
		Timeout:     120 * time.Second,
	}
}

// NewHTTPClient creates an HTTP-backed LLM client.
func NewHTTPClient(cfg HTTPConfig) *HTTPClient {
	def := DefaultHTTPConfig()
	if cfg.APIKey == "" {
		cfg.APIKey = def.APIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	return &HTTPClient{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		maxTokens:  cfg.MaxTokens,
		temp:       cfg.Temperature,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends a prompt with the client's default generation settings.
func (c *HTTPClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.CompleteWithOptions(ctx, prompt, c.maxTokens, c.temp)
}

// CompleteWithOptions sends a prompt with explicit generation settings.
func (c *HTTPClient) CompleteWithOptions(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	timer := logging.StartTimer(logging.CategoryLLM, "Complete")
	defer timer.Stop()

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", types.ErrProvider, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	logging.LLMDebug("POST %s model=%s prompt_len=%d", c.baseURL, c.model, len(prompt))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: llm request: %v", types.ErrProvider, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("%w: read llm response: %v", types.ErrProvider, err)
	}
	if resp.StatusCode != http.StatusOK {
		logging.APIError("LLM HTTP %d: %s", resp.StatusCode, truncate(string(data), 500))
		return "", fmt.Errorf("%w: llm HTTP %d", types.ErrProvider, resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("%w: parse llm response: %v", types.ErrProvider, err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("%w: llm: %s", types.ErrProvider, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%w: llm returned no choices", types.ErrProvider)
	}
	return parsed.Choices[0].Message.Content, nil
}

// CleanJSONResponse removes markdown code fences from a model's JSON reply.
func CleanJSONResponse(resp string) string {
	resp = strings.TrimSpace(resp)
	resp = strings.TrimPrefix(resp, "```json")
	resp = strings.TrimPrefix(resp, "```")
	resp = strings.TrimSuffix(resp, "```")
	return strings.TrimSpace(resp)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
