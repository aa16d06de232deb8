package providers

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
)

const answersTimeout = 30 * time.Second

// PerplexityClient implements AnswerSearch against the Perplexity API, which
// answers queries with source citations and so serves as the fact-checking
// provider.
type PerplexityClient struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

// NewPerplexityClient creates a verified-answer client. The API key falls
// back to the PERPLEXITY_API_KEY environment variable.
func NewPerplexityClient(apiKey string) *PerplexityClient {
	if apiKey == "" {
		apiKey = os.Getenv("PERPLEXITY_API_KEY")
	}
	if apiKey == "" {
		logging.APIWarn("Perplexity API key not set - verification unavailable")
	}
	return &PerplexityClient{
		apiKey:  apiKey,
		baseURL: "https://api.perplexity.ai",
		model:   "sonar-pro",
		client:  &http.Client{Timeout: answersTimeout},
	}
}

// Available reports whether the client can make calls.
func (c *PerplexityClient) Available() bool { return c.apiKey != "" }

type perplexityRequest struct {
	Model               string              `json:"model"`
	Messages            []perplexityMessage `json:"messages"`
	MaxTokens           int                 `json:"max_tokens"`
	Temperature         float64             `json:"temperature"`
	SearchMode          string              `json:"search_mode,omitempty"`
	SearchRecencyFilter string              `json:"search_recency_filter,omitempty"`
}

type perplexityMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type perplexityResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	SearchResults []struct {
		URL   string `json:"url"`
		Title string `json:"title"`
		Date  string `json:"date"`
	} `json:"search_results"`
}

// Query asks a question and returns the cited answer.
func (c *PerplexityClient) Query(ctx context.Context, query, recency string, numResults int) *AnswerResponse {
	failure := func(err error) *AnswerResponse {
		logging.APIWarn("Perplexity query failed: %v", err)
		return &AnswerResponse{Success: false, Error: err.Error()}
	}

	content, sources, err := c.chat(ctx,
		"You are a precise fact-checker. Provide accurate information with specific sources.",
		query, recency, numResults)
	if err != nil {
		return failure(err)
	}

	return &AnswerResponse{Success: true, Answer: content, Sources: sources}
}

// VerifyFact checks a single claim, returning a structured verdict with
// confidence and citations.
func (c *PerplexityClient) VerifyFact(ctx context.Context, claim, factContext string) *VerifyResponse {
	failure := func(err error) *VerifyResponse {
		logging.APIWarn("Perplexity fact verification failed: %v", err)
		return &VerifyResponse{Success: false, Error: err.Error()}
	}

	query := fmt.Sprintf(`Verify this claim: %q
Context: %s

Respond with ONLY a JSON object:
{"verified": true/false, "confidence": 0.0-1.0, "explanation": "brief explanation"}`, claim, factContext)

	content, sources, err := c.chat(ctx,
		"You are a fact-checking service. Judge claims strictly against current sources.",
		query, "month", 5)
	if err != nil {
		return failure(err)
	}

	var verdict struct {
		Verified    bool    `json:"verified"`
		Confidence  float64 `json:"confidence"`
		Explanation string  `json:"explanation"`
	}
	cleaned := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(strings.TrimPrefix(
		strings.TrimSpace(content), "```json"), "```"), "```"))
	if err := json.Unmarshal([]byte(cleaned), &verdict); err != nil {
		// An unparseable verdict still carries the narrative result.
		return &VerifyResponse{
			Success:            true,
			Verified:           false,
			VerificationResult: content,
			Sources:            sources,
		}
	}

	return &VerifyResponse{
		Success:            true,
		Verified:           verdict.Verified,
		Confidence:         verdict.Confidence,
		VerificationResult: verdict.Explanation,
		Sources:            sources,
	}
}

func (c *PerplexityClient) chat(ctx context.Context, system, user, recency string, numResults int) (string, []AnswerSource, error) {
	if !c.Available() {
		return "", nil, fmt.Errorf("perplexity not configured")
	}

	body, err := json.Marshal(perplexityRequest{
		Model: c.model,
		Messages: []perplexityMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens:           2000,
		Temperature:         0.2,
		SearchMode:          "web",
		SearchRecencyFilter: recency,
	})
	if err != nil {
		return "", nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", nil, err
	}
	if resp.StatusCode != http.StatusOK {
		logging.APIError("Perplexity HTTP %d: %s", resp.StatusCode, string(data[:min(len(data), 500)]))
		return "", nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	var parsed perplexityResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", nil, fmt.Errorf("parse response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", nil, fmt.Errorf("no choices in response")
	}

	sources := make([]AnswerSource, 0, numResults)
	for i, r := range parsed.SearchResults {
		if i >= numResults {
			break
		}
		sources = append(sources, AnswerSource{URL: r.URL, Title: r.Title, Date: r.Date})
	}

	return parsed.Choices[0].Message.Content, sources, nil
}
