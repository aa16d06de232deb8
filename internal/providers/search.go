package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"bizlens/internal/logging"
)

const searchTimeout = 30 * time.Second

// ExaClient implements NeuralSearch against the Exa semantic-search API.
type ExaClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewExaClient creates a neural-search client. The API key falls back to the
// EXA_API_KEY environment variable; a missing key leaves the client in an
// unavailable state where every call reports failure.
func NewExaClient(apiKey string) *ExaClient {
	if apiKey == "" {
		apiKey = os.Getenv("EXA_API_KEY")
	}
	if apiKey == "" {
		logging.APIWarn("Exa API key not set - neural search unavailable")
	}
	return &ExaClient{
		apiKey:  apiKey,
		baseURL: "https://api.exa.ai",
		client:  &http.Client{Timeout: searchTimeout},
	}
}

// Available reports whether the client can make calls.
func (c *ExaClient) Available() bool { return c.apiKey != "" }

type exaRequest struct {
	Query      string          `json:"query"`
	NumResults int             `json:"numResults"`
	Contents   exaContentsSpec `json:"contents"`
	Category   string          `json:"category,omitempty"`
	StartDate  string          `json:"startPublishedDate,omitempty"`
	URL        string          `json:"url,omitempty"`
}

type exaContentsSpec struct {
	Text bool `json:"text"`
}

type exaResponse struct {
	Results []struct {
		URL           string  `json:"url"`
		Title         string  `json:"title"`
		Text          string  `json:"text"`
		PublishedDate string  `json:"publishedDate"`
		Score         float64 `json:"score"`
	} `json:"results"`
}

// Search runs a semantic search.
func (c *ExaClient) Search(ctx context.Context, query string, numResults int) *SearchResponse {
	return c.post(ctx, "/search", exaRequest{
		Query:      query,
		NumResults: numResults,
		Contents:   exaContentsSpec{Text: true},
	}, query)
}

// SearchCompany searches for company overview material.
func (c *ExaClient) SearchCompany(ctx context.Context, companyName string, numResults int) *SearchResponse {
	query := fmt.Sprintf("%s company overview products business model", companyName)
	return c.post(ctx, "/search", exaRequest{
		Query:      query,
		NumResults: numResults,
		Contents:   exaContentsSpec{Text: true},
		Category:   "company",
	}, query)
}

// SearchNews searches recent news about a company.
func (c *ExaClient) SearchNews(ctx context.Context, companyName string, days, numResults int) *SearchResponse {
	query := fmt.Sprintf("%s news announcements developments", companyName)
	start := time.Now().AddDate(0, 0, -days).Format("2006-01-02")
	return c.post(ctx, "/search", exaRequest{
		Query:      query,
		NumResults: numResults,
		Contents:   exaContentsSpec{Text: true},
		Category:   "news",
		StartDate:  start,
	}, query)
}

// FindSimilar finds companies similar to the one at the given URL.
func (c *ExaClient) FindSimilar(ctx context.Context, url string, numResults int) *SearchResponse {
	return c.post(ctx, "/findSimilar", exaRequest{
		URL:        url,
		NumResults: numResults,
		Contents:   exaContentsSpec{Text: true},
	}, url)
}

func (c *ExaClient) post(ctx context.Context, path string, payload exaRequest, query string) *SearchResponse {
	failure := func(err error) *SearchResponse {
		logging.APIWarn("Exa %s failed: %v", path, err)
		return &SearchResponse{Success: false, Query: query, Error: err.Error()}
	}

	if !c.Available() {
		return failure(fmt.Errorf("exa not configured"))
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return failure(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return failure(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	logging.APIDebug("Exa %s: %s", path, query)
	resp, err := c.client.Do(req)
	if err != nil {
		return failure(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return failure(err)
	}
	if resp.StatusCode != http.StatusOK {
		return failure(fmt.Errorf("HTTP %d", resp.StatusCode))
	}

	var parsed exaResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return failure(fmt.Errorf("parse response: %w", err))
	}

	results := make([]SearchResult, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		text := r.Text
		if len(text) > 2000 {
			text = text[:2000]
		}
		results = append(results, SearchResult{
			URL:           r.URL,
			Title:         r.Title,
			Text:          text,
			PublishedDate: r.PublishedDate,
			Score:         r.Score,
		})
	}

	logging.API("Exa %s returned %d results", path, len(results))
	return &SearchResponse{Success: true, Query: query, Results: results}
}
