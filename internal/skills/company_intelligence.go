package skills

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"bizlens/internal/config"
	"bizlens/internal/logging"
	"bizlens/internal/truth"
	"bizlens/internal/types"
)

// CompanyIntelligence is the reference multi-source skill: it gathers
// company facts from the website scrape, neural research and verified-answer
// search, then cross-references them through the truth engine so the payload
// carries confidence scores and full attribution.
type CompanyIntelligence struct {
	deps Deps
}

// Execute gathers and verifies company-level intelligence.
func (s *CompanyIntelligence) Execute(ctx context.Context, task types.Task, taskContext map[string]json.RawMessage, cfg *config.Config) (types.SkillResult, error) {
	logging.Skills("Company intelligence (multi-source) for %s", cfg.Company.Name)

	var sourcesData []truth.SourceData

	// Source 1: company website (primary).
	if cfg.SourceEnabled(config.ProviderScrape) && s.deps.Scraper != nil && cfg.Company.Website != "" {
		if sd := s.scrapeWebsite(ctx, cfg); sd != nil {
			sourcesData = append(sourcesData, *sd)
		}
	}

	// Source 2: neural research (secondary).
	if cfg.SourceEnabled(config.ProviderSearch) && s.deps.Search != nil {
		if sd := s.neuralResearch(ctx, cfg); sd != nil {
			sourcesData = append(sourcesData, *sd)
		}
	}

	// Source 3: verified-answer search (verification).
	if cfg.SourceEnabled(config.ProviderAnswers) && s.deps.Answers != nil {
		if sd := s.verifiedAnswers(ctx, cfg); sd != nil {
			sourcesData = append(sourcesData, *sd)
		}
	}

	if len(sourcesData) == 0 {
		kb, err := knowledgeOnly(ctx, s.deps, cfg, "company facts, products, business model, leadership")
		if err != nil {
			return types.SkillResult{}, fmt.Errorf("%w: company intelligence: %v", types.ErrSkillFailure, err)
		}
		sourcesData = kb
	}

	dataset := s.deps.Truth.CrossReference(sourcesData, cfg.Company.Name, "company")
	return datasetResult(dataset)
}

func (s *CompanyIntelligence) scrapeWebsite(ctx context.Context, cfg *config.Config) *truth.SourceData {
	url := cfg.Company.Website
	if !strings.Contains(url, "://") {
		url = "https://" + url
	}

	scraped := s.deps.Scraper.Scrape(ctx, url, []string{"markdown"})
	if !scraped.Success {
		logging.SkillsWarn("Website scrape failed: %s", scraped.Error)
		return nil
	}

	facts, err := extractFacts(ctx, s.deps.LLM, cfg.Company.Name,
		"company facts, products, business model, customers", scraped.Content)
	if err != nil {
		logging.SkillsWarn("Website analysis failed: %v", err)
		return nil
	}

	return &truth.SourceData{
		URL:              url,
		SourceType:       string(types.SourcePrimary),
		SourceName:       cfg.Company.Website,
		Data:             facts,
		ReliabilityScore: 1.0,
	}
}

func (s *CompanyIntelligence) neuralResearch(ctx context.Context, cfg *config.Config) *truth.SourceData {
	search := s.deps.Search.SearchCompany(ctx, cfg.Company.Name, 8)
	if !search.Success || len(search.Results) == 0 {
		logging.SkillsWarn("Neural company research failed: %s", search.Error)
		return nil
	}

	var material strings.Builder
	for _, r := range search.Results {
		fmt.Fprintf(&material, "SOURCE: %s (%s)\n%s\n---\n", r.Title, r.URL, r.Text)
	}

	facts, err := extractFacts(ctx, s.deps.LLM, cfg.Company.Name,
		"company facts, funding, scale, market position", material.String())
	if err != nil {
		logging.SkillsWarn("Neural research analysis failed: %v", err)
		return nil
	}

	return &truth.SourceData{
		URL:              "https://exa.ai",
		SourceType:       string(types.SourceSecondary),
		SourceName:       "Neural Deep Research",
		Data:             facts,
		ReliabilityScore: 0.85,
	}
}

func (s *CompanyIntelligence) verifiedAnswers(ctx context.Context, cfg *config.Config) *truth.SourceData {
	query := fmt.Sprintf("What are the key verified facts about %s (%s industry)? Include founding year, headquarters, leadership, revenue, employee count and main products.",
		cfg.Company.Name, cfg.Company.Industry)

	answer := s.deps.Answers.Query(ctx, query, "month", 5)
	if !answer.Success || answer.Answer == "" {
		logging.SkillsWarn("Verified-answer search failed: %s", answer.Error)
		return nil
	}

	facts, err := extractFacts(ctx, s.deps.LLM, cfg.Company.Name,
		"verified company facts", answer.Answer)
	if err != nil {
		logging.SkillsWarn("Verified-answer analysis failed: %v", err)
		return nil
	}

	url := "https://perplexity.ai"
	if len(answer.Sources) > 0 {
		url = answer.Sources[0].URL
	}
	return &truth.SourceData{
		URL:              url,
		SourceType:       string(types.SourceVerification),
		SourceName:       "Verified Answer Search",
		Data:             facts,
		ReliabilityScore: 0.9,
	}
}
