package skills

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"bizlens/internal/config"
	"bizlens/internal/logging"
	"bizlens/internal/providers"
	"bizlens/internal/truth"
	"bizlens/internal/types"

	"golang.org/x/sync/errgroup"
)

// MarketIntelligence researches the market landscape: size, growth, trends
// and dynamics. Search queries fan out concurrently with a small bound and
// join before the findings are cross-referenced.
type MarketIntelligence struct {
	deps Deps
}

// Execute gathers and verifies market-level intelligence.
func (s *MarketIntelligence) Execute(ctx context.Context, task types.Task, taskContext map[string]json.RawMessage, cfg *config.Config) (types.SkillResult, error) {
	logging.Skills("Market intelligence for %s (%s)", cfg.Company.Name, cfg.Company.Industry)

	var sourcesData []truth.SourceData

	if cfg.SourceEnabled(config.ProviderSearch) && s.deps.Search != nil {
		if sd := s.searchSweep(ctx, cfg); sd != nil {
			sourcesData = append(sourcesData, *sd)
		}
	}

	if cfg.SourceEnabled(config.ProviderAnswers) && s.deps.Answers != nil {
		if sd := s.marketAnswers(ctx, cfg); sd != nil {
			sourcesData = append(sourcesData, *sd)
		}
	}

	if len(sourcesData) == 0 {
		kb, err := knowledgeOnly(ctx, s.deps, cfg, "market size, growth rate, trends, key players, dynamics")
		if err != nil {
			return types.SkillResult{}, fmt.Errorf("%w: market intelligence: %v", types.ErrSkillFailure, err)
		}
		sourcesData = kb
	}

	dataset := s.deps.Truth.CrossReference(sourcesData, cfg.Company.Industry+" market", "market")
	return datasetResult(dataset)
}

// searchSweep runs the market queries in parallel and merges the hits into
// one secondary source.
func (s *MarketIntelligence) searchSweep(ctx context.Context, cfg *config.Config) *truth.SourceData {
	queries := []string{
		fmt.Sprintf("%s market size growth rate forecast", cfg.Company.Industry),
		fmt.Sprintf("%s industry trends %s", cfg.Company.Industry, "outlook"),
		fmt.Sprintf("%s competitive landscape key players", cfg.Company.Industry),
	}

	var mu sync.Mutex
	var hits []providers.SearchResult

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(3)
	for _, query := range queries {
		query := query
		eg.Go(func() error {
			resp := s.deps.Search.Search(egCtx, query, 5)
			if !resp.Success {
				logging.SkillsWarn("Market search %q failed: %s", query, resp.Error)
				return nil
			}
			mu.Lock()
			hits = append(hits, resp.Results...)
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()

	if len(hits) == 0 {
		return nil
	}

	var material strings.Builder
	for _, r := range hits {
		fmt.Fprintf(&material, "SOURCE: %s (%s)\n%s\n---\n", r.Title, r.URL, r.Text)
	}

	facts, err := extractFacts(ctx, s.deps.LLM, cfg.Company.Industry+" market",
		"market size, growth rate, segments, trends, key players", material.String())
	if err != nil {
		logging.SkillsWarn("Market research analysis failed: %v", err)
		return nil
	}

	return &truth.SourceData{
		URL:              "https://exa.ai",
		SourceType:       string(types.SourceSecondary),
		SourceName:       "Neural Market Research",
		Data:             facts,
		ReliabilityScore: 0.85,
	}
}

func (s *MarketIntelligence) marketAnswers(ctx context.Context, cfg *config.Config) *truth.SourceData {
	query := fmt.Sprintf("What is the current size, growth rate and outlook of the %s market, and who are the leading players?",
		cfg.Company.Industry)

	answer := s.deps.Answers.Query(ctx, query, "month", 5)
	if !answer.Success || answer.Answer == "" {
		logging.SkillsWarn("Market answer search failed: %s", answer.Error)
		return nil
	}

	facts, err := extractFacts(ctx, s.deps.LLM, cfg.Company.Industry+" market",
		"verified market figures and leaders", answer.Answer)
	if err != nil {
		logging.SkillsWarn("Market answer analysis failed: %v", err)
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
