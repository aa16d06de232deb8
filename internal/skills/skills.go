// Package skills holds the per-skill adapters that produce context-slot
// payloads. Data-gathering skills pull from the external providers and
// reconcile their findings through the truth engine; analytical skills
// reason over the accumulated context with the language model. Every skill
// degrades to a knowledge-base-only language-model call when its providers
// are disabled or unavailable.
package skills

import (
	"context"
	"encoding/json"
	"fmt"

	"bizlens/internal/config"
	"bizlens/internal/executor"
	"bizlens/internal/logging"
	"bizlens/internal/perception"
	"bizlens/internal/providers"
	"bizlens/internal/truth"
	"bizlens/internal/types"
)

// Deps carries the collaborators shared by all skills.
type Deps struct {
	LLM     perception.LLMClient
	Scraper providers.Scraper
	Search  providers.NeuralSearch
	Answers providers.AnswerSearch
	Truth   *truth.Engine
}

// RegisterAll registers every built-in skill on the registry.
func RegisterAll(r *executor.Registry, deps Deps) {
	if deps.Truth == nil {
		deps.Truth = truth.NewEngine(truth.Config{})
	}

	r.MustRegister("company-intelligence", &CompanyIntelligence{deps})
	r.MustRegister("business-model-canvas", newAnalysisSkill(deps, "Business Model Canvas", bmcTemplate,
		"company_intelligence"))
	r.MustRegister("value-chain-mapper", newAnalysisSkill(deps, "Value Chain Analysis", valueChainTemplate,
		"company_intelligence", "business_model_canvas"))
	r.MustRegister("org-structure-analyzer", newAnalysisSkill(deps, "Organizational Structure Analysis", orgStructureTemplate,
		"company_intelligence"))
	r.MustRegister("market-intelligence", &MarketIntelligence{deps})
	r.MustRegister("competitor-intelligence", &CompetitorIntelligence{deps})

	r.MustRegister("swot-analyzer", newAnalysisSkill(deps, "SWOT Analysis", swotTemplate,
		"company_intelligence", "market_intelligence", "competitor_intelligence"))
	r.MustRegister("porters-five-forces", newAnalysisSkill(deps, "Porter's Five Forces", portersTemplate,
		"market_intelligence", "competitor_intelligence"))
	r.MustRegister("pestel-analyzer", newAnalysisSkill(deps, "PESTEL Analysis", pestelTemplate,
		"company_intelligence", "market_intelligence"))
	r.MustRegister("bcg-matrix", newAnalysisSkill(deps, "BCG Matrix", bcgTemplate,
		"company_intelligence", "market_intelligence"))
	r.MustRegister("blue-ocean-strategy", newAnalysisSkill(deps, "Blue Ocean Strategy", blueOceanTemplate,
		"market_intelligence", "competitor_intelligence"))
	r.MustRegister("competitive-strategy", newAnalysisSkill(deps, "Competitive Strategy", competitiveStrategyTemplate,
		"swot", "porters_five_forces", "competitor_intelligence"))
	r.MustRegister("sales-intelligence", newAnalysisSkill(deps, "Sales Intelligence", salesTemplate,
		"company_intelligence", "business_model_canvas", "competitor_intelligence"))
}

// extractFacts asks the model to distill source text into a flat map of
// facts, the shape the truth engine cross-references.
func extractFacts(ctx context.Context, llm perception.LLMClient, companyName, focus, text string) (map[string]any, error) {
	if llm == nil {
		return nil, fmt.Errorf("%w: no language model available", types.ErrProvider)
	}
	if len(text) > 12000 {
		text = text[:12000]
	}

	prompt := fmt.Sprintf(`Extract factual claims about %s from the material below.
Focus: %s

Return ONLY a flat JSON object mapping snake_case fact names to values, e.g.:
{"company_name": "...", "founded": 2010, "headquarters": "...", "products": ["..."], "business_model": "...", "annual_revenue": "..."}

Rules:
- Only include facts actually present in the material.
- Use "unknown" for facts you cannot determine but that matter for the focus.
- No nested prose, no commentary.

MATERIAL:
%s`, companyName, focus, text)

	resp, err := llm.Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var facts map[string]any
	if err := json.Unmarshal([]byte(perception.CleanJSONResponse(resp)), &facts); err != nil {
		return nil, fmt.Errorf("parse extracted facts: %w", err)
	}
	return facts, nil
}

// knowledgeOnly produces a single-source dataset from the model's own
// knowledge. Used when every external provider is disabled; the truth engine
// still records the provenance.
func knowledgeOnly(ctx context.Context, deps Deps, cfg *config.Config, focus string) ([]truth.SourceData, error) {
	logging.SkillsDebug("All providers disabled for %q, using knowledge-base-only path", focus)

	facts, err := extractFacts(ctx, deps.LLM, cfg.Company.Name, focus,
		fmt.Sprintf("No external material available. Use your own knowledge of %s (%s industry, website %s).",
			cfg.Company.Name, cfg.Company.Industry, cfg.Company.Website))
	if err != nil {
		return nil, err
	}

	return []truth.SourceData{{
		URL:              "knowledge_base",
		SourceType:       string(types.SourceTertiary),
		SourceName:       "Model Knowledge Base",
		Data:             facts,
		ReliabilityScore: 0.5,
	}}, nil
}

// datasetResult shapes a verified dataset into a skill result, carrying the
// attributed sources alongside the payload.
func datasetResult(dataset types.VerifiedDataset) (types.SkillResult, error) {
	data, err := json.Marshal(dataset)
	if err != nil {
		return types.SkillResult{}, err
	}

	seen := make(map[string]bool)
	var sources []types.Source
	for _, fact := range dataset.Facts {
		for _, s := range fact.Sources {
			key := s.URL + "|" + s.SourceName
			if seen[key] {
				continue
			}
			seen[key] = true
			sources = append(sources, s)
		}
	}

	return types.SkillResult{
		Success: true,
		Data:    data,
		Sources: sources,
		Metadata: map[string]any{
			"overall_confidence": dataset.OverallConfidence,
			"verified_count":     dataset.VerifiedCount,
			"conflict_count":     dataset.ConflictCount,
		},
	}, nil
}

// contextSection renders the requested slots as prompt material, truncating
// each slot to keep the prompt bounded.
func contextSection(taskContext map[string]json.RawMessage, slots []string) string {
	const perSlotLimit = 4000
	var out string
	for _, slot := range slots {
		payload, ok := taskContext[slot]
		if !ok || len(payload) == 0 {
			continue
		}
		text := string(payload)
		if len(text) > perSlotLimit {
			text = text[:perSlotLimit] + "..."
		}
		out += fmt.Sprintf("\n## %s\n%s\n", slot, text)
	}
	if out == "" {
		return "(no prior context available)"
	}
	return out
}
