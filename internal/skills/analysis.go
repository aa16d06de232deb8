package skills

import (
	"context"
	"encoding/json"
	"fmt"

	"bizlens/internal/config"
	"bizlens/internal/logging"
	"bizlens/internal/perception"
	"bizlens/internal/types"
)

// analysisSkill applies one analytical framework over the accumulated
// context with the language model. The template fixes the output schema so
// downstream consumers can parse the slot.
type analysisSkill struct {
	deps     Deps
	title    string
	template string
	slots    []string
}

func newAnalysisSkill(deps Deps, title, template string, slots ...string) *analysisSkill {
	return &analysisSkill{deps: deps, title: title, template: template, slots: slots}
}

// Execute runs the framework analysis.
func (s *analysisSkill) Execute(ctx context.Context, task types.Task, taskContext map[string]json.RawMessage, cfg *config.Config) (types.SkillResult, error) {
	if s.deps.LLM == nil {
		return types.SkillResult{}, fmt.Errorf("%w: %s requires a language model", types.ErrSkillFailure, s.title)
	}
	logging.Skills("Running %s for %s", s.title, cfg.Company.Name)

	goal := cfg.UserGoal
	if goal == "" {
		goal = "produce a rigorous, decision-ready analysis"
	}

	prompt := fmt.Sprintf(`You are conducting a %s for a business context analysis.

Company: %s
Website: %s
Industry: %s
User Goal: %s

Task: %s

Relevant findings from earlier analysis:
%s

%s

Ground every point in the findings above where possible; reason from industry
knowledge where the findings are silent, and say so. Return ONLY the JSON object.`,
		s.title, cfg.Company.Name, cfg.Company.Website, cfg.Company.Industry, goal,
		task.Description, contextSection(taskContext, s.slots), s.template)

	resp, err := s.deps.LLM.Complete(ctx, prompt)
	if err != nil {
		return types.SkillResult{}, fmt.Errorf("%w: %s: %v", types.ErrSkillFailure, s.title, err)
	}

	cleaned := perception.CleanJSONResponse(resp)
	var payload map[string]any
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return types.SkillResult{}, fmt.Errorf("%w: %s returned unparseable output: %v", types.ErrSkillFailure, s.title, err)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return types.SkillResult{}, err
	}
	return types.SkillResult{Success: true, Data: data}, nil
}

const bmcTemplate = `Return a JSON object with the nine Business Model Canvas blocks:
{
  "value_proposition": "...",
  "customer_segments": ["..."],
  "channels": ["..."],
  "customer_relationships": "...",
  "revenue_streams": ["..."],
  "key_resources": ["..."],
  "key_activities": ["..."],
  "key_partnerships": ["..."],
  "cost_structure": ["..."]
}`

const valueChainTemplate = `Return a JSON object mapping the value chain:
{
  "primary_activities": {
    "inbound_logistics": "...",
    "operations": "...",
    "outbound_logistics": "...",
    "marketing_sales": "...",
    "service": "..."
  },
  "support_activities": {
    "infrastructure": "...",
    "human_resources": "...",
    "technology": "...",
    "procurement": "..."
  },
  "differentiating_links": ["..."]
}`

const orgStructureTemplate = `Return a JSON object describing the organization:
{
  "leadership": [{"name": "...", "role": "..."}],
  "structure_type": "functional/divisional/matrix/flat",
  "key_teams": ["..."],
  "culture_signals": ["..."],
  "headcount_estimate": "..."
}`

const swotTemplate = `Return a JSON object with the SWOT quadrants:
{
  "strengths": [{"point": "...", "evidence": "..."}],
  "weaknesses": [{"point": "...", "evidence": "..."}],
  "opportunities": [{"point": "...", "evidence": "..."}],
  "threats": [{"point": "...", "evidence": "..."}],
  "strategic_implications": ["..."]
}`

const portersTemplate = `Return a JSON object rating each of the five forces:
{
  "competitive_rivalry": {"intensity": "low/medium/high", "analysis": "..."},
  "supplier_power": {"intensity": "low/medium/high", "analysis": "..."},
  "buyer_power": {"intensity": "low/medium/high", "analysis": "..."},
  "threat_of_substitution": {"intensity": "low/medium/high", "analysis": "..."},
  "threat_of_new_entry": {"intensity": "low/medium/high", "analysis": "..."},
  "overall_attractiveness": "..."
}`

const pestelTemplate = `Return a JSON object covering each PESTEL dimension:
{
  "political": ["..."],
  "economic": ["..."],
  "social": ["..."],
  "technological": ["..."],
  "environmental": ["..."],
  "legal": ["..."],
  "key_uncertainties": ["..."]
}`

const bcgTemplate = `Return a JSON object placing product lines on the BCG matrix:
{
  "stars": [{"product": "...", "rationale": "..."}],
  "cash_cows": [{"product": "...", "rationale": "..."}],
  "question_marks": [{"product": "...", "rationale": "..."}],
  "dogs": [{"product": "...", "rationale": "..."}],
  "portfolio_advice": "..."
}`

const blueOceanTemplate = `Return a JSON object with the four-actions framework:
{
  "eliminate": ["..."],
  "reduce": ["..."],
  "raise": ["..."],
  "create": ["..."],
  "value_innovation": "...",
  "noncustomer_tiers": ["..."]
}`

const competitiveStrategyTemplate = `Return a JSON object with the competitive positioning:
{
  "generic_strategy": "cost_leadership/differentiation/focus",
  "positioning": "...",
  "differentiators": ["..."],
  "vulnerabilities": ["..."],
  "strategic_moves": ["..."]
}`

const salesTemplate = `Return a JSON object with actionable sales intelligence:
{
  "ideal_customer_profile": {"segment": "...", "attributes": ["..."]},
  "buying_triggers": ["..."],
  "common_objections": [{"objection": "...", "response": "..."}],
  "competitive_talk_tracks": ["..."],
  "land_and_expand_paths": ["..."]
}`
