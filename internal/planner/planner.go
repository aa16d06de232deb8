// Package planner decomposes a run configuration into ordered task lists,
// one per phase. The primary path asks the language model for a structured
// decomposition; any failure falls back to a deterministic plan, so planning
// never blocks a run.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"bizlens/internal/config"
	"bizlens/internal/logging"
	"bizlens/internal/perception"
	"bizlens/internal/types"
)

// SkillChecker reports whether a skill identifier is registered. Satisfied by
// the executor registry.
type SkillChecker interface {
	Has(skill string) bool
}

// Planner produces task plans for both phases.
type Planner struct {
	llm    perception.LLMClient
	skills SkillChecker
}

// New creates a planner. llm may be nil, in which case only the
// deterministic fallback plans are produced.
func New(llm perception.LLMClient, skills SkillChecker) *Planner {
	return &Planner{llm: llm, skills: skills}
}

// rawTask is the shape the model is asked to emit.
type rawTask struct {
	ID           string   `json:"id"`
	Description  string   `json:"description"`
	Skill        string   `json:"skill"`
	Dependencies []string `json:"dependencies"`
}

// PlanPhase1 plans the foundation-building tasks.
func (p *Planner) PlanPhase1(ctx context.Context, cfg *config.Config) []types.Task {
	if p.llm == nil {
		return p.defaultPhase1Tasks()
	}

	prompt := p.phase1Prompt(cfg)
	tasks, err := p.proposePlan(ctx, prompt, types.Phase1)
	if err != nil {
		logging.PlannerWarn("Phase 1 planning failed (%v), using fallback plan", err)
		return p.defaultPhase1Tasks()
	}
	logging.Planner("Planned %d tasks for Phase 1", len(tasks))
	return tasks
}

// PlanPhase2 plans the strategy-analysis tasks from the Phase 1 snapshot.
func (p *Planner) PlanPhase2(ctx context.Context, cfg *config.Config, phase1 map[string]json.RawMessage) []types.Task {
	if p.llm == nil {
		return p.defaultPhase2Tasks(cfg.Frameworks)
	}

	prompt := p.phase2Prompt(cfg, phase1)
	tasks, err := p.proposePlan(ctx, prompt, types.Phase2)
	if err != nil {
		logging.PlannerWarn("Phase 2 planning failed (%v), using fallback plan", err)
		return p.defaultPhase2Tasks(cfg.Frameworks)
	}
	logging.Planner("Planned %d tasks for Phase 2", len(tasks))
	return tasks
}

// proposePlan runs the LLM path and validates the result against the
// registry and dependency rules.
func (p *Planner) proposePlan(ctx context.Context, prompt string, phase types.Phase) ([]types.Task, error) {
	resp, err := p.llm.Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var raw []rawTask
	if err := json.Unmarshal([]byte(perception.CleanJSONResponse(resp)), &raw); err != nil {
		return nil, fmt.Errorf("parse plan JSON: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty plan")
	}

	tasks := make([]types.Task, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, rt := range raw {
		if rt.ID == "" || rt.Skill == "" {
			return nil, fmt.Errorf("task missing id or skill")
		}
		if seen[rt.ID] {
			return nil, fmt.Errorf("duplicate task id %q", rt.ID)
		}
		if p.skills != nil && !p.skills.Has(rt.Skill) {
			return nil, fmt.Errorf("unknown skill %q", rt.Skill)
		}
		for _, dep := range rt.Dependencies {
			if !seen[dep] {
				return nil, fmt.Errorf("task %q depends on unknown or later task %q", rt.ID, dep)
			}
		}
		seen[rt.ID] = true
		deps := rt.Dependencies
		if deps == nil {
			deps = []string{}
		}
		tasks = append(tasks, types.Task{
			ID:           rt.ID,
			Description:  rt.Description,
			Phase:        phase,
			Skill:        rt.Skill,
			Dependencies: deps,
			Status:       types.TaskPending,
		})
	}
	return tasks, nil
}

func (p *Planner) phase1Prompt(cfg *config.Config) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, `You are planning Phase 1 (Foundation Building) for a business context analysis.

Target Company: %s
Website: %s
Industry: %s
`, cfg.Company.Name, cfg.Company.Website, cfg.Company.Industry)

	if cfg.UserGoal != "" {
		fmt.Fprintf(&sb, "User Goal: %s\n", cfg.UserGoal)
	}
	if len(cfg.Competitors) > 0 {
		fmt.Fprintf(&sb, "Known Competitors: %s\n", strings.Join(cfg.Competitors, ", "))
	}

	sb.WriteString(`
Phase 1 gathers foundational business intelligence across these areas:
1. Company Intelligence - basic company facts, products, business model
2. Business Model Canvas - value proposition, customers, channels
3. Value Chain Analysis - activities from suppliers to customers
4. Organizational Structure - leadership, teams, culture
5. Market Intelligence - market size, trends, opportunities
6. Competitor Intelligence - profiles of key competitors

Available skills: company-intelligence, business-model-canvas, value-chain-mapper, org-structure-analyzer, market-intelligence, competitor-intelligence

Create a task list for Phase 1. Return ONLY a JSON array of tasks:
[
  {"id": "phase1_task_1", "description": "Gather basic company intelligence from website", "skill": "company-intelligence", "dependencies": []},
  ...
]

Rules:
- Task IDs follow the pattern phase1_task_<n> and must be unique.
- Dependencies may only reference earlier tasks in this list.
- Aim for 5-8 tasks total. Be specific about what each task should accomplish.`)
	return sb.String()
}

func (p *Planner) phase2Prompt(cfg *config.Config, phase1 map[string]json.RawMessage) string {
	frameworks := make([]string, 0, len(cfg.Frameworks))
	skills := make([]string, 0, len(cfg.Frameworks))
	for _, f := range cfg.Frameworks {
		frameworks = append(frameworks, string(f))
		skills = append(skills, SkillForFramework(f))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, `You are planning Phase 2 (Strategy Analysis) for a business context analysis.

Target Company: %s
Industry: %s

Phase 1 Summary:
%s

Strategic Frameworks to Apply: %s
Available skills: %s
`, cfg.Company.Name, cfg.Company.Industry, summarizePhase1(phase1), strings.Join(frameworks, ", "), strings.Join(skills, ", "))

	sb.WriteString(`
Create a task list for Phase 2, one or two tasks per requested framework.
All Phase 2 tasks implicitly depend on Phase 1 completion; do not reference
Phase 1 task IDs.

Return ONLY a JSON array of tasks:
[
  {"id": "phase2_task_1", "description": "Conduct SWOT analysis based on Phase 1 findings", "skill": "swot-analyzer", "dependencies": []},
  ...
]`)
	return sb.String()
}

// summarizePhase1 renders a short per-slot summary for planning context.
func summarizePhase1(phase1 map[string]json.RawMessage) string {
	if len(phase1) == 0 {
		return "Phase 1 context available"
	}
	slots := make([]string, 0, len(phase1))
	for slot := range phase1 {
		slots = append(slots, slot)
	}
	sort.Strings(slots)

	var lines []string
	for _, slot := range slots {
		var m map[string]any
		if err := json.Unmarshal(phase1[slot], &m); err == nil && len(m) > 0 {
			lines = append(lines, fmt.Sprintf("- %s: %d insights gathered", slot, len(m)))
		} else if len(phase1[slot]) > 0 {
			lines = append(lines, fmt.Sprintf("- %s: data gathered", slot))
		}
	}
	if len(lines) == 0 {
		return "Phase 1 context available"
	}
	return strings.Join(lines, "\n")
}

// defaultPhase1Tasks is the deterministic Phase 1 plan used whenever the
// model path fails.
func (p *Planner) defaultPhase1Tasks() []types.Task {
	return []types.Task{
		{
			ID:           "phase1_task_1",
			Description:  "Gather company intelligence from website and public sources",
			Phase:        types.Phase1,
			Skill:        "company-intelligence",
			Dependencies: []string{},
			Status:       types.TaskPending,
		},
		{
			ID:           "phase1_task_2",
			Description:  "Analyze business model using Business Model Canvas framework",
			Phase:        types.Phase1,
			Skill:        "business-model-canvas",
			Dependencies: []string{"phase1_task_1"},
			Status:       types.TaskPending,
		},
		{
			ID:           "phase1_task_3",
			Description:  "Map company value chain from suppliers to customers",
			Phase:        types.Phase1,
			Skill:        "value-chain-mapper",
			Dependencies: []string{"phase1_task_1"},
			Status:       types.TaskPending,
		},
		{
			ID:           "phase1_task_4",
			Description:  "Research market landscape and competitive dynamics",
			Phase:        types.Phase1,
			Skill:        "market-intelligence",
			Dependencies: []string{"phase1_task_1"},
			Status:       types.TaskPending,
		},
		{
			ID:           "phase1_task_5",
			Description:  "Profile key competitors and their strategies",
			Phase:        types.Phase1,
			Skill:        "competitor-intelligence",
			Dependencies: []string{"phase1_task_4"},
			Status:       types.TaskPending,
		},
	}
}

// defaultPhase2Tasks builds one task per selected framework with no
// intra-phase dependencies.
func (p *Planner) defaultPhase2Tasks(frameworks []types.Framework) []types.Task {
	tasks := make([]types.Task, 0, len(frameworks))
	for i, framework := range frameworks {
		tasks = append(tasks, types.Task{
			ID:           fmt.Sprintf("phase2_task_%d", i+1),
			Description:  fmt.Sprintf("Apply %s to generate strategic insights", framework),
			Phase:        types.Phase2,
			Skill:        SkillForFramework(framework),
			Dependencies: []string{},
			Status:       types.TaskPending,
		})
	}
	return tasks
}

// frameworkSkills is the fixed framework-to-skill mapping.
var frameworkSkills = map[types.Framework]string{
	types.FrameworkSWOT:                "swot-analyzer",
	types.FrameworkPortersFiveForces:   "porters-five-forces",
	types.FrameworkPESTEL:              "pestel-analyzer",
	types.FrameworkBCGMatrix:           "bcg-matrix",
	types.FrameworkBlueOcean:           "blue-ocean-strategy",
	types.FrameworkCompetitiveStrategy: "competitive-strategy",
	types.FrameworkSalesIntelligence:   "sales-intelligence",
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// SkillForFramework resolves a framework to its skill identifier, slugifying
// unmapped framework names.
func SkillForFramework(f types.Framework) string {
	if skill, ok := frameworkSkills[f]; ok {
		return skill
	}
	slug := slugPattern.ReplaceAllString(strings.ToLower(string(f)), "-")
	return strings.Trim(slug, "-")
}
