package skills

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"bizlens/internal/config"
	"bizlens/internal/logging"
	"bizlens/internal/perception"
	"bizlens/internal/types"

	"golang.org/x/sync/errgroup"
)

// maxCompetitorFanout bounds the concurrent per-competitor research calls.
const maxCompetitorFanout = 3

// CompetitorIntelligence profiles the company's competitors: one bounded
// concurrent research call per competitor, joined before the skill returns.
// When no competitor list is configured, similar companies are discovered
// from the target's website.
type CompetitorIntelligence struct {
	deps Deps
}

// Execute profiles each competitor and assembles the combined payload.
func (s *CompetitorIntelligence) Execute(ctx context.Context, task types.Task, taskContext map[string]json.RawMessage, cfg *config.Config) (types.SkillResult, error) {
	competitors := cfg.Competitors
	if len(competitors) == 0 {
		competitors = s.discoverCompetitors(ctx, cfg)
	}
	if len(competitors) == 0 {
		return types.SkillResult{}, fmt.Errorf("%w: no competitors configured or discoverable", types.ErrSkillFailure)
	}
	if len(competitors) > config.MaxCompetitors {
		competitors = competitors[:config.MaxCompetitors]
	}
	logging.Skills("Profiling %d competitors of %s", len(competitors), cfg.Company.Name)

	profiles := make(map[string]json.RawMessage, len(competitors))
	var mu sync.Mutex

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(maxCompetitorFanout)
	for _, name := range competitors {
		name := name
		eg.Go(func() error {
			profile, err := s.profileCompetitor(egCtx, cfg, name)
			if err != nil {
				logging.SkillsWarn("Profiling %s failed: %v", name, err)
				profile = json.RawMessage(fmt.Sprintf(`{"error":%q}`, err.Error()))
			}
			mu.Lock()
			profiles[name] = profile
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return types.SkillResult{}, err
	}

	payload := map[string]any{
		"competitors": profiles,
		"profiled":    len(profiles),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return types.SkillResult{}, err
	}
	return types.SkillResult{Success: true, Data: data}, nil
}

// discoverCompetitors finds similar companies when the user supplied none.
func (s *CompetitorIntelligence) discoverCompetitors(ctx context.Context, cfg *config.Config) []string {
	if !cfg.SourceEnabled(config.ProviderSearch) || s.deps.Search == nil || cfg.Company.Website == "" {
		return nil
	}

	url := cfg.Company.Website
	if !strings.Contains(url, "://") {
		url = "https://" + url
	}
	resp := s.deps.Search.FindSimilar(ctx, url, config.MaxCompetitors)
	if !resp.Success {
		logging.SkillsWarn("Competitor discovery failed: %s", resp.Error)
		return nil
	}

	seen := make(map[string]bool)
	var names []string
	for _, r := range resp.Results {
		name := strings.TrimSpace(strings.Split(r.Title, "|")[0])
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// profileCompetitor builds one competitor profile from research material.
func (s *CompetitorIntelligence) profileCompetitor(ctx context.Context, cfg *config.Config, name string) (json.RawMessage, error) {
	var material strings.Builder

	if cfg.SourceEnabled(config.ProviderSearch) && s.deps.Search != nil {
		resp := s.deps.Search.SearchCompany(ctx, name, 4)
		if resp.Success {
			for _, r := range resp.Results {
				fmt.Fprintf(&material, "SOURCE: %s (%s)\n%s\n---\n", r.Title, r.URL, r.Text)
			}
		}
	}
	if material.Len() == 0 {
		fmt.Fprintf(&material, "No external material available. Use your knowledge of %s.", name)
	}

	if s.deps.LLM == nil {
		return nil, fmt.Errorf("%w: no language model available", types.ErrProvider)
	}

	prompt := fmt.Sprintf(`Profile the competitor %q relative to %s (%s industry).

MATERIAL:
%s

Return ONLY a JSON object:
{
  "overview": "...",
  "products": ["..."],
  "strengths": ["..."],
  "weaknesses": ["..."],
  "positioning_vs_target": "...",
  "estimated_scale": "..."
}`, name, cfg.Company.Name, cfg.Company.Industry, truncateMaterial(material.String(), 8000))

	resp, err := s.deps.LLM.Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	cleaned := perception.CleanJSONResponse(resp)
	var check map[string]any
	if err := json.Unmarshal([]byte(cleaned), &check); err != nil {
		return nil, fmt.Errorf("unparseable profile: %w", err)
	}
	return json.RawMessage(cleaned), nil
}

func truncateMaterial(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
