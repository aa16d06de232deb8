package report

import (
	"encoding/json"
	"strings"
	"testing"

	"bizlens/internal/types"
)

func TestRender(t *testing.T) {
	env := types.ResultEnvelope{
		Company: "Acme",
		Phase1: map[string]json.RawMessage{
			"company_intelligence": json.RawMessage(`{"ceo":"Jane Doe","products":["widgets","gears"]}`),
		},
		Phase2: map[string]json.RawMessage{
			"swot": json.RawMessage(`{"strengths":[{"point":"brand"}]}`),
		},
		Summary: types.Summary{
			Company:      "Acme",
			CurrentPhase: "phase2",
			Tasks:        types.TaskCounts{Total: 2, Completed: 2},
		},
		AnalysisType: "full",
	}

	md := Render(env)

	for _, want := range []string{
		"# Business Context Analysis: Acme",
		"## Phase 1 — Foundation",
		"### Company Intelligence",
		"**Ceo:** Jane Doe",
		"- widgets",
		"## Phase 2 — Strategic Frameworks",
		"### SWOT Analysis",
		"2 total, 2 completed",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("rendered report missing %q", want)
		}
	}
}

func TestRenderErrorEnvelope(t *testing.T) {
	env := types.ResultEnvelope{
		Company:      "Acme",
		AnalysisType: "frameworks",
		Error:        "precondition not met: business overview required",
	}
	md := Render(env)
	if !strings.Contains(md, "Run error") {
		t.Error("error banner missing")
	}
}

func TestRenderSourceAppendix(t *testing.T) {
	dataset := types.VerifiedDataset{
		EntityName: "Acme",
		Facts: []types.VerifiedFact{{
			Claim:   "revenue",
			Value:   json.RawMessage(`"$100M"`),
			Sources: []types.Source{{URL: "https://acme.test", SourceName: "acme.test"}},
		}},
	}
	raw, _ := json.Marshal(dataset)

	env := types.ResultEnvelope{
		Company: "Acme",
		Phase1:  map[string]json.RawMessage{"company_intelligence": raw},
	}
	md := Render(env)
	if !strings.Contains(md, "## Sources") || !strings.Contains(md, "https://acme.test") {
		t.Error("source appendix missing")
	}
}
