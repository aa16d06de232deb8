package planner

import (
	"context"
	"errors"
	"testing"

	"bizlens/internal/config"
	"bizlens/internal/types"
)

// mockLLM implements perception.LLMClient for testing.
type mockLLM struct {
	completeFunc func(ctx context.Context, prompt string) (string, error)
}

func (m *mockLLM) Complete(ctx context.Context, prompt string) (string, error) {
	if m.completeFunc != nil {
		return m.completeFunc(ctx, prompt)
	}
	return "", nil
}

func (m *mockLLM) CompleteWithOptions(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	return m.Complete(ctx, prompt)
}

type skillSet map[string]bool

func (s skillSet) Has(skill string) bool { return s[skill] }

func allSkills() skillSet {
	return skillSet{
		"company-intelligence":    true,
		"business-model-canvas":   true,
		"value-chain-mapper":      true,
		"org-structure-analyzer":  true,
		"market-intelligence":     true,
		"competitor-intelligence": true,
		"swot-analyzer":           true,
		"porters-five-forces":     true,
		"pestel-analyzer":         true,
	}
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Company = types.CompanyContext{Name: "Acme", Website: "acme.test", Industry: "SaaS"}
	cfg.Frameworks = []types.Framework{types.FrameworkSWOT, types.FrameworkPortersFiveForces}
	return &cfg
}

func TestPlanPhase1FromLLM(t *testing.T) {
	llm := &mockLLM{completeFunc: func(ctx context.Context, prompt string) (string, error) {
		return "```json\n[\n" +
			`{"id":"phase1_task_1","description":"Gather intel","skill":"company-intelligence","dependencies":[]},` + "\n" +
			`{"id":"phase1_task_2","description":"Map market","skill":"market-intelligence","dependencies":["phase1_task_1"]}` +
			"\n]\n```", nil
	}}

	p := New(llm, allSkills())
	tasks := p.PlanPhase1(context.Background(), testConfig())

	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
	if tasks[0].Phase != types.Phase1 {
		t.Errorf("phase not set: %s", tasks[0].Phase)
	}
	if tasks[1].Dependencies[0] != "phase1_task_1" {
		t.Errorf("dependency lost: %v", tasks[1].Dependencies)
	}
}

func TestPlanPhase1FallbackOnLLMError(t *testing.T) {
	llm := &mockLLM{completeFunc: func(ctx context.Context, prompt string) (string, error) {
		return "", errors.New("network down")
	}}

	p := New(llm, allSkills())
	tasks := p.PlanPhase1(context.Background(), testConfig())

	wantSkills := []string{
		"company-intelligence",
		"business-model-canvas",
		"value-chain-mapper",
		"market-intelligence",
		"competitor-intelligence",
	}
	if len(tasks) != len(wantSkills) {
		t.Fatalf("expected %d fallback tasks, got %d", len(wantSkills), len(tasks))
	}
	for i, skill := range wantSkills {
		if tasks[i].Skill != skill {
			t.Errorf("task %d skill = %s, want %s", i, tasks[i].Skill, skill)
		}
	}
	// competitor-intelligence depends on market-intelligence.
	if got := tasks[4].Dependencies; len(got) != 1 || got[0] != "phase1_task_4" {
		t.Errorf("unexpected deps for competitor task: %v", got)
	}
}

func TestPlanPhase1FallbackOnMalformedJSON(t *testing.T) {
	llm := &mockLLM{completeFunc: func(ctx context.Context, prompt string) (string, error) {
		return "here is your plan: do everything", nil
	}}
	p := New(llm, allSkills())
	tasks := p.PlanPhase1(context.Background(), testConfig())
	if len(tasks) != 5 {
		t.Fatalf("expected fallback plan, got %d tasks", len(tasks))
	}
}

func TestPlanPhase1FallbackOnUnknownSkill(t *testing.T) {
	llm := &mockLLM{completeFunc: func(ctx context.Context, prompt string) (string, error) {
		return `[{"id":"phase1_task_1","description":"x","skill":"made-up-skill","dependencies":[]}]`, nil
	}}
	p := New(llm, allSkills())
	tasks := p.PlanPhase1(context.Background(), testConfig())
	if len(tasks) != 5 {
		t.Fatal("unknown skill should reject the whole plan")
	}
}

func TestPlanPhase1FallbackOnForwardDependency(t *testing.T) {
	llm := &mockLLM{completeFunc: func(ctx context.Context, prompt string) (string, error) {
		return `[{"id":"phase1_task_1","description":"x","skill":"company-intelligence","dependencies":["phase1_task_2"]},` +
			`{"id":"phase1_task_2","description":"y","skill":"market-intelligence","dependencies":[]}]`, nil
	}}
	p := New(llm, allSkills())
	tasks := p.PlanPhase1(context.Background(), testConfig())
	if len(tasks) != 5 {
		t.Fatal("forward dependency should reject the whole plan")
	}
}

func TestPlanPhase1FallbackOnDuplicateID(t *testing.T) {
	llm := &mockLLM{completeFunc: func(ctx context.Context, prompt string) (string, error) {
		return `[{"id":"phase1_task_1","description":"x","skill":"company-intelligence","dependencies":[]},` +
			`{"id":"phase1_task_1","description":"y","skill":"market-intelligence","dependencies":[]}]`, nil
	}}
	p := New(llm, allSkills())
	if got := len(p.PlanPhase1(context.Background(), testConfig())); got != 5 {
		t.Fatalf("duplicate ID should reject the whole plan, got %d tasks", got)
	}
}

func TestPlanPhase2Fallback(t *testing.T) {
	p := New(nil, allSkills())
	tasks := p.PlanPhase2(context.Background(), testConfig(), nil)

	if len(tasks) != 2 {
		t.Fatalf("expected one task per framework, got %d", len(tasks))
	}
	if tasks[0].Skill != "swot-analyzer" || tasks[1].Skill != "porters-five-forces" {
		t.Errorf("unexpected skills: %s, %s", tasks[0].Skill, tasks[1].Skill)
	}
	for _, task := range tasks {
		if task.Phase != types.Phase2 {
			t.Errorf("task %s phase = %s", task.ID, task.Phase)
		}
		if len(task.Dependencies) != 0 {
			t.Errorf("fallback Phase 2 tasks must have no intra-phase deps")
		}
	}
}

func TestSkillForFramework(t *testing.T) {
	cases := map[types.Framework]string{
		types.FrameworkSWOT:              "swot-analyzer",
		types.FrameworkPortersFiveForces: "porters-five-forces",
		types.FrameworkBlueOcean:         "blue-ocean-strategy",
		types.Framework("Ansoff Matrix"): "ansoff-matrix",
	}
	for framework, want := range cases {
		if got := SkillForFramework(framework); got != want {
			t.Errorf("SkillForFramework(%s) = %s, want %s", framework, got, want)
		}
	}
}
