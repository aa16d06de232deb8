package state

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"bizlens/internal/types"

	"github.com/google/go-cmp/cmp"
)

func pendingTask(id, skill string, deps ...string) types.Task {
	if deps == nil {
		deps = []string{}
	}
	return types.Task{
		ID:           id,
		Description:  "task " + id,
		Phase:        types.Phase1,
		Skill:        skill,
		Dependencies: deps,
		Status:       types.TaskPending,
	}
}

func TestSetCompanyOnce(t *testing.T) {
	m := NewManager()
	if err := m.SetCompany("Acme", "acme.test", "SaaS"); err != nil {
		t.Fatalf("SetCompany failed: %v", err)
	}
	err := m.SetCompany("Other", "other.test", "Retail")
	if !errors.Is(err, types.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if got := m.Company().Name; got != "Acme" {
		t.Errorf("company overwritten: %s", got)
	}
}

func TestAddTaskRejectsDuplicates(t *testing.T) {
	m := NewManager()
	if err := m.AddTask(pendingTask("t1", "company-intelligence")); err != nil {
		t.Fatalf("AddTask failed: %v", err)
	}
	err := m.AddTask(pendingTask("t1", "market-intelligence"))
	if !errors.Is(err, types.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for duplicate ID, got %v", err)
	}
}

func TestTaskStatusTransitions(t *testing.T) {
	m := NewManager()
	if err := m.AddTask(pendingTask("t1", "company-intelligence")); err != nil {
		t.Fatal(err)
	}

	if err := m.UpdateTaskStatus("t1", types.TaskInProgress, nil, ""); err != nil {
		t.Fatalf("pending -> in_progress failed: %v", err)
	}
	task, _ := m.Task("t1")
	if task.StartedAt == nil {
		t.Fatal("startedAt not stamped")
	}

	if err := m.UpdateTaskStatus("t1", types.TaskCompleted, json.RawMessage(`{"ok":true}`), ""); err != nil {
		t.Fatalf("in_progress -> completed failed: %v", err)
	}
	task, _ = m.Task("t1")
	if task.CompletedAt == nil {
		t.Fatal("completedAt not stamped")
	}
	if task.StartedAt.After(*task.CompletedAt) {
		t.Error("startedAt after completedAt")
	}

	// Terminal states are final.
	err := m.UpdateTaskStatus("t1", types.TaskInProgress, nil, "")
	if !errors.Is(err, types.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState reopening terminal task, got %v", err)
	}
}

func TestPendingTaskMayFailOnCancel(t *testing.T) {
	m := NewManager()
	if err := m.AddTask(pendingTask("t1", "swot-analyzer")); err != nil {
		t.Fatal(err)
	}
	if err := m.UpdateTaskStatus("t1", types.TaskFailed, nil, "cancelled"); err != nil {
		t.Fatalf("pending -> failed should be allowed: %v", err)
	}
	err := m.UpdateTaskStatus("t1", types.TaskCompleted, nil, "")
	if !errors.Is(err, types.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestSlotForSkill(t *testing.T) {
	cases := []struct {
		phase types.Phase
		skill string
		want  string
	}{
		{types.Phase1, "company-intelligence", SlotCompanyIntelligence},
		{types.Phase1, "value-chain-mapper", SlotValueChain},
		{types.Phase1, "org-structure-analyzer", SlotOrgStructure},
		{types.Phase1, "mystery-skill", "mystery-skill"},
		{types.Phase2, "swot-analyzer", SlotSWOT},
		{types.Phase2, "porters-five-forces", SlotPortersFiveForces},
		{types.Phase2, "blue-ocean-strategy", SlotBlueOcean},
		{types.Phase2, "custom-framework", "custom-framework"},
	}
	for _, c := range cases {
		if got := SlotForSkill(c.phase, c.skill); got != c.want {
			t.Errorf("SlotForSkill(%s, %s) = %s, want %s", c.phase, c.skill, got, c.want)
		}
	}
}

func TestStoreResultsAndSnapshots(t *testing.T) {
	m := NewManager()
	m.StorePhase1Result("company-intelligence", json.RawMessage(`{"ceo":"Jane"}`))

	snap := m.Phase1Snapshot()
	if _, ok := snap[SlotCompanyIntelligence]; !ok {
		t.Fatal("slot missing from snapshot")
	}

	// Snapshot is defensive: mutating it does not touch manager state.
	snap["injected"] = json.RawMessage(`{}`)
	if _, ok := m.Phase1Snapshot()["injected"]; ok {
		t.Error("snapshot mutation leaked into manager")
	}

	if !m.HasPhase1Context() {
		t.Error("HasPhase1Context should be true")
	}
}

func TestSummaryCounts(t *testing.T) {
	m := NewManager()
	_ = m.SetCompany("Acme", "acme.test", "SaaS")
	m.MarkStarted()
	for _, id := range []string{"t1", "t2", "t3"} {
		if err := m.AddTask(pendingTask(id, "company-intelligence")); err != nil {
			t.Fatal(err)
		}
	}
	_ = m.UpdateTaskStatus("t1", types.TaskInProgress, nil, "")
	_ = m.UpdateTaskStatus("t1", types.TaskCompleted, nil, "")
	_ = m.UpdateTaskStatus("t2", types.TaskInProgress, nil, "")
	_ = m.UpdateTaskStatus("t2", types.TaskFailed, nil, "boom")

	s := m.Summary()
	if s.Tasks.Total != 3 || s.Tasks.Completed != 1 || s.Tasks.Failed != 1 || s.Tasks.Pending != 1 {
		t.Errorf("unexpected counts: %+v", s.Tasks)
	}
	if s.Tasks.Total != s.Tasks.Completed+s.Tasks.Failed+s.Tasks.Pending {
		t.Error("task counts do not add up")
	}
	if s.StartedAt == "" {
		t.Error("started_at missing")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	m := NewManager()
	_ = m.SetCompany("Acme", "acme.test", "SaaS")
	m.MarkStarted()
	_ = m.AddTask(pendingTask("t1", "company-intelligence"))
	_ = m.AddTask(pendingTask("t2", "market-intelligence", "t1"))
	_ = m.UpdateTaskStatus("t1", types.TaskInProgress, nil, "")
	_ = m.UpdateTaskStatus("t1", types.TaskCompleted, json.RawMessage(`{"data":{"ceo":"Jane"}}`), "")
	m.StorePhase1Result("company-intelligence", json.RawMessage(`{"ceo":"Jane"}`))
	m.MarkPhase1Completed()

	if err := m.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded := NewManager()
	if err := loaded.Load(path); err != nil {
		t.Fatalf("load: %v", err)
	}

	if diff := cmp.Diff(m.Company(), loaded.Company()); diff != "" {
		t.Errorf("company mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(m.Tasks(), loaded.Tasks()); diff != "" {
		t.Errorf("tasks mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(m.Phase1Snapshot(), loaded.Phase1Snapshot()); diff != "" {
		t.Errorf("phase1 context mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveLoadSaveIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.json")
	second := filepath.Join(dir, "second.json")

	m := NewManager()
	_ = m.SetCompany("Acme", "acme.test", "SaaS")
	m.MarkStarted()
	_ = m.AddTask(pendingTask("t1", "company-intelligence"))
	_ = m.UpdateTaskStatus("t1", types.TaskInProgress, nil, "")
	_ = m.UpdateTaskStatus("t1", types.TaskCompleted, nil, "")
	m.StorePhase1Result("company-intelligence", json.RawMessage(`{"a":1}`))

	if err := m.Save(first); err != nil {
		t.Fatal(err)
	}

	loaded := NewManager()
	if err := loaded.Load(first); err != nil {
		t.Fatal(err)
	}
	if err := loaded.Save(second); err != nil {
		t.Fatal(err)
	}

	a, err := readFile(first)
	if err != nil {
		t.Fatal(err)
	}
	b, err := readFile(second)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("save -> load -> save not byte-identical:\n%s\n---\n%s", a, b)
	}
}

func TestLoadResetsInFlightTasks(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	m := NewManager()
	_ = m.SetCompany("Acme", "acme.test", "SaaS")
	_ = m.AddTask(pendingTask("t1", "company-intelligence"))
	_ = m.UpdateTaskStatus("t1", types.TaskInProgress, nil, "")
	if err := m.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded := NewManager()
	if err := loaded.Load(path); err != nil {
		t.Fatal(err)
	}
	task, ok := loaded.Task("t1")
	if !ok {
		t.Fatal("task missing after load")
	}
	if task.Status != types.TaskPending {
		t.Errorf("in-flight task restored as %s, want pending", task.Status)
	}
	if task.StartedAt != nil {
		t.Error("startedAt should be cleared on restore")
	}
}

func TestLoadIgnoresUnknownFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	payload := `{"company_name":"Acme","future_field":42,"tasks":[]}`
	if err := writeFile(path, payload); err != nil {
		t.Fatal(err)
	}

	m := NewManager()
	if err := m.Load(path); err != nil {
		t.Fatalf("load with unknown fields failed: %v", err)
	}
	if m.Company().Name != "Acme" {
		t.Error("company not loaded")
	}
}

func readFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	return string(data), err
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}
