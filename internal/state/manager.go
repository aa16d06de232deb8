// Package state is the authoritative store of run state: company context,
// phase result buckets, the task registry and run timestamps. All mutation
// goes through the manager's operations; readers get defensive copies.
package state

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"bizlens/internal/logging"
	"bizlens/internal/types"
)

// Phase 1 context slots.
const (
	SlotCompanyIntelligence    = "company_intelligence"
	SlotBusinessModelCanvas    = "business_model_canvas"
	SlotValueChain             = "value_chain"
	SlotOrgStructure           = "org_structure"
	SlotMarketIntelligence     = "market_intelligence"
	SlotCompetitorIntelligence = "competitor_intelligence"
)

// Phase 2 context slots.
const (
	SlotSWOT                = "swot"
	SlotPortersFiveForces   = "porters_five_forces"
	SlotPESTEL              = "pestel"
	SlotBCGMatrix           = "bcg_matrix"
	SlotBlueOcean           = "blue_ocean"
	SlotCompetitiveStrategy = "competitive_strategy"
	SlotSalesIntelligence   = "sales_intelligence"
)

// Manager owns the mutable run state. Safe for concurrent use.
type Manager struct {
	mu sync.RWMutex

	companyName    string
	companyWebsite string
	industry       string
	companySet     bool

	phase1Context map[string]json.RawMessage
	phase2Context map[string]json.RawMessage

	tasks     []types.Task
	taskIndex map[string]int

	currentPhase string

	startedAt         *time.Time
	phase1CompletedAt *time.Time
	phase2CompletedAt *time.Time
}

// NewManager creates an empty state manager.
func NewManager() *Manager {
	return &Manager{
		phase1Context: make(map[string]json.RawMessage),
		phase2Context: make(map[string]json.RawMessage),
		taskIndex:     make(map[string]int),
		currentPhase:  string(types.Phase1),
	}
}

// SetCompany records the target company. Allowed once per run.
func (m *Manager) SetCompany(name, website, industry string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.companySet {
		return fmt.Errorf("%w: company context already set", types.ErrInvalidArgument)
	}
	m.companyName = name
	m.companyWebsite = website
	m.industry = industry
	m.companySet = true
	logging.State("Company context set: %s (%s)", name, industry)
	return nil
}

// Company returns the target company context.
func (m *Manager) Company() types.CompanyContext {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return types.CompanyContext{
		Name:     m.companyName,
		Website:  m.companyWebsite,
		Industry: m.industry,
	}
}

// AddTask appends a task to the execution plan. Duplicate IDs are rejected.
func (m *Manager) AddTask(task types.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.taskIndex[task.ID]; exists {
		return fmt.Errorf("%w: duplicate task ID %q", types.ErrInvalidArgument, task.ID)
	}
	if task.Status == "" {
		task.Status = types.TaskPending
	}
	m.taskIndex[task.ID] = len(m.tasks)
	m.tasks = append(m.tasks, task)
	logging.StateDebug("Task added: %s (%s)", task.ID, task.Skill)
	return nil
}

// Task returns a copy of the task with the given ID.
func (m *Manager) Task(id string) (types.Task, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx, ok := m.taskIndex[id]
	if !ok {
		return types.Task{}, false
	}
	return m.tasks[idx].Clone(), true
}

// Tasks returns copies of all tasks in insertion order.
func (m *Manager) Tasks() []types.Task {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.Task, 0, len(m.tasks))
	for i := range m.tasks {
		out = append(out, m.tasks[i].Clone())
	}
	return out
}

// UpdateTaskStatus transitions a task, enforcing the lifecycle rules: a
// pending task may start (stamping startedAt) or fail (cancellation); an
// in-progress task may complete or fail (stamping completedAt); terminal
// states are final.
func (m *Manager) UpdateTaskStatus(id string, status types.TaskStatus, result json.RawMessage, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, ok := m.taskIndex[id]
	if !ok {
		return fmt.Errorf("%w: unknown task %q", types.ErrInvalidArgument, id)
	}
	task := &m.tasks[idx]

	if !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", types.ErrInvalidArgument, status)
	}
	if err := checkTransition(task.Status, status); err != nil {
		return err
	}

	now := time.Now().UTC()
	task.Status = status
	if len(result) > 0 {
		task.Result = append(json.RawMessage(nil), result...)
	}
	if errMsg != "" {
		task.Error = errMsg
	}

	switch status {
	case types.TaskInProgress:
		if task.StartedAt == nil {
			task.StartedAt = &now
		}
	case types.TaskCompleted, types.TaskFailed:
		task.CompletedAt = &now
	}

	logging.StateDebug("Task %s -> %s", id, status)
	return nil
}

func checkTransition(from, to types.TaskStatus) error {
	if from.Terminal() {
		return fmt.Errorf("%w: task is already %s", types.ErrInvalidState, from)
	}
	switch from {
	case types.TaskPending:
		if to == types.TaskInProgress || to == types.TaskFailed {
			return nil
		}
	case types.TaskInProgress:
		if to.Terminal() {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", types.ErrInvalidState, from, to)
}

// phase1Slots maps skill identifier fragments to Phase 1 slots. Checked in
// order; unknown skills fall back to a slot named by the skill itself.
var phase1Slots = []struct {
	fragment string
	slot     string
}{
	{"company-intelligence", SlotCompanyIntelligence},
	{"business-model-canvas", SlotBusinessModelCanvas},
	{"value-chain", SlotValueChain},
	{"org-structure", SlotOrgStructure},
	{"market-intelligence", SlotMarketIntelligence},
	{"competitor-intelligence", SlotCompetitorIntelligence},
}

var phase2Slots = []struct {
	fragment string
	slot     string
}{
	{"swot", SlotSWOT},
	{"porter", SlotPortersFiveForces},
	{"bcg", SlotBCGMatrix},
	{"blue-ocean", SlotBlueOcean},
	{"pestel", SlotPESTEL},
	{"competitive-strategy", SlotCompetitiveStrategy},
	{"sales-intelligence", SlotSalesIntelligence},
}

// SlotForSkill resolves the context slot a skill's output belongs to.
func SlotForSkill(phase types.Phase, skill string) string {
	table := phase1Slots
	if phase == types.Phase2 {
		table = phase2Slots
	}
	for _, entry := range table {
		if strings.Contains(skill, entry.fragment) {
			return entry.slot
		}
	}
	return skill
}

// StorePhase1Result routes a payload into the Phase 1 bucket for the skill.
func (m *Manager) StorePhase1Result(skill string, payload json.RawMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	slot := SlotForSkill(types.Phase1, skill)
	m.phase1Context[slot] = append(json.RawMessage(nil), payload...)
	logging.StateDebug("Phase 1 result stored: %s -> %s", skill, slot)
}

// StorePhase2Result routes a payload into the Phase 2 bucket for the skill.
func (m *Manager) StorePhase2Result(skill string, payload json.RawMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	slot := SlotForSkill(types.Phase2, skill)
	m.phase2Context[slot] = append(json.RawMessage(nil), payload...)
	logging.StateDebug("Phase 2 result stored: %s -> %s", skill, slot)
}

// Phase1Snapshot returns a defensive copy of the Phase 1 context.
func (m *Manager) Phase1Snapshot() map[string]json.RawMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copyContext(m.phase1Context)
}

// Phase2Snapshot returns a defensive copy of the Phase 2 context.
func (m *Manager) Phase2Snapshot() map[string]json.RawMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copyContext(m.phase2Context)
}

// HasPhase1Context reports whether any Phase 1 results are present.
func (m *Manager) HasPhase1Context() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.phase1Context) > 0
}

func copyContext(src map[string]json.RawMessage) map[string]json.RawMessage {
	dst := make(map[string]json.RawMessage, len(src))
	for k, v := range src {
		dst[k] = append(json.RawMessage(nil), v...)
	}
	return dst
}

// CurrentPhase returns the phase label of the run.
func (m *Manager) CurrentPhase() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentPhase
}

// SetCurrentPhase updates the phase label.
func (m *Manager) SetCurrentPhase(phase string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentPhase = phase
}

// MarkStarted stamps the run start time.
func (m *Manager) MarkStarted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	m.startedAt = &now
}

// MarkPhase1Completed stamps Phase 1 completion.
func (m *Manager) MarkPhase1Completed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	m.phase1CompletedAt = &now
}

// MarkPhase2Completed stamps Phase 2 completion.
func (m *Manager) MarkPhase2Completed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	m.phase2CompletedAt = &now
}

// Summary returns the run summary.
func (m *Manager) Summary() types.Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := types.TaskCounts{Total: len(m.tasks)}
	for i := range m.tasks {
		switch m.tasks[i].Status {
		case types.TaskCompleted:
			counts.Completed++
		case types.TaskFailed:
			counts.Failed++
		default:
			counts.Pending++
		}
	}

	summary := types.Summary{
		Company:      m.companyName,
		CurrentPhase: m.currentPhase,
		Tasks:        counts,
	}
	if m.startedAt != nil {
		summary.StartedAt = m.startedAt.Format(time.RFC3339Nano)
	}
	return summary
}

// persistedState is the on-disk JSON shape. Unknown fields are ignored on
// load.
type persistedState struct {
	CompanyName       string                     `json:"company_name"`
	CompanyWebsite    string                     `json:"company_website"`
	Industry          string                     `json:"industry"`
	Phase1Context     map[string]json.RawMessage `json:"phase1_context"`
	Phase2Context     map[string]json.RawMessage `json:"phase2_context"`
	Tasks             []types.Task               `json:"tasks"`
	CurrentPhase      string                     `json:"current_phase"`
	StartedAt         *time.Time                 `json:"started_at"`
	Phase1CompletedAt *time.Time                 `json:"phase1_completed_at"`
	Phase2CompletedAt *time.Time                 `json:"phase2_completed_at"`
}

// Save writes the full state graph as JSON, creating parent directories.
func (m *Manager) Save(path string) error {
	m.mu.RLock()
	ps := persistedState{
		CompanyName:       m.companyName,
		CompanyWebsite:    m.companyWebsite,
		Industry:          m.industry,
		Phase1Context:     copyContext(m.phase1Context),
		Phase2Context:     copyContext(m.phase2Context),
		Tasks:             make([]types.Task, 0, len(m.tasks)),
		CurrentPhase:      m.currentPhase,
		StartedAt:         m.startedAt,
		Phase1CompletedAt: m.phase1CompletedAt,
		Phase2CompletedAt: m.phase2CompletedAt,
	}
	for i := range m.tasks {
		ps.Tasks = append(ps.Tasks, m.tasks[i].Clone())
	}
	m.mu.RUnlock()

	data, err := json.MarshalIndent(ps, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	// Write-then-rename so a crash mid-save never truncates the state file.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("commit state: %w", err)
	}

	logging.State("State saved to %s (%d tasks)", path, len(ps.Tasks))
	return nil
}

// Load reconstructs the full state graph from a file written by Save.
// In-flight tasks restore as pending with their start time cleared.
func (m *Manager) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read state: %w", err)
	}

	var ps persistedState
	if err := json.Unmarshal(data, &ps); err != nil {
		return fmt.Errorf("%w: parse state %s: %v", types.ErrInvalidArgument, path, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.companyName = ps.CompanyName
	m.companyWebsite = ps.CompanyWebsite
	m.industry = ps.Industry
	m.companySet = ps.CompanyName != ""
	m.phase1Context = ps.Phase1Context
	if m.phase1Context == nil {
		m.phase1Context = make(map[string]json.RawMessage)
	}
	m.phase2Context = ps.Phase2Context
	if m.phase2Context == nil {
		m.phase2Context = make(map[string]json.RawMessage)
	}
	// Save indents stored payloads along with the file; compact them back.
	for _, ctxMap := range []map[string]json.RawMessage{m.phase1Context, m.phase2Context} {
		for k, v := range ctxMap {
			var buf bytes.Buffer
			if json.Compact(&buf, v) == nil {
				ctxMap[k] = buf.Bytes()
			}
		}
	}
	m.currentPhase = ps.CurrentPhase
	if m.currentPhase == "" {
		m.currentPhase = string(types.Phase1)
	}
	m.startedAt = ps.StartedAt
	m.phase1CompletedAt = ps.Phase1CompletedAt
	m.phase2CompletedAt = ps.Phase2CompletedAt

	m.tasks = make([]types.Task, 0, len(ps.Tasks))
	m.taskIndex = make(map[string]int, len(ps.Tasks))
	for _, task := range ps.Tasks {
		if task.Status == types.TaskInProgress || task.Status == "" {
			task.Status = types.TaskPending
			task.StartedAt = nil
		}
		var buf bytes.Buffer
		if json.Compact(&buf, task.Result) == nil {
			task.Result = buf.Bytes()
		}
		if _, exists := m.taskIndex[task.ID]; exists {
			continue
		}
		m.taskIndex[task.ID] = len(m.tasks)
		m.tasks = append(m.tasks, task)
	}

	logging.State("State loaded from %s (%d tasks)", path, len(m.tasks))
	return nil
}
