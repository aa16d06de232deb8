// Package orchestrator is the top-level driver of an analysis run. It wires
// planner, executor, validator, state and progress together, dispatches on
// the configured run mode, honors the global step budget and cancellation,
// and shapes the final result envelope.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"bizlens/internal/config"
	"bizlens/internal/executor"
	"bizlens/internal/logging"
	"bizlens/internal/perception"
	"bizlens/internal/planner"
	"bizlens/internal/progress"
	"bizlens/internal/state"
	"bizlens/internal/types"
	"bizlens/internal/validator"
)

// Options carries the injectable collaborators. Zero values are allowed:
// a nil registry means every task takes the language-model fallback path,
// and a nil LLM restricts the planner to its deterministic plans.
type Options struct {
	Registry *executor.Registry
	LLM      perception.LLMClient
	Observer progress.Observer
}

// Orchestrator coordinates the full analysis run.
type Orchestrator struct {
	cfg       *config.Config
	state     *state.Manager
	planner   *planner.Planner
	executor  *executor.Executor
	validator *validator.Validator
	tracker   *progress.Tracker

	statePath   string
	currentStep int
}

// New creates an orchestrator for the given configuration. The company
// context is fixed here and immutable afterwards.
func New(cfg *config.Config, opts Options) (*Orchestrator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config is required", types.ErrInvalidArgument)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	registry := opts.Registry
	if registry == nil {
		registry = executor.NewRegistry()
	}

	st := state.NewManager()
	if err := st.SetCompany(cfg.Company.Name, cfg.Company.Website, cfg.Company.Industry); err != nil {
		return nil, err
	}

	o := &Orchestrator{
		cfg:       cfg,
		state:     st,
		planner:   planner.New(opts.LLM, registry),
		executor:  executor.New(registry, opts.LLM, cfg.Advanced.MaxStepsPerTask),
		validator: validator.New(opts.LLM),
		tracker:   progress.NewTracker(0, opts.Observer),
	}

	logging.Orchestrator("Orchestrator initialized for %s (mode=%s)", cfg.Company.Name, cfg.Mode)
	return o, nil
}

// Run executes the analysis selected by the run mode and returns the result
// envelope. Recoverable task failures are reflected in the summary counts;
// precondition violations and cancellation populate the envelope error.
func (o *Orchestrator) Run(ctx context.Context) types.ResultEnvelope {
	o.state.MarkStarted()

	switch o.cfg.Mode {
	case types.ModeBusinessOverview:
		return o.runBusinessOverview(ctx)
	case types.ModeFrameworksOnly:
		return o.runFrameworksOnly(ctx)
	case types.ModeFull:
		return o.runFull(ctx)
	}

	// Config validation pins the mode, so this is unreachable in practice.
	return o.errorEnvelope(fmt.Sprintf("%s: unknown run mode %q", types.ErrInvalidArgument, o.cfg.Mode), "")
}

func (o *Orchestrator) runBusinessOverview(ctx context.Context) types.ResultEnvelope {
	logging.Orchestrator("=== BUSINESS OVERVIEW ANALYSIS ===")

	phase1, err := o.runPhase1(ctx)
	if err != nil {
		return o.errorEnvelope(err.Error(), "business_overview")
	}
	if len(phase1) == 0 {
		return o.errorEnvelope("Business Overview failed", "business_overview")
	}

	o.state.MarkPhase1Completed()
	o.state.SetCurrentPhase("phase1_complete")

	return types.ResultEnvelope{
		Company:      o.state.Company().Name,
		Phase1:       phase1,
		Phase2:       map[string]json.RawMessage{},
		Summary:      o.state.Summary(),
		AnalysisType: "business_overview",
	}
}

func (o *Orchestrator) runFrameworksOnly(ctx context.Context) types.ResultEnvelope {
	logging.Orchestrator("=== STRATEGIC FRAMEWORKS ANALYSIS ===")

	if !o.state.HasPhase1Context() {
		logging.OrchestratorError("No Phase 1 context found - cannot run frameworks only")
		return o.errorEnvelope(
			fmt.Sprintf("%s: business overview required before running frameworks", types.ErrPrecondition),
			"frameworks")
	}

	o.state.SetCurrentPhase(string(types.Phase2))

	phase2, err := o.runPhase2(ctx)
	if err != nil {
		return o.errorEnvelope(err.Error(), "frameworks")
	}
	o.state.MarkPhase2Completed()

	return types.ResultEnvelope{
		Company:      o.state.Company().Name,
		Phase1:       o.state.Phase1Snapshot(),
		Phase2:       phase2,
		Summary:      o.state.Summary(),
		AnalysisType: "frameworks",
	}
}

func (o *Orchestrator) runFull(ctx context.Context) types.ResultEnvelope {
	logging.Orchestrator("=== PHASE 1: FOUNDATION BUILDING ===")

	phase1, err := o.runPhase1(ctx)
	if err != nil {
		return o.errorEnvelope(err.Error(), "full")
	}
	if len(phase1) == 0 {
		logging.OrchestratorError("Phase 1 failed - cannot proceed to Phase 2")
		return o.errorEnvelope("Phase 1 failed", "full")
	}

	o.state.MarkPhase1Completed()
	o.state.SetCurrentPhase(string(types.Phase2))

	logging.Orchestrator("=== PHASE 2: STRATEGY ANALYSIS ===")

	phase2, err := o.runPhase2(ctx)
	if err != nil {
		return o.errorEnvelope(err.Error(), "full")
	}
	o.state.MarkPhase2Completed()

	logging.Orchestrator("=== ANALYSIS COMPLETE ===")

	return types.ResultEnvelope{
		Company:      o.state.Company().Name,
		Phase1:       phase1,
		Phase2:       phase2,
		Summary:      o.state.Summary(),
		AnalysisType: "full",
	}
}

// runPhase1 plans and executes the foundation tasks, returning the Phase 1
// context bucket.
func (o *Orchestrator) runPhase1(ctx context.Context) (map[string]json.RawMessage, error) {
	o.tracker.SetPhase("Phase 1")

	tasks := o.planner.PlanPhase1(ctx, o.cfg)
	if err := o.runTasks(ctx, tasks, types.Phase1); err != nil {
		return nil, err
	}
	return o.state.Phase1Snapshot(), nil
}

// runPhase2 plans from the Phase 1 snapshot and executes the framework
// tasks, returning the Phase 2 context bucket.
func (o *Orchestrator) runPhase2(ctx context.Context) (map[string]json.RawMessage, error) {
	o.tracker.SetPhase("Phase 2")

	tasks := o.planner.PlanPhase2(ctx, o.cfg, o.state.Phase1Snapshot())
	if err := o.runTasks(ctx, tasks, types.Phase2); err != nil {
		return nil, err
	}
	return o.state.Phase2Snapshot(), nil
}

// runTasks executes one phase's task list in planned order.
func (o *Orchestrator) runTasks(ctx context.Context, tasks []types.Task, phase types.Phase) error {
	for _, task := range tasks {
		if err := o.state.AddTask(task); err != nil {
			logging.OrchestratorWarn("Skipping task %s: %v", task.ID, err)
		}
	}
	o.tracker.SetTotalTasks(o.state.Summary().Tasks.Total)
	logging.Orchestrator("Executing %d %s tasks", len(tasks), phase)

	var completedIDs []string

	for _, task := range tasks {
		if err := ctx.Err(); err != nil {
			o.cancelOutstanding(tasks)
			return fmt.Errorf("%w: run cancelled", types.ErrCancelled)
		}

		if o.currentStep >= o.cfg.Advanced.MaxSteps {
			logging.OrchestratorWarn("Reached max steps (%d) - stopping %s", o.cfg.Advanced.MaxSteps, phase)
			break
		}

		if !validator.CheckDependenciesMet(task, completedIDs) {
			logging.Orchestrator("Skipping %s - dependencies not met", task.ID)
			continue
		}

		o.tracker.Emit(task.ID, task.Description,
			fmt.Sprintf("Starting %s...", task.Description),
			progress.StatusInProgress, progress.LevelTask, nil)

		if err := o.state.UpdateTaskStatus(task.ID, types.TaskInProgress, nil, ""); err != nil {
			logging.OrchestratorWarn("Cannot start %s: %v", task.ID, err)
			continue
		}
		o.executor.ResetLoopDetection()

		o.tracker.Emit(task.ID, task.Description,
			fmt.Sprintf("Loading %s skill...", titleizeSkill(task.Skill)),
			progress.StatusInProgress, progress.LevelSkill, nil)

		result := o.executor.ExecuteTask(ctx, task, o.taskContext(phase), o.cfg)
		o.currentStep++

		valid, feedback := o.validator.ValidateTaskCompletion(ctx, task, result)
		if valid {
			o.storeResult(phase, task, result)
			resultJSON, _ := json.Marshal(result)
			_ = o.state.UpdateTaskStatus(task.ID, types.TaskCompleted, resultJSON, "")
			completedIDs = append(completedIDs, task.ID)
			logging.Orchestrator("[OK] %s completed successfully", task.ID)

			o.tracker.Emit(task.ID, task.Description,
				fmt.Sprintf("Completed %s", task.Description),
				progress.StatusCompleted, progress.LevelTask, nil)
		} else {
			_ = o.state.UpdateTaskStatus(task.ID, types.TaskFailed, nil, feedback)
			logging.OrchestratorWarn("[X] %s validation failed: %s", task.ID, feedback)

			o.tracker.Emit(task.ID, task.Description,
				fmt.Sprintf("Failed: %s", feedback),
				progress.StatusFailed, progress.LevelTask,
				map[string]any{"error": feedback})
		}
	}

	return nil
}

// taskContext assembles the context snapshot handed to the executor: Phase 1
// sees the Phase 1 bucket, Phase 2 sees both buckets merged.
func (o *Orchestrator) taskContext(phase types.Phase) map[string]json.RawMessage {
	taskContext := o.state.Phase1Snapshot()
	if phase == types.Phase2 {
		for slot, payload := range o.state.Phase2Snapshot() {
			taskContext[slot] = payload
		}
	}
	return taskContext
}

// storeResult routes an accepted payload into the right context bucket.
func (o *Orchestrator) storeResult(phase types.Phase, task types.Task, result types.SkillResult) {
	payload := result.Data
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}
	if phase == types.Phase1 {
		o.state.StorePhase1Result(task.Skill, payload)
	} else {
		o.state.StorePhase2Result(task.Skill, payload)
	}
}

// cancelOutstanding fails every non-terminal task after a cancellation, and
// persists the state when a state path is configured so the run can be
// inspected post-mortem.
func (o *Orchestrator) cancelOutstanding(tasks []types.Task) {
	for _, task := range tasks {
		current, ok := o.state.Task(task.ID)
		if !ok || current.Status.Terminal() {
			continue
		}
		_ = o.state.UpdateTaskStatus(task.ID, types.TaskFailed, nil, types.ErrCancelled.Error())
		o.tracker.Emit(task.ID, task.Description, "Cancelled",
			progress.StatusFailed, progress.LevelTask, nil)
	}
	if o.statePath != "" {
		if err := o.state.Save(o.statePath); err != nil {
			logging.OrchestratorError("Failed to save state on cancel: %v", err)
		}
	}
}

func (o *Orchestrator) errorEnvelope(message, analysisType string) types.ResultEnvelope {
	env := types.ResultEnvelope{
		Company:      o.state.Company().Name,
		Phase1:       o.state.Phase1Snapshot(),
		Phase2:       o.state.Phase2Snapshot(),
		Summary:      o.state.Summary(),
		AnalysisType: analysisType,
		Error:        message,
	}
	return env
}

// SaveState persists the run state; subsequent cancellations reuse the path.
func (o *Orchestrator) SaveState(path string) error {
	o.statePath = path
	return o.state.Save(path)
}

// LoadState restores a prior run's state, e.g. Phase 1 context for a
// frameworks-only run.
func (o *Orchestrator) LoadState(path string) error {
	o.statePath = path
	return o.state.Load(path)
}

// Summary exposes the current run summary.
func (o *Orchestrator) Summary() types.Summary {
	return o.state.Summary()
}

// ProgressSnapshot exposes the current progress snapshot.
func (o *Orchestrator) ProgressSnapshot() progress.Snapshot {
	return o.tracker.Snapshot()
}

// titleizeSkill renders a skill identifier for display: hyphens to spaces,
// words capitalized.
func titleizeSkill(skill string) string {
	words := strings.Split(strings.ReplaceAll(skill, "-", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
