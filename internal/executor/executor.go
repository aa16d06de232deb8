// Package executor runs single tasks: it routes them to registered skills,
// falls back to the language model when no skill matches, detects repetitive
// action loops, and converts every failure mode into a result envelope. The
// executor never propagates a skill error to its caller.
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"bizlens/internal/config"
	"bizlens/internal/logging"
	"bizlens/internal/perception"
	"bizlens/internal/types"
)

const (
	// loopWindow is how many recent action signatures are kept.
	loopWindow = 5
	// loopRunLength identical consecutive signatures trigger loop failure.
	loopRunLength = 4
)

// Executor runs tasks through the skill registry.
type Executor struct {
	registry        *Registry
	llm             perception.LLMClient
	maxStepsPerTask int

	recentActions []string
}

// New creates an executor. llm may be nil; the fallback path then reports a
// skill failure instead of synthesizing output.
func New(registry *Registry, llm perception.LLMClient, maxStepsPerTask int) *Executor {
	if maxStepsPerTask <= 0 {
		maxStepsPerTask = 10
	}
	return &Executor{
		registry:        registry,
		llm:             llm,
		maxStepsPerTask: maxStepsPerTask,
	}
}

// ExecuteTask runs a single task and always returns a result envelope;
// panics and errors are captured, never propagated.
func (e *Executor) ExecuteTask(ctx context.Context, task types.Task, taskContext map[string]json.RawMessage, cfg *config.Config) (result types.SkillResult) {
	logging.Executor("Executing task: %s - %s", task.ID, task.Description)

	defer func() {
		if r := recover(); r != nil {
			logging.ExecutorWarn("Task %s panicked: %v", task.ID, r)
			result = types.SkillResult{
				Success: false,
				Error:   fmt.Sprintf("skill panicked: %v", r),
				TaskID:  task.ID,
			}
		}
	}()

	if err := ctx.Err(); err != nil {
		return types.SkillResult{Success: false, Error: types.ErrCancelled.Error(), TaskID: task.ID}
	}

	if e.RecordAction("skill:" + task.Skill) {
		return types.SkillResult{
			Success: false,
			Error:   fmt.Sprintf("%s: action skill:%s repeated %d times", types.ErrLoop.Error(), task.Skill, loopRunLength),
			TaskID:  task.ID,
		}
	}

	skill := e.registry.Get(task.Skill)
	if skill == nil {
		logging.ExecutorWarn("Skill %q not registered, using LLM fallback", task.Skill)
		return e.llmFallback(ctx, task, taskContext, cfg)
	}

	res, err := skill.Execute(ctx, task, taskContext, cfg)
	if err != nil {
		logging.ExecutorWarn("Task %s failed: %v", task.ID, err)
		return types.SkillResult{Success: false, Error: err.Error(), TaskID: task.ID}
	}
	res.TaskID = task.ID
	logging.Executor("Task %s completed", task.ID)
	return res
}

// RecordAction appends an action signature to the sliding window and reports
// whether a loop was detected: the last loopRunLength entries identical
// within a window of loopWindow.
func (e *Executor) RecordAction(signature string) bool {
	e.recentActions = append(e.recentActions, signature)
	if len(e.recentActions) > loopWindow {
		e.recentActions = e.recentActions[len(e.recentActions)-loopWindow:]
	}

	if len(e.recentActions) < loopRunLength {
		return false
	}
	tail := e.recentActions[len(e.recentActions)-loopRunLength:]
	for _, a := range tail {
		if a != tail[0] {
			return false
		}
	}
	logging.ExecutorWarn("Loop detected: %s repeated %d times", signature, loopRunLength)
	return true
}

// ResetLoopDetection clears the action window. Called between tasks.
func (e *Executor) ResetLoopDetection() {
	e.recentActions = e.recentActions[:0]
}

// MaxStepsPerTask returns the per-task step budget skills may consult.
func (e *Executor) MaxStepsPerTask() int { return e.maxStepsPerTask }

// llmFallback synthesizes a best-effort payload when no skill matches the
// task's identifier. Results are tagged method=llm_fallback and carry
// _fallback=true in the payload.
func (e *Executor) llmFallback(ctx context.Context, task types.Task, taskContext map[string]json.RawMessage, cfg *config.Config) types.SkillResult {
	if e.llm == nil {
		return types.SkillResult{
			Success: false,
			Error:   fmt.Sprintf("skill %q not registered and no language model available", task.Skill),
			TaskID:  task.ID,
		}
	}

	prompt := fmt.Sprintf(`You are executing a business analysis task.

Company: %s
Website: %s
Industry: %s

Task: %s
Skill: %s
Phase: %s

Context from previous tasks:
%s

Your job: accomplish this task to the best of your ability using your knowledge.

Return a JSON object with your findings:
{
  "findings": { },
  "summary": "Brief summary of what you found",
  "sources": ["Knowledge base", "Reasoning"],
  "confidence": "low/medium/high"
}

Important:
- Be specific and actionable
- Base insights on the company and industry context
- Acknowledge when you are making assumptions`,
		cfg.Company.Name, cfg.Company.Website, cfg.Company.Industry,
		task.Description, task.Skill, task.Phase, SummarizeContext(taskContext, 1000))

	resp, err := e.llm.Complete(ctx, prompt)
	if err != nil {
		return types.SkillResult{Success: false, Error: err.Error(), TaskID: task.ID}
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(perception.CleanJSONResponse(resp)), &payload); err != nil {
		return types.SkillResult{Success: false, Error: fmt.Sprintf("parse fallback response: %v", err), TaskID: task.ID}
	}
	payload["_fallback"] = true

	data, err := json.Marshal(payload)
	if err != nil {
		return types.SkillResult{Success: false, Error: err.Error(), TaskID: task.ID}
	}

	return types.SkillResult{
		Success: true,
		Data:    data,
		TaskID:  task.ID,
		Method:  "llm_fallback",
	}
}

// SummarizeContext renders a short description of the available context for
// prompting, truncated to maxLength characters.
func SummarizeContext(taskContext map[string]json.RawMessage, maxLength int) string {
	if len(taskContext) == 0 {
		return "(no prior context)"
	}

	keys := make([]string, 0, len(taskContext))
	for k := range taskContext {
		keys = append(keys, k)
	}
	// Stable order keeps prompts deterministic for identical state.
	sort.Strings(keys)

	var parts []string
	for _, key := range keys {
		raw := taskContext[key]
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err == nil {
			parts = append(parts, fmt.Sprintf("%s: %d data points", key, len(m)))
			continue
		}
		var l []any
		if err := json.Unmarshal(raw, &l); err == nil {
			parts = append(parts, fmt.Sprintf("%s: %d items", key, len(l)))
			continue
		}
		parts = append(parts, key)
	}

	summary := strings.Join(parts, "\n")
	if len(summary) > maxLength {
		summary = summary[:maxLength] + "... (truncated)"
	}
	return summary
}
