// Package validator decides whether a skill's output is acceptable before it
// enters the context. Most skills are checked heuristically; a fixed
// allowlist of complex analytical skills is additionally judged by the
// language model, falling back to the heuristic path on any model error.
package validator

import (
	"context"
	"encoding/json"
	"fmt"

	"bizlens/internal/logging"
	"bizlens/internal/perception"
	"bizlens/internal/types"
)

// minDataLength is the shortest string payload considered meaningful.
const minDataLength = 10

// llmValidatedSkills is the allowlist of skills whose output is judged by
// the language model.
var llmValidatedSkills = map[string]bool{
	"business-model-canvas": true,
	"value-chain-mapper":    true,
	"swot-analyzer":         true,
	"porters-five-forces":   true,
	"bcg-matrix":            true,
}

// Validator validates task completion.
type Validator struct {
	llm perception.LLMClient
}

// New creates a validator. llm may be nil; every skill is then validated
// heuristically.
func New(llm perception.LLMClient) *Validator {
	return &Validator{llm: llm}
}

// ValidateTaskCompletion decides whether the result fulfills the task.
// Returns the decision plus human-readable feedback.
func (v *Validator) ValidateTaskCompletion(ctx context.Context, task types.Task, result types.SkillResult) (bool, string) {
	if isEmptyResult(result) {
		return false, "Task produced no result"
	}

	if v.llm != nil && llmValidatedSkills[task.Skill] {
		return v.llmValidate(ctx, task, result)
	}
	return v.heuristicValidate(task, result)
}

// isEmptyResult reports whether the result carries nothing at all.
func isEmptyResult(result types.SkillResult) bool {
	return !result.Success && result.Error == "" && len(result.Data) == 0
}

// heuristicValidate applies the cheap acceptance rules: errors, explicit
// failure, and empty or trivially short data all reject.
func (v *Validator) heuristicValidate(task types.Task, result types.SkillResult) (bool, string) {
	if result.Error != "" {
		return false, fmt.Sprintf("Task reported error: %s", result.Error)
	}
	if !result.Success {
		return false, "Task reported unsuccessful completion"
	}

	if len(result.Data) > 0 {
		var m map[string]any
		if err := json.Unmarshal(result.Data, &m); err == nil {
			if len(m) == 0 {
				return false, "Task data is empty"
			}
			return true, "Task completed successfully"
		}
		var l []any
		if err := json.Unmarshal(result.Data, &l); err == nil {
			if len(l) == 0 {
				return false, "Task data list is empty"
			}
			return true, "Task completed successfully"
		}
		var s string
		if err := json.Unmarshal(result.Data, &s); err == nil {
			if len(s) < minDataLength {
				return false, "Task data is too short"
			}
			return true, "Task completed successfully"
		}
	} else {
		return false, "Task data is empty"
	}

	return true, "Task completed successfully"
}

// llmValidate submits a truncated result summary for model judgment,
// expecting {"is_valid": bool, "feedback": string}. Any error falls back to
// the heuristic path.
func (v *Validator) llmValidate(ctx context.Context, task types.Task, result types.SkillResult) (bool, string) {
	prompt := fmt.Sprintf(`You are validating task completion for a business analysis system.

Task: %s
Skill Used: %s
Phase: %s

Result Summary:
%s

Your job: determine if this task has been completed successfully.

Criteria:
1. Does the result address the task description?
2. Is the result substantive and useful?
3. Are there any obvious gaps or errors?

Respond with ONLY a JSON object:
{
  "is_valid": true/false,
  "feedback": "Brief explanation of validation decision"
}`,
		task.Description, task.Skill, task.Phase, summarizeResult(result, 500))

	resp, err := v.llm.CompleteWithOptions(ctx, prompt, 500, 0)
	if err != nil {
		logging.ValidatorDebug("LLM validation failed for %s (%v), using heuristic", task.ID, err)
		return v.heuristicValidate(task, result)
	}

	var verdict struct {
		IsValid  bool   `json:"is_valid"`
		Feedback string `json:"feedback"`
	}
	if err := json.Unmarshal([]byte(perception.CleanJSONResponse(resp)), &verdict); err != nil {
		logging.ValidatorDebug("LLM validation unparseable for %s, using heuristic", task.ID)
		return v.heuristicValidate(task, result)
	}

	logging.Validator("LLM validation for %s: valid=%v", task.ID, verdict.IsValid)
	return verdict.IsValid, verdict.Feedback
}

// summarizeResult renders the result for the validation prompt, truncated
// but keeping the structure visible.
func summarizeResult(result types.SkillResult, maxLength int) string {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return result.Error
	}
	if len(data) > maxLength {
		return string(data[:maxLength]) + "\n... (truncated)"
	}
	return string(data)
}

// CheckDependenciesMet reports whether every dependency of the task is among
// the completed IDs.
func CheckDependenciesMet(task types.Task, completedIDs []string) bool {
	if len(task.Dependencies) == 0 {
		return true
	}
	completed := make(map[string]bool, len(completedIDs))
	for _, id := range completedIDs {
		completed[id] = true
	}
	for _, dep := range task.Dependencies {
		if !completed[dep] {
			logging.ValidatorDebug("Task %s waiting on dependency %s", task.ID, dep)
			return false
		}
	}
	return true
}
