package logging

// Category convenience helpers. Info-level unless suffixed.

func Orchestrator(format string, args ...interface{}) { Get(CategoryOrchestrator).Info(format, args...) }
func OrchestratorDebug(format string, args ...interface{}) {
	Get(CategoryOrchestrator).Debug(format, args...)
}
func OrchestratorWarn(format string, args ...interface{}) {
	Get(CategoryOrchestrator).Warn(format, args...)
}
func OrchestratorError(format string, args ...interface{}) {
	Get(CategoryOrchestrator).Error(format, args...)
}

func Planner(format string, args ...interface{})      { Get(CategoryPlanner).Info(format, args...) }
func PlannerDebug(format string, args ...interface{}) { Get(CategoryPlanner).Debug(format, args...) }
func PlannerWarn(format string, args ...interface{})  { Get(CategoryPlanner).Warn(format, args...) }

func Executor(format string, args ...interface{})      { Get(CategoryExecutor).Info(format, args...) }
func ExecutorDebug(format string, args ...interface{}) { Get(CategoryExecutor).Debug(format, args...) }
func ExecutorWarn(format string, args ...interface{})  { Get(CategoryExecutor).Warn(format, args...) }

func Validator(format string, args ...interface{}) { Get(CategoryValidator).Info(format, args...) }
func ValidatorDebug(format string, args ...interface{}) {
	Get(CategoryValidator).Debug(format, args...)
}

func Truth(format string, args ...interface{})      { Get(CategoryTruth).Info(format, args...) }
func TruthDebug(format string, args ...interface{}) { Get(CategoryTruth).Debug(format, args...) }

func State(format string, args ...interface{})      { Get(CategoryState).Info(format, args...) }
func StateDebug(format string, args ...interface{}) { Get(CategoryState).Debug(format, args...) }

func Skills(format string, args ...interface{})      { Get(CategorySkills).Info(format, args...) }
func SkillsDebug(format string, args ...interface{}) { Get(CategorySkills).Debug(format, args...) }
func SkillsWarn(format string, args ...interface{})  { Get(CategorySkills).Warn(format, args...) }

func API(format string, args ...interface{})      { Get(CategoryAPI).Info(format, args...) }
func APIDebug(format string, args ...interface{}) { Get(CategoryAPI).Debug(format, args...) }
func APIWarn(format string, args ...interface{})  { Get(CategoryAPI).Warn(format, args...) }
func APIError(format string, args ...interface{}) { Get(CategoryAPI).Error(format, args...) }

func LLM(format string, args ...interface{})      { Get(CategoryLLM).Info(format, args...) }
func LLMDebug(format string, args ...interface{}) { Get(CategoryLLM).Debug(format, args...) }

func Session(format string, args ...interface{}) { Get(CategorySession).Info(format, args...) }

func Progress(format string, args ...interface{}) { Get(CategoryProgress).Info(format, args...) }
