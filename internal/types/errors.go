package types

import "errors"

// Error kinds for the pipeline. Callers classify with errors.Is; components
// wrap these with context via fmt.Errorf("...: %w", ...).
var (
	// ErrInvalidArgument indicates bad configuration or input: missing
	// company name, unknown run mode, duplicate task ID.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidState indicates an illegal task status transition.
	ErrInvalidState = errors.New("invalid state transition")

	// ErrPrecondition indicates a structural requirement was violated, such
	// as running frameworks without Phase 1 results.
	ErrPrecondition = errors.New("precondition not met")

	// ErrProvider indicates an external data provider failed.
	ErrProvider = errors.New("provider error")

	// ErrSkillFailure indicates a skill returned unsuccessfully or panicked.
	ErrSkillFailure = errors.New("skill failure")

	// ErrValidationRejected indicates the validator rejected a skill's output.
	ErrValidationRejected = errors.New("validation rejected")

	// ErrLoop indicates the executor detected a repeated action signature.
	ErrLoop = errors.New("loop detected")

	// ErrCancelled indicates the run's cancellation signal fired.
	ErrCancelled = errors.New("cancelled")

	// ErrFatal indicates an internal invariant violation.
	ErrFatal = errors.New("fatal")
)
