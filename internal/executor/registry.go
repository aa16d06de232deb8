package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"bizlens/internal/config"
	"bizlens/internal/logging"
	"bizlens/internal/types"
)

// Skill is a pluggable implementation that produces the payload for one
// context slot. Implementations receive the current-phase context snapshot
// and the run configuration.
type Skill interface {
	Execute(ctx context.Context, task types.Task, taskContext map[string]json.RawMessage, cfg *config.Config) (types.SkillResult, error)
}

// SkillFunc adapts a function to the Skill interface.
type SkillFunc func(ctx context.Context, task types.Task, taskContext map[string]json.RawMessage, cfg *config.Config) (types.SkillResult, error)

// Execute implements Skill.
func (f SkillFunc) Execute(ctx context.Context, task types.Task, taskContext map[string]json.RawMessage, cfg *config.Config) (types.SkillResult, error) {
	return f(ctx, task, taskContext, cfg)
}

// Registry maps skill identifiers to implementations. Skills are registered
// at orchestrator startup; identifiers not present trigger the executor's
// language-model fallback.
type Registry struct {
	mu     sync.RWMutex
	skills map[string]Skill
}

// NewRegistry creates an empty skill registry.
func NewRegistry() *Registry {
	return &Registry{skills: make(map[string]Skill)}
}

// Register adds a skill under the given identifier. Duplicate identifiers
// are rejected.
func (r *Registry) Register(name string, skill Skill) error {
	if name == "" {
		return fmt.Errorf("%w: skill name required", types.ErrInvalidArgument)
	}
	if skill == nil {
		return fmt.Errorf("%w: skill implementation required", types.ErrInvalidArgument)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.skills[name]; exists {
		return fmt.Errorf("%w: skill %q already registered", types.ErrInvalidArgument, name)
	}
	r.skills[name] = skill
	logging.ExecutorDebug("Registered skill: %s", name)
	return nil
}

// MustRegister registers a skill and panics on error. Use for static
// registration at startup.
func (r *Registry) MustRegister(name string, skill Skill) {
	if err := r.Register(name, skill); err != nil {
		panic(fmt.Sprintf("failed to register skill %s: %v", name, err))
	}
}

// Get returns the skill for an identifier, or nil.
func (r *Registry) Get(name string) Skill {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.skills[name]
}

// Has reports whether an identifier is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.skills[name]
	return ok
}

// Names returns all registered identifiers, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.skills))
	for name := range r.skills {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
