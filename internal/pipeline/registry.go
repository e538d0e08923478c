package pipeline

import (
	"errors"
	"fmt"
	"sync"
)

// Sentinel errors for the pipeline package.
var (
	// ErrStageAlreadyRegistered is returned when registering a duplicate stage.
	ErrStageAlreadyRegistered = errors.New("stage already registered")

	// ErrStageNotFound is returned when a stage dependency is not found.
	ErrStageNotFound = errors.New("stage not found")

	// ErrDependencyCycle is returned when stage dependencies form a cycle.
	ErrDependencyCycle = errors.New("dependency cycle detected")
)

// Registry manages available stages and their dependencies.
type Registry struct {
	mu     sync.RWMutex
	stages map[string]Stage
	order  []string // Maintains registration order
}

// NewRegistry creates an empty stage registry.
func NewRegistry() *Registry {
	return &Registry{
		stages: make(map[string]Stage),
		order:  make([]string, 0),
	}
}

// DefaultRegistry returns a registry with the full paper pipeline registered
// in canonical order.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, s := range []Stage{
		&OCRStage{},
		&TranslateStage{},
		&PolishStage{},
		&SectionsStage{},
		&BlogStage{},
		&SlidesStage{},
	} {
		// Registration of the built-in set cannot collide.
		_ = r.Register(s)
	}
	return r
}

// Register adds a stage to the registry.
// Returns an error if a stage with the same name is already registered.
func (r *Registry) Register(s Stage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := s.Name()
	if _, exists := r.stages[name]; exists {
		return fmt.Errorf("%w: %s", ErrStageAlreadyRegistered, name)
	}

	r.stages[name] = s
	r.order = append(r.order, name)
	return nil
}

// Get returns a stage by name.
func (r *Registry) Get(name string) (Stage, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.stages[name]
	return s, ok
}

// Names returns all stage names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Levels groups the named stages into dependency levels: level 0 holds
// stages with no dependencies inside the selection, level 1 holds stages
// whose selected dependencies are all in level 0, and so on. Stages in the
// same level are independent of each other and may run concurrently.
// Dependencies outside the selection are ignored; their artifacts are
// expected to exist from a previous run.
func (r *Registry) Levels(names []string) ([][]Stage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	selected := make(map[string]Stage, len(names))
	for _, name := range names {
		s, ok := r.stages[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrStageNotFound, name)
		}
		selected[name] = s
	}

	// Kahn's algorithm, grouped by depth. Iterate r.order for deterministic
	// output.
	inDegree := make(map[string]int, len(selected))
	for name, s := range selected {
		for _, dep := range s.Dependencies() {
			if _, ok := selected[dep]; ok {
				inDegree[name]++
			}
		}
	}

	var levels [][]Stage
	placed := 0
	for placed < len(selected) {
		var level []Stage
		var levelNames []string
		for _, name := range r.order {
			if _, ok := selected[name]; ok && inDegree[name] == 0 {
				level = append(level, selected[name])
				levelNames = append(levelNames, name)
				inDegree[name] = -1 // placed
			}
		}
		if len(level) == 0 {
			return nil, ErrDependencyCycle
		}
		for _, name := range levelNames {
			for depName, s := range selected {
				if inDegree[depName] < 0 {
					continue
				}
				for _, dep := range s.Dependencies() {
					if dep == name {
						inDegree[depName]--
					}
				}
			}
		}
		levels = append(levels, level)
		placed += len(level)
	}

	return levels, nil
}

// Validate checks that all stage dependencies exist in the registry and that
// the full graph is acyclic.
func (r *Registry) Validate() error {
	r.mu.RLock()
	for name, stage := range r.stages {
		for _, dep := range stage.Dependencies() {
			if _, ok := r.stages[dep]; !ok {
				r.mu.RUnlock()
				return fmt.Errorf("%w: stage %q depends on %q", ErrStageNotFound, name, dep)
			}
		}
	}
	order := make([]string, len(r.order))
	copy(order, r.order)
	r.mu.RUnlock()

	_, err := r.Levels(order)
	return err
}
