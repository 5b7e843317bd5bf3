package validate

import (
	"fmt"
	"sort"
	"sync"
)

// ValidatorConstructor builds a validator from its free-form config map.
type ValidatorConstructor func(config map[string]any) (Validator, error)

// Registry maps validator names to constructors. Registration is explicit;
// there is no reflection-based discovery. A registry is safe for concurrent
// use and is constructed once at process start and passed by reference into
// the factories.
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]ValidatorConstructor
	dependencies map[string][]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		constructors: make(map[string]ValidatorConstructor),
		dependencies: make(map[string][]string),
	}
}

// Register adds a constructor under name. The optional dependsOn list
// declares validators that must be registered and acyclic before a chain
// containing this validator can be built.
func (r *Registry) Register(name string, ctor ValidatorConstructor, dependsOn ...string) error {
	if name == "" {
		return ErrValidatorNameEmpty
	}
	if ctor == nil {
		return ErrValidatorConstructorNil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.constructors[name]; exists {
		return fmt.Errorf("%w: %s", ErrValidatorAlreadyRegistered, name)
	}
	r.constructors[name] = ctor
	if len(dependsOn) > 0 {
		r.dependencies[name] = append([]string{}, dependsOn...)
	}
	return nil
}

// Unregister removes a named constructor, reporting whether it existed.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, existed := r.constructors[name]
	delete(r.constructors, name)
	delete(r.dependencies, name)
	return existed
}

// Create builds a validator by name.
func (r *Registry) Create(name string, config map[string]any) (Validator, error) {
	r.mu.RLock()
	ctor, ok := r.constructors[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrValidatorNotFound, name)
	}
	return ctor(config)
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.constructors[name]
	return ok
}

// List returns registered validator names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.constructors))
	for name := range r.constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dependencies returns the declared dependencies for name.
func (r *Registry) Dependencies(name string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string{}, r.dependencies[name]...)
}

// CheckDependencies verifies that every declared dependency of every name
// in the given set is registered and that the dependency graph is acyclic.
func (r *Registry) CheckDependencies(names []string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int)

	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case visiting:
			return fmt.Errorf("%w: %s", ErrValidatorDependencyCycle, name)
		case done:
			return nil
		}
		state[name] = visiting
		for _, dep := range r.dependencies[name] {
			if _, ok := r.constructors[dep]; !ok {
				return fmt.Errorf("%w: %s -> %s", ErrValidatorDependencyMissing, name, dep)
			}
			if err := visit(dep); err != nil {
				return err
			}
		}
		state[name] = done
		return nil
	}

	for _, name := range names {
		if err := visit(name); err != nil {
			return err
		}
	}
	return nil
}

// SortByDependencies returns names ordered so that every validator appears
// after its declared dependencies. Names without dependency relationships
// keep their relative order.
func (r *Registry) SortByDependencies(names []string) ([]string, error) {
	if err := r.CheckDependencies(names); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	inSet := make(map[string]bool, len(names))
	for _, n := range names {
		inSet[n] = true
	}

	var ordered []string
	emitted := make(map[string]bool, len(names))
	var emit func(name string)
	emit = func(name string) {
		if emitted[name] || !inSet[name] {
			return
		}
		emitted[name] = true
		for _, dep := range r.dependencies[name] {
			emit(dep)
		}
		ordered = append(ordered, name)
	}
	for _, name := range names {
		emit(name)
	}
	return ordered, nil
}
