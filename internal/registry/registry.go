// Package registry holds the ordered list of query engines a composer can
// submit to. Order matters: it drives numeric engine shortcuts.
package registry

import (
	"fmt"
	"sort"
	"sync"
)

// Engine is a query execution target.
type Engine struct {
	ID         string `koanf:"id" json:"id"`
	Name       string `koanf:"name" json:"name"`
	Language   string `koanf:"language" json:"language"`
	Driver     string `koanf:"driver" json:"driver"`
	DSN        string `koanf:"dsn" json:"-"`
	OrderIndex int    `koanf:"order" json:"orderIndex"`

	// Options holds driver specific settings, decoded by the executor.
	Options map[string]any `koanf:"options" json:"-"`
}

// DisplayName returns the engine name, or its id when unnamed.
func (e Engine) DisplayName() string {
	if e.Name != "" {
		return e.Name
	}
	return e.ID
}

// DuplicateEngineError is returned when an engine id is registered twice.
type DuplicateEngineError struct {
	ID string
}

func (e *DuplicateEngineError) Error() string {
	return fmt.Sprintf("engine %q already registered", e.ID)
}

// EngineRegistry is a read-mostly, ordered set of engines.
type EngineRegistry struct {
	mu sync.RWMutex

	// byID maps engine ids to their position in ordered
	byID    map[string]int
	ordered []Engine
}

// NewEngineRegistry creates a registry holding engines.
func NewEngineRegistry(engines ...Engine) (*EngineRegistry, error) {
	r := &EngineRegistry{byID: make(map[string]int)}
	for _, e := range engines {
		if err := r.Register(e); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds an engine. Engines are kept sorted by OrderIndex; ties keep
// registration order.
func (r *EngineRegistry) Register(e Engine) error {
	if e.ID == "" {
		return fmt.Errorf("engine id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[e.ID]; ok {
		return &DuplicateEngineError{ID: e.ID}
	}

	r.ordered = append(r.ordered, e)
	sort.SliceStable(r.ordered, func(i, j int) bool {
		return r.ordered[i].OrderIndex < r.ordered[j].OrderIndex
	})
	for i, eng := range r.ordered {
		r.byID[eng.ID] = i
	}
	return nil
}

// Get returns the engine with id.
func (r *EngineRegistry) Get(id string) (Engine, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.byID[id]
	if !ok {
		return Engine{}, false
	}
	return r.ordered[i], true
}

// Has reports whether id is registered.
func (r *EngineRegistry) Has(id string) bool {
	_, ok := r.Get(id)
	return ok
}

// List returns all engines in order.
func (r *EngineRegistry) List() []Engine {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Engine, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Count returns the number of registered engines.
func (r *EngineRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ordered)
}

// DefaultID picks the default engine: preferred when registered, otherwise
// the first engine. It returns "" for an empty registry.
func (r *EngineRegistry) DefaultID(preferred string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.byID[preferred]; ok && preferred != "" {
		return preferred
	}
	if len(r.ordered) == 0 {
		return ""
	}
	return r.ordered[0].ID
}
