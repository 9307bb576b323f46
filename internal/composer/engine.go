package composer

import (
	"context"

	"github.com/leapstack-labs/querycomposer/internal/keymap"
	"github.com/leapstack-labs/querycomposer/internal/registry"
)

// effectiveEngineLocked returns the stored engine when it is registered,
// otherwise the default engine.
func (s *Session) effectiveEngineLocked() string {
	if s.engineID != "" && s.engines.Has(s.engineID) {
		return s.engineID
	}
	return s.engines.DefaultID(s.preferred)
}

// EngineID returns the engine runs are submitted to.
func (s *Session) EngineID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.effectiveEngineLocked()
}

// Engine returns the engine runs are submitted to.
func (s *Session) Engine() (registry.Engine, bool) {
	return s.engines.Get(s.EngineID())
}

// SelectEngine switches engines. An unknown or empty id falls back to the
// default engine; the substitution is logged, not returned. The effective id
// is returned.
func (s *Session) SelectEngine(id string) string {
	s.mu.Lock()
	if id == "" || !s.engines.Has(id) {
		fallback := s.engines.DefaultID(s.preferred)
		s.logger.Warn("engine selection fallback", "error", &UnknownEngineError{ID: id, Fallback: fallback})
		id = fallback
	}
	s.engineID = id
	s.mu.Unlock()

	s.persist("engine", func(ctx context.Context) error {
		return s.store.SetEngine(ctx, s.key, id)
	})
	return id
}

// Keymap returns the current key bindings.
func (s *Session) Keymap() *keymap.Keymap {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keymap
}

// RebuildKeymap recomputes the key bindings from the engine registry. Call it
// after the registry changes.
func (s *Session) RebuildKeymap() {
	km := keymap.Build(s.keys, s.triggerRun, s.engines.List(), func(id string) { s.SelectEngine(id) })

	s.mu.Lock()
	s.keymap = km
	s.mu.Unlock()
}

// triggerRun is the run-query key action.
func (s *Session) triggerRun() {
	if _, err := s.Run(context.Background()); err != nil {
		s.logger.Debug("keyboard run did not complete", "error", err)
	}
}
