// Package keymap builds the composer's key bindings.
//
// The run-query key is always bound. The first nine engines, in registry
// order, get a numeric change-engine shortcut ("<prefix>-1" .. "<prefix>-9");
// later engines get none.
package keymap

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/leapstack-labs/querycomposer/internal/registry"
)

// MaxEngineShortcuts is the number of numeric keys available for engines.
const MaxEngineShortcuts = 9

// Default key identifiers.
const (
	DefaultRunQueryKey     = "Shift-Enter"
	DefaultChangeEngineKey = "Alt"
)

// Binding action names.
const (
	ActionRunQuery     = "run_query"
	ActionChangeEngine = "change_engine"
)

// Action is a bound zero-argument action.
type Action func()

// Keys names the fixed key identifiers.
type Keys struct {
	RunQuery     string `koanf:"run_query"`
	ChangeEngine string `koanf:"change_engine"`
}

// DefaultKeys returns the default key identifiers.
func DefaultKeys() Keys {
	return Keys{RunQuery: DefaultRunQueryKey, ChangeEngine: DefaultChangeEngineKey}
}

func (k Keys) withDefaults() Keys {
	if k.RunQuery == "" {
		k.RunQuery = DefaultRunQueryKey
	}
	if k.ChangeEngine == "" {
		k.ChangeEngine = DefaultChangeEngineKey
	}
	return k
}

// EngineKey returns the key identifier for the 1-based engine position.
func (k Keys) EngineKey(position int) string {
	return k.withDefaults().ChangeEngine + "-" + strconv.Itoa(position)
}

// Validate reports a run-query key that collides with an engine shortcut.
func (k Keys) Validate() error {
	k = k.withDefaults()
	for position := 1; position <= MaxEngineShortcuts; position++ {
		if key := k.EngineKey(position); key == k.RunQuery {
			return fmt.Errorf("run_query key %q collides with the shortcut for engine %d", key, position)
		}
	}
	return nil
}

// Binding describes one entry of a built keymap without its action.
type Binding struct {
	Key      string `json:"key"`
	Action   string `json:"action"`
	EngineID string `json:"engineId,omitempty"`
}

// Keymap maps key identifiers to actions.
type Keymap struct {
	actions  map[string]Action
	bindings []Binding
}

// Build returns a fresh keymap. It never mutates its inputs, and identical
// inputs yield identical bindings. The run key always wins: an engine whose
// shortcut collides with it gets no shortcut.
func Build(keys Keys, run Action, engines []registry.Engine, selectEngine func(id string)) *Keymap {
	keys = keys.withDefaults()
	km := &Keymap{actions: make(map[string]Action, len(engines)+1)}

	km.actions[keys.RunQuery] = run
	km.bindings = append(km.bindings, Binding{Key: keys.RunQuery, Action: ActionRunQuery})

	for i, engine := range engines {
		position := i + 1
		if position > MaxEngineShortcuts {
			// No number keys left.
			break
		}
		id := engine.ID
		key := keys.EngineKey(position)
		if _, taken := km.actions[key]; taken {
			continue
		}
		km.actions[key] = func() { selectEngine(id) }
		km.bindings = append(km.bindings, Binding{Key: key, Action: ActionChangeEngine, EngineID: id})
	}

	return km
}

// Lookup returns the action bound to key.
func (k *Keymap) Lookup(key string) (Action, bool) {
	a, ok := k.actions[key]
	return a, ok
}

// Dispatch runs the action bound to key and reports whether one was found.
func (k *Keymap) Dispatch(key string) bool {
	a, ok := k.actions[key]
	if !ok || a == nil {
		return false
	}
	a()
	return true
}

// Keys returns the bound key identifiers, sorted.
func (k *Keymap) Keys() []string {
	out := make([]string, 0, len(k.actions))
	for key := range k.actions {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

// Bindings returns a description of every binding in build order.
func (k *Keymap) Bindings() []Binding {
	out := make([]Binding, len(k.bindings))
	copy(out, k.bindings)
	return out
}

// Binding returns the description of the binding for key.
func (k *Keymap) Binding(key string) (Binding, bool) {
	for _, b := range k.bindings {
		if b.Key == key {
			return b, true
		}
	}
	return Binding{}, false
}

// Len returns the number of bindings.
func (k *Keymap) Len() int {
	return len(k.bindings)
}
