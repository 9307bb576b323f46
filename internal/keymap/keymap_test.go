package keymap

import (
	"fmt"
	"testing"

	"github.com/leapstack-labs/querycomposer/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func engines(n int) []registry.Engine {
	out := make([]registry.Engine, n)
	for i := range out {
		out[i] = registry.Engine{ID: fmt.Sprintf("engine-%d", i+1), OrderIndex: i}
	}
	return out
}

func TestBuild_RunQueryAlwaysBound(t *testing.T) {
	runs := 0
	km := Build(DefaultKeys(), func() { runs++ }, nil, func(string) {})

	assert.Equal(t, 1, km.Len())
	require.True(t, km.Dispatch("Shift-Enter"))
	assert.Equal(t, 1, runs)
}

func TestBuild_RunKeyWinsOverEngineShortcut(t *testing.T) {
	runs := 0
	var selected []string
	keys := Keys{RunQuery: "Alt-1", ChangeEngine: "Alt"}
	km := Build(keys, func() { runs++ }, engines(2), func(id string) { selected = append(selected, id) })

	require.True(t, km.Dispatch("Alt-1"))
	assert.Equal(t, 1, runs)
	assert.Empty(t, selected)

	assert.Equal(t, []Binding{
		{Key: "Alt-1", Action: ActionRunQuery},
		{Key: "Alt-2", Action: ActionChangeEngine, EngineID: "engine-2"},
	}, km.Bindings())
	assert.Equal(t, len(km.Bindings()), km.Len())
	assert.Equal(t, len(km.Keys()), km.Len())
}

func TestKeys_Validate(t *testing.T) {
	require.NoError(t, DefaultKeys().Validate())
	require.NoError(t, Keys{RunQuery: "Alt-10", ChangeEngine: "Alt"}.Validate())

	err := Keys{RunQuery: "Ctrl-9", ChangeEngine: "Ctrl"}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collides")

	require.Error(t, Keys{RunQuery: "Alt-3"}.Validate(), "default prefix applies")
}

func TestBuild_EngineShortcuts(t *testing.T) {
	var selected []string
	km := Build(DefaultKeys(), func() {}, engines(3), func(id string) { selected = append(selected, id) })

	assert.Equal(t, []string{"Alt-1", "Alt-2", "Alt-3", "Shift-Enter"}, km.Keys())

	require.True(t, km.Dispatch("Alt-2"))
	require.True(t, km.Dispatch("Alt-1"))
	assert.Equal(t, []string{"engine-2", "engine-1"}, selected)

	assert.False(t, km.Dispatch("Alt-4"))
}

func TestBuild_TruncatesAfterNine(t *testing.T) {
	var selected []string
	km := Build(DefaultKeys(), func() {}, engines(12), func(id string) { selected = append(selected, id) })

	assert.Equal(t, 10, km.Len(), "run key plus nine engines")
	for i := 1; i <= 9; i++ {
		_, ok := km.Lookup(fmt.Sprintf("Alt-%d", i))
		assert.True(t, ok, "position %d should be bound", i)
	}
	for i := 10; i <= 12; i++ {
		_, ok := km.Lookup(fmt.Sprintf("Alt-%d", i))
		assert.False(t, ok, "position %d should not be bound", i)
	}

	for _, b := range km.Bindings() {
		assert.NotContains(t, []string{"engine-10", "engine-11", "engine-12"}, b.EngineID)
	}

	km.Dispatch("Alt-9")
	assert.Equal(t, []string{"engine-9"}, selected)
}

func TestBuild_CustomKeys(t *testing.T) {
	km := Build(Keys{RunQuery: "Cmd-Enter", ChangeEngine: "Ctrl"}, func() {}, engines(1), func(string) {})
	assert.Equal(t, []string{"Cmd-Enter", "Ctrl-1"}, km.Keys())

	partial := Build(Keys{ChangeEngine: "Meta"}, func() {}, engines(1), func(string) {})
	assert.Equal(t, []string{"Meta-1", "Shift-Enter"}, partial.Keys())
}

func TestBuild_IsPure(t *testing.T) {
	in := engines(11)
	snapshot := append([]registry.Engine(nil), in...)

	a := Build(DefaultKeys(), func() {}, in, func(string) {})
	b := Build(DefaultKeys(), func() {}, in, func(string) {})

	assert.Equal(t, a.Bindings(), b.Bindings())
	assert.Equal(t, a.Keys(), b.Keys())
	assert.Equal(t, snapshot, in, "inputs must not be mutated")
}

func TestBuild_Bindings(t *testing.T) {
	km := Build(DefaultKeys(), func() {}, engines(2), func(string) {})
	assert.Equal(t, []Binding{
		{Key: "Shift-Enter", Action: "run_query"},
		{Key: "Alt-1", Action: "change_engine", EngineID: "engine-1"},
		{Key: "Alt-2", Action: "change_engine", EngineID: "engine-2"},
	}, km.Bindings())
}

func TestKeymap_Binding(t *testing.T) {
	km := Build(DefaultKeys(), func() {}, engines(2), func(string) {})

	b, ok := km.Binding("Alt-2")
	require.True(t, ok)
	assert.Equal(t, Binding{Key: "Alt-2", Action: ActionChangeEngine, EngineID: "engine-2"}, b)

	b, ok = km.Binding("Shift-Enter")
	require.True(t, ok)
	assert.Equal(t, ActionRunQuery, b.Action)

	_, ok = km.Binding("Alt-3")
	assert.False(t, ok)
}
