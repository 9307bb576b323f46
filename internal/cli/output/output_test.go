package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/leapstack-labs/querycomposer/internal/notifier"
	"github.com/leapstack-labs/querycomposer/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() *store.Result {
	return &store.Result{
		Columns: []string{"id", "name"},
		Rows:    [][]any{{1, "alpha"}, {2, nil}},
	}
}

func newTestRenderer(mode Mode) (*Renderer, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	return NewRenderer(&out, &errOut, mode), &out, &errOut
}

func TestParseMode(t *testing.T) {
	tests := map[string]Mode{
		"":         ModeAuto,
		"auto":     ModeAuto,
		"TABLE":    ModeTable,
		"text":     ModeTable,
		"json":     ModeJSON,
		"csv":      ModeCSV,
		"md":       ModeMarkdown,
		"markdown": ModeMarkdown,
		"xml":      ModeAuto,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseMode(in), in)
	}
}

func TestNewRenderer_AutoModeWhenPiped(t *testing.T) {
	r, _, _ := newTestRenderer(ModeAuto)
	assert.Equal(t, ModeMarkdown, r.Mode())
	assert.False(t, IsTerminal(&bytes.Buffer{}))
}

func TestRenderer_Result(t *testing.T) {
	t.Run("table", func(t *testing.T) {
		r, out, _ := newTestRenderer(ModeTable)
		require.NoError(t, r.Result(sampleResult()))
		assert.Contains(t, out.String(), "alpha")
		assert.Contains(t, out.String(), "NULL")
		assert.Contains(t, out.String(), "(2 rows)")
	})

	t.Run("markdown", func(t *testing.T) {
		r, out, _ := newTestRenderer(ModeMarkdown)
		require.NoError(t, r.Result(sampleResult()))
		assert.Contains(t, strings.ToLower(out.String()), "| id | name |")
		assert.Contains(t, out.String(), "| 1 | alpha |")
		assert.Contains(t, out.String(), "(2 rows)")
	})

	t.Run("csv", func(t *testing.T) {
		r, out, _ := newTestRenderer(ModeCSV)
		require.NoError(t, r.Result(sampleResult()))
		assert.Contains(t, strings.ToLower(out.String()), "id,name")
		assert.Contains(t, out.String(), "2,NULL")
		assert.NotContains(t, out.String(), "rows)")
	})

	t.Run("json", func(t *testing.T) {
		r, out, _ := newTestRenderer(ModeJSON)
		require.NoError(t, r.Result(sampleResult()))

		var rows []map[string]any
		require.NoError(t, json.Unmarshal(out.Bytes(), &rows))
		require.Len(t, rows, 2)
		assert.Equal(t, "alpha", rows[0]["name"])
		assert.Nil(t, rows[1]["name"])
	})

	t.Run("empty", func(t *testing.T) {
		r, out, _ := newTestRenderer(ModeTable)
		require.NoError(t, r.Result(nil))
		assert.Equal(t, "(0 rows)\n", out.String())
	})

	t.Run("truncated warns", func(t *testing.T) {
		r, _, errOut := newTestRenderer(ModeMarkdown)
		res := sampleResult()
		res.Truncated = true
		require.NoError(t, r.Result(res))
		assert.Contains(t, errOut.String(), "truncated to 2 rows")
	})
}

func TestRenderer_Execution(t *testing.T) {
	t.Run("failed", func(t *testing.T) {
		r, out, errOut := newTestRenderer(ModeTable)
		require.NoError(t, r.Execution(&store.Execution{ID: "e1", Status: store.ExecutionFailed, Error: "no such table: x"}))
		assert.Empty(t, out.String())
		assert.Contains(t, errOut.String(), "no such table: x")
	})

	t.Run("done", func(t *testing.T) {
		r, out, errOut := newTestRenderer(ModeMarkdown)
		require.NoError(t, r.Execution(&store.Execution{ID: "e2", EngineID: "duck", Status: store.ExecutionDone, Result: sampleResult()}))
		assert.Contains(t, out.String(), "alpha")
		assert.Contains(t, errOut.String(), "execution e2 on duck")
	})

	t.Run("json", func(t *testing.T) {
		r, out, _ := newTestRenderer(ModeJSON)
		require.NoError(t, r.Execution(&store.Execution{ID: "e3", Status: store.ExecutionDone}))
		assert.Contains(t, out.String(), `"id": "e3"`)
	})
}

func TestRenderer_StatusMessages(t *testing.T) {
	r, out, errOut := newTestRenderer(ModeTable)
	r.Success("saved %d", 1)
	r.Error("boom")
	r.Info("note")

	assert.Empty(t, out.String())
	// stderr is not a terminal, so no escape codes are emitted
	assert.Equal(t, "saved 1\nboom\nnote\n", errOut.String())
	assert.Equal(t, "boom", r.Styles().Notice(notifier.LevelError).Render("boom"))
}
