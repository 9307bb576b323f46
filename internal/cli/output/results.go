package output

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/querycomposer/internal/store"
)

// Table renders headers and rows in the current mode. JSON mode emits one
// object per row keyed by header.
func (r *Renderer) Table(headers []string, rows [][]any) error {
	if r.mode == ModeJSON {
		objects := make([]map[string]any, 0, len(rows))
		for _, row := range rows {
			obj := make(map[string]any, len(headers))
			for i, h := range headers {
				if i < len(row) {
					obj[h] = row[i]
				}
			}
			objects = append(objects, obj)
		}
		return r.JSON(objects)
	}

	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetStyle(table.StyleLight)

	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	t.AppendHeader(header)

	for _, row := range rows {
		out := make(table.Row, len(row))
		for i, v := range row {
			out[i] = FormatValue(v)
		}
		t.AppendRow(out)
	}

	switch r.mode {
	case ModeCSV:
		t.RenderCSV()
	case ModeMarkdown:
		t.RenderMarkdown()
	default:
		t.Render()
	}
	return nil
}

// Result renders a query result followed by a row count in the human modes.
func (r *Renderer) Result(res *store.Result) error {
	if res == nil {
		res = &store.Result{}
	}
	human := r.mode == ModeTable || r.mode == ModeMarkdown

	switch {
	case human && len(res.Rows) == 0:
		_, _ = fmt.Fprintln(r.out, "(0 rows)")
		return nil
	case r.mode == ModeCSV && len(res.Columns) == 0:
		return nil
	}

	if err := r.Table(res.Columns, res.Rows); err != nil {
		return err
	}
	if human {
		_, _ = fmt.Fprintf(r.out, "(%d rows)\n", len(res.Rows))
	}
	if res.Truncated {
		r.Warning("Result truncated to %d rows", len(res.Rows))
	}
	return nil
}

// Execution renders a finished execution: its result, or its error.
func (r *Renderer) Execution(exec *store.Execution) error {
	if r.mode == ModeJSON {
		return r.JSON(exec)
	}
	if exec.Status == store.ExecutionFailed {
		r.Error("Execution %s failed: %s", exec.ID, exec.Error)
		return nil
	}
	if err := r.Result(exec.Result); err != nil {
		return err
	}
	r.Muted("execution %s on %s", exec.ID, exec.EngineID)
	return nil
}

// FormatValue formats a cell value; nil renders as NULL.
func FormatValue(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprintf("%v", v)
}
