package executor

import (
	"database/sql"
	"time"

	"github.com/leapstack-labs/querycomposer/internal/store"
)

// persistTimeout bounds the write of an execution outcome.
const persistTimeout = 5 * time.Second

// collect reads at most maxRows rows. Values are normalized to JSON friendly
// types.
func collect(rows *sql.Rows, maxRows int) (*store.Result, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := &store.Result{Columns: cols, Rows: [][]any{}}
	for rows.Next() {
		if len(result.Rows) == maxRows {
			result.Truncated = true
			break
		}

		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range values {
			values[i] = normalize(v)
		}
		result.Rows = append(result.Rows, values)
	}
	return result, rows.Err()
}

func normalize(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	default:
		return val
	}
}
