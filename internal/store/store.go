// Package store persists composer state in SQLite: the per-environment adhoc
// query, execution records, and data documents created from the composer.
package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ExecutionStatus is the lifecycle state of a query execution.
type ExecutionStatus string

// Execution statuses.
const (
	ExecutionRunning ExecutionStatus = "running"
	ExecutionDone    ExecutionStatus = "done"
	ExecutionFailed  ExecutionStatus = "failed"
)

// Result is the tabular outcome of an execution.
type Result struct {
	Columns   []string `json:"columns"`
	Rows      [][]any  `json:"rows"`
	Truncated bool     `json:"truncated,omitempty"`
}

// Execution is one submitted query.
type Execution struct {
	ID          string          `json:"id"`
	EngineID    string          `json:"engineId"`
	Query       string          `json:"query"`
	Status      ExecutionStatus `json:"status"`
	Result      *Result         `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
}

// CellType classifies a data document cell.
type CellType string

// CellQuery is a query cell.
const CellQuery CellType = "query"

// DataCell is one cell of a data document.
type DataCell struct {
	ID          string   `json:"id"`
	Position    int      `json:"position"`
	Type        CellType `json:"type"`
	Context     string   `json:"context"`
	EngineID    string   `json:"engineId"`
	ExecutionID string   `json:"executionId,omitempty"`
}

// DataDoc is a document assembled from composer content.
type DataDoc struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	CreatedAt time.Time   `json:"createdAt"`
	Cells     []*DataCell `json:"cells"`
}
