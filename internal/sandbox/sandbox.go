// Package sandbox declares the contract of the external code-execution
// engine. The sync layer only supplies bytes and filenames and receives text
// or structured output back; execution semantics are the engine's business.
package sandbox

import "context"

// RunResult is the outcome of executing one code cell.
type RunResult struct {
	Stdout string `json:"stdout"`
	Result string `json:"result,omitempty"`
	Err    string `json:"error,omitempty"`
}

// Summary describes the loaded dataframe in enough detail for the planning
// assistant to work from; the sync layer treats it as opaque.
type Summary struct {
	Columns []string          `json:"columns"`
	Dtypes  map[string]string `json:"dtypes"`
	Missing map[string]int    `json:"missing"`
	Shape   [2]int            `json:"shape"`
	Sample  string            `json:"sample,omitempty"`
}

// ExportFormat selects the output encoding of ExportData.
type ExportFormat string

const (
	ExportCSV  ExportFormat = "csv"
	ExportXLSX ExportFormat = "xlsx"
)

// Engine is a single-owner handle to the execution environment. Callers pass
// it explicitly; the sync layer never holds a process-wide instance.
type Engine interface {
	Init(ctx context.Context) error
	LoadFile(ctx context.Context, data []byte, name string) error
	RunCode(ctx context.Context, code string) (RunResult, error)
	Summary(ctx context.Context) (Summary, error)
	ExportData(ctx context.Context, format ExportFormat) ([]byte, error)
}
