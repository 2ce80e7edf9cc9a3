// Package store provides SQLite persistence for measurement runs.
package store

import "time"

// Run is one invocation of the measurement pipeline.
type Run struct {
	ID         int64      `json:"id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Language   string     `json:"language"`
	Source     string     `json:"source"`
	Columns    []string   `json:"columns"`
	Projects   int        `json:"projects"`
	Version    string     `json:"version"`
}

// Measurement is one cell of a run's result table. Exactly one of Number
// and Text is set for non-null values; both are nil for null.
type Measurement struct {
	RunID     int64    `json:"run_id"`
	RowSeq    int      `json:"row_seq"`
	ProjectID string   `json:"project_id"`
	Metric    string   `json:"metric"`
	Kind      string   `json:"kind"`
	Number    *float64 `json:"number,omitempty"`
	Text      *string  `json:"text,omitempty"`
}

// ResultRow is one project's row of a run. Seq is the row's position in
// the run's output, so rows sharing a project identity stay distinct.
type ResultRow struct {
	RunID     int64         `json:"run_id"`
	Seq       int           `json:"seq"`
	ProjectID string        `json:"project_id"`
	Path      string        `json:"path"`
	Cells     []Measurement `json:"cells,omitempty"`
}

// FailureRecord is a persisted metric or project failure.
type FailureRecord struct {
	RunID     int64     `json:"run_id"`
	ProjectID string    `json:"project_id"`
	Path      string    `json:"path"`
	Metric    string    `json:"metric,omitempty"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	At        time.Time `json:"at"`
}
