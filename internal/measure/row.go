package measure

import (
	"fmt"
	"time"
)

// IDColumn is the reserved column holding a project's identity.
const IDColumn = "id"

// FailureKind classifies why a metric or project produced no value.
type FailureKind string

const (
	// FailureError means the metric function returned an error.
	FailureError FailureKind = "error"
	// FailurePanic means the metric function panicked.
	FailurePanic FailureKind = "panic"
	// FailureTimeout means the metric exceeded the per-metric timeout.
	FailureTimeout FailureKind = "timeout"
	// FailureProject means the whole unit of work for a project failed.
	FailureProject FailureKind = "project"
)

// Failure records one metric (or project) that could not be measured.
type Failure struct {
	Kind      FailureKind
	Metric    string
	ProjectID string
	Path      string
	Err       error
	At        time.Time
}

// Error implements error so failures can be logged and wrapped directly.
func (f Failure) Error() string {
	if f.Metric == "" {
		return fmt.Sprintf("%s failure for %s: %v", f.Kind, f.ProjectID, f.Err)
	}
	return fmt.Sprintf("%s failure in %s for %s: %v", f.Kind, f.Metric, f.ProjectID, f.Err)
}

// Row is one project's measurements, aligned with the registry's columns.
// Values[0] is always the project identity.
type Row struct {
	ProjectID string
	Path      string
	Values    []Value
	Failures  []Failure
}

// Get returns the value stored under column name.
func (r Row) Get(columns []string, name string) (Value, bool) {
	for i, c := range columns {
		if c == name && i < len(r.Values) {
			return r.Values[i], true
		}
	}
	return Null(), false
}

// Map returns the row as a name to value mapping.
func (r Row) Map(columns []string) map[string]Value {
	m := make(map[string]Value, len(columns))
	for i, c := range columns {
		if i < len(r.Values) {
			m[c] = r.Values[i]
		} else {
			m[c] = Null()
		}
	}
	return m
}

// Table is an ordered segment of rows sharing one column set.
type Table struct {
	Columns []string
	Rows    []Row
}

// Len returns the number of rows in the table.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}
