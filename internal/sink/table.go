package sink

import (
	"io"

	"github.com/blackwell-systems/projmetrics/internal/measure"
	"github.com/blackwell-systems/projmetrics/internal/output"
)

// TableWriter renders each flushed batch as a styled terminal table.
type TableWriter struct {
	out io.Writer
}

// NewTableWriter returns a writer that prints to out.
func NewTableWriter(out io.Writer) *TableWriter {
	return &TableWriter{out: out}
}

// WriteHeader is a no-op; every batch table carries its own header.
func (t *TableWriter) WriteHeader([]string) error { return nil }

// WriteRows prints rows as one table.
func (t *TableWriter) WriteRows(columns []string, rows []measure.Row) error {
	tbl := output.NewTable(columns...)
	for _, row := range rows {
		tbl.AddRow(output.RowCells(row)...)
	}
	return tbl.Fprint(t.out)
}

// Close is a no-op.
func (t *TableWriter) Close() error { return nil }
