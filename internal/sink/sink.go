// Package sink accumulates measured rows and writes them out batch by batch.
package sink

import (
	"github.com/cockroachdb/errors"

	"github.com/blackwell-systems/projmetrics/internal/measure"
)

// Writer is a destination for flushed rows. WriteHeader is called exactly
// once, before the first WriteRows.
type Writer interface {
	WriteHeader(columns []string) error
	WriteRows(columns []string, rows []measure.Row) error
	Close() error
}

// Accumulator buffers rows and hands them to its writers on Flush. It
// implements measure.Sink.
type Accumulator struct {
	columns       []string
	writers       []Writer
	buf           []measure.Row
	flushes       int
	headerWritten bool
}

// NewAccumulator returns an accumulator for rows following columns.
func NewAccumulator(columns []string, writers ...Writer) *Accumulator {
	return &Accumulator{
		columns: append([]string(nil), columns...),
		writers: writers,
	}
}

// Append buffers rows until the next Flush.
func (a *Accumulator) Append(rows []measure.Row) {
	a.buf = append(a.buf, rows...)
}

// Pending returns the number of buffered rows.
func (a *Accumulator) Pending() int {
	return len(a.buf)
}

// Flushes returns how many non-empty flushes have been written.
func (a *Accumulator) Flushes() int {
	return a.flushes
}

// Flush writes buffered rows to every writer and returns them as a table
// segment. The header goes out with the first flush only. Flushing an empty
// buffer is a no-op and returns nil.
func (a *Accumulator) Flush() (*measure.Table, error) {
	if len(a.buf) == 0 {
		return nil, nil
	}
	if err := a.writeHeader(); err != nil {
		return nil, err
	}

	for _, w := range a.writers {
		if err := w.WriteRows(a.columns, a.buf); err != nil {
			return nil, errors.Wrap(err, "writing rows")
		}
	}

	table := &measure.Table{Columns: a.columns, Rows: a.buf}
	a.buf = nil
	a.flushes++
	return table, nil
}

// Close flushes anything pending, makes sure a header exists even for an
// empty run, and closes every writer.
func (a *Accumulator) Close() error {
	var errs error
	if _, err := a.Flush(); err != nil {
		errs = errors.CombineErrors(errs, err)
	}
	if err := a.writeHeader(); err != nil {
		errs = errors.CombineErrors(errs, err)
	}
	for _, w := range a.writers {
		if err := w.Close(); err != nil {
			errs = errors.CombineErrors(errs, err)
		}
	}
	return errs
}

func (a *Accumulator) writeHeader() error {
	if a.headerWritten {
		return nil
	}
	for _, w := range a.writers {
		if err := w.WriteHeader(a.columns); err != nil {
			return errors.Wrap(err, "writing header")
		}
	}
	a.headerWritten = true
	return nil
}
