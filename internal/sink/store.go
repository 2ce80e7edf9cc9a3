package sink

import (
	"time"

	"github.com/cockroachdb/errors"

	"github.com/blackwell-systems/projmetrics/internal/measure"
	"github.com/blackwell-systems/projmetrics/internal/store"
)

// StoreWriter records a run and its rows in the run history database.
type StoreWriter struct {
	db       *store.DB
	run      store.Run
	projects int
	now      func() time.Time
}

// NewStoreWriter returns a writer that records into db. The run row is
// created when the header is written.
func NewStoreWriter(db *store.DB, language, source, version string) *StoreWriter {
	return &StoreWriter{
		db:  db,
		run: store.Run{Language: language, Source: source, Version: version},
		now: time.Now,
	}
}

// RunID returns the ID of the recorded run, zero before the header.
func (s *StoreWriter) RunID() int64 {
	return s.run.ID
}

// WriteHeader creates the run record.
func (s *StoreWriter) WriteHeader(columns []string) error {
	s.run.StartedAt = s.now()
	s.run.Columns = append([]string(nil), columns...)
	if _, err := s.db.CreateRun(&s.run); err != nil {
		return errors.Wrap(err, "recording run")
	}
	return nil
}

// WriteRows stores one result row per project with its cells and failures.
// Rows are numbered in write order across the whole run.
func (s *StoreWriter) WriteRows(columns []string, rows []measure.Row) error {
	var (
		rs []store.ResultRow
		fs []store.FailureRecord
	)
	for i, row := range rows {
		r := store.ResultRow{
			RunID:     s.run.ID,
			Seq:       s.projects + i,
			ProjectID: row.ProjectID,
			Path:      row.Path,
		}
		for c := 1; c < len(columns); c++ {
			v := measure.Null()
			if c < len(row.Values) {
				v = row.Values[c]
			}
			r.Cells = append(r.Cells, toMeasurement(s.run.ID, row.ProjectID, columns[c], v))
		}
		rs = append(rs, r)
		for _, f := range row.Failures {
			fs = append(fs, toFailureRecord(s.run.ID, f))
		}
	}

	if err := s.db.InsertRows(rs); err != nil {
		return errors.Wrap(err, "storing rows")
	}
	if err := s.db.InsertFailures(fs); err != nil {
		return errors.Wrap(err, "storing failures")
	}
	s.projects += len(rows)
	return nil
}

// Close marks the run finished.
func (s *StoreWriter) Close() error {
	if s.run.ID == 0 {
		return nil
	}
	return s.db.FinishRun(s.run.ID, s.now(), s.projects)
}

func toMeasurement(runID int64, projectID, metric string, v measure.Value) store.Measurement {
	m := store.Measurement{RunID: runID, ProjectID: projectID, Metric: metric, Kind: v.Kind().String()}
	switch v.Kind() {
	case measure.KindNumber, measure.KindBool:
		f, _ := v.Float()
		m.Number = &f
	case measure.KindString:
		t := v.Text("")
		m.Text = &t
	}
	return m
}

func toFailureRecord(runID int64, f measure.Failure) store.FailureRecord {
	msg := ""
	if f.Err != nil {
		msg = f.Err.Error()
	}
	return store.FailureRecord{
		RunID:     runID,
		ProjectID: f.ProjectID,
		Path:      f.Path,
		Metric:    f.Metric,
		Kind:      string(f.Kind),
		Message:   msg,
		At:        f.At,
	}
}

// ValueFromMeasurement converts a stored cell back into a measurement value.
func ValueFromMeasurement(m store.Measurement) measure.Value {
	switch m.Kind {
	case measure.KindNumber.String():
		if m.Number != nil {
			return measure.Number(*m.Number)
		}
	case measure.KindBool.String():
		if m.Number != nil {
			return measure.Bool(*m.Number != 0)
		}
	case measure.KindString.String():
		if m.Text != nil {
			return measure.String(*m.Text)
		}
	}
	return measure.Null()
}
