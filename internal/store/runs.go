package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// CreateRun inserts a new run and returns its ID.
func (db *DB) CreateRun(run *Run) (int64, error) {
	cols, err := json.Marshal(run.Columns)
	if err != nil {
		return 0, fmt.Errorf("encoding columns: %w", err)
	}

	res, err := db.conn.Exec(`
		INSERT INTO runs (started_at, language, source, columns, version)
		VALUES (?, ?, ?, ?, ?)`,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.Language,
		run.Source,
		string(cols),
		run.Version,
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	run.ID = id
	return id, nil
}

// FinishRun stamps a run with its completion time and project count.
func (db *DB) FinishRun(id int64, finishedAt time.Time, projects int) error {
	res, err := db.conn.Exec(
		`UPDATE runs SET finished_at = ?, projects = ? WHERE id = ?`,
		finishedAt.UTC().Format(time.RFC3339Nano), projects, id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("run %d not found", id)
	}
	return nil
}

// InsertRows writes result rows and their cells in a single transaction.
func (db *DB) InsertRows(rows []ResultRow) error {
	if len(rows) == 0 {
		return nil
	}

	return db.inTx(func(tx *sql.Tx) error {
		rowStmt, err := tx.Prepare(`
			INSERT INTO result_rows (run_id, seq, project_id, path)
			VALUES (?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer func() { _ = rowStmt.Close() }()

		cellStmt, err := tx.Prepare(`
			INSERT INTO measurements (run_id, row_seq, project_id, metric, kind, value_number, value_text)
			VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer func() { _ = cellStmt.Close() }()

		for _, r := range rows {
			if _, err := rowStmt.Exec(r.RunID, r.Seq, r.ProjectID, r.Path); err != nil {
				return fmt.Errorf("inserting row %d (%s): %w", r.Seq, r.ProjectID, err)
			}
			for _, m := range r.Cells {
				if _, err := cellStmt.Exec(r.RunID, r.Seq, r.ProjectID, m.Metric, m.Kind, m.Number, m.Text); err != nil {
					return fmt.Errorf("inserting %s/%s: %w", r.ProjectID, m.Metric, err)
				}
			}
		}
		return nil
	})
}

// InsertFailures writes failure records in a single transaction.
func (db *DB) InsertFailures(fs []FailureRecord) error {
	if len(fs) == 0 {
		return nil
	}

	return db.inTx(func(tx *sql.Tx) error {
		for _, f := range fs {
			if _, err := tx.Exec(`
				INSERT INTO failures (run_id, project_id, path, metric, kind, message, at)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				f.RunID, f.ProjectID, f.Path, nullString(f.Metric), f.Kind, f.Message,
				f.At.UTC().Format(time.RFC3339Nano),
			); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetRun returns a run by ID, or nil if it does not exist.
func (db *DB) GetRun(id int64) (*Run, error) {
	row := db.conn.QueryRow(`
		SELECT id, started_at, finished_at, language, source, columns, projects, version
		FROM runs WHERE id = ?`, id)
	return scanRun(row)
}

// GetLatestRun returns the most recent run, or nil if none exist.
func (db *DB) GetLatestRun() (*Run, error) {
	row := db.conn.QueryRow(`
		SELECT id, started_at, finished_at, language, source, columns, projects, version
		FROM runs ORDER BY id DESC LIMIT 1`)
	return scanRun(row)
}

// ListRuns returns up to limit runs, newest first. A limit <= 0 returns all.
func (db *DB) ListRuns(limit int) ([]Run, error) {
	query := `
		SELECT id, started_at, finished_at, language, source, columns, projects, version
		FROM runs ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// GetRows returns a run's result rows in the order they were written, each
// with its cells.
func (db *DB) GetRows(runID int64) ([]ResultRow, error) {
	rows, err := db.conn.Query(`
		SELECT run_id, seq, project_id, path
		FROM result_rows WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var (
		out   []ResultRow
		index = map[int]int{}
	)
	for rows.Next() {
		var r ResultRow
		if err := rows.Scan(&r.RunID, &r.Seq, &r.ProjectID, &r.Path); err != nil {
			return nil, err
		}
		index[r.Seq] = len(out)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ms, err := db.GetMeasurements(runID)
	if err != nil {
		return nil, err
	}
	for _, m := range ms {
		if i, ok := index[m.RowSeq]; ok {
			out[i].Cells = append(out[i].Cells, m)
		}
	}
	return out, nil
}

// GetMeasurements returns all cells of a run in insertion order.
func (db *DB) GetMeasurements(runID int64) ([]Measurement, error) {
	rows, err := db.conn.Query(`
		SELECT run_id, COALESCE(row_seq, -1), project_id, metric, kind, value_number, value_text
		FROM measurements WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ms []Measurement
	for rows.Next() {
		var (
			m    Measurement
			num  sql.NullFloat64
			text sql.NullString
		)
		if err := rows.Scan(&m.RunID, &m.RowSeq, &m.ProjectID, &m.Metric, &m.Kind, &num, &text); err != nil {
			return nil, err
		}
		if num.Valid {
			m.Number = &num.Float64
		}
		if text.Valid {
			m.Text = &text.String
		}
		ms = append(ms, m)
	}
	return ms, rows.Err()
}

// GetFailures returns all failures recorded for a run.
func (db *DB) GetFailures(runID int64) ([]FailureRecord, error) {
	rows, err := db.conn.Query(`
		SELECT run_id, project_id, path, metric, kind, message, at
		FROM failures WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var fs []FailureRecord
	for rows.Next() {
		var (
			f      FailureRecord
			metric sql.NullString
			at     string
		)
		if err := rows.Scan(&f.RunID, &f.ProjectID, &f.Path, &metric, &f.Kind, &f.Message, &at); err != nil {
			return nil, err
		}
		f.Metric = metric.String
		f.At, _ = time.Parse(time.RFC3339Nano, at)
		fs = append(fs, f)
	}
	return fs, rows.Err()
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var (
		r        Run
		started  string
		finished sql.NullString
		cols     string
	)
	err := s.Scan(&r.ID, &started, &finished, &r.Language, &r.Source, &cols, &r.Projects, &r.Version)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
	if finished.Valid {
		t, _ := time.Parse(time.RFC3339Nano, finished.String)
		r.FinishedAt = &t
	}
	if err := json.Unmarshal([]byte(cols), &r.Columns); err != nil {
		return nil, fmt.Errorf("decoding columns for run %d: %w", r.ID, err)
	}
	return &r, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
