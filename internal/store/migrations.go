package store

import (
	"database/sql"
	"fmt"
)

// currentSchemaVersion is the latest schema version.
const currentSchemaVersion = 2

// Migrate runs forward migrations to bring the database schema up to date.
func (db *DB) Migrate() error {
	if _, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	version := 0
	row := db.conn.QueryRow("SELECT version FROM schema_version LIMIT 1")
	if err := row.Scan(&version); err != nil {
		// No rows means version 0 (fresh database).
		version = 0
	}

	migrations := []func(*sql.Tx) error{migrateV1, migrateV2}
	for i, migrate := range migrations {
		next := i + 1
		if version >= next {
			continue
		}
		if err := db.inTx(func(tx *sql.Tx) error {
			if err := migrate(tx); err != nil {
				return err
			}
			return setVersion(tx, next)
		}); err != nil {
			return fmt.Errorf("migration v%d: %w", next, err)
		}
	}

	return nil
}

func setVersion(tx *sql.Tx, version int) error {
	if _, err := tx.Exec("DELETE FROM schema_version"); err != nil {
		return err
	}
	_, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version)
	return err
}

func execAll(tx *sql.Tx, statements []string) error {
	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("executing %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func firstLine(stmt string) string {
	for i, c := range stmt {
		if c == '\n' {
			return stmt[:i]
		}
	}
	return stmt
}

// migrateV1 creates runs, measurements and failures.
func migrateV1(tx *sql.Tx) error {
	return execAll(tx, []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			started_at  TEXT NOT NULL,
			finished_at TEXT,
			language    TEXT NOT NULL,
			source      TEXT NOT NULL,
			columns     TEXT NOT NULL,
			projects    INTEGER NOT NULL DEFAULT 0,
			version     TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS measurements (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id       INTEGER NOT NULL REFERENCES runs(id),
			project_id   TEXT NOT NULL,
			metric       TEXT NOT NULL,
			kind         TEXT NOT NULL,
			value_number REAL,
			value_text   TEXT
		)`,

		`CREATE TABLE IF NOT EXISTS failures (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id     INTEGER NOT NULL REFERENCES runs(id),
			project_id TEXT NOT NULL,
			path       TEXT NOT NULL,
			metric     TEXT,
			kind       TEXT NOT NULL,
			message    TEXT NOT NULL,
			at         TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_measurements_run ON measurements(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_measurements_project ON measurements(project_id)`,
		`CREATE INDEX IF NOT EXISTS idx_failures_run ON failures(run_id)`,
	})
}

// migrateV2 gives every result row its own record so rows survive when two
// projects share an identity or a run measures no metric columns. Cells
// written by v1 are grouped into one row per project identity.
func migrateV2(tx *sql.Tx) error {
	return execAll(tx, []string{
		`CREATE TABLE IF NOT EXISTS result_rows (
			run_id     INTEGER NOT NULL REFERENCES runs(id),
			seq        INTEGER NOT NULL,
			project_id TEXT NOT NULL,
			path       TEXT NOT NULL,
			PRIMARY KEY (run_id, seq)
		)`,

		`ALTER TABLE measurements ADD COLUMN row_seq INTEGER`,

		`INSERT INTO result_rows (run_id, seq, project_id, path)
		SELECT run_id, ROW_NUMBER() OVER (PARTITION BY run_id ORDER BY first_id) - 1, project_id, ''
		FROM (
			SELECT run_id, project_id, MIN(id) AS first_id
			FROM measurements GROUP BY run_id, project_id
		)`,

		`UPDATE measurements SET row_seq = (
			SELECT r.seq FROM result_rows r
			WHERE r.run_id = measurements.run_id AND r.project_id = measurements.project_id
		)`,

		`CREATE INDEX IF NOT EXISTS idx_measurements_row ON measurements(run_id, row_seq)`,
	})
}
