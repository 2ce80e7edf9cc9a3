package store

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	_ "modernc.org/sqlite"
)

// MemoryPath opens a private in-memory history that vanishes on Close.
const MemoryPath = ":memory:"

// pragmas are applied to every connection before migrating. A measure run
// writes while a concurrent `runs` command reads, so writers wait for the
// lock instead of failing immediately.
var pragmas = []string{
	"PRAGMA foreign_keys=ON",
	"PRAGMA busy_timeout=5000",
}

// DB is the run history database.
type DB struct {
	conn *sql.DB
	path string
}

// Open opens or creates the history database at path, creating its parent
// directory. A leading ~ expands to the home directory and MemoryPath opens
// an in-memory database.
func Open(path string) (*DB, error) {
	if path == MemoryPath || path == "" {
		return OpenInMemory()
	}

	path, err := expandHome(path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating directory for %s", path)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	// WAL lets `runs` read while a measurement run is flushing.
	return setup(conn, path, append([]string{"PRAGMA journal_mode=WAL"}, pragmas...))
}

// OpenInMemory opens an in-memory database.
func OpenInMemory() (*DB, error) {
	conn, err := sql.Open("sqlite", MemoryPath)
	if err != nil {
		return nil, errors.Wrap(err, "opening in-memory history")
	}
	// Every pooled connection would get its own empty database.
	conn.SetMaxOpenConns(1)
	return setup(conn, MemoryPath, pragmas)
}

func setup(conn *sql.DB, path string, stmts []string) (*DB, error) {
	for _, stmt := range stmts {
		if _, err := conn.Exec(stmt); err != nil {
			_ = conn.Close()
			return nil, errors.Wrapf(err, "%s on %s", stmt, path)
		}
	}

	db := &DB{conn: conn, path: path}
	if err := db.Migrate(); err != nil {
		_ = conn.Close()
		return nil, errors.Wrapf(err, "migrating %s", path)
	}
	return db, nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "resolving home directory")
	}
	return filepath.Join(home, strings.TrimPrefix(path[1:], "/")), nil
}

// Path returns the database location, or MemoryPath.
func (db *DB) Path() string {
	return db.path
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying sql.DB for advanced queries.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// inTx runs fn in a transaction, committing only if fn succeeds.
func (db *DB) inTx(fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
