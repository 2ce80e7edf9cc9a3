package store

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func ptr[T any](v T) *T { return &v }

func TestOpen_CreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "runs.db")
	db, err := Open(path)
	require.NoError(t, err)
	defer db.Close()

	assert.FileExists(t, path)
	assert.Equal(t, path, db.Path())
}

func TestOpen_ExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	db, err := Open("~/history/runs.db")
	require.NoError(t, err)
	defer db.Close()

	assert.FileExists(t, filepath.Join(home, "history", "runs.db"))
}

func TestOpen_MemoryPath(t *testing.T) {
	db, err := Open(MemoryPath)
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, MemoryPath, db.Path())
	_, err = db.CreateRun(&Run{StartedAt: time.Now(), Language: "r", Source: "/x", Columns: []string{"id"}, Version: "dev"})
	assert.NoError(t, err)
}

func TestMigrate_Idempotent(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Migrate())

	var version int
	require.NoError(t, db.Conn().QueryRow("SELECT version FROM schema_version").Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)
}

func TestRuns_CreateFinishGet(t *testing.T) {
	db := openTestDB(t)

	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	run := &Run{
		StartedAt: started,
		Language:  "python",
		Source:    "/data/projects",
		Columns:   []string{"id", "count_loc"},
		Version:   "dev",
	}
	id, err := db.CreateRun(run)
	require.NoError(t, err)
	assert.Equal(t, id, run.ID)

	got, err := db.GetRun(id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Nil(t, got.FinishedAt)
	assert.Equal(t, []string{"id", "count_loc"}, got.Columns)
	assert.True(t, started.Equal(got.StartedAt))

	require.NoError(t, db.FinishRun(id, started.Add(time.Minute), 7))
	got, err = db.GetRun(id)
	require.NoError(t, err)
	require.NotNil(t, got.FinishedAt)
	assert.Equal(t, 7, got.Projects)
}

func TestRuns_MissingReturnsNil(t *testing.T) {
	db := openTestDB(t)

	got, err := db.GetRun(42)
	require.NoError(t, err)
	assert.Nil(t, got)

	latest, err := db.GetLatestRun()
	require.NoError(t, err)
	assert.Nil(t, latest)

	assert.Error(t, db.FinishRun(42, time.Now(), 0))
}

func TestListRuns_NewestFirst(t *testing.T) {
	db := openTestDB(t)
	for _, lang := range []string{"python", "r", "python"} {
		_, err := db.CreateRun(&Run{StartedAt: time.Now(), Language: lang, Source: "/x", Columns: []string{"id"}, Version: "dev"})
		require.NoError(t, err)
	}

	runs, err := db.ListRuns(2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Greater(t, runs[0].ID, runs[1].ID)

	all, err := db.ListRuns(0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	latest, err := db.GetLatestRun()
	require.NoError(t, err)
	assert.Equal(t, all[0].ID, latest.ID)
}

func TestRows_NullsRoundTrip(t *testing.T) {
	db := openTestDB(t)
	id, err := db.CreateRun(&Run{StartedAt: time.Now(), Language: "python", Source: "/x", Columns: []string{"id", "a", "b", "c"}, Version: "dev"})
	require.NoError(t, err)

	require.NoError(t, db.InsertRows([]ResultRow{{
		RunID: id, Seq: 0, ProjectID: "p1", Path: "/x/p1",
		Cells: []Measurement{
			{Metric: "a", Kind: "number", Number: ptr(0.0)},
			{Metric: "b", Kind: "null"},
			{Metric: "c", Kind: "string", Text: ptr("MIT")},
		},
	}}))

	ms, err := db.GetMeasurements(id)
	require.NoError(t, err)
	require.Len(t, ms, 3)

	require.NotNil(t, ms[0].Number)
	assert.Equal(t, 0.0, *ms[0].Number)
	assert.Nil(t, ms[1].Number)
	assert.Nil(t, ms[1].Text)
	require.NotNil(t, ms[2].Text)
	assert.Equal(t, "MIT", *ms[2].Text)
	assert.Equal(t, "p1", ms[2].ProjectID)
}

func TestRows_DuplicateIdentitiesStayDistinct(t *testing.T) {
	db := openTestDB(t)
	id, err := db.CreateRun(&Run{StartedAt: time.Now(), Language: "python", Source: "/x", Columns: []string{"id", "count_loc"}, Version: "dev"})
	require.NoError(t, err)

	origin := "https://example.com/shared.git"
	require.NoError(t, db.InsertRows([]ResultRow{
		{RunID: id, Seq: 0, ProjectID: origin, Path: "/x/fork-a", Cells: []Measurement{{Metric: "count_loc", Kind: "number", Number: ptr(10.0)}}},
		{RunID: id, Seq: 1, ProjectID: origin, Path: "/x/fork-b", Cells: []Measurement{{Metric: "count_loc", Kind: "number", Number: ptr(20.0)}}},
	}))

	rows, err := db.GetRows(id)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "/x/fork-a", rows[0].Path)
	assert.Equal(t, "/x/fork-b", rows[1].Path)
	require.Len(t, rows[0].Cells, 1)
	require.Len(t, rows[1].Cells, 1)
	assert.Equal(t, 10.0, *rows[0].Cells[0].Number)
	assert.Equal(t, 20.0, *rows[1].Cells[0].Number)
}

func TestRows_IdentityOnlyRowsAreKept(t *testing.T) {
	db := openTestDB(t)
	id, err := db.CreateRun(&Run{StartedAt: time.Now(), Language: "python", Source: "/x", Columns: []string{"id"}, Version: "dev"})
	require.NoError(t, err)

	require.NoError(t, db.InsertRows([]ResultRow{
		{RunID: id, Seq: 0, ProjectID: "p1", Path: "/x/p1"},
		{RunID: id, Seq: 1, ProjectID: "p2", Path: "/x/p2"},
	}))

	rows, err := db.GetRows(id)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "p1", rows[0].ProjectID)
	assert.Empty(t, rows[0].Cells)
}

func TestMigrate_BackfillsRowsFromV1(t *testing.T) {
	conn, err := sql.Open("sqlite", MemoryPath)
	require.NoError(t, err)
	conn.SetMaxOpenConns(1)
	defer conn.Close()

	_, err = conn.Exec("CREATE TABLE schema_version (version INTEGER NOT NULL)")
	require.NoError(t, err)
	tx, err := conn.Begin()
	require.NoError(t, err)
	require.NoError(t, migrateV1(tx))
	require.NoError(t, setVersion(tx, 1))
	_, err = tx.Exec(`INSERT INTO runs (started_at, language, source, columns, version)
		VALUES ('2026-03-01T12:00:00Z', 'python', '/x', '["id","a"]', 'dev')`)
	require.NoError(t, err)
	_, err = tx.Exec(`INSERT INTO measurements (run_id, project_id, metric, kind, value_number)
		VALUES (1, 'p2', 'a', 'number', 2), (1, 'p1', 'a', 'number', 1)`)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	db := &DB{conn: conn, path: MemoryPath}
	require.NoError(t, db.Migrate())

	rows, err := db.GetRows(1)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "p2", rows[0].ProjectID)
	assert.Equal(t, "p1", rows[1].ProjectID)
	require.Len(t, rows[1].Cells, 1)
	assert.Equal(t, 1.0, *rows[1].Cells[0].Number)
}

func TestFailures_RoundTrip(t *testing.T) {
	db := openTestDB(t)
	id, err := db.CreateRun(&Run{StartedAt: time.Now(), Language: "python", Source: "/x", Columns: []string{"id"}, Version: "dev"})
	require.NoError(t, err)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, db.InsertFailures([]FailureRecord{
		{RunID: id, ProjectID: "p1", Path: "/x/p1", Metric: "license_type", Kind: "timeout", Message: "deadline exceeded", At: at},
		{RunID: id, ProjectID: "p2", Path: "/x/p2", Kind: "project", Message: "permission denied", At: at},
	}))

	fs, err := db.GetFailures(id)
	require.NoError(t, err)
	require.Len(t, fs, 2)
	assert.Equal(t, "license_type", fs[0].Metric)
	assert.Equal(t, "", fs[1].Metric)
	assert.Equal(t, "project", fs[1].Kind)
	assert.True(t, at.Equal(fs[0].At))
}

func TestInsert_EmptyIsNoop(t *testing.T) {
	db := openTestDB(t)
	assert.NoError(t, db.InsertRows(nil))
	assert.NoError(t, db.InsertFailures(nil))
}
