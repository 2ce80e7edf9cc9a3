package sink

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/projmetrics/internal/measure"
)

var testColumns = []string{"id", "count_loc", "packageability"}

func testRow(id string, values ...measure.Value) measure.Row {
	return measure.Row{
		ProjectID: id,
		Path:      "/src/" + id,
		Values:    append([]measure.Value{measure.String(id)}, values...),
	}
}

// memWriter records calls for assertions.
type memWriter struct {
	headers int
	batches [][]measure.Row
	closed  bool
	failOn  int
}

func (m *memWriter) WriteHeader([]string) error {
	m.headers++
	return nil
}

func (m *memWriter) WriteRows(_ []string, rows []measure.Row) error {
	if m.failOn > 0 && len(m.batches)+1 == m.failOn {
		return errors.New("no space left on device")
	}
	m.batches = append(m.batches, rows)
	return nil
}

func (m *memWriter) Close() error {
	m.closed = true
	return nil
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestAccumulator_HeaderOnceAcrossFlushes(t *testing.T) {
	w := &memWriter{}
	acc := NewAccumulator(testColumns, w)

	for _, size := range []int{2, 2, 1} {
		rows := make([]measure.Row, size)
		for i := range rows {
			rows[i] = testRow("p", measure.Int(1), measure.Bool(true))
		}
		acc.Append(rows)
		table, err := acc.Flush()
		require.NoError(t, err)
		assert.Equal(t, size, table.Len())
		assert.Equal(t, testColumns, table.Columns)
		assert.Zero(t, acc.Pending())
	}

	require.NoError(t, acc.Close())
	assert.Equal(t, 1, w.headers)
	assert.Equal(t, 3, acc.Flushes())
	assert.True(t, w.closed)
}

func TestAccumulator_EmptyFlushIsNoop(t *testing.T) {
	w := &memWriter{}
	acc := NewAccumulator(testColumns, w)

	table, err := acc.Flush()
	require.NoError(t, err)
	assert.Nil(t, table)
	assert.Zero(t, w.headers)
	assert.Zero(t, acc.Flushes())
}

func TestAccumulator_CloseWritesHeaderForEmptyRun(t *testing.T) {
	w := &memWriter{}
	require.NoError(t, NewAccumulator(testColumns, w).Close())
	assert.Equal(t, 1, w.headers)
	assert.Empty(t, w.batches)
}

func TestAccumulator_WriterErrorPropagates(t *testing.T) {
	w := &memWriter{failOn: 1}
	acc := NewAccumulator(testColumns, w)
	acc.Append([]measure.Row{testRow("a", measure.Int(1), measure.Bool(false))})

	_, err := acc.Flush()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no space left")
}

func TestCSVWriter_FlushBoundariesAndHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "results.csv")
	w, err := OpenCSV(path, ModeOverwrite, "")
	require.NoError(t, err)
	acc := NewAccumulator(testColumns, w)

	ids := []string{"a", "b", "c", "d", "e"}
	for start := 0; start < len(ids); start += 2 {
		end := min(start+2, len(ids))
		for _, id := range ids[start:end] {
			acc.Append([]measure.Row{testRow(id, measure.Int(10), measure.Bool(true))})
		}
		_, err := acc.Flush()
		require.NoError(t, err)

		// Rows are on disk after every flush.
		lines := strings.Split(strings.TrimSpace(readFile(t, path)), "\n")
		assert.Len(t, lines, 1+end)
	}
	require.NoError(t, acc.Close())

	content := readFile(t, path)
	assert.Equal(t, 1, strings.Count(content, "id,count_loc,packageability"))
	assert.Equal(t, "id,count_loc,packageability\na,10,true\nb,10,true\nc,10,true\nd,10,true\ne,10,true\n", content)
}

func TestCSVWriter_NullDistinctFromZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.csv")
	w, err := OpenCSV(path, ModeOverwrite, "NA")
	require.NoError(t, err)
	acc := NewAccumulator(testColumns, w)

	acc.Append([]measure.Row{
		testRow("zero", measure.Int(0), measure.Bool(false)),
		testRow("null", measure.Null(), measure.Null()),
	})
	_, err = acc.Flush()
	require.NoError(t, err)
	require.NoError(t, acc.Close())

	assert.Equal(t, "id,count_loc,packageability\nzero,0,false\nnull,NA,NA\n", readFile(t, path))
}

func TestCSVWriter_AppendMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.csv")

	for _, id := range []string{"first", "second"} {
		w, err := OpenCSV(path, ModeAppend, "")
		require.NoError(t, err)
		acc := NewAccumulator(testColumns, w)
		acc.Append([]measure.Row{testRow(id, measure.Int(1), measure.Bool(true))})
		_, err = acc.Flush()
		require.NoError(t, err)
		require.NoError(t, acc.Close())
	}

	assert.Equal(t, "id,count_loc,packageability\nfirst,1,true\nsecond,1,true\n", readFile(t, path))
}

func TestCSVWriter_OverwriteTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.csv")
	require.NoError(t, os.WriteFile(path, []byte("stale\n"), 0o644))

	w, err := OpenCSV(path, ModeOverwrite, "")
	require.NoError(t, err)
	require.NoError(t, NewAccumulator(testColumns, w).Close())

	assert.Equal(t, "id,count_loc,packageability\n", readFile(t, path))
}

func TestCSVWriter_QuotesFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.csv")
	w, err := OpenCSV(path, ModeOverwrite, "")
	require.NoError(t, err)
	acc := NewAccumulator([]string{"id", "license_type"}, w)
	acc.Append([]measure.Row{{ProjectID: "x", Values: []measure.Value{measure.String("a,b"), measure.String("MIT")}}})
	_, err = acc.Flush()
	require.NoError(t, err)
	require.NoError(t, acc.Close())

	assert.Contains(t, readFile(t, path), "\"a,b\",MIT\n")
}

func TestOpenCSV_Errors(t *testing.T) {
	_, err := OpenCSV("", ModeOverwrite, "")
	assert.Error(t, err)

	_, err = OpenCSV(filepath.Join(t.TempDir(), "x.csv"), Mode("sideways"), "")
	assert.ErrorIs(t, err, ErrInvalidMode)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeOverwrite, m)

	m, err = ParseMode("append")
	require.NoError(t, err)
	assert.Equal(t, ModeAppend, m)

	_, err = ParseMode("replace")
	assert.ErrorIs(t, err, ErrInvalidMode)
}
