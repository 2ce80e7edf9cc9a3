package sink

import (
	"encoding/csv"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"

	"github.com/blackwell-systems/projmetrics/internal/measure"
)

// Mode selects how an existing output file is treated.
type Mode string

const (
	// ModeOverwrite truncates the file and writes a fresh header.
	ModeOverwrite Mode = "overwrite"
	// ModeAppend keeps existing rows and writes a header only if the file
	// is empty.
	ModeAppend Mode = "append"
)

// ErrInvalidMode is returned for an unrecognised output mode.
var ErrInvalidMode = errors.New("invalid output mode")

// ParseMode validates a mode string. The empty string means overwrite.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeOverwrite:
		return ModeOverwrite, nil
	case ModeAppend:
		return ModeAppend, nil
	}
	return "", errors.WithHint(errors.Wrapf(ErrInvalidMode, "%q", s), "use overwrite or append")
}

// Stdout is the output path that selects standard output.
const Stdout = "-"

// CSVWriter writes rows as comma separated values.
type CSVWriter struct {
	path      string
	file      *os.File
	w         *csv.Writer
	nullToken string
	skipHead  bool
}

// OpenCSV opens path for writing before any measurement starts, so an
// unwritable destination fails fast. Path "-" writes to stdout.
func OpenCSV(path string, mode Mode, nullToken string) (*CSVWriter, error) {
	if path == "" {
		return nil, errors.WithHint(errors.New("empty output path"), "pass --file-output or set output.path")
	}
	if path == Stdout {
		return newCSVWriter(path, os.Stdout, nullToken, false), nil
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "creating output directory %s", dir)
		}
	}

	flags := os.O_CREATE | os.O_WRONLY
	switch mode {
	case ModeAppend:
		flags |= os.O_APPEND
	case ModeOverwrite, "":
		flags |= os.O_TRUNC
	default:
		return nil, errors.Wrapf(ErrInvalidMode, "%q", mode)
	}

	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "opening output %s", path)
	}

	skip := false
	if mode == ModeAppend {
		info, err := f.Stat()
		if err != nil {
			_ = f.Close()
			return nil, errors.Wrapf(err, "stat %s", path)
		}
		skip = info.Size() > 0
	}
	return newCSVWriter(path, f, nullToken, skip), nil
}

func newCSVWriter(path string, f *os.File, nullToken string, skipHeader bool) *CSVWriter {
	return &CSVWriter{
		path:      path,
		file:      f,
		w:         csv.NewWriter(f),
		nullToken: nullToken,
		skipHead:  skipHeader,
	}
}

// Path returns the destination path, "-" for stdout.
func (c *CSVWriter) Path() string {
	return c.path
}

// WriteHeader writes the column row unless appending to a non-empty file.
func (c *CSVWriter) WriteHeader(columns []string) error {
	if c.skipHead {
		return nil
	}
	if err := c.w.Write(columns); err != nil {
		return err
	}
	return c.sync()
}

// WriteRows writes rows and syncs them to disk.
func (c *CSVWriter) WriteRows(columns []string, rows []measure.Row) error {
	record := make([]string, len(columns))
	for _, row := range rows {
		for i := range record {
			v := measure.Null()
			if i < len(row.Values) {
				v = row.Values[i]
			}
			record[i] = v.Text(c.nullToken)
		}
		if err := c.w.Write(record); err != nil {
			return err
		}
	}
	return c.sync()
}

// sync flushes the csv buffer and, for real files, commits to disk.
func (c *CSVWriter) sync() error {
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		return errors.Wrapf(err, "writing %s", c.path)
	}
	if c.path == Stdout {
		return nil
	}
	return c.file.Sync()
}

// Close closes the underlying file. Stdout is left open.
func (c *CSVWriter) Close() error {
	c.w.Flush()
	if c.path == Stdout {
		return c.w.Error()
	}
	return errors.CombineErrors(c.w.Error(), c.file.Close())
}

var _ Writer = (*CSVWriter)(nil)
