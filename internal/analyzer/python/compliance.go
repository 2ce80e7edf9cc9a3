package python

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"regexp"

	"github.com/blackwell-systems/projmetrics/internal/analyzer/common"
	"github.com/blackwell-systems/projmetrics/internal/measure"
)

// DefaultPycodestyle is the default style checker command line.
const DefaultPycodestyle = "pycodestyle"

// filesPerRun bounds the argument list handed to the style checker.
const filesPerRun = 200

// styleOffence matches "path:line:col: E501 message" output lines.
var styleOffence = regexp.MustCompile(`:\d+:\d+: [EW]\d+`)

// StandardCompliance returns a metric scoring style compliance as
// 1 - offences/physical lines over all Python files. Null when the project
// has no Python code.
func StandardCompliance(tool *common.Tool) measure.Func {
	return func(ctx context.Context, root string) (measure.Value, error) {
		files, err := sourceFiles(root)
		if err != nil {
			return measure.Null(), err
		}

		lines := 0
		for _, path := range files {
			n, err := physicalLines(path)
			if err != nil {
				continue
			}
			lines += n
		}
		if lines == 0 {
			return measure.Null(), nil
		}

		offences := 0
		for start := 0; start < len(files); start += filesPerRun {
			end := min(start+filesPerRun, len(files))
			out, err := tool.Run(ctx, files[start:end]...)
			if err != nil {
				return measure.Null(), err
			}
			offences += countOffences(out)
		}
		return measure.Number(1 - float64(offences)/float64(lines)), nil
	}
}

func countOffences(out []byte) int {
	n := 0
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		if styleOffence.Match(sc.Bytes()) {
			n++
		}
	}
	return n
}

// physicalLines counts lines the way the style checker does: a final line
// without a newline still counts.
func physicalLines(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	if len(data) == 0 {
		return 0, nil
	}
	n := bytes.Count(data, []byte("\n"))
	if data[len(data)-1] != '\n' {
		n++
	}
	return n, nil
}
