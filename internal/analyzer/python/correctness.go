package python

import (
	"bufio"
	"bytes"
	"context"
	"regexp"

	"github.com/cockroachdb/errors"

	"github.com/blackwell-systems/projmetrics/internal/analyzer/common"
	"github.com/blackwell-systems/projmetrics/internal/measure"
)

// DefaultPyflakes is the default static checker command line.
const DefaultPyflakes = "pyflakes"

// flakeMessage matches "path:line: message" and "path:line:col: message".
var flakeMessage = regexp.MustCompile(`:\d+:(?:\d+:)? `)

// ErrorDensity returns a metric averaging 1 - messages/lines over every
// Python file the checker can score. Files that do not parse, or that the
// checker rejects, are skipped. Null when no file could be scored.
func ErrorDensity(tool *common.Tool) measure.Func {
	return func(ctx context.Context, root string) (measure.Value, error) {
		files, err := sourceFiles(root)
		if err != nil {
			return measure.Null(), err
		}

		var sum float64
		n := 0
		for _, path := range files {
			if err := ctx.Err(); err != nil {
				return measure.Null(), err
			}
			score, ok, err := fileErrorDensity(ctx, tool, path)
			if err != nil {
				return measure.Null(), err
			}
			if !ok {
				continue
			}
			sum += score
			n++
		}
		if n == 0 {
			return measure.Null(), nil
		}
		return measure.Number(sum / float64(n)), nil
	}
}

// fileErrorDensity scores one file. ok is false for files that cannot be
// scored; err is only set when the checker itself is unusable.
func fileErrorDensity(ctx context.Context, tool *common.Tool, path string) (float64, bool, error) {
	lines, err := common.CountNonBlank(path)
	if err != nil || lines == 0 {
		return 0, false, nil
	}
	src, err := parse(ctx, path)
	if err != nil || src.hasErrors() {
		return 0, false, nil
	}

	out, err := tool.Run(ctx, path)
	if err != nil {
		if errors.Is(err, common.ErrToolMissing) || ctx.Err() != nil {
			return 0, false, err
		}
		return 0, false, nil
	}
	return 1 - float64(countFlakes(out))/float64(lines), true, nil
}

func countFlakes(out []byte) int {
	n := 0
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		if flakeMessage.Match(sc.Bytes()) {
			n++
		}
	}
	return n
}
