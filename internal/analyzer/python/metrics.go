package python

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"

	"github.com/blackwell-systems/projmetrics/internal/analyzer/common"
	"github.com/blackwell-systems/projmetrics/internal/measure"
)

// Packageability reports whether the project can be built as a package:
// some setup.py contains a setup() call, or pyproject.toml declares a build.
func Packageability(ctx context.Context, root string) (measure.Value, error) {
	setups, err := common.FindFiles(root, func(name string) bool { return name == "setup.py" })
	if err != nil {
		return measure.Null(), err
	}
	for _, path := range setups {
		ok, err := hasSetupCall(ctx, path)
		if err != nil {
			return measure.Null(), errors.Wrapf(err, "reading %s", path)
		}
		if ok {
			return measure.Bool(true), nil
		}
	}

	ok, err := pyprojectBuild(filepath.Join(root, "pyproject.toml"))
	if err != nil {
		return measure.Null(), err
	}
	return measure.Bool(ok), nil
}

var (
	hashComment    = regexp.MustCompile(`#.*?\n`)
	tripleDouble   = regexp.MustCompile(`"""[\s\S]*?"""`)
	tripleSingle   = regexp.MustCompile(`'''[\s\S]*?'''`)
	setupCallRegex = regexp.MustCompile(`setup\([\s\S]*?\)`)
)

func hasSetupCall(ctx context.Context, path string) (bool, error) {
	src, err := parse(ctx, path)
	if err != nil {
		return false, err
	}
	if len(src.setupCalls()) > 0 {
		return true, nil
	}
	// Fall back to a textual search for files the parser chokes on.
	text := hashComment.ReplaceAll(src.content, []byte("\n"))
	text = tripleDouble.ReplaceAll(text, nil)
	text = tripleSingle.ReplaceAll(text, nil)
	return setupCallRegex.Match(text), nil
}

type pyproject struct {
	BuildSystem *struct {
		Requires     []string `toml:"requires"`
		BuildBackend string   `toml:"build-backend"`
	} `toml:"build-system"`
	Project *struct {
		Name string `toml:"name"`
	} `toml:"project"`
	Tool struct {
		Poetry *struct {
			Name string `toml:"name"`
		} `toml:"poetry"`
	} `toml:"tool"`
}

func pyprojectBuild(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	var pp pyproject
	if err := toml.Unmarshal(data, &pp); err != nil {
		return false, errors.Wrapf(err, "parsing %s", path)
	}
	switch {
	case pp.BuildSystem != nil && pp.BuildSystem.BuildBackend != "":
		return true, nil
	case pp.Project != nil && pp.Project.Name != "":
		return true, nil
	case pp.Tool.Poetry != nil && pp.Tool.Poetry.Name != "":
		return true, nil
	}
	return false, nil
}

var (
	// Lines holding only whitespace or a lone triple quote are not code.
	emptyCodeLine = regexp.MustCompile(`^\s*(?:'''|""")?\s*$`)
	docLineSplit  = regexp.MustCompile(`\s*\n\s*`)
)

// CommentDensity averages, over all Python files, the share of non-blank
// lines that are comments or docstring text. Files that do not parse are
// skipped; null when no file could be scored.
func CommentDensity(ctx context.Context, root string) (measure.Value, error) {
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
		d, ok := fileCommentDensity(ctx, path)
		if !ok {
			continue
		}
		sum += d
		n++
	}
	if n == 0 {
		return measure.Null(), nil
	}
	return measure.Number(sum / float64(n)), nil
}

func fileCommentDensity(ctx context.Context, path string) (float64, bool) {
	src, err := parse(ctx, path)
	if err != nil || src.hasErrors() {
		return 0, false
	}

	loc := 0
	for _, line := range bytes.Split(src.content, []byte("\n")) {
		if !emptyCodeLine.Match(line) {
			loc++
		}
	}
	if loc == 0 {
		return 0, false
	}
	return float64(src.comments()+docstringLines(src.docstrings())) / float64(loc), true
}

// docstringLines counts the non-blank lines across docstrings.
func docstringLines(docs []string) int {
	n := 0
	for _, d := range docs {
		for _, line := range docLineSplit.Split(d, -1) {
			if strings.TrimSpace(line) != "" {
				n++
			}
		}
	}
	return n
}

// testLibraries are imports that indicate a project has tests.
var testLibraries = []string{
	// unit testing
	"unittest", "doctest", "pytest", "testify", "zope.testing", "sancho",
	// mocking
	"ludibrio", "mock", "pymock", "pmock", "minimock", "svnmock", "mocker",
	"reahl.stubble", "mocktest", "fudge", "mockito", "flexmock", "doublex", "aspectlib",
	// fuzz and web testing
	"hypothesis", "antiparser", "twill", "webunit", "zope.testbrowser", "webtest", "PAM30",
	// acceptance testing
	"behave", "lettuce",
}

var testImport = regexp.MustCompile(`^\s*(?:from|import).*(?:` + quoteAll(testLibraries) + `)`)

func quoteAll(names []string) string {
	q := make([]string, len(names))
	for i, n := range names {
		q[i] = regexp.QuoteMeta(n)
	}
	return strings.Join(q, "|")
}

// TestLibraryUsage reports whether any Python file imports a known test
// library.
func TestLibraryUsage(ctx context.Context, root string) (measure.Value, error) {
	files, err := sourceFiles(root)
	if err != nil {
		return measure.Null(), err
	}
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return measure.Null(), err
		}
		found := false
		if err := common.EachLine(path, func(line string) bool {
			found = testImport.MatchString(line)
			return !found
		}); err != nil {
			continue
		}
		if found {
			return measure.Bool(true), nil
		}
	}
	return measure.Bool(false), nil
}

// CountLOC counts non-blank lines over all Python files.
func CountLOC(ctx context.Context, root string) (measure.Value, error) {
	files, err := sourceFiles(root)
	if err != nil {
		return measure.Null(), err
	}
	total := 0
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return measure.Null(), err
		}
		n, err := common.CountNonBlank(path)
		if err != nil {
			continue
		}
		total += n
	}
	return measure.Int(total), nil
}
