// Package rlang implements the metric provider for R projects.
package rlang

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/blackwell-systems/projmetrics/internal/analyzer/common"
	"github.com/blackwell-systems/projmetrics/internal/measure"
)

// Language is the provider's language key.
const Language = "r"

// NewProvider returns the R metric provider.
func NewProvider(licensee *common.Tool) *measure.Provider {
	p := measure.NewProvider(Language).
		Register("packageability", Packageability).
		Register("average_comment_density", CommentDensity).
		Register("testlibrary_usage", TestLibraryUsage).
		Register("count_loc", CountLOC)
	return common.Register(p, licensee)
}

func sourceFiles(root string) ([]string, error) {
	return common.FindFiles(root, common.WithExtension(".R", ".r"))
}

var packageField = regexp.MustCompile(`(?m)^Package:\s*\S+`)

// Packageability reports whether the project root holds a DESCRIPTION file
// naming a package.
func Packageability(_ context.Context, root string) (measure.Value, error) {
	data, err := os.ReadFile(filepath.Join(root, "DESCRIPTION"))
	if os.IsNotExist(err) {
		return measure.Bool(false), nil
	}
	if err != nil {
		return measure.Null(), err
	}
	return measure.Bool(packageField.Match(data)), nil
}

// CommentDensity averages, over all R files, the share of non-blank lines
// carrying a comment. Roxygen lines count as comments.
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
		loc, commented := 0, 0
		err := common.EachLine(path, func(line string) bool {
			if strings.TrimSpace(line) == "" {
				return true
			}
			loc++
			if hasComment(line) {
				commented++
			}
			return true
		})
		if err != nil || loc == 0 {
			continue
		}
		sum += float64(commented) / float64(loc)
		n++
	}
	if n == 0 {
		return measure.Null(), nil
	}
	return measure.Number(sum / float64(n)), nil
}

// hasComment reports whether line has a "#" outside a string literal.
func hasComment(line string) bool {
	var quote rune
	escaped := false
	for _, r := range line {
		switch {
		case escaped:
			escaped = false
		case r == '\\' && quote != 0:
			escaped = true
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'' || r == '`':
			quote = r
		case r == '#':
			return true
		}
	}
	return false
}

// testPackages are R packages that indicate a project has tests.
var testPackages = []string{"testthat", "RUnit", "tinytest", "testit", "unitizer", "svUnit"}

var (
	testLoad = regexp.MustCompile(`(?:library|require|requireNamespace)\(\s*["']?(?:` +
		strings.Join(testPackages, "|") + `)\b`)
	testNamespace = regexp.MustCompile(`\b(?:` + strings.Join(testPackages, "|") + `)::`)
	testSuggests  = regexp.MustCompile(`(?m)^(?:Suggests|Imports|Depends):(?:.*\n[ \t].*)*?\b(?:` +
		strings.Join(testPackages, "|") + `)\b`)
)

// TestLibraryUsage reports whether the project loads a known R testing
// package, either from code or its DESCRIPTION dependencies.
func TestLibraryUsage(ctx context.Context, root string) (measure.Value, error) {
	if data, err := os.ReadFile(filepath.Join(root, "DESCRIPTION")); err == nil && testSuggests.Match(data) {
		return measure.Bool(true), nil
	}

	files, err := sourceFiles(root)
	if err != nil {
		return measure.Null(), err
	}
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return measure.Null(), err
		}
		found := false
		_ = common.EachLine(path, func(line string) bool {
			found = testLoad.MatchString(line) || testNamespace.MatchString(line)
			return !found
		})
		if found {
			return measure.Bool(true), nil
		}
	}
	return measure.Bool(false), nil
}

// CountLOC counts non-blank lines over all R files.
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
