// Package common holds language independent helpers and metrics shared by
// every provider: file discovery, README handling, readability, licence
// detection and container setup checks.
package common

import (
	"bufio"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/src-d/enry/v2"
)

// FindFiles walks root and returns every regular file whose base name
// satisfies match. Vendored and dot directories are skipped. Results are in
// lexical walk order.
func FindFiles(root string, match func(name string) bool) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			// Unreadable subtrees are skipped.
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if path == root {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if enry.IsDotFile(rel) || enry.IsVendor(rel+"/") {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if match(d.Name()) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "walking %s", root)
	}
	return files, nil
}

// WithExtension returns a matcher for file names ending in one of exts.
// Extensions are compared case-sensitively and include the dot.
func WithExtension(exts ...string) func(string) bool {
	return func(name string) bool {
		ext := filepath.Ext(name)
		for _, e := range exts {
			if ext == e {
				return true
			}
		}
		return false
	}
}

// MatchingGlob returns a matcher for base names matching any of patterns.
func MatchingGlob(patterns ...string) func(string) bool {
	return func(name string) bool {
		for _, p := range patterns {
			if ok, _ := filepath.Match(p, name); ok {
				return true
			}
		}
		return false
	}
}

// AnyFile reports whether root contains at least one file accepted by match.
func AnyFile(root string, match func(string) bool) (bool, error) {
	found := false
	errFound := errors.New("found")
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if path != root && d.IsDir() && strings.HasPrefix(d.Name(), ".") {
			return fs.SkipDir
		}
		if !d.IsDir() && match(d.Name()) {
			found = true
			return errFound
		}
		return nil
	})
	if err != nil && !errors.Is(err, errFound) {
		return false, errors.Wrapf(err, "walking %s", root)
	}
	return found, nil
}

var blankLine = regexp.MustCompile(`^\s*$`)

// CountNonBlank returns the number of lines in path containing anything
// other than whitespace.
func CountNonBlank(path string) (int, error) {
	n := 0
	err := EachLine(path, func(line string) bool {
		if !blankLine.MatchString(line) {
			n++
		}
		return true
	})
	return n, err
}

// EachLine calls fn for each line of path until fn returns false. Invalid
// UTF-8 is passed through untouched.
func EachLine(path string, fn func(line string) bool) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		if !fn(sc.Text()) {
			return nil
		}
	}
	return sc.Err()
}
