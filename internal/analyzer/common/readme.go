package common

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
)

// readmeExts are the README variants considered, all compared lower-case.
var readmeExts = map[string]bool{"": true, ".md": true, ".rst": true, ".txt": true}

// FindReadme returns the main README in the project root, matched
// case-insensitively. When several exist the largest file wins. It returns
// "" when there is none.
func FindReadme(root string) (string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return "", errors.Wrapf(err, "reading %s", root)
	}

	best, bestSize := "", int64(-1)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := strings.ToLower(e.Name())
		ext := filepath.Ext(name)
		if strings.TrimSuffix(name, ext) != "readme" || !readmeExts[ext] {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.Size() > bestSize {
			best, bestSize = filepath.Join(root, e.Name()), info.Size()
		}
	}
	return best, nil
}

// ReadmeText reads the README at path and strips its markup according to
// the file extension.
func ReadmeText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md":
		return StripMarkdown(data)
	case ".rst":
		return StripRST(string(data)), nil
	default:
		return string(data), nil
	}
}

// LoadReadme finds and reads the project's README. ok is false when the
// project has none.
func LoadReadme(root string) (text string, ok bool, err error) {
	path, err := FindReadme(root)
	if err != nil || path == "" {
		return "", false, err
	}
	text, err = ReadmeText(path)
	if err != nil {
		return "", false, errors.Wrapf(err, "reading %s", path)
	}
	return text, true, nil
}
