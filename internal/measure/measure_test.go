package measure

import (
	"context"
	"iter"
	"os"
	"path/filepath"
	"testing"

	"github.com/blackwell-systems/projmetrics/internal/scanner"
)

// sliceSource is an in-memory project source.
type sliceSource struct {
	projects []scanner.Project
	err      error
}

func (s *sliceSource) Projects(ctx context.Context) iter.Seq2[scanner.Project, error] {
	return func(yield func(scanner.Project, error) bool) {
		for _, p := range s.projects {
			if !yield(p, nil) {
				return
			}
		}
		if s.err != nil {
			yield(scanner.Project{}, s.err)
		}
	}
}

func (s *sliceSource) Identify(path string) string { return path }

// makeProjects creates n project directories under a temp root.
func makeProjects(t *testing.T, n int) []scanner.Project {
	t.Helper()
	root := t.TempDir()
	projects := make([]scanner.Project, 0, n)
	for i := 0; i < n; i++ {
		dir := filepath.Join(root, string(rune('a'+i)))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
		projects = append(projects, scanner.Project{Path: dir, ID: dir, Name: filepath.Base(dir)})
	}
	return projects
}

func constant(v Value) Func {
	return func(context.Context, string) (Value, error) { return v, nil }
}
