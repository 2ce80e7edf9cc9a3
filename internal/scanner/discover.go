package scanner

import (
	"context"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/go-git/go-git/v5"
)

// ErrUnknownType is returned for an unsupported project source type.
var ErrUnknownType = errors.New("unknown project type")

// NewSource returns the source backend for typ rooted at baseDir.
func NewSource(typ Type, baseDir string) (Source, error) {
	abs, err := filepath.Abs(expandHome(baseDir))
	if err != nil {
		return nil, errors.Wrapf(err, "resolving base dir %q", baseDir)
	}
	switch typ {
	case TypeDirectory, "":
		return &DirectorySource{Root: abs}, nil
	case TypeGit:
		return NewGitSource(abs), nil
	default:
		return nil, errors.WithHint(
			errors.Wrapf(ErrUnknownType, "%q", typ),
			"use one of: directory, git",
		)
	}
}

// Collect drains src into a slice.
func Collect(ctx context.Context, src Source) ([]Project, error) {
	var projects []Project
	for p, err := range src.Projects(ctx) {
		if err != nil {
			return projects, err
		}
		projects = append(projects, p)
	}
	return projects, nil
}

// DirectorySource treats every non-hidden subdirectory of Root as a project.
type DirectorySource struct {
	Root string
}

// Identify returns path itself; plain directories have no better identity.
func (s *DirectorySource) Identify(path string) string {
	return path
}

// Projects yields subdirectories of Root sorted by name.
func (s *DirectorySource) Projects(ctx context.Context) iter.Seq2[Project, error] {
	return func(yield func(Project, error) bool) {
		entries, err := os.ReadDir(s.Root)
		if err != nil {
			yield(Project{}, errors.Wrapf(err, "listing %s", s.Root))
			return
		}

		for _, entry := range entries {
			if ctx.Err() != nil {
				yield(Project{}, ctx.Err())
				return
			}
			if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
				continue
			}

			path := filepath.Join(s.Root, entry.Name())
			_, statErr := os.Stat(filepath.Join(path, ".git"))
			p := Project{
				Path:   path,
				ID:     s.Identify(path),
				Name:   entry.Name(),
				HasGit: statErr == nil,
			}
			if !yield(p, nil) {
				return
			}
		}
	}
}

// GitSource yields every git working tree below Root. The walk does not
// descend into a repository once found.
type GitSource struct {
	Root string

	mu  sync.Mutex
	ids map[string]string
}

// NewGitSource returns a git source rooted at root.
func NewGitSource(root string) *GitSource {
	return &GitSource{Root: root, ids: make(map[string]string)}
}

// Projects walks Root in lexical order and yields each repository found.
func (s *GitSource) Projects(ctx context.Context) iter.Seq2[Project, error] {
	return func(yield func(Project, error) bool) {
		stopped := false
		walkErr := filepath.WalkDir(s.Root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if path == s.Root {
					return err
				}
				// Unreadable subtrees are skipped.
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if !d.IsDir() {
				return nil
			}
			if path != s.Root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if !isGitWorkTree(path) {
				return nil
			}

			p := Project{
				Path:   path,
				ID:     s.Identify(path),
				Name:   d.Name(),
				HasGit: true,
			}
			if !yield(p, nil) {
				stopped = true
				return filepath.SkipAll
			}
			return filepath.SkipDir
		})
		if walkErr != nil && !stopped {
			yield(Project{}, errors.Wrapf(walkErr, "walking %s", s.Root))
		}
	}
}

// Identify returns the URL of the origin remote, falling back to path when
// the repository has no origin or cannot be opened. Results are cached so the
// identity is stable for the lifetime of the source.
func (s *GitSource) Identify(path string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ids == nil {
		s.ids = make(map[string]string)
	}
	if id, ok := s.ids[path]; ok {
		return id
	}
	id := originURL(path)
	if id == "" {
		id = path
	}
	s.ids[path] = id
	return id
}

// originURL returns the first URL of the origin remote, or "".
func originURL(path string) string {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return ""
	}
	remote, err := repo.Remote("origin")
	if err != nil {
		return ""
	}
	urls := remote.Config().URLs
	if len(urls) == 0 {
		return ""
	}
	return urls[0]
}

// isGitWorkTree reports whether dir contains a .git directory or a .git
// file (worktrees and submodules).
func isGitWorkTree(dir string) bool {
	_, err := os.Lstat(filepath.Join(dir, ".git"))
	return err == nil
}

// DetectLanguage infers the primary language from well-known project files.
// It returns the provider key ("python", "r", ...) or "".
func DetectLanguage(projectPath string) string {
	// Ordered by specificity: check more specific indicators first.
	indicators := []struct {
		file string
		lang string
	}{
		{"DESCRIPTION", "r"},
		{"setup.py", "python"},
		{"pyproject.toml", "python"},
		{"setup.cfg", "python"},
		{"requirements.txt", "python"},
		{"go.mod", "go"},
		{"Cargo.toml", "rust"},
		{"package.json", "javascript"},
	}

	for _, ind := range indicators {
		if _, err := os.Stat(filepath.Join(projectPath, ind.file)); err == nil {
			return ind.lang
		}
	}
	return ""
}

// SortByName orders projects by case-insensitive name.
func SortByName(projects []Project) {
	sort.SliceStable(projects, func(i, j int) bool {
		return strings.ToLower(projects[i].Name) < strings.ToLower(projects[j].Name)
	})
}

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
