// Package scanner discovers the projects a measurement run operates on.
package scanner

import (
	"context"
	"iter"
)

// Project is one software project found on disk.
type Project struct {
	// Path is the absolute filesystem path to the project root.
	Path string `json:"path"`

	// ID is the project's identity: the origin remote URL for git
	// checkouts that have one, otherwise Path.
	ID string `json:"id"`

	// Name is the directory name of the project.
	Name string `json:"name"`

	// HasGit indicates whether the project is a git repository.
	HasGit bool `json:"has_git"`
}

// Source yields the projects of a run.
type Source interface {
	// Projects lazily yields projects in a stable order. A non-nil error
	// ends the sequence.
	Projects(ctx context.Context) iter.Seq2[Project, error]

	// Identify returns the identity string for a project path. Repeated
	// calls for the same path return the same value.
	Identify(path string) string
}

// Type names a project source backend.
type Type string

const (
	// TypeDirectory treats every subdirectory of the base dir as a project.
	TypeDirectory Type = "directory"
	// TypeGit treats every git working tree under the base dir as a project.
	TypeGit Type = "git"
)
