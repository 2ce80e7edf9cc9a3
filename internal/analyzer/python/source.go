// Package python implements the metric provider for Python projects.
package python

import (
	"context"
	"os"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/blackwell-systems/projmetrics/internal/analyzer/common"
)

// sourceFiles returns every .py file in the project.
func sourceFiles(root string) ([]string, error) {
	return common.FindFiles(root, common.WithExtension(".py"))
}

// source is a parsed Python file.
type source struct {
	content []byte
	tree    *sitter.Tree
}

// parse reads and parses path. Syntax errors still yield a tree; callers
// check hasErrors.
func parse(ctx context.Context, path string) (*source, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseBytes(ctx, content)
}

func parseBytes(ctx context.Context, content []byte) (*source, error) {
	p := sitter.NewParser()
	p.SetLanguage(python.GetLanguage())
	tree, err := p.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, err
	}
	return &source{content: content, tree: tree}, nil
}

func (s *source) root() *sitter.Node {
	return s.tree.RootNode()
}

func (s *source) hasErrors() bool {
	return s.root().HasError()
}

func (s *source) text(n *sitter.Node) string {
	return n.Content(s.content)
}

// walk visits n and all its descendants depth first until fn returns false
// for a node, which prunes that subtree.
func walk(n *sitter.Node, fn func(*sitter.Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		walk(n.Child(i), fn)
	}
}

// comments counts "#" comments.
func (s *source) comments() int {
	n := 0
	walk(s.root(), func(node *sitter.Node) bool {
		if node.Type() == "comment" {
			n++
		}
		return true
	})
	return n
}

// docstrings returns the docstrings of the module and of every class and
// function definition, without their quotes.
func (s *source) docstrings() []string {
	var docs []string
	add := func(body *sitter.Node) {
		if body == nil {
			return
		}
		var first *sitter.Node
		for i := 0; i < int(body.NamedChildCount()); i++ {
			if c := body.NamedChild(i); c.Type() != "comment" {
				first = c
				break
			}
		}
		if first == nil || first.Type() != "expression_statement" || first.NamedChildCount() == 0 {
			return
		}
		if str := first.NamedChild(0); str.Type() == "string" {
			docs = append(docs, unquote(s.text(str)))
		}
	}

	root := s.root()
	add(root)
	walk(root, func(n *sitter.Node) bool {
		switch n.Type() {
		case "class_definition", "function_definition":
			add(n.ChildByFieldName("body"))
		}
		return true
	})
	return docs
}

// setupCalls returns the source of every call to setup() or
// setuptools.setup().
func (s *source) setupCalls() []string {
	var calls []string
	walk(s.root(), func(n *sitter.Node) bool {
		if n.Type() != "call" {
			return true
		}
		fn := n.ChildByFieldName("function")
		if fn == nil {
			return true
		}
		name := s.text(fn)
		if name == "setup" || strings.HasSuffix(name, ".setup") {
			calls = append(calls, s.text(n))
			return false
		}
		return true
	})
	return calls
}

var stringPrefix = regexp.MustCompile(`^[rRuUbBfF]{0,2}`)

// unquote strips a string literal's prefix and quotes.
func unquote(lit string) string {
	s := stringPrefix.ReplaceAllString(lit, "")
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if strings.HasPrefix(s, q) && strings.HasSuffix(s, q) && len(s) >= 2*len(q) {
			return s[len(q) : len(s)-len(q)]
		}
	}
	return s
}
