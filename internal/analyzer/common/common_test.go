package common

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/projmetrics/internal/measure"
)

// writeTree creates files (relative path to content) under a temp root.
func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func TestFindFiles_SkipsVendorAndDotDirs(t *testing.T) {
	root := writeTree(t, map[string]string{
		"pkg/a.py":              "",
		"pkg/sub/b.py":          "",
		"node_modules/lib/c.py": "",
		".tox/py3/d.py":         "",
		"vendor/e.py":           "",
		"notes.txt":             "",
	})

	files, err := FindFiles(root, WithExtension(".py"))
	require.NoError(t, err)

	var rel []string
	for _, f := range files {
		r, _ := filepath.Rel(root, f)
		rel = append(rel, filepath.ToSlash(r))
	}
	assert.Equal(t, []string{"pkg/a.py", "pkg/sub/b.py"}, rel)
}

func TestFindFiles_MissingRoot(t *testing.T) {
	_, err := FindFiles(filepath.Join(t.TempDir(), "nope"), WithExtension(".py"))
	assert.Error(t, err)
}

func TestCountNonBlank(t *testing.T) {
	root := writeTree(t, map[string]string{"a.py": "import os\n\n   \n# comment\nx = 1\n"})
	n, err := CountNonBlank(filepath.Join(root, "a.py"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestFindReadme_LargestWins(t *testing.T) {
	root := writeTree(t, map[string]string{
		"README":      "short",
		"readme.md":   "a much longer readme body",
		"ReadMe.rst":  "mid size",
		"README.html": "ignored even though it is the largest file by far",
		"docs/README": "nested files are ignored entirely, whatever their size",
	})
	path, err := FindReadme(root)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "readme.md"), path)
}

func TestFindReadme_None(t *testing.T) {
	path, err := FindReadme(writeTree(t, map[string]string{"setup.py": ""}))
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestStripMarkdown(t *testing.T) {
	text, err := StripMarkdown([]byte("# Title\n\nSome **bold** text with a [link](http://x).\n\n```\ncode\n```\n"))
	require.NoError(t, err)
	assert.NotContains(t, text, "#")
	assert.NotContains(t, text, "**")
	assert.NotContains(t, text, "http://x")
	assert.Contains(t, text, "Title")
	assert.Contains(t, text, "bold")
	assert.Contains(t, text, "link")
}

func TestHTMLText_DropsScript(t *testing.T) {
	assert.Equal(t, "hello world", HTMLText("<p>hello</p><script>var x;</script><p>world</p>"))
}

func TestStripRST(t *testing.T) {
	src := "Title\n=====\n\n.. image:: logo.png\n\nUse ``pip install`` and see `docs <http://x>`_ for :func:`run`.\n"
	text := StripRST(src)
	assert.NotContains(t, text, "=====")
	assert.NotContains(t, text, "image::")
	assert.NotContains(t, text, "http://x")
	assert.Contains(t, text, "pip install")
	assert.Contains(t, text, "docs")
	assert.Contains(t, text, "run")
}

func TestCountSyllables(t *testing.T) {
	tests := map[string]int{
		"the":       1,
		"cat":       1,
		"table":     2,
		"make":      1,
		"beautiful": 3,
		"rhythm":    1,
		"a":         1,
	}
	for word, want := range tests {
		assert.Equal(t, want, CountSyllables(word), word)
	}
}

func TestAnalyze(t *testing.T) {
	st := Analyze("The cat sat on the mat. The dog ran far away!")
	assert.Equal(t, 11, st.Words)
	assert.Equal(t, 2, st.Sentences)

	ease, ok := st.FleschReadingEase()
	require.True(t, ok)
	assert.Greater(t, ease, 90.0)

	grade, ok := st.FleschKincaidGrade()
	require.True(t, ok)
	assert.Less(t, grade, 3.0)
}

func TestAnalyze_Empty(t *testing.T) {
	st := Analyze("  \n ")
	_, ok := st.FleschReadingEase()
	assert.False(t, ok)
	_, ok = st.FleschKincaidGrade()
	assert.False(t, ok)
}

func TestReadmeMetrics(t *testing.T) {
	ctx := context.Background()

	root := writeTree(t, map[string]string{"README.md": "# Demo\n\nThis tool measures many projects at once.\n"})
	v, err := ReadmeSize(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, "8", v.Text(""))

	v, err = ReadingEase(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, measure.KindNumber, v.Kind())

	empty := t.TempDir()
	for _, fn := range []measure.Func{ReadmeSize, ReadingEase, KincaidGrade} {
		v, err := fn(ctx, empty)
		require.NoError(t, err)
		assert.True(t, v.IsNull())
	}
}

func TestContainerSetup(t *testing.T) {
	ctx := context.Background()
	root := writeTree(t, map[string]string{
		"deploy/dockerfile":      "FROM python:3",
		"hpc/Singularity.recipe": "Bootstrap: docker",
	})

	v, err := DockerSetup(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, "true", v.Text(""))

	v, err = SingularitySetup(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, "true", v.Text(""))

	v, err = DockerSetup(ctx, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "false", v.Text(""))
}

func TestParseLicensee(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   string
		ok     bool
	}{
		{
			name: "highest confidence wins",
			output: `{"matched_files":[
				{"filename":"LICENSE","matched_license":"MIT","matcher":{"name":"dice","confidence":98.5}},
				{"filename":"COPYING","matched_license":"GPL-3.0","matcher":{"name":"exact","confidence":100}}]}`,
			want: "GPL-3.0", ok: true,
		},
		{
			name:   "apache short notice",
			output: `{"matched_files":[{"filename":"LICENSE","matched_license":"NOASSERTION","content":"Licensed under the Apache License, Version 2.0 (the License)"}]}`,
			want:   "Apache-2.0", ok: true,
		},
		{
			name:   "unrecognised",
			output: `{"matched_files":[{"filename":"LICENSE","matched_license":"NOASSERTION","content":"do what you want"}]}`,
			want:   "unknown", ok: true,
		},
		{
			name: "real match beats unknown",
			output: `{"matched_files":[
				{"filename":"LICENSE.txt","matched_license":"NOASSERTION","content":"custom"},
				{"filename":"LICENSE","matched_license":"BSD-3-Clause","matcher":{"name":"exact","confidence":100}}]}`,
			want: "BSD-3-Clause", ok: true,
		},
		{
			name:   "no licence files",
			output: `{"licenses":[],"matched_files":[]}`,
			want:   "", ok: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok, err := parseLicensee([]byte(tc.output))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.ok, ok)
		})
	}
}

func TestLicenseType_UsesTool(t *testing.T) {
	var gotArgs []string
	tool := StubTool("licensee", func(args []string) ([]byte, error) {
		gotArgs = args
		return []byte(`{"matched_files":[{"matched_license":"MIT","matcher":{"confidence":100}}]}`), nil
	})

	v, err := LicenseType(tool)(context.Background(), "/src/p")
	require.NoError(t, err)
	assert.Equal(t, "MIT", v.Text(""))
	assert.Equal(t, []string{"/src/p"}, gotArgs)

	failing := StubTool("licensee", func([]string) ([]byte, error) { return nil, errors.New("exit 2") })
	v, err = LicenseType(failing)(context.Background(), "/src/p")
	assert.Error(t, err)
	assert.True(t, v.IsNull())
}

func TestNewTool(t *testing.T) {
	tool, err := NewTool(DefaultLicensee)
	require.NoError(t, err)
	assert.Equal(t, "licensee", tool.Name())
	assert.Equal(t, []string{"licensee", "detect", "--confidence=98", "--json"}, tool.argv)

	_, err = NewTool("   ")
	assert.Error(t, err)

	_, err = NewTool(`licensee "unterminated`)
	assert.Error(t, err)
}

func TestTool_MissingBinary(t *testing.T) {
	tool, err := NewTool("projmetrics-no-such-binary --flag")
	require.NoError(t, err)
	_, err = tool.Run(context.Background(), "x")
	assert.ErrorIs(t, err, ErrToolMissing)
}

func TestRegister(t *testing.T) {
	p := Register(measure.NewProvider("python"), nil)
	assert.Equal(t, []string{"project_readme_size", "flesch_reading_ease", "flesch_kincaid_grade", "docker_setup", "singularity_setup"}, p.Names())

	p = Register(measure.NewProvider("r"), StubTool("licensee", nil))
	_, ok := p.Lookup("license_type")
	assert.True(t, ok)
}
