package python

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/blackwell-systems/projmetrics/internal/analyzer/common"
	"github.com/blackwell-systems/projmetrics/internal/measure"
)

// RequirementsDeclared returns the share of third-party packages imported by
// the project that are declared in a requirements.txt, a setup() call or
// pyproject.toml. Null when the code imports nothing third-party.
func RequirementsDeclared(ctx context.Context, root string) (measure.Value, error) {
	files, err := sourceFiles(root)
	if err != nil {
		return measure.Null(), err
	}

	local := localModules(root, files)
	// distribution name -> import name
	implied := map[string]string{}
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return measure.Null(), err
		}
		src, err := parse(ctx, path)
		if err != nil || src.hasErrors() {
			continue
		}
		for _, mod := range src.imports() {
			if stdlibModules[mod] || local[mod] {
				continue
			}
			implied[packageName(mod)] = mod
		}
	}
	if len(implied) == 0 {
		return measure.Null(), nil
	}

	declared, err := declaredRequirements(ctx, root)
	if err != nil {
		return measure.Null(), err
	}

	n := 0
	for pkg, mod := range implied {
		if declared[pkg] || declared[normalizePackage(mod)] {
			n++
		}
	}
	return measure.Number(float64(n) / float64(len(implied))), nil
}

// imports returns the top-level module of every absolute import.
func (s *source) imports() []string {
	var mods []string
	add := func(n *sitter.Node) {
		if n == nil || n.Type() != "dotted_name" {
			return
		}
		name, _, _ := strings.Cut(s.text(n), ".")
		if name = strings.TrimSpace(name); name != "" {
			mods = append(mods, name)
		}
	}

	walk(s.root(), func(n *sitter.Node) bool {
		switch n.Type() {
		case "import_statement":
			for i := 0; i < int(n.NamedChildCount()); i++ {
				c := n.NamedChild(i)
				if c.Type() == "aliased_import" {
					c = c.ChildByFieldName("name")
				}
				add(c)
			}
			return false
		case "import_from_statement":
			// Relative imports have a relative_import module and are local.
			add(n.ChildByFieldName("module_name"))
			return false
		case "future_import_statement":
			return false
		}
		return true
	})
	return mods
}

// localModules lists the top-level names the project itself provides: its
// module files and package directories.
func localModules(root string, files []string) map[string]bool {
	local := map[string]bool{}
	for _, path := range files {
		local[strings.TrimSuffix(filepath.Base(path), ".py")] = true
		rel, err := filepath.Rel(root, filepath.Dir(path))
		if err != nil || rel == "." {
			continue
		}
		for _, dir := range strings.Split(rel, string(filepath.Separator)) {
			local[dir] = true
		}
	}
	return local
}

// declaredRequirements collects normalized package names from every
// declaration source the project has.
func declaredRequirements(ctx context.Context, root string) (map[string]bool, error) {
	declared := map[string]bool{}

	reqFiles, err := common.FindFiles(root, common.MatchingGlob("requirements*.txt"))
	if err != nil {
		return nil, err
	}
	for _, path := range reqFiles {
		err := common.EachLine(path, func(line string) bool {
			if name := requirementName(line); name != "" {
				declared[name] = true
			}
			return true
		})
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s", path)
		}
	}

	setups, err := common.FindFiles(root, func(name string) bool { return name == "setup.py" })
	if err != nil {
		return nil, err
	}
	for _, path := range setups {
		src, err := parse(ctx, path)
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s", path)
		}
		for _, req := range src.setupRequirements() {
			if name := requirementName(req); name != "" {
				declared[name] = true
			}
		}
	}

	deps, err := pyprojectDependencies(filepath.Join(root, "pyproject.toml"))
	if err != nil {
		return nil, err
	}
	for _, req := range deps {
		if name := requirementName(req); name != "" {
			declared[name] = true
		}
	}
	return declared, nil
}

// requirementKeywords are the setup() arguments that declare dependencies.
var requirementKeywords = map[string]bool{
	"install_requires": true,
	"tests_require":    true,
	"setup_requires":   true,
}

// setupRequirements returns the string literals listed in the dependency
// keyword arguments of every setup() call.
func (s *source) setupRequirements() []string {
	var reqs []string
	walk(s.root(), func(n *sitter.Node) bool {
		if n.Type() != "keyword_argument" {
			return true
		}
		name := n.ChildByFieldName("name")
		value := n.ChildByFieldName("value")
		if name == nil || value == nil || !requirementKeywords[s.text(name)] {
			return true
		}
		switch value.Type() {
		case "list", "tuple":
			for i := 0; i < int(value.NamedChildCount()); i++ {
				if c := value.NamedChild(i); c.Type() == "string" {
					reqs = append(reqs, unquote(s.text(c)))
				}
			}
		}
		return false
	})
	return reqs
}

func pyprojectDependencies(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var pp struct {
		Project struct {
			Dependencies         []string            `toml:"dependencies"`
			OptionalDependencies map[string][]string `toml:"optional-dependencies"`
		} `toml:"project"`
		Tool struct {
			Poetry struct {
				Dependencies    map[string]any `toml:"dependencies"`
				DevDependencies map[string]any `toml:"dev-dependencies"`
			} `toml:"poetry"`
		} `toml:"tool"`
	}
	if err := toml.Unmarshal(data, &pp); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}

	deps := append([]string(nil), pp.Project.Dependencies...)
	for _, group := range pp.Project.OptionalDependencies {
		deps = append(deps, group...)
	}
	for name := range pp.Tool.Poetry.Dependencies {
		deps = append(deps, name)
	}
	for name := range pp.Tool.Poetry.DevDependencies {
		deps = append(deps, name)
	}
	return deps, nil
}

// requirementSpec captures the distribution name at the start of a
// requirement specifier such as "requests[socks]>=2.0; python_version>'3'".
var requirementSpec = regexp.MustCompile(`^([A-Za-z0-9][A-Za-z0-9._-]*)`)

// requirementName returns the normalized distribution name of a
// requirements line, or "" for comments, options and URLs.
func requirementName(line string) string {
	line, _, _ = strings.Cut(line, "#")
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "-") || strings.Contains(line, "://") {
		return ""
	}
	m := requirementSpec.FindStringSubmatch(line)
	if m == nil {
		return ""
	}
	return normalizePackage(m[1])
}

// normalizePackage folds case and separators the way package indexes do.
func normalizePackage(name string) string {
	return strings.ToLower(strings.NewReplacer("_", "-", ".", "-").Replace(name))
}

// importPackages maps import names to the distribution that provides them
// where the two differ.
var importPackages = map[string]string{
	"attr":          "attrs",
	"bs4":           "beautifulsoup4",
	"cv2":           "opencv-python",
	"dateutil":      "python-dateutil",
	"dotenv":        "python-dotenv",
	"git":           "gitpython",
	"google":        "protobuf",
	"jwt":           "pyjwt",
	"magic":         "python-magic",
	"MySQLdb":       "mysqlclient",
	"OpenSSL":       "pyopenssl",
	"PIL":           "pillow",
	"serial":        "pyserial",
	"sklearn":       "scikit-learn",
	"skimage":       "scikit-image",
	"yaml":          "pyyaml",
	"zmq":           "pyzmq",
	"Crypto":        "pycryptodome",
	"docx":          "python-docx",
	"pptx":          "python-pptx",
	"telegram":      "python-telegram-bot",
	"usb":           "pyusb",
	"win32api":      "pywin32",
	"Bio":           "biopython",
	"fitz":          "pymupdf",
	"slugify":       "python-slugify",
	"jose":          "python-jose",
	"multipart":     "python-multipart",
	"websocket":     "websocket-client",
	"pkg_resources": "setuptools",
}

// packageName returns the normalized distribution name for an import.
func packageName(module string) string {
	if pkg, ok := importPackages[module]; ok {
		return pkg
	}
	return normalizePackage(module)
}
