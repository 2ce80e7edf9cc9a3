package measure

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// ErrUnknownLanguage is returned when no provider is registered for the
// requested language.
var ErrUnknownLanguage = errors.New("unknown language")

// Func measures one metric for the project rooted at projectPath. It returns
// Null() when the metric is not computable for the project and an error only
// when the computation itself failed. Implementations must not keep mutable
// state between calls.
type Func func(ctx context.Context, projectPath string) (Value, error)

// Provider is the set of metrics implemented for one language.
type Provider struct {
	language string
	names    []string
	funcs    map[string]Func
}

// NewProvider returns an empty provider for language.
func NewProvider(language string) *Provider {
	return &Provider{
		language: strings.ToLower(language),
		funcs:    make(map[string]Func),
	}
}

// Register adds fn under name. Registering a name twice or registering the
// reserved id column panics, since both are programming errors.
func (p *Provider) Register(name string, fn Func) *Provider {
	if name == IDColumn {
		panic("measure: metric name " + IDColumn + " is reserved")
	}
	if _, exists := p.funcs[name]; exists {
		panic(fmt.Sprintf("measure: metric %q already registered for %s", name, p.language))
	}
	p.funcs[name] = fn
	p.names = append(p.names, name)
	return p
}

// Language returns the provider's language key.
func (p *Provider) Language() string { return p.language }

// Names returns metric names in registration order.
func (p *Provider) Names() []string {
	out := make([]string, len(p.names))
	copy(out, p.names)
	return out
}

// Lookup returns the function registered under name.
func (p *Provider) Lookup(name string) (Func, bool) {
	fn, ok := p.funcs[name]
	return fn, ok
}

// Catalog indexes providers by language.
type Catalog map[string]*Provider

// NewCatalog builds a catalog from providers.
func NewCatalog(providers ...*Provider) Catalog {
	c := make(Catalog, len(providers))
	for _, p := range providers {
		c[p.language] = p
	}
	return c
}

// Languages returns the sorted language keys.
func (c Catalog) Languages() []string {
	langs := make([]string, 0, len(c))
	for l := range c {
		langs = append(langs, l)
	}
	sort.Strings(langs)
	return langs
}

// Registry is the resolved, read-only column set for one run.
type Registry struct {
	language string
	columns  []string
	funcs    []Func
	skipped  []string
}

// NewRegistry resolves the requested metric names for language. An empty
// request selects every metric the provider implements. Names the provider
// does not implement are dropped with a warning.
func NewRegistry(catalog Catalog, language string, requested []string, log *zap.SugaredLogger) (*Registry, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	provider, ok := catalog[strings.ToLower(language)]
	if !ok {
		return nil, errors.WithHintf(
			errors.Wrapf(ErrUnknownLanguage, "%q", language),
			"supported languages: %s", strings.Join(catalog.Languages(), ", "),
		)
	}

	if len(requested) == 0 {
		requested = provider.Names()
	}

	r := &Registry{
		language: provider.language,
		columns:  []string{IDColumn},
		funcs:    []Func{nil},
	}

	seen := map[string]bool{IDColumn: true}
	for _, name := range requested {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		fn, ok := provider.Lookup(name)
		if !ok {
			r.skipped = append(r.skipped, name)
			log.Warnw("metric not implemented for language, skipping",
				"metric", name,
				"language", provider.language)
			continue
		}
		r.columns = append(r.columns, name)
		r.funcs = append(r.funcs, fn)
	}

	return r, nil
}

// Language returns the language the registry was built for.
func (r *Registry) Language() string { return r.language }

// Columns returns the column names, id first.
func (r *Registry) Columns() []string {
	out := make([]string, len(r.columns))
	copy(out, r.columns)
	return out
}

// Skipped returns requested names that the language does not implement.
func (r *Registry) Skipped() []string {
	out := make([]string, len(r.skipped))
	copy(out, r.skipped)
	return out
}

// Len returns the number of columns including id.
func (r *Registry) Len() int { return len(r.columns) }

// NullRow returns a row for project with every metric null.
func (r *Registry) NullRow(projectID, path string) Row {
	values := make([]Value, len(r.columns))
	values[0] = String(projectID)
	return Row{ProjectID: projectID, Path: path, Values: values}
}
