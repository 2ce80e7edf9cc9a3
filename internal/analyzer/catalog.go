// Package analyzer assembles the metric providers for every supported
// language.
package analyzer

import (
	"github.com/cockroachdb/errors"

	"github.com/blackwell-systems/projmetrics/internal/analyzer/common"
	"github.com/blackwell-systems/projmetrics/internal/analyzer/python"
	"github.com/blackwell-systems/projmetrics/internal/analyzer/rlang"
	"github.com/blackwell-systems/projmetrics/internal/measure"
)

// Options configures the external tools metrics shell out to. An empty
// command disables the metric that needs it.
type Options struct {
	Licensee    string
	Pycodestyle string
	Pyflakes    string
}

// DefaultOptions returns the stock tool command lines.
func DefaultOptions() Options {
	return Options{
		Licensee:    common.DefaultLicensee,
		Pycodestyle: python.DefaultPycodestyle,
		Pyflakes:    python.DefaultPyflakes,
	}
}

// NewCatalog builds the provider catalog.
func NewCatalog(opts Options) (measure.Catalog, error) {
	licensee, err := optionalTool(opts.Licensee)
	if err != nil {
		return nil, errors.Wrap(err, "tools.licensee")
	}
	pycodestyle, err := optionalTool(opts.Pycodestyle)
	if err != nil {
		return nil, errors.Wrap(err, "tools.pycodestyle")
	}
	pyflakes, err := optionalTool(opts.Pyflakes)
	if err != nil {
		return nil, errors.Wrap(err, "tools.pyflakes")
	}

	return measure.NewCatalog(
		python.NewProvider(python.Tools{Licensee: licensee, Pycodestyle: pycodestyle, Pyflakes: pyflakes}),
		rlang.NewProvider(licensee),
	), nil
}

func optionalTool(cmdline string) (*common.Tool, error) {
	if cmdline == "" {
		return nil, nil
	}
	return common.NewTool(cmdline)
}
