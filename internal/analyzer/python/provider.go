package python

import (
	"github.com/blackwell-systems/projmetrics/internal/analyzer/common"
	"github.com/blackwell-systems/projmetrics/internal/measure"
)

// Language is the provider's language key.
const Language = "python"

// Tools are the external programs some metrics shell out to. A nil tool
// leaves its metric unregistered.
type Tools struct {
	Licensee    *common.Tool
	Pycodestyle *common.Tool
	Pyflakes    *common.Tool
}

// NewProvider returns the Python metric provider.
func NewProvider(tools Tools) *measure.Provider {
	p := measure.NewProvider(Language).
		Register("packageability", Packageability).
		Register("average_comment_density", CommentDensity).
		Register("testlibrary_usage", TestLibraryUsage).
		Register("count_loc", CountLOC).
		Register("requirements_declared", RequirementsDeclared)
	if tools.Pycodestyle != nil {
		p.Register("average_standard_compliance", StandardCompliance(tools.Pycodestyle))
	}
	if tools.Pyflakes != nil {
		p.Register("error_density", ErrorDensity(tools.Pyflakes))
	}
	return common.Register(p, tools.Licensee)
}
