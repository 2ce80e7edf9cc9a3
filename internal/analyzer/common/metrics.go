package common

import (
	"context"
	"strings"

	"github.com/blackwell-systems/projmetrics/internal/measure"
)

var (
	dockerFiles      = MatchingGlob("[Dd]ockerfile", "[Dd]ocker-compose.yml")
	singularityFiles = MatchingGlob("[Ss]ingularity.*", "[Ss]ingularity")
)

// Register adds the language independent metrics to p. A nil licensee
// leaves license_type out.
func Register(p *measure.Provider, licensee *Tool) *measure.Provider {
	p.Register("project_readme_size", ReadmeSize).
		Register("flesch_reading_ease", ReadingEase).
		Register("flesch_kincaid_grade", KincaidGrade).
		Register("docker_setup", DockerSetup).
		Register("singularity_setup", SingularitySetup)
	if licensee != nil {
		p.Register("license_type", LicenseType(licensee))
	}
	return p
}

// ReadmeSize counts the words in the project's README.
func ReadmeSize(_ context.Context, root string) (measure.Value, error) {
	text, ok, err := LoadReadme(root)
	if err != nil || !ok {
		return measure.Null(), err
	}
	return measure.Int(len(strings.Fields(text))), nil
}

// ReadingEase computes the Flesch reading ease of the README.
func ReadingEase(_ context.Context, root string) (measure.Value, error) {
	return readmeScore(root, TextStats.FleschReadingEase)
}

// KincaidGrade computes the Flesch-Kincaid grade level of the README.
func KincaidGrade(_ context.Context, root string) (measure.Value, error) {
	return readmeScore(root, TextStats.FleschKincaidGrade)
}

func readmeScore(root string, score func(TextStats) (float64, bool)) (measure.Value, error) {
	text, ok, err := LoadReadme(root)
	if err != nil || !ok {
		return measure.Null(), err
	}
	v, ok := score(Analyze(text))
	if !ok {
		return measure.Null(), nil
	}
	return measure.Number(v), nil
}

// DockerSetup reports whether any Dockerfile or docker-compose.yml exists.
func DockerSetup(_ context.Context, root string) (measure.Value, error) {
	found, err := AnyFile(root, dockerFiles)
	if err != nil {
		return measure.Null(), err
	}
	return measure.Bool(found), nil
}

// SingularitySetup reports whether a Singularity recipe exists.
func SingularitySetup(_ context.Context, root string) (measure.Value, error) {
	found, err := AnyFile(root, singularityFiles)
	if err != nil {
		return measure.Null(), err
	}
	return measure.Bool(found), nil
}

// LicenseType returns a metric naming the project's licence.
func LicenseType(tool *Tool) measure.Func {
	return func(ctx context.Context, root string) (measure.Value, error) {
		license, ok, err := DetectLicense(ctx, tool, root)
		if err != nil || !ok {
			return measure.Null(), err
		}
		return measure.String(license), nil
	}
}
