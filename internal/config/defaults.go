// Package config provides configuration loading and defaults for projmetrics.
package config

import "time"

// DefaultConfigDir is the default location for projmetrics configuration.
const DefaultConfigDir = "~/.config/projmetrics"

// DefaultDBName is the filename for the run history database.
const DefaultDBName = "projmetrics.db"

// DefaultConfigFile is the filename for the YAML config.
const DefaultConfigFile = "config.yaml"

// EnvPrefix prefixes environment overrides, e.g. PROJMETRICS_BATCH_SIZE.
const EnvPrefix = "PROJMETRICS"

// DefaultLanguage is the language measured when none is given.
const DefaultLanguage = "python"

// DefaultProjectType treats every direct subdirectory as a project.
const DefaultProjectType = "directory"

// DefaultBatchSize is how many projects are measured between flushes.
const DefaultBatchSize = 5

// DefaultWorkers bounds how many projects are measured at once.
const DefaultWorkers = 5

// DefaultMetricTimeout caps a single metric on a single project. Zero
// disables the cap.
const DefaultMetricTimeout = 5 * time.Minute

// DefaultOutput holds the default output preferences.
var DefaultOutput = Output{
	Path:      "projmetrics.csv",
	Mode:      "overwrite",
	NullToken: "",
	Color:     true,
}

// DefaultStore holds the default run history settings.
var DefaultStore = Store{
	Enabled: true,
}

// DefaultTools holds the stock external analyzer command lines.
var DefaultTools = Tools{
	Licensee:    "licensee detect --confidence=98 --json",
	Pycodestyle: "pycodestyle",
	Pyflakes:    "pyflakes",
}
