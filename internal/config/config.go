package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"
)

// ErrInvalid marks configuration errors, which abort before any project is
// measured. Errors from other packages that stem from settings are tagged
// with Mark so errors.Is(err, ErrInvalid) holds for all of them.
var ErrInvalid = errors.New("invalid configuration")

// Mark tags err as a configuration error. A nil err stays nil.
func Mark(err error) error {
	if err == nil {
		return nil
	}
	return errors.Mark(err, ErrInvalid)
}

// Config is the top-level projmetrics configuration.
type Config struct {
	Language      string        `mapstructure:"language"`
	BaseDir       string        `mapstructure:"base_dir"`
	ProjectType   string        `mapstructure:"project_type"`
	BatchSize     int           `mapstructure:"batch_size"`
	Workers       int           `mapstructure:"workers"`
	Metrics       []string      `mapstructure:"metrics"`
	MetricTimeout time.Duration `mapstructure:"metric_timeout"`
	Output        Output        `mapstructure:"output"`
	Store         Store         `mapstructure:"store"`
	Tools         Tools         `mapstructure:"tools"`
}

// Output defines where and how results are written.
type Output struct {
	Path      string `mapstructure:"path"`
	Mode      string `mapstructure:"mode"`
	NullToken string `mapstructure:"null_token"`
	Color     bool   `mapstructure:"color"`
}

// Store defines the run history database.
type Store struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Tools holds command lines for external analyzers. An empty command
// disables the metrics that need it.
type Tools struct {
	Licensee    string `mapstructure:"licensee"`
	Pycodestyle string `mapstructure:"pycodestyle"`
	Pyflakes    string `mapstructure:"pyflakes"`
}

// expandPath replaces a leading ~ with the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// Load reads configuration from the given path (or the default location),
// applies PROJMETRICS_* environment overrides and returns a Config with all
// defaults applied.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	// Set defaults.
	v.SetDefault("language", DefaultLanguage)
	v.SetDefault("base_dir", ".")
	v.SetDefault("project_type", DefaultProjectType)
	v.SetDefault("batch_size", DefaultBatchSize)
	v.SetDefault("workers", DefaultWorkers)
	v.SetDefault("metrics", []string{})
	v.SetDefault("metric_timeout", DefaultMetricTimeout)
	v.SetDefault("output.path", DefaultOutput.Path)
	v.SetDefault("output.mode", DefaultOutput.Mode)
	v.SetDefault("output.null_token", DefaultOutput.NullToken)
	v.SetDefault("output.color", DefaultOutput.Color)
	v.SetDefault("store.enabled", DefaultStore.Enabled)
	v.SetDefault("store.path", "")
	v.SetDefault("tools.licensee", DefaultTools.Licensee)
	v.SetDefault("tools.pycodestyle", DefaultTools.Pycodestyle)
	v.SetDefault("tools.pyflakes", DefaultTools.Pyflakes)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(expandPath(cfgFile))
	} else {
		v.AddConfigPath(ConfigDir())
		v.SetConfigName(strings.TrimSuffix(DefaultConfigFile, filepath.Ext(DefaultConfigFile)))
		v.SetConfigType("yaml")
	}

	// Read config file if it exists; missing file is not an error.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, errors.Mark(errors.Wrap(err, "reading config"), ErrInvalid)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "decoding config"), ErrInvalid)
	}

	// Expand paths.
	cfg.BaseDir = expandPath(cfg.BaseDir)
	cfg.Output.Path = expandPath(cfg.Output.Path)
	if cfg.Store.Path == "" {
		cfg.Store.Path = DBPath()
	}
	cfg.Store.Path = expandPath(cfg.Store.Path)

	return &cfg, nil
}

// Validate checks the settings that must hold before measuring starts.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Language) == "":
		return errors.Wrap(ErrInvalid, "language is empty")
	case c.BaseDir == "":
		return errors.Wrap(ErrInvalid, "base_dir is empty")
	case c.ProjectType != "directory" && c.ProjectType != "git":
		return errors.WithHint(
			errors.Wrapf(ErrInvalid, "project_type %q", c.ProjectType),
			"use directory or git")
	case c.BatchSize < 1:
		return errors.Wrapf(ErrInvalid, "batch_size must be at least 1, got %d", c.BatchSize)
	case c.Workers < 1:
		return errors.Wrapf(ErrInvalid, "workers must be at least 1, got %d", c.Workers)
	case c.MetricTimeout < 0:
		return errors.Wrapf(ErrInvalid, "metric_timeout must not be negative, got %s", c.MetricTimeout)
	case c.Output.Path == "":
		return errors.WithHint(errors.Wrap(ErrInvalid, "output path is empty"), "use - for stdout")
	case c.Output.Mode != "overwrite" && c.Output.Mode != "append":
		return errors.WithHint(
			errors.Wrapf(ErrInvalid, "output mode %q", c.Output.Mode),
			"use overwrite or append")
	}
	return nil
}

// DBPath returns the default path to the SQLite database.
func DBPath() string {
	return filepath.Join(ConfigDir(), DefaultDBName)
}

// ConfigDir returns the expanded configuration directory.
func ConfigDir() string {
	return expandPath(DefaultConfigDir)
}
