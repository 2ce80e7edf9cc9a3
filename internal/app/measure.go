package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/projmetrics/internal/analyzer"
	"github.com/blackwell-systems/projmetrics/internal/config"
	"github.com/blackwell-systems/projmetrics/internal/measure"
	"github.com/blackwell-systems/projmetrics/internal/output"
	"github.com/blackwell-systems/projmetrics/internal/scanner"
	"github.com/blackwell-systems/projmetrics/internal/sink"
	"github.com/blackwell-systems/projmetrics/internal/store"
)

var (
	measureFlagLanguage    string
	measureFlagBaseDir     string
	measureFlagProjectType string
	measureFlagOutput      string
	measureFlagWorkers     int
	measureFlagBatchSize   int
	measureFlagMetrics     []string
	measureFlagAppend      bool
	measureFlagNullToken   string
	measureFlagTimeout     string
	measureFlagPrint       bool
	measureFlagNoStore     bool
)

var measureCmd = &cobra.Command{
	Use:   "measure",
	Short: "Measure every project and write one CSV row per project",
	Long: `Measure discovers projects under the base directory, runs every selected
metric for each of them, and flushes results to the output file after each
batch. A metric that fails or times out leaves an empty cell; it never stops
the run.`,
	Example: `  projmetrics measure -l python -b ~/src -f results.csv
  projmetrics measure -t git -p 8 --batch-size 20 --metrics count_loc,license_type`,
	Args: cobra.NoArgs,
	RunE: runMeasure,
}

func init() {
	f := measureCmd.Flags()
	f.StringVarP(&measureFlagLanguage, "language", "l", "", "Project language (python, r)")
	f.StringVarP(&measureFlagBaseDir, "base-dir", "b", "", "Directory holding the projects")
	f.StringVarP(&measureFlagProjectType, "project-type", "t", "", "How projects are discovered: directory or git")
	f.StringVarP(&measureFlagOutput, "file-output", "f", "", "CSV output path, - for stdout")
	f.IntVarP(&measureFlagWorkers, "processes", "p", 0, "Projects measured in parallel")
	f.IntVar(&measureFlagBatchSize, "batch-size", 0, "Projects per flushed batch")
	f.StringSliceVar(&measureFlagMetrics, "metrics", nil, "Metrics to measure (default: all for the language)")
	f.BoolVar(&measureFlagAppend, "append", false, "Append to an existing output file instead of overwriting it")
	f.StringVar(&measureFlagNullToken, "null-token", "", "Text written for values that could not be measured")
	f.StringVar(&measureFlagTimeout, "timeout", "", "Per metric timeout, e.g. 90s (0 disables)")
	f.BoolVar(&measureFlagPrint, "print", false, "Also print each batch as a table")
	f.BoolVar(&measureFlagNoStore, "no-store", false, "Do not record the run in the history database")

	rootCmd.AddCommand(measureCmd)
}

// loadMeasureConfig loads the config file and overlays any flags the user
// set explicitly.
func loadMeasureConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("language") {
		cfg.Language = measureFlagLanguage
	}
	if flags.Changed("base-dir") {
		cfg.BaseDir = measureFlagBaseDir
	}
	if flags.Changed("project-type") {
		cfg.ProjectType = measureFlagProjectType
	}
	if flags.Changed("file-output") {
		cfg.Output.Path = measureFlagOutput
	}
	if flags.Changed("processes") {
		cfg.Workers = measureFlagWorkers
	}
	if flags.Changed("batch-size") {
		cfg.BatchSize = measureFlagBatchSize
	}
	if flags.Changed("metrics") {
		cfg.Metrics = measureFlagMetrics
	}
	if flags.Changed("append") && measureFlagAppend {
		cfg.Output.Mode = string(sink.ModeAppend)
	}
	if flags.Changed("null-token") {
		cfg.Output.NullToken = measureFlagNullToken
	}
	if flags.Changed("timeout") {
		d, err := parseTimeout(measureFlagTimeout)
		if err != nil {
			return nil, err
		}
		cfg.MetricTimeout = d
	}
	if flags.Changed("no-store") && measureFlagNoStore {
		cfg.Store.Enabled = false
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runMeasure(cmd *cobra.Command, args []string) error {
	cfg, err := loadMeasureConfig(cmd)
	if err != nil {
		return err
	}

	catalog, err := analyzer.NewCatalog(analyzer.Options{
		Licensee:    cfg.Tools.Licensee,
		Pycodestyle: cfg.Tools.Pycodestyle,
		Pyflakes:    cfg.Tools.Pyflakes,
	})
	if err != nil {
		return config.Mark(err)
	}
	registry, err := measure.NewRegistry(catalog, cfg.Language, cfg.Metrics, log)
	if err != nil {
		return config.Mark(err)
	}

	src, err := scanner.NewSource(scanner.Type(cfg.ProjectType), cfg.BaseDir)
	if err != nil {
		return config.Mark(err)
	}

	// Open every destination before measuring so a bad path fails fast.
	mode, err := sink.ParseMode(cfg.Output.Mode)
	if err != nil {
		return config.Mark(err)
	}
	csvWriter, err := sink.OpenCSV(cfg.Output.Path, mode, cfg.Output.NullToken)
	if err != nil {
		return err
	}
	writers := []sink.Writer{csvWriter}

	if measureFlagPrint && cfg.Output.Path != sink.Stdout {
		writers = append(writers, sink.NewTableWriter(os.Stdout))
	}

	var storeWriter *sink.StoreWriter
	if cfg.Store.Enabled {
		db, err := store.Open(cfg.Store.Path)
		if err != nil {
			_ = csvWriter.Close()
			return errors.Wrap(err, "opening run history")
		}
		defer func() { _ = db.Close() }()
		storeWriter = sink.NewStoreWriter(db, registry.Language(), cfg.BaseDir, appVersion)
		writers = append(writers, storeWriter)
	}

	acc := sink.NewAccumulator(registry.Columns(), writers...)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dispatcher := measure.NewDispatcher(registry,
		measure.WithMetricTimeout(cfg.MetricTimeout),
		measure.WithLogger(log))
	runner := measure.NewRunner(dispatcher, cfg.Workers, log)
	pipeline := measure.NewPipeline(runner, cfg.BatchSize, log)

	log.Infow("measuring projects",
		"language", registry.Language(),
		"source", cfg.BaseDir,
		"type", cfg.ProjectType,
		"metrics", registry.Len()-1,
		"workers", runner.Workers(),
		"batch_size", cfg.BatchSize,
		"output", csvWriter.Path())

	summary, runErr := pipeline.Run(ctx, src, acc)
	closeErr := acc.Close()

	if storeWriter != nil && storeWriter.RunID() != 0 {
		log.Debugw("run recorded", "run", storeWriter.RunID())
	}
	fmt.Fprintln(os.Stderr, output.Summary(summary, describeOutput(cfg.Output.Path)))

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			return errors.WithHint(runErr, "rows flushed before the interruption are kept in the output")
		}
		return runErr
	}
	return closeErr
}

func describeOutput(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return path
	}
	return fmt.Sprintf("%s (%s)", path, humanize.Bytes(uint64(info.Size())))
}

func parseTimeout(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, errors.WithHint(
			errors.Wrapf(config.ErrInvalid, "timeout %q", s),
			"use a duration such as 90s or 5m, or 0 to disable")
	}
	return d, nil
}
