package app

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/projmetrics/internal/analyzer"
	"github.com/blackwell-systems/projmetrics/internal/config"
	"github.com/blackwell-systems/projmetrics/internal/measure"
	"github.com/blackwell-systems/projmetrics/internal/output"
)

var metricsFlagLanguage string

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "List the metrics available for each language",
	Args:  cobra.NoArgs,
	RunE:  runMetrics,
}

func init() {
	metricsCmd.Flags().StringVarP(&metricsFlagLanguage, "language", "l", "", "Only list metrics for this language")
	rootCmd.AddCommand(metricsCmd)
}

func runMetrics(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
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

	languages := catalog.Languages()
	if metricsFlagLanguage != "" {
		lang := strings.ToLower(metricsFlagLanguage)
		if _, ok := catalog[lang]; !ok {
			return config.Mark(errors.WithHintf(errors.Wrapf(measure.ErrUnknownLanguage, "%q", metricsFlagLanguage),
				"supported languages: %s", strings.Join(languages, ", ")))
		}
		languages = []string{lang}
	}

	listing := make(map[string][]string, len(languages))
	for _, lang := range languages {
		listing[lang] = catalog[lang].Names()
	}

	out := cmd.OutOrStdout()
	if flagJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(listing)
	}

	for _, lang := range languages {
		fmt.Fprintln(out, output.Section(lang))
		for _, name := range listing[lang] {
			fmt.Fprintf(out, "   %s\n", name)
		}
	}
	fmt.Fprintln(out)
	return nil
}
