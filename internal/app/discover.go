package app

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/projmetrics/internal/config"
	"github.com/blackwell-systems/projmetrics/internal/output"
	"github.com/blackwell-systems/projmetrics/internal/scanner"
)

var (
	discoverFlagBaseDir     string
	discoverFlagProjectType string
	discoverFlagSort        bool
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "List the projects a measurement run would visit",
	Long: `Discover walks the base directory the same way 'measure' does and lists
each project with its identity and detected language, without measuring
anything.`,
	Args: cobra.NoArgs,
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().StringVarP(&discoverFlagBaseDir, "base-dir", "b", "", "Directory holding the projects")
	discoverCmd.Flags().StringVarP(&discoverFlagProjectType, "project-type", "t", "", "How projects are discovered: directory or git")
	discoverCmd.Flags().BoolVar(&discoverFlagSort, "sort", false, "Sort projects by name instead of discovery order")

	rootCmd.AddCommand(discoverCmd)
}

// discoverResult is a discovered project with its detected language.
type discoverResult struct {
	scanner.Project
	Language string `json:"language,omitempty"`
}

func runDiscover(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("base-dir") {
		cfg.BaseDir = discoverFlagBaseDir
	}
	if cmd.Flags().Changed("project-type") {
		cfg.ProjectType = discoverFlagProjectType
	}

	src, err := scanner.NewSource(scanner.Type(cfg.ProjectType), cfg.BaseDir)
	if err != nil {
		return config.Mark(err)
	}
	projects, err := scanner.Collect(cmd.Context(), src)
	if err != nil {
		return err
	}
	if discoverFlagSort {
		scanner.SortByName(projects)
	}

	results := make([]discoverResult, 0, len(projects))
	for _, p := range projects {
		results = append(results, discoverResult{Project: p, Language: scanner.DetectLanguage(p.Path)})
	}

	if flagJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, output.Section("Projects"))
	fmt.Fprintln(out)

	tbl := output.NewTable("Name", "Language", "Git", "Identity")
	for _, r := range results {
		lang := r.Language
		if lang == "" {
			lang = output.StyleMuted.Render(output.NullCell)
		}
		git := "no"
		if r.HasGit {
			git = output.StyleSuccess.Render("yes")
		}
		tbl.AddRow(r.Name, lang, git, r.ID)
	}
	if err := tbl.Fprint(out); err != nil {
		return err
	}

	fmt.Fprintf(out, "\n %d projects under %s\n", len(results), cfg.BaseDir)
	if len(results) == 0 {
		fmt.Fprintln(os.Stderr, output.StyleWarning.Render(" no projects found"))
	}
	return nil
}
