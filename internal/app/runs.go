package app

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/projmetrics/internal/measure"
	"github.com/blackwell-systems/projmetrics/internal/output"
	"github.com/blackwell-systems/projmetrics/internal/sink"
	"github.com/blackwell-systems/projmetrics/internal/store"
)

var (
	runsFlagLimit     int
	runsFlagOutput    string
	runsFlagNullToken string
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Browse the history of measurement runs",
	Long: `Every 'measure' invocation is recorded in a local SQLite database unless
--no-store is given. 'runs' lists recent runs; the subcommands show or
re-export the rows of a single run.`,
	Args: cobra.NoArgs,
	RunE: runRunsList,
}

var runsShowCmd = &cobra.Command{
	Use:   "show [run-id]",
	Short: "Show the rows and failures of a run (default: latest)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRunsShow,
}

var runsExportCmd = &cobra.Command{
	Use:   "export [run-id]",
	Short: "Write a recorded run back out as CSV (default: latest)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRunsExport,
}

func init() {
	runsCmd.Flags().IntVar(&runsFlagLimit, "limit", 20, "Number of runs to list (0 for all)")
	runsExportCmd.Flags().StringVarP(&runsFlagOutput, "file-output", "f", sink.Stdout, "CSV output path, - for stdout")
	runsExportCmd.Flags().StringVar(&runsFlagNullToken, "null-token", "", "Text written for values that were not measured")

	runsCmd.AddCommand(runsShowCmd, runsExportCmd)
	rootCmd.AddCommand(runsCmd)
}

func openHistory() (*store.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, errors.Wrap(err, "opening run history")
	}
	return db, nil
}

func runRunsList(cmd *cobra.Command, args []string) error {
	db, err := openHistory()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	runs, err := db.ListRuns(runsFlagLimit)
	if err != nil {
		return errors.Wrap(err, "listing runs")
	}

	out := cmd.OutOrStdout()
	if flagJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	fmt.Fprintln(out, output.Section("Measurement runs"))
	fmt.Fprintln(out)
	if len(runs) == 0 {
		fmt.Fprintln(out, output.StyleMuted.Render(" No runs recorded yet. Run 'projmetrics measure' first."))
		return nil
	}

	tbl := output.NewTable("Run", "Started", "Language", "Projects", "Metrics", "Status", "Source")
	for _, r := range runs {
		status := output.StyleWarning.Render("incomplete")
		if r.FinishedAt != nil {
			status = output.StyleSuccess.Render("done in " + r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String())
		}
		tbl.AddRow(
			strconv.FormatInt(r.ID, 10),
			output.Ago(r.StartedAt),
			r.Language,
			strconv.Itoa(r.Projects),
			strconv.Itoa(max(len(r.Columns)-1, 0)),
			status,
			r.Source,
		)
	}
	return tbl.Fprint(out)
}

// loadRun resolves the optional run-id argument and rebuilds its table.
func loadRun(db *store.DB, args []string) (*store.Run, *measure.Table, []store.FailureRecord, error) {
	var (
		run *store.Run
		err error
	)
	if len(args) == 1 {
		id, perr := strconv.ParseInt(args[0], 10, 64)
		if perr != nil {
			return nil, nil, nil, errors.Newf("invalid run id %q", args[0])
		}
		run, err = db.GetRun(id)
	} else {
		run, err = db.GetLatestRun()
	}
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "loading run")
	}
	if run == nil {
		return nil, nil, nil, errors.WithHint(errors.New("run not found"), "list runs with 'projmetrics runs'")
	}

	rows, err := db.GetRows(run.ID)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "loading rows")
	}
	fs, err := db.GetFailures(run.ID)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "loading failures")
	}
	return run, rebuildTable(run.Columns, rows), fs, nil
}

// rebuildTable turns stored rows back into a result table in write order.
func rebuildTable(columns []string, rows []store.ResultRow) *measure.Table {
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		index[c] = i
	}

	table := &measure.Table{Columns: columns, Rows: make([]measure.Row, 0, len(rows))}
	for _, r := range rows {
		values := make([]measure.Value, len(columns))
		values[0] = measure.String(r.ProjectID)
		for _, m := range r.Cells {
			if ci, ok := index[m.Metric]; ok && ci > 0 {
				values[ci] = sink.ValueFromMeasurement(m)
			}
		}
		table.Rows = append(table.Rows, measure.Row{ProjectID: r.ProjectID, Path: r.Path, Values: values})
	}
	return table
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	db, err := openHistory()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	run, table, failures, err := loadRun(db, args)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if flagJSON {
		rows := make([]map[string]string, 0, table.Len())
		for _, r := range table.Rows {
			m := make(map[string]string, len(table.Columns))
			for i, c := range table.Columns {
				m[c] = r.Values[i].String()
			}
			rows = append(rows, m)
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Run      *store.Run            `json:"run"`
			Rows     []map[string]string   `json:"rows"`
			Failures []store.FailureRecord `json:"failures"`
		}{run, rows, failures})
	}

	fmt.Fprintln(out, output.Section(fmt.Sprintf("Run %d · %s · %s", run.ID, run.Language, run.Source)))
	fmt.Fprintln(out)
	if err := sink.NewTableWriter(out).WriteRows(table.Columns, table.Rows); err != nil {
		return err
	}

	if len(failures) > 0 {
		fmt.Fprintln(out, output.Section("Failures"))
		fmt.Fprintln(out)
		tbl := output.NewTable("Project", "Metric", "Kind", "Message")
		for _, f := range failures {
			metric := f.Metric
			if metric == "" {
				metric = output.StyleMuted.Render(output.NullCell)
			}
			tbl.AddRow(f.ProjectID, metric, output.StyleError.Render(f.Kind), f.Message)
		}
		return tbl.Fprint(out)
	}
	return nil
}

func runRunsExport(cmd *cobra.Command, args []string) error {
	db, err := openHistory()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	_, table, _, err := loadRun(db, args)
	if err != nil {
		return err
	}

	w, err := sink.OpenCSV(runsFlagOutput, sink.ModeOverwrite, runsFlagNullToken)
	if err != nil {
		return err
	}
	acc := sink.NewAccumulator(table.Columns, w)
	acc.Append(table.Rows)
	if _, err := acc.Flush(); err != nil {
		_ = acc.Close()
		return err
	}
	return acc.Close()
}
