package measure

import (
	"context"
	"os"
	"runtime/debug"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/blackwell-systems/projmetrics/internal/scanner"
)

// DefaultWorkers is the default number of projects measured concurrently.
const DefaultWorkers = 5

// Runner measures a batch of projects with a bounded number of workers.
type Runner struct {
	dispatcher *Dispatcher
	workers    int
	log        *zap.SugaredLogger

	// measure is the per-project unit of work; tests replace it to simulate
	// worker crashes.
	measure func(ctx context.Context, p scanner.Project) Row
}

// NewRunner returns a runner using up to workers goroutines per batch.
func NewRunner(dispatcher *Dispatcher, workers int, log *zap.SugaredLogger) *Runner {
	if workers < 1 {
		workers = DefaultWorkers
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Runner{
		dispatcher: dispatcher,
		workers:    workers,
		log:        log,
		measure:    dispatcher.Measure,
	}
}

// Workers returns the concurrency bound.
func (r *Runner) Workers() int { return r.workers }

// Run measures every project in batch and returns one row per project. Rows
// come back in completion order. A project whose unit of work fails as a
// whole gets an all-null row; siblings are unaffected.
func (r *Runner) Run(ctx context.Context, batch []scanner.Project) []Row {
	results := make(chan Row, len(batch))

	// Plain group, not WithContext: one project's failure must not cancel
	// the rest of the batch.
	var g errgroup.Group
	g.SetLimit(r.workers)
	for _, p := range batch {
		g.Go(func() error {
			results <- r.measureOne(ctx, p)
			return nil
		})
	}
	_ = g.Wait()
	close(results)

	rows := make([]Row, 0, len(batch))
	for row := range results {
		rows = append(rows, row)
	}
	return rows
}

// measureOne runs the unit of work for p and converts a crash into an
// all-null row.
func (r *Runner) measureOne(ctx context.Context, p scanner.Project) (row Row) {
	defer func() {
		if rec := recover(); rec != nil {
			row = r.projectFailure(p, &panicError{value: rec, stack: debug.Stack()})
		}
	}()

	if err := checkProjectDir(p.Path); err != nil {
		return r.projectFailure(p, err)
	}
	return r.measure(ctx, p)
}

func (r *Runner) projectFailure(p scanner.Project, err error) Row {
	row := r.dispatcher.Registry().NullRow(p.ID, p.Path)
	f := Failure{
		Kind:      FailureProject,
		ProjectID: p.ID,
		Path:      p.Path,
		Err:       err,
		At:        time.Now(),
	}
	row.Failures = append(row.Failures, f)
	r.log.Errorw("project measurement failed",
		"kind", string(f.Kind),
		"project", p.ID,
		"path", p.Path,
		"error", err)
	return row
}

// checkProjectDir verifies path is a readable directory.
func checkProjectDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return errors.Wrap(err, "opening project")
	}
	if !info.IsDir() {
		return errors.Newf("project path %s is not a directory", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "opening project")
	}
	return f.Close()
}
