package measure

import (
	"context"
	"iter"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/blackwell-systems/projmetrics/internal/scanner"
)

// DefaultBatchSize is the default number of projects per batch. Metric
// functions may shell out to heavyweight analyzers, so it stays small.
const DefaultBatchSize = 5

// Sink receives batches of rows. Append and Flush are only ever called from
// the goroutine running the pipeline.
type Sink interface {
	Append(rows []Row)
	Flush() (*Table, error)
}

// Summary describes a finished run.
type Summary struct {
	Projects int
	Batches  int
	Failures []Failure
	Started  time.Time
	Duration time.Duration
}

// FailureCount returns the number of recorded failures of kind k.
func (s Summary) FailureCount(k FailureKind) int {
	n := 0
	for _, f := range s.Failures {
		if f.Kind == k {
			n++
		}
	}
	return n
}

// Pipeline groups a project source into batches and measures them in order.
type Pipeline struct {
	runner    *Runner
	batchSize int
	log       *zap.SugaredLogger
}

// NewPipeline returns a pipeline that hands batches of batchSize projects to
// runner.
func NewPipeline(runner *Runner, batchSize int, log *zap.SugaredLogger) *Pipeline {
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Pipeline{runner: runner, batchSize: batchSize, log: log}
}

// Columns returns the column set every yielded row follows.
func (p *Pipeline) Columns() []string {
	return p.runner.dispatcher.Registry().Columns()
}

// Batches consumes src and yields the rows of each batch once the whole
// batch has been measured. Batch N+1 is not started until the consumer has
// returned from the yield for batch N. A batch interrupted by cancellation is
// never yielded; the context error ends the sequence instead.
func (p *Pipeline) Batches(ctx context.Context, src scanner.Source) iter.Seq2[[]Row, error] {
	return func(yield func([]Row, error) bool) {
		batch := make([]scanner.Project, 0, p.batchSize)
		n := 0

		run := func() bool {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return false
			}
			n++
			p.log.Debugw("measuring batch", "batch", n, "projects", len(batch))
			rows := p.runner.Run(ctx, batch)
			batch = make([]scanner.Project, 0, p.batchSize)
			if err := ctx.Err(); err != nil {
				// Cancelled metrics left nulls that do not mean unmeasurable.
				p.log.Warnw("batch interrupted, discarding rows", "batch", n, "projects", len(rows))
				yield(nil, err)
				return false
			}
			return yield(rows, nil)
		}

		for project, err := range src.Projects(ctx) {
			if err != nil {
				yield(nil, errors.Wrap(err, "discovering projects"))
				return
			}
			batch = append(batch, project)
			if len(batch) == p.batchSize {
				if !run() {
					return
				}
			}
		}
		if len(batch) > 0 {
			run()
		}
	}
}

// Run measures every project from src and flushes each batch to sink before
// the next batch starts. A sink error aborts the run; rows flushed before it
// stay flushed.
func (p *Pipeline) Run(ctx context.Context, src scanner.Source, sink Sink) (Summary, error) {
	summary := Summary{Started: time.Now()}

	for rows, err := range p.Batches(ctx, src) {
		if err != nil {
			summary.Duration = time.Since(summary.Started)
			return summary, err
		}

		summary.Batches++
		summary.Projects += len(rows)
		for _, row := range rows {
			summary.Failures = append(summary.Failures, row.Failures...)
		}

		sink.Append(rows)
		if _, err := sink.Flush(); err != nil {
			summary.Duration = time.Since(summary.Started)
			return summary, errors.Wrapf(err, "flushing batch %d", summary.Batches)
		}

		p.log.Infow("batch flushed",
			"batch", summary.Batches,
			"projects", len(rows),
			"total", summary.Projects)
	}

	summary.Duration = time.Since(summary.Started)
	return summary, nil
}
