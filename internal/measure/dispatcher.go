package measure

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/felixgeelhaar/fortify/timeout"
	"go.uber.org/zap"

	"github.com/blackwell-systems/projmetrics/internal/scanner"
)

// panicError carries a recovered panic out of a metric function.
type panicError struct {
	value any
	stack []byte
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}

// Dispatcher computes one project's row from a registry.
type Dispatcher struct {
	registry *Registry
	timeout  time.Duration
	log      *zap.SugaredLogger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithMetricTimeout bounds every metric call. Zero disables the bound.
func WithMetricTimeout(d time.Duration) DispatcherOption {
	return func(disp *Dispatcher) { disp.timeout = d }
}

// WithLogger sets the logger failures are reported to.
func WithLogger(log *zap.SugaredLogger) DispatcherOption {
	return func(disp *Dispatcher) {
		if log != nil {
			disp.log = log
		}
	}
}

// NewDispatcher returns a dispatcher over registry.
func NewDispatcher(registry *Registry, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		log:      zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Registry returns the registry the dispatcher measures against.
func (d *Dispatcher) Registry() *Registry { return d.registry }

// Measure runs every registered metric against project sequentially. The
// returned row always has one value per column; a metric that fails is null
// and its failure is recorded on the row.
func (d *Dispatcher) Measure(ctx context.Context, project scanner.Project) Row {
	row := d.registry.NullRow(project.ID, project.Path)

	for i := 1; i < len(d.registry.columns); i++ {
		if ctx.Err() != nil {
			// The run is being abandoned; the row will be discarded.
			break
		}
		name := d.registry.columns[i]
		v, failure := d.invoke(ctx, name, d.registry.funcs[i], project)
		if failure != nil {
			d.record(failure)
			row.Failures = append(row.Failures, *failure)
			continue
		}
		row.Values[i] = v
	}

	return row
}

// invoke calls fn once, converting errors, panics and timeouts into a Failure.
func (d *Dispatcher) invoke(ctx context.Context, name string, fn Func, project scanner.Project) (Value, *Failure) {
	call := func(ctx context.Context) (v Value, err error) {
		defer func() {
			if r := recover(); r != nil {
				v = Null()
				err = &panicError{value: r, stack: debug.Stack()}
			}
		}()
		return fn(ctx, project.Path)
	}

	var (
		v        Value
		err      error
		timedOut atomic.Bool
	)
	if d.timeout > 0 {
		t := timeout.New[Value](timeout.Config{DefaultTimeout: d.timeout})
		v, err = t.Execute(ctx, d.timeout, func(ctx context.Context) (Value, error) {
			v, err := bounded(ctx, d.timeout, call)
			if errors.Is(err, errMetricTimeout) {
				timedOut.Store(true)
			}
			return v, err
		})
	} else {
		v, err = call(ctx)
	}
	if err == nil {
		return v, nil
	}

	kind := FailureError
	var pe *panicError
	switch {
	case errors.As(err, &pe):
		kind = FailurePanic
	case timedOut.Load() || (d.timeout > 0 && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded)):
		kind = FailureTimeout
	}

	return Null(), &Failure{
		Kind:      kind,
		Metric:    name,
		ProjectID: project.ID,
		Path:      project.Path,
		Err:       err,
		At:        time.Now(),
	}
}

// errMetricTimeout marks a metric call abandoned at its deadline.
var errMetricTimeout = errors.New("metric timed out")

type callResult struct {
	v   Value
	err error
}

// bounded runs call on its own goroutine and returns once it finishes or
// limit elapses, whichever is first. A call that ignores its context is
// abandoned and left to finish in the background.
func bounded(ctx context.Context, limit time.Duration, call func(context.Context) (Value, error)) (Value, error) {
	ctx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	done := make(chan callResult, 1)
	go func() {
		v, err := call(ctx)
		done <- callResult{v, err}
	}()

	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Null(), errors.Wrapf(errMetricTimeout, "abandoned after %s", limit)
		}
		return Null(), ctx.Err()
	}
}

func (d *Dispatcher) record(f *Failure) {
	fields := []any{
		"kind", string(f.Kind),
		"metric", f.Metric,
		"project", f.ProjectID,
		"path", f.Path,
		"error", f.Err,
	}
	var pe *panicError
	if errors.As(f.Err, &pe) {
		fields = append(fields, "stack", string(pe.stack))
	}
	d.log.Warnw("metric failed", fields...)
}
