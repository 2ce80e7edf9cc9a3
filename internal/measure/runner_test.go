package measure

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/projmetrics/internal/scanner"
)

func TestRunner_OneRowPerProject(t *testing.T) {
	reg := isolationRegistry(t)
	runner := NewRunner(NewDispatcher(reg), 2, nil)

	projects := makeProjects(t, 4)
	rows := runner.Run(context.Background(), projects)
	require.Len(t, rows, 4)

	ids := map[string]bool{}
	for _, row := range rows {
		ids[row.ProjectID] = true
		assert.Len(t, row.Values, reg.Len())
		v, _ := row.Get(reg.Columns(), "always_one")
		assert.Equal(t, "1", v.Text(""))
	}
	for _, p := range projects {
		assert.True(t, ids[p.ID], "missing row for %s", p.ID)
	}
}

func TestRunner_WorkerCrashYieldsNullRow(t *testing.T) {
	reg := isolationRegistry(t)
	d := NewDispatcher(reg)
	runner := NewRunner(d, 3, nil)

	projects := makeProjects(t, 3)
	crashing := projects[1].ID
	runner.measure = func(ctx context.Context, p scanner.Project) Row {
		if p.ID == crashing {
			panic("worker died")
		}
		return d.Measure(ctx, p)
	}

	rows := runner.Run(context.Background(), projects)
	require.Len(t, rows, 3)

	for _, row := range rows {
		v, _ := row.Get(reg.Columns(), "always_one")
		if row.ProjectID == crashing {
			assert.True(t, v.IsNull())
			assert.Equal(t, crashing, row.Values[0].Text(""))
			require.Len(t, row.Failures, 1)
			assert.Equal(t, FailureProject, row.Failures[0].Kind)
			continue
		}
		assert.Equal(t, "1", v.Text(""))
	}
}

func TestRunner_MissingProjectDir(t *testing.T) {
	reg := isolationRegistry(t)
	runner := NewRunner(NewDispatcher(reg), 1, nil)

	rows := runner.Run(context.Background(), []scanner.Project{
		{Path: "/tmp/does-not-exist-projmetrics", ID: "gone"},
	})
	require.Len(t, rows, 1)
	assert.Equal(t, "gone", rows[0].Values[0].Text(""))
	for _, v := range rows[0].Values[1:] {
		assert.True(t, v.IsNull())
	}
	require.Len(t, rows[0].Failures, 1)
	assert.Equal(t, FailureProject, rows[0].Failures[0].Kind)
}

func TestRunner_BoundsConcurrency(t *testing.T) {
	var active, peak atomic.Int32
	p := NewProvider("python").Register("slow", func(context.Context, string) (Value, error) {
		n := active.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		active.Add(-1)
		return Int(1), nil
	})
	reg, err := NewRegistry(NewCatalog(p), "python", nil, nil)
	require.NoError(t, err)

	runner := NewRunner(NewDispatcher(reg), 2, nil)
	rows := runner.Run(context.Background(), makeProjects(t, 6))

	assert.Len(t, rows, 6)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestNewRunner_DefaultWorkers(t *testing.T) {
	reg := isolationRegistry(t)
	assert.Equal(t, DefaultWorkers, NewRunner(NewDispatcher(reg), 0, nil).Workers())
}
