package output

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/blackwell-systems/projmetrics/internal/measure"
)

func TestCell(t *testing.T) {
	SetNoColor(true)
	defer SetNoColor(false)

	tests := []struct {
		name string
		v    measure.Value
		want string
	}{
		{"null", measure.Null(), NullCell},
		{"zero", measure.Int(0), "0"},
		{"thousands", measure.Int(12345), "12,345"},
		{"fraction", measure.Number(0.25), "0.25"},
		{"true", measure.Bool(true), "yes"},
		{"false", measure.Bool(false), "no"},
		{"string", measure.String("MIT"), "MIT"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Cell(tc.v))
		})
	}
}

func TestRowCells_KeepsIDVerbatim(t *testing.T) {
	SetNoColor(true)
	defer SetNoColor(false)

	row := measure.Row{Values: []measure.Value{measure.String("/p/1000"), measure.Int(1000)}}
	assert.Equal(t, []string{"/p/1000", "1,000"}, RowCells(row))
}

func TestSummary(t *testing.T) {
	SetNoColor(true)
	defer SetNoColor(false)

	s := measure.Summary{
		Projects: 1200,
		Batches:  240,
		Duration: 1500 * time.Millisecond,
		Failures: []measure.Failure{
			{Kind: measure.FailureTimeout, Metric: "license_type", Err: errors.New("slow")},
		},
	}
	out := Summary(s, "results.csv")

	assert.Contains(t, out, "1,200")
	assert.Contains(t, out, "240")
	assert.Contains(t, out, "1.5s")
	assert.Contains(t, out, "timeout")
	assert.Contains(t, out, "results.csv")
	assert.False(t, strings.Contains(out, "panic"), "zero-count kinds are omitted")
}
