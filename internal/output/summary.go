package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/blackwell-systems/projmetrics/internal/measure"
)

// NullCell is how a null measurement is shown on the terminal.
const NullCell = "-"

// Cell renders a single measurement for terminal display.
func Cell(v measure.Value) string {
	switch v.Kind() {
	case measure.KindNull:
		return StyleMuted.Render(NullCell)
	case measure.KindNumber:
		f, _ := v.Float()
		if f == float64(int64(f)) && f < 1e15 && f > -1e15 {
			return humanize.Comma(int64(f))
		}
		return humanize.FormatFloat("#,###.##", f)
	case measure.KindBool:
		b, _ := v.Boolean()
		if b {
			return StyleSuccess.Render("yes")
		}
		return "no"
	default:
		return v.Text("")
	}
}

// RowCells renders a row for a Table, leaving the project id unstyled.
func RowCells(row measure.Row) []string {
	cells := make([]string, len(row.Values))
	for i, v := range row.Values {
		if i == 0 {
			cells[i] = v.Text("")
			continue
		}
		cells[i] = Cell(v)
	}
	return cells
}

// Summary formats the end-of-run summary block.
func Summary(s measure.Summary, destination string) string {
	var sb strings.Builder
	sb.WriteString(Section("Run summary"))
	sb.WriteString("\n")

	line := func(label, value string) {
		fmt.Fprintf(&sb, " %s%s\n", StyleLabel.Render(label), StyleValue.Render(value))
	}
	line("Projects measured", humanize.Comma(int64(s.Projects)))
	line("Batches flushed", humanize.Comma(int64(s.Batches)))
	line("Duration", s.Duration.Round(time.Millisecond).String())

	failures := len(s.Failures)
	failText := humanize.Comma(int64(failures))
	if failures > 0 {
		failText = StyleError.Render(failText)
	} else {
		failText = StyleSuccess.Render(failText)
	}
	line("Failures", failText)
	for _, k := range []measure.FailureKind{measure.FailureError, measure.FailurePanic, measure.FailureTimeout, measure.FailureProject} {
		if n := s.FailureCount(k); n > 0 {
			line("  "+string(k), StyleWarning.Render(humanize.Comma(int64(n))))
		}
	}
	if destination != "" {
		line("Output", destination)
	}
	return sb.String()
}

// Section returns a styled section header with a horizontal rule.
func Section(title string) string {
	header := StyleHeader.Render(title)
	rule := StyleMuted.Render(strings.Repeat("─", 66))
	return fmt.Sprintf("\n %s\n %s", header, rule)
}

// Ago renders a timestamp relative to now, e.g. "3 hours ago".
func Ago(t time.Time) string {
	return humanize.Time(t)
}
