package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/m1ggy/time-doctor-monday.com-integration/internal/attendance"
	"github.com/m1ggy/time-doctor-monday.com-integration/internal/model"
	"github.com/m1ggy/time-doctor-monday.com-integration/internal/reconcile"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#E5C07B"))
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B"))
)

// fieldOrder is the order written fields are listed in.
var fieldOrder = []string{"clock_in", "clock_out", "date", "total_worked_hours"}

// printReport prints the end-of-run report.
func printReport(w io.Writer, r reconcile.Report) {
	title := headingStyle.Render(r.Run.Period)
	if r.Container.ID != "" {
		title += mutedStyle.Render("  board " + r.Container.ID)
	}
	if r.Run.DryRun {
		title += warnStyle.Render("  (dry run)")
	}
	fmt.Fprintln(w, title)
	printRunSummary(w, r.Run)

	written := "Written"
	if r.Run.DryRun {
		written = "Planned"
	}
	printOutcomes(w, written, headingStyle, append(r.Filter(model.ResultWritten), r.Filter(model.ResultPlanned)...))
	printOutcomes(w, "Skipped", warnStyle, r.Filter(model.ResultSkipped))
	printOutcomes(w, "Failed", errorStyle, r.Filter(model.ResultFailed))
}

// printRunSummary prints a run's id, reference day and counters.
func printRunSummary(w io.Writer, run model.Run) {
	if run.ID != "" {
		fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("Run %s  reference %s", run.ID, run.Reference.Format("2006-01-02 15:04 MST"))))
	}
	fmt.Fprintln(w)
	written := "written"
	if run.DryRun {
		written = "planned"
	}
	for _, c := range []struct {
		label string
		n     int
	}{
		{written, run.Written},
		{"unchanged", run.Unchanged},
		{"skipped", run.Skipped},
		{"failed", run.Failed},
		{"no logs", run.NoLogs},
	} {
		fmt.Fprintf(w, "  %-10s %d\n", c.label, c.n)
	}
	if run.Error != "" {
		fmt.Fprintln(w, errorStyle.Render("  error: "+run.Error))
	}
}

func printOutcomes(w io.Writer, heading string, style lipgloss.Style, outcomes []model.Outcome) {
	if len(outcomes) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, style.Render(heading+":"))
	for _, o := range outcomes {
		detail := fieldsText(o.Fields)
		if o.Reason != "" {
			if detail != "" {
				detail += "  "
			}
			detail += mutedStyle.Render(o.Reason)
		}
		group := o.Group
		if group == "" {
			group = "-"
		}
		fmt.Fprintf(w, "  %s  %s  %s\n", o.Email, group, detail)
	}
}

// fieldsText renders written fields as "name=value" pairs.
func fieldsText(fields map[string]any) string {
	var parts []string
	for _, name := range fieldOrder {
		if v, ok := fields[name]; ok {
			parts = append(parts, name+"="+fieldText(v))
		}
	}
	return strings.Join(parts, " ")
}

// fieldText renders one field value. Values read back from the ledger are
// decoded JSON rather than attendance types.
func fieldText(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case attendance.HourValue:
		return fmt.Sprintf("%02d:%02d", v.Hour, v.Minute)
	case attendance.DateValue:
		return v.Date
	case map[string]any:
		if d, ok := v["date"].(string); ok {
			return d
		}
		h, hok := v["hour"].(float64)
		m, mok := v["minute"].(float64)
		if hok && mok {
			return fmt.Sprintf("%02d:%02d", int(h), int(m))
		}
	}
	return fmt.Sprint(v)
}
