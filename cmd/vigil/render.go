package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/ternarybob/vigil/internal/models"
)

const detailWidth = 60

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#89B4FA"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#A6E3A1"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F38BA8"))
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

func status(ok bool, yes, no string) string {
	if ok {
		return okStyle.Render(yes)
	}
	return failStyle.Render(no)
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func shorten(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= detailWidth {
		return s
	}
	return s[:detailWidth-3] + "..."
}

func outcomeDetail(o models.ActionOutcome) string {
	if o.Error != "" {
		return o.Error
	}
	if len(o.Steps) > 0 {
		return o.Steps[len(o.Steps)-1]
	}
	return o.Reason
}

// renderReport prints a cycle report for the check command.
func renderReport(w io.Writer, report models.CycleReport) {
	kind := "log check"
	if report.Sweep {
		kind = "log check + sweep"
	}
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Cycle %s (%s) at %s", report.CycleID, kind, report.StartedAt.Format(time.RFC3339))))
	fmt.Fprintf(w, "Log events in window: %d, decision: %s\n", report.Events, status(report.Decision != models.DecisionRestart, string(report.Decision), string(report.Decision)))
	if report.Suppressed != "" {
		fmt.Fprintf(w, "Not acted on: %s\n", report.Suppressed)
	}

	if len(report.Probes) > 0 {
		probes := newTable("TARGET", "LIVE", "DETAIL")
		for _, p := range report.Probes {
			probes.Row(p.Target, status(p.Live, "yes", "no"), shorten(p.Detail))
		}
		fmt.Fprintln(w, probes.Render())
	}

	if len(report.Actions) > 0 {
		fmt.Fprintln(w, renderOutcomes(report.Actions))
	} else {
		fmt.Fprintln(w, "No corrective actions.")
	}

	if len(report.Errors) > 0 {
		fmt.Fprintln(w, failStyle.Render("Errors:"))
		for _, e := range report.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
}

// renderHistory prints stored outcomes, newest first.
func renderHistory(w io.Writer, outcomes []models.ActionOutcome) {
	if len(outcomes) == 0 {
		fmt.Fprintln(w, "No corrective actions recorded.")
		return
	}
	fmt.Fprintln(w, renderOutcomes(outcomes))
}

func renderOutcomes(outcomes []models.ActionOutcome) string {
	t := newTable("TIME", "ACTION", "TARGET", "RESULT", "EXIT", "DURATION", "DETAIL")
	for _, o := range outcomes {
		t.Row(
			o.StartedAt.Local().Format("2006-01-02 15:04:05"),
			string(o.Action),
			o.Target,
			status(o.Succeeded, "ok", "failed"),
			fmt.Sprintf("%d", o.ExitCode),
			o.Duration.Round(time.Millisecond).String(),
			shorten(outcomeDetail(o)),
		)
	}
	return t.Render()
}
