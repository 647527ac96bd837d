package app

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/felixgeelhaar/edgeprov/internal/adapters/statefile"
	"github.com/felixgeelhaar/edgeprov/internal/domain/execution"
	"github.com/felixgeelhaar/edgeprov/internal/domain/state"
)

// ClusterNameArtifact is the artifact copied to the top of the artifact file.
const ClusterNameArtifact = "cluster-name"

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	statusStyle = map[execution.StepStatus]lipgloss.Style{
		execution.StatusApplied:       cellStyle.Foreground(lipgloss.Color("2")),
		execution.StatusSkipped:       cellStyle.Foreground(lipgloss.Color("8")),
		execution.StatusSkippedDryRun: cellStyle.Foreground(lipgloss.Color("4")),
		execution.StatusFailed:        cellStyle.Foreground(lipgloss.Color("1")).Bold(true),
		execution.StatusPending:       cellStyle.Foreground(lipgloss.Color("3")),
	}
	titleCaser = cases.Title(language.English)
)

// NewArtifactDocument builds the machine-readable summary of a run.
func NewArtifactDocument(report *execution.Report, artifacts map[string]string, now time.Time) statefile.ArtifactDocument {
	steps := make(map[string]string, len(report.Results()))
	for _, r := range report.Results() {
		steps[r.StepID().String()] = r.Status().String()
	}
	return statefile.ArtifactDocument{
		RunID:       report.RunID(),
		GeneratedAt: now.UTC(),
		ClusterName: artifacts[ClusterNameArtifact],
		Status:      report.Outcome(),
		Artifacts:   artifacts,
		Steps:       steps,
	}
}

// PrintPlan outputs the ordered steps a run would visit.
func (e *Edgeprov) PrintPlan(result *ValidationResult) {
	plan := result.Plan
	summary := plan.Summary()

	e.printf("\nedgeprov plan (%s)\n", result.Config.Source())
	e.printf("==============\n\n")

	if plan.IsEmpty() {
		e.printf("No steps enabled.\n")
		return
	}

	providers := make([]string, 0, len(summary.ByProvider))
	for name := range summary.ByProvider {
		providers = append(providers, name)
	}
	sort.Strings(providers)
	counts := make([]string, len(providers))
	for i, name := range providers {
		counts[i] = fmt.Sprintf("%s %d", name, summary.ByProvider[name])
	}
	e.printf("Steps: %d total (%s)\n\n", summary.Total, strings.Join(counts, ", "))

	for _, entry := range plan.Entries() {
		step := entry.Step()
		line := fmt.Sprintf("  %2d. %s", entry.Position(), step.ID())
		if deps := step.DependsOn(); len(deps) > 0 {
			names := make([]string, len(deps))
			for i, d := range deps {
				names[i] = d.String()
			}
			line += "  <- " + strings.Join(names, ", ")
		}
		e.printf("%s\n", line)
		if summary := step.Explain().Summary(); summary != "" {
			e.printf("      %s\n", summary)
		}
	}
}

// PrintSummary renders the step results as a table followed by counts.
func (e *Edgeprov) PrintSummary(report *execution.Report) {
	results := report.Results()
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			r.StepID().String(),
			StatusLabel(r.Status()),
			formatDuration(r),
			detail(r),
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("STEP", "STATUS", "DURATION", "DETAIL").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 1 && row >= 0 && row < len(results) {
				if style, ok := statusStyle[results[row].Status()]; ok {
					return style
				}
			}
			return cellStyle
		})

	e.printf("\n%s\n", t.String())

	counts := report.Counts()
	order := []execution.StepStatus{
		execution.StatusApplied,
		execution.StatusSkipped,
		execution.StatusSkippedDryRun,
		execution.StatusFailed,
		execution.StatusPending,
	}
	parts := make([]string, 0, len(order))
	for _, status := range order {
		if n := counts[status]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, status))
		}
	}
	if len(parts) == 0 {
		parts = append(parts, "no steps")
	}
	e.printf("Run %s %s in %s: %s\n",
		report.RunID(), report.Outcome(), report.Duration().Round(time.Millisecond), strings.Join(parts, ", "))
	if report.DryRun() {
		e.printf("[Dry run - no changes made]\n")
	}
}

// PrintFailure explains the first failed step and how to resume.
func (e *Edgeprov) PrintFailure(report *execution.Report) {
	if report.Interrupted() {
		e.printf("\nRun interrupted. Steps not started are left pending; re-run edgeprov to continue.\n")
	}
	failed, ok := report.FirstFailure()
	if !ok {
		return
	}

	e.printf("\nStep %s failed", failed.StepID())
	if err := failed.Error(); err != nil {
		e.printf(": %v", err)
	}
	e.printf("\n")
	if tail := failed.OutputTail(); tail != "" {
		e.printf("\nLast output:\n%s\n", indent(tail, "  "))
	}
	e.printf("\nFix the problem and re-run edgeprov. Completed steps are skipped.\n")
	e.printf("To re-apply steps that report satisfied, re-run with --force.\n")
}

// PrintStatus renders a persisted state document.
func (e *Edgeprov) PrintStatus(doc *state.ProvisioningState) {
	if doc.IsEmpty() {
		e.printf("No steps recorded yet.\n")
		return
	}

	if doc.RunID != "" {
		e.printf("Last run: %s (updated %s)\n\n", doc.RunID, doc.UpdatedAt.Format(time.RFC3339))
	}

	rows := make([][]string, 0, len(doc.CompletedSteps))
	for _, name := range doc.StepNames() {
		rec := doc.CompletedSteps[name]
		converged := "no"
		if rec.Converged {
			converged = "yes"
		}
		rows = append(rows, []string{name, titleCaser.String(string(rec.Status)), converged, firstLine(rec.Error)})
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("STEP", "STATUS", "CONVERGED", "ERROR").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	e.printf("%s\n", t.String())

	if len(doc.GeneratedArtifacts) > 0 {
		keys := make([]string, 0, len(doc.GeneratedArtifacts))
		for k := range doc.GeneratedArtifacts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		e.printf("\nArtifacts:\n")
		for _, k := range keys {
			e.printf("  %s = %s\n", k, doc.GeneratedArtifacts[k])
		}
	}
}

// StatusLabel returns the display label for a step status.
func StatusLabel(status execution.StepStatus) string {
	return titleCaser.String(status.String())
}

func detail(r execution.StepResult) string {
	switch {
	case r.Error() != nil:
		return firstLine(r.Error().Error())
	case r.Status() == execution.StatusSkippedDryRun && !r.Diff().IsEmpty():
		return r.Diff().Summary()
	default:
		return r.Reason()
	}
}

func formatDuration(r execution.StepResult) string {
	if r.StartedAt().IsZero() {
		return "-"
	}
	return r.Duration().Round(time.Millisecond).String()
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return line
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

func (e *Edgeprov) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(e.out, format, args...)
}
