package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/zombor/expensomatic/internal/claim"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57")).Padding(0, 1)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	faintStyle = lipgloss.NewStyle().Faint(true)
	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)
)

// Summary renders the end-of-run summary for the terminal
func Summary(run *Run) string {
	lines := []string{
		titleStyle.Render("Expensomatic run " + shortID(run.ID)),
		fmt.Sprintf("Receipts found: %d in %d batch(es)", run.Pending, len(run.Batches)),
		okStyle.Render(fmt.Sprintf("Claims saved:   %d", run.ClaimsSaved())),
		okStyle.Render(fmt.Sprintf("Archived:       %d", run.Count(claim.Archived))),
		warnStyle.Render(fmt.Sprintf("Quarantined:    %d", run.Count(claim.Quarantined))),
		warnStyle.Render(fmt.Sprintf("Left pending:   %d", run.Count(claim.LeftPending))),
	}

	for _, b := range run.Batches {
		line := fmt.Sprintf("Batch %d/%d: %s", b.Batch.Number, b.Batch.Total, b.State)
		if b.Draft != nil {
			line += fmt.Sprintf(" (%s)", b.Draft.Name)
		}
		if b.Reason != nil {
			lines = append(lines, errStyle.Render(line+": "+b.Reason.Error()))
			continue
		}
		lines = append(lines, faintStyle.Render(line))
	}

	if quarantined := namesWith(run, claim.Quarantined); len(quarantined) > 0 {
		lines = append(lines, warnStyle.Render("Moved to failed/:"))
		for _, o := range quarantined {
			lines = append(lines, faintStyle.Render("  - "+o.Receipt+" ("+o.Reason+")"))
		}
	}
	if run.Err != nil {
		lines = append(lines, errStyle.Render("Stopped: "+run.Err.Error()))
	}
	if elapsed := run.FinishedAt.Sub(run.StartedAt); elapsed > 0 {
		lines = append(lines, faintStyle.Render("Took "+elapsed.Round(time.Second).String()))
	}

	return panelStyle.Render(strings.Join(lines, "\n"))
}

func namesWith(run *Run, status claim.OutcomeStatus) []claim.ReceiptOutcome {
	var out []claim.ReceiptOutcome
	for _, o := range run.Outcomes() {
		if o.Status == status {
			out = append(out, o)
		}
	}
	return out
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
