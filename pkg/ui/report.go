package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"igarchive/pkg/accounts"
	"igarchive/pkg/models"
)

func row(label, value string) string {
	return fmt.Sprintf("%s %s", labelStyle.Render(fmt.Sprintf("%-12s", label)), valueStyle.Render(value))
}

// RenderOutcome renders a finished run as a panel
func RenderOutcome(o models.RunOutcome) string {
	status := successStyle.Render("✓ " + o.Message())
	if !o.Succeeded() {
		status = errorStyle.Render("✗ " + o.Message())
	}

	lines := []string{
		titleStyle.Render("Run " + o.RunID),
		row("Account", o.Partition),
		row("Duration", formatDuration(o.Duration())),
	}
	for _, c := range o.Categories {
		lines = append(lines, row(string(c.Category), categorySummary(c)))
	}
	lines = append(lines, "", status)

	return panelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func categorySummary(c models.CategoryOutcome) string {
	if !c.Present {
		return Dim("no input")
	}
	parts := []string{
		fmt.Sprintf("%d found", c.Candidates),
		fmt.Sprintf("%d added", c.Added),
		fmt.Sprintf("%d skipped", c.Skipped),
	}
	if c.Backfilled > 0 {
		parts = append(parts, fmt.Sprintf("%d backfilled", c.Backfilled))
	}
	if c.Errors > 0 {
		parts = append(parts, Red(fmt.Sprintf("%d errors", c.Errors)))
	}
	return strings.Join(parts, " • ")
}

// RenderStats renders a partition summary
func RenderStats(s models.Stats) string {
	last := "never"
	if s.LastUpdate != nil {
		last = s.LastUpdate.Local().Format("2006-01-02 15:04:05")
	}
	lines := []string{
		titleStyle.Render(s.Account),
		row("Records", fmt.Sprint(s.Total)),
		row("Posts", fmt.Sprint(s.Posts)),
		row("Reels", fmt.Sprint(s.Reels)),
		row("Local media", fmt.Sprint(s.LocalMedia)),
		row("Last update", last),
	}
	return panelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// RenderAccounts renders the partition list, marking the default
func RenderAccounts(parts []accounts.Partition, defaultID string) string {
	lines := []string{titleStyle.Render("Accounts")}
	for _, p := range parts {
		marker := "  "
		if p.ID == defaultID {
			marker = Green("* ")
		}
		name := p.ID
		if p.DisplayName != "" && p.DisplayName != p.ID {
			name += " " + Dim("("+p.DisplayName+")")
		}
		lines = append(lines,
			marker+labelStyle.Render(name),
			"    "+Dim("store "+p.StorePath),
			"    "+Dim("media "+p.MediaDir),
		)
	}
	return panelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
