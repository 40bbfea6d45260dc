package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#2E86C1"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Italic(true)

	activeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA500"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#00AA00"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#A40000"))
)

// recentLimit is how many finished files stay visible below the active ones
const recentLimit = 6

// renderProcessingView renders the main processing view
func renderProcessingView(m Model) string {
	var b strings.Builder

	b.WriteString(renderHeader(m))
	b.WriteString("\n\n")

	b.WriteString(renderFileQueue(m))
	b.WriteString("\n")

	b.WriteString(renderOverallProgress(m))
	b.WriteString("\n")

	return b.String()
}

// renderHeader renders the batch title
func renderHeader(m Model) string {
	title := titleStyle.Render(m.Title)
	subtitle := mutedStyle.Render(fmt.Sprintf("%d file(s)", m.TotalFiles))
	if m.Cancelling {
		subtitle = errorStyle.Render("Cancelling: finishing files in progress…")
	}
	return title + "\n" + subtitle
}

// renderFileQueue lists active files followed by the most recently finished
func renderFileQueue(m Model) string {
	var active, finished []FileProgress
	for _, f := range m.Files {
		switch f.Status {
		case StatusActive:
			active = append(active, f)
		case StatusComplete, StatusError:
			finished = append(finished, f)
		}
	}
	if len(finished) > recentLimit {
		finished = finished[len(finished)-recentLimit:]
	}

	var b strings.Builder
	for _, f := range active {
		fmt.Fprintf(&b, " %s %s %s\n", m.spinner.View(), f.Name,
			mutedStyle.Render(formatElapsed(time.Since(f.StartTime))))
	}
	for _, f := range finished {
		b.WriteString(renderFileEntry(f))
		b.WriteString("\n")
	}
	return b.String()
}

// renderFileEntry renders a finished file
func renderFileEntry(f FileProgress) string {
	if f.Status == StatusError {
		icon := errorStyle.Render("✗")
		return fmt.Sprintf(" %s %s\n   Error: %v", icon, f.Name, f.Error)
	}
	icon := successStyle.Render("✓")
	if f.Summary == "" {
		return fmt.Sprintf(" %s %s", icon, f.Name)
	}
	return fmt.Sprintf(" %s %s  %s", icon, f.Name, mutedStyle.Render(f.Summary))
}

// renderProgressBar renders a progress bar
func renderProgressBar(progress float64, width int) string {
	progress = min(max(progress, 0), 1)
	filled := int(progress * float64(width))
	empty := width - filled

	bar := strings.Repeat("█", filled) + strings.Repeat("░", empty)
	percentage := int(progress * 100)

	return fmt.Sprintf("%s %d%%", bar, percentage)
}

// renderOverallProgress renders the overall progress footer
func renderOverallProgress(m Model) string {
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#888888")).
		Padding(0, 1).
		Width(60)

	content := renderProgressBar(m.Progress(), 40) + "\n" +
		fmt.Sprintf("%d of %d done", m.Finished(), m.TotalFiles)
	if m.FailedFiles > 0 {
		content += errorStyle.Render(fmt.Sprintf(" (%d failed)", m.FailedFiles))
	}
	content += mutedStyle.Render(" | " + formatElapsed(time.Since(m.StartTime)))

	return box.Render(content)
}

// renderCompletionSummary renders the final line once the batch is done
func renderCompletionSummary(m Model) string {
	header := successStyle.Bold(true).Render("✓ " + m.Title + " complete")
	if m.Cancelling {
		header = errorStyle.Bold(true).Render("✗ " + m.Title + " cancelled")
	}
	line := fmt.Sprintf("%s  %d of %d done", header, m.Finished(), m.TotalFiles)
	if m.FailedFiles > 0 {
		line += errorStyle.Render(fmt.Sprintf(", %d failed", m.FailedFiles))
	}
	return line + "\n"
}

// formatElapsed formats a duration as 4.2s or 3m07s
func formatElapsed(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
}
