package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"tweetvault/pkg/models"
)

// View renders the entire TUI
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	half := (m.width - 4) / 2

	left := lipgloss.JoinVertical(lipgloss.Left,
		m.renderStatsPanel(half),
		m.renderRecentPanel(half),
	)
	right := lipgloss.JoinVertical(lipgloss.Left,
		m.renderRateLimitPanel(half),
		m.renderLogsPanel(half),
	)

	sections := []string{
		m.renderHeader(),
		lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right),
	}

	if m.showHelp {
		sections = append(sections, m.renderHelp())
	} else {
		sections = append(sections, helpStyle.Render("q quit • ? help"))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderHeader() string {
	status := m.spinner.View() + " running"
	switch {
	case m.Finished() && m.summary.Aborted():
		status = errorStyle.Render("stopped: " + m.summary.AbortReason)
	case m.Finished():
		status = successStyle.Render("done, press q to exit")
	case m.Waiting() > 0:
		status = warningStyle.Render("waiting " + formatDuration(m.Waiting()))
	}

	line := fmt.Sprintf("tweetvault  batch %d/%d  item %d/%d  %s",
		m.batch, m.batches, m.position, m.total, status)

	bar := m.progress.ViewAs(m.Percent())
	return lipgloss.JoinVertical(lipgloss.Left, headerStyle.Render(line), " "+bar)
}

func statLine(label, value string) string {
	return statsLabelStyle.Render(label) + statsValueStyle.Render(value)
}

// renderStatsPanel renders per-status counts for this run
func (m Model) renderStatsPanel(width int) string {
	elapsed := time.Duration(0)
	if !m.started.IsZero() {
		elapsed = m.now().Sub(m.started)
	}

	lines := []string{
		titleStyle.Render(" RUN "),
		statLine("Elapsed", formatDuration(elapsed)),
		statLine("Processed", fmt.Sprintf("%d/%d", m.done, m.total)),
		statLine("Downloaded", fmt.Sprint(m.counts[models.StatusSuccess])),
		statLine("Partial", fmt.Sprint(m.counts[models.StatusPartial])),
		statLine("No media", fmt.Sprint(m.counts[models.StatusNoMedia])),
		statLine("Failed", fmt.Sprint(m.counts[models.StatusFailed]+m.counts[models.StatusError])),
		statLine("Pending", fmt.Sprint(m.counts[models.StatusPending])),
		statLine("Skipped", fmt.Sprint(m.skipped)),
	}
	if m.current != "" {
		lines = append(lines, statLine("Current", m.current))
	}

	return panelStyle.Width(width).Render(strings.Join(lines, "\n"))
}

// renderRecentPanel lists the last few items, newest first
func (m Model) renderRecentPanel(width int) string {
	lines := []string{titleStyle.Render(" RECENT ")}
	if len(m.recent) == 0 {
		lines = append(lines, dimStyle.Render("Nothing processed yet"))
	}
	for i := len(m.recent) - 1; i >= 0; i-- {
		row := m.recent[i]
		line := mark(row) + " " + row.ID
		if row.Note != "" {
			line += " " + dimStyle.Render(truncate(row.Note, width-len(row.ID)-8))
		}
		lines = append(lines, line)
	}
	return panelStyle.Width(width).Render(strings.Join(lines, "\n"))
}

func mark(row ItemRow) string {
	if row.Skipped {
		return dimStyle.Render("-")
	}
	switch row.Status {
	case models.StatusSuccess:
		return successStyle.Render("✓")
	case models.StatusNoMedia:
		return dimStyle.Render("○")
	case models.StatusPartial, models.StatusPending:
		return warningStyle.Render("~")
	default:
		return errorStyle.Render("✗")
	}
}

// renderRateLimitPanel renders the current wait and the last reason
func (m Model) renderRateLimitPanel(width int) string {
	lines := []string{
		titleStyle.Render(" RATE LIMIT "),
		statLine("Hits this run", fmt.Sprint(m.rateLimitHits)),
	}

	if wait := m.Waiting(); wait > 0 {
		label := "Retry in"
		if m.cooldownActive {
			label = "Cooldown"
		}
		lines = append(lines, statLine(label, warningStyle.Render(formatDuration(wait))))
		if m.maxAttempts > 0 && !m.cooldownActive {
			lines = append(lines, statLine("Attempt", fmt.Sprintf("%d/%d", m.attempt, m.maxAttempts)))
		}
	} else {
		lines = append(lines, statLine("Status", successStyle.Render("clear")))
	}

	if m.lastReason != "" {
		lines = append(lines, statLine("Last reason", truncate(m.lastReason, width-22)))
	}

	return panelStyle.Width(width).Render(strings.Join(lines, "\n"))
}

// renderLogsPanel renders the most recent log lines
func (m Model) renderLogsPanel(width int) string {
	lines := []string{titleStyle.Render(" LOG ")}

	start := len(m.logMessages) - 10
	if start < 0 {
		start = 0
	}
	for _, log := range m.logMessages[start:] {
		ts := logTimestampStyle.Render(log.Time.Format("15:04:05"))
		level := lipgloss.NewStyle().Foreground(log.Color).Bold(true).Render(fmt.Sprintf("[%-7s]", log.Level))
		lines = append(lines, fmt.Sprintf("%s %s %s", ts, level, truncate(log.Message, width-25)))
	}
	if len(lines) == 1 {
		lines = append(lines, dimStyle.Render("No logs yet..."))
	}

	return panelStyle.Width(width).Render(strings.Join(lines, "\n"))
}

// renderHelp renders the help panel
func (m Model) renderHelp() string {
	help := `
  Keys:
    q/Q/ctrl+c  quit (stops the run if it is still going)
    ctrl+l      clear the log
    ?           toggle this help

  Marks:
    ` + successStyle.Render("✓") + `  downloaded      ` + warningStyle.Render("~") + `  partial or pending
    ` + errorStyle.Render("✗") + `  failed          ` + dimStyle.Render("○") + `  no media
    -  skipped
`
	return panelStyle.Width(m.width - 2).Render(help)
}

func truncate(s string, n int) string {
	if n < 4 {
		n = 4
	}
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// formatDuration formats a duration as mm:ss or hh:mm:ss
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60

	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
