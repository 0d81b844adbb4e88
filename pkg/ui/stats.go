package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"tweetvault/pkg/models"
	"tweetvault/pkg/ratelimit"
	"tweetvault/pkg/scheduler"
	"tweetvault/pkg/state"
)

// RecentSuccesses is how many successes the rate-limit panel lists
const RecentSuccesses = 5

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	labelStyle = lipgloss.NewStyle().Width(24)
	valueStyle = lipgloss.NewStyle().Bold(true)
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8")).
			Padding(0, 1)
)

var statusLabels = map[models.Status]string{
	models.StatusSuccess: "Downloaded",
	models.StatusPartial: "Partial",
	models.StatusFailed:  "Failed",
	models.StatusNoMedia: "No media",
	models.StatusError:   "Error",
	models.StatusPending: "Pending",
}

type row struct {
	label string
	value string
}

func panel(title string, rows []row) string {
	lines := []string{titleStyle.Render(title)}
	for _, r := range rows {
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top,
			labelStyle.Render(r.label), valueStyle.Render(r.value)))
	}
	return panelStyle.Render(strings.Join(lines, "\n"))
}

// RenderStats renders the aggregate per-status counts
func RenderStats(st state.Stats) string {
	rows := []row{{"Total", fmt.Sprint(st.Total)}}
	for _, s := range []models.Status{
		models.StatusSuccess, models.StatusPartial, models.StatusFailed,
		models.StatusNoMedia, models.StatusError, models.StatusPending,
	} {
		rows = append(rows, row{statusLabels[s], fmt.Sprint(st.Count(s))})
	}
	return panel("Archive", rows)
}

// RenderRunSummary renders what one run did
func RenderRunSummary(s *scheduler.RunSummary) string {
	rows := []row{
		{"Total", fmt.Sprint(s.Total)},
		{"Skipped (downloaded)", fmt.Sprint(s.SkippedComplete)},
		{"Skipped (error)", fmt.Sprint(s.SkippedErrorListed)},
		{"Downloaded this run", fmt.Sprint(s.Succeeded)},
		{"Partial", fmt.Sprint(s.Partial)},
		{"No media", fmt.Sprint(s.NoMedia)},
		{"Failed", fmt.Sprint(s.Failed + s.Errored)},
		{"Rate limit hits", fmt.Sprint(s.RateLimitHits)},
		{"Remaining", fmt.Sprint(s.Remaining())},
		{"Success rate", fmt.Sprintf("%.1f%%", s.SuccessRate())},
		{"Elapsed", FormatDuration(s.Elapsed())},
	}
	if s.Aborted() {
		rows = append(rows, row{"Stopped", s.AbortReason})
	}
	return panel("Run summary", rows)
}

// RenderRateLimit renders the last rate limit, time since the run started
// and the most recent successes.
func RenderRateLimit(st ratelimit.State, now time.Time) string {
	rows := []row{}

	if st.LastRateLimitTimestamp != nil {
		ago := now.Sub(*st.LastRateLimitTimestamp)
		rows = append(rows, row{"Last rate limit", fmt.Sprintf("%s (%s ago)",
			st.LastRateLimitTimestamp.Local().Format("2006-01-02 15:04:05"), FormatDuration(ago))})
		if n := len(st.RateLimitHistory); n > 0 {
			rows = append(rows, row{"Reason", st.RateLimitHistory[n-1].Reason})
		}
	} else {
		rows = append(rows, row{"Last rate limit", "never"})
	}
	rows = append(rows, row{"Rate limits recorded", fmt.Sprint(len(st.RateLimitHistory))})

	if st.StartTime != nil {
		rows = append(rows, row{"Since start", FormatDuration(now.Sub(*st.StartTime))})
	}

	recent := st.SuccessHistory
	if len(recent) > RecentSuccesses {
		recent = recent[len(recent)-RecentSuccesses:]
	}
	for i := len(recent) - 1; i >= 0; i-- {
		ev := recent[i]
		rows = append(rows, row{"Success " + ev.Timestamp.Local().Format("15:04:05"), ev.TweetID})
	}

	return panel("Rate limits", rows)
}

// PrintStats writes every panel that has data
func PrintStats(w io.Writer, st state.Stats, rl ratelimit.State, now time.Time) {
	fmt.Fprintln(w, lipgloss.JoinHorizontal(lipgloss.Top, RenderStats(st), " ", RenderRateLimit(rl, now)))
}
