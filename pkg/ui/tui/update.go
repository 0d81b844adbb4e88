package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"tweetvault/pkg/models"
	"tweetvault/pkg/scheduler"
)

// Messages mirror scheduler.Observer events

type RunStartedMsg struct {
	Total   int
	Batches int
}

type BatchStartedMsg struct {
	Index   int
	Batches int
	Size    int
}

type ItemStartedMsg struct {
	ID       string
	Position int
	Total    int
}

type ItemFinishedMsg struct {
	ID      string
	Details models.Details
}

type ItemSkippedMsg struct {
	ID     string
	Reason scheduler.SkipReason
}

type RateLimitedMsg struct {
	ID          string
	Reason      string
	Wait        time.Duration
	Attempt     int
	MaxAttempts int
}

type CoolingDownMsg struct {
	Wait time.Duration
}

type RunFinishedMsg struct {
	Summary *scheduler.RunSummary
}

// LogMsg is sent to add a log message
type LogMsg struct {
	Level   string
	Message string
}

// TickMsg refreshes countdowns
type TickMsg time.Time

// Update handles all messages and updates the model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case TickMsg:
		return m, tickCmd()

	case RunStartedMsg:
		m.total = msg.Total
		m.batches = msg.Batches
		m.started = m.now()
		m.AddLogMessage("INFO", fmt.Sprintf("Processing %d items in %d batches", msg.Total, msg.Batches))
		return m, nil

	case BatchStartedMsg:
		m.batch = msg.Index
		m.batchSize = msg.Size
		return m, nil

	case ItemStartedMsg:
		m.current = msg.ID
		m.position = msg.Position
		m.waitUntil = time.Time{}
		m.cooldownActive = false
		return m, nil

	case ItemFinishedMsg:
		status := msg.Details.Status()
		m.done++
		m.counts[status]++
		m.waitUntil = time.Time{}
		row := ItemRow{ID: msg.ID, Status: status, At: m.now()}
		switch d := msg.Details.(type) {
		case models.Failed:
			row.Note = d.Error
			m.AddLogMessage("ERROR", fmt.Sprintf("%s failed: %s", msg.ID, d.Error))
		case models.Errored:
			row.Note = d.Error
			m.AddLogMessage("ERROR", fmt.Sprintf("%s error: %s", msg.ID, d.Error))
		case models.Partial:
			row.Note = fmt.Sprintf("%d/%d", d.DownloadedCount, d.MediaCount)
		case models.Success:
			m.AddLogMessage("SUCCESS", "Downloaded "+msg.ID)
		}
		m.addRecent(row)
		return m, nil

	case ItemSkippedMsg:
		m.done++
		m.skipped++
		m.addRecent(ItemRow{ID: msg.ID, Skipped: true, Note: string(msg.Reason), At: m.now()})
		return m, nil

	case RateLimitedMsg:
		m.rateLimitHits++
		m.lastReason = msg.Reason
		m.attempt = msg.Attempt
		m.maxAttempts = msg.MaxAttempts
		m.waitUntil = m.now().Add(msg.Wait)
		m.AddLogMessage("WARN", fmt.Sprintf("Rate limited on %s (attempt %d/%d): %s",
			msg.ID, msg.Attempt, msg.MaxAttempts, msg.Reason))
		return m, nil

	case CoolingDownMsg:
		m.cooldownActive = true
		m.waitUntil = m.now().Add(msg.Wait)
		m.AddLogMessage("WARN", "Cooling down after a recent rate limit")
		return m, nil

	case RunFinishedMsg:
		m.summary = msg.Summary
		m.current = ""
		m.waitUntil = time.Time{}
		if msg.Summary != nil && msg.Summary.Aborted() {
			m.AddLogMessage("ERROR", "Run stopped: "+msg.Summary.AbortReason)
		} else {
			m.AddLogMessage("SUCCESS", "Run complete")
		}
		return m, nil

	case LogMsg:
		m.AddLogMessage(msg.Level, msg.Message)
		return m, nil
	}

	return m, nil
}

// handleKeyPress handles keyboard input
func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c":
		if !m.Finished() && m.onQuit != nil {
			m.onQuit()
			m.onQuit = nil
		}
		return m, tea.Quit

	case "?":
		m.showHelp = !m.showHelp
		return m, nil

	case "ctrl+l":
		m.logMessages = nil
		return m, nil
	}

	return m, nil
}

// tickCmd returns a command that sends a tick message
func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
