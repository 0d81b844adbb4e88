package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"tweetvault/pkg/models"
	"tweetvault/pkg/scheduler"
)

const (
	maxLogMessages = 50
	maxRecentItems = 8
)

// ItemRow is one processed or skipped item in the recent list
type ItemRow struct {
	ID      string
	Status  models.Status
	Skipped bool
	Note    string
	At      time.Time
}

// LogMessage represents a log entry
type LogMessage struct {
	Time    time.Time
	Level   string
	Message string
	Color   lipgloss.Color
}

// Model is the bubbletea model behind the run monitor. It is only mutated
// from Update, so it needs no locking.
type Model struct {
	spinner  spinner.Model
	progress progress.Model
	now      func() time.Time

	// run shape
	total     int
	batches   int
	batch     int
	batchSize int
	current   string
	position  int

	// outcomes
	done    int
	counts  map[models.Status]int
	skipped int
	recent  []ItemRow
	started time.Time

	// throttling
	rateLimitHits  int
	lastReason     string
	waitUntil      time.Time
	attempt        int
	maxAttempts    int
	cooldownActive bool

	summary *scheduler.RunSummary

	width       int
	height      int
	showHelp    bool
	logMessages []LogMessage

	// onQuit runs when the user quits before the run finishes
	onQuit func()
}

// NewModel creates a model. onQuit may be nil.
func NewModel(onQuit func()) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(neonCyan)

	p := progress.New(progress.WithDefaultGradient())
	p.Width = 40

	return Model{
		spinner:  s,
		progress: p,
		now:      time.Now,
		counts:   make(map[models.Status]int),
		onQuit:   onQuit,
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

// Percent is the share of the working set processed or skipped
func (m Model) Percent() float64 {
	if m.total == 0 {
		return 0
	}
	return float64(m.done) / float64(m.total)
}

// Finished reports whether the run has ended
func (m Model) Finished() bool {
	return m.summary != nil
}

// Waiting is the time left in the current rate-limit wait
func (m Model) Waiting() time.Duration {
	if m.waitUntil.IsZero() {
		return 0
	}
	if d := m.waitUntil.Sub(m.now()); d > 0 {
		return d
	}
	return 0
}

func (m *Model) addRecent(row ItemRow) {
	m.recent = append(m.recent, row)
	if len(m.recent) > maxRecentItems {
		m.recent = m.recent[len(m.recent)-maxRecentItems:]
	}
}

// AddLogMessage adds a log message
func (m *Model) AddLogMessage(level, message string) {
	color := dimWhite
	switch level {
	case "ERROR":
		color = neonRed
	case "WARN":
		color = neonOrange
	case "SUCCESS":
		color = neonGreen
	case "INFO":
		color = neonCyan
	}

	m.logMessages = append(m.logMessages, LogMessage{
		Time:    m.now(),
		Level:   level,
		Message: message,
		Color:   color,
	})

	if len(m.logMessages) > maxLogMessages {
		m.logMessages = m.logMessages[len(m.logMessages)-maxLogMessages:]
	}
}
