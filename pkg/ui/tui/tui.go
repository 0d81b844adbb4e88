package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"tweetvault/pkg/models"
	"tweetvault/pkg/scheduler"
)

// Monitor shows a scheduler run in a full-screen terminal UI. It implements
// scheduler.Observer by forwarding each event to the bubbletea program.
type Monitor struct {
	program *tea.Program
}

// NewMonitor creates a monitor. cancel is called when the user quits while
// the run is still going.
func NewMonitor(cancel func(), opts ...tea.ProgramOption) *Monitor {
	model := NewModel(cancel)
	if len(opts) == 0 {
		opts = []tea.ProgramOption{tea.WithAltScreen()}
	}
	return &Monitor{program: tea.NewProgram(&model, opts...)}
}

// Run blocks until the user quits
func (t *Monitor) Run() error {
	_, err := t.program.Run()
	return err
}

// Stop stops the UI
func (t *Monitor) Stop() {
	t.program.Quit()
}

// Log sends a log line to the UI
func (t *Monitor) Log(level, message string) {
	t.program.Send(LogMsg{Level: level, Message: message})
}

func (t *Monitor) RunStarted(total, batches int) {
	t.program.Send(RunStartedMsg{Total: total, Batches: batches})
}

func (t *Monitor) BatchStarted(index, batches, size int) {
	t.program.Send(BatchStartedMsg{Index: index, Batches: batches, Size: size})
}

func (t *Monitor) ItemStarted(id string, position, total int) {
	t.program.Send(ItemStartedMsg{ID: id, Position: position, Total: total})
}

func (t *Monitor) ItemFinished(id string, details models.Details) {
	t.program.Send(ItemFinishedMsg{ID: id, Details: details})
}

func (t *Monitor) ItemSkipped(id string, reason scheduler.SkipReason) {
	t.program.Send(ItemSkippedMsg{ID: id, Reason: reason})
}

func (t *Monitor) RateLimited(id, reason string, wait time.Duration, attempt, maxAttempts int) {
	t.program.Send(RateLimitedMsg{ID: id, Reason: reason, Wait: wait, Attempt: attempt, MaxAttempts: maxAttempts})
}

func (t *Monitor) CoolingDown(wait time.Duration) {
	t.program.Send(CoolingDownMsg{Wait: wait})
}

func (t *Monitor) RunFinished(summary *scheduler.RunSummary) {
	t.program.Send(RunFinishedMsg{Summary: summary})
}

var _ scheduler.Observer = (*Monitor)(nil)
