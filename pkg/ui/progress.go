package ui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"tweetvault/pkg/models"
	"tweetvault/pkg/scheduler"
)

// ProgressReporter renders a run as a console progress bar. It advances
// once per processed or skipped item and prints rate-limit waits above
// the bar.
type ProgressReporter struct {
	scheduler.NopObserver

	mu      sync.Mutex
	out     io.Writer
	verbose bool
	bar     *progressbar.ProgressBar

	done     int
	failures int
}

// NewProgressReporter writes to out. Verbose adds one line per finished
// item.
func NewProgressReporter(out io.Writer, verbose bool) *ProgressReporter {
	return &ProgressReporter{out: out, verbose: verbose}
}

func (p *ProgressReporter) RunStarted(total, batches int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(p.out),
		progressbar.OptionSetDescription(fmt.Sprintf("%d batches", batches)),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("items"),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionSetWidth(30),
	)
}

func (p *ProgressReporter) BatchStarted(index, batches, size int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil {
		p.bar.Describe(fmt.Sprintf("batch %d/%d", index, batches))
	}
}

func (p *ProgressReporter) ItemFinished(id string, details models.Details) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done++
	switch details.(type) {
	case models.Failed, models.Errored:
		p.failures++
	}
	if p.verbose {
		p.printLine(fmt.Sprintf("%s %s %s", statusMark(details.Status()), id, Dim(string(details.Status()))))
	}
	p.advance()
}

func (p *ProgressReporter) ItemSkipped(id string, reason scheduler.SkipReason) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done++
	if p.verbose {
		p.printLine(Dim(fmt.Sprintf("- %s skipped (%s)", id, reason)))
	}
	p.advance()
}

func (p *ProgressReporter) RateLimited(id, reason string, wait time.Duration, attempt, maxAttempts int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.printLine(fmt.Sprintf("%s rate limited on %s (attempt %d/%d): %s. Waiting %s",
		Yellow("!"), id, attempt, maxAttempts, reason, FormatDuration(wait)))
}

func (p *ProgressReporter) CoolingDown(wait time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.printLine(fmt.Sprintf("%s recent rate limit, cooling down for %s", Yellow("!"), FormatDuration(wait)))
}

func (p *ProgressReporter) RunFinished(summary *scheduler.RunSummary) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar != nil {
		_ = p.bar.Finish()
		fmt.Fprintln(p.out)
	}
}

// Done is the number of items processed or skipped so far
func (p *ProgressReporter) Done() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// Failures is the number of items that ended failed or error
func (p *ProgressReporter) Failures() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failures
}

func (p *ProgressReporter) advance() {
	if p.bar != nil {
		_ = p.bar.Add(1)
	}
}

// printLine writes msg on its own line without corrupting the bar
func (p *ProgressReporter) printLine(msg string) {
	if p.bar != nil {
		_ = p.bar.Clear()
	}
	fmt.Fprintln(p.out, msg)
}

func statusMark(s models.Status) string {
	switch s {
	case models.StatusSuccess:
		return Green("✓")
	case models.StatusNoMedia:
		return Dim("○")
	case models.StatusPartial, models.StatusPending:
		return Yellow("~")
	default:
		return Red("✗")
	}
}

// FormatDuration formats a duration in a human-readable way
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
