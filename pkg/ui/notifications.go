package ui

import (
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"tweetvault/pkg/config"
	"tweetvault/pkg/scheduler"
)

// NotificationSender interface for platform-specific notification implementations
type NotificationSender interface {
	Send(title, message string) error
}

// LinuxNotificationSender sends notifications on Linux using notify-send
type LinuxNotificationSender struct{}

func (l *LinuxNotificationSender) Send(title, message string) error {
	return exec.Command("notify-send", title, message).Run()
}

// MacOSNotificationSender sends notifications on macOS using osascript
type MacOSNotificationSender struct{}

func (m *MacOSNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`display notification %q with title %q`, message, title)
	return exec.Command("osascript", "-e", script).Run()
}

// WindowsNotificationSender sends notifications on Windows using PowerShell
type WindowsNotificationSender struct{}

func (w *WindowsNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`
		[Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType = WindowsRuntime] | Out-Null
		[Windows.Data.Xml.Dom.XmlDocument, Windows.Data.Xml.Dom.XmlDocument, ContentType = WindowsRuntime] | Out-Null
		$xml = @"
<toast>
	<visual>
		<binding template="ToastText02">
			<text id="1">%s</text>
			<text id="2">%s</text>
		</binding>
	</visual>
</toast>
"@
		$doc = [Windows.Data.Xml.Dom.XmlDocument]::new()
		$doc.LoadXml($xml)
		$toast = [Windows.UI.Notifications.ToastNotification]::new($doc)
		[Windows.UI.Notifications.ToastNotificationManager]::CreateToastNotifier("tweetvault").Show($toast)
	`, xmlEscape(title), xmlEscape(message))

	return exec.Command("powershell", "-NoProfile", "-NonInteractive", "-Command", script).Run()
}

func xmlEscape(s string) string {
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(s)
}

// PlatformSender returns the sender for the current OS, or nil
func PlatformSender() NotificationSender {
	switch runtime.GOOS {
	case "linux":
		return &LinuxNotificationSender{}
	case "darwin":
		return &MacOSNotificationSender{}
	case "windows":
		return &WindowsNotificationSender{}
	default:
		return nil
	}
}

// Notifier echoes run milestones to the console and, when enabled, to the
// desktop. It observes a scheduler run.
type Notifier struct {
	scheduler.NopObserver

	sender NotificationSender
	cfg    config.NotificationConfig
	out    io.Writer
}

// NewNotifier creates a Notifier. A nil sender only prints.
func NewNotifier(cfg config.NotificationConfig, sender NotificationSender, out io.Writer) *Notifier {
	return &Notifier{sender: sender, cfg: cfg, out: out}
}

func (n *Notifier) RateLimited(id, reason string, wait time.Duration, attempt, maxAttempts int) {
	if !n.cfg.OnRateLimit {
		return
	}
	n.send("Rate limited", fmt.Sprintf("Waiting %s before retrying %s", FormatDuration(wait), id))
}

func (n *Notifier) RunFinished(summary *scheduler.RunSummary) {
	if !n.cfg.OnComplete {
		return
	}
	if summary.Aborted() {
		n.send("Download stopped", summary.AbortReason)
		return
	}
	n.send("Download complete", fmt.Sprintf("%d downloaded, %d failed, %d skipped",
		summary.Succeeded, summary.Failed+summary.Errored, summary.Skipped()))
}

func (n *Notifier) send(title, message string) {
	if n.out != nil {
		fmt.Fprintf(n.out, "\n%s: %s\n", Cyan(title), Yellow(message))
	}
	// Desktop delivery is best effort.
	if n.cfg.Enabled && n.sender != nil {
		_ = n.sender.Send(title, message)
	}
}
