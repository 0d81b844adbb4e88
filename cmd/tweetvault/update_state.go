package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"tweetvault/internal/scan"
	"tweetvault/pkg/models"
	"tweetvault/pkg/ui"
)

var (
	newOnly     bool
	scanWorkers int
)

// updateStateCmd represents the update-state command
var updateStateCmd = &cobra.Command{
	Use:   "update-state",
	Short: "Rebuild post statuses from what is on disk",
	Long: `Scan every numeric post directory under the output directory, compare
the files present with what each post's metadata expects, and record the
resulting status. No network access is needed.`,
	Example: `  # Rescan everything
  tweetvault update-state

  # Only add posts the state does not know yet
  tweetvault update-state -n`,
	Args: cobra.NoArgs,
	RunE: runUpdateState,
}

func init() {
	rootCmd.AddCommand(updateStateCmd)
	updateStateCmd.Flags().BoolVarP(&newOnly, "new-only", "n", false, "only scan posts missing from the state")
	updateStateCmd.Flags().IntVar(&scanWorkers, "workers", runtime.NumCPU(), "directories inspected in parallel")
}

func runUpdateState(cmd *cobra.Command, args []string) error {
	a, err := newApp(appOptions{console: os.Stderr})
	if err != nil {
		return err
	}
	defer a.Close()

	runLock, err := a.lock()
	if err != nil {
		return err
	}
	defer func() {
		if err := runLock.Release(); err != nil {
			a.log.WithError(err).Warn("Failed to release run lock")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var bar *ui.ProgressReporter
	if !quiet {
		bar = ui.NewProgressReporter(os.Stdout, false)
	}

	report, err := scan.UpdateState(ctx, a.layout, a.store, a.inspector, scan.Options{
		NewOnly: newOnly,
		Workers: scanWorkers,
		Logger:  a.log,
		OnStart: func(total int) {
			if bar != nil {
				bar.RunStarted(total, 1)
			}
		},
		OnItem: func(id string, details models.Details) {
			if bar != nil {
				bar.ItemFinished(id, details)
			}
		},
	})
	if bar != nil {
		bar.RunFinished(nil)
	}
	if err != nil {
		return fmt.Errorf("update state: %w", err)
	}

	a.printer.Success("Scanned %d directories, updated %d posts, skipped %d known", report.Found, report.Updated(), report.Skipped)
	if !quiet {
		fmt.Fprintln(os.Stdout, ui.RenderStats(report.Stats))
	}
	return nil
}
