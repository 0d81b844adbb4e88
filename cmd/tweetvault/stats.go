package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"tweetvault/pkg/ui"
)

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show per-status counts and rate-limit history",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(appOptions{console: os.Stderr})
		if err != nil {
			return err
		}
		defer a.Close()

		st := a.store.Load(true)
		if err := a.store.LastLoadError(); err != nil {
			a.printer.Warning("State could not be read, showing defaults: %v", err)
		}

		ui.PrintStats(os.Stdout, st.Stats, a.tracker.Snapshot(), time.Now())
		if n := a.errorSet.Len(); n > 0 {
			fmt.Fprintf(os.Stdout, "%s %d posts in the error list (use 'download --include-errors' or 'retry')\n", ui.Yellow("!"), n)
		}
		if st.LastUpdate != nil {
			fmt.Fprintf(os.Stdout, "%s %s\n", ui.Dim("Last update:"), st.LastUpdate.Local().Format(time.RFC1123))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
