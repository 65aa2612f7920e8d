package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/m1ggy/time-doctor-monday.com-integration/internal/model"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent reconciliation runs",
	Args:  cobra.NoArgs,
	RunE:  runRuns,
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "Number of runs to show")
}

func runRuns(cmd *cobra.Command, args []string) error {
	led, err := openLedger(cmd.Context())
	if err != nil {
		return err
	}
	defer led.Close()

	runs, err := led.ListRuns(cmd.Context(), runsLimit)
	if err != nil {
		return err
	}
	printRuns(os.Stdout, runs)
	return nil
}

// printRuns lists runs newest first, one per line.
func printRuns(w io.Writer, runs []model.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}

	for _, r := range runs {
		started := r.StartedAt.Local().Format("2006-01-02 15:04")
		state := "running"
		if r.FinishedAt != nil {
			state = formatElapsed(int64(r.FinishedAt.Sub(r.StartedAt).Seconds()))
		}
		mode := ""
		if r.DryRun {
			mode = " [dry-run]"
		}
		fmt.Fprintf(w, "%s  %s  %s%s  (%s)\n", started, shortID(r.ID), r.Period, mode, state)
		fmt.Fprintf(w, "    %d written, %d unchanged, %d skipped, %d failed, %d no logs\n",
			r.Written, r.Unchanged, r.Skipped, r.Failed, r.NoLogs)
		if r.Error != "" {
			fmt.Fprintln(w, errorStyle.Render("    error: "+r.Error))
		}
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
