package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/m1ggy/time-doctor-monday.com-integration/internal/ledger"
	"github.com/m1ggy/time-doctor-monday.com-integration/internal/reconcile"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the latest run and its per-user outcomes",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	led, err := openLedger(ctx)
	if err != nil {
		return err
	}
	defer led.Close()

	run, err := led.LatestRun(ctx)
	if errors.Is(err, ledger.ErrRunNotFound) {
		fmt.Println("No runs recorded.")
		return nil
	}
	if err != nil {
		return err
	}
	outcomes, err := led.ListOutcomes(ctx, run.ID)
	if err != nil {
		return err
	}

	if run.FinishedAt == nil {
		fmt.Println(warnStyle.Render("Run still in progress or interrupted."))
	}
	printReport(os.Stdout, reconcile.Report{Run: run, Outcomes: outcomes})
	return nil
}
