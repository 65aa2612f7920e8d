package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/m1ggy/time-doctor-monday.com-integration/internal/attendance"
	"github.com/m1ggy/time-doctor-monday.com-integration/internal/model"
	"github.com/m1ggy/time-doctor-monday.com-integration/internal/period"
	"github.com/m1ggy/time-doctor-monday.com-integration/internal/reconcile"
	"github.com/m1ggy/time-doctor-monday.com-integration/internal/timecalc"
)

var (
	runDate   string
	runDryRun bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Reconcile one day of worklogs into the period board",
	Long: `run reads every user's worklogs for the day and fills their record on the
current half-month board, cloning the board from the previous month when
it does not exist yet.

With --date an earlier day is backfilled. Backfills only update records
that already exist; new records are created for today only.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runDate, "date", "", "Backfill a specific date (YYYY-MM-DD) instead of today")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Print planned writes without changing the board")
}

func runRun(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	ref, err := parseDate(runDate, time.Now().In(loc))
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	board := newMonday()

	led, err := openLedger(ctx)
	if err != nil {
		return err
	}
	defer led.Close()

	locker, closeLocker := newLocker()
	defer closeLocker()

	resolver := period.NewResolver(board, period.Options{
		Location:          loc,
		AllowYearRollover: cfg.Period.AllowYearRollover,
		DryRun:            runDryRun,
	}, logger.Named("period"))

	engine := reconcile.New(reconcile.Deps{
		Tracker:    newTimeDoctor(ctx, newAuthProvider()),
		Containers: resolver,
		Fields:     attendance.NewFieldMapper(board, cfg.ColumnTitles()),
		Records:    board,
		Teams:      cfg.Teams,
		Recorder:   led,
		Locker:     locker,
	}, reconcile.Options{
		Location:             loc,
		IdleThresholdMinutes: cfg.IdleThresholdMinutes,
		DryRun:               runDryRun,
		LockTTL:              cfg.Lock.TTL,
	}, logger.Named("reconcile"))

	started := time.Now()
	report, err := engine.Run(ctx, ref)
	elapsed := int64(time.Since(started).Seconds())
	if err != nil {
		if report.Run.ID != "" {
			fmt.Fprintf(os.Stderr, "Run %s aborted after %s.\n", report.Run.ID, formatElapsed(elapsed))
		}
		return err
	}

	printReport(os.Stdout, report)
	fmt.Printf("\nFinished in %s.\n", formatElapsed(elapsed))
	return nil
}

// parseDate parses a --date value in now's location. Empty or today yields
// the zero time, meaning now. Any other day is reconciled as of its last
// instant so the whole day's activity counts as finished.
func parseDate(value string, now time.Time) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	d, err := time.ParseInLocation("2006-01-02", value, now.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid --date value %q: %v", model.ErrConfiguration, value, err)
	}
	if timecalc.SameDay(now, d) {
		return time.Time{}, nil
	}
	return timecalc.EndOfDay(d), nil
}

func formatElapsed(seconds int64) string {
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
