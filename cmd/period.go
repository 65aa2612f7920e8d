package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/m1ggy/time-doctor-monday.com-integration/internal/model"
	"github.com/m1ggy/time-doctor-monday.com-integration/internal/period"
)

var (
	periodDate   string
	periodEnsure bool
)

var periodCmd = &cobra.Command{
	Use:   "period",
	Short: "Show the half-month period for a day",
	Long: `period prints the board label for today, or for --date.

With --ensure the board is looked up on monday.com and cloned from the
previous month's board when it does not exist yet.`,
	Args: cobra.NoArgs,
	RunE: runPeriod,
}

func init() {
	periodCmd.Flags().StringVar(&periodDate, "date", "", "Day to resolve (YYYY-MM-DD); defaults to today")
	periodCmd.Flags().BoolVar(&periodEnsure, "ensure", false, "Find or clone the board for the period")
}

func runPeriod(cmd *cobra.Command, args []string) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	ref := time.Now().In(loc)
	if periodDate != "" {
		if ref, err = time.ParseInLocation("2006-01-02", periodDate, loc); err != nil {
			return fmt.Errorf("%w: invalid --date value %q: %v", model.ErrConfiguration, periodDate, err)
		}
	}

	var store period.ContainerStore
	if periodEnsure {
		if cfg.Monday.APIKey == "" {
			return fmt.Errorf("%w: monday.com api key missing (MONDAY_API_KEY)", model.ErrConfiguration)
		}
		store = newMonday()
	}
	resolver := period.NewResolver(store, period.Options{
		Location:          loc,
		AllowYearRollover: cfg.Period.AllowYearRollover,
	}, logger.Named("period"))

	p := resolver.Period(ref)
	fmt.Println(p.Label)
	fmt.Printf("  %s → %s\n", p.Start.Format("2006-01-02"), p.End.Format("2006-01-02"))

	if !periodEnsure {
		return nil
	}
	container, err := resolver.ResolveContainer(cmd.Context(), ref)
	if err != nil {
		return err
	}
	fmt.Printf("  board %s\n", container.ID)
	return nil
}
