package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/m1ggy/time-doctor-monday.com-integration/internal/config"
	"github.com/m1ggy/time-doctor-monday.com-integration/internal/logging"
)

const serviceName = "tdsync"

var (
	configPath string

	cfg    config.Config
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "tdsync",
	Short: "Reconcile Time Doctor worklogs into monday.com attendance boards",
	Long: `tdsync reads each user's Time Doctor worklogs for a day and fills the
matching record on the half-month monday.com board: clock in, clock out,
date and total worked hours. Existing values are never overwritten, so
running it repeatedly is safe.

Configuration lives in ~/.tdsync/config.yaml and is created on first use.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

// Execute is the entry point called from main.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	_ = logger.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.tdsync/config.yaml, or $"+config.EnvConfigPath+")")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(periodCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(loginCmd)
}

func loadConfig(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err = logging.NewLogger(cfg.Log.Level, cfg.Log.Format, serviceName)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	return nil
}
