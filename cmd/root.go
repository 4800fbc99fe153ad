package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/schedsync/internal/calsync"
)

var (
	configPath string
	userFlag   string
)

var rootCmd = &cobra.Command{
	Use:   "schedsync",
	Short: "schedsync – schedules kept in step with Google Calendar",
	Long: `schedsync stores personal schedules, work shifts and a small income/expense
ledger, and mirrors schedules to a linked Google Calendar.

Data lives in ~/.schedsync/ unless data_dsn in the config points elsewhere.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// exitCode is 1 for problems the user can fix by changing the request and 2
// for everything else.
func exitCode(err error) int {
	switch {
	case errors.Is(err, calsync.ErrInvalidInput), errors.Is(err, calsync.ErrNotFound), errors.Is(err, errUsage):
		return 1
	default:
		return 2
	}
}

var errUsage = errors.New("usage error")

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.schedsync/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&userFlag, "user", "", "User id to act as (default: default_user from config)")

	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(calendarCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(workCmd)
	rootCmd.AddCommand(ledgerCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
}
