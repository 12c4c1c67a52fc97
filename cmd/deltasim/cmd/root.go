// Package cmd provides the command-line interface of deltasim.
package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

// logLevelEnv is read when --log-level is not given. It can be set in a .env
// file in the working directory.
const logLevelEnv = "DELTASIM_LOG_LEVEL"

// NewRootCmd creates the deltasim command with all its subcommands.
func NewRootCmd() *cobra.Command {
	var logLevel string

	rootCmd := &cobra.Command{
		Use:           "deltasim",
		Short:         "Delta-cycle discrete-event simulator for hardware models",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("loading .env: %w", err)
			}

			if !cmd.Flags().Changed("log-level") {
				if v, ok := os.LookupEnv(logLevelEnv); ok {
					logLevel = v
				}
			}

			level, err := logrus.ParseLevel(logLevel)
			if err != nil {
				return fmt.Errorf("invalid log level %q", logLevel)
			}

			logrus.SetLevel(level)

			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"Log verbosity (trace, debug, info, warn, error)")

	rootCmd.AddCommand(newRunCmd(), newSweepCmd())

	return rootCmd
}

// Execute runs the command line and exits with the simulation status.
func Execute() {
	err := NewRootCmd().Execute()
	if err != nil {
		logrus.Error(err)
		atexit.Exit(2)
	}

	atexit.Exit(exitStatus)
}
