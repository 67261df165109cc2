// Package cmd implements the microgrid command line.
package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/WubeDegife/Microgrid-Optimization/config"
	"github.com/WubeDegife/Microgrid-Optimization/core/model"
	"github.com/WubeDegife/Microgrid-Optimization/infra/logger"
)

var (
	cfgPath string
	cfg     *config.Config
	logFile io.Closer
)

var rootCmd = &cobra.Command{
	Use:           "microgrid",
	Short:         "Microgrid dispatch optimization and merit-order estimates",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := logger.SetLevel(c.Logging.Level); err != nil {
			return err
		}
		if c.Logging.File != "" {
			logFile, err = logger.EnableFile(logger.FileOptions{
				Path:       c.Logging.File,
				MaxSizeMB:  c.Logging.MaxSizeMB,
				MaxBackups: c.Logging.MaxBackups,
				MaxAgeDays: c.Logging.MaxAgeDays,
				Compress:   c.Logging.Compress,
			})
			if err != nil {
				return fmt.Errorf("log file: %w", err)
			}
		}
		cfg = c
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if logFile != nil {
			return logFile.Close()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

// ExitCode maps an error returned by Execute onto the process exit status.
func ExitCode(err error) int {
	var se *model.SolverError
	switch {
	case err == nil:
		return 0
	case errors.Is(err, model.ErrValidation), errors.Is(err, model.ErrConfiguration):
		return 2
	case errors.Is(err, model.ErrInfeasible):
		return 3
	case errors.As(err, &se):
		return 4
	default:
		return 1
	}
}
