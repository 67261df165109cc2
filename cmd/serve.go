package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/WubeDegife/Microgrid-Optimization/app"
	"github.com/WubeDegife/Microgrid-Optimization/infra/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Load the series and serve the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		svc, err := app.New(cfg)
		if err != nil {
			return err
		}
		defer func() {
			if err := svc.Close(); err != nil {
				logger.New("main").Errorf("service close: %v", err)
			}
		}()
		if cfg.Data.Complete() {
			if err := svc.LoadData(ctx); err != nil {
				return err
			}
		} else {
			logger.New("main").Warnf("data sources incomplete, only ratings are available")
		}
		return svc.Serve(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
