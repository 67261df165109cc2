package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/WubeDegife/Microgrid-Optimization/app"
	"github.com/WubeDegife/Microgrid-Optimization/core/model"
	"github.com/WubeDegife/Microgrid-Optimization/core/run"
	"github.com/WubeDegife/Microgrid-Optimization/infra/logger"
	"github.com/WubeDegife/Microgrid-Optimization/pkg/export"
)

type selection struct {
	season, month string
	format, out   string
}

func (s *selection) bind(cmd *cobra.Command, formats string) {
	cmd.Flags().StringVarP(&s.season, "season", "s", "", "Winter, Spring, Summer or Fall")
	cmd.Flags().StringVarP(&s.month, "month", "m", "", "month number or name within the season")
	cmd.Flags().StringVarP(&s.format, "format", "f", "text", formats)
	cmd.Flags().StringVarP(&s.out, "out", "o", "", "write to this file instead of stdout")
	_ = cmd.MarkFlagRequired("season")
	_ = cmd.MarkFlagRequired("month")
}

func (s *selection) request() (run.Request, error) {
	season, err := model.ParseSeason(s.season)
	if err != nil {
		return run.Request{}, err
	}
	month, err := model.ParseMonth(s.month)
	if err != nil {
		return run.Request{}, err
	}
	return run.Request{Season: season, Month: month}, nil
}

// output opens the destination; the returned func closes it.
func output(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

// loadedService builds the service and reads the series.
func loadedService(ctx context.Context) (*app.Service, error) {
	svc, err := app.New(cfg)
	if err != nil {
		return nil, err
	}
	if err := svc.LoadData(ctx); err != nil {
		_ = svc.Close()
		return nil, err
	}
	return svc, nil
}

func closeService(svc *app.Service) {
	if err := svc.Close(); err != nil {
		logger.New("main").Errorf("service close: %v", err)
	}
}

var (
	runSel     selection
	runRelax   bool
	runAssets  string
	runTimeout time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Optimize the dispatch of one month and print the recommended mix",
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := runSel.request()
		if err != nil {
			return err
		}
		req.RelaxOnNumerical = runRelax

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if runTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, runTimeout)
			defer cancel()
		}
		svc, err := loadedService(ctx)
		if err != nil {
			return err
		}
		defer closeService(svc)

		res, err := svc.Run(ctx, req)
		if err != nil {
			return err
		}
		w, closeOut, err := output(cmd, runSel.out)
		if err != nil {
			return err
		}
		switch runSel.format {
		case "json":
			err = export.WriteJSON(w, res)
		case "csv":
			var assets []model.Asset
			if runAssets == "recommended" {
				assets = res.Recommended
			}
			err = export.WriteDispatchCSV(w, res.Dispatch, assets)
		case "text":
			_, err = fmt.Fprintf(w, "%s\nLP objective: %.2f\nMerit-order cost: %s\n",
				res.Summary, res.Dispatch.Objective, res.Allocation.TotalCost.StringFixed(2))
			if err == nil {
				err = export.WriteAllocationCSV(w, res.Allocation)
			}
		default:
			err = model.NewValidationError("format", "unknown format %q", runSel.format)
		}
		if cerr := closeOut(); err == nil {
			err = cerr
		}
		return err
	},
}

var meritSel selection

var meritCmd = &cobra.Command{
	Use:   "merit",
	Short: "Print the merit-order allocation of one month",
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := meritSel.request()
		if err != nil {
			return err
		}
		svc, err := loadedService(cmd.Context())
		if err != nil {
			return err
		}
		defer closeService(svc)

		alloc, err := svc.Merit(req)
		if err != nil {
			return err
		}
		w, closeOut, err := output(cmd, meritSel.out)
		if err != nil {
			return err
		}
		switch meritSel.format {
		case "json":
			err = export.WriteJSON(w, alloc)
		case "csv", "text":
			err = export.WriteAllocationCSV(w, alloc)
		default:
			err = model.NewValidationError("format", "unknown format %q", meritSel.format)
		}
		if cerr := closeOut(); err == nil {
			err = cerr
		}
		return err
	},
}

func init() {
	runSel.bind(runCmd, "text, json or csv")
	runCmd.Flags().BoolVar(&runRelax, "relax", false, "re-solve once with relaxed tolerances after a numerical failure")
	runCmd.Flags().StringVar(&runAssets, "assets", "all", "csv columns: all or recommended")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "abort the solve after this duration")
	meritSel.bind(meritCmd, "text, json or csv")
	rootCmd.AddCommand(runCmd, meritCmd)
}
