package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/WubeDegife/Microgrid-Optimization/app"
	"github.com/WubeDegife/Microgrid-Optimization/core/model"
	"github.com/WubeDegife/Microgrid-Optimization/core/rating"
	"github.com/WubeDegife/Microgrid-Optimization/pkg/export"
)

var (
	rateSel   selection
	rateValue int
)

var rateCmd = &cobra.Command{
	Use:   "rate",
	Short: "Rate the mix recommended for a season and month (1-5)",
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := rateSel.request()
		if err != nil {
			return err
		}
		svc, err := app.New(cfg)
		if err != nil {
			return err
		}
		defer closeService(svc)
		r := model.Rating{Season: req.Season, Month: req.Month, Rating: rateValue}
		if err := svc.Rate(cmd.Context(), r); err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "Recorded rating %s\n", r)
		return err
	},
}

var ratingsOut selection

var ratingsCmd = &cobra.Command{
	Use:   "ratings",
	Short: "Export the recorded ratings",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := app.New(cfg)
		if err != nil {
			return err
		}
		defer closeService(svc)
		list, err := svc.Ratings(cmd.Context())
		if err != nil {
			return err
		}
		w, closeOut, err := output(cmd, ratingsOut.out)
		if err != nil {
			return err
		}
		switch ratingsOut.format {
		case "json":
			err = export.WriteJSON(w, list)
		case "csv":
			err = rating.WriteCSV(w, list)
		default:
			err = model.NewValidationError("format", "unknown format %q", ratingsOut.format)
		}
		if cerr := closeOut(); err == nil {
			err = cerr
		}
		return err
	},
}

func init() {
	rateCmd.Flags().StringVarP(&rateSel.season, "season", "s", "", "Winter, Spring, Summer or Fall")
	rateCmd.Flags().StringVarP(&rateSel.month, "month", "m", "", "month number or name within the season")
	rateCmd.Flags().IntVarP(&rateValue, "rating", "r", 0, "score from 1 to 5")
	_ = rateCmd.MarkFlagRequired("season")
	_ = rateCmd.MarkFlagRequired("month")
	_ = rateCmd.MarkFlagRequired("rating")

	ratingsCmd.Flags().StringVarP(&ratingsOut.format, "format", "f", "csv", "csv or json")
	ratingsCmd.Flags().StringVarP(&ratingsOut.out, "out", "o", "", "write to this file instead of stdout")
	rootCmd.AddCommand(rateCmd, ratingsCmd)
}
