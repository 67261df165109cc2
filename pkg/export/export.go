// Package export writes solutions, allocations and mix tables as CSV or JSON.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/WubeDegife/Microgrid-Optimization/core/model"
)

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteDispatchCSV writes one row per step with the timestamp, the load and
// the series of the requested assets. A nil assets slice writes every asset.
// When the battery is included its charge, discharge and state of charge are
// written as separate columns.
func WriteDispatchCSV(w io.Writer, sol *model.DispatchSolution, assets []model.Asset) error {
	if assets == nil {
		assets = model.Assets
	}
	header := []string{"timestamp", "load_kw"}
	var cols [][]float64
	for _, a := range assets {
		if a == model.AssetBattery {
			header = append(header, "battery_charge_kw", "battery_discharge_kw", "soc_kwh")
			cols = append(cols, sol.Charge, sol.Discharge, sol.SoC)
			continue
		}
		s := sol.Series(a)
		if s == nil {
			return fmt.Errorf("unknown asset %q", a)
		}
		header = append(header, strings.ToLower(string(a))+"_kw")
		cols = append(cols, s)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for t := 0; t < sol.Grid.Steps; t++ {
		rec := make([]string, 0, len(header))
		rec = append(rec, sol.Grid.At(t).Format(time.RFC3339), formatFloat(sol.Load[t]))
		for _, c := range cols {
			rec = append(rec, formatFloat(c[t]))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteAllocationCSV writes the recommended mix table of a merit-order
// allocation: asset, available energy, allocated energy, marginal cost, cost
// and share of the total cost in percent. Unlimited availability is written
// as "unlimited".
func WriteAllocationCSV(w io.Writer, alloc *model.MeritOrderAllocation) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"asset", "available_kwh", "energy_kwh", "marginal_cost", "cost", "share_percent"}); err != nil {
		return err
	}
	for _, e := range alloc.Entries {
		avail := formatFloat(e.AvailableKWh)
		if e.AvailableKWh >= model.UnlimitedEnergyKWh {
			avail = "unlimited"
		}
		rec := []string{
			string(e.Asset),
			avail,
			formatFloat(e.EnergyKWh),
			e.MarginalCost.String(),
			e.Cost.String(),
			alloc.CostShare(e).StringFixed(2),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
