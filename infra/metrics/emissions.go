package metrics

import (
	"fmt"

	coremetrics "github.com/WubeDegife/Microgrid-Optimization/core/metrics"
	"github.com/WubeDegife/Microgrid-Optimization/core/model"
	"github.com/prometheus/client_golang/prometheus"
)

// EmissionFactors are kg CO2 per kWh of diesel generation and grid import.
type EmissionFactors struct {
	Diesel float64 `json:"diesel_kg_per_kwh"`
	Grid   float64 `json:"grid_kg_per_kwh"`
}

// Validate rejects negative factors.
func (f EmissionFactors) Validate() error {
	if f.Diesel < 0 || f.Grid < 0 {
		return fmt.Errorf("emission factors must be >= 0, got diesel=%g grid=%g", f.Diesel, f.Grid)
	}
	return nil
}

// Emissions returns the CO2 mass attributed to a run.
func (f EmissionFactors) Emissions(energy map[model.Asset]float64) float64 {
	return energy[model.AssetDiesel]*f.Diesel + energy[model.AssetGrid]*f.Grid
}

// EmissionsSink reports the CO2 of each successful run.
type EmissionsSink struct {
	factors EmissionFactors
	co2     *prometheus.GaugeVec
}

// NewEmissionsSink registers the emission gauge on reg.
func NewEmissionsSink(f EmissionFactors, reg prometheus.Registerer) (*EmissionsSink, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	co2, err := register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "run_co2_kg",
		Help: "CO2 emitted by diesel and grid import in the last run",
	}, []string{"season", "month"}))
	if err != nil {
		return nil, err
	}
	return &EmissionsSink{factors: f, co2: co2}, nil
}

func (s *EmissionsSink) RecordRun(r coremetrics.RunResult) error {
	if r.Outcome != "optimal" {
		return nil
	}
	s.co2.WithLabelValues(r.Season.String(), model.MonthName(r.Month)).Set(s.factors.Emissions(r.EnergyKWh))
	return nil
}
