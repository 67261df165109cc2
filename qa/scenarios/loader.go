// Package scenarios runs small YAML-described microgrid instances through the
// optimizer and the merit-order estimator and checks their known outcomes.
package scenarios

import (
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/WubeDegife/Microgrid-Optimization/core/dispatch"
	"github.com/WubeDegife/Microgrid-Optimization/core/meritorder"
	"github.com/WubeDegife/Microgrid-Optimization/core/model"
)

type RenewableDef struct {
	CapacityKW   float64 `yaml:"capacity_kw"`
	MarginalCost float64 `yaml:"marginal_cost"`
}

type DieselDef struct {
	CapacityKW      float64 `yaml:"capacity_kw"`
	MinLoadFraction float64 `yaml:"min_load_fraction"`
	MarginalCost    float64 `yaml:"marginal_cost"`
	Efficiency      float64 `yaml:"efficiency"`
}

// GridDef leaves the import limit unset for an effectively unlimited grid.
type GridDef struct {
	ImportLimitKW *float64 `yaml:"import_limit_kw"`
	MarginalCost  float64  `yaml:"marginal_cost"`
}

type BatteryDef struct {
	EnergyCapacityKWh float64 `yaml:"energy_capacity_kwh"`
	PowerLimitKW      float64 `yaml:"power_limit_kw"`
	Efficiency        float64 `yaml:"efficiency"`
	OMCost            float64 `yaml:"om_cost"`
}

type AssetsDef struct {
	Solar   RenewableDef `yaml:"solar"`
	Wind    RenewableDef `yaml:"wind"`
	Diesel  DieselDef    `yaml:"diesel"`
	Grid    GridDef      `yaml:"grid"`
	Battery BatteryDef   `yaml:"battery"`
}

func (a AssetsDef) ToModel() model.AssetModel {
	limit := model.DefaultGridImportLimitKW
	if a.Grid.ImportLimitKW != nil {
		limit = *a.Grid.ImportLimitKW
	}
	return model.AssetModel{
		Solar:  model.RenewableAsset{CapacityKW: a.Solar.CapacityKW, MarginalCost: a.Solar.MarginalCost},
		Wind:   model.RenewableAsset{CapacityKW: a.Wind.CapacityKW, MarginalCost: a.Wind.MarginalCost},
		Diesel: model.DieselGenerator(a.Diesel),
		Grid:   model.GridConnection{ImportLimitKW: limit, MarginalCost: a.Grid.MarginalCost},
		Battery: model.BatteryStorage{
			EnergyCapacityKWh:   a.Battery.EnergyCapacityKWh,
			PowerLimitKW:        a.Battery.PowerLimitKW,
			ChargeEfficiency:    a.Battery.Efficiency,
			DischargeEfficiency: a.Battery.Efficiency,
			OMCost:              a.Battery.OMCost,
		},
	}
}

// DispatchDef is a time-resolved instance.
type DispatchDef struct {
	Load              []float64 `yaml:"load"`
	SolarAvailability []float64 `yaml:"solar_availability"`
	WindAvailability  []float64 `yaml:"wind_availability"`
	// Boundary is cyclic unless set.
	Boundary model.BoundaryPolicy `yaml:"boundary"`
}

func (d DispatchDef) Input(a model.AssetModel) dispatch.Input {
	zeros := func(v []float64) []float64 {
		if v != nil {
			return v
		}
		return make([]float64, len(d.Load))
	}
	return dispatch.Input{
		Grid:              model.NewTimeGrid(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), len(d.Load)),
		Load:              d.Load,
		SolarAvailability: zeros(d.SolarAvailability),
		WindAvailability:  zeros(d.WindAvailability),
		Assets:            a,
	}
}

// SourceDef is one merit-order source. A negative availability means
// unlimited.
type SourceDef struct {
	Asset        model.Asset `yaml:"asset"`
	AvailableKWh float64     `yaml:"available_kwh"`
	MarginalCost float64     `yaml:"marginal_cost"`
}

// MeritDef is an aggregate merit-order instance.
type MeritDef struct {
	DemandKWh float64     `yaml:"demand_kwh"`
	Sources   []SourceDef `yaml:"sources"`
}

func (m MeritDef) ToSources() []meritorder.Source {
	out := make([]meritorder.Source, len(m.Sources))
	for i, s := range m.Sources {
		avail := s.AvailableKWh
		if avail < 0 {
			avail = model.UnlimitedEnergyKWh
		}
		out[i] = meritorder.Source{Asset: s.Asset, AvailableKWh: avail, MarginalCost: s.MarginalCost}
	}
	return out
}

// Expected lists the checks of a scenario. Unset fields are not checked.
type Expected struct {
	Objective *float64                `yaml:"objective"`
	Series    map[string][]float64    `yaml:"series"`
	Energy    map[model.Asset]float64 `yaml:"energy"`
	TotalCost *float64                `yaml:"total_cost"`
	UnmetKWh  *float64                `yaml:"unmet_kwh"`
	// Error is "infeasible", "validation", "configuration" or a solver kind.
	Error string `yaml:"error"`
	// Hour is the first offending hour of an infeasible scenario.
	Hour *int `yaml:"hour"`
}

type Scenario struct {
	Name        string       `yaml:"name"`
	Description string       `yaml:"description,omitempty"`
	Assets      AssetsDef    `yaml:"assets"`
	Dispatch    *DispatchDef `yaml:"dispatch,omitempty"`
	Merit       *MeritDef    `yaml:"merit,omitempty"`
	// Tolerance for numeric comparisons, 1e-6 when unset.
	Tolerance float64  `yaml:"tolerance"`
	Expected  Expected `yaml:"expected"`
}

func (s *Scenario) tol() float64 {
	if s.Tolerance <= 0 {
		return 1e-6
	}
	return s.Tolerance
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}

func near(a, b, tol float64) bool { return math.Abs(a-b) <= tol }
