package config

import "github.com/WubeDegife/Microgrid-Optimization/core/model"

// GridConfig leaves the import limit unset to mean effectively unlimited.
// An explicit 0 disables the grid.
type GridConfig struct {
	ImportLimitKW *float64 `json:"import_limit_kw"`
	MarginalCost  float64  `json:"marginal_cost"`
}

// AssetsConfig is the asset section. Diesel prices are base prices; the
// seasonal factor is applied per run.
type AssetsConfig struct {
	Solar   model.RenewableAsset  `json:"solar"`
	Wind    model.RenewableAsset  `json:"wind"`
	Diesel  model.DieselGenerator `json:"diesel"`
	Grid    GridConfig            `json:"grid"`
	Battery model.BatteryStorage  `json:"battery"`
}

func (c *AssetsConfig) SetDefaults() {
	if c.Grid.ImportLimitKW == nil {
		v := model.DefaultGridImportLimitKW
		c.Grid.ImportLimitKW = &v
	}
}

// Model converts the section. SetDefaults must have run.
func (c AssetsConfig) Model() model.AssetModel {
	var limit float64
	if c.Grid.ImportLimitKW != nil {
		limit = *c.Grid.ImportLimitKW
	}
	return model.AssetModel{
		Solar:   c.Solar,
		Wind:    c.Wind,
		Diesel:  c.Diesel,
		Grid:    model.GridConnection{ImportLimitKW: limit, MarginalCost: c.Grid.MarginalCost},
		Battery: c.Battery,
	}
}

func (c AssetsConfig) Validate() error {
	return c.Model().Validate()
}
