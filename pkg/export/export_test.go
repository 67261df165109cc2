package export

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WubeDegife/Microgrid-Optimization/core/model"
)

func twoStepSolution() *model.DispatchSolution {
	return &model.DispatchSolution{
		Grid:       model.NewTimeGrid(time.Date(2023, time.July, 1, 0, 0, 0, 0, time.UTC), 2),
		Load:       []float64{3, 4},
		Solar:      []float64{2, 0},
		Wind:       []float64{0, 0},
		Diesel:     []float64{0, 0},
		GridImport: []float64{0.5, 3},
		Charge:     []float64{0, 0},
		Discharge:  []float64{0.5, 1},
		SoC:        []float64{1.5, 0.5},
	}
}

func TestWriteDispatchCSVFiltered(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteDispatchCSV(&buf, twoStepSolution(), []model.Asset{model.AssetSolar, model.AssetGrid}))
	want := "timestamp,load_kw,solar_kw,grid_kw\n" +
		"2023-07-01T00:00:00Z,3,2,0.5\n" +
		"2023-07-01T01:00:00Z,4,0,3\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteDispatchCSVAllAssets(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteDispatchCSV(&buf, twoStepSolution(), nil))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "timestamp,load_kw,solar_kw,wind_kw,diesel_kw,grid_kw,battery_charge_kw,battery_discharge_kw,soc_kwh", lines[0])
	assert.Equal(t, "2023-07-01T01:00:00Z,4,0,0,0,3,0,1,0.5", lines[2])

	assert.Error(t, WriteDispatchCSV(&buf, twoStepSolution(), []model.Asset{"Hydro"}))
}

func TestWriteAllocationCSV(t *testing.T) {
	alloc := &model.MeritOrderAllocation{
		Entries: []model.AllocationEntry{
			{Asset: model.AssetSolar, AvailableKWh: 3, EnergyKWh: 3, MarginalCost: decimal.Zero, Cost: decimal.Zero},
			{Asset: model.AssetGrid, AvailableKWh: model.UnlimitedEnergyKWh, EnergyKWh: 2, MarginalCost: decimal.RequireFromString("0.15"), Cost: decimal.RequireFromString("0.3")},
		},
		TotalCost: decimal.RequireFromString("0.3"),
	}
	var buf bytes.Buffer
	require.NoError(t, WriteAllocationCSV(&buf, alloc))
	want := "asset,available_kwh,energy_kwh,marginal_cost,cost,share_percent\n" +
		"Solar,3,3,0,0,0.00\n" +
		"Grid,unlimited,2,0.15,0.3,100.00\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, map[string]int{"a": 1}))
	var got map[string]int
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, 1, got["a"])
}
