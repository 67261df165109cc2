package scenarios

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WubeDegife/Microgrid-Optimization/core/model"
)

func TestScenario(t *testing.T) {
	files, err := filepath.Glob("*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, files)
	for _, f := range files {
		sc, err := Load(f)
		require.NoError(t, err, f)
		t.Run(sc.Name, func(t *testing.T) {
			RunScenario(t, sc)
		})
	}
}

func TestCheckReportsMismatch(t *testing.T) {
	sc, err := Load("scenario_a.yaml")
	require.NoError(t, err)
	wrong := 1.0
	sc.Expected.Objective = &wrong
	sc.Expected.Series["Wind"] = []float64{1, 1}

	problems, err := Check(context.Background(), sc)
	require.NoError(t, err)
	assert.Len(t, problems, 3)
}

func TestCheckExpectsError(t *testing.T) {
	sc, err := Load("scenario_c.yaml")
	require.NoError(t, err)
	sc.Expected.Error = ""
	problems, err := Check(context.Background(), sc)
	require.NoError(t, err)
	require.Len(t, problems, 1)
	assert.Contains(t, problems[0], "unexpected error")
}

func TestAssetsDefaults(t *testing.T) {
	var a AssetsDef
	m := a.ToModel()
	assert.Equal(t, model.DefaultGridImportLimitKW, m.Grid.ImportLimitKW)
	assert.False(t, m.Battery.Enabled())
}

func TestLoadInvalid(t *testing.T) {
	_, err := Load("no-file.yaml")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte(":"), 0o644))
	_, err = Load(path)
	assert.Error(t, err)
}
