package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WubeDegife/Microgrid-Optimization/config"
	coremetrics "github.com/WubeDegife/Microgrid-Optimization/core/metrics"
	"github.com/WubeDegife/Microgrid-Optimization/core/model"
	"github.com/WubeDegife/Microgrid-Optimization/core/publish"
	"github.com/WubeDegife/Microgrid-Optimization/core/run"
)

type recordingSink struct {
	mu      sync.Mutex
	runs    []coremetrics.RunResult
	ratings []coremetrics.RatingEvent
}

func (s *recordingSink) RecordRun(r coremetrics.RunResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, r)
	return nil
}

func (s *recordingSink) RecordRating(ev coremetrics.RatingEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ratings = append(s.ratings, ev)
	return nil
}

func writeSeries(t *testing.T, dir, name, header string, n int, v string) string {
	t.Helper()
	var b strings.Builder
	b.WriteString(header + "\n")
	for i := 0; i < n; i++ {
		b.WriteString(v + "\n")
	}
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

// januaryConfig describes a one-month dataset: 20 kW load, 5 kW solar out of
// 10 kW and 2.5 kW wind out of 5 kW.
func januaryConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Data.ExpectedSamples = 744
	cfg.Data.Load.Path = writeSeries(t, dir, "building.csv", "load_kw", 744, "20")
	cfg.Data.Solar.Path = writeSeries(t, dir, "solar.csv", "solar_kw", 744, "5")
	cfg.Data.Wind.Path = writeSeries(t, dir, "wind.csv", "wind_kw", 744, "2.5")
	cfg.Assets.Solar = model.RenewableAsset{CapacityKW: 10, MarginalCost: 0.02}
	cfg.Assets.Wind = model.RenewableAsset{CapacityKW: 5, MarginalCost: 0.03}
	cfg.Assets.Grid.MarginalCost = 0.0884
	cfg.Ratings.Type = "csv"
	cfg.Ratings.Conf = map[string]any{"path": filepath.Join(dir, "ratings.csv")}
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestServiceRun(t *testing.T) {
	sink := &recordingSink{}
	pub := &publish.MemoryPublisher{}
	svc, err := New(januaryConfig(t), WithMetricsSink(sink), WithPublisher(pub))
	require.NoError(t, err)

	_, err = svc.Run(context.Background(), run.Request{Season: model.Winter, Month: time.January})
	assert.ErrorIs(t, err, model.ErrConfiguration, "no data loaded yet")

	require.NoError(t, svc.LoadData(context.Background()))
	res, err := svc.Run(context.Background(), run.Request{Season: model.Winter, Month: time.January})
	require.NoError(t, err)
	assert.Equal(t,
		"For Jan Winter, dispatch = Solar 3720 kWh + Wind 1860 kWh + Grid 9300 kWh to meet 14,880 kWh demand.",
		res.Summary)
	assert.InDelta(t, 12.5*744, res.Dispatch.EnergyKWh(model.AssetGrid), 1e-3)

	_, err = svc.Run(context.Background(), run.Request{Season: model.Winter, Month: time.February})
	assert.ErrorIs(t, err, model.ErrValidation, "dataset only covers January")

	require.NoError(t, svc.Close())
	require.Len(t, pub.All(), 1)
	require.Len(t, sink.runs, 2)
	assert.Equal(t, "optimal", sink.runs[0].Outcome)
	assert.Equal(t, "validation", sink.runs[1].Outcome)
}

func TestServiceRate(t *testing.T) {
	sink := &recordingSink{}
	svc, err := New(januaryConfig(t), WithMetricsSink(sink))
	require.NoError(t, err)
	defer func() { require.NoError(t, svc.Close()) }()

	ctx := context.Background()
	require.NoError(t, svc.Rate(ctx, model.Rating{Season: model.Winter, Month: time.January, Rating: 5}))
	assert.ErrorIs(t, svc.Rate(ctx, model.Rating{Season: model.Winter, Month: time.June, Rating: 5}), model.ErrValidation)

	got, err := svc.Ratings(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.Rating{{Season: model.Winter, Month: time.January, Rating: 5}}, got)
	require.Len(t, sink.ratings, 1)
	assert.Equal(t, 5, sink.ratings[0].Rating.Rating)
}

func TestServiceHandler(t *testing.T) {
	svc, err := New(januaryConfig(t), WithMetricsSink(coremetrics.NopSink{}))
	require.NoError(t, err)
	defer func() { require.NoError(t, svc.Close()) }()
	require.NoError(t, svc.LoadData(context.Background()))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", strings.NewReader(`{"season":"Winter","month":"Jan"}`))
	req.Header.Set("Content-Type", "application/json")
	svc.Handler().ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"summary":"For Jan Winter`)

	rr = httptest.NewRecorder()
	svc.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "optimizer_solves_total")
}

func TestSourcesRequireLocation(t *testing.T) {
	_, _, _, err := Sources(config.DataConfig{Load: config.SourceConfig{Path: "a.csv"}})
	assert.ErrorIs(t, err, model.ErrConfiguration)

	load, _, wind, err := Sources(config.DataConfig{
		Load:  config.SourceConfig{Path: "a.csv"},
		Solar: config.SourceConfig{Path: "b.csv"},
		Wind:  config.SourceConfig{URL: "https://example.org/w.csv"},
	})
	require.NoError(t, err)
	assert.Equal(t, "file(a.csv)", load.String())
	assert.Equal(t, "http(https://example.org/w.csv)", wind.String())
}
