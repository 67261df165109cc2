package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremetrics "github.com/WubeDegife/Microgrid-Optimization/core/metrics"
	"github.com/WubeDegife/Microgrid-Optimization/core/model"
)

type lineServer struct {
	mu     sync.Mutex
	bodies []string
}

func (s *lineServer) handler(w http.ResponseWriter, r *http.Request) {
	data, _ := io.ReadAll(r.Body)
	s.mu.Lock()
	s.bodies = append(s.bodies, strings.TrimSpace(string(data)))
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func line(p *write.Point) string {
	return strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
}

func TestInfluxSinkRecordRun(t *testing.T) {
	ls := &lineServer{}
	srv := httptest.NewServer(http.HandlerFunc(ls.handler))
	defer srv.Close()

	sink := NewInfluxSink(InfluxConfig{URL: srv.URL, Token: "token", Org: "org", Bucket: "bucket"})
	defer sink.Close()
	run := julyRun()
	require.NoError(t, sink.RecordRun(run))

	p := write.NewPointWithMeasurement("run_result").
		AddTag("run_id", "r1").
		AddTag("season", "Summer").
		AddTag("month", "Jul").
		AddTag("outcome", "optimal").
		AddField("steps", 744).
		AddField("demand_kwh", 100.0).
		AddField("objective", 12.5).
		AddField("merit_cost", 11.0).
		AddField("unmet_kwh", 0.0).
		AddField("relaxed", false).
		AddField("duration_ms", 20.0).
		SetTime(run.Time)
	solar := write.NewPointWithMeasurement("run_energy").
		AddTag("run_id", "r1").
		AddTag("asset", "Solar").
		AddField("energy_kwh", 60.0).
		SetTime(run.Time)

	require.Len(t, ls.bodies, 4, "one result point and one point per reported asset")
	assert.Equal(t, line(p), ls.bodies[0])
	assert.Equal(t, line(solar), ls.bodies[1])
}

func TestInfluxSinkRecordRating(t *testing.T) {
	ls := &lineServer{}
	srv := httptest.NewServer(http.HandlerFunc(ls.handler))
	defer srv.Close()

	sink := NewInfluxSink(InfluxConfig{URL: srv.URL + "/api/v2/write", Org: "org", Bucket: "bucket"})
	defer sink.Close()
	now := time.Now()
	ev := coremetrics.RatingEvent{Rating: model.Rating{Season: model.Winter, Month: time.March, Rating: 3}, Time: now}
	require.NoError(t, sink.RecordRating(ev))

	p := write.NewPointWithMeasurement("rating").
		AddTag("season", "Winter").
		AddTag("month", "Mar").
		AddField("rating", 3).
		SetTime(now)
	require.Len(t, ls.bodies, 1)
	assert.Equal(t, line(p), ls.bodies[0])
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(InfluxConfig{URL: srv.URL + "/api/v2/write", Token: "tok", Org: "org", Bucket: "bucket"})
	assert.IsType(t, coremetrics.NopSink{}, sink)
	assert.True(t, called, "health endpoint not called")
}
