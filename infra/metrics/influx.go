package metrics

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/WubeDegife/Microgrid-Optimization/core/metrics"
	"github.com/WubeDegife/Microgrid-Optimization/core/model"
	"github.com/WubeDegife/Microgrid-Optimization/infra/logger"
)

// InfluxConfig locates the InfluxDB bucket run results are written to.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// InfluxSink writes run results to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a sink for the given InfluxDB endpoint.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback pings the InfluxDB instance and returns a
// NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordRun writes one run_result point and one run_energy point per asset.
func (s *InfluxSink) RecordRun(r coremetrics.RunResult) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	month := model.MonthName(r.Month)
	p := write.NewPointWithMeasurement("run_result").
		AddTag("run_id", r.RunID).
		AddTag("season", r.Season.String()).
		AddTag("month", month).
		AddTag("outcome", r.Outcome).
		AddField("steps", r.Steps).
		AddField("demand_kwh", round3(r.DemandKWh)).
		AddField("objective", round3(r.Objective)).
		AddField("merit_cost", round3(r.MeritCost)).
		AddField("unmet_kwh", round3(r.UnmetKWh)).
		AddField("relaxed", r.Relaxed).
		AddField("duration_ms", round3(r.Duration.Seconds()*1000)).
		SetTime(r.Time)
	if err := s.writeAPI.WritePoint(ctx, p); err != nil {
		return err
	}
	for _, a := range model.Assets {
		e, ok := r.EnergyKWh[a]
		if !ok {
			continue
		}
		ep := write.NewPointWithMeasurement("run_energy").
			AddTag("run_id", r.RunID).
			AddTag("asset", string(a)).
			AddField("energy_kwh", round3(e)).
			SetTime(r.Time)
		if err := s.writeAPI.WritePoint(ctx, ep); err != nil {
			return err
		}
	}
	return nil
}

// RecordRating writes a rating point.
func (s *InfluxSink) RecordRating(ev coremetrics.RatingEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("rating").
		AddTag("season", ev.Rating.Season.String()).
		AddTag("month", model.MonthName(ev.Rating.Month)).
		AddField("rating", ev.Rating.Rating).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the client.
func (s *InfluxSink) Close() { s.client.Close() }

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
