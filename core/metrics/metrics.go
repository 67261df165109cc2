package metrics

import (
	"time"

	"github.com/WubeDegife/Microgrid-Optimization/core/model"
)

// RunResult summarises one month run, successful or not.
type RunResult struct {
	RunID     string
	Season    model.Season
	Month     time.Month
	Steps     int
	DemandKWh float64
	// Energy dispatched per asset by the optimizer. Battery is net discharge.
	EnergyKWh map[model.Asset]float64
	Objective float64
	MeritCost float64
	UnmetKWh  float64
	Relaxed   bool
	Outcome   string
	Duration  time.Duration
	Time      time.Time
}

// MetricsSink records run results for observability purposes.
type MetricsSink interface {
	RecordRun(ev RunResult) error
}

// RatingEvent captures a user rating of a recommended mix.
type RatingEvent struct {
	Rating model.Rating
	Time   time.Time
}

// RatingRecorder records submitted ratings.
type RatingRecorder interface {
	RecordRating(ev RatingEvent) error
}

// NopSink implements MetricsSink with no-op methods.
type NopSink struct{}

func (NopSink) RecordRun(RunResult) error       { return nil }
func (NopSink) RecordRating(RatingEvent) error { return nil }

// MultiSink fans events out to several sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordRun forwards the event to all sinks, returning the first error.
func (m *MultiSink) RecordRun(ev RunResult) error {
	for _, s := range m.Sinks {
		if err := s.RecordRun(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordRating forwards ratings to the sinks that support them.
func (m *MultiSink) RecordRating(ev RatingEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(RatingRecorder); ok {
			if err := rec.RecordRating(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
