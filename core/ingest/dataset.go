package ingest

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/WubeDegife/Microgrid-Optimization/core/logger"
	"github.com/WubeDegife/Microgrid-Optimization/core/model"
	"golang.org/x/sync/errgroup"
)

// DefaultExpectedSamples is one non-leap year of hourly samples.
const DefaultExpectedSamples = 8760

// DefaultYearStart anchors the hourly index of the series.
var DefaultYearStart = time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)

// Dataset holds the three raw series on a shared hourly index.
type Dataset struct {
	Start time.Time
	Load  []float64
	Solar []float64
	Wind  []float64
}

// Loader reads and validates the series.
type Loader struct {
	expected int
	start    time.Time
	log      logger.Logger
}

// NewLoader returns a Loader expecting exactly expected samples per series.
func NewLoader(expected int, start time.Time, log logger.Logger) *Loader {
	if expected <= 0 {
		expected = DefaultExpectedSamples
	}
	if start.IsZero() {
		start = DefaultYearStart
	}
	return &Loader{expected: expected, start: start, log: logger.OrNop(log)}
}

// Load reads the three sources concurrently. Any series whose length differs
// from the expected count is a ValidationError and nothing is returned.
func (l *Loader) Load(ctx context.Context, load, solar, wind Source) (*Dataset, error) {
	sources := []struct {
		name string
		src  Source
	}{{"load", load}, {"solar", solar}, {"wind", wind}}
	for _, s := range sources {
		if s.src == nil {
			return nil, model.NewValidationError(s.name, "no source configured")
		}
	}
	series := make([][]float64, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, s := range sources {
		i, s := i, s
		g.Go(func() error {
			v, err := s.src.Read(gctx)
			if err != nil {
				return fmt.Errorf("read %s: %w", s.src, err)
			}
			if err := l.check(s.name, v); err != nil {
				return err
			}
			l.log.Debugf("read %d %s samples from %s", len(v), s.name, s.src)
			series[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &Dataset{Start: l.start, Load: series[0], Solar: series[1], Wind: series[2]}, nil
}

func (l *Loader) check(name string, v []float64) error {
	if len(v) != l.expected {
		return model.NewValidationError(name, "expected %d samples, got %d", l.expected, len(v))
	}
	for t, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) || x < 0 {
			return model.NewValidationError(name, "sample %d is %g", t, x)
		}
	}
	return nil
}

// Window is the slice of a dataset covering one calendar month.
type Window struct {
	Season model.Season
	Month  time.Month
	// Offset is the index of the first sample in the full series.
	Offset int
	Grid   model.TimeGrid
	Load   []float64
	Solar  []float64
	Wind   []float64
}

// Month returns the first contiguous run of samples whose timestamp falls in m.
func (d *Dataset) Month(m time.Month) (Window, error) {
	first, end := -1, -1
	for i := range d.Load {
		in := d.Start.Add(time.Duration(i) * model.Step).Month() == m
		if in && first < 0 {
			first = i
		}
		if !in && first >= 0 {
			end = i
			break
		}
	}
	if first < 0 {
		return Window{}, model.NewValidationError("month", "no samples fall in %s", m)
	}
	if end < 0 {
		end = len(d.Load)
	}
	return Window{
		Month:  m,
		Offset: first,
		Grid:   model.NewTimeGrid(d.Start.Add(time.Duration(first)*model.Step), end-first),
		Load:   d.Load[first:end],
		Solar:  d.Solar[first:end],
		Wind:   d.Wind[first:end],
	}, nil
}

// Select returns the month window after checking that m belongs to the
// season's quarter.
func (d *Dataset) Select(s model.Season, m time.Month) (Window, error) {
	if !s.Contains(m) {
		return Window{}, model.NewValidationError("month", "%s is not in %s", m, s)
	}
	w, err := d.Month(m)
	if err != nil {
		return Window{}, err
	}
	w.Season = s
	return w, nil
}
