// Package run drives one season/month evaluation: it slices the dataset,
// applies the seasonal diesel price, runs the dispatch optimizer and the
// merit-order estimator, and reports the outcome.
package run

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/WubeDegife/Microgrid-Optimization/core/dispatch"
	"github.com/WubeDegife/Microgrid-Optimization/core/events"
	"github.com/WubeDegife/Microgrid-Optimization/core/ingest"
	"github.com/WubeDegife/Microgrid-Optimization/core/logger"
	"github.com/WubeDegife/Microgrid-Optimization/core/meritorder"
	"github.com/WubeDegife/Microgrid-Optimization/core/metrics"
	"github.com/WubeDegife/Microgrid-Optimization/core/model"
	"github.com/WubeDegife/Microgrid-Optimization/core/publish"
	"github.com/WubeDegife/Microgrid-Optimization/internal/eventbus"
)

// Profiles tells how the solar and wind series are expressed.
type Profiles struct {
	Solar ingest.Profile `json:"solar"`
	Wind  ingest.Profile `json:"wind"`
}

// SetDefaults uses kW output for unset profiles.
func (p *Profiles) SetDefaults() {
	if p.Solar == "" {
		p.Solar = ingest.ProfileOutputKW
	}
	if p.Wind == "" {
		p.Wind = ingest.ProfileOutputKW
	}
}

// Validate rejects unknown profiles.
func (p Profiles) Validate() error {
	if !p.Solar.Valid() {
		return model.NewConfigurationError("data.solar_profile", "unknown profile %q", p.Solar)
	}
	if !p.Wind.Valid() {
		return model.NewConfigurationError("data.wind_profile", "unknown profile %q", p.Wind)
	}
	return nil
}

// Request selects the month to evaluate.
type Request struct {
	Season model.Season
	Month  time.Month
	// RelaxOnNumerical asks for one re-solve with relaxed tolerances when the
	// optimizer fails numerically. The result is then flagged Relaxed.
	RelaxOnNumerical bool
}

// Result is the outcome of a successful run.
type Result struct {
	RunID  string           `json:"run_id"`
	Season model.Season     `json:"season"`
	Month  time.Month       `json:"month"`
	Assets model.AssetModel `json:"assets"`
	// Offset is the index of the first hour of the month in the yearly series.
	Offset     int                         `json:"offset"`
	DemandKWh  float64                     `json:"demand_kwh"`
	Dispatch   *model.DispatchSolution     `json:"dispatch"`
	Allocation *model.MeritOrderAllocation `json:"allocation"`
	// Recommended lists the assets the merit order actually used.
	Recommended []model.Asset `json:"recommended"`
	Summary     string        `json:"summary"`
	// ClampedSamples counts renewable output samples above capacity.
	ClampedSamples int           `json:"clamped_samples"`
	Duration       time.Duration `json:"duration"`
}

// Runner evaluates months of a loaded dataset. It is safe for concurrent use.
type Runner struct {
	data     *ingest.Dataset
	assets   model.AssetModel
	profiles Profiles
	opt      *dispatch.Optimizer
	merit    *meritorder.Estimator
	bus      *eventbus.TypedBus[events.RunEvent]
	pub      publish.Publisher
	log      logger.Logger
	now      func() time.Time
	newID    func() string
}

// Option customises a Runner.
type Option func(*Runner)

// WithBus publishes lifecycle events on bus.
func WithBus(bus *eventbus.TypedBus[events.RunEvent]) Option {
	return func(r *Runner) { r.bus = bus }
}

// WithPublisher sends the summary of every successful run to p.
func WithPublisher(p publish.Publisher) Option {
	return func(r *Runner) { r.pub = p }
}

func WithLogger(l logger.Logger) Option {
	return func(r *Runner) { r.log = logger.OrNop(l) }
}

// WithClock replaces time.Now and the run identifier generator.
func WithClock(now func() time.Time, newID func() string) Option {
	return func(r *Runner) {
		r.now = now
		r.newID = newID
	}
}

// NewRunner validates the asset model and profiles.
func NewRunner(data *ingest.Dataset, assets model.AssetModel, profiles Profiles, opt *dispatch.Optimizer, opts ...Option) (*Runner, error) {
	if data == nil {
		return nil, errors.New("run: dataset is required")
	}
	if opt == nil {
		return nil, errors.New("run: optimizer is required")
	}
	if err := assets.Validate(); err != nil {
		return nil, err
	}
	profiles.SetDefaults()
	if err := profiles.Validate(); err != nil {
		return nil, err
	}
	r := &Runner{
		data:     data,
		assets:   assets,
		profiles: profiles,
		opt:      opt,
		pub:      publish.NopPublisher{},
		log:      logger.NopLogger{},
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, o := range opts {
		o(r)
	}
	r.merit = meritorder.NewEstimator(r.log)
	return r, nil
}

// Assets returns the configured asset model before seasonal adjustment.
func (r *Runner) Assets() model.AssetModel { return r.assets }

// prepared is a month window converted to optimizer input.
type prepared struct {
	window  ingest.Window
	input   dispatch.Input
	clamped int
}

func (r *Runner) prepare(req Request) (*prepared, error) {
	w, err := r.data.Select(req.Season, req.Month)
	if err != nil {
		return nil, err
	}
	assets := r.assets.ForSeason(req.Season)
	solar, cs, err := ingest.Availability("solar", w.Solar, assets.Solar.CapacityKW, r.profiles.Solar)
	if err != nil {
		return nil, err
	}
	wind, cw, err := ingest.Availability("wind", w.Wind, assets.Wind.CapacityKW, r.profiles.Wind)
	if err != nil {
		return nil, err
	}
	if cs+cw > 0 {
		r.log.Warnf("%d renewable samples in %s exceed capacity and were clamped", cs+cw, model.MonthName(req.Month))
	}
	return &prepared{
		window: w,
		input: dispatch.Input{
			Grid:              w.Grid,
			Load:              w.Load,
			SolarAvailability: solar,
			WindAvailability:  wind,
			Assets:            assets,
		},
		clamped: cs + cw,
	}, nil
}

// Merit runs only the merit-order estimator for the month.
func (r *Runner) Merit(req Request) (*model.MeritOrderAllocation, error) {
	p, err := r.prepare(req)
	if err != nil {
		return nil, err
	}
	in := p.input
	return r.merit.Estimate(in.Load, in.SolarAvailability, in.WindAvailability, in.Assets)
}

// Run evaluates one month. On failure no partial result is returned; the
// failure is still reported on the bus and to the metrics sinks.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	id := r.newID()
	start := r.now()
	r.emit(events.RunEvent{RunID: id, Stage: events.StageStarted, Season: req.Season, Month: req.Month, Time: start})
	r.log.Infof("run %s: %s %s", id, req.Season, model.MonthName(req.Month))

	res, err := r.run(ctx, id, req)
	elapsed := r.now().Sub(start)

	rec := &metrics.RunResult{
		RunID:    id,
		Season:   req.Season,
		Month:    req.Month,
		Outcome:  dispatch.Outcome(err),
		Duration: elapsed,
		Time:     start,
	}
	if err != nil {
		r.log.Warnf("run %s failed: %v", id, err)
		r.emit(events.RunEvent{RunID: id, Stage: events.StageFailed, Season: req.Season, Month: req.Month, Result: rec, Err: err, Time: r.now()})
		return nil, err
	}
	res.Duration = elapsed
	rec.Steps = res.Dispatch.Grid.Steps
	rec.DemandKWh = res.DemandKWh
	rec.Objective = res.Dispatch.Objective
	rec.MeritCost = res.Allocation.TotalCost.InexactFloat64()
	rec.UnmetKWh = res.Allocation.UnmetKWh
	rec.Relaxed = res.Dispatch.Relaxed
	rec.EnergyKWh = make(map[model.Asset]float64, len(model.Assets))
	for _, a := range model.Assets {
		rec.EnergyKWh[a] = res.Dispatch.EnergyKWh(a)
	}

	if err := r.pub.PublishSummary(ctx, summaryPayload(res, start)); err != nil {
		r.log.Errorf("run %s: publish summary: %v", id, err)
	}
	r.emit(events.RunEvent{
		RunID: id, Stage: events.StageCompleted, Season: req.Season, Month: req.Month,
		Summary: res.Summary, Result: rec, Time: r.now(),
	})
	r.log.Infof("run %s: %s", id, res.Summary)
	return res, nil
}

func (r *Runner) run(ctx context.Context, id string, req Request) (*Result, error) {
	p, err := r.prepare(req)
	if err != nil {
		return nil, err
	}
	in := p.input

	sol, err := r.opt.Optimize(ctx, in)
	var se *model.SolverError
	if err != nil && req.RelaxOnNumerical && errors.As(err, &se) && se.Kind == model.SolverNumerical {
		r.log.Warnf("run %s: numerical failure (%s), re-solving with relaxed tolerances", id, se.Diagnostic)
		sol, err = r.opt.Relaxed().Optimize(ctx, in)
	}
	if err != nil {
		return nil, fmt.Errorf("optimize %s %s: %w", req.Season, model.MonthName(req.Month), err)
	}

	alloc, err := r.merit.Estimate(in.Load, in.SolarAvailability, in.WindAvailability, in.Assets)
	if err != nil {
		return nil, fmt.Errorf("merit order: %w", err)
	}
	return &Result{
		RunID:          id,
		Season:         req.Season,
		Month:          req.Month,
		Assets:         in.Assets,
		Offset:         p.window.Offset,
		DemandKWh:      alloc.DemandKWh,
		Dispatch:       sol,
		Allocation:     alloc,
		Recommended:    alloc.Used(),
		Summary:        Summary(req.Season, req.Month, alloc),
		ClampedSamples: p.clamped,
	}, nil
}

func (r *Runner) emit(ev events.RunEvent) {
	if r.bus != nil {
		r.bus.Publish(ev)
	}
}

func summaryPayload(res *Result, at time.Time) publish.Summary {
	s := publish.Summary{
		RunID:     res.RunID,
		Season:    res.Season.String(),
		Month:     model.MonthName(res.Month),
		DemandKWh: res.DemandKWh,
		Objective: res.Dispatch.Objective,
		MeritCost: res.Allocation.TotalCost.StringFixed(2),
		UnmetKWh:  res.Allocation.UnmetKWh,
		Sentence:  res.Summary,
		Relaxed:   res.Dispatch.Relaxed,
		Time:      at,
	}
	for _, e := range res.Allocation.Entries {
		if e.EnergyKWh <= 0 {
			continue
		}
		s.Mix = append(s.Mix, publish.MixEntry{
			Asset:        string(e.Asset),
			EnergyKWh:    e.EnergyKWh,
			Cost:         e.Cost.StringFixed(2),
			SharePercent: res.Allocation.CostShare(e).StringFixed(2),
		})
	}
	return s
}
