package metrics

import (
	"errors"
	"strconv"

	coremetrics "github.com/WubeDegife/Microgrid-Optimization/core/metrics"
	"github.com/WubeDegife/Microgrid-Optimization/core/model"
	"github.com/prometheus/client_golang/prometheus"
)

// PromSink exposes run results as Prometheus metrics.
type PromSink struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	demand   *prometheus.GaugeVec
	energy   *prometheus.GaugeVec
	cost     *prometheus.GaugeVec
	ratings  *prometheus.CounterVec
}

// NewPromSink registers run metrics on the default Prometheus registerer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on reg. Collectors already
// registered by an earlier sink are reused. A nil registerer defaults to the
// global one.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	var err error
	s := &PromSink{}
	if s.runs, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "runs_total",
		Help: "Month runs by season and outcome",
	}, []string{"season", "outcome"})); err != nil {
		return nil, err
	}
	if s.duration, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "run_duration_seconds",
		Help:    "Wall time of month runs including both estimators",
		Buckets: prometheus.ExponentialBuckets(0.005, 4, 9),
	}, []string{"outcome"})); err != nil {
		return nil, err
	}
	if s.demand, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "run_demand_kwh",
		Help: "Total demand of the last run per season and month",
	}, []string{"season", "month"})); err != nil {
		return nil, err
	}
	if s.energy, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "run_energy_kwh",
		Help: "Energy dispatched per asset in the last run",
	}, []string{"season", "month", "asset"})); err != nil {
		return nil, err
	}
	if s.cost, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "run_cost",
		Help: "Cost of the last run by estimator",
	}, []string{"season", "month", "estimator"})); err != nil {
		return nil, err
	}
	if s.ratings, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ratings_total",
		Help: "Submitted ratings",
	}, []string{"season", "month", "rating"})); err != nil {
		return nil, err
	}
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordRun updates the counters and, for successful runs, the per-month gauges.
func (s *PromSink) RecordRun(r coremetrics.RunResult) error {
	season := r.Season.String()
	s.runs.WithLabelValues(season, r.Outcome).Inc()
	s.duration.WithLabelValues(r.Outcome).Observe(r.Duration.Seconds())
	if r.Outcome != "optimal" {
		return nil
	}
	month := model.MonthName(r.Month)
	s.demand.WithLabelValues(season, month).Set(r.DemandKWh)
	for a, e := range r.EnergyKWh {
		s.energy.WithLabelValues(season, month, string(a)).Set(e)
	}
	s.cost.WithLabelValues(season, month, "lp").Set(r.Objective)
	s.cost.WithLabelValues(season, month, "merit_order").Set(r.MeritCost)
	return nil
}

// RecordRating counts a submitted rating.
func (s *PromSink) RecordRating(ev coremetrics.RatingEvent) error {
	r := ev.Rating
	s.ratings.WithLabelValues(r.Season.String(), model.MonthName(r.Month), strconv.Itoa(r.Rating)).Inc()
	return nil
}
