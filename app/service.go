// Package app assembles the configured components into a running service.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/WubeDegife/Microgrid-Optimization/api"
	"github.com/WubeDegife/Microgrid-Optimization/auth"
	"github.com/WubeDegife/Microgrid-Optimization/config"
	"github.com/WubeDegife/Microgrid-Optimization/core/dispatch"
	"github.com/WubeDegife/Microgrid-Optimization/core/events"
	"github.com/WubeDegife/Microgrid-Optimization/core/ingest"
	coremetrics "github.com/WubeDegife/Microgrid-Optimization/core/metrics"
	"github.com/WubeDegife/Microgrid-Optimization/core/model"
	"github.com/WubeDegife/Microgrid-Optimization/core/publish"
	"github.com/WubeDegife/Microgrid-Optimization/core/rating"
	"github.com/WubeDegife/Microgrid-Optimization/core/run"
	"github.com/WubeDegife/Microgrid-Optimization/infra/logger"
	"github.com/WubeDegife/Microgrid-Optimization/infra/metrics"
	"github.com/WubeDegife/Microgrid-Optimization/infra/mqtt"
	"github.com/WubeDegife/Microgrid-Optimization/internal/eventbus"
)

// ErrNoData is returned by Run and Merit before LoadData succeeded.
var ErrNoData = model.NewConfigurationError("data", "series are not loaded")

// Service owns the optimizer, the stores and the outputs.
type Service struct {
	cfg       *config.Config
	log       logger.Logger
	opt       *dispatch.Optimizer
	store     rating.Store
	sink      coremetrics.MetricsSink
	pub       publish.Publisher
	bus       *eventbus.TypedBus[events.RunEvent]
	runner    *run.Runner
	collector context.CancelFunc
	stopped   <-chan struct{}
	now       func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithPublisher replaces the MQTT publisher chosen from the configuration.
func WithPublisher(p publish.Publisher) Option {
	return func(s *Service) { s.pub = p }
}

// WithMetricsSink replaces the configured metrics sinks.
func WithMetricsSink(sink coremetrics.MetricsSink) Option {
	return func(s *Service) { s.sink = sink }
}

// New builds the service. Series are not read until LoadData.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	log := logger.New("service")
	s := &Service{cfg: cfg, log: log, bus: eventbus.NewTyped[events.RunEvent](), now: time.Now}
	for _, o := range opts {
		o(s)
	}

	var err error
	if s.opt, err = dispatch.NewOptimizer(cfg.Solver, logger.New("optimizer")); err != nil {
		return nil, err
	}
	if s.store, err = rating.NewStore(cfg.Ratings); err != nil {
		return nil, fmt.Errorf("ratings store: %w", err)
	}
	if s.sink == nil {
		if s.sink, err = coremetrics.NewMetricsSink(cfg.Metrics.Sinks); err != nil {
			_ = s.store.Close()
			return nil, fmt.Errorf("metrics sink: %w", err)
		}
	}
	if s.pub == nil {
		s.pub = publish.NopPublisher{}
		if cfg.MQTT.Broker != "" {
			p, err := mqtt.NewPublisher(cfg.MQTT)
			if err != nil {
				_ = s.store.Close()
				return nil, fmt.Errorf("mqtt publisher: %w", err)
			}
			s.pub = p
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.collector = cancel
	s.stopped = metrics.StartEventCollector(ctx, s.bus, s.sink)
	return s, nil
}

// Sources builds the three series sources from the data section.
func Sources(c config.DataConfig) (load, solar, wind ingest.Source, err error) {
	var cred *auth.ClientCred
	if c.OAuth.Enabled() {
		cred = auth.NewClientCred(c.OAuth)
	}
	timeout := time.Duration(c.TimeoutSeconds) * time.Second
	build := func(name string, sc config.SourceConfig) (ingest.Source, error) {
		switch {
		case sc.Path != "":
			return ingest.FileSource{Name: name, Path: sc.Path, Column: sc.Column}, nil
		case sc.URL != "":
			return ingest.HTTPSource{
				Name: name, URL: sc.URL, Column: sc.Column, Cred: cred,
				Client: &http.Client{Timeout: timeout},
			}, nil
		default:
			return nil, model.NewConfigurationError("data."+name, "path or url is required")
		}
	}
	if load, err = build("load", c.Load); err != nil {
		return nil, nil, nil, err
	}
	if solar, err = build("solar", c.Solar); err != nil {
		return nil, nil, nil, err
	}
	if wind, err = build("wind", c.Wind); err != nil {
		return nil, nil, nil, err
	}
	return load, solar, wind, nil
}

// LoadData reads the configured series and prepares the runner.
func (s *Service) LoadData(ctx context.Context) error {
	load, solar, wind, err := Sources(s.cfg.Data)
	if err != nil {
		return err
	}
	start, err := s.cfg.Data.Start()
	if err != nil {
		return err
	}
	ds, err := ingest.NewLoader(s.cfg.Data.ExpectedSamples, start, logger.New("ingest")).Load(ctx, load, solar, wind)
	if err != nil {
		return err
	}
	return s.UseDataset(ds)
}

// UseDataset prepares the runner for an already loaded dataset.
func (s *Service) UseDataset(ds *ingest.Dataset) error {
	r, err := run.NewRunner(ds, s.cfg.Assets.Model(),
		run.Profiles{Solar: s.cfg.Data.SolarProfile, Wind: s.cfg.Data.WindProfile},
		s.opt,
		run.WithBus(s.bus),
		run.WithPublisher(s.pub),
		run.WithLogger(logger.New("run")),
	)
	if err != nil {
		return err
	}
	s.runner = r
	s.log.Infof("dataset ready: %d hourly samples from %s", len(ds.Load), ds.Start.Format(time.RFC3339))
	return nil
}

// Run evaluates one season and month.
func (s *Service) Run(ctx context.Context, req run.Request) (*run.Result, error) {
	if s.runner == nil {
		return nil, ErrNoData
	}
	return s.runner.Run(ctx, req)
}

// Merit returns the merit-order allocation only.
func (s *Service) Merit(req run.Request) (*model.MeritOrderAllocation, error) {
	if s.runner == nil {
		return nil, ErrNoData
	}
	return s.runner.Merit(req)
}

// Rate stores r and reports it to the metrics sinks that record ratings.
func (s *Service) Rate(ctx context.Context, r model.Rating) error {
	if err := s.store.Add(ctx, r); err != nil {
		return err
	}
	if rr, ok := s.sink.(coremetrics.RatingRecorder); ok {
		if err := rr.RecordRating(coremetrics.RatingEvent{Rating: r, Time: s.now()}); err != nil {
			s.log.Warnf("record rating %s: %v", r, err)
		}
	}
	s.log.Infof("rating recorded: %s", r)
	return nil
}

func (s *Service) Ratings(ctx context.Context) ([]model.Rating, error) {
	return s.store.List(ctx)
}

// Handler returns the HTTP API. /metrics is served on the API unless a
// separate Prometheus address is configured.
func (s *Service) Handler() http.Handler {
	opts := api.Options{
		AllowedOrigins:   s.cfg.API.AllowedOrigins,
		SolveTimeout:     time.Duration(s.cfg.API.SolveTimeoutSeconds) * time.Second,
		RelaxOnNumerical: s.cfg.API.RelaxOnNumerical,
		Events:           s.bus,
		Logger:           logger.New("api"),
	}
	if s.cfg.Metrics.PrometheusAddr == "" {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	return api.NewRouter(s, opts)
}

// Serve runs the HTTP API until ctx is cancelled.
func (s *Service) Serve(ctx context.Context) error {
	if addr := s.cfg.Metrics.PrometheusAddr; addr != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, addr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	srv := &http.Server{Addr: s.cfg.API.Addr, Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("api listening on %s", s.cfg.API.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// Close flushes pending events and releases every resource.
func (s *Service) Close() error {
	s.bus.Close()
	<-s.stopped
	s.collector()
	var errs []error
	if err := s.pub.Close(); err != nil {
		errs = append(errs, fmt.Errorf("publisher: %w", err))
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("ratings store: %w", err))
	}
	if c, ok := s.sink.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("metrics sink: %w", err))
		}
	}
	return errors.Join(errs...)
}
