// Package api exposes runs, merit-order estimates and ratings over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/WubeDegife/Microgrid-Optimization/core/logger"
	"github.com/WubeDegife/Microgrid-Optimization/core/model"
	"github.com/WubeDegife/Microgrid-Optimization/core/run"
)

// Service is what the handlers need from the application.
type Service interface {
	Run(ctx context.Context, req run.Request) (*run.Result, error)
	Merit(req run.Request) (*model.MeritOrderAllocation, error)
	Rate(ctx context.Context, r model.Rating) error
	Ratings(ctx context.Context) ([]model.Rating, error)
}

// Options tune the router.
type Options struct {
	AllowedOrigins []string
	// SolveTimeout bounds POST /runs. Zero means no limit.
	SolveTimeout     time.Duration
	RelaxOnNumerical bool
	// Gatherer, when set, is served on /metrics.
	Gatherer prometheus.Gatherer
	// Events, when set, is streamed over a websocket on /api/v1/events.
	Events EventSource
	Logger logger.Logger
}

// NewRouter wires every route onto a new gin engine.
func NewRouter(svc Service, opts Options) *gin.Engine {
	h := &handler{svc: svc, opts: opts, log: logger.OrNop(opts.Logger)}
	r := gin.New()
	r.Use(Recovery(), RequestLogger(h.log), CORS(opts.AllowedOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if opts.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := r.Group("/api/v1")
	{
		v1.GET("/seasons", h.listSeasons)
		v1.POST("/runs", h.createRun)
		v1.GET("/merit", h.merit)
		v1.POST("/ratings", h.createRating)
		v1.GET("/ratings", h.listRatings)
		if opts.Events != nil {
			v1.GET("/events", h.streamEvents)
		}
	}
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: ErrorDetail{Code: "NOT_FOUND", Message: "no such route"}})
	})
	return r
}
