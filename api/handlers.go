package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/WubeDegife/Microgrid-Optimization/core/logger"
	"github.com/WubeDegife/Microgrid-Optimization/core/model"
	"github.com/WubeDegife/Microgrid-Optimization/core/rating"
	"github.com/WubeDegife/Microgrid-Optimization/core/run"
	"github.com/WubeDegife/Microgrid-Optimization/pkg/export"
)

type handler struct {
	svc  Service
	opts Options
	log  logger.Logger
}

// RunRequest selects a season and month. Month accepts a number, an
// abbreviation or a full name.
type RunRequest struct {
	Season string `json:"season" binding:"required"`
	Month  string `json:"month" binding:"required"`
	Relax  *bool  `json:"relax"`
}

// RatingRequest scores the mix recommended for a season and month.
type RatingRequest struct {
	Season string `json:"season" binding:"required"`
	Month  string `json:"month" binding:"required"`
	Rating int    `json:"rating" binding:"required"`
}

type SeasonInfo struct {
	Season       string   `json:"season"`
	Months       []string `json:"months"`
	DieselFactor float64  `json:"diesel_factor"`
}

func parseSelection(season, month string) (model.Season, time.Month, error) {
	s, err := model.ParseSeason(season)
	if err != nil {
		return 0, 0, err
	}
	m, err := model.ParseMonth(month)
	if err != nil {
		return 0, 0, err
	}
	return s, m, nil
}

func wantCSV(c *gin.Context) bool {
	return strings.EqualFold(c.Query("format"), "csv")
}

func (h *handler) listSeasons(c *gin.Context) {
	out := make([]SeasonInfo, 0, len(model.Seasons))
	for _, s := range model.Seasons {
		info := SeasonInfo{Season: s.String(), DieselFactor: s.DieselFactor()}
		for _, m := range s.Months() {
			info.Months = append(info.Months, model.MonthName(m))
		}
		out = append(out, info)
	}
	c.JSON(http.StatusOK, out)
}

// createRun handles POST /api/v1/runs. With ?format=csv the hourly dispatch
// is returned instead of JSON; ?assets=recommended keeps only the assets the
// merit order used.
func (h *handler) createRun(c *gin.Context) {
	var req RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	s, m, err := parseSelection(req.Season, req.Month)
	if err != nil {
		writeError(c, err)
		return
	}
	relax := h.opts.RelaxOnNumerical
	if req.Relax != nil {
		relax = *req.Relax
	}

	ctx := c.Request.Context()
	if h.opts.SolveTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opts.SolveTimeout)
		defer cancel()
	}
	res, err := h.svc.Run(ctx, run.Request{Season: s, Month: m, RelaxOnNumerical: relax})
	if err != nil {
		writeError(c, err)
		return
	}
	if !wantCSV(c) {
		c.JSON(http.StatusOK, res)
		return
	}
	var assets []model.Asset
	if c.Query("assets") == "recommended" {
		assets = res.Recommended
		if assets == nil {
			assets = []model.Asset{}
		}
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=dispatch_%s_%s.csv",
		strings.ToLower(s.String()), strings.ToLower(model.MonthName(m))))
	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/csv")
	if err := export.WriteDispatchCSV(c.Writer, res.Dispatch, assets); err != nil {
		h.log.Errorf("write dispatch csv: %v", err)
	}
}

// merit handles GET /api/v1/merit?season=&month=.
func (h *handler) merit(c *gin.Context) {
	s, m, err := parseSelection(c.Query("season"), c.Query("month"))
	if err != nil {
		writeError(c, err)
		return
	}
	alloc, err := h.svc.Merit(run.Request{Season: s, Month: m})
	if err != nil {
		writeError(c, err)
		return
	}
	if !wantCSV(c) {
		c.JSON(http.StatusOK, alloc)
		return
	}
	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/csv")
	if err := export.WriteAllocationCSV(c.Writer, alloc); err != nil {
		h.log.Errorf("write allocation csv: %v", err)
	}
}

func (h *handler) createRating(c *gin.Context) {
	var req RatingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	s, m, err := parseSelection(req.Season, req.Month)
	if err != nil {
		writeError(c, err)
		return
	}
	r := model.Rating{Season: s, Month: m, Rating: req.Rating}
	if err := h.svc.Rate(c.Request.Context(), r); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

// listRatings handles GET /api/v1/ratings. ?format=csv downloads the
// Season,Month,Rating export.
func (h *handler) listRatings(c *gin.Context) {
	ratings, err := h.svc.Ratings(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if !wantCSV(c) {
		if ratings == nil {
			ratings = []model.Rating{}
		}
		c.JSON(http.StatusOK, ratings)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=ratings.csv")
	c.Header("Content-Type", "text/csv")
	c.Status(http.StatusOK)
	if err := rating.WriteCSV(c.Writer, ratings); err != nil {
		h.log.Errorf("write ratings csv: %v", err)
	}
}
