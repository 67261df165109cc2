package model

import "time"

// Step is the fixed timestep duration.
const Step = time.Hour

// TimeGrid is an ordered sequence of hourly timesteps 0..Steps-1. Start only
// labels exported rows; the optimizer never reads it.
type TimeGrid struct {
	Start time.Time `json:"start"`
	Steps int       `json:"steps"`
}

// NewTimeGrid returns a grid of n hourly steps starting at start.
func NewTimeGrid(start time.Time, n int) TimeGrid {
	return TimeGrid{Start: start, Steps: n}
}

// Len returns the number of timesteps.
func (g TimeGrid) Len() int { return g.Steps }

// At returns the timestamp of step i.
func (g TimeGrid) At(i int) time.Time {
	return g.Start.Add(time.Duration(i) * Step)
}

// Validate checks that the grid has at least one step.
func (g TimeGrid) Validate() error {
	if g.Steps < 1 {
		return NewValidationError("time_grid", "needs at least one step, got %d", g.Steps)
	}
	return nil
}
