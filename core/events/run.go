package events

import (
	"time"

	"github.com/WubeDegife/Microgrid-Optimization/core/metrics"
	"github.com/WubeDegife/Microgrid-Optimization/core/model"
)

// Stage is the point of the run lifecycle an event reports.
type Stage string

const (
	StageStarted   Stage = "started"
	StageCompleted Stage = "completed"
	StageFailed    Stage = "failed"
)

// RunEvent is published by the orchestrator for each lifecycle stage.
type RunEvent struct {
	RunID  string
	Stage  Stage
	Season model.Season
	Month  time.Month
	// Summary is the human readable mix sentence of a completed run.
	Summary string
	// Result is nil for StageStarted.
	Result *metrics.RunResult
	Err    error
	Time   time.Time
}

// Done reports whether the event ends a run.
func (e RunEvent) Done() bool { return e.Stage == StageCompleted || e.Stage == StageFailed }
