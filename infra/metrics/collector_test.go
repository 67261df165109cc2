package metrics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WubeDegife/Microgrid-Optimization/core/events"
	coremetrics "github.com/WubeDegife/Microgrid-Optimization/core/metrics"
	"github.com/WubeDegife/Microgrid-Optimization/internal/eventbus"
)

type captureSink struct {
	mu   sync.Mutex
	runs []coremetrics.RunResult
}

func (c *captureSink) RecordRun(r coremetrics.RunResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runs = append(c.runs, r)
	return nil
}

func TestEventCollectorRecordsFinishedRuns(t *testing.T) {
	bus := eventbus.NewTyped[events.RunEvent]()
	sink := &captureSink{}
	done := StartEventCollector(context.Background(), bus, sink)

	run := julyRun()
	bus.Publish(events.RunEvent{RunID: "r1", Stage: events.StageStarted})
	bus.Publish(events.RunEvent{RunID: "r1", Stage: events.StageCompleted, Result: &run})
	bus.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("collector did not stop after bus close")
	}
	require.Len(t, sink.runs, 1)
	assert.Equal(t, "r1", sink.runs[0].RunID)
}

func TestEventCollectorStopsOnCancel(t *testing.T) {
	bus := eventbus.NewTyped[events.RunEvent]()
	ctx, cancel := context.WithCancel(context.Background())
	done := StartEventCollector(ctx, bus, &captureSink{})
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("collector did not stop after cancel")
	}
}

func TestEventCollectorNilBus(t *testing.T) {
	done := StartEventCollector(context.Background(), nil, &captureSink{})
	_, ok := <-done
	assert.False(t, ok)
}
