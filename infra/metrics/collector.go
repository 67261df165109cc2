package metrics

import (
	"context"

	"github.com/WubeDegife/Microgrid-Optimization/core/events"
	coremetrics "github.com/WubeDegife/Microgrid-Optimization/core/metrics"
	"github.com/WubeDegife/Microgrid-Optimization/infra/logger"
	"github.com/WubeDegife/Microgrid-Optimization/internal/eventbus"
)

// StartEventCollector subscribes to the run bus and records the result of
// every finished run. It stops when ctx is cancelled or the bus is closed.
// The returned channel is closed once the collector has stopped.
func StartEventCollector(ctx context.Context, bus *eventbus.TypedBus[events.RunEvent], sink coremetrics.MetricsSink) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || sink == nil {
		close(done)
		return done
	}
	log := logger.New("metrics-collector")
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if !ev.Done() || ev.Result == nil {
					continue
				}
				if err := sink.RecordRun(*ev.Result); err != nil {
					log.Warnf("record run %s: %v", ev.RunID, err)
				}
			}
		}
	}()
	return done
}
