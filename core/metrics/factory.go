package metrics

import (
	"fmt"
	"strings"

	"github.com/WubeDegife/Microgrid-Optimization/core/factory"
	"github.com/WubeDegife/Microgrid-Optimization/core/model"
)

var sinkRegistry = factory.NewRegistry[MetricsSink]()

// RegisterMetricsSink makes a run/rating sink available under name.
func RegisterMetricsSink(name string, f factory.Factory[MetricsSink]) error {
	return sinkRegistry.Register(name, f)
}

// SinkTypes lists the registered sink names.
func SinkTypes() []string { return sinkRegistry.Types() }

// NewMetricsSink builds the sink chain for a run. No sinks yields NopSink.
// An unknown type or bad settings is a ConfigurationError keyed by the
// offending entry.
func NewMetricsSink(cfgs []factory.ModuleConfig) (MetricsSink, error) {
	sinks := make([]MetricsSink, 0, len(cfgs))
	for i, c := range cfgs {
		s, err := newSink(i, c)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	}
	switch len(sinks) {
	case 0:
		return NopSink{}, nil
	case 1:
		return sinks[0], nil
	}
	return NewMultiSink(sinks...), nil
}

func newSink(i int, c factory.ModuleConfig) (MetricsSink, error) {
	field := fmt.Sprintf("metrics.sinks[%d]", i)
	known := SinkTypes()
	if !contains(known, c.Type) {
		return nil, model.NewConfigurationError(field+".type", "unknown sink %q (known: %s)", c.Type, strings.Join(known, ", "))
	}
	s, err := sinkRegistry.Create(c)
	if err != nil {
		return nil, model.NewConfigurationError(field+".conf", "%s sink: %v", c.Type, err)
	}
	return s, nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
