package metrics

import (
	"github.com/WubeDegife/Microgrid-Optimization/core/factory"
	coremetrics "github.com/WubeDegife/Microgrid-Optimization/core/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// init registers built-in metrics sinks.
func init() {
	_ = coremetrics.RegisterMetricsSink("nop", func(map[string]any) (coremetrics.MetricsSink, error) {
		return coremetrics.NopSink{}, nil
	})

	_ = coremetrics.RegisterMetricsSink("prometheus", func(map[string]any) (coremetrics.MetricsSink, error) {
		return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
	})

	_ = coremetrics.RegisterMetricsSink("influx", func(conf map[string]any) (coremetrics.MetricsSink, error) {
		var c InfluxConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewInfluxSinkWithFallback(c), nil
	})

	_ = coremetrics.RegisterMetricsSink("emissions", func(conf map[string]any) (coremetrics.MetricsSink, error) {
		var c EmissionFactors
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewEmissionsSink(c, prometheus.DefaultRegisterer)
	})
}
