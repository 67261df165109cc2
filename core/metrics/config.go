package metrics

import (
	"fmt"

	"github.com/WubeDegife/Microgrid-Optimization/core/factory"
	"github.com/WubeDegife/Microgrid-Optimization/core/model"
)

// Config defines settings for metrics sinks.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
	// PrometheusAddr is where /metrics is served. Empty disables the server.
	PrometheusAddr string `json:"prometheus_addr"`
}

// Validate checks that every sink names a type.
func (c Config) Validate() error {
	for i, s := range c.Sinks {
		if s.Type == "" {
			return model.NewConfigurationError(fmt.Sprintf("metrics.sinks[%d].type", i), "is required")
		}
	}
	return nil
}
