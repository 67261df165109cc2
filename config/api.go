package config

import "github.com/WubeDegife/Microgrid-Optimization/core/model"

// APIConfig configures the HTTP surface.
type APIConfig struct {
	Addr           string   `json:"addr"`
	AllowedOrigins []string `json:"allowed_origins"`
	// SolveTimeoutSeconds bounds one optimization request.
	SolveTimeoutSeconds int `json:"solve_timeout_seconds"`
	// RelaxOnNumerical re-solves once with relaxed tolerances after a
	// numerical failure.
	RelaxOnNumerical bool `json:"relax_on_numerical"`
}

func (c *APIConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.SolveTimeoutSeconds == 0 {
		c.SolveTimeoutSeconds = 120
	}
}

func (c APIConfig) Validate() error {
	if c.SolveTimeoutSeconds < 0 {
		return model.NewConfigurationError("api.solve_timeout_seconds", "must be >= 0")
	}
	return nil
}
