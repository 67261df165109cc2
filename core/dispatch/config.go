package dispatch

import (
	"math"

	"github.com/WubeDegife/Microgrid-Optimization/core/model"
)

// Default solver settings.
const (
	DefaultTolerance        = 1e-7
	DefaultBalanceTolerance = 1e-6
	DefaultMaxBlockRows     = 600
	DefaultRelaxFactor      = 100
)

// Method selects the solver.
type Method string

const (
	// MethodAuto uses the chain solver when a battery couples the hours and
	// the simplex otherwise.
	MethodAuto Method = "auto"
	// MethodSimplex solves the LP with the dense simplex, one block at a time.
	MethodSimplex Method = "simplex"
	// MethodChain solves the LP by dynamic programming over the state of
	// charge.
	MethodChain Method = "chain"
)

func (m Method) Valid() bool {
	switch m {
	case MethodAuto, MethodSimplex, MethodChain:
		return true
	}
	return false
}

// Config holds the optimizer settings. The zero value is not usable; call
// SetDefaults first or start from DefaultConfig.
type Config struct {
	// Boundary selects how SoC(-1) is defined.
	Boundary model.BoundaryPolicy `json:"boundary"`
	// InitialSoCKWh is SoC(-1) under the fixed policy.
	InitialSoCKWh float64 `json:"initial_soc_kwh"`
	// Tolerance is passed to the simplex for reduced-cost tests.
	Tolerance float64 `json:"tolerance"`
	// BalanceTolerance is relative to peak load and bounds every post-solve
	// invariant check.
	BalanceTolerance float64 `json:"balance_tolerance"`
	// MaxBlockRows caps the standard-form row count of one simplex block.
	MaxBlockRows int `json:"max_block_rows"`
	// Method selects the solver. The default is MethodAuto.
	Method Method `json:"method"`
	// RelaxFactor multiplies both tolerances on an explicit relaxed re-solve.
	RelaxFactor float64 `json:"relax_factor"`
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	var c Config
	c.SetDefaults()
	return c
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Boundary == "" {
		c.Boundary = model.BoundaryCyclic
	}
	if c.Method == "" {
		c.Method = MethodAuto
	}
	if c.Tolerance == 0 {
		c.Tolerance = DefaultTolerance
	}
	if c.BalanceTolerance == 0 {
		c.BalanceTolerance = DefaultBalanceTolerance
	}
	if c.MaxBlockRows == 0 {
		c.MaxBlockRows = DefaultMaxBlockRows
	}
	if c.RelaxFactor == 0 {
		c.RelaxFactor = DefaultRelaxFactor
	}
}

// Validate checks the settings. Errors are ConfigurationErrors.
func (c Config) Validate() error {
	if !c.Boundary.Valid() {
		return model.NewConfigurationError("solver.boundary", "unknown policy %q", c.Boundary)
	}
	if c.InitialSoCKWh < 0 || math.IsNaN(c.InitialSoCKWh) {
		return model.NewConfigurationError("solver.initial_soc_kwh", "must be >= 0")
	}
	if c.Tolerance <= 0 || c.Tolerance >= 1 {
		return model.NewConfigurationError("solver.tolerance", "must be in (0,1), got %g", c.Tolerance)
	}
	if c.BalanceTolerance <= 0 || c.BalanceTolerance >= 1 {
		return model.NewConfigurationError("solver.balance_tolerance", "must be in (0,1), got %g", c.BalanceTolerance)
	}
	if c.MaxBlockRows < 1 {
		return model.NewConfigurationError("solver.max_block_rows", "must be positive")
	}
	if !c.Method.Valid() {
		return model.NewConfigurationError("solver.method", "unknown method %q", c.Method)
	}
	if c.RelaxFactor < 1 {
		return model.NewConfigurationError("solver.relax_factor", "must be >= 1")
	}
	return nil
}

// Relaxed returns a copy with both tolerances scaled by RelaxFactor.
func (c Config) Relaxed() Config {
	c.Tolerance *= c.RelaxFactor
	c.BalanceTolerance *= c.RelaxFactor
	return c
}
