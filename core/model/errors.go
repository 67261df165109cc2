package model

import (
	"errors"
	"fmt"
)

// Sentinel targets for errors.Is. Every typed error below matches exactly one
// of them.
var (
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrInfeasible    = errors.New("infeasible dispatch")
	ErrSolver        = errors.New("solver error")
)

// ValidationError reports malformed or mis-sized input series. The run is
// aborted before the optimizer is invoked.
type ValidationError struct {
	Field  string
	Reason string
}

// NewValidationError builds a ValidationError with a formatted reason.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ConfigurationError reports an invalid scalar parameter such as a negative
// capacity or cost. It is raised before any LP is built.
type ConfigurationError struct {
	Field  string
	Reason string
}

// NewConfigurationError builds a ConfigurationError with a formatted reason.
func NewConfigurationError(field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("bad configuration %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// InfeasibleError reports that no dispatch satisfies the balance and bound
// constraints. Hour is the first timestep the failure can be attributed to,
// or -1 when the infeasibility spans coupled timesteps.
type InfeasibleError struct {
	Hour   int
	Reason string
}

func (e *InfeasibleError) Error() string {
	if e.Hour < 0 {
		return fmt.Sprintf("infeasible dispatch: %s", e.Reason)
	}
	return fmt.Sprintf("infeasible dispatch at hour %d: %s", e.Hour, e.Reason)
}

func (e *InfeasibleError) Is(target error) bool { return target == ErrInfeasible }

// SolverKind classifies solver failures.
type SolverKind int

const (
	// SolverNumerical covers non-convergence, singular bases and solutions
	// that fail the post-solve invariant check.
	SolverNumerical SolverKind = iota
	// SolverTimeout is returned when the caller's context expires mid-solve.
	SolverTimeout
	// SolverCapacity is returned when a block exceeds the configured size limit.
	SolverCapacity
)

func (k SolverKind) String() string {
	switch k {
	case SolverNumerical:
		return "numerical"
	case SolverTimeout:
		return "timeout"
	case SolverCapacity:
		return "capacity"
	default:
		return "unknown"
	}
}

// SolverError is fatal to the current run only. No partial solution is ever
// returned alongside it.
type SolverError struct {
	Kind       SolverKind
	Diagnostic string
	Err        error
}

func (e *SolverError) Error() string {
	msg := fmt.Sprintf("solver %s failure", e.Kind)
	if e.Diagnostic != "" {
		msg += ": " + e.Diagnostic
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SolverError) Is(target error) bool { return target == ErrSolver }

func (e *SolverError) Unwrap() error { return e.Err }

// IsTimeout reports whether err is a SolverError of kind SolverTimeout.
func IsTimeout(err error) bool {
	var se *SolverError
	return errors.As(err, &se) && se.Kind == SolverTimeout
}
