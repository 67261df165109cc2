// Package ingest reads the hourly load, solar and wind series, checks them
// against the expected sample count and slices them by month.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/WubeDegife/Microgrid-Optimization/core/model"
)

// ParseCSV reads one numeric column (0-based) from r. A first row that does
// not parse as a number is treated as a header. Empty lines are skipped.
// NaN, infinite and negative values are rejected.
func ParseCSV(name string, r io.Reader, column int) ([]float64, error) {
	if column < 0 {
		return nil, model.NewValidationError(name, "column %d is negative", column)
	}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var out []float64
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, model.NewValidationError(name, "line %d: %v", line, err)
		}
		if len(rec) == 0 || (len(rec) == 1 && strings.TrimSpace(rec[0]) == "") {
			continue
		}
		if column >= len(rec) {
			return nil, model.NewValidationError(name, "line %d has %d columns, want column %d", line, len(rec), column)
		}
		field := strings.TrimSpace(rec[column])
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			if len(out) == 0 && line == 1 {
				continue
			}
			return nil, model.NewValidationError(name, "line %d: %q is not a number", line, field)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, model.NewValidationError(name, "line %d: value %q is not finite", line, field)
		}
		if v < 0 {
			return nil, model.NewValidationError(name, "line %d: value %g is negative", line, v)
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, model.NewValidationError(name, "no samples")
	}
	return out, nil
}

// Profile tells how a renewable series is expressed.
type Profile string

const (
	// ProfileOutputKW holds generated power in kW for the configured capacity.
	ProfileOutputKW Profile = "output_kw"
	// ProfileFraction holds availability fractions in [0,1].
	ProfileFraction Profile = "fraction"
)

// Valid reports whether p is a known profile.
func (p Profile) Valid() bool { return p == ProfileOutputKW || p == ProfileFraction }

// Availability converts a renewable series into fractions of capacity.
// Output profiles are divided by capacity and clamped to [0,1]; the number of
// clamped samples is returned so callers can report it. A zero capacity gives
// an all-zero profile.
func Availability(name string, series []float64, capacityKW float64, p Profile) ([]float64, int, error) {
	out := make([]float64, len(series))
	switch p {
	case ProfileFraction:
		for t, v := range series {
			if v > 1 {
				return nil, 0, model.NewValidationError(name, "sample %d is %g, fractions must be in [0,1]", t, v)
			}
			out[t] = v
		}
		return out, 0, nil
	case ProfileOutputKW:
		if capacityKW <= 0 {
			return out, 0, nil
		}
		clamped := 0
		for t, v := range series {
			f := v / capacityKW
			if f > 1 {
				f = 1
				clamped++
			}
			out[t] = f
		}
		return out, clamped, nil
	default:
		return nil, 0, model.NewValidationError(name, "unknown profile %q", p)
	}
}

func sourceName(kind, loc string) string { return fmt.Sprintf("%s(%s)", kind, loc) }
