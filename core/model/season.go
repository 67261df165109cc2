package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Season selects a quarter of the year and the diesel cost multiplier that
// applies to it.
type Season int

const (
	Winter Season = iota
	Spring
	Summer
	Fall
)

// Seasons lists every season in calendar order.
var Seasons = []Season{Winter, Spring, Summer, Fall}

func (s Season) String() string {
	switch s {
	case Winter:
		return "Winter"
	case Spring:
		return "Spring"
	case Summer:
		return "Summer"
	case Fall:
		return "Fall"
	default:
		return "unknown"
	}
}

// ParseSeason accepts a season name in any case.
func ParseSeason(s string) (Season, error) {
	for _, season := range Seasons {
		if strings.EqualFold(s, season.String()) {
			return season, nil
		}
	}
	return 0, NewValidationError("season", "unknown season %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (s Season) MarshalText() ([]byte, error) {
	if s < Winter || s > Fall {
		return nil, fmt.Errorf("unknown season %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Season) UnmarshalText(b []byte) error {
	v, err := ParseSeason(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Quarter returns 1 for Winter through 4 for Fall.
func (s Season) Quarter() int { return int(s) + 1 }

// Months returns the three calendar months of the season's quarter.
func (s Season) Months() []time.Month {
	first := time.Month(3*int(s) + 1)
	return []time.Month{first, first + 1, first + 2}
}

// Contains reports whether m belongs to the season's quarter.
func (s Season) Contains(m time.Month) bool {
	for _, sm := range s.Months() {
		if sm == m {
			return true
		}
	}
	return false
}

// DieselFactor is the fixed seasonal multiplier applied to the diesel
// marginal cost.
func (s Season) DieselFactor() float64 {
	switch s {
	case Winter:
		return 0.8
	case Summer:
		return 1.2
	case Fall:
		return 0.9
	default:
		return 1.0
	}
}

// MonthName returns the three-letter English abbreviation used in exports.
func MonthName(m time.Month) string {
	if m < time.January || m > time.December {
		return "unknown"
	}
	return m.String()[:3]
}

// ParseMonth accepts a month number (1-12), a three-letter abbreviation or a
// full English month name.
func ParseMonth(s string) (time.Month, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		if n < 1 || n > 12 {
			return 0, NewValidationError("month", "month %d out of range", n)
		}
		return time.Month(n), nil
	}
	for m := time.January; m <= time.December; m++ {
		if strings.EqualFold(s, m.String()) || strings.EqualFold(s, MonthName(m)) {
			return m, nil
		}
	}
	return 0, NewValidationError("month", "unknown month %q", s)
}
