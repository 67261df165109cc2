package model

import (
	"fmt"
	"time"
)

// Rating range accepted for a recommended mix.
const (
	MinRating = 1
	MaxRating = 5
)

// Rating is a user's score of the mix recommended for one season and month.
type Rating struct {
	Season Season     `json:"season"`
	Month  time.Month `json:"month"`
	Rating int        `json:"rating"`
}

// Validate returns a ValidationError when the rating is out of range or the
// month does not belong to the season.
func (r Rating) Validate() error {
	if r.Rating < MinRating || r.Rating > MaxRating {
		return NewValidationError("rating", "%d is outside [%d, %d]", r.Rating, MinRating, MaxRating)
	}
	if r.Month < time.January || r.Month > time.December {
		return NewValidationError("month", "%d is not a month", int(r.Month))
	}
	if !r.Season.Contains(r.Month) {
		return NewValidationError("month", "%s is not in %s", r.Month, r.Season)
	}
	return nil
}

func (r Rating) String() string {
	return fmt.Sprintf("%s %s: %d", r.Season, MonthName(r.Month), r.Rating)
}
