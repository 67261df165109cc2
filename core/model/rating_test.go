package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRatingValidate(t *testing.T) {
	assert.NoError(t, Rating{Season: Summer, Month: time.July, Rating: 5}.Validate())
	assert.ErrorIs(t, Rating{Season: Summer, Month: time.July, Rating: 0}.Validate(), ErrValidation)
	assert.ErrorIs(t, Rating{Season: Summer, Month: time.July, Rating: 6}.Validate(), ErrValidation)
	assert.ErrorIs(t, Rating{Season: Winter, Month: time.July, Rating: 3}.Validate(), ErrValidation)
	assert.ErrorIs(t, Rating{Season: Winter, Month: 13, Rating: 3}.Validate(), ErrValidation)
	assert.Equal(t, "Fall Nov: 4", Rating{Season: Fall, Month: time.November, Rating: 4}.String())
}
