package validation

import (
	"testing"
	"tourbook/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Email string `validate:"required,email"`
	Start string `validate:"required,valid_clock"`
	Seats int    `validate:"min=1"`
}

func TestStruct_Valid(t *testing.T) {
	v := New(logger.Discard())
	assert.NoError(t, Struct(v, sample{Email: "a@b.co", Start: "09:30", Seats: 2}, nil))
}

func TestStruct_TranslatesErrors(t *testing.T) {
	v := New(logger.Discard())
	err := Struct(v, sample{Email: "nope", Start: "25:00"}, map[string]string{
		TagClock: "start must be HH:MM",
	})
	require.Error(t, err)

	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Len(t, verrs, 3)

	details := verrs.Details()
	assert.Equal(t, "start must be HH:MM", details["sample.Start"])
	assert.Equal(t, "Email must be a valid email address", details["sample.Email"])
	assert.Equal(t, "Seats must be at least 1", details["sample.Seats"])
}

func TestValidateClock(t *testing.T) {
	v := New(logger.Discard())
	type clock struct {
		At string `validate:"valid_clock"`
	}
	for value, ok := range map[string]bool{
		"":      true,
		"00:00": true,
		"23:59": true,
		"9:30":  false,
		"24:00": false,
		"12:60": false,
		"noon":  false,
	} {
		err := v.Struct(clock{At: value})
		assert.Equal(t, ok, err == nil, value)
	}
}
