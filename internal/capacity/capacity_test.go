package capacity

import (
	"testing"
	"tourbook/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func familyTour() *model.Tour {
	return &model.Tour{
		ID: "tour-1",
		Variants: []model.TicketVariant{
			{ID: "adult", PeopleCount: 1},
			{ID: "family", PeopleCount: 4},
		},
	}
}

func session(mode model.CapacityMode, limit int, bookings ...model.SessionBooking) *model.Session {
	return &model.Session{
		ID:       "s-1",
		Capacity: model.Capacity{Max: limit, Mode: mode},
		Bookings: bookings,
	}
}

func TestCalculate_PerPerson(t *testing.T) {
	s := session(model.PerPerson, 10,
		model.SessionBooking{BookingID: "b1", Tickets: []model.TicketLine{{VariantID: "family", Quantity: 1}}},
		model.SessionBooking{BookingID: "b2", Tickets: []model.TicketLine{{VariantID: "adult", Quantity: 3}}},
	)

	c := Calculate(s, familyTour())
	assert.Equal(t, 7, c.Current)
	assert.Equal(t, 3, c.Remaining)
	assert.Equal(t, model.PerPerson, c.Mode)
}

func TestCalculate_PerTicket(t *testing.T) {
	s := session(model.PerTicket, 10,
		model.SessionBooking{BookingID: "b1", Tickets: []model.TicketLine{{VariantID: "family", Quantity: 2}}},
	)

	c := Calculate(s, familyTour())
	assert.Equal(t, 2, c.Current)
	assert.Equal(t, 8, c.Remaining)
}

func TestCalculate_RemainingNeverNegative(t *testing.T) {
	s := session(model.PerPerson, 3,
		model.SessionBooking{BookingID: "b1", Tickets: []model.TicketLine{{VariantID: "family", Quantity: 1}}},
	)

	c := Calculate(s, familyTour())
	assert.Equal(t, 4, c.Current)
	assert.Equal(t, 0, c.Remaining)
}

// A family ticket (4 people) against max 10 with 7 already booked does not fit; one
// adult more does, and then the session is full.
func TestValidate_PerPersonScenario(t *testing.T) {
	tour := familyTour()
	s := session(model.PerPerson, 10,
		model.SessionBooking{BookingID: "b1", Tickets: []model.TicketLine{{VariantID: "family", Quantity: 1}}},
		model.SessionBooking{BookingID: "b2", Tickets: []model.TicketLine{{VariantID: "adult", Quantity: 3}}},
	)

	err := Validate(s, tour, []model.TicketLine{{VariantID: "family", Quantity: 1}})
	assert.ErrorIs(t, err, ErrSessionFull)

	require.NoError(t, Validate(s, tour, []model.TicketLine{{VariantID: "adult", Quantity: 3}}))

	s.Bookings = append(s.Bookings, model.SessionBooking{BookingID: "b3", Tickets: []model.TicketLine{{VariantID: "adult", Quantity: 3}}})
	assert.Equal(t, 0, Calculate(s, tour).Remaining)
	assert.ErrorIs(t, Validate(s, tour, []model.TicketLine{{VariantID: "adult", Quantity: 1}}), ErrSessionFull)
}

func TestValidate_UnknownVariant(t *testing.T) {
	s := session(model.PerPerson, 10)
	err := Validate(s, familyTour(), []model.TicketLine{{VariantID: "ghost", Quantity: 1}})
	assert.ErrorIs(t, err, ErrVariantNotFound)
}

func TestUnits_UnknownVariantInEitherMode(t *testing.T) {
	lines := []model.TicketLine{{VariantID: "adult", Quantity: 1}, {VariantID: "ghost", Quantity: 2}}
	for _, mode := range []model.CapacityMode{model.PerPerson, model.PerTicket} {
		_, err := Units(mode, familyTour(), lines)
		assert.ErrorIs(t, err, ErrVariantNotFound, mode)
	}

	s := session(model.PerTicket, 10)
	assert.ErrorIs(t, Validate(s, familyTour(), lines), ErrVariantNotFound)
}

func TestCalculate_RemovedVariantCountsPerTicket(t *testing.T) {
	s := session(model.PerPerson, 10,
		model.SessionBooking{BookingID: "b1", Tickets: []model.TicketLine{{VariantID: "retired", Quantity: 2}}},
		model.SessionBooking{BookingID: "b2", Tickets: []model.TicketLine{{VariantID: "family", Quantity: 1}}},
	)
	assert.Equal(t, 6, Calculate(s, familyTour()).Current)
}

func TestUnits(t *testing.T) {
	tour := familyTour()
	lines := []model.TicketLine{{VariantID: "family", Quantity: 2}, {VariantID: "adult", Quantity: 1}}

	perPerson, err := Units(model.PerPerson, tour, lines)
	require.NoError(t, err)
	assert.Equal(t, 9, perPerson)

	perTicket, err := Units(model.PerTicket, tour, lines)
	require.NoError(t, err)
	assert.Equal(t, 3, perTicket)
}
