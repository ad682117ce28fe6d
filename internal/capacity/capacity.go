// Package capacity derives a session's occupancy from its booking summaries.
package capacity

import (
	"errors"
	"fmt"
	"tourbook/pkg/model"
)

var (
	ErrSessionFull     = errors.New("session is full")
	ErrVariantNotFound = errors.New("ticket variant not found")
)

// Units converts ticket lines to capacity units: people for PER_PERSON, tickets for
// PER_TICKET. Every line must name a variant of tour in either mode.
func Units(mode model.CapacityMode, tour *model.Tour, lines []model.TicketLine) (int, error) {
	total := 0
	for _, line := range lines {
		v, ok := tour.Variant(line.VariantID)
		if !ok {
			return 0, fmt.Errorf("%w: %s", ErrVariantNotFound, line.VariantID)
		}
		if mode == model.PerTicket {
			total += line.Quantity
			continue
		}
		total += max(1, v.PeopleCount) * line.Quantity
	}
	return total, nil
}

// Calculate recomputes current and remaining from every booking summary on the session.
// Lines whose variant no longer exists on the tour count one unit per ticket.
func Calculate(session *model.Session, tour *model.Tour) model.Capacity {
	current := 0
	for _, b := range session.Bookings {
		for _, line := range b.Tickets {
			units, err := Units(session.Capacity.Mode, tour, []model.TicketLine{line})
			if err != nil {
				units = line.Quantity
			}
			current += units
		}
	}

	return model.Capacity{
		Max:       session.Capacity.Max,
		Current:   current,
		Remaining: max(0, session.Capacity.Max-current),
		Mode:      session.Capacity.Mode,
	}
}

// Validate fails with ErrSessionFull when the requested lines do not fit.
func Validate(session *model.Session, tour *model.Tour, requested []model.TicketLine) error {
	need, err := Units(session.Capacity.Mode, tour, requested)
	if err != nil {
		return err
	}
	current := Calculate(session, tour).Current
	if current+need > session.Capacity.Max {
		return fmt.Errorf("%w: %d of %d taken, %d requested", ErrSessionFull, current, session.Capacity.Max, need)
	}
	return nil
}
