package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"tourbook/internal/capacity"
	sessionerrors "tourbook/internal/sessions/errors"
	tourerrors "tourbook/internal/tours/errors"
	apperrors "tourbook/pkg/errors"
	"tourbook/pkg/events"
	"tourbook/pkg/model"
)

const sessionWriteAttempts = 3

// sessionPlan is a session read at the start of a booking attempt. Its version is the
// token the later capacity write is conditioned on.
type sessionPlan struct {
	session *model.Session
	version int64
	lines   []model.TicketLine
}

func (s *bookingService) loadTour(ctx context.Context, id string) (*model.Tour, error) {
	tour, err := s.tours.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, tourerrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithCode(apperrors.CodeTourNotFound, "Tour", id)
		}
		return nil, apperrors.Internal("Failed to retrieve tour", err)
	}
	return tour, nil
}

func (s *bookingService) loadSession(ctx context.Context, id string) (*model.Session, error) {
	session, err := s.sessions.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sessionerrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithCode(apperrors.CodeSessionNotFound, "Session", id)
		}
		return nil, apperrors.Internal("Failed to retrieve session", err)
	}
	return session, nil
}

// planSessions loads every requested session, captures its version and checks the
// requested tickets fit.
func (s *bookingService) planSessions(ctx context.Context, tour *model.Tour, requests []SessionRequest) ([]*sessionPlan, error) {
	plans := make([]*sessionPlan, 0, len(requests))
	for _, sr := range requests {
		session, err := s.loadSession(ctx, sr.SessionID)
		if err != nil {
			return nil, err
		}
		if session.TourID != tour.ID {
			return nil, apperrors.InvalidInput(fmt.Sprintf("Session %s does not belong to tour %s", session.ID, tour.ID))
		}

		lines := sessionLines(sr)
		for _, line := range lines {
			if _, ok := tour.Variant(line.VariantID); !ok {
				return nil, apperrors.NotFoundWithCode(apperrors.CodeVariantNotFound, "Ticket variant", line.VariantID)
			}
		}
		if err := capacity.Validate(session, tour, lines); err != nil {
			return nil, capacityError(session.ID, err)
		}
		plans = append(plans, &sessionPlan{session: session, version: session.Version, lines: lines})
	}
	return plans, nil
}

// attachSessions appends the booking summary to each planned session, conditioned on
// the version captured while planning. It stops at the first failure and returns the
// sessions already written.
func (s *bookingService) attachSessions(ctx context.Context, tour *model.Tour, booking *model.Booking, plans []*sessionPlan) ([]*sessionPlan, error) {
	written := make([]*sessionPlan, 0, len(plans))
	for _, p := range plans {
		bookings := append(slices.Clone(p.session.Bookings), model.SessionBooking{
			BookingID: booking.ID,
			Tickets:   p.lines,
		})
		if _, err := s.writeCapacity(ctx, tour, p.session, p.version, bookings); err != nil {
			return written, err
		}
		written = append(written, p)
	}
	return written, nil
}

func (s *bookingService) writeCapacity(ctx context.Context, tour *model.Tour, session *model.Session, version int64, bookings []model.SessionBooking) (int64, error) {
	next := *session
	next.Bookings = bookings
	return s.sessions.UpdateCapacity(ctx, session.ID, version, capacity.Calculate(&next, tour), bookings)
}

// rewriteSession re-reads the session and applies mutate until a conditional write
// lands. When every attempt loses the race a resync event is published instead.
func (s *bookingService) rewriteSession(
	ctx context.Context,
	tour *model.Tour,
	sessionID, bookingID, reason string,
	mutate func(*model.Session) []model.SessionBooking,
) error {
	var err error
	for range sessionWriteAttempts {
		var session *model.Session
		session, err = s.sessions.FindByID(ctx, sessionID)
		if err != nil {
			break
		}
		if _, err = s.writeCapacity(ctx, tour, session, session.Version, mutate(session)); err == nil {
			return nil
		}
		if !errors.Is(err, sessionerrors.ErrVersionConflict) {
			break
		}
	}

	s.cfg.Log.Warn("Session capacity write failed, requesting resync",
		"session_id", sessionID,
		"booking_id", bookingID,
		"reason", reason,
		"error", err,
	)
	s.requestResync(ctx, sessionID, bookingID, reason)
	return err
}

func (s *bookingService) detachSession(ctx context.Context, tour *model.Tour, sessionID, bookingID, reason string) {
	_ = s.rewriteSession(ctx, tour, sessionID, bookingID, reason, func(session *model.Session) []model.SessionBooking {
		return session.WithoutBooking(bookingID)
	})
}

func (s *bookingService) requestResync(ctx context.Context, sessionID, bookingID, reason string) {
	if s.resync == nil {
		return
	}
	err := s.resync.RequestResync(ctx, events.CapacityResync{
		SessionID: sessionID,
		BookingID: bookingID,
		Reason:    reason,
	})
	if err != nil {
		s.cfg.Log.Error("Failed to publish capacity resync", "session_id", sessionID, "error", err)
	}
}

func capacityError(sessionID string, err error) error {
	switch {
	case errors.Is(err, capacity.ErrSessionFull):
		return apperrors.Rejected(apperrors.CodeSessionFull, fmt.Sprintf("Session %s does not have enough capacity", sessionID))
	case errors.Is(err, capacity.ErrVariantNotFound):
		return apperrors.NotFound("Ticket variant")
	default:
		return apperrors.Internal("Failed to validate capacity", err)
	}
}
