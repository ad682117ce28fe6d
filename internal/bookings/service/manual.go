package service

import (
	"context"
	"time"
	"tourbook/internal/inventory"
	apperrors "tourbook/pkg/errors"
	"tourbook/pkg/model"
	"tourbook/pkg/payment"
	"tourbook/pkg/sanitizer"

	"github.com/google/uuid"
)

// CreateManual books on behalf of a customer without touching the payment gateway.
// Capacity write conflicts are retried against fresh reads and never fail the booking.
func (s *bookingService) CreateManual(ctx context.Context, req *ManualRequest) (*model.Booking, error) {
	req.Actor = sanitizer.TrimAndNormalize(req.Actor)
	if err := s.validateCreate(&req.CreateRequest); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, apperrors.Validation("Booking validation failed", map[string]any{"error": err.Error()})
	}

	tour, err := s.loadTour(ctx, req.TourID)
	if err != nil {
		return nil, err
	}
	plans, err := s.planSessions(ctx, tour, req.Sessions)
	if err != nil {
		return nil, err
	}

	user, created, err := s.identity.EnsureUser(ctx, req.CustomerEmail, req.CustomerName)
	if err != nil {
		return nil, err
	}
	if created {
		s.cfg.Log.Info("Created user for manual booking", "user_id", user.ID, "actor", req.Actor)
	}

	bookingID := uuid.NewString()
	ref := inventory.Reference{Source: sourceBooking, ID: bookingID, Actor: req.Actor}
	commits, err := s.commitLines(ctx, tour, ref, requestedLines(req.Sessions))
	if err != nil {
		return nil, err
	}

	amount := bookingAmount(tour, req.Sessions)
	now := s.now().UTC().Truncate(time.Millisecond)
	booking := &model.Booking{
		ID:          bookingID,
		Customer:    model.Customer{Email: req.CustomerEmail, Name: req.CustomerName, UserID: user.ID},
		VendorID:    tour.VendorID,
		TourID:      tour.ID,
		Assignments: assignments(tour, req.Sessions),
		Payment: model.Payment{
			Amount:      amount,
			PlatformFee: payment.PlatformFee(amount, s.cfg.PlatformFeePercent),
			Currency:    tour.Currency,
			Prepaid:     req.Prepaid,
		},
		OrderID:   uuid.NewString(),
		Backorder: commits.backorder,
		CreatedAt: now,
	}

	orderStatus := model.OrderPending
	if req.Prepaid {
		booking.AppendStatus(model.Completed, "Manual booking, prepaid", req.Actor, now)
		orderStatus = model.OrderPaid
	} else {
		booking.AppendStatus(model.AwaitingPayment, "Manual booking", req.Actor, now)
	}

	if err := s.persist(ctx, booking, newOrder(booking, orderStatus)); err != nil {
		s.rollback(ctx, commits)
		return nil, err
	}
	if req.Prepaid {
		s.applyEach(ctx, tour, commits.lines, inventory.Deduct, ref)
	}

	for _, p := range plans {
		line := model.SessionBooking{BookingID: booking.ID, Tickets: p.lines}
		_ = s.rewriteSession(ctx, tour, p.session.ID, booking.ID, "manual booking", func(session *model.Session) []model.SessionBooking {
			if session.HasBooking(booking.ID) {
				return session.Bookings
			}
			return append(session.WithoutBooking(booking.ID), line)
		})
	}

	s.cfg.Log.Info("Manual booking created",
		"booking_id", booking.ID,
		"code", booking.Code,
		"actor", req.Actor,
		"prepaid", req.Prepaid,
	)
	s.afterCreate(ctx, booking)
	return booking, nil
}
