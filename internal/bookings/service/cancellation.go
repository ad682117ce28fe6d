package service

import (
	"context"
	"errors"
	"slices"
	"time"
	"tourbook/internal/capacity"
	"tourbook/internal/inventory"
	tourerrors "tourbook/internal/tours/errors"
	apperrors "tourbook/pkg/errors"
	"tourbook/pkg/model"
	"tourbook/pkg/notify"
	"tourbook/pkg/payment"
	"tourbook/pkg/ratelimit"
	"tourbook/pkg/sanitizer"
)

const actionCancel = "cancel"

type CancelRequest struct {
	BookingID     string `json:"-" validate:"required"`
	CustomerEmail string `json:"customer_email,omitempty" validate:"omitempty,email"`
	Reason        string `json:"reason,omitempty" validate:"omitempty,max=500"`
	Actor         string `json:"actor,omitempty"`
	Staff         bool   `json:"-"`
}

// ResolveRefundPercentage picks the refund tier for a cancellation hoursUntil hours
// before the session. Tiers are evaluated in ascending order of DaysBefore and the
// largest threshold not exceeding the notice given wins. No matching tier refunds 0.
func ResolveRefundPercentage(policy *model.ReturnPolicy, hoursUntil float64) int {
	if policy == nil || len(policy.Tiers) == 0 {
		return 0
	}
	tiers := slices.Clone(policy.Tiers)
	slices.SortFunc(tiers, func(a, b model.RefundTier) int { return a.DaysBefore - b.DaysBefore })

	daysUntil := hoursUntil / 24
	pct := 0
	for _, tier := range tiers {
		if float64(tier.DaysBefore) <= daysUntil {
			pct = tier.Percentage
		}
	}
	return pct
}

// DefaultPolicy refunds in full when the customer cancels at least hours before the
// session and not at all afterwards.
func DefaultPolicy(hours int) *model.ReturnPolicy {
	days := max(0, (hours+23)/24)
	tiers := []model.RefundTier{{DaysBefore: days, Percentage: 100}}
	if days > 0 {
		tiers = append([]model.RefundTier{{DaysBefore: 0, Percentage: 0}}, tiers...)
	}
	return &model.ReturnPolicy{Tiers: tiers}
}

func (s *bookingService) Cancel(ctx context.Context, req *CancelRequest) (*model.Booking, error) {
	req.CustomerEmail = sanitizer.NormalizeEmail(req.CustomerEmail)
	req.Reason = sanitizer.TrimAndNormalize(req.Reason)
	if err := s.validator.Validate(req); err != nil {
		return nil, apperrors.Validation("Cancellation validation failed", map[string]any{"error": err.Error()})
	}
	if !req.Staff && req.CustomerEmail == "" {
		return nil, apperrors.Validation("Cancellation validation failed", map[string]any{
			"error": "customer_email is required",
		})
	}

	if !req.Staff {
		if err := s.checkCancelRate(ctx, req.CustomerEmail); err != nil {
			return nil, err
		}
	}

	booking, err := s.GetByID(ctx, req.BookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status == model.Cancelled {
		return nil, apperrors.Rejected(apperrors.CodeBookingAlreadyCancelled, "Booking is already cancelled")
	}

	actor := req.Actor
	if req.Staff {
		if booking.CheckIn != nil {
			return nil, apperrors.Rejected(apperrors.CodeBookingCheckedIn, "Booking has already been checked in")
		}
		if actor == "" {
			actor = actorSystem
		}
	} else {
		if booking.Customer.Email != req.CustomerEmail {
			return nil, apperrors.Forbidden("Booking belongs to another customer")
		}
		if !booking.Payment.Paid() {
			return nil, apperrors.Rejected(apperrors.CodePaymentNotCompleted,
				"Payment for this booking is not completed, please contact the merchant")
		}
		actor = req.CustomerEmail
	}

	tour, err := s.loadTour(ctx, booking.TourID)
	if err != nil {
		return nil, err
	}
	sessions := s.bookedSessions(ctx, booking)

	now := s.now().UTC()
	start, hasStart := earliestStart(sessions)
	if !req.Staff && hasStart && !now.Before(start) {
		return nil, apperrors.Rejected(apperrors.CodeCancellationDeadlinePassed, "Session has already started")
	}

	freed := s.freedUnits(tour, booking, sessions)
	paid := booking.Payment.Paid()
	pct := 0
	if paid {
		hoursUntil := 0.0
		if hasStart {
			hoursUntil = start.Sub(now).Hours()
		}
		pct = ResolveRefundPercentage(s.refundPolicy(ctx, tour), hoursUntil)
	}

	label := "Cancelled by customer"
	if req.Staff {
		label = "Cancelled by staff"
	}
	previous := booking.Status
	booking.Cancellation = &model.Cancellation{
		At:               now.Truncate(time.Millisecond),
		Reason:           req.Reason,
		Actor:            actor,
		RefundPercentage: pct,
		RefundAmount:     payment.Percentage(booking.Payment.Amount, pct),
	}
	booking.AppendStatus(model.Cancelled, label, actor, now.Truncate(time.Millisecond))
	if err := s.repo.Update(ctx, booking, previous); err != nil {
		return nil, s.updateError(booking.ID, err)
	}

	ref := inventory.Reference{Source: sourceBooking, ID: booking.ID, Actor: actor}
	if paid {
		s.applyEach(ctx, tour, bookingLines(booking), inventory.Restore, ref)
	} else {
		s.applyEach(ctx, tour, bookingLines(booking), inventory.Rollback, ref)
	}

	s.settlePayment(ctx, booking, paid)

	for _, session := range sessions {
		s.detachSession(ctx, tour, session.ID, booking.ID, "booking cancellation")
	}
	s.releaseToWaitlist(ctx, freed)

	if booking.Cancellation.RefundProcessed {
		s.setOrderStatus(ctx, booking.OrderID, model.OrderRefunded)
	} else {
		s.setOrderStatus(ctx, booking.OrderID, model.OrderCancelled)
	}

	_ = s.notifier.Send(ctx, notify.Message{
		Template: notify.TemplateBookingCancelled,
		To:       booking.Customer.Email,
		Data: map[string]any{
			"booking_id":        booking.ID,
			"code":              booking.Code,
			"refund_percentage": pct,
			"refund_amount":     booking.Cancellation.RefundAmount,
			"currency":          booking.Payment.Currency,
		},
	})

	s.cfg.Log.Info("Booking cancelled",
		"booking_id", booking.ID,
		"actor", actor,
		"staff", req.Staff,
		"refund_percentage", pct,
		"refund_processed", booking.Cancellation.RefundProcessed,
	)
	return booking, nil
}

func (s *bookingService) checkCancelRate(ctx context.Context, email string) error {
	if s.limiter == nil {
		return nil
	}
	allowed, err := s.limiter.Allow(ctx, ratelimit.Key(actionCancel, email))
	if err != nil {
		s.cfg.Log.Warn("Cancellation rate limiter unavailable, allowing request", "error", err)
		return nil
	}
	if !allowed {
		return apperrors.RateLimited("Too many cancellation attempts, please try again later")
	}
	return nil
}

// settlePayment refunds the policy share of a paid booking or releases the hold on an
// unpaid one. Gateway failures are logged; the cancellation stands.
func (s *bookingService) settlePayment(ctx context.Context, booking *model.Booking, paid bool) {
	intentID := booking.Payment.IntentID
	if intentID == "" {
		return
	}
	if !paid {
		s.cancelIntent(ctx, intentID)
		return
	}

	amount := booking.Cancellation.RefundAmount
	if amount <= 0 {
		return
	}
	result, err := s.gateway.Refund(ctx, payment.RefundRequest{
		IntentID: intentID,
		Amount:   amount,
		Reason:   booking.Cancellation.Reason,
	})
	if err != nil {
		s.cfg.Log.Error("Refund failed",
			"booking_id", booking.ID,
			"intent_id", intentID,
			"amount", amount,
			"error", err,
		)
		return
	}

	booking.Cancellation.RefundProcessed = true
	if err := s.repo.Update(ctx, booking, model.Cancelled); err != nil {
		s.cfg.Log.Warn("Failed to record refund on booking", "booking_id", booking.ID, "refund_id", result.RefundID, "error", err)
	}
}

// bookedSessions loads the sessions a booking occupies. Sessions that vanished are
// skipped.
func (s *bookingService) bookedSessions(ctx context.Context, booking *model.Booking) []*model.Session {
	sessions := make([]*model.Session, 0, len(booking.Assignments))
	for _, a := range booking.Assignments {
		session, err := s.loadSession(ctx, a.SessionID)
		if err != nil {
			s.cfg.Log.Warn("Booked session unavailable", "booking_id", booking.ID, "session_id", a.SessionID, "error", err)
			continue
		}
		sessions = append(sessions, session)
	}
	return sessions
}

type freedSlots struct {
	sessionID string
	units     int
}

func (s *bookingService) freedUnits(tour *model.Tour, booking *model.Booking, sessions []*model.Session) []freedSlots {
	var out []freedSlots
	for _, session := range sessions {
		for _, a := range booking.Assignments {
			if a.SessionID != session.ID {
				continue
			}
			units, err := capacity.Units(session.Capacity.Mode, tour, a.Lines())
			if err != nil {
				s.cfg.Log.Warn("Could not size freed capacity", "session_id", session.ID, "error", err)
				continue
			}
			out = append(out, freedSlots{sessionID: session.ID, units: units})
		}
	}
	return out
}

func (s *bookingService) releaseToWaitlist(ctx context.Context, freed []freedSlots) {
	if s.waitlist == nil {
		return
	}
	for _, f := range freed {
		if f.units <= 0 {
			continue
		}
		if _, err := s.waitlist.ProcessSlotOpen(ctx, f.sessionID, f.units); err != nil {
			s.cfg.Log.Warn("Failed to notify waitlist", "session_id", f.sessionID, "slots", f.units, "error", err)
		}
	}
}

func (s *bookingService) refundPolicy(ctx context.Context, tour *model.Tour) *model.ReturnPolicy {
	fallback := DefaultPolicy(s.cfg.DefaultRefundHours)
	if tour.ReturnPolicyID == "" {
		return fallback
	}
	policy, err := s.policies.FindByID(ctx, tour.ReturnPolicyID)
	if err != nil {
		if !errors.Is(err, tourerrors.ErrPolicyNotFound) {
			s.cfg.Log.Warn("Failed to load return policy, using default", "policy_id", tour.ReturnPolicyID, "error", err)
		}
		return fallback
	}
	return policy
}

func earliestStart(sessions []*model.Session) (time.Time, bool) {
	var earliest time.Time
	found := false
	for _, session := range sessions {
		start, err := session.StartsAt()
		if err != nil {
			continue
		}
		if !found || start.Before(earliest) {
			earliest = start
			found = true
		}
	}
	return earliest, found
}
