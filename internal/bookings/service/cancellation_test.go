package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
	apperrors "tourbook/pkg/errors"
	"tourbook/pkg/model"
	"tourbook/pkg/notify"
	"tourbook/pkg/ratelimit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createBooking(t *testing.T, h *harness, qty int) *model.Booking {
	t.Helper()
	result, err := h.svc.Create(context.Background(), request(map[string][]TicketRequest{
		"s1": {{VariantID: adult, Quantity: qty}},
	}))
	require.NoError(t, err)
	return result.Booking
}

func paidBooking(t *testing.T, h *harness, qty int) *model.Booking {
	t.Helper()
	booking := createBooking(t, h, qty)
	confirmed, err := h.svc.ConfirmPayment(context.Background(), booking.ID)
	require.NoError(t, err)
	return confirmed
}

func TestResolveRefundPercentage(t *testing.T) {
	policy := &model.ReturnPolicy{Tiers: []model.RefundTier{
		{DaysBefore: 3, Percentage: 50},
		{DaysBefore: 7, Percentage: 100},
		{DaysBefore: 0, Percentage: 0},
	}}

	tests := []struct {
		name  string
		hours float64
		want  int
	}{
		{"eight days", 8 * 24, 100},
		{"exactly seven days", 7 * 24, 100},
		{"five days", 5 * 24, 50},
		{"exactly three days", 3 * 24, 50},
		{"just under three days", 2.9 * 24, 0},
		{"already started", -2, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveRefundPercentage(policy, tt.hours))
		})
	}

	assert.Zero(t, ResolveRefundPercentage(nil, 500))
	assert.Zero(t, ResolveRefundPercentage(&model.ReturnPolicy{}, 500))
	assert.Zero(t, ResolveRefundPercentage(&model.ReturnPolicy{Tiers: []model.RefundTier{{DaysBefore: 2, Percentage: 80}}}, 24))
}

func TestDefaultPolicy(t *testing.T) {
	policy := DefaultPolicy(24)
	assert.Equal(t, 100, ResolveRefundPercentage(policy, 25))
	assert.Equal(t, 100, ResolveRefundPercentage(policy, 24))
	assert.Equal(t, 0, ResolveRefundPercentage(policy, 23))

	assert.Equal(t, 100, ResolveRefundPercentage(DefaultPolicy(0), 0))
}

func TestCancel_PaidBookingRefundsByPolicy(t *testing.T) {
	h := newHarness(t, testSession("s1", 10, model.PerPerson))
	ctx := context.Background()
	booking := paidBooking(t, h, 2)

	cancelled, err := h.svc.Cancel(ctx, &CancelRequest{
		BookingID:     booking.ID,
		CustomerEmail: "Jane@Example.com ",
		Reason:        "  change of plans ",
	})
	require.NoError(t, err)

	assert.Equal(t, model.Cancelled, cancelled.Status)
	require.NotNil(t, cancelled.Cancellation)
	assert.Equal(t, 50, cancelled.Cancellation.RefundPercentage)
	assert.EqualValues(t, 5000, cancelled.Cancellation.RefundAmount)
	assert.True(t, cancelled.Cancellation.RefundProcessed)
	assert.Equal(t, "change of plans", cancelled.Cancellation.Reason)
	assert.Equal(t, customer, cancelled.Cancellation.Actor)

	refunds := h.gateway.Refunds()
	require.Len(t, refunds, 1)
	assert.EqualValues(t, 5000, refunds[0].Amount)
	assert.Equal(t, booking.Payment.IntentID, refunds[0].IntentID)

	stored, err := h.bookings.FindByID(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, model.Cancelled, stored.Status)
	assert.True(t, stored.Cancellation.RefundProcessed)

	order, err := h.orders.FindByID(ctx, booking.OrderID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderRefunded, order.Status)

	v := h.tours.variant(tourID, adult)
	assert.Equal(t, 100, v.Inventory.QtyOnHand)
	assert.Zero(t, v.Inventory.QtyCommitted)
	assert.Equal(t, model.ReasonRefund, v.Inventory.Transactions[len(v.Inventory.Transactions)-1].Reason)

	session := h.sessions.get("s1")
	assert.Empty(t, session.Bookings)
	assert.Zero(t, session.Capacity.Current)
	assert.Equal(t, 10, session.Capacity.Remaining)

	assert.Equal(t, []slotCall{{sessionID: "s1", slots: 2}}, h.waitlist.slotCalls)
	assert.Equal(t, []string{notify.TemplateBookingConfirmation, notify.TemplateBookingCancelled}, h.sender.templates())
}

func TestCancel_FallsBackToDefaultPolicy(t *testing.T) {
	h := newHarness(t, testSession("s1", 10, model.PerPerson))
	h.tours.tours[tourID].ReturnPolicyID = ""
	booking := paidBooking(t, h, 1)

	cancelled, err := h.svc.Cancel(context.Background(), &CancelRequest{BookingID: booking.ID, CustomerEmail: customer})
	require.NoError(t, err)
	assert.Equal(t, 100, cancelled.Cancellation.RefundPercentage)
	assert.EqualValues(t, 5000, cancelled.Cancellation.RefundAmount)
}

func TestCancel_Guards(t *testing.T) {
	ctx := context.Background()

	t.Run("unpaid self-service", func(t *testing.T) {
		h := newHarness(t, testSession("s1", 10, model.PerPerson))
		booking := createBooking(t, h, 1)
		_, err := h.svc.Cancel(ctx, &CancelRequest{BookingID: booking.ID, CustomerEmail: customer})
		assert.True(t, apperrors.HasCode(err, apperrors.CodePaymentNotCompleted))
	})

	t.Run("email required for self-service", func(t *testing.T) {
		h := newHarness(t, testSession("s1", 10, model.PerPerson))
		booking := paidBooking(t, h, 1)
		_, err := h.svc.Cancel(ctx, &CancelRequest{BookingID: booking.ID})
		assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
	})

	t.Run("another customer", func(t *testing.T) {
		h := newHarness(t, testSession("s1", 10, model.PerPerson))
		booking := paidBooking(t, h, 1)
		_, err := h.svc.Cancel(ctx, &CancelRequest{BookingID: booking.ID, CustomerEmail: "mallory@example.com"})
		assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
		assert.Empty(t, h.gateway.Refunds())
	})

	t.Run("already cancelled", func(t *testing.T) {
		h := newHarness(t, testSession("s1", 10, model.PerPerson))
		booking := paidBooking(t, h, 1)
		_, err := h.svc.Cancel(ctx, &CancelRequest{BookingID: booking.ID, CustomerEmail: customer})
		require.NoError(t, err)
		_, err = h.svc.Cancel(ctx, &CancelRequest{BookingID: booking.ID, CustomerEmail: customer})
		assert.True(t, apperrors.HasCode(err, apperrors.CodeBookingAlreadyCancelled))
		assert.Len(t, h.gateway.Refunds(), 1)
	})

	t.Run("session started", func(t *testing.T) {
		h := newHarness(t, testSession("s1", 10, model.PerPerson))
		booking := paidBooking(t, h, 1)
		h.now = time.Date(2026, 3, 6, 10, 30, 0, 0, time.UTC)
		_, err := h.svc.Cancel(ctx, &CancelRequest{BookingID: booking.ID, CustomerEmail: customer})
		assert.True(t, apperrors.HasCode(err, apperrors.CodeCancellationDeadlinePassed))
	})

	t.Run("staff after check-in", func(t *testing.T) {
		h := newHarness(t, testSession("s1", 10, model.PerPerson))
		booking := paidBooking(t, h, 1)
		_, err := h.svc.CheckIn(ctx, booking.ID, "guide-7")
		require.NoError(t, err)
		_, err = h.svc.Cancel(ctx, &CancelRequest{BookingID: booking.ID, Staff: true, Actor: "ops"})
		assert.True(t, apperrors.HasCode(err, apperrors.CodeBookingCheckedIn))
	})

	t.Run("unknown booking", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.svc.Cancel(ctx, &CancelRequest{BookingID: "missing", Staff: true})
		assert.True(t, apperrors.HasCode(err, apperrors.CodeBookingNotFound))
	})
}

func TestCancel_StaffReleasesUnpaidHold(t *testing.T) {
	h := newHarness(t, testSession("s1", 10, model.PerPerson))
	ctx := context.Background()
	booking := createBooking(t, h, 3)

	cancelled, err := h.svc.Cancel(ctx, &CancelRequest{BookingID: booking.ID, Staff: true, Actor: "ops@walks.example"})
	require.NoError(t, err)
	assert.Equal(t, model.Cancelled, cancelled.Status)
	assert.Zero(t, cancelled.Cancellation.RefundPercentage)
	assert.False(t, cancelled.Cancellation.RefundProcessed)
	assert.Equal(t, "ops@walks.example", cancelled.Cancellation.Actor)

	assert.Equal(t, []string{booking.Payment.IntentID}, h.gateway.Cancelled())
	assert.Empty(t, h.gateway.Refunds())

	v := h.tours.variant(tourID, adult)
	assert.Equal(t, 100, v.Inventory.QtyOnHand)
	assert.Zero(t, v.Inventory.QtyCommitted)

	order, err := h.orders.FindByID(ctx, booking.OrderID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderCancelled, order.Status)
	assert.Equal(t, []slotCall{{sessionID: "s1", slots: 3}}, h.waitlist.slotCalls)
}

func TestCancel_StaffAfterStartRefundsNothing(t *testing.T) {
	h := newHarness(t, testSession("s1", 10, model.PerPerson))
	booking := paidBooking(t, h, 1)
	h.now = time.Date(2026, 3, 6, 11, 0, 0, 0, time.UTC)

	cancelled, err := h.svc.Cancel(context.Background(), &CancelRequest{BookingID: booking.ID, Staff: true})
	require.NoError(t, err)
	assert.Zero(t, cancelled.Cancellation.RefundAmount)
	assert.Equal(t, actorSystem, cancelled.Cancellation.Actor)
	assert.Empty(t, h.gateway.Refunds())
}

func TestCancel_RefundFailureKeepsCancellation(t *testing.T) {
	h := newHarness(t, testSession("s1", 10, model.PerPerson))
	ctx := context.Background()
	booking := paidBooking(t, h, 2)
	h.gateway.RefundErr = errors.New("card network down")

	cancelled, err := h.svc.Cancel(ctx, &CancelRequest{BookingID: booking.ID, CustomerEmail: customer})
	require.NoError(t, err)
	assert.False(t, cancelled.Cancellation.RefundProcessed)

	stored, err := h.bookings.FindByID(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, model.Cancelled, stored.Status)

	order, err := h.orders.FindByID(ctx, booking.OrderID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderCancelled, order.Status)
}

func TestCancel_ConcurrentCancellationsApplyOnce(t *testing.T) {
	h := newHarness(t, testSession("s1", 10, model.PerPerson))
	booking := paidBooking(t, h, 2)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for range 6 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.svc.Cancel(context.Background(), &CancelRequest{BookingID: booking.ID, Staff: true, Actor: "ops"})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.True(t,
				apperrors.HasCode(err, apperrors.CodeBookingAlreadyCancelled) || apperrors.HasCode(err, apperrors.CodeConcurrentModification),
				"unexpected error %v", err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Len(t, h.gateway.Refunds(), 1)
	v := h.tours.variant(tourID, adult)
	assert.Equal(t, 100, v.Inventory.QtyOnHand)
	assert.Zero(t, v.Inventory.QtyCommitted)
}

func TestCancel_SelfServiceIsRateLimited(t *testing.T) {
	h := newHarness(t)
	limiter := ratelimit.NewMemoryLimiter(1, time.Hour)
	t.Cleanup(limiter.Stop)
	h.svc.limiter = limiter
	ctx := context.Background()

	_, err := h.svc.Cancel(ctx, &CancelRequest{BookingID: "missing", CustomerEmail: customer})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeBookingNotFound))

	_, err = h.svc.Cancel(ctx, &CancelRequest{BookingID: "missing", CustomerEmail: customer})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeRateLimited))

	_, err = h.svc.Cancel(ctx, &CancelRequest{BookingID: "missing", Staff: true})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeBookingNotFound))
}
