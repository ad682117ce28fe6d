package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	bookingerrors "tourbook/internal/bookings/errors"
	"tourbook/internal/bookings/repository"
	"tourbook/internal/bookings/validator"
	"tourbook/internal/inventory"
	sessionerrors "tourbook/internal/sessions/errors"
	"tourbook/pkg/config"
	pkgmongo "tourbook/pkg/db/mongo"
	apperrors "tourbook/pkg/errors"
	"tourbook/pkg/events"
	"tourbook/pkg/model"
	"tourbook/pkg/notify"
	"tourbook/pkg/payment"
	"tourbook/pkg/ratelimit"
	"tourbook/pkg/sanitizer"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	sourceBooking = "booking"
	actorSystem   = "system"
	codeAttempts  = 3
)

type SessionStore interface {
	FindByID(ctx context.Context, id string) (*model.Session, error)
	UpdateCapacity(ctx context.Context, id string, version int64, capacity model.Capacity, bookings []model.SessionBooking) (int64, error)
}

type TourStore interface {
	FindByID(ctx context.Context, id string) (*model.Tour, error)
	ApplyInventory(ctx context.Context, tourID, variantID string, expected model.Inventory, patches []model.Patch) error
}

type PolicyStore interface {
	FindByID(ctx context.Context, id string) (*model.ReturnPolicy, error)
}

type IdentityLookup interface {
	GetVendor(ctx context.Context, id string) (*model.Vendor, error)
	EnsureUser(ctx context.Context, email, name string) (*model.User, bool, error)
	SetStripeCustomer(ctx context.Context, userID, customerID string) error
}

type WaitlistTrigger interface {
	ProcessSlotOpen(ctx context.Context, sessionID string, slots int) (int, error)
	ConvertForCustomer(ctx context.Context, sessionID, email, bookingID string) error
}

type ResyncRequester interface {
	RequestResync(ctx context.Context, evt events.CapacityResync) error
}

// Dependencies groups the collaborators of the booking workflows.
type Dependencies struct {
	Bookings  repository.BookingRepository
	Orders    repository.OrderRepository
	Sessions  SessionStore
	Tours     TourStore
	Policies  PolicyStore
	Identity  IdentityLookup
	Waitlist  WaitlistTrigger
	Resync    ResyncRequester
	Gateway   payment.Gateway
	Notifier  notify.Sender
	Limiter   ratelimit.Limiter
	TxManager pkgmongo.TransactionManager
}

type TicketRequest struct {
	VariantID  string `json:"variant_id" validate:"required"`
	Quantity   int    `json:"quantity" validate:"required,min=1,max=100"`
	AssignedTo string `json:"assigned_to,omitempty" validate:"omitempty,max=100"`
}

type SessionRequest struct {
	SessionID string          `json:"session_id" validate:"required"`
	Tickets   []TicketRequest `json:"tickets" validate:"required,min=1,dive"`
}

type CreateRequest struct {
	TourID        string           `json:"tour_id" validate:"required"`
	CustomerEmail string           `json:"customer_email" validate:"required,email"`
	CustomerName  string           `json:"customer_name,omitempty" validate:"omitempty,max=100"`
	Sessions      []SessionRequest `json:"sessions" validate:"required,min=1,max=20,unique=SessionID,dive"`
}

type ManualRequest struct {
	CreateRequest
	Prepaid bool   `json:"prepaid"`
	Actor   string `json:"actor" validate:"required"`
}

type CreateResult struct {
	Booking      *model.Booking `json:"booking"`
	ClientSecret string         `json:"client_secret,omitempty"`
}

type BookingService interface {
	Create(ctx context.Context, req *CreateRequest) (*CreateResult, error)
	// CreateWithRetry reruns Create from scratch while it loses capacity races.
	CreateWithRetry(ctx context.Context, req *CreateRequest) (*CreateResult, error)
	CreateManual(ctx context.Context, req *ManualRequest) (*model.Booking, error)
	ConfirmPayment(ctx context.Context, bookingID string) (*model.Booking, error)
	CheckIn(ctx context.Context, bookingID, actor string) (*model.Booking, error)
	Cancel(ctx context.Context, req *CancelRequest) (*model.Booking, error)
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	ListBySession(ctx context.Context, sessionID string, limit int, offset int64) ([]*model.Booking, int64, error)
}

type bookingService struct {
	repo      repository.BookingRepository
	orders    repository.OrderRepository
	sessions  SessionStore
	tours     TourStore
	policies  PolicyStore
	identity  IdentityLookup
	waitlist  WaitlistTrigger
	resync    ResyncRequester
	gateway   payment.Gateway
	notifier  notify.Sender
	limiter   ratelimit.Limiter
	txManager pkgmongo.TransactionManager
	validator *validator.BookingValidator
	cfg       *config.Config
	now       func() time.Time
}

func NewBookingService(deps Dependencies, validator *validator.BookingValidator, cfg *config.Config) BookingService {
	return &bookingService{
		repo:      deps.Bookings,
		orders:    deps.Orders,
		sessions:  deps.Sessions,
		tours:     deps.Tours,
		policies:  deps.Policies,
		identity:  deps.Identity,
		waitlist:  deps.Waitlist,
		resync:    deps.Resync,
		gateway:   deps.Gateway,
		notifier:  notify.NewBestEffort(deps.Notifier, cfg.Log),
		limiter:   deps.Limiter,
		txManager: deps.TxManager,
		validator: validator,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *bookingService) Create(ctx context.Context, req *CreateRequest) (*CreateResult, error) {
	if err := s.validateCreate(req); err != nil {
		return nil, err
	}

	tour, err := s.loadTour(ctx, req.TourID)
	if err != nil {
		return nil, err
	}
	plans, err := s.planSessions(ctx, tour, req.Sessions)
	if err != nil {
		return nil, err
	}

	bookingID := uuid.NewString()
	ref := inventory.Reference{Source: sourceBooking, ID: bookingID, Actor: req.CustomerEmail}
	commits, err := s.commitLines(ctx, tour, ref, requestedLines(req.Sessions))
	if err != nil {
		return nil, err
	}

	amount := bookingAmount(tour, req.Sessions)
	vendor, err := s.identity.GetVendor(ctx, tour.VendorID)
	if err != nil {
		s.rollback(ctx, commits)
		return nil, err
	}
	customerID, user, err := s.resolveCustomer(ctx, req.CustomerEmail, req.CustomerName)
	if err != nil {
		s.rollback(ctx, commits)
		return nil, err
	}

	fee := payment.PlatformFee(amount, s.cfg.PlatformFeePercent)
	auth, err := s.gateway.Authorize(ctx, payment.AuthorizeRequest{
		Amount:             amount,
		Currency:           tour.Currency,
		CustomerID:         customerID,
		ConnectedAccountID: vendor.StripeAccountID,
		PlatformFee:        fee,
		Description:        tour.Name,
		IdempotencyKey:     bookingID,
		Metadata:           map[string]string{"booking_id": bookingID, "tour_id": tour.ID},
	})
	if err != nil {
		s.cfg.Log.Error("Payment authorization failed",
			"booking_id", bookingID,
			"gateway", s.gateway.Name(),
			"error", err,
		)
		s.rollback(ctx, commits)
		return nil, apperrors.Gateway("Payment authorization failed", err)
	}

	now := s.now().UTC().Truncate(time.Millisecond)
	booking := &model.Booking{
		ID:          bookingID,
		Customer:    model.Customer{Email: req.CustomerEmail, Name: req.CustomerName, UserID: user.ID},
		VendorID:    tour.VendorID,
		TourID:      tour.ID,
		Assignments: assignments(tour, req.Sessions),
		Payment: model.Payment{
			IntentID:           auth.IntentID,
			CustomerID:         customerID,
			ConnectedAccountID: vendor.StripeAccountID,
			Amount:             amount,
			PlatformFee:        fee,
			Currency:           tour.Currency,
		},
		OrderID:   uuid.NewString(),
		Backorder: commits.backorder,
		CreatedAt: now,
	}
	booking.AppendStatus(model.AwaitingPayment, "Awaiting payment", req.CustomerEmail, now)
	order := newOrder(booking, model.OrderPending)

	if err := s.persist(ctx, booking, order); err != nil {
		s.rollback(ctx, commits)
		s.cancelIntent(ctx, auth.IntentID)
		return nil, err
	}

	written, err := s.attachSessions(ctx, tour, booking, plans)
	if err != nil {
		s.cfg.Log.Warn("Session changed while booking, compensating",
			"booking_id", booking.ID,
			"written_sessions", len(written),
			"error", err,
		)
		s.compensate(ctx, tour, booking, commits, written)
		if errors.Is(err, sessionerrors.ErrVersionConflict) {
			return nil, apperrors.ConcurrentModification("Session", err)
		}
		return nil, apperrors.Internal("Failed to update session capacity", err)
	}

	s.cfg.Log.Info("Booking created",
		"booking_id", booking.ID,
		"code", booking.Code,
		"tour_id", booking.TourID,
		"amount", amount,
		"backorder", booking.Backorder,
	)
	s.afterCreate(ctx, booking)
	return &CreateResult{Booking: booking, ClientSecret: auth.ClientSecret}, nil
}

func (s *bookingService) CreateWithRetry(ctx context.Context, req *CreateRequest) (*CreateResult, error) {
	attempts := max(1, s.cfg.BookingMaxAttempts)
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := s.Create(ctx, req)
		if err == nil {
			return result, nil
		}
		if !apperrors.HasCode(err, apperrors.CodeConcurrentModification) {
			return nil, err
		}
		lastErr = err
		s.cfg.Log.Info("Retrying booking after concurrent modification", "attempt", attempt, "max_attempts", attempts)
		if ctx.Err() != nil {
			return nil, apperrors.Timeout("Booking request timed out")
		}
	}
	return nil, lastErr
}

func (s *bookingService) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, bookingerrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithCode(apperrors.CodeBookingNotFound, "Booking", id)
		}
		return nil, apperrors.Internal("Failed to retrieve booking", err)
	}
	return booking, nil
}

func (s *bookingService) ListBySession(ctx context.Context, sessionID string, limit int, offset int64) ([]*model.Booking, int64, error) {
	var count int64
	var bookings []*model.Booking
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.CountBySession(ctx, sessionID)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count bookings", "session_id", sessionID, "error", errCount)
			errCount = apperrors.Internal("Failed to count bookings", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		bookings, errFind = s.repo.FindBySession(ctx, sessionID, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list bookings", "session_id", sessionID, "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve bookings", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}
	return bookings, count, nil
}

// ConfirmPayment completes a booking once the gateway reports the authorization as
// settled, turning the inventory commitments into sales.
func (s *bookingService) ConfirmPayment(ctx context.Context, bookingID string) (*model.Booking, error) {
	booking, err := s.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	switch booking.Status {
	case model.Cancelled:
		return nil, apperrors.Rejected(apperrors.CodeBookingAlreadyCancelled, "Booking is already cancelled")
	case model.Completed:
		return booking, nil
	}
	if booking.Payment.IntentID == "" {
		return nil, apperrors.Rejected(apperrors.CodePaymentNotCompleted, "Booking has no payment to confirm")
	}

	auth, err := s.gateway.Retrieve(ctx, booking.Payment.IntentID)
	if err != nil {
		return nil, apperrors.Gateway("Failed to retrieve payment", err)
	}
	if !auth.Settled() {
		return nil, apperrors.Rejected(apperrors.CodePaymentNotCompleted, fmt.Sprintf("Payment is %s", auth.Status))
	}
	captured := false
	if auth.Status == payment.StatusRequiresCapture {
		if auth, err = s.gateway.Capture(ctx, booking.Payment.IntentID); err != nil {
			s.cfg.Log.Error("Payment capture failed", "booking_id", booking.ID, "intent_id", booking.Payment.IntentID, "error", err)
			return nil, apperrors.Gateway("Failed to capture payment", err)
		}
		captured = true
	}
	if auth.Status != payment.StatusSucceeded {
		return nil, apperrors.Rejected(apperrors.CodePaymentNotCompleted, fmt.Sprintf("Payment is %s", auth.Status))
	}

	booking.Payment.Captured = true
	booking.AppendStatus(model.Completed, "Payment confirmed", actorSystem, s.now().UTC().Truncate(time.Millisecond))
	if err := s.repo.Update(ctx, booking, model.AwaitingPayment); err != nil {
		if captured {
			s.refundOrphanedCapture(ctx, booking)
		}
		return nil, s.updateError(booking.ID, err)
	}

	tour, err := s.loadTour(ctx, booking.TourID)
	if err != nil {
		s.cfg.Log.Error("Inventory not deducted, tour unavailable", "booking_id", booking.ID, "error", err)
	} else {
		ref := inventory.Reference{Source: sourceBooking, ID: booking.ID, Actor: actorSystem}
		s.applyEach(ctx, tour, bookingLines(booking), inventory.Deduct, ref)
	}
	s.setOrderStatus(ctx, booking.OrderID, model.OrderPaid)

	s.cfg.Log.Info("Booking payment confirmed", "booking_id", booking.ID, "intent_id", booking.Payment.IntentID)
	return booking, nil
}

// refundOrphanedCapture returns captured funds when the booking left AWAITING_PAYMENT
// for anything other than COMPLETED while the capture was in flight.
func (s *bookingService) refundOrphanedCapture(ctx context.Context, booking *model.Booking) {
	if current, err := s.repo.FindByID(ctx, booking.ID); err == nil && current.Status == model.Completed {
		return
	}
	_, err := s.gateway.Refund(ctx, payment.RefundRequest{
		IntentID: booking.Payment.IntentID,
		Amount:   booking.Payment.Amount,
		Reason:   "booking changed during payment confirmation",
	})
	if err != nil {
		s.cfg.Log.Error("Captured payment could not be returned",
			"booking_id", booking.ID,
			"intent_id", booking.Payment.IntentID,
			"amount", booking.Payment.Amount,
			"error", err,
		)
	}
}

// CheckIn records attendance. Fulfillment audit records are best-effort.
func (s *bookingService) CheckIn(ctx context.Context, bookingID, actor string) (*model.Booking, error) {
	booking, err := s.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status == model.Cancelled {
		return nil, apperrors.Rejected(apperrors.CodeBookingAlreadyCancelled, "Booking is cancelled")
	}
	if booking.CheckIn != nil {
		return booking, nil
	}
	if actor == "" {
		actor = actorSystem
	}

	booking.CheckIn = &model.CheckIn{At: s.now().UTC().Truncate(time.Millisecond), Actor: actor}
	if err := s.repo.Update(ctx, booking, booking.Status); err != nil {
		return nil, s.updateError(booking.ID, err)
	}

	tour, err := s.loadTour(ctx, booking.TourID)
	if err != nil {
		s.cfg.Log.Warn("Fulfillment not recorded, tour unavailable", "booking_id", booking.ID, "error", err)
	} else {
		ref := inventory.Reference{Source: sourceBooking, ID: booking.ID, Actor: actor}
		s.applyEach(ctx, tour, bookingLines(booking), inventory.Fulfill, ref)
	}

	s.cfg.Log.Info("Booking checked in", "booking_id", booking.ID, "actor", actor)
	return booking, nil
}

func (s *bookingService) validateCreate(req *CreateRequest) error {
	req.CustomerEmail = sanitizer.NormalizeEmail(req.CustomerEmail)
	req.CustomerName = sanitizer.NormalizeName(req.CustomerName)
	if err := s.validator.Validate(req); err != nil {
		s.cfg.Log.Warn("Booking validation failed", "tour_id", req.TourID, "error", err)
		return apperrors.Validation("Booking validation failed", map[string]any{"error": err.Error()})
	}
	return nil
}

// resolveCustomer finds or creates the user and their gateway customer, remembering the
// gateway id on the user for next time.
func (s *bookingService) resolveCustomer(ctx context.Context, email, name string) (string, *model.User, error) {
	user, _, err := s.identity.EnsureUser(ctx, email, name)
	if err != nil {
		return "", nil, err
	}
	if user.StripeCustomerID != "" {
		return user.StripeCustomerID, user, nil
	}

	customerID, err := s.gateway.ResolveCustomer(ctx, email, name)
	if err != nil {
		return "", nil, apperrors.Gateway("Failed to resolve payment customer", err)
	}
	if err := s.identity.SetStripeCustomer(ctx, user.ID, customerID); err != nil {
		s.cfg.Log.Warn("Failed to store payment customer", "user_id", user.ID, "error", err)
	}
	user.StripeCustomerID = customerID
	return customerID, user, nil
}

// persist writes the order and booking together, drawing a fresh code if the first one
// collides.
func (s *bookingService) persist(ctx context.Context, booking *model.Booking, order *model.Order) error {
	var err error
	for range codeAttempts {
		booking.Code, err = NewBookingCode()
		if err != nil {
			return apperrors.Internal("Failed to generate booking code", err)
		}
		err = s.txManager.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
			if err := s.orders.Create(sessCtx, order); err != nil {
				return err
			}
			return s.repo.Create(sessCtx, booking)
		})
		if !errors.Is(err, bookingerrors.ErrDuplicateCode) {
			break
		}
		s.cfg.Log.Warn("Booking code collision, drawing another", "code", booking.Code)
	}
	if err != nil {
		s.cfg.Log.Error("Failed to persist booking", "booking_id", booking.ID, "error", err)
		return apperrors.Internal("Failed to create booking", err)
	}
	return nil
}

// compensate undoes a booking whose session writes lost a version race. Every step runs
// even when an earlier one fails.
func (s *bookingService) compensate(ctx context.Context, tour *model.Tour, booking *model.Booking, commits *commitments, written []*sessionPlan) {
	if err := s.repo.Delete(ctx, booking.ID); err != nil {
		s.cfg.Log.Error("Compensation: failed to delete booking", "booking_id", booking.ID, "error", err)
	}
	if err := s.orders.Delete(ctx, booking.OrderID); err != nil {
		s.cfg.Log.Error("Compensation: failed to delete order", "order_id", booking.OrderID, "error", err)
	}
	for _, p := range written {
		s.detachSession(ctx, tour, p.session.ID, booking.ID, "booking compensation")
	}
	s.rollback(ctx, commits)
	s.cancelIntent(ctx, booking.Payment.IntentID)
}

func (s *bookingService) cancelIntent(ctx context.Context, intentID string) {
	if intentID == "" {
		return
	}
	if err := s.gateway.Cancel(ctx, intentID); err != nil {
		s.cfg.Log.Warn("Failed to cancel payment authorization", "intent_id", intentID, "error", err)
	}
}

func (s *bookingService) afterCreate(ctx context.Context, booking *model.Booking) {
	_ = s.notifier.Send(ctx, notify.Message{
		Template: notify.TemplateBookingConfirmation,
		To:       booking.Customer.Email,
		Data: map[string]any{
			"booking_id": booking.ID,
			"code":       booking.Code,
			"tour_id":    booking.TourID,
			"status":     booking.Status,
			"amount":     booking.Payment.Amount,
			"currency":   booking.Payment.Currency,
		},
	})

	if s.waitlist == nil {
		return
	}
	for _, a := range booking.Assignments {
		if err := s.waitlist.ConvertForCustomer(ctx, a.SessionID, booking.Customer.Email, booking.ID); err != nil {
			s.cfg.Log.Warn("Failed to convert waitlist entry", "session_id", a.SessionID, "booking_id", booking.ID, "error", err)
		}
	}
}

func (s *bookingService) setOrderStatus(ctx context.Context, orderID string, status model.OrderStatus) {
	if orderID == "" {
		return
	}
	if err := s.orders.UpdateStatus(ctx, orderID, status); err != nil {
		s.cfg.Log.Warn("Failed to update order status", "order_id", orderID, "status", status, "error", err)
	}
}

func (s *bookingService) updateError(id string, err error) error {
	if errors.Is(err, bookingerrors.ErrStatusChanged) {
		return apperrors.ConcurrentModification("Booking", err)
	}
	s.cfg.Log.Error("Failed to update booking", "booking_id", id, "error", err)
	return apperrors.Internal("Failed to update booking", err)
}

func newOrder(booking *model.Booking, status model.OrderStatus) *model.Order {
	return &model.Order{
		ID:          booking.OrderID,
		BookingID:   booking.ID,
		VendorID:    booking.VendorID,
		Amount:      booking.Payment.Amount,
		PlatformFee: booking.Payment.PlatformFee,
		Currency:    booking.Payment.Currency,
		IntentID:    booking.Payment.IntentID,
		Status:      status,
	}
}

func assignments(tour *model.Tour, sessions []SessionRequest) []model.SessionAssignment {
	out := make([]model.SessionAssignment, 0, len(sessions))
	for _, sr := range sessions {
		a := model.SessionAssignment{SessionID: sr.SessionID}
		for _, t := range sr.Tickets {
			var price int64
			if v, ok := tour.Variant(t.VariantID); ok {
				price = v.Price
			}
			a.Tickets = append(a.Tickets, model.BookingTicket{
				VariantID:  t.VariantID,
				Quantity:   t.Quantity,
				Price:      price,
				AssignedTo: t.AssignedTo,
			})
		}
		out = append(out, a)
	}
	return out
}

func bookingAmount(tour *model.Tour, sessions []SessionRequest) int64 {
	var total int64
	for _, sr := range sessions {
		for _, t := range sr.Tickets {
			if v, ok := tour.Variant(t.VariantID); ok {
				total += v.Price * int64(t.Quantity)
			}
		}
	}
	return total
}

func sessionLines(sr SessionRequest) []model.TicketLine {
	return lo.Map(sr.Tickets, func(t TicketRequest, _ int) model.TicketLine {
		return model.TicketLine{VariantID: t.VariantID, Quantity: t.Quantity}
	})
}

func requestedLines(sessions []SessionRequest) []model.TicketLine {
	return lo.FlatMap(sessions, func(sr SessionRequest, _ int) []model.TicketLine {
		return sessionLines(sr)
	})
}

func bookingLines(booking *model.Booking) []model.TicketLine {
	return lo.FlatMap(booking.Assignments, func(a model.SessionAssignment, _ int) []model.TicketLine {
		return a.Lines()
	})
}
