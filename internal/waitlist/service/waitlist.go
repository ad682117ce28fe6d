package service

import (
	"context"
	"errors"
	"sync"
	"time"
	waitlisterrors "tourbook/internal/waitlist/errors"
	"tourbook/internal/waitlist/repository"
	"tourbook/internal/waitlist/validator"
	"tourbook/pkg/config"
	apperrors "tourbook/pkg/errors"
	"tourbook/pkg/model"
	"tourbook/pkg/notify"
	"tourbook/pkg/sanitizer"

	"github.com/google/uuid"
)

// SessionReader resolves the session and tour a waitlist entry belongs to.
type SessionReader interface {
	FindSession(ctx context.Context, id string) (*model.Session, error)
	FindTour(ctx context.Context, id string) (*model.Tour, error)
}

type JoinRequest struct {
	SessionID         string             `json:"session_id" validate:"required"`
	CustomerEmail     string             `json:"customer_email" validate:"required,email"`
	TicketPreferences []model.TicketLine `json:"ticket_preferences,omitempty" validate:"omitempty,dive"`
}

type WaitlistService interface {
	Join(ctx context.Context, req *JoinRequest) (*model.WaitlistEntry, error)
	QueuePosition(ctx context.Context, sessionID, email string) (int, error)
	// ProcessSlotOpen notifies up to slots pending customers in join order and returns
	// how many were notified.
	ProcessSlotOpen(ctx context.Context, sessionID string, slots int) (int, error)
	ExpireStale(ctx context.Context, sessionID string) (int64, error)
	ExpireAll(ctx context.Context) (int64, error)
	Cancel(ctx context.Context, entryID string) error
	MarkConverted(ctx context.Context, entryID, bookingID string) error
	ConvertForCustomer(ctx context.Context, sessionID, email, bookingID string) error
	ListBySession(ctx context.Context, sessionID string, limit int, offset int64) ([]*model.WaitlistEntry, int64, error)
}

type waitlistService struct {
	repo      repository.WaitlistRepository
	sessions  SessionReader
	notifier  notify.Sender
	validator *validator.WaitlistValidator
	cfg       *config.Config
	now       func() time.Time
}

func NewWaitlistService(
	repo repository.WaitlistRepository,
	sessions SessionReader,
	notifier notify.Sender,
	validator *validator.WaitlistValidator,
	cfg *config.Config,
) WaitlistService {
	return &waitlistService{
		repo:      repo,
		sessions:  sessions,
		notifier:  notify.NewBestEffort(notifier, cfg.Log),
		validator: validator,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *waitlistService) Join(ctx context.Context, req *JoinRequest) (*model.WaitlistEntry, error) {
	req.CustomerEmail = sanitizer.NormalizeEmail(req.CustomerEmail)
	if err := s.validator.Validate(req); err != nil {
		return nil, apperrors.Validation("Waitlist request validation failed", map[string]any{"error": err.Error()})
	}

	session, err := s.sessions.FindSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	tour, err := s.sessions.FindTour(ctx, session.TourID)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.FindActive(ctx, req.SessionID, req.CustomerEmail); err == nil {
		return nil, apperrors.Rejected(apperrors.CodeWaitlistAlreadyJoined, "Customer is already on the waitlist for this session")
	} else if !errors.Is(err, waitlisterrors.ErrNotFound) {
		return nil, apperrors.Internal("Failed to check waitlist", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, apperrors.Internal("Failed to generate waitlist entry ID", err)
	}
	now := s.now().UTC().Truncate(time.Millisecond)
	entry := &model.WaitlistEntry{
		ID:                 id.String(),
		SessionID:          req.SessionID,
		TourID:             tour.ID,
		CustomerEmail:      req.CustomerEmail,
		VendorID:           tour.VendorID,
		TicketPreferences:  req.TicketPreferences,
		Priority:           now,
		NotificationStatus: model.WaitlistPending,
		Active:             true,
		CreatedAt:          now,
	}
	ahead, err := s.repo.CountAhead(ctx, entry)
	if err != nil {
		return nil, apperrors.Internal("Failed to compute queue position", err)
	}
	entry.PositionInQueue = int(ahead) + 1

	if err := s.repo.Create(ctx, entry); err != nil {
		if errors.Is(err, waitlisterrors.ErrAlreadyJoined) {
			return nil, apperrors.Rejected(apperrors.CodeWaitlistAlreadyJoined, "Customer is already on the waitlist for this session")
		}
		s.cfg.Log.Error("Failed to join waitlist", "session_id", req.SessionID, "error", err)
		return nil, apperrors.Internal("Failed to join waitlist", err)
	}

	s.cfg.Log.Info("Customer joined waitlist",
		"entry_id", entry.ID,
		"session_id", entry.SessionID,
		"position", entry.PositionInQueue,
	)
	return entry, nil
}

func (s *waitlistService) QueuePosition(ctx context.Context, sessionID, email string) (int, error) {
	entry, err := s.findActive(ctx, sessionID, sanitizer.NormalizeEmail(email))
	if err != nil {
		return 0, err
	}
	if entry.NotificationStatus != model.WaitlistPending && entry.NotificationStatus != model.WaitlistNotified {
		return 0, apperrors.NotFoundWithCode(apperrors.CodeWaitlistEntryNotFound, "Waitlist entry", entry.ID)
	}

	ahead, err := s.repo.CountAhead(ctx, entry)
	if err != nil {
		return 0, apperrors.Internal("Failed to compute queue position", err)
	}
	return int(ahead) + 1, nil
}

func (s *waitlistService) ProcessSlotOpen(ctx context.Context, sessionID string, slots int) (int, error) {
	notified := 0
	for notified < slots {
		now := s.now().UTC()
		entry, err := s.repo.ClaimNextPending(ctx, sessionID, now, now.Add(s.cfg.WaitlistNotifyTTL))
		if err != nil {
			s.cfg.Log.Error("Failed to claim waitlist entry", "session_id", sessionID, "error", err)
			return notified, apperrors.Internal("Failed to process waitlist", err)
		}
		if entry == nil {
			break
		}

		_ = s.notifier.Send(ctx, notify.Message{
			Template: notify.TemplateWaitlistSpotOpen,
			To:       entry.CustomerEmail,
			Data: map[string]any{
				"entry_id":   entry.ID,
				"session_id": sessionID,
				"tour_id":    entry.TourID,
				"expires_at": entry.NotificationExpiresAt,
			},
		})
		notified++
	}

	if notified > 0 {
		s.cfg.Log.Info("Waitlist customers notified", "session_id", sessionID, "notified", notified, "slots", slots)
	}
	return notified, nil
}

func (s *waitlistService) ExpireStale(ctx context.Context, sessionID string) (int64, error) {
	expired, err := s.repo.ExpireNotified(ctx, sessionID, s.now().UTC())
	if err != nil {
		return 0, apperrors.Internal("Failed to expire waitlist entries", err)
	}
	if expired > 0 {
		s.cfg.Log.Info("Waitlist notifications expired", "session_id", sessionID, "expired", expired)
	}
	return expired, nil
}

// ExpireAll sweeps every session that currently has outstanding notifications.
func (s *waitlistService) ExpireAll(ctx context.Context) (int64, error) {
	sessionIDs, err := s.repo.SessionsWithNotified(ctx)
	if err != nil {
		return 0, apperrors.Internal("Failed to list sessions with notifications", err)
	}

	var total int64
	for _, id := range sessionIDs {
		n, err := s.ExpireStale(ctx, id)
		if err != nil {
			s.cfg.Log.Warn("Waitlist expiry failed for session", "session_id", id, "error", err)
			continue
		}
		total += n
	}
	return total, nil
}

func (s *waitlistService) Cancel(ctx context.Context, entryID string) error {
	if err := s.repo.Close(ctx, entryID, model.WaitlistCancelled, ""); err != nil {
		return s.entryError(entryID, err)
	}
	s.cfg.Log.Info("Waitlist entry cancelled", "entry_id", entryID)
	return nil
}

func (s *waitlistService) MarkConverted(ctx context.Context, entryID, bookingID string) error {
	if err := s.repo.Close(ctx, entryID, model.WaitlistConverted, bookingID); err != nil {
		return s.entryError(entryID, err)
	}
	s.cfg.Log.Info("Waitlist entry converted", "entry_id", entryID, "booking_id", bookingID)
	return nil
}

// ConvertForCustomer closes the customer's notified entry after they booked the session.
// Customers without a notified entry are left alone.
func (s *waitlistService) ConvertForCustomer(ctx context.Context, sessionID, email, bookingID string) error {
	entry, err := s.repo.FindActive(ctx, sessionID, sanitizer.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, waitlisterrors.ErrNotFound) {
			return nil
		}
		return apperrors.Internal("Failed to look up waitlist entry", err)
	}
	if entry.NotificationStatus != model.WaitlistNotified {
		return nil
	}
	return s.MarkConverted(ctx, entry.ID, bookingID)
}

func (s *waitlistService) ListBySession(ctx context.Context, sessionID string, limit int, offset int64) ([]*model.WaitlistEntry, int64, error) {
	var count int64
	var entries []*model.WaitlistEntry
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.CountBySession(ctx, sessionID)
	}()

	go func() {
		defer wg.Done()
		entries, errFind = s.repo.FindBySession(ctx, sessionID, limit, offset)
	}()

	wg.Wait()
	if errCount != nil {
		s.cfg.Log.Error("Failed to count waitlist entries", "session_id", sessionID, "error", errCount)
		return nil, 0, apperrors.Internal("Failed to count waitlist entries", errCount)
	}
	if errFind != nil {
		s.cfg.Log.Error("Failed to list waitlist entries", "session_id", sessionID, "error", errFind)
		return nil, 0, apperrors.Internal("Failed to retrieve waitlist entries", errFind)
	}
	return entries, count, nil
}

func (s *waitlistService) findActive(ctx context.Context, sessionID, email string) (*model.WaitlistEntry, error) {
	entry, err := s.repo.FindActive(ctx, sessionID, email)
	if err != nil {
		return nil, s.entryError(email, err)
	}
	return entry, nil
}

func (s *waitlistService) entryError(key string, err error) error {
	if errors.Is(err, waitlisterrors.ErrNotFound) {
		return apperrors.NotFoundWithCode(apperrors.CodeWaitlistEntryNotFound, "Waitlist entry", key)
	}
	return apperrors.Internal("Failed to update waitlist entry", err)
}
