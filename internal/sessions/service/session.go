package service

import (
	"context"
	"errors"
	"time"
	"tourbook/internal/capacity"
	sessionerrors "tourbook/internal/sessions/errors"
	"tourbook/internal/sessions/repository"
	"tourbook/internal/sessions/validator"
	tourerrors "tourbook/internal/tours/errors"
	"tourbook/pkg/config"
	apperrors "tourbook/pkg/errors"
	"tourbook/pkg/model"
	"tourbook/pkg/sanitizer"

	"github.com/google/uuid"
)

const resyncAttempts = 5

// TourReader is the slice of the tour store the session service needs.
type TourReader interface {
	FindByID(ctx context.Context, id string) (*model.Tour, error)
}

type GenerateResult struct {
	Created []*model.Session `json:"created"`
	Skipped int              `json:"skipped"`
}

type SessionService interface {
	CreateSchedule(ctx context.Context, sc *model.Schedule) error
	// Generate materializes sessions for every schedule of the tour inside [from, to].
	// Dates that already have a session are skipped. A ttl of zero uses the configured
	// default.
	Generate(ctx context.Context, tourID string, from, to time.Time, ttl time.Duration) (*GenerateResult, error)
	NeedsGeneration(ctx context.Context, tourID string, from, to time.Time) (bool, error)
	EnsureGenerated(ctx context.Context, tourID string, from, to time.Time) (*GenerateResult, error)
	Activate(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*model.Session, error)
	ListByTour(ctx context.Context, tourID string, from, to time.Time) ([]*model.Session, error)
	GetCapacity(ctx context.Context, id string) (*model.Capacity, error)
	ResyncCapacity(ctx context.Context, id string) (*model.Capacity, error)
}

type sessionService struct {
	repo      repository.SessionRepository
	schedules repository.ScheduleRepository
	tours     TourReader
	validator *validator.ScheduleValidator
	cfg       *config.Config
	now       func() time.Time
}

func NewSessionService(
	repo repository.SessionRepository,
	schedules repository.ScheduleRepository,
	tours TourReader,
	validator *validator.ScheduleValidator,
	cfg *config.Config,
) SessionService {
	return &sessionService{
		repo:      repo,
		schedules: schedules,
		tours:     tours,
		validator: validator,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *sessionService) CreateSchedule(ctx context.Context, sc *model.Schedule) error {
	sc.Dates = sanitizer.NormalizeDates(sc.Dates)
	sc.RRule = sanitizer.TrimAndNormalize(sc.RRule)
	sc.Template.Announcements = sanitizer.NormalizeAnnouncements(sc.Template.Announcements)
	if sc.ID == "" {
		sc.ID = uuid.NewString()
	}

	if err := s.validator.Validate(sc); err != nil {
		s.cfg.Log.Warn("Schedule validation failed", "tour_id", sc.TourID, "error", err)
		return apperrors.Validation("Schedule validation failed", map[string]any{"error": err.Error()})
	}

	if _, err := s.tours.FindByID(ctx, sc.TourID); err != nil {
		return s.tourError(sc.TourID, err)
	}

	if err := s.schedules.Create(ctx, sc); err != nil {
		s.cfg.Log.Error("Failed to create schedule", "tour_id", sc.TourID, "error", err)
		return apperrors.Internal("Failed to create schedule", err)
	}

	s.cfg.Log.Info("Schedule created successfully",
		"id", sc.ID,
		"tour_id", sc.TourID,
		"explicit_dates", len(sc.Dates),
		"rrule", sc.RRule,
	)
	return nil
}

func (s *sessionService) Generate(ctx context.Context, tourID string, from, to time.Time, ttl time.Duration) (*GenerateResult, error) {
	if tourID == "" {
		return nil, apperrors.InvalidInput("Tour ID cannot be empty")
	}
	if to.Before(from) {
		return nil, apperrors.InvalidInput(sessionerrors.ErrInvalidRange.Error())
	}
	if ttl <= 0 {
		ttl = s.cfg.SessionTTL
	}

	schedules, err := s.schedules.FindByTour(ctx, tourID)
	if err != nil {
		s.cfg.Log.Error("Failed to load schedules", "tour_id", tourID, "error", err)
		return nil, apperrors.Internal("Failed to load schedules", err)
	}

	result := &GenerateResult{Created: []*model.Session{}}
	for _, sc := range schedules {
		dates, err := ResolveDates(sc, from, to)
		if err != nil {
			s.cfg.Log.Warn("Skipping schedule with unusable recurrence",
				"schedule_id", sc.ID,
				"tour_id", tourID,
				"error", err,
			)
			continue
		}
		if len(dates) == 0 {
			continue
		}

		existing, err := s.repo.ExistingDates(ctx, tourID, sc.ID, dates[0], dates[len(dates)-1])
		if err != nil {
			return nil, apperrors.Internal("Failed to check existing sessions", err)
		}

		for _, date := range dates {
			if _, ok := existing[date]; ok {
				result.Skipped++
				continue
			}

			session := s.newSession(sc, date, ttl)
			if err := s.repo.Create(ctx, session); err != nil {
				if errors.Is(err, sessionerrors.ErrDuplicate) {
					s.cfg.Log.Info("Session created concurrently, skipping",
						"tour_id", tourID,
						"schedule_id", sc.ID,
						"date", date,
					)
					result.Skipped++
					continue
				}
				s.cfg.Log.Warn("Failed to create session",
					"tour_id", tourID,
					"schedule_id", sc.ID,
					"date", date,
					"error", err,
				)
				continue
			}
			result.Created = append(result.Created, session)
		}
	}

	s.cfg.Log.Info("Sessions generated",
		"tour_id", tourID,
		"from", from.Format(model.DateLayout),
		"to", to.Format(model.DateLayout),
		"created", len(result.Created),
		"skipped", result.Skipped,
	)
	return result, nil
}

func (s *sessionService) newSession(sc *model.Schedule, date string, ttl time.Duration) *model.Session {
	expiresAt := s.now().UTC().Add(ttl)
	return &model.Session{
		ID:         uuid.NewString(),
		TourID:     sc.TourID,
		ScheduleID: sc.ID,
		Date:       date,
		StartTime:  sc.Template.StartTime,
		EndTime:    sc.Template.EndTime,
		TimeZone:   sc.TimeZone,
		Capacity: model.Capacity{
			Max:       sc.Template.MaxCapacity,
			Current:   0,
			Remaining: sc.Template.MaxCapacity,
			Mode:      sc.Template.Mode,
		},
		Bookings:       []model.SessionBooking{},
		ActivityListID: sc.Template.ActivityListID,
		Announcements:  sc.Template.Announcements,
		ExpiresAt:      &expiresAt,
		Version:        1,
	}
}

func (s *sessionService) NeedsGeneration(ctx context.Context, tourID string, from, to time.Time) (bool, error) {
	exists, err := s.repo.ExistsInRange(ctx, tourID, from.Format(model.DateLayout), to.Format(model.DateLayout))
	if err != nil {
		return false, apperrors.Internal("Failed to probe sessions", err)
	}
	return !exists, nil
}

// EnsureGenerated generates only when the range has no sessions at all.
func (s *sessionService) EnsureGenerated(ctx context.Context, tourID string, from, to time.Time) (*GenerateResult, error) {
	needed, err := s.NeedsGeneration(ctx, tourID, from, to)
	if err != nil {
		return nil, err
	}
	if !needed {
		return &GenerateResult{Created: []*model.Session{}}, nil
	}
	return s.Generate(ctx, tourID, from, to, 0)
}

func (s *sessionService) Activate(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Session ID cannot be empty")
	}
	if err := s.repo.Activate(ctx, id); err != nil {
		return s.sessionError(id, err)
	}
	s.cfg.Log.Info("Session activated", "id", id)
	return nil
}

func (s *sessionService) GetByID(ctx context.Context, id string) (*model.Session, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Session ID cannot be empty")
	}
	session, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.sessionError(id, err)
	}
	return session, nil
}

func (s *sessionService) ListByTour(ctx context.Context, tourID string, from, to time.Time) ([]*model.Session, error) {
	if to.Before(from) {
		return nil, apperrors.InvalidInput(sessionerrors.ErrInvalidRange.Error())
	}
	sessions, err := s.repo.FindByTour(ctx, tourID, from.Format(model.DateLayout), to.Format(model.DateLayout))
	if err != nil {
		return nil, apperrors.Internal("Failed to list sessions", err)
	}
	return sessions, nil
}

// GetCapacity recalculates occupancy from the stored booking summaries rather than
// trusting the persisted counters.
func (s *sessionService) GetCapacity(ctx context.Context, id string) (*model.Capacity, error) {
	session, tour, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	c := capacity.Calculate(session, tour)
	return &c, nil
}

// ResyncCapacity rewrites the persisted counters when they drift from the booking
// summaries, retrying with a fresh read whenever another writer wins the version race.
func (s *sessionService) ResyncCapacity(ctx context.Context, id string) (*model.Capacity, error) {
	for attempt := 1; attempt <= resyncAttempts; attempt++ {
		session, tour, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}

		c := capacity.Calculate(session, tour)
		if c == session.Capacity {
			return &c, nil
		}

		_, err = s.repo.UpdateCapacity(ctx, session.ID, session.Version, c, session.Bookings)
		if err == nil {
			s.cfg.Log.Info("Session capacity resynced",
				"id", id,
				"current", c.Current,
				"remaining", c.Remaining,
				"attempt", attempt,
			)
			return &c, nil
		}
		if !errors.Is(err, sessionerrors.ErrVersionConflict) {
			return nil, apperrors.Internal("Failed to write session capacity", err)
		}
		s.cfg.Log.Debug("Capacity resync lost version race, retrying", "id", id, "attempt", attempt)
	}

	return nil, apperrors.ConcurrentModification("Session", sessionerrors.ErrVersionConflict)
}

func (s *sessionService) load(ctx context.Context, id string) (*model.Session, *model.Tour, error) {
	session, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	tour, err := s.tours.FindByID(ctx, session.TourID)
	if err != nil {
		return nil, nil, s.tourError(session.TourID, err)
	}
	return session, tour, nil
}

func (s *sessionService) sessionError(id string, err error) error {
	if errors.Is(err, sessionerrors.ErrNotFound) {
		return apperrors.NotFoundWithCode(apperrors.CodeSessionNotFound, "Session", id)
	}
	s.cfg.Log.Error("Session lookup failed", "id", id, "error", err)
	return apperrors.Internal("Failed to retrieve session", err)
}

func (s *sessionService) tourError(id string, err error) error {
	if errors.Is(err, tourerrors.ErrNotFound) {
		return apperrors.NotFoundWithCode(apperrors.CodeTourNotFound, "Tour", id)
	}
	return apperrors.Internal("Failed to retrieve tour", err)
}
