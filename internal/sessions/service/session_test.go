package service

import (
	"context"
	"fmt"
	"testing"
	"time"
	"tourbook/internal/sessions/validator"
	"tourbook/pkg/config"
	apperrors "tourbook/pkg/errors"
	"tourbook/pkg/logger"
	"tourbook/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func day(s string) time.Time {
	t, err := time.Parse(model.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func template() model.ScheduleTemplate {
	return model.ScheduleTemplate{
		MaxCapacity: 10,
		Mode:        model.PerPerson,
		StartTime:   "09:00",
		EndTime:     "11:00",
	}
}

func newTestService(sessions *memorySessions, schedules *memorySchedules, tours staticTours) *sessionService {
	log := logger.Discard()
	return &sessionService{
		repo:      sessions,
		schedules: schedules,
		tours:     tours,
		validator: validator.NewScheduleValidator(log),
		cfg:       &config.Config{Log: log, SessionTTL: 7 * 24 * time.Hour},
		now:       func() time.Time { return fixedNow },
	}
}

func TestGenerate_IsIdempotent(t *testing.T) {
	sessions := newMemorySessions()
	schedules := &memorySchedules{items: []*model.Schedule{{
		ID:       "sched-1",
		TourID:   "tour-1",
		Dates:    []string{"2026-03-02", "2026-03-03", "2026-03-04", "2026-04-01"},
		Template: template(),
	}}}
	svc := newTestService(sessions, schedules, nil)
	ctx := context.Background()

	first, err := svc.Generate(ctx, "tour-1", day("2026-03-01"), day("2026-03-31"), 0)
	require.NoError(t, err)
	assert.Len(t, first.Created, 3)
	assert.Equal(t, 0, first.Skipped)

	second, err := svc.Generate(ctx, "tour-1", day("2026-03-01"), day("2026-03-31"), 0)
	require.NoError(t, err)
	assert.Empty(t, second.Created)
	assert.Equal(t, 3, second.Skipped)
	assert.Equal(t, 3, sessions.count())
}

func TestGenerate_SessionShape(t *testing.T) {
	sessions := newMemorySessions()
	tmpl := template()
	tmpl.ActivityListID = "list-1"
	tmpl.Announcements = []string{"Meet at the north gate"}
	schedules := &memorySchedules{items: []*model.Schedule{{
		ID: "sched-1", TourID: "tour-1", Dates: []string{"2026-03-02"}, Template: tmpl,
	}}}
	svc := newTestService(sessions, schedules, nil)

	result, err := svc.Generate(context.Background(), "tour-1", day("2026-03-02"), day("2026-03-02"), 30*24*time.Hour)
	require.NoError(t, err)
	require.Len(t, result.Created, 1)

	s := result.Created[0]
	assert.Equal(t, "2026-03-02", s.Date)
	assert.Equal(t, "09:00", s.StartTime)
	assert.Equal(t, "11:00", s.EndTime)
	assert.Equal(t, model.Capacity{Max: 10, Current: 0, Remaining: 10, Mode: model.PerPerson}, s.Capacity)
	assert.Equal(t, "list-1", s.ActivityListID)
	assert.Equal(t, []string{"Meet at the north gate"}, s.Announcements)
	assert.Empty(t, s.Bookings)
	require.NotNil(t, s.ExpiresAt)
	assert.Equal(t, fixedNow.Add(30*24*time.Hour), *s.ExpiresAt)
}

func TestGenerate_DefaultTTL(t *testing.T) {
	schedules := &memorySchedules{items: []*model.Schedule{{
		ID: "sched-1", TourID: "tour-1", Dates: []string{"2026-03-02"}, Template: template(),
	}}}
	svc := newTestService(newMemorySessions(), schedules, nil)

	result, err := svc.Generate(context.Background(), "tour-1", day("2026-03-01"), day("2026-03-05"), 0)
	require.NoError(t, err)
	require.Len(t, result.Created, 1)
	assert.Equal(t, fixedNow.Add(7*24*time.Hour), *result.Created[0].ExpiresAt)
}

func TestGenerate_CreateFailuresAreNotFatal(t *testing.T) {
	sessions := newMemorySessions()
	sessions.createFn = func(s *model.Session) error {
		if s.Date == "2026-03-03" {
			return fmt.Errorf("write concern timeout")
		}
		return nil
	}
	schedules := &memorySchedules{items: []*model.Schedule{{
		ID: "sched-1", TourID: "tour-1", Dates: []string{"2026-03-02", "2026-03-03", "2026-03-04"}, Template: template(),
	}}}
	svc := newTestService(sessions, schedules, nil)

	result, err := svc.Generate(context.Background(), "tour-1", day("2026-03-01"), day("2026-03-31"), 0)
	require.NoError(t, err)
	assert.Len(t, result.Created, 2)
}

func TestGenerate_RecurrenceRule(t *testing.T) {
	schedules := &memorySchedules{items: []*model.Schedule{{
		ID:       "sched-1",
		TourID:   "tour-1",
		RRule:    "RRULE:FREQ=WEEKLY;BYDAY=MO,WE",
		TimeZone: "Europe/Lisbon",
		Template: template(),
	}}}
	svc := newTestService(newMemorySessions(), schedules, nil)

	// 2026-03-02 is a Monday.
	result, err := svc.Generate(context.Background(), "tour-1", day("2026-03-02"), day("2026-03-15"), 0)
	require.NoError(t, err)

	var dates []string
	for _, s := range result.Created {
		dates = append(dates, s.Date)
	}
	assert.ElementsMatch(t, []string{"2026-03-02", "2026-03-04", "2026-03-09", "2026-03-11"}, dates)
}

func TestGenerate_RuleAnchorIgnoresWindowStart(t *testing.T) {
	sessions := newMemorySessions()
	schedules := &memorySchedules{items: []*model.Schedule{{
		ID:        "sched-1",
		TourID:    "tour-1",
		RRule:     "RRULE:FREQ=WEEKLY",
		Template:  template(),
		CreatedAt: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	}}}
	svc := newTestService(sessions, schedules, nil)
	ctx := context.Background()

	// Windows open on a Monday and then on a Tuesday.
	_, err := svc.Generate(ctx, "tour-1", day("2026-03-02"), day("2026-03-15"), 0)
	require.NoError(t, err)
	second, err := svc.Generate(ctx, "tour-1", day("2026-03-03"), day("2026-03-22"), 0)
	require.NoError(t, err)
	require.Len(t, second.Created, 1)
	assert.Equal(t, "2026-03-16", second.Created[0].Date)

	all, err := sessions.FindByTour(ctx, "tour-1", "2026-03-01", "2026-03-31")
	require.NoError(t, err)
	assert.Len(t, all, 3)
	for _, s := range all {
		assert.Equal(t, time.Monday, day(s.Date).Weekday(), s.Date)
	}
}

func TestResolveDates_CountRunsFromValidFrom(t *testing.T) {
	validFrom := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	sc := &model.Schedule{
		RRule:     "FREQ=DAILY;COUNT=3",
		ValidFrom: &validFrom,
		Template:  template(),
	}

	dates, err := ResolveDates(sc, day("2026-03-01"), day("2026-03-10"))
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-03-02", "2026-03-03", "2026-03-04"}, dates)

	later, err := ResolveDates(sc, day("2026-03-05"), day("2026-03-10"))
	require.NoError(t, err)
	assert.Empty(t, later)

	every, err := ResolveDates(&model.Schedule{
		RRule:     "FREQ=DAILY;INTERVAL=2",
		ValidFrom: &validFrom,
		Template:  template(),
	}, day("2026-03-03"), day("2026-03-08"))
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-03-04", "2026-03-06", "2026-03-08"}, every)
}

func TestGenerate_RejectsInvertedRange(t *testing.T) {
	svc := newTestService(newMemorySessions(), &memorySchedules{}, nil)
	_, err := svc.Generate(context.Background(), "tour-1", day("2026-03-10"), day("2026-03-01"), 0)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput))
}

func TestEnsureGenerated_SkipsPopulatedRange(t *testing.T) {
	sessions := newMemorySessions()
	schedules := &memorySchedules{items: []*model.Schedule{{
		ID: "sched-1", TourID: "tour-1", Dates: []string{"2026-03-02", "2026-03-03"}, Template: template(),
	}}}
	svc := newTestService(sessions, schedules, nil)
	ctx := context.Background()

	needed, err := svc.NeedsGeneration(ctx, "tour-1", day("2026-03-01"), day("2026-03-31"))
	require.NoError(t, err)
	assert.True(t, needed)

	result, err := svc.EnsureGenerated(ctx, "tour-1", day("2026-03-01"), day("2026-03-31"))
	require.NoError(t, err)
	assert.Len(t, result.Created, 2)

	needed, err = svc.NeedsGeneration(ctx, "tour-1", day("2026-03-01"), day("2026-03-31"))
	require.NoError(t, err)
	assert.False(t, needed)

	result, err = svc.EnsureGenerated(ctx, "tour-1", day("2026-03-01"), day("2026-03-31"))
	require.NoError(t, err)
	assert.Empty(t, result.Created)
}

func TestActivate_ClearsExpiry(t *testing.T) {
	sessions := newMemorySessions()
	expires := fixedNow.Add(time.Hour)
	require.NoError(t, sessions.Create(context.Background(), &model.Session{ID: "s1", TourID: "t", Date: "2026-03-02", ExpiresAt: &expires}))
	svc := newTestService(sessions, &memorySchedules{}, nil)

	require.NoError(t, svc.Activate(context.Background(), "s1"))
	s, err := svc.GetByID(context.Background(), "s1")
	require.NoError(t, err)
	assert.Nil(t, s.ExpiresAt)

	err = svc.Activate(context.Background(), "missing")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeSessionNotFound))
}

func capacityFixture(t *testing.T) (*memorySessions, staticTours) {
	t.Helper()
	tour := &model.Tour{ID: "tour-1", Variants: []model.TicketVariant{
		{ID: "adult", PeopleCount: 1},
		{ID: "family", PeopleCount: 4},
	}}
	sessions := newMemorySessions()
	require.NoError(t, sessions.Create(context.Background(), &model.Session{
		ID:       "s1",
		TourID:   "tour-1",
		Date:     "2026-03-02",
		Capacity: model.Capacity{Max: 10, Current: 0, Remaining: 10, Mode: model.PerPerson},
		Bookings: []model.SessionBooking{
			{BookingID: "b1", Tickets: []model.TicketLine{{VariantID: "family", Quantity: 1}}},
			{BookingID: "b2", Tickets: []model.TicketLine{{VariantID: "adult", Quantity: 2}}},
		},
		Version: 3,
	}))
	return sessions, staticTours{"tour-1": tour}
}

func TestGetCapacity_Recalculates(t *testing.T) {
	sessions, tours := capacityFixture(t)
	svc := newTestService(sessions, &memorySchedules{}, tours)

	c, err := svc.GetCapacity(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 6, c.Current)
	assert.Equal(t, 4, c.Remaining)
}

func TestResyncCapacity_RetriesOnVersionConflict(t *testing.T) {
	sessions, tours := capacityFixture(t)
	conflicts := 2
	sessions.updateFn = func(string, int64) error {
		if conflicts > 0 {
			conflicts--
			sessions.mu.Lock()
			sessions.byID["s1"].Version++
			sessions.mu.Unlock()
		}
		return nil
	}
	svc := newTestService(sessions, &memorySchedules{}, tours)

	c, err := svc.ResyncCapacity(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 6, c.Current)

	stored, err := sessions.FindByID(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 6, stored.Capacity.Current)
	assert.Equal(t, int64(6), stored.Version)
}

func TestResyncCapacity_GivesUp(t *testing.T) {
	sessions, tours := capacityFixture(t)
	sessions.updateFn = func(string, int64) error {
		sessions.mu.Lock()
		sessions.byID["s1"].Version++
		sessions.mu.Unlock()
		return nil
	}
	svc := newTestService(sessions, &memorySchedules{}, tours)

	_, err := svc.ResyncCapacity(context.Background(), "s1")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConcurrentModification))
}

func TestCreateSchedule_Validates(t *testing.T) {
	tours := staticTours{"tour-1": {ID: "tour-1"}}
	schedules := &memorySchedules{}
	svc := newTestService(newMemorySessions(), schedules, tours)
	ctx := context.Background()

	err := svc.CreateSchedule(ctx, &model.Schedule{TourID: "tour-1", Template: template()})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation), "dates or rrule required")

	err = svc.CreateSchedule(ctx, &model.Schedule{TourID: "tour-1", RRule: "FREQ=SOMETIMES", Template: template()})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	err = svc.CreateSchedule(ctx, &model.Schedule{TourID: "missing", Dates: []string{"2026-03-02"}, Template: template()})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeTourNotFound))

	tmpl := template()
	tmpl.Announcements = []string{"  Bring   water ", "Bring water", ""}
	sc := &model.Schedule{TourID: "tour-1", RRule: "FREQ=DAILY", Template: tmpl}
	require.NoError(t, svc.CreateSchedule(ctx, sc))
	assert.NotEmpty(t, sc.ID)
	assert.Equal(t, []string{"Bring water"}, sc.Template.Announcements)
	assert.Len(t, schedules.items, 1)
}
