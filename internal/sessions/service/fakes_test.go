package service

import (
	"context"
	"fmt"
	"sync"
	sessionerrors "tourbook/internal/sessions/errors"
	tourerrors "tourbook/internal/tours/errors"
	"tourbook/pkg/model"
)

type memorySessions struct {
	mu       sync.Mutex
	byID     map[string]*model.Session
	createFn func(s *model.Session) error
	updateFn func(id string, version int64) error
}

func newMemorySessions() *memorySessions {
	return &memorySessions{byID: make(map[string]*model.Session)}
}

func sessionKey(s *model.Session) string {
	return s.Date + "|" + s.ScheduleID + "|" + s.TourID
}

func (m *memorySessions) Create(_ context.Context, s *model.Session) error {
	if m.createFn != nil {
		if err := m.createFn(s); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if sessionKey(existing) == sessionKey(s) {
			return fmt.Errorf("%w: %s", sessionerrors.ErrDuplicate, s.Date)
		}
	}
	copied := *s
	m.byID[s.ID] = &copied
	return nil
}

func (m *memorySessions) FindByID(_ context.Context, id string) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", sessionerrors.ErrNotFound, id)
	}
	copied := *s
	return &copied, nil
}

func (m *memorySessions) FindByTour(_ context.Context, tourID, from, to string) ([]*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Session
	for _, s := range m.byID {
		if s.TourID == tourID && s.Date >= from && s.Date <= to {
			copied := *s
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *memorySessions) ExistingDates(_ context.Context, tourID, scheduleID, from, to string) (map[string]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]struct{})
	for _, s := range m.byID {
		if s.TourID == tourID && s.ScheduleID == scheduleID && s.Date >= from && s.Date <= to {
			out[s.Date] = struct{}{}
		}
	}
	return out, nil
}

func (m *memorySessions) ExistsInRange(ctx context.Context, tourID, from, to string) (bool, error) {
	found, err := m.FindByTour(ctx, tourID, from, to)
	return len(found) > 0, err
}

func (m *memorySessions) UpdateCapacity(_ context.Context, id string, version int64, c model.Capacity, bookings []model.SessionBooking) (int64, error) {
	if m.updateFn != nil {
		if err := m.updateFn(id, version); err != nil {
			return 0, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok || s.Version != version {
		return 0, fmt.Errorf("%w: %s", sessionerrors.ErrVersionConflict, id)
	}
	s.Capacity = c
	s.Bookings = bookings
	if len(bookings) > 0 {
		s.ExpiresAt = nil
	}
	s.Version++
	return s.Version, nil
}

func (m *memorySessions) Activate(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", sessionerrors.ErrNotFound, id)
	}
	s.ExpiresAt = nil
	return nil
}

func (m *memorySessions) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

type memorySchedules struct {
	items []*model.Schedule
}

func (m *memorySchedules) Create(_ context.Context, sc *model.Schedule) error {
	m.items = append(m.items, sc)
	return nil
}

func (m *memorySchedules) FindByID(_ context.Context, id string) (*model.Schedule, error) {
	for _, sc := range m.items {
		if sc.ID == id {
			return sc, nil
		}
	}
	return nil, sessionerrors.ErrScheduleNotFound
}

func (m *memorySchedules) FindByTour(_ context.Context, tourID string) ([]*model.Schedule, error) {
	var out []*model.Schedule
	for _, sc := range m.items {
		if sc.TourID == tourID {
			out = append(out, sc)
		}
	}
	return out, nil
}

type staticTours map[string]*model.Tour

func (t staticTours) FindByID(_ context.Context, id string) (*model.Tour, error) {
	tour, ok := t[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", tourerrors.ErrNotFound, id)
	}
	return tour, nil
}
