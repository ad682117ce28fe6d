package service

import (
	"context"
	"errors"
	sessionerrors "tourbook/internal/sessions/errors"
	tourerrors "tourbook/internal/tours/errors"
	apperrors "tourbook/pkg/errors"
	"tourbook/pkg/model"
)

type sessionFinder interface {
	FindByID(ctx context.Context, id string) (*model.Session, error)
}

type tourFinder interface {
	FindByID(ctx context.Context, id string) (*model.Tour, error)
}

type sessionLookup struct {
	sessions sessionFinder
	tours    tourFinder
}

// NewSessionLookup adapts the session and tour repositories to SessionReader, mapping
// their sentinel errors to API errors.
func NewSessionLookup(sessions sessionFinder, tours tourFinder) SessionReader {
	return &sessionLookup{sessions: sessions, tours: tours}
}

func (l *sessionLookup) FindSession(ctx context.Context, id string) (*model.Session, error) {
	session, err := l.sessions.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sessionerrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithCode(apperrors.CodeSessionNotFound, "Session", id)
		}
		return nil, apperrors.Internal("Failed to retrieve session", err)
	}
	return session, nil
}

func (l *sessionLookup) FindTour(ctx context.Context, id string) (*model.Tour, error) {
	tour, err := l.tours.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, tourerrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithCode(apperrors.CodeTourNotFound, "Tour", id)
		}
		return nil, apperrors.Internal("Failed to retrieve tour", err)
	}
	return tour, nil
}
