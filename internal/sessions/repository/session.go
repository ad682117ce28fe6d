package repository

import (
	"context"
	"errors"
	"fmt"
	"time"
	sessionerrors "tourbook/internal/sessions/errors"
	"tourbook/pkg/config"
	pkgmongo "tourbook/pkg/db/mongo"
	"tourbook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Sessions"
)

type mongoSessionRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

type SessionRepository interface {
	Create(ctx context.Context, session *model.Session) error
	FindByID(ctx context.Context, id string) (*model.Session, error)
	FindByTour(ctx context.Context, tourID, fromDate, toDate string) ([]*model.Session, error)
	// ExistingDates returns the dates in [fromDate, toDate] that already have a session
	// for the schedule.
	ExistingDates(ctx context.Context, tourID, scheduleID, fromDate, toDate string) (map[string]struct{}, error)
	ExistsInRange(ctx context.Context, tourID, fromDate, toDate string) (bool, error)
	// UpdateCapacity writes capacity and booking summaries only if the stored version
	// still equals version, and returns the new version. ErrVersionConflict otherwise.
	// A session holding bookings loses its expiry.
	UpdateCapacity(ctx context.Context, id string, version int64, capacity model.Capacity, bookings []model.SessionBooking) (int64, error)
	Activate(ctx context.Context, id string) error
}

func NewMongoSessionRepository(cfg *config.Config) SessionRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoSessionRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoSessionRepository) Create(ctx context.Context, session *model.Session) error {
	ctx, cancel := pkgmongo.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	session.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	if _, err := r.collection.InsertOne(ctx, session); err != nil {
		if pkgmongo.IsDuplicateKey(err) {
			return fmt.Errorf("%w: %s %s", sessionerrors.ErrDuplicate, session.TourID, session.Date)
		}
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (r *mongoSessionRepository) FindByID(ctx context.Context, id string) (*model.Session, error) {
	ctx, cancel := pkgmongo.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var session model.Session
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", sessionerrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	return &session, nil
}

func (r *mongoSessionRepository) FindByTour(ctx context.Context, tourID, fromDate, toDate string) ([]*model.Session, error) {
	ctx, cancel := pkgmongo.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{
		{Key: "date", Value: 1},
		{Key: "start_time", Value: 1},
	})

	cursor, err := r.collection.Find(ctx, rangeFilter(tourID, fromDate, toDate), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find sessions: %w", err)
	}
	defer cursor.Close(ctx)

	var sessions []*model.Session
	if err = cursor.All(ctx, &sessions); err != nil {
		return nil, fmt.Errorf("failed to decode sessions: %w", err)
	}
	return sessions, nil
}

func (r *mongoSessionRepository) ExistingDates(ctx context.Context, tourID, scheduleID, fromDate, toDate string) (map[string]struct{}, error) {
	ctx, cancel := pkgmongo.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := rangeFilter(tourID, fromDate, toDate)
	filter["schedule_id"] = scheduleID

	dates, err := r.collection.Distinct(ctx, "date", filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list session dates: %w", err)
	}

	existing := make(map[string]struct{}, len(dates))
	for _, d := range dates {
		if s, ok := d.(string); ok {
			existing[s] = struct{}{}
		}
	}
	return existing, nil
}

func (r *mongoSessionRepository) ExistsInRange(ctx context.Context, tourID, fromDate, toDate string) (bool, error) {
	ctx, cancel := pkgmongo.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, rangeFilter(tourID, fromDate, toDate), options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to probe sessions: %w", err)
	}
	return count > 0, nil
}

func (r *mongoSessionRepository) UpdateCapacity(
	ctx context.Context,
	id string,
	version int64,
	capacity model.Capacity,
	bookings []model.SessionBooking,
) (int64, error) {
	ctx, cancel := pkgmongo.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if bookings == nil {
		bookings = []model.SessionBooking{}
	}

	filter := bson.M{"_id": id, "version": version}
	update := bson.M{
		"$set": bson.M{
			"capacity": capacity,
			"bookings": bookings,
		},
		"$inc": bson.M{"version": 1},
	}
	if len(bookings) > 0 {
		update["$unset"] = bson.M{"expires_at": ""}
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("failed to update session capacity: %w", err)
	}
	if result.MatchedCount == 0 {
		return 0, fmt.Errorf("%w: %s at version %d", sessionerrors.ErrVersionConflict, id, version)
	}
	return version + 1, nil
}

func (r *mongoSessionRepository) Activate(ctx context.Context, id string) error {
	ctx, cancel := pkgmongo.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$unset": bson.M{"expires_at": ""}})
	if err != nil {
		return fmt.Errorf("failed to activate session: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", sessionerrors.ErrNotFound, id)
	}
	return nil
}

func rangeFilter(tourID, fromDate, toDate string) bson.M {
	return bson.M{
		"tour_id": tourID,
		"date":    bson.M{"$gte": fromDate, "$lte": toDate},
	}
}
