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
)

const ScheduleCollectionName = "Schedules"

type mongoScheduleRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

type ScheduleRepository interface {
	Create(ctx context.Context, sc *model.Schedule) error
	FindByID(ctx context.Context, id string) (*model.Schedule, error)
	FindByTour(ctx context.Context, tourID string) ([]*model.Schedule, error)
}

func NewMongoScheduleRepository(cfg *config.Config) ScheduleRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoScheduleRepository{
		cfg:        cfg,
		collection: db.Collection(ScheduleCollectionName),
	}
}

func (r *mongoScheduleRepository) Create(ctx context.Context, sc *model.Schedule) error {
	ctx, cancel := pkgmongo.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	sc.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	if _, err := r.collection.InsertOne(ctx, sc); err != nil {
		return fmt.Errorf("failed to create schedule: %w", err)
	}
	return nil
}

func (r *mongoScheduleRepository) FindByID(ctx context.Context, id string) (*model.Schedule, error) {
	ctx, cancel := pkgmongo.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var sc model.Schedule
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&sc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", sessionerrors.ErrScheduleNotFound, id)
		}
		return nil, fmt.Errorf("failed to find schedule: %w", err)
	}
	return &sc, nil
}

func (r *mongoScheduleRepository) FindByTour(ctx context.Context, tourID string) ([]*model.Schedule, error) {
	ctx, cancel := pkgmongo.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	cursor, err := r.collection.Find(ctx, bson.M{"tour_id": tourID})
	if err != nil {
		return nil, fmt.Errorf("failed to find schedules: %w", err)
	}
	defer cursor.Close(ctx)

	var schedules []*model.Schedule
	if err = cursor.All(ctx, &schedules); err != nil {
		return nil, fmt.Errorf("failed to decode schedules: %w", err)
	}
	return schedules, nil
}
