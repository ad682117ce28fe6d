package repository

import (
	"context"
	"errors"
	"fmt"
	"time"
	bookingerrors "tourbook/internal/bookings/errors"
	"tourbook/pkg/config"
	pkgmongo "tourbook/pkg/db/mongo"
	"tourbook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Bookings"
)

type mongoBookingRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

type BookingRepository interface {
	Create(ctx context.Context, booking *model.Booking) error
	FindByID(ctx context.Context, id string) (*model.Booking, error)
	FindBySession(ctx context.Context, sessionID string, limit int, offset int64) ([]*model.Booking, error)
	CountBySession(ctx context.Context, sessionID string) (int64, error)
	// Update replaces the stored booking only while its status still equals expected.
	Update(ctx context.Context, booking *model.Booking, expected model.BookingStatus) error
	Delete(ctx context.Context, id string) error
}

func NewMongoBookingRepository(cfg *config.Config) BookingRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookingRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	ctx, cancel := pkgmongo.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if _, err := r.collection.InsertOne(ctx, booking); err != nil {
		if pkgmongo.IsDuplicateKey(err) {
			return fmt.Errorf("%w: %s", bookingerrors.ErrDuplicateCode, booking.Code)
		}
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

func (r *mongoBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	ctx, cancel := pkgmongo.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var booking model.Booking
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", bookingerrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}
	return &booking, nil
}

func (r *mongoBookingRepository) FindBySession(ctx context.Context, sessionID string, limit int, offset int64) ([]*model.Booking, error) {
	ctx, cancel := pkgmongo.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, bson.M{"assignments.session_id": sessionID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var bookings []*model.Booking
	if err := cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}
	return bookings, nil
}

func (r *mongoBookingRepository) CountBySession(ctx context.Context, sessionID string) (int64, error) {
	ctx, cancel := pkgmongo.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{"assignments.session_id": sessionID})
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return count, nil
}

func (r *mongoBookingRepository) Update(ctx context.Context, booking *model.Booking, expected model.BookingStatus) error {
	ctx, cancel := pkgmongo.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{"_id": booking.ID, "status": expected}
	result, err := r.collection.ReplaceOne(ctx, filter, booking)
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", bookingerrors.ErrStatusChanged, booking.ID)
	}
	return nil
}

func (r *mongoBookingRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := pkgmongo.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("%w: %s", bookingerrors.ErrNotFound, id)
	}
	return nil
}

// createdAt truncates to what Mongo stores so round-tripped documents compare equal.
func createdAt() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
