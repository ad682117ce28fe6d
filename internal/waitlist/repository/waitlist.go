package repository

import (
	"context"
	"errors"
	"fmt"
	"time"
	waitlisterrors "tourbook/internal/waitlist/errors"
	"tourbook/pkg/config"
	pkgmongo "tourbook/pkg/db/mongo"
	"tourbook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const CollectionName = "WaitlistEntries"

var (
	queuedStatuses = []model.NotificationStatus{model.WaitlistPending, model.WaitlistNotified}
	queueOrder     = bson.D{{Key: "priority", Value: 1}, {Key: "_id", Value: 1}}
)

type WaitlistRepository interface {
	Create(ctx context.Context, entry *model.WaitlistEntry) error
	FindByID(ctx context.Context, id string) (*model.WaitlistEntry, error)
	FindActive(ctx context.Context, sessionID, email string) (*model.WaitlistEntry, error)
	FindBySession(ctx context.Context, sessionID string, limit int, offset int64) ([]*model.WaitlistEntry, error)
	CountBySession(ctx context.Context, sessionID string) (int64, error)
	// CountAhead counts queued entries of the same session served before entry.
	CountAhead(ctx context.Context, entry *model.WaitlistEntry) (int64, error)
	// ClaimNextPending atomically moves the oldest PENDING entry to NOTIFIED and returns
	// it, or nil when the queue holds no pending entries.
	ClaimNextPending(ctx context.Context, sessionID string, notifiedAt, expiresAt time.Time) (*model.WaitlistEntry, error)
	ExpireNotified(ctx context.Context, sessionID string, now time.Time) (int64, error)
	SessionsWithNotified(ctx context.Context) ([]string, error)
	Close(ctx context.Context, id string, status model.NotificationStatus, bookingID string) error
}

type mongoWaitlistRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoWaitlistRepository(cfg *config.Config) WaitlistRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoWaitlistRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoWaitlistRepository) Create(ctx context.Context, entry *model.WaitlistEntry) error {
	ctx, cancel := pkgmongo.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if _, err := r.collection.InsertOne(ctx, entry); err != nil {
		if pkgmongo.IsDuplicateKey(err) {
			return fmt.Errorf("%w: %s", waitlisterrors.ErrAlreadyJoined, entry.SessionID)
		}
		return fmt.Errorf("failed to create waitlist entry: %w", err)
	}
	return nil
}

func (r *mongoWaitlistRepository) FindByID(ctx context.Context, id string) (*model.WaitlistEntry, error) {
	return r.findOne(ctx, bson.M{"_id": id}, id)
}

func (r *mongoWaitlistRepository) FindActive(ctx context.Context, sessionID, email string) (*model.WaitlistEntry, error) {
	return r.findOne(ctx, bson.M{
		"session_id":     sessionID,
		"customer_email": email,
		"active":         true,
	}, email)
}

func (r *mongoWaitlistRepository) findOne(ctx context.Context, filter bson.M, key string) (*model.WaitlistEntry, error) {
	ctx, cancel := pkgmongo.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var entry model.WaitlistEntry
	if err := r.collection.FindOne(ctx, filter).Decode(&entry); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", waitlisterrors.ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to find waitlist entry: %w", err)
	}
	return &entry, nil
}

func (r *mongoWaitlistRepository) FindBySession(ctx context.Context, sessionID string, limit int, offset int64) ([]*model.WaitlistEntry, error) {
	ctx, cancel := pkgmongo.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(queueOrder).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, bson.M{"session_id": sessionID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find waitlist entries: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []*model.WaitlistEntry
	if err = cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode waitlist entries: %w", err)
	}
	return entries, nil
}

func (r *mongoWaitlistRepository) CountBySession(ctx context.Context, sessionID string) (int64, error) {
	ctx, cancel := pkgmongo.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{"session_id": sessionID})
	if err != nil {
		return 0, fmt.Errorf("failed to count waitlist entries: %w", err)
	}
	return count, nil
}

func (r *mongoWaitlistRepository) CountAhead(ctx context.Context, entry *model.WaitlistEntry) (int64, error) {
	ctx, cancel := pkgmongo.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{
		"session_id":          entry.SessionID,
		"active":              true,
		"notification_status": bson.M{"$in": queuedStatuses},
		"$or": bson.A{
			bson.M{"priority": bson.M{"$lt": entry.Priority}},
			bson.M{"priority": entry.Priority, "_id": bson.M{"$lt": entry.ID}},
		},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count queue position: %w", err)
	}
	return count, nil
}

func (r *mongoWaitlistRepository) ClaimNextPending(ctx context.Context, sessionID string, notifiedAt, expiresAt time.Time) (*model.WaitlistEntry, error) {
	ctx, cancel := pkgmongo.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{
		"session_id":          sessionID,
		"active":              true,
		"notification_status": model.WaitlistPending,
	}
	update := bson.M{
		"$set": bson.M{
			"notification_status":     model.WaitlistNotified,
			"notified_at":             notifiedAt,
			"notification_expires_at": expiresAt,
		},
		"$inc": bson.M{"notification_attempts": 1},
	}
	opts := options.FindOneAndUpdate().
		SetSort(queueOrder).
		SetReturnDocument(options.After)

	var entry model.WaitlistEntry
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&entry); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim waitlist entry: %w", err)
	}
	return &entry, nil
}

func (r *mongoWaitlistRepository) ExpireNotified(ctx context.Context, sessionID string, now time.Time) (int64, error) {
	ctx, cancel := pkgmongo.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.UpdateMany(ctx,
		bson.M{
			"session_id":              sessionID,
			"notification_status":     model.WaitlistNotified,
			"notification_expires_at": bson.M{"$lt": now},
		},
		bson.M{"$set": bson.M{
			"notification_status": model.WaitlistExpired,
			"active":              false,
		}},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to expire waitlist entries: %w", err)
	}
	return result.ModifiedCount, nil
}

func (r *mongoWaitlistRepository) SessionsWithNotified(ctx context.Context) ([]string, error) {
	ctx, cancel := pkgmongo.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	values, err := r.collection.Distinct(ctx, "session_id", bson.M{
		"notification_status": model.WaitlistNotified,
		"active":              true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions with notified entries: %w", err)
	}

	ids := make([]string, 0, len(values))
	for _, v := range values {
		if id, ok := v.(string); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Close ends an entry's time in the queue with a terminal status.
func (r *mongoWaitlistRepository) Close(ctx context.Context, id string, status model.NotificationStatus, bookingID string) error {
	ctx, cancel := pkgmongo.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	set := bson.M{
		"notification_status": status,
		"active":              false,
	}
	if bookingID != "" {
		set["converted_booking_id"] = bookingID
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id, "active": true}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update waitlist entry: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", waitlisterrors.ErrNotFound, id)
	}
	return nil
}
