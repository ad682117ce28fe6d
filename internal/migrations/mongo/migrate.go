package mongo

import (
	"context"
	"fmt"
	bookingrepo "tourbook/internal/bookings/repository"
	identityrepo "tourbook/internal/identity/repository"
	"tourbook/internal/migrations/mongo/validators"
	sessionrepo "tourbook/internal/sessions/repository"
	tourrepo "tourbook/internal/tours/repository"
	waitlistrepo "tourbook/internal/waitlist/repository"
	"tourbook/pkg/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ToursIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "vendor_id", Value: 1}}},
	}

	SchedulesIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "tour_id", Value: 1}}},
	}

	// Generation is idempotent because a schedule can only materialize one session per
	// date. Pending sessions expire through the TTL index.
	SessionsIndexes = []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "date", Value: 1},
				{Key: "schedule_id", Value: 1},
				{Key: "tour_id", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "tour_id", Value: 1}, {Key: "date", Value: 1}}},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	}

	BookingsIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "code", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "assignments.session_id", Value: 1}, {Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "customer.email", Value: 1}}},
	}

	OrdersIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "booking_id", Value: 1}}},
	}

	// One active entry per customer and session.
	WaitlistIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "session_id", Value: 1}, {Key: "customer_email", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"active": true}),
		},
		{Keys: bson.D{{Key: "session_id", Value: 1}, {Key: "active", Value: 1}, {Key: "priority", Value: 1}, {Key: "_id", Value: 1}}},
		{Keys: bson.D{{Key: "notification_status", Value: 1}, {Key: "notification_expires_at", Value: 1}}},
	}

	UsersIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
)

type collectionDef struct {
	Indexes   []mongo.IndexModel
	Validator bson.M
}

func RunMigration(ctx context.Context, client *mongo.Client, dbName string, log *logger.Logger) error {
	db := client.Database(dbName)
	log.Info("Running Mongo migrations", "database", dbName)

	collections := map[string]collectionDef{
		tourrepo.CollectionName:            {Indexes: ToursIndexes, Validator: validators.TourValidator},
		tourrepo.PolicyCollectionName:      {},
		sessionrepo.ScheduleCollectionName: {Indexes: SchedulesIndexes},
		sessionrepo.CollectionName:         {Indexes: SessionsIndexes, Validator: validators.SessionValidator},
		bookingrepo.CollectionName:         {Indexes: BookingsIndexes, Validator: validators.BookingValidator},
		bookingrepo.OrderCollectionName:    {Indexes: OrdersIndexes, Validator: validators.OrderValidator},
		waitlistrepo.CollectionName:        {Indexes: WaitlistIndexes, Validator: validators.WaitlistValidator},
		identityrepo.UserCollectionName:    {Indexes: UsersIndexes},
		identityrepo.VendorCollectionName:  {},
	}

	for name, def := range collections {
		if err := ensureCollection(ctx, db, name, def.Validator, log); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", name, err)
		}
		if err := ensureIndexes(ctx, db, name, def.Indexes, log); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", name, err)
		}
	}

	log.Info("All migrations applied successfully")
	return nil
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string, validator bson.M, log *logger.Logger) error {
	existing, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		log.Info("Creating collection", "collection", name)
		opts := options.CreateCollection()
		if validator != nil {
			opts.SetValidator(validator)
		}
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed creating %s: %w", name, err)
		}
		return nil
	}

	if validator == nil {
		return nil
	}
	log.Info("Collection exists, updating validator", "collection", name)
	command := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
	}
	if err := db.RunCommand(ctx, command).Err(); err != nil {
		log.Warn("Failed updating validator", "collection", name, "error", err)
	}
	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database, name string, models []mongo.IndexModel, log *logger.Logger) error {
	if len(models) == 0 {
		return nil
	}
	if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
		return err
	}
	log.Info("Ensured indexes", "collection", name, "count", len(models))
	return nil
}
