package repository

import (
	"context"
	"errors"
	"fmt"
	"time"
	tourerrors "tourbook/internal/tours/errors"
	"tourbook/pkg/config"
	pkgmongo "tourbook/pkg/db/mongo"
	"tourbook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Tours"

	variantPrefix = "variants.$[v]."
)

type mongoTourRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

type TourRepository interface {
	Create(ctx context.Context, tour *model.Tour) error
	FindByID(ctx context.Context, id string) (*model.Tour, error)
	// ApplyInventory persists ledger patches against one variant's inventory as long as
	// its stored quantities still equal expected. ErrInventoryConflict otherwise.
	ApplyInventory(ctx context.Context, tourID, variantID string, expected model.Inventory, patches []model.Patch) error
}

func NewMongoTourRepository(cfg *config.Config) TourRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoTourRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoTourRepository) Create(ctx context.Context, tour *model.Tour) error {
	ctx, cancel := pkgmongo.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	tour.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	if _, err := r.collection.InsertOne(ctx, tour); err != nil {
		return fmt.Errorf("failed to create tour: %w", err)
	}
	return nil
}

func (r *mongoTourRepository) FindByID(ctx context.Context, id string) (*model.Tour, error) {
	ctx, cancel := pkgmongo.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var tour model.Tour
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&tour)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", tourerrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to find tour: %w", err)
	}
	return &tour, nil
}

func (r *mongoTourRepository) ApplyInventory(
	ctx context.Context,
	tourID, variantID string,
	expected model.Inventory,
	patches []model.Patch,
) error {
	if len(patches) == 0 {
		return nil
	}

	ctx, cancel := pkgmongo.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	update, err := pkgmongo.UpdateFromPatches(variantPrefix, patches)
	if err != nil {
		return err
	}

	opts := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []any{bson.M{"v.id": variantID}},
	})
	filter := bson.M{
		"_id": tourID,
		"variants": bson.M{"$elemMatch": bson.M{
			"id":                     variantID,
			"inventory.qty_on_hand":   expected.QtyOnHand,
			"inventory.qty_committed": expected.QtyCommitted,
		}},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return fmt.Errorf("failed to apply inventory patches: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s/%s", tourerrors.ErrInventoryConflict, tourID, variantID)
	}
	return nil
}
