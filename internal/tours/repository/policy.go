package repository

import (
	"context"
	"errors"
	"fmt"
	tourerrors "tourbook/internal/tours/errors"
	"tourbook/pkg/config"
	pkgmongo "tourbook/pkg/db/mongo"
	"tourbook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const PolicyCollectionName = "ReturnPolicies"

type mongoPolicyRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

type PolicyRepository interface {
	Create(ctx context.Context, policy *model.ReturnPolicy) error
	FindByID(ctx context.Context, id string) (*model.ReturnPolicy, error)
}

func NewMongoPolicyRepository(cfg *config.Config) PolicyRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoPolicyRepository{
		cfg:        cfg,
		collection: db.Collection(PolicyCollectionName),
	}
}

func (r *mongoPolicyRepository) Create(ctx context.Context, policy *model.ReturnPolicy) error {
	ctx, cancel := pkgmongo.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if _, err := r.collection.InsertOne(ctx, policy); err != nil {
		return fmt.Errorf("failed to create return policy: %w", err)
	}
	return nil
}

func (r *mongoPolicyRepository) FindByID(ctx context.Context, id string) (*model.ReturnPolicy, error) {
	ctx, cancel := pkgmongo.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var policy model.ReturnPolicy
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&policy)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", tourerrors.ErrPolicyNotFound, id)
		}
		return nil, fmt.Errorf("failed to find return policy: %w", err)
	}
	return &policy, nil
}
