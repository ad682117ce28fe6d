package repository

import (
	"context"
	"errors"
	"fmt"
	bookingerrors "tourbook/internal/bookings/errors"
	"tourbook/pkg/config"
	pkgmongo "tourbook/pkg/db/mongo"
	"tourbook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	OrderCollectionName = "Orders"
)

type mongoOrderRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

type OrderRepository interface {
	Create(ctx context.Context, order *model.Order) error
	FindByID(ctx context.Context, id string) (*model.Order, error)
	UpdateStatus(ctx context.Context, id string, status model.OrderStatus) error
	Delete(ctx context.Context, id string) error
}

func NewMongoOrderRepository(cfg *config.Config) OrderRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoOrderRepository{
		cfg:        cfg,
		collection: db.Collection(OrderCollectionName),
	}
}

func (r *mongoOrderRepository) Create(ctx context.Context, order *model.Order) error {
	ctx, cancel := pkgmongo.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := createdAt()
	order.CreatedAt = now
	order.UpdatedAt = now
	if _, err := r.collection.InsertOne(ctx, order); err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

func (r *mongoOrderRepository) FindByID(ctx context.Context, id string) (*model.Order, error) {
	ctx, cancel := pkgmongo.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var order model.Order
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&order)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", bookingerrors.ErrOrderNotFound, id)
		}
		return nil, fmt.Errorf("failed to find order: %w", err)
	}
	return &order, nil
}

func (r *mongoOrderRepository) UpdateStatus(ctx context.Context, id string, status model.OrderStatus) error {
	ctx, cancel := pkgmongo.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	update := bson.M{"$set": bson.M{"status": status, "updated_at": createdAt()}}
	result, err := r.collection.UpdateByID(ctx, id, update)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", bookingerrors.ErrOrderNotFound, id)
	}
	return nil
}

func (r *mongoOrderRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := pkgmongo.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("%w: %s", bookingerrors.ErrOrderNotFound, id)
	}
	return nil
}
