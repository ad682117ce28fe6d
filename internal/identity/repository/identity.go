package repository

import (
	"context"
	"errors"
	"fmt"
	"time"
	identityerrors "tourbook/internal/identity/errors"
	"tourbook/pkg/config"
	pkgmongo "tourbook/pkg/db/mongo"
	"tourbook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	VendorCollectionName = "Vendors"
	UserCollectionName   = "Users"
)

type IdentityRepository interface {
	CreateVendor(ctx context.Context, vendor *model.Vendor) error
	FindVendorByID(ctx context.Context, id string) (*model.Vendor, error)
	CreateUser(ctx context.Context, user *model.User) error
	FindUserByID(ctx context.Context, id string) (*model.User, error)
	FindUserByEmail(ctx context.Context, email string) (*model.User, error)
	SetStripeCustomer(ctx context.Context, userID, customerID string) error
}

type mongoIdentityRepository struct {
	cfg     *config.Config
	vendors *mongo.Collection
	users   *mongo.Collection
}

func NewMongoIdentityRepository(cfg *config.Config) IdentityRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoIdentityRepository{
		cfg:     cfg,
		vendors: db.Collection(VendorCollectionName),
		users:   db.Collection(UserCollectionName),
	}
}

func (r *mongoIdentityRepository) CreateVendor(ctx context.Context, vendor *model.Vendor) error {
	ctx, cancel := pkgmongo.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if _, err := r.vendors.InsertOne(ctx, vendor); err != nil {
		return fmt.Errorf("failed to create vendor: %w", err)
	}
	return nil
}

func (r *mongoIdentityRepository) FindVendorByID(ctx context.Context, id string) (*model.Vendor, error) {
	ctx, cancel := pkgmongo.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var vendor model.Vendor
	if err := r.vendors.FindOne(ctx, bson.M{"_id": id}).Decode(&vendor); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", identityerrors.ErrVendorNotFound, id)
		}
		return nil, fmt.Errorf("failed to find vendor: %w", err)
	}
	return &vendor, nil
}

func (r *mongoIdentityRepository) CreateUser(ctx context.Context, user *model.User) error {
	ctx, cancel := pkgmongo.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	user.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	if _, err := r.users.InsertOne(ctx, user); err != nil {
		if pkgmongo.IsDuplicateKey(err) {
			return fmt.Errorf("%w: %s", identityerrors.ErrDuplicateEmail, user.Email)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *mongoIdentityRepository) FindUserByID(ctx context.Context, id string) (*model.User, error) {
	return r.findUser(ctx, bson.M{"_id": id}, id)
}

func (r *mongoIdentityRepository) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findUser(ctx, bson.M{"email": email}, email)
}

func (r *mongoIdentityRepository) findUser(ctx context.Context, filter bson.M, key string) (*model.User, error) {
	ctx, cancel := pkgmongo.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var user model.User
	if err := r.users.FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", identityerrors.ErrUserNotFound, key)
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &user, nil
}

func (r *mongoIdentityRepository) SetStripeCustomer(ctx context.Context, userID, customerID string) error {
	ctx, cancel := pkgmongo.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.users.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"stripe_customer_id": customerID}},
	)
	if err != nil {
		return fmt.Errorf("failed to store payment customer: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", identityerrors.ErrUserNotFound, userID)
	}
	return nil
}
