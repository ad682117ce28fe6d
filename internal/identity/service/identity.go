// Package service resolves the vendors and customers that bookings refer to. It is a
// lookup collaborator, not an account manager.
package service

import (
	"context"
	"errors"
	identityerrors "tourbook/internal/identity/errors"
	"tourbook/internal/identity/repository"
	"tourbook/pkg/config"
	apperrors "tourbook/pkg/errors"
	"tourbook/pkg/model"
	"tourbook/pkg/sanitizer"

	"github.com/google/uuid"
)

type IdentityService interface {
	CreateVendor(ctx context.Context, vendor *model.Vendor) error
	GetVendor(ctx context.Context, id string) (*model.Vendor, error)
	GetUser(ctx context.Context, id string) (*model.User, error)
	// FindUserByEmail returns nil without error when nobody uses the address.
	FindUserByEmail(ctx context.Context, email string) (*model.User, error)
	// EnsureUser returns the user for email, creating a minimal record when missing.
	EnsureUser(ctx context.Context, email, name string) (*model.User, bool, error)
	SetStripeCustomer(ctx context.Context, userID, customerID string) error
}

type identityService struct {
	repo repository.IdentityRepository
	cfg  *config.Config
}

func NewIdentityService(repo repository.IdentityRepository, cfg *config.Config) IdentityService {
	return &identityService{repo: repo, cfg: cfg}
}

func (s *identityService) CreateVendor(ctx context.Context, vendor *model.Vendor) error {
	vendor.Name = sanitizer.NormalizeName(vendor.Name)
	vendor.Email = sanitizer.NormalizeEmail(vendor.Email)
	if vendor.Name == "" || vendor.Email == "" {
		return apperrors.Validation("Vendor validation failed", map[string]any{
			"error": "name and a valid email are required",
		})
	}
	if vendor.ID == "" {
		vendor.ID = uuid.NewString()
	}

	if err := s.repo.CreateVendor(ctx, vendor); err != nil {
		s.cfg.Log.Error("Failed to create vendor", "email", vendor.Email, "error", err)
		return apperrors.Internal("Failed to create vendor", err)
	}
	s.cfg.Log.Info("Vendor created", "id", vendor.ID, "connected_account", vendor.StripeAccountID != "")
	return nil
}

func (s *identityService) GetVendor(ctx context.Context, id string) (*model.Vendor, error) {
	vendor, err := s.repo.FindVendorByID(ctx, id)
	if err != nil {
		if errors.Is(err, identityerrors.ErrVendorNotFound) {
			return nil, apperrors.NotFoundWithCode(apperrors.CodeNotFound, "Vendor", id)
		}
		return nil, apperrors.Internal("Failed to retrieve vendor", err)
	}
	return vendor, nil
}

func (s *identityService) GetUser(ctx context.Context, id string) (*model.User, error) {
	user, err := s.repo.FindUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, identityerrors.ErrUserNotFound) {
			return nil, apperrors.NotFoundWithCode(apperrors.CodeNotFound, "User", id)
		}
		return nil, apperrors.Internal("Failed to retrieve user", err)
	}
	return user, nil
}

func (s *identityService) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := s.repo.FindUserByEmail(ctx, sanitizer.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, identityerrors.ErrUserNotFound) {
			return nil, nil
		}
		return nil, apperrors.Internal("Failed to look up user", err)
	}
	return user, nil
}

func (s *identityService) EnsureUser(ctx context.Context, email, name string) (*model.User, bool, error) {
	email = sanitizer.NormalizeEmail(email)
	if email == "" {
		return nil, false, apperrors.InvalidInput("A valid customer email is required")
	}

	user, err := s.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, false, err
	}
	if user != nil {
		return user, false, nil
	}

	user = &model.User{
		ID:    uuid.NewString(),
		Email: email,
		Name:  sanitizer.NormalizeName(name),
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, identityerrors.ErrDuplicateEmail) {
			existing, findErr := s.FindUserByEmail(ctx, email)
			if findErr == nil && existing != nil {
				return existing, false, nil
			}
		}
		s.cfg.Log.Error("Failed to create minimal user", "email", email, "error", err)
		return nil, false, apperrors.Internal("Failed to create user", err)
	}

	s.cfg.Log.Info("Minimal user created", "id", user.ID, "email", email)
	return user, true, nil
}

func (s *identityService) SetStripeCustomer(ctx context.Context, userID, customerID string) error {
	if err := s.repo.SetStripeCustomer(ctx, userID, customerID); err != nil {
		return apperrors.Internal("Failed to store payment customer", err)
	}
	return nil
}
