package service

import (
	"context"
	"fmt"
	"testing"
	identityerrors "tourbook/internal/identity/errors"
	"tourbook/pkg/config"
	apperrors "tourbook/pkg/errors"
	"tourbook/pkg/logger"
	"tourbook/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockIdentityRepository struct {
	createVendorFn      func(ctx context.Context, vendor *model.Vendor) error
	findVendorFn        func(ctx context.Context, id string) (*model.Vendor, error)
	createUserFn        func(ctx context.Context, user *model.User) error
	findUserByIDFn      func(ctx context.Context, id string) (*model.User, error)
	findUserByEmailFn   func(ctx context.Context, email string) (*model.User, error)
	setStripeCustomerFn func(ctx context.Context, userID, customerID string) error
}

func (m *mockIdentityRepository) CreateVendor(ctx context.Context, vendor *model.Vendor) error {
	if m.createVendorFn != nil {
		return m.createVendorFn(ctx, vendor)
	}
	return nil
}

func (m *mockIdentityRepository) FindVendorByID(ctx context.Context, id string) (*model.Vendor, error) {
	if m.findVendorFn != nil {
		return m.findVendorFn(ctx, id)
	}
	return nil, identityerrors.ErrVendorNotFound
}

func (m *mockIdentityRepository) CreateUser(ctx context.Context, user *model.User) error {
	if m.createUserFn != nil {
		return m.createUserFn(ctx, user)
	}
	return nil
}

func (m *mockIdentityRepository) FindUserByID(ctx context.Context, id string) (*model.User, error) {
	if m.findUserByIDFn != nil {
		return m.findUserByIDFn(ctx, id)
	}
	return nil, identityerrors.ErrUserNotFound
}

func (m *mockIdentityRepository) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	if m.findUserByEmailFn != nil {
		return m.findUserByEmailFn(ctx, email)
	}
	return nil, identityerrors.ErrUserNotFound
}

func (m *mockIdentityRepository) SetStripeCustomer(ctx context.Context, userID, customerID string) error {
	if m.setStripeCustomerFn != nil {
		return m.setStripeCustomerFn(ctx, userID, customerID)
	}
	return nil
}

func testConfig() *config.Config {
	return &config.Config{Log: logger.Discard()}
}

func TestEnsureUser_CreatesMinimalUser(t *testing.T) {
	var created *model.User
	repo := &mockIdentityRepository{
		createUserFn: func(_ context.Context, user *model.User) error {
			created = user
			return nil
		},
	}
	svc := NewIdentityService(repo, testConfig())

	user, isNew, err := svc.EnsureUser(context.Background(), "  Jane@Example.COM ", " Jane  Doe ")
	require.NoError(t, err)
	assert.True(t, isNew)
	require.NotNil(t, created)
	assert.Equal(t, "jane@example.com", user.Email)
	assert.Equal(t, "Jane Doe", user.Name)
	assert.NotEmpty(t, user.ID)
}

func TestEnsureUser_ReturnsExisting(t *testing.T) {
	existing := &model.User{ID: "u1", Email: "jane@example.com"}
	repo := &mockIdentityRepository{
		findUserByEmailFn: func(_ context.Context, email string) (*model.User, error) {
			return existing, nil
		},
		createUserFn: func(context.Context, *model.User) error {
			t.Fatal("must not create a user that exists")
			return nil
		},
	}
	svc := NewIdentityService(repo, testConfig())

	user, isNew, err := svc.EnsureUser(context.Background(), "jane@example.com", "")
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, "u1", user.ID)
}

func TestEnsureUser_LosesCreateRace(t *testing.T) {
	calls := 0
	repo := &mockIdentityRepository{
		findUserByEmailFn: func(_ context.Context, email string) (*model.User, error) {
			calls++
			if calls == 1 {
				return nil, identityerrors.ErrUserNotFound
			}
			return &model.User{ID: "winner", Email: email}, nil
		},
		createUserFn: func(_ context.Context, user *model.User) error {
			return fmt.Errorf("%w: %s", identityerrors.ErrDuplicateEmail, user.Email)
		},
	}
	svc := NewIdentityService(repo, testConfig())

	user, isNew, err := svc.EnsureUser(context.Background(), "jane@example.com", "")
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, "winner", user.ID)
}

func TestEnsureUser_RequiresEmail(t *testing.T) {
	svc := NewIdentityService(&mockIdentityRepository{}, testConfig())
	_, _, err := svc.EnsureUser(context.Background(), "   ", "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput))
}

func TestGetVendor_NotFound(t *testing.T) {
	svc := NewIdentityService(&mockIdentityRepository{}, testConfig())
	_, err := svc.GetVendor(context.Background(), "v1")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}
