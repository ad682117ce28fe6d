package service

import (
	"context"
	"errors"
	"slices"
	tourerrors "tourbook/internal/tours/errors"
	"tourbook/internal/tours/repository"
	"tourbook/internal/tours/validator"
	"tourbook/pkg/config"
	apperrors "tourbook/pkg/errors"
	"tourbook/pkg/model"
	"tourbook/pkg/sanitizer"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type TourService interface {
	Create(ctx context.Context, tour *model.Tour) error
	GetByID(ctx context.Context, id string) (*model.Tour, error)
	CreatePolicy(ctx context.Context, policy *model.ReturnPolicy) error
	GetPolicy(ctx context.Context, id string) (*model.ReturnPolicy, error)
}

type tourService struct {
	repo      repository.TourRepository
	policies  repository.PolicyRepository
	validator *validator.TourValidator
	cfg       *config.Config
}

func NewTourService(
	repo repository.TourRepository,
	policies repository.PolicyRepository,
	validator *validator.TourValidator,
	cfg *config.Config,
) TourService {
	return &tourService{
		repo:      repo,
		policies:  policies,
		validator: validator,
		cfg:       cfg,
	}
}

func (s *tourService) Create(ctx context.Context, tour *model.Tour) error {
	s.sanitize(tour)
	s.applyDefaults(tour)

	if err := s.validator.Validate(tour); err != nil {
		s.cfg.Log.Warn("Tour validation failed", "name", tour.Name, "error", err)
		return apperrors.Validation("Tour validation failed", map[string]any{"error": err.Error()})
	}

	ids := lo.Map(tour.Variants, func(v model.TicketVariant, _ int) string { return v.ID })
	if len(lo.Uniq(ids)) != len(ids) {
		return apperrors.Validation("Tour validation failed", map[string]any{
			"error": "variant ids must be unique",
		})
	}

	if err := s.repo.Create(ctx, tour); err != nil {
		s.cfg.Log.Error("Failed to create tour", "name", tour.Name, "error", err)
		return apperrors.Internal("Failed to create tour", err)
	}

	s.cfg.Log.Info("Tour created successfully",
		"id", tour.ID,
		"vendor_id", tour.VendorID,
		"variants", len(tour.Variants),
	)
	return nil
}

func (s *tourService) GetByID(ctx context.Context, id string) (*model.Tour, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Tour ID cannot be empty")
	}

	tour, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, tourerrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithCode(apperrors.CodeTourNotFound, "Tour", id)
		}
		s.cfg.Log.Error("Failed to get tour by ID", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to retrieve tour", err)
	}
	return tour, nil
}

func (s *tourService) CreatePolicy(ctx context.Context, policy *model.ReturnPolicy) error {
	if policy.ID == "" {
		policy.ID = uuid.NewString()
	}
	if err := s.validator.ValidatePolicy(policy); err != nil {
		return apperrors.Validation("Return policy validation failed", map[string]any{"error": err.Error()})
	}

	slices.SortFunc(policy.Tiers, func(a, b model.RefundTier) int {
		return a.DaysBefore - b.DaysBefore
	})

	if err := s.policies.Create(ctx, policy); err != nil {
		s.cfg.Log.Error("Failed to create return policy", "vendor_id", policy.VendorID, "error", err)
		return apperrors.Internal("Failed to create return policy", err)
	}
	s.cfg.Log.Info("Return policy created", "id", policy.ID, "tiers", len(policy.Tiers))
	return nil
}

func (s *tourService) GetPolicy(ctx context.Context, id string) (*model.ReturnPolicy, error) {
	policy, err := s.policies.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, tourerrors.ErrPolicyNotFound) {
			return nil, apperrors.NotFoundWithCode(apperrors.CodeNotFound, "Return policy", id)
		}
		return nil, apperrors.Internal("Failed to retrieve return policy", err)
	}
	return policy, nil
}

func (s *tourService) sanitize(tour *model.Tour) {
	tour.Name = sanitizer.NormalizeName(tour.Name)
	tour.Currency = sanitizer.NormalizeCurrency(tour.Currency)
	for i := range tour.Variants {
		tour.Variants[i].Name = sanitizer.NormalizeName(tour.Variants[i].Name)
	}
}

func (s *tourService) applyDefaults(tour *model.Tour) {
	if tour.ID == "" {
		tour.ID = uuid.NewString()
	}
	for i := range tour.Variants {
		v := &tour.Variants[i]
		if v.ID == "" {
			v.ID = uuid.NewString()
		}
		if v.PeopleCount == 0 {
			v.PeopleCount = 1
		}
		if v.Inventory.Transactions == nil {
			v.Inventory.Transactions = []model.InventoryTransaction{}
		}
	}
}
