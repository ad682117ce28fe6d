package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"tourbook/internal/inventory"
	tourerrors "tourbook/internal/tours/errors"
	apperrors "tourbook/pkg/errors"
	"tourbook/pkg/model"
)

const inventoryWriteAttempts = 5

type ledgerOp func(v model.TicketVariant, qty int, ref inventory.Reference) (inventory.Result, error)

// commitments tracks the lines a booking attempt reserved so they can be released
// exactly once.
type commitments struct {
	tour      *model.Tour
	ref       inventory.Reference
	lines     []model.TicketLine
	backorder bool
	once      sync.Once
}

// commitLines reserves every line, releasing whatever was already reserved if one fails.
func (s *bookingService) commitLines(ctx context.Context, tour *model.Tour, ref inventory.Reference, lines []model.TicketLine) (*commitments, error) {
	c := &commitments{tour: tour, ref: ref}
	for _, line := range lines {
		res, err := s.applyLedger(ctx, tour, line, inventory.Commit, ref)
		if err != nil {
			s.cfg.Log.Warn("Inventory commitment failed",
				"booking_id", ref.ID,
				"variant_id", line.VariantID,
				"quantity", line.Quantity,
				"error", err,
			)
			s.rollback(ctx, c)
			return nil, ledgerError(line.VariantID, err)
		}
		c.lines = append(c.lines, line)
		c.backorder = c.backorder || res.Backorder
	}
	return c, nil
}

func (s *bookingService) rollback(ctx context.Context, c *commitments) {
	if c == nil {
		return
	}
	c.once.Do(func() {
		s.applyEach(ctx, c.tour, c.lines, inventory.Rollback, c.ref)
	})
}

// applyEach runs op for every line and logs failures instead of stopping.
func (s *bookingService) applyEach(ctx context.Context, tour *model.Tour, lines []model.TicketLine, op ledgerOp, ref inventory.Reference) {
	for _, line := range lines {
		if _, err := s.applyLedger(ctx, tour, line, op, ref); err != nil {
			if errors.Is(err, inventory.ErrVariantNotFound) {
				s.cfg.Log.Warn("Variant no longer on tour, skipping inventory movement",
					"tour_id", tour.ID,
					"variant_id", line.VariantID,
					"reference_id", ref.ID,
				)
				continue
			}
			s.cfg.Log.Error("Inventory movement failed",
				"tour_id", tour.ID,
				"variant_id", line.VariantID,
				"reference_id", ref.ID,
				"error", err,
			)
		}
	}
}

// applyLedger computes the movement from the local snapshot, persists its patches and
// then replays them onto the snapshot so later lines see the new quantities. A write
// that finds the variant moved on reloads the tour and validates again.
func (s *bookingService) applyLedger(ctx context.Context, tour *model.Tour, line model.TicketLine, op ledgerOp, ref inventory.Reference) (inventory.Result, error) {
	var (
		v   *model.TicketVariant
		res inventory.Result
		err error
	)
	for attempt := 1; ; attempt++ {
		v, err = inventory.Lookup(tour, line.VariantID)
		if err != nil {
			return inventory.Result{}, err
		}
		ref.At = s.now().UTC()
		res, err = op(*v, line.Quantity, ref)
		if err != nil {
			return res, err
		}
		err = s.tours.ApplyInventory(ctx, tour.ID, v.ID, v.Inventory, res.Patches)
		if err == nil {
			break
		}
		if !errors.Is(err, tourerrors.ErrInventoryConflict) || attempt == inventoryWriteAttempts {
			return res, fmt.Errorf("persist inventory for %s: %w", v.ID, err)
		}
		if err := s.reloadVariants(ctx, tour); err != nil {
			return res, err
		}
	}
	if err := inventory.Apply(v, res); err != nil {
		s.cfg.Log.Warn("Inventory snapshot out of step", "variant_id", v.ID, "error", err)
	}
	if inventory.LowStock(*v) {
		s.cfg.Log.Info("Variant stock is low", "tour_id", tour.ID, "variant_id", v.ID)
	}
	return res, nil
}

// reloadVariants refreshes the snapshot's variants in place so every holder of tour
// sees the stored quantities.
func (s *bookingService) reloadVariants(ctx context.Context, tour *model.Tour) error {
	fresh, err := s.tours.FindByID(ctx, tour.ID)
	if err != nil {
		return fmt.Errorf("reload tour %s: %w", tour.ID, err)
	}
	tour.Variants = fresh.Variants
	return nil
}

func ledgerError(variantID string, err error) error {
	switch {
	case errors.Is(err, inventory.ErrInsufficientInventory):
		return apperrors.Rejected(apperrors.CodeInsufficientInventory,
			fmt.Sprintf("Not enough tickets available for variant %s", variantID))
	case errors.Is(err, inventory.ErrVariantNotFound):
		return apperrors.NotFoundWithCode(apperrors.CodeVariantNotFound, "Ticket variant", variantID)
	case errors.Is(err, inventory.ErrInvalidQuantity):
		return apperrors.InvalidInput(err.Error())
	default:
		return apperrors.Internal("Failed to reserve inventory", err)
	}
}
