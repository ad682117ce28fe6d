// Package inventory is the ticket ledger. Every operation takes a variant snapshot and
// returns the field patches to persist plus exactly one audit transaction; nothing here
// performs I/O.
//
// Three quantities matter: on hand (physically available), committed (reserved by
// unpaid or unfulfilled bookings) and available = on hand - committed.
package inventory

import (
	"time"
	"tourbook/pkg/model"

	"github.com/google/uuid"
)

const (
	PathOnHand       = "inventory.qty_on_hand"
	PathCommitted    = "inventory.qty_committed"
	PathTransactions = "inventory.transactions"

	noteRollback = "rollback"
)

type Result struct {
	Patches     []model.Patch
	Transaction model.InventoryTransaction
	Backorder   bool
}

// Reference identifies what caused a movement. At defaults to now.
type Reference struct {
	Source string
	ID     string
	Actor  string
	At     time.Time
}

// Availability returns on hand minus committed. Untracked variants are unlimited.
func Availability(v model.TicketVariant) (available int, unlimited bool) {
	if !v.Inventory.TrackInventory {
		return 0, true
	}
	return v.Inventory.QtyOnHand - v.Inventory.QtyCommitted, false
}

func currentBackorders(inv model.Inventory) int {
	return max(0, inv.QtyCommitted-inv.QtyOnHand)
}

// ValidateAvailability checks whether qty more units may be committed. When stock runs
// short it falls back to the variant's backorder allowance; MaxBackorders of zero means
// the allowance is uncapped.
func ValidateAvailability(v model.TicketVariant, qty int) (backorder bool, err error) {
	if qty <= 0 {
		return false, ErrInvalidQuantity
	}

	available, unlimited := Availability(v)
	if unlimited || available >= qty {
		return false, nil
	}
	if !v.Inventory.AllowBackorder {
		return false, ErrInsufficientInventory
	}

	shortfall := qty - max(0, available)
	if v.Inventory.MaxBackorders > 0 && shortfall > v.Inventory.MaxBackorders-currentBackorders(v.Inventory) {
		return false, ErrInsufficientInventory
	}
	return true, nil
}

func Commit(v model.TicketVariant, qty int, ref Reference) (Result, error) {
	backorder, err := ValidateAvailability(v, qty)
	if err != nil {
		return Result{}, err
	}

	before := v.Inventory.QtyCommitted
	tx := transaction(ref, model.ReasonCommitment, before, before+qty, "")
	return Result{
		Patches: []model.Patch{
			{Op: model.PatchIncr, Path: PathCommitted, Value: qty},
			{Op: model.PatchAdd, Path: PathTransactions, Value: tx},
		},
		Transaction: tx,
		Backorder:   backorder,
	}, nil
}

// Rollback releases a commitment that never turned into a sale.
func Rollback(v model.TicketVariant, qty int, ref Reference) (Result, error) {
	if qty <= 0 {
		return Result{}, ErrInvalidQuantity
	}

	before := v.Inventory.QtyCommitted
	after := max(0, before-qty)
	tx := transaction(ref, model.ReasonCommitment, before, after, noteRollback)
	return Result{
		Patches: []model.Patch{
			decrement(PathCommitted, before, qty),
			{Op: model.PatchAdd, Path: PathTransactions, Value: tx},
		},
		Transaction: tx,
	}, nil
}

// Deduct turns a commitment into a sale: stock leaves the shelf and the reservation is
// released.
func Deduct(v model.TicketVariant, qty int, ref Reference) (Result, error) {
	if qty <= 0 {
		return Result{}, ErrInvalidQuantity
	}

	onHand := v.Inventory.QtyOnHand
	tx := transaction(ref, model.ReasonSale, onHand, max(0, onHand-qty), "")
	return Result{
		Patches: []model.Patch{
			decrement(PathOnHand, onHand, qty),
			decrement(PathCommitted, v.Inventory.QtyCommitted, qty),
			{Op: model.PatchAdd, Path: PathTransactions, Value: tx},
		},
		Transaction: tx,
	}, nil
}

// Restore puts sold units back on the shelf after a refund.
func Restore(v model.TicketVariant, qty int, ref Reference) (Result, error) {
	if qty <= 0 {
		return Result{}, ErrInvalidQuantity
	}

	before := v.Inventory.QtyOnHand
	tx := transaction(ref, model.ReasonRefund, before, before+qty, "")
	return Result{
		Patches: []model.Patch{
			{Op: model.PatchIncr, Path: PathOnHand, Value: qty},
			{Op: model.PatchAdd, Path: PathTransactions, Value: tx},
		},
		Transaction: tx,
	}, nil
}

// Fulfill only records that sold units were consumed; quantities do not move.
func Fulfill(v model.TicketVariant, qty int, ref Reference) (Result, error) {
	if qty <= 0 {
		return Result{}, ErrInvalidQuantity
	}

	onHand := v.Inventory.QtyOnHand
	tx := transaction(ref, model.ReasonFulfillment, onHand, onHand, "")
	return Result{
		Patches:     []model.Patch{{Op: model.PatchAdd, Path: PathTransactions, Value: tx}},
		Transaction: tx,
	}, nil
}

// LowStock reports whether a tracked variant has fallen to its alert threshold.
func LowStock(v model.TicketVariant) bool {
	available, unlimited := Availability(v)
	return !unlimited && available <= v.Inventory.LowStockThreshold
}

// Lookup finds a variant on a tour.
func Lookup(tour *model.Tour, variantID string) (*model.TicketVariant, error) {
	v, ok := tour.Variant(variantID)
	if !ok {
		return nil, ErrVariantNotFound
	}
	return v, nil
}

// decrement lowers path by qty with an atomic increment, or pins it to zero when the
// snapshot says the subtraction would go negative.
func decrement(path string, current, qty int) model.Patch {
	if current >= qty {
		return model.Patch{Op: model.PatchIncr, Path: path, Value: -qty}
	}
	return model.Patch{Op: model.PatchSet, Path: path, Value: 0}
}

func transaction(ref Reference, reason model.InventoryReason, before, after int, note string) model.InventoryTransaction {
	at := ref.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return model.InventoryTransaction{
		ID:          uuid.NewString(),
		Timestamp:   at,
		QtyBefore:   before,
		QtyAfter:    after,
		Reason:      reason,
		Source:      ref.Source,
		ReferenceID: ref.ID,
		Actor:       ref.Actor,
		Note:        note,
	}
}
