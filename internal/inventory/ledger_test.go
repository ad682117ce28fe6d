package inventory

import (
	"testing"
	"time"
	"tourbook/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func variant(onHand, committed int) model.TicketVariant {
	return model.TicketVariant{
		ID:          "adult",
		Name:        "Adult",
		Price:       5000,
		PeopleCount: 1,
		Inventory: model.Inventory{
			QtyOnHand:      onHand,
			QtyCommitted:   committed,
			TrackInventory: true,
		},
	}
}

var ref = Reference{Source: "booking", ID: "b-1", Actor: "jane@example.com", At: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}

func TestAvailability(t *testing.T) {
	available, unlimited := Availability(variant(10, 4))
	assert.Equal(t, 6, available)
	assert.False(t, unlimited)

	v := variant(0, 0)
	v.Inventory.TrackInventory = false
	_, unlimited = Availability(v)
	assert.True(t, unlimited)
}

func TestValidateAvailability(t *testing.T) {
	tests := []struct {
		name          string
		v             func() model.TicketVariant
		qty           int
		wantBackorder bool
		wantErr       error
	}{
		{
			name: "enough stock",
			v:    func() model.TicketVariant { return variant(10, 4) },
			qty:  6,
		},
		{
			name:    "short without backorder",
			v:       func() model.TicketVariant { return variant(10, 4) },
			qty:     7,
			wantErr: ErrInsufficientInventory,
		},
		{
			name: "short within backorder allowance",
			v: func() model.TicketVariant {
				v := variant(10, 8)
				v.Inventory.AllowBackorder = true
				v.Inventory.MaxBackorders = 3
				return v
			},
			qty:           5,
			wantBackorder: true,
		},
		{
			name: "existing backorders eat the allowance",
			v: func() model.TicketVariant {
				v := variant(10, 12)
				v.Inventory.AllowBackorder = true
				v.Inventory.MaxBackorders = 3
				return v
			},
			qty:     2,
			wantErr: ErrInsufficientInventory,
		},
		{
			name: "uncapped backorders",
			v: func() model.TicketVariant {
				v := variant(0, 50)
				v.Inventory.AllowBackorder = true
				return v
			},
			qty:           100,
			wantBackorder: true,
		},
		{
			name: "untracked is unlimited",
			v: func() model.TicketVariant {
				v := variant(0, 0)
				v.Inventory.TrackInventory = false
				return v
			},
			qty: 1000,
		},
		{
			name:    "non-positive quantity",
			v:       func() model.TicketVariant { return variant(10, 0) },
			qty:     0,
			wantErr: ErrInvalidQuantity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backorder, err := ValidateAvailability(tt.v(), tt.qty)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBackorder, backorder)
		})
	}
}

func TestCommit(t *testing.T) {
	v := variant(10, 2)
	res, err := Commit(v, 3, ref)
	require.NoError(t, err)

	assert.Equal(t, model.ReasonCommitment, res.Transaction.Reason)
	assert.Equal(t, 2, res.Transaction.QtyBefore)
	assert.Equal(t, 5, res.Transaction.QtyAfter)
	assert.Equal(t, "b-1", res.Transaction.ReferenceID)
	assert.Equal(t, ref.At, res.Transaction.Timestamp)
	assert.NotEmpty(t, res.Transaction.ID)
	assert.Contains(t, res.Patches, model.Patch{Op: model.PatchIncr, Path: PathCommitted, Value: 3})

	require.NoError(t, Apply(&v, res))
	assert.Equal(t, 5, v.Inventory.QtyCommitted)
	assert.Len(t, v.Inventory.Transactions, 1)
}

func TestCommit_Insufficient(t *testing.T) {
	_, err := Commit(variant(2, 2), 1, ref)
	assert.ErrorIs(t, err, ErrInsufficientInventory)
}

func TestRollback_FloorsAtZero(t *testing.T) {
	v := variant(10, 2)
	res, err := Rollback(v, 5, ref)
	require.NoError(t, err)
	assert.Equal(t, "rollback", res.Transaction.Note)
	assert.Equal(t, model.ReasonCommitment, res.Transaction.Reason)

	require.NoError(t, Apply(&v, res))
	assert.Equal(t, 0, v.Inventory.QtyCommitted)
}

func TestRollback_UsesAtomicDecrement(t *testing.T) {
	res, err := Rollback(variant(10, 4), 3, ref)
	require.NoError(t, err)
	assert.Contains(t, res.Patches, model.Patch{Op: model.PatchIncr, Path: PathCommitted, Value: -3})

	res, err = Rollback(variant(10, 2), 3, ref)
	require.NoError(t, err)
	assert.Contains(t, res.Patches, model.Patch{Op: model.PatchSet, Path: PathCommitted, Value: 0})
}

func TestDeductAndRestore(t *testing.T) {
	v := variant(10, 3)

	res, err := Deduct(v, 3, ref)
	require.NoError(t, err)
	assert.Equal(t, model.ReasonSale, res.Transaction.Reason)
	require.NoError(t, Apply(&v, res))
	assert.Equal(t, 7, v.Inventory.QtyOnHand)
	assert.Equal(t, 0, v.Inventory.QtyCommitted)

	res, err = Restore(v, 3, ref)
	require.NoError(t, err)
	assert.Equal(t, model.ReasonRefund, res.Transaction.Reason)
	require.NoError(t, Apply(&v, res))
	assert.Equal(t, 10, v.Inventory.QtyOnHand)
}

func TestFulfill_RecordsOnly(t *testing.T) {
	v := variant(7, 0)
	res, err := Fulfill(v, 2, ref)
	require.NoError(t, err)
	assert.Len(t, res.Patches, 1)
	assert.Equal(t, model.ReasonFulfillment, res.Transaction.Reason)
	assert.Equal(t, res.Transaction.QtyBefore, res.Transaction.QtyAfter)

	require.NoError(t, Apply(&v, res))
	assert.Equal(t, 7, v.Inventory.QtyOnHand)
}

// Committing then selling N units leaves committed unchanged and on hand down by N;
// committing then rolling back leaves both unchanged. Every step adds one transaction.
func TestConservation(t *testing.T) {
	for _, n := range []int{1, 3, 10} {
		v := variant(10, 0)

		commit, err := Commit(v, n, ref)
		require.NoError(t, err)
		require.NoError(t, Apply(&v, commit))
		deduct, err := Deduct(v, n, ref)
		require.NoError(t, err)
		require.NoError(t, Apply(&v, deduct))

		assert.Equal(t, 10-n, v.Inventory.QtyOnHand)
		assert.Equal(t, 0, v.Inventory.QtyCommitted)
		assert.Len(t, v.Inventory.Transactions, 2)

		w := variant(10, 0)
		commit, err = Commit(w, n, ref)
		require.NoError(t, err)
		require.NoError(t, Apply(&w, commit))
		rollback, err := Rollback(w, n, ref)
		require.NoError(t, err)
		require.NoError(t, Apply(&w, rollback))

		assert.Equal(t, 10, w.Inventory.QtyOnHand)
		assert.Equal(t, 0, w.Inventory.QtyCommitted)
		assert.Len(t, w.Inventory.Transactions, 2)
	}
}

func TestLowStock(t *testing.T) {
	v := variant(10, 7)
	v.Inventory.LowStockThreshold = 3
	assert.True(t, LowStock(v))

	v.Inventory.QtyCommitted = 6
	assert.False(t, LowStock(v))

	v.Inventory.TrackInventory = false
	assert.False(t, LowStock(v))
}

func TestLookup(t *testing.T) {
	tour := &model.Tour{Variants: []model.TicketVariant{variant(1, 0)}}
	v, err := Lookup(tour, "adult")
	require.NoError(t, err)
	assert.Equal(t, "Adult", v.Name)

	_, err = Lookup(tour, "child")
	assert.ErrorIs(t, err, ErrVariantNotFound)
}
