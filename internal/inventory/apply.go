package inventory

import (
	"fmt"
	"tourbook/pkg/model"
)

// Apply replays a result's patches onto an in-memory variant so a caller's snapshot
// matches what was persisted.
func Apply(v *model.TicketVariant, r Result) error {
	for _, p := range r.Patches {
		switch p.Path {
		case PathOnHand:
			n, err := intValue(p)
			if err != nil {
				return err
			}
			v.Inventory.QtyOnHand = combine(p.Op, v.Inventory.QtyOnHand, n)
		case PathCommitted:
			n, err := intValue(p)
			if err != nil {
				return err
			}
			v.Inventory.QtyCommitted = combine(p.Op, v.Inventory.QtyCommitted, n)
		case PathTransactions:
			tx, ok := p.Value.(model.InventoryTransaction)
			if !ok || p.Op != model.PatchAdd {
				return fmt.Errorf("unexpected transactions patch %s", p.Op)
			}
			v.Inventory.Transactions = append(v.Inventory.Transactions, tx)
		default:
			return fmt.Errorf("unknown inventory path %q", p.Path)
		}
	}
	return nil
}

func combine(op model.PatchOp, current, n int) int {
	if op == model.PatchIncr {
		return current + n
	}
	return n
}

func intValue(p model.Patch) (int, error) {
	n, ok := p.Value.(int)
	if !ok || (p.Op != model.PatchSet && p.Op != model.PatchIncr) {
		return 0, fmt.Errorf("unexpected %s patch on %s", p.Op, p.Path)
	}
	return n, nil
}
