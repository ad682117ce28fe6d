package model

import "time"

type InventoryReason string

const (
	ReasonCommitment  InventoryReason = "COMMITMENT"
	ReasonSale        InventoryReason = "SALE"
	ReasonRefund      InventoryReason = "REFUND"
	ReasonFulfillment InventoryReason = "FULFILLMENT"
)

type Tour struct {
	ID             string          `json:"id,omitempty" bson:"_id,omitempty"`
	VendorID       string          `json:"vendor_id" bson:"vendor_id" validate:"required"`
	Name           string          `json:"name" bson:"name" validate:"required,min=2,max=200"`
	Currency       string          `json:"currency" bson:"currency" validate:"required,len=3"`
	Variants       []TicketVariant `json:"variants" bson:"variants" validate:"required,min=1,dive"`
	ReturnPolicyID string          `json:"return_policy_id,omitempty" bson:"return_policy_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at" bson:"created_at"`
}

// Variant returns a pointer into t.Variants so callers can keep the snapshot in step
// with patches they have already persisted.
func (t *Tour) Variant(id string) (*TicketVariant, bool) {
	for i := range t.Variants {
		if t.Variants[i].ID == id {
			return &t.Variants[i], true
		}
	}
	return nil, false
}

type TicketVariant struct {
	ID          string    `json:"id" bson:"id" validate:"required"`
	Name        string    `json:"name" bson:"name" validate:"required"`
	Price       int64     `json:"price" bson:"price" validate:"min=0"`
	PeopleCount int       `json:"people_count" bson:"people_count" validate:"min=1"`
	Inventory   Inventory `json:"inventory" bson:"inventory"`
}

type Inventory struct {
	QtyOnHand         int                    `json:"qty_on_hand" bson:"qty_on_hand"`
	QtyCommitted      int                    `json:"qty_committed" bson:"qty_committed"`
	TrackInventory    bool                   `json:"track_inventory" bson:"track_inventory"`
	AllowBackorder    bool                   `json:"allow_backorder" bson:"allow_backorder"`
	MaxBackorders     int                    `json:"max_backorders" bson:"max_backorders"`
	LowStockThreshold int                    `json:"low_stock_threshold" bson:"low_stock_threshold"`
	Transactions      []InventoryTransaction `json:"transactions" bson:"transactions"`
}

type InventoryTransaction struct {
	ID          string          `json:"id" bson:"id"`
	Timestamp   time.Time       `json:"timestamp" bson:"timestamp"`
	QtyBefore   int             `json:"qty_before" bson:"qty_before"`
	QtyAfter    int             `json:"qty_after" bson:"qty_after"`
	Reason      InventoryReason `json:"reason" bson:"reason"`
	Source      string          `json:"source" bson:"source"`
	ReferenceID string          `json:"reference_id" bson:"reference_id"`
	Actor       string          `json:"actor" bson:"actor"`
	Note        string          `json:"note,omitempty" bson:"note,omitempty"`
}

type RefundTier struct {
	DaysBefore int `json:"days_before" bson:"days_before" validate:"min=0"`
	Percentage int `json:"percentage" bson:"percentage" validate:"min=0,max=100"`
}

type ReturnPolicy struct {
	ID       string       `json:"id,omitempty" bson:"_id,omitempty"`
	VendorID string       `json:"vendor_id" bson:"vendor_id"`
	Tiers    []RefundTier `json:"tiers" bson:"tiers" validate:"required,min=1,dive"`
}
