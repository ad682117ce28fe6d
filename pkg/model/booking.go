package model

import "time"

type BookingStatus string

const (
	AwaitingPayment BookingStatus = "AWAITING_PAYMENT"
	Completed       BookingStatus = "COMPLETED"
	Cancelled       BookingStatus = "CANCELLED"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderPaid      OrderStatus = "PAID"
	OrderCancelled OrderStatus = "CANCELLED"
	OrderRefunded  OrderStatus = "REFUNDED"
)

type Booking struct {
	ID           string              `json:"id" bson:"_id"`
	Code         string              `json:"code" bson:"code"`
	Customer     Customer            `json:"customer" bson:"customer"`
	VendorID     string              `json:"vendor_id" bson:"vendor_id"`
	TourID       string              `json:"tour_id" bson:"tour_id"`
	Assignments  []SessionAssignment `json:"assignments" bson:"assignments"`
	Status       BookingStatus       `json:"status" bson:"status"`
	Payment      Payment             `json:"payment" bson:"payment"`
	OrderID      string              `json:"order_id,omitempty" bson:"order_id,omitempty"`
	Backorder    bool                `json:"backorder" bson:"backorder"`
	StatusLog    []StatusChange      `json:"status_log" bson:"status_log"`
	CheckIn      *CheckIn            `json:"check_in,omitempty" bson:"check_in,omitempty"`
	Cancellation *Cancellation       `json:"cancellation,omitempty" bson:"cancellation,omitempty"`
	CreatedAt    time.Time           `json:"created_at" bson:"created_at"`
}

type Customer struct {
	Email  string `json:"email" bson:"email"`
	Name   string `json:"name,omitempty" bson:"name,omitempty"`
	UserID string `json:"user_id,omitempty" bson:"user_id,omitempty"`
}

type SessionAssignment struct {
	SessionID string          `json:"session_id" bson:"session_id"`
	Tickets   []BookingTicket `json:"tickets" bson:"tickets"`
}

type BookingTicket struct {
	VariantID  string `json:"variant_id" bson:"variant_id"`
	Quantity   int    `json:"quantity" bson:"quantity"`
	Price      int64  `json:"price" bson:"price"`
	AssignedTo string `json:"assigned_to,omitempty" bson:"assigned_to,omitempty"`
}

type Payment struct {
	IntentID           string `json:"intent_id,omitempty" bson:"intent_id,omitempty"`
	CustomerID         string `json:"customer_id,omitempty" bson:"customer_id,omitempty"`
	ConnectedAccountID string `json:"connected_account_id,omitempty" bson:"connected_account_id,omitempty"`
	Amount             int64  `json:"amount" bson:"amount"`
	PlatformFee        int64  `json:"platform_fee" bson:"platform_fee"`
	Currency           string `json:"currency" bson:"currency"`
	Captured           bool   `json:"captured" bson:"captured"`
	Prepaid            bool   `json:"prepaid" bson:"prepaid"`
}

// Paid reports whether money has actually changed hands for this booking.
func (p Payment) Paid() bool {
	return p.Captured || p.Prepaid
}

type StatusChange struct {
	At     time.Time     `json:"at" bson:"at"`
	Status BookingStatus `json:"status" bson:"status"`
	Label  string        `json:"label" bson:"label"`
	Actor  string        `json:"actor" bson:"actor"`
}

type CheckIn struct {
	At    time.Time `json:"at" bson:"at"`
	Actor string    `json:"actor" bson:"actor"`
}

type Cancellation struct {
	At               time.Time `json:"at" bson:"at"`
	Reason           string    `json:"reason,omitempty" bson:"reason,omitempty"`
	Actor            string    `json:"actor" bson:"actor"`
	RefundProcessed  bool      `json:"refund_processed" bson:"refund_processed"`
	RefundPercentage int       `json:"refund_percentage" bson:"refund_percentage"`
	RefundAmount     int64     `json:"refund_amount" bson:"refund_amount"`
}

// Lines flattens a booking's tickets for one session into capacity lines.
func (a SessionAssignment) Lines() []TicketLine {
	lines := make([]TicketLine, 0, len(a.Tickets))
	for _, t := range a.Tickets {
		lines = append(lines, TicketLine{VariantID: t.VariantID, Quantity: t.Quantity})
	}
	return lines
}

func (b *Booking) AppendStatus(status BookingStatus, label, actor string, at time.Time) {
	b.Status = status
	b.StatusLog = append(b.StatusLog, StatusChange{
		At:     at,
		Status: status,
		Label:  label,
		Actor:  actor,
	})
}

type Order struct {
	ID          string      `json:"id" bson:"_id"`
	BookingID   string      `json:"booking_id" bson:"booking_id"`
	VendorID    string      `json:"vendor_id" bson:"vendor_id"`
	Amount      int64       `json:"amount" bson:"amount"`
	PlatformFee int64       `json:"platform_fee" bson:"platform_fee"`
	Currency    string      `json:"currency" bson:"currency"`
	IntentID    string      `json:"intent_id,omitempty" bson:"intent_id,omitempty"`
	Status      OrderStatus `json:"status" bson:"status"`
	CreatedAt   time.Time   `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at" bson:"updated_at"`
}
