// Package payment talks to the card processor. Amounts are always in minor units.
package payment

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrIntentNotFound = errors.New("payment intent not found")
	ErrDeclined       = errors.New("payment declined")
	ErrNotCapturable  = errors.New("payment intent is not awaiting capture")
	ErrNotCaptured    = errors.New("payment intent has no captured charge")
)

type Status string

const (
	StatusRequiresPaymentMethod Status = "requires_payment_method"
	StatusRequiresConfirmation  Status = "requires_confirmation"
	StatusRequiresAction        Status = "requires_action"
	StatusProcessing            Status = "processing"
	StatusRequiresCapture       Status = "requires_capture"
	StatusSucceeded             Status = "succeeded"
	StatusCanceled              Status = "canceled"
)

type Gateway interface {
	// ResolveCustomer returns the processor customer id for email, creating one if needed.
	ResolveCustomer(ctx context.Context, email, name string) (string, error)
	// Authorize places a manual-capture hold for the full amount.
	Authorize(ctx context.Context, req AuthorizeRequest) (*Authorization, error)
	Retrieve(ctx context.Context, intentID string) (*Authorization, error)
	// Capture collects a held authorization in full.
	Capture(ctx context.Context, intentID string) (*Authorization, error)
	Cancel(ctx context.Context, intentID string) error
	Refund(ctx context.Context, req RefundRequest) (*RefundResult, error)
	Name() string
}

type AuthorizeRequest struct {
	Amount             int64
	Currency           string
	CustomerID         string
	ConnectedAccountID string
	PlatformFee        int64
	Description        string
	IdempotencyKey     string
	Metadata           map[string]string
}

type Authorization struct {
	IntentID     string
	ClientSecret string
	Status       Status
	Amount       int64
	Currency     string
}

// Settled reports whether funds are secured, either captured or held for capture.
func (a *Authorization) Settled() bool {
	return a.Status == StatusSucceeded || a.Status == StatusRequiresCapture
}

type RefundRequest struct {
	IntentID string
	Amount   int64
	Reason   string
}

type RefundResult struct {
	RefundID string
	Status   string
	Amount   int64
}

// PlatformFee is percent of amount, rounded half away from zero to a whole minor unit.
func PlatformFee(amount int64, percent float64) int64 {
	return decimal.NewFromInt(amount).
		Mul(decimal.NewFromFloat(percent)).
		Div(decimal.NewFromInt(100)).
		Round(0).
		IntPart()
}

// Percentage returns pct percent of amount rounded to a whole minor unit.
func Percentage(amount int64, pct int) int64 {
	return decimal.NewFromInt(amount).
		Mul(decimal.NewFromInt(int64(pct))).
		Div(decimal.NewFromInt(100)).
		Round(0).
		IntPart()
}
