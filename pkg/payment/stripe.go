package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"github.com/stripe/stripe-go/v82/refund"
)

// StripeGateway routes vendor money with destination charges: the platform fee stays on
// the platform account and the rest transfers to the vendor's connected account.
type StripeGateway struct{}

func NewStripeGateway(secretKey string) (*StripeGateway, error) {
	if secretKey == "" {
		return nil, fmt.Errorf("stripe secret key is required")
	}
	stripe.Key = secretKey
	return &StripeGateway{}, nil
}

func (g *StripeGateway) Name() string {
	return "stripe"
}

func (g *StripeGateway) ResolveCustomer(ctx context.Context, email, name string) (string, error) {
	listParams := &stripe.CustomerListParams{Email: stripe.String(email)}
	listParams.Context = ctx
	listParams.Limit = stripe.Int64(1)

	iter := customer.List(listParams)
	if iter.Next() {
		return iter.Customer().ID, nil
	}
	if err := iter.Err(); err != nil {
		return "", fmt.Errorf("list stripe customers: %w", err)
	}

	params := &stripe.CustomerParams{Email: stripe.String(email)}
	params.Context = ctx
	if name != "" {
		params.Name = stripe.String(name)
	}
	c, err := customer.New(params)
	if err != nil {
		return "", fmt.Errorf("create stripe customer: %w", err)
	}
	return c.ID, nil
}

func (g *StripeGateway) Authorize(ctx context.Context, req AuthorizeRequest) (*Authorization, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(req.Amount),
		Currency:      stripe.String(strings.ToLower(req.Currency)),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Metadata: req.Metadata,
	}
	params.Context = ctx
	if req.CustomerID != "" {
		params.Customer = stripe.String(req.CustomerID)
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	if req.ConnectedAccountID != "" {
		params.TransferData = &stripe.PaymentIntentTransferDataParams{
			Destination: stripe.String(req.ConnectedAccountID),
		}
		if req.PlatformFee > 0 {
			params.ApplicationFeeAmount = stripe.Int64(req.PlatformFee)
		}
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, classify(err)
	}
	return toAuthorization(pi), nil
}

func (g *StripeGateway) Retrieve(ctx context.Context, intentID string) (*Authorization, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := paymentintent.Get(intentID, params)
	if err != nil {
		return nil, classify(err)
	}
	return toAuthorization(pi), nil
}

func (g *StripeGateway) Capture(ctx context.Context, intentID string) (*Authorization, error) {
	params := &stripe.PaymentIntentCaptureParams{}
	params.Context = ctx
	params.SetIdempotencyKey("capture-" + intentID)
	pi, err := paymentintent.Capture(intentID, params)
	if err != nil {
		return nil, classify(err)
	}
	return toAuthorization(pi), nil
}

func (g *StripeGateway) Cancel(ctx context.Context, intentID string) error {
	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx
	if _, err := paymentintent.Cancel(intentID, params); err != nil {
		return classify(err)
	}
	return nil
}

func (g *StripeGateway) Refund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	params := &stripe.RefundParams{
		PaymentIntent:   stripe.String(req.IntentID),
		Amount:          stripe.Int64(req.Amount),
		ReverseTransfer: stripe.Bool(true),
	}
	params.Context = ctx
	if req.Reason != "" {
		params.Reason = stripe.String(string(stripe.RefundReasonRequestedByCustomer))
		params.Metadata = map[string]string{"reason": req.Reason}
	}

	r, err := refund.New(params)
	if err != nil {
		return nil, classify(err)
	}
	return &RefundResult{
		RefundID: r.ID,
		Status:   string(r.Status),
		Amount:   r.Amount,
	}, nil
}

func toAuthorization(pi *stripe.PaymentIntent) *Authorization {
	return &Authorization{
		IntentID:     pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       Status(pi.Status),
		Amount:       pi.Amount,
		Currency:     strings.ToUpper(string(pi.Currency)),
	}
}

func classify(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		switch {
		case stripeErr.HTTPStatusCode == http.StatusNotFound:
			return fmt.Errorf("%w: %s", ErrIntentNotFound, stripeErr.Msg)
		case stripeErr.Type == stripe.ErrorTypeCard:
			return fmt.Errorf("%w: %s", ErrDeclined, stripeErr.Msg)
		}
	}
	return fmt.Errorf("stripe: %w", err)
}
