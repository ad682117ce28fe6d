package payment

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MockGateway keeps intents in memory. Intents authorize straight into requires_capture
// unless AuthorizeErr is set, and only captured intents can be refunded. It records
// cancellations and refunds for assertions.
type MockGateway struct {
	mu           sync.Mutex
	intents      map[string]*Authorization
	customers    map[string]string
	refunds      []RefundRequest
	cancelled    []string
	AuthorizeErr error
	CaptureErr   error
	RefundErr    error
}

func NewMockGateway() *MockGateway {
	return &MockGateway{
		intents:   make(map[string]*Authorization),
		customers: make(map[string]string),
	}
}

func (g *MockGateway) Name() string {
	return "mock"
}

func (g *MockGateway) ResolveCustomer(_ context.Context, email, _ string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if id, ok := g.customers[email]; ok {
		return id, nil
	}
	id := "cus_mock_" + uuid.NewString()[:8]
	g.customers[email] = id
	return id, nil
}

func (g *MockGateway) Authorize(_ context.Context, req AuthorizeRequest) (*Authorization, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.AuthorizeErr != nil {
		return nil, g.AuthorizeErr
	}
	auth := &Authorization{
		IntentID:     "pi_mock_" + uuid.NewString(),
		ClientSecret: "secret_" + uuid.NewString()[:12],
		Status:       StatusRequiresCapture,
		Amount:       req.Amount,
		Currency:     req.Currency,
	}
	g.intents[auth.IntentID] = auth
	copied := *auth
	return &copied, nil
}

func (g *MockGateway) Retrieve(_ context.Context, intentID string) (*Authorization, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	auth, ok := g.intents[intentID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrIntentNotFound, intentID)
	}
	copied := *auth
	return &copied, nil
}

// SetStatus forces an intent into status, e.g. to simulate a webhook-confirmed capture.
func (g *MockGateway) SetStatus(intentID string, status Status) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if auth, ok := g.intents[intentID]; ok {
		auth.Status = status
	}
}

func (g *MockGateway) Capture(_ context.Context, intentID string) (*Authorization, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.CaptureErr != nil {
		return nil, g.CaptureErr
	}
	auth, ok := g.intents[intentID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrIntentNotFound, intentID)
	}
	if auth.Status != StatusRequiresCapture {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotCapturable, intentID, auth.Status)
	}
	auth.Status = StatusSucceeded
	copied := *auth
	return &copied, nil
}

func (g *MockGateway) Cancel(_ context.Context, intentID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	auth, ok := g.intents[intentID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrIntentNotFound, intentID)
	}
	auth.Status = StatusCanceled
	g.cancelled = append(g.cancelled, intentID)
	return nil
}

func (g *MockGateway) Refund(_ context.Context, req RefundRequest) (*RefundResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.RefundErr != nil {
		return nil, g.RefundErr
	}
	auth, ok := g.intents[req.IntentID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrIntentNotFound, req.IntentID)
	}
	if auth.Status != StatusSucceeded {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotCaptured, req.IntentID, auth.Status)
	}
	g.refunds = append(g.refunds, req)
	return &RefundResult{
		RefundID: "re_mock_" + uuid.NewString()[:8],
		Status:   "succeeded",
		Amount:   req.Amount,
	}, nil
}

func (g *MockGateway) Refunds() []RefundRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]RefundRequest(nil), g.refunds...)
}

func (g *MockGateway) Cancelled() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.cancelled...)
}
