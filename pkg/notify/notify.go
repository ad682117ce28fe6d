// Package notify hands customer-facing messages to the delivery pipeline. Rendering and
// delivery happen downstream; this package only publishes intents.
package notify

import (
	"context"
	"tourbook/pkg/logger"
)

const (
	TemplateBookingConfirmation = "booking_confirmation"
	TemplateBookingCancelled    = "booking_cancelled"
	TemplateWaitlistSpotOpen    = "waitlist_spot_open"
)

type Message struct {
	Template string         `json:"template"`
	To       string         `json:"to"`
	Data     map[string]any `json:"data,omitempty"`
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// BestEffort wraps a Sender so failures are logged and swallowed. Workflows call it after
// their state change has been persisted, where a delivery failure must not undo anything.
type BestEffort struct {
	next Sender
	log  *logger.Logger
}

func NewBestEffort(next Sender, log *logger.Logger) *BestEffort {
	return &BestEffort{next: next, log: log}
}

func (b *BestEffort) Send(ctx context.Context, msg Message) error {
	if b.next == nil {
		return nil
	}
	if err := b.next.Send(ctx, msg); err != nil {
		b.log.Warn("Notification not sent",
			"template", msg.Template,
			"to", msg.To,
			"error", err,
		)
	}
	return nil
}

// Discard drops every message.
type Discard struct{}

func (Discard) Send(context.Context, Message) error { return nil }
