// Package events holds payloads shared between the services that publish them and the
// workers that consume them.
package events

import (
	"context"
	"tourbook/pkg/kafka"
)

const EventCapacityResync = "session.capacity.resync"

// CapacityResync asks the capacity worker to recompute a session's counters from its
// booking summaries. Published whenever a best-effort capacity write lost a version race.
type CapacityResync struct {
	SessionID string `json:"session_id"`
	Reason    string `json:"reason"`
	BookingID string `json:"booking_id,omitempty"`
}

type ResyncPublisher struct {
	publisher kafka.Publisher
	source    string
}

func NewResyncPublisher(publisher kafka.Publisher, source string) *ResyncPublisher {
	return &ResyncPublisher{publisher: publisher, source: source}
}

func (p *ResyncPublisher) RequestResync(ctx context.Context, evt CapacityResync) error {
	msg, err := kafka.NewMessage().
		WithKey(evt.SessionID).
		WithValue(evt).
		WithEventType(EventCapacityResync).
		WithSource(p.source).
		Build()
	if err != nil {
		return err
	}
	return p.publisher.Publish(ctx, msg)
}
