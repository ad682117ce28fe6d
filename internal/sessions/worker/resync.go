// Package worker consumes capacity resync events published when a best-effort capacity
// write lost a version race.
package worker

import (
	"context"
	"tourbook/pkg/events"
	apperrors "tourbook/pkg/errors"
	"tourbook/pkg/kafka"
	"tourbook/pkg/logger"
	"tourbook/pkg/model"
)

type Resyncer interface {
	ResyncCapacity(ctx context.Context, id string) (*model.Capacity, error)
}

// ResyncHandler recomputes the session named by each event. Sessions that no longer exist
// are acknowledged; lost races and storage failures are retried by the consumer.
func ResyncHandler(svc Resyncer, log *logger.Logger) kafka.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		if t := msg.EventType(); t != "" && t != events.EventCapacityResync {
			log.Debug("Ignoring unexpected event type", "event_type", t, "event_id", msg.EventID())
			return nil
		}

		var evt events.CapacityResync
		if err := msg.DecodeValue(&evt); err != nil {
			return kafka.NewPermanentError("invalid capacity resync payload", err)
		}
		if evt.SessionID == "" {
			return kafka.NewPermanentError("capacity resync without session id", nil)
		}

		c, err := svc.ResyncCapacity(ctx, evt.SessionID)
		if err != nil {
			switch {
			case apperrors.HasCode(err, apperrors.CodeSessionNotFound), apperrors.HasCode(err, apperrors.CodeTourNotFound):
				log.Warn("Skipping resync for missing session", "session_id", evt.SessionID, "error", err)
				return nil
			case apperrors.HasCode(err, apperrors.CodeConcurrentModification), apperrors.HasCode(err, apperrors.CodeInternal):
				return kafka.NewTransientError("capacity resync failed", err)
			default:
				return kafka.NewPermanentError("capacity resync failed", err)
			}
		}

		log.Info("Capacity resync applied",
			"session_id", evt.SessionID,
			"reason", evt.Reason,
			"booking_id", evt.BookingID,
			"current", c.Current,
			"remaining", c.Remaining,
		)
		return nil
	}
}
