package kafkamiddleware

import (
	"context"
	"time"
	"tourbook/pkg/kafka"
	"tourbook/pkg/logger"
)

func LoggingProducer(log *logger.Logger) kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next kafka.MessageHandler) error {
		start := time.Now()
		err := next(ctx, msg)
		if err != nil {
			log.Error("Failed to publish kafka message",
				"topic", msg.Topic,
				"key", msg.Key,
				"event_type", msg.EventType(),
				"event_id", msg.EventID(),
				"duration", time.Since(start),
				"error", err,
			)
			return err
		}
		log.Debug("Published kafka message",
			"topic", msg.Topic,
			"key", msg.Key,
			"event_type", msg.EventType(),
			"event_id", msg.EventID(),
			"duration", time.Since(start),
		)
		return nil
	}
}

func LoggingConsumer(log *logger.Logger) kafka.ConsumerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next kafka.MessageHandler) error {
		start := time.Now()
		err := next(ctx, msg)
		attrs := []any{
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"key", msg.Key,
			"event_id", msg.EventID(),
			"retry", msg.RetryCount(),
			"duration", time.Since(start),
		}
		if err != nil {
			log.Warn("Kafka handler returned error", append(attrs, "error", err)...)
			return err
		}
		log.Debug("Processed kafka message", attrs...)
		return nil
	}
}
