package kafkamiddleware

import (
	"context"
	"sync/atomic"
	"time"
	"tourbook/pkg/kafka"
	"tourbook/pkg/logger"
)

// Counters tracks throughput for one producer or consumer.
type Counters struct {
	Succeeded     atomic.Int64
	Failed        atomic.Int64
	totalDuration atomic.Int64
}

func (c *Counters) observe(start time.Time, err error) {
	c.totalDuration.Add(int64(time.Since(start)))
	if err != nil {
		c.Failed.Add(1)
		return
	}
	c.Succeeded.Add(1)
}

func (c *Counters) AvgDuration() time.Duration {
	n := c.Succeeded.Load() + c.Failed.Load()
	if n == 0 {
		return 0
	}
	return time.Duration(c.totalDuration.Load() / n)
}

func (c *Counters) Log(log *logger.Logger, name string) {
	log.Info("Kafka counters",
		"name", name,
		"succeeded", c.Succeeded.Load(),
		"failed", c.Failed.Load(),
		"avg_duration", c.AvgDuration(),
	)
}

func CountingProducer(c *Counters) kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next kafka.MessageHandler) error {
		start := time.Now()
		err := next(ctx, msg)
		c.observe(start, err)
		return err
	}
}

func CountingConsumer(c *Counters) kafka.ConsumerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next kafka.MessageHandler) error {
		start := time.Now()
		err := next(ctx, msg)
		c.observe(start, err)
		return err
	}
}
