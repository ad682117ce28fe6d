package kafkamiddleware

import (
	"context"
	"errors"
	"testing"
	"tourbook/pkg/kafka"
	"tourbook/pkg/logger"

	"github.com/stretchr/testify/assert"
)

func TestCountingConsumer(t *testing.T) {
	var c Counters
	mw := CountingConsumer(&c)

	ok := func(context.Context, kafka.Message) error { return nil }
	fail := func(context.Context, kafka.Message) error { return errors.New("boom") }

	assert.NoError(t, mw(context.Background(), kafka.Message{}, ok))
	assert.NoError(t, mw(context.Background(), kafka.Message{}, ok))
	assert.Error(t, mw(context.Background(), kafka.Message{}, fail))

	assert.EqualValues(t, 2, c.Succeeded.Load())
	assert.EqualValues(t, 1, c.Failed.Load())
}

func TestLoggingProducer_PassesThroughError(t *testing.T) {
	mw := LoggingProducer(logger.Discard())
	want := errors.New("broker down")
	got := mw(context.Background(), kafka.Message{Topic: "t"}, func(context.Context, kafka.Message) error { return want })
	assert.ErrorIs(t, got, want)
}
