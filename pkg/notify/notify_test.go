package notify

import (
	"context"
	"errors"
	"testing"
	"tourbook/pkg/kafka"
	"tourbook/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockPublisher struct {
	publishFunc func(ctx context.Context, msg kafka.Message) error
}

func (m *mockPublisher) Publish(ctx context.Context, msg kafka.Message) error {
	return m.publishFunc(ctx, msg)
}

type mockSender struct {
	sendFunc func(ctx context.Context, msg Message) error
}

func (m *mockSender) Send(ctx context.Context, msg Message) error {
	return m.sendFunc(ctx, msg)
}

func TestKafkaSender_Send(t *testing.T) {
	var published kafka.Message
	sender := NewKafkaSender(&mockPublisher{
		publishFunc: func(_ context.Context, msg kafka.Message) error {
			published = msg
			return nil
		},
	}, "bookings")

	err := sender.Send(context.Background(), Message{
		Template: TemplateBookingConfirmation,
		To:       "jane@example.com",
		Data:     map[string]any{"code": "TB-7K3QX9"},
	})
	require.NoError(t, err)

	assert.Equal(t, "jane@example.com", published.Key)
	assert.Equal(t, "notification.booking_confirmation", published.EventType())
	assert.Equal(t, "bookings", published.Headers[kafka.HeaderSource])

	var decoded Message
	require.NoError(t, published.DecodeValue(&decoded))
	assert.Equal(t, "TB-7K3QX9", decoded.Data["code"])
}

func TestBestEffort_SwallowsErrors(t *testing.T) {
	calls := 0
	be := NewBestEffort(&mockSender{
		sendFunc: func(context.Context, Message) error {
			calls++
			return errors.New("broker unavailable")
		},
	}, logger.Discard())

	assert.NoError(t, be.Send(context.Background(), Message{Template: TemplateWaitlistSpotOpen, To: "a@b.co"}))
	assert.Equal(t, 1, calls)
}

func TestBestEffort_NilSender(t *testing.T) {
	be := NewBestEffort(nil, logger.Discard())
	assert.NoError(t, be.Send(context.Background(), Message{}))
}
