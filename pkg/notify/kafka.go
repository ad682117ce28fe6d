package notify

import (
	"context"
	"tourbook/pkg/kafka"
)

// KafkaSender publishes messages keyed by recipient so one customer's notifications
// stay ordered.
type KafkaSender struct {
	publisher kafka.Publisher
	source    string
}

func NewKafkaSender(publisher kafka.Publisher, source string) *KafkaSender {
	return &KafkaSender{publisher: publisher, source: source}
}

func (s *KafkaSender) Send(ctx context.Context, msg Message) error {
	km, err := kafka.NewMessage().
		WithKey(msg.To).
		WithValue(msg).
		WithEventType("notification." + msg.Template).
		WithSource(s.source).
		Build()
	if err != nil {
		return err
	}
	return s.publisher.Publish(ctx, km)
}
