package notifier

import (
	"context"

	"connectoralert/internal/models"
)

// Publisher publishes alert envelopes, e.g. *kafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, envelope *models.Envelope) error
	Close() error
}

// KafkaNotifier publishes each alert to the alert topic so downstream
// consumers can fan it out further.
type KafkaNotifier struct {
	publisher Publisher
	node      string
}

// NewKafkaNotifier wraps publisher. node identifies this instance in the
// envelope.
func NewKafkaNotifier(publisher Publisher, node string) *KafkaNotifier {
	return &KafkaNotifier{publisher: publisher, node: node}
}

// Name returns "kafka".
func (k *KafkaNotifier) Name() string {
	return "kafka"
}

func (k *KafkaNotifier) Send(ctx context.Context, alert *models.Alert) error {
	return k.publisher.Publish(ctx, models.NewEnvelope(alert, k.node))
}

// Close closes the underlying publisher.
func (k *KafkaNotifier) Close() error {
	return k.publisher.Close()
}
