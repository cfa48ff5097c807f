package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"connectoralert/internal/config"
	"connectoralert/internal/models"
)

// fakeWriter fails the first failures writes and records the rest.
type fakeWriter struct {
	mu       sync.Mutex
	failures int
	calls    int
	messages []kafka.Message
	closed   bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return errors.New("broker not available")
	}
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func testEnvelope() *models.Envelope {
	alert := models.NewAlert("pending-packages", models.SeverityCritical, 501, 500, "CONNECTOR.PACKAGE", time.Now())
	return models.NewEnvelope(alert, "test-node")
}

func testProducerConfig() config.ProducerConfig {
	return config.ProducerConfig{MaxRetries: 2, RetryBackoff: time.Millisecond}
}

func TestNewProducerValidation(t *testing.T) {
	_, err := NewProducer(nil, "alerts", testProducerConfig())
	assert.ErrorContains(t, err, "at least one broker")

	_, err = NewProducer([]string{"localhost:9092"}, "", testProducerConfig())
	assert.ErrorContains(t, err, "topic is required")

	p, err := NewProducer([]string{"localhost:9092"}, "alerts", testProducerConfig())
	require.NoError(t, err)
	assert.Len(t, p.writers, 1)
	assert.NoError(t, p.Close())
}

func TestProducerPublish(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer("alerts", testProducerConfig(), []messageWriter{w})

	env := testEnvelope()
	require.NoError(t, p.Publish(context.Background(), env))

	require.Len(t, w.messages, 1)
	msg := w.messages[0]
	assert.Equal(t, "CONNECTOR.PACKAGE", string(msg.Key))

	var decoded models.Envelope
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, env.Alert.ID, decoded.Alert.ID)
	assert.Equal(t, int64(501), decoded.Alert.Count)

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, env.Alert.ID, headers["alert_id"])
	assert.Equal(t, "CRITICAL", headers["severity"])

	stats := p.Stats()
	assert.Equal(t, uint64(1), stats.MessagesSent)
	assert.Equal(t, uint64(len(msg.Value)), stats.BytesWritten)
}

func TestProducerPublishRetries(t *testing.T) {
	w := &fakeWriter{failures: 2}
	p := newProducer("alerts", testProducerConfig(), []messageWriter{w})

	require.NoError(t, p.Publish(context.Background(), testEnvelope()))
	assert.Equal(t, 3, w.calls)
	assert.Equal(t, uint64(1), p.Stats().MessagesSent)
}

func TestProducerPublishGivesUp(t *testing.T) {
	w := &fakeWriter{failures: 10}
	p := newProducer("alerts", testProducerConfig(), []messageWriter{w})

	err := p.Publish(context.Background(), testEnvelope())
	assert.ErrorContains(t, err, "failed after 3 attempts")
	assert.Equal(t, 3, w.calls)
	assert.Equal(t, uint64(1), p.Stats().MessagesFailed)
}

func TestProducerClose(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer("alerts", testProducerConfig(), []messageWriter{w})

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.True(t, w.closed)

	assert.ErrorIs(t, p.Publish(context.Background(), testEnvelope()), ErrProducerClosed)
}

// TestProducerPublishLive needs a broker on localhost:9092.
func TestProducerPublishLive(t *testing.T) {
	if os.Getenv("KAFKA_TEST") != "1" {
		t.Skip("Skipping Kafka integration test. Set KAFKA_TEST=1 to run.")
	}

	cfg := config.Default()
	p, err := NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Producer)
	require.NoError(t, err)
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, p.Publish(ctx, testEnvelope()))
	assert.Equal(t, uint64(1), p.Stats().MessagesSent)
}
