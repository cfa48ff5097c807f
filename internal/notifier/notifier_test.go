package notifier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"connectoralert/internal/models"
)

// mockNotifier records every alert it is asked to send.
type mockNotifier struct {
	name  string
	err   error
	delay time.Duration

	mu     sync.Mutex
	alerts []*models.Alert
	closed bool
}

func (m *mockNotifier) Name() string {
	return m.name
}

func (m *mockNotifier) Send(ctx context.Context, alert *models.Alert) error {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, alert)
	return m.err
}

func (m *mockNotifier) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockNotifier) sent() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.alerts)
}

func testAlert() *models.Alert {
	observed := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	return models.NewAlert("pending-packages", models.SeverityCritical, 501, 500, "CONNECTOR.PACKAGE", observed)
}

func TestDispatcherDispatch(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{SendTimeout: time.Second})
	email := &mockNotifier{name: "email"}
	webhook := &mockNotifier{name: "webhook"}
	d.Register(email)
	d.Register(webhook)

	require.NoError(t, d.Dispatch(context.Background(), testAlert()))

	assert.Equal(t, 1, email.sent())
	assert.Equal(t, 1, webhook.sent())
	assert.Equal(t, []string{"email", "webhook"}, d.Names())

	stats := d.Stats()
	assert.Equal(t, uint64(1), stats.Sent)
	assert.Equal(t, uint64(0), stats.Failed)
}

func TestDispatcherRegisterReplacesByName(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{})
	first := &mockNotifier{name: "email"}
	second := &mockNotifier{name: "email"}
	d.Register(first)
	d.Register(second)

	require.NoError(t, d.Dispatch(context.Background(), testAlert()))
	assert.Equal(t, 0, first.sent())
	assert.Equal(t, 1, second.sent())
	assert.Len(t, d.Names(), 1)
}

func TestDispatcherNoNotifiers(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{})

	err := d.Dispatch(context.Background(), testAlert())
	assert.ErrorIs(t, err, ErrNoChannels)

	stats := d.Stats()
	assert.Equal(t, uint64(0), stats.Sent)
	assert.Equal(t, uint64(0), stats.Failed)
	assert.Empty(t, stats.Channels)
}

func TestDispatcherRejectsInvalidAlert(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{})
	n := &mockNotifier{name: "email"}
	d.Register(n)

	alert := testAlert()
	alert.RuleName = ""
	err := d.Dispatch(context.Background(), alert)
	assert.ErrorIs(t, err, ErrInvalidAlert)
	assert.ErrorIs(t, err, models.ErrEmptyRuleName)

	alert = testAlert()
	alert.Count = alert.Threshold
	assert.ErrorIs(t, d.Dispatch(context.Background(), alert), models.ErrThresholdNotCross)

	assert.Equal(t, 0, n.sent())
	assert.Equal(t, uint64(0), d.Stats().Sent)
}

func TestDispatcherFailureTriesEveryChannel(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{SendTimeout: time.Second})
	smtpErr := errors.New("connection refused")
	failing := &mockNotifier{name: "email", err: smtpErr}
	healthy := &mockNotifier{name: "webhook"}
	d.Register(failing)
	d.Register(healthy)

	err := d.Dispatch(context.Background(), testAlert())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDeliveryFailed)
	assert.ErrorIs(t, err, smtpErr)
	assert.Contains(t, err.Error(), "email: connection refused")

	assert.Equal(t, 1, healthy.sent())
	assert.Equal(t, uint64(1), d.Stats().Failed)
}

func TestDispatcherSendTimeout(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{SendTimeout: 20 * time.Millisecond})
	d.Register(&mockNotifier{name: "slow", delay: time.Second})

	start := time.Now()
	err := d.Dispatch(context.Background(), testAlert())
	assert.ErrorIs(t, err, ErrDeliveryFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestDispatcherRateLimit(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{RatePerMinute: 1, Burst: 2})
	n := &mockNotifier{name: "email"}
	d.Register(n)

	require.NoError(t, d.Dispatch(context.Background(), testAlert()))
	require.NoError(t, d.Dispatch(context.Background(), testAlert()))
	assert.ErrorIs(t, d.Dispatch(context.Background(), testAlert()), ErrRateLimited)

	assert.Equal(t, 2, n.sent())
	assert.Equal(t, uint64(1), d.Stats().RateLimited)
}

func TestDispatcherUnlimitedByDefault(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{})
	n := &mockNotifier{name: "email"}
	d.Register(n)

	for i := 0; i < 20; i++ {
		require.NoError(t, d.Dispatch(context.Background(), testAlert()))
	}
	assert.Equal(t, 20, n.sent())
}

func TestDispatcherClose(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{})
	n := &mockNotifier{name: "email"}
	d.Register(n)

	require.NoError(t, d.Close())
	assert.True(t, n.closed)
	assert.Empty(t, d.Names())
}

func TestTemplatesRender(t *testing.T) {
	templates, err := ParseTemplates("", "")
	require.NoError(t, err)

	subject, body, err := templates.Render(testAlert())
	require.NoError(t, err)

	assert.Equal(t, "[CRITICAL] pending-packages: 501 pending packages", subject)
	assert.Contains(t, body, "501 pending packages in CONNECTOR.PACKAGE exceed the threshold of 500")
	assert.Contains(t, body, "Observed:   2024-01-15 10:30:00 UTC")
}

func TestTemplatesCustom(t *testing.T) {
	templates, err := ParseTemplates("{{lower .RuleName}}\n{{.Count}}", "count={{.Count}} table={{upper .Table}}")
	require.NoError(t, err)

	subject, body, err := templates.Render(testAlert())
	require.NoError(t, err)
	assert.Equal(t, "pending-packages 501", subject)
	assert.Equal(t, "count=501 table=CONNECTOR.PACKAGE", body)

	_, err = ParseTemplates("{{.Count", "")
	assert.ErrorContains(t, err, "parse subject template")

	bad, err := ParseTemplates("{{.Missing}}", "")
	require.NoError(t, err)
	_, _, err = bad.Render(testAlert())
	assert.ErrorContains(t, err, "render subject")
}
