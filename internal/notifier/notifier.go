// Package notifier delivers alerts to the configured channels.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"connectoralert/internal/metrics"
	"connectoralert/internal/models"
)

var (
	// ErrDeliveryFailed wraps every channel failure returned by Dispatch.
	ErrDeliveryFailed = errors.New("alert delivery failed")
	// ErrRateLimited is returned when the dispatcher rate limit drops an alert.
	ErrRateLimited = errors.New("notification rate limited")
	// ErrNoChannels is returned when no notifier is registered.
	ErrNoChannels = errors.New("no notification channel registered")
	// ErrInvalidAlert wraps the models validation error of a rejected alert.
	ErrInvalidAlert = errors.New("invalid alert")
)

// Notifier is the interface for all notification channels.
type Notifier interface {
	// Name returns the channel name (e.g., "email", "webhook").
	Name() string
	// Send delivers one alert. Implementations must honour ctx.
	Send(ctx context.Context, alert *models.Alert) error
	// Close releases any resources.
	Close() error
}

// DispatcherConfig configures delivery limits.
type DispatcherConfig struct {
	// SendTimeout bounds each channel's Send.
	SendTimeout time.Duration
	// RatePerMinute <= 0 disables rate limiting.
	RatePerMinute float64
	Burst         int
}

// Dispatcher fans one alert out to every registered notifier. It never
// retries; failures are reported to the caller.
type Dispatcher struct {
	mu          sync.RWMutex
	notifiers   []Notifier
	limiter     *rate.Limiter
	sendTimeout time.Duration

	sent        atomic.Uint64
	failed      atomic.Uint64
	rateLimited atomic.Uint64
}

// NewDispatcher creates a dispatcher with no channels registered.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	d := &Dispatcher{sendTimeout: cfg.SendTimeout}

	if cfg.RatePerMinute > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		d.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerMinute/60), burst)
	}

	return d
}

// Register adds a notifier. Registering a second notifier with the same
// name replaces the first.
func (d *Dispatcher) Register(n Notifier) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, existing := range d.notifiers {
		if existing.Name() == n.Name() {
			d.notifiers[i] = n
			return
		}
	}
	d.notifiers = append(d.notifiers, n)
}

// Names returns registered channel names in registration order.
func (d *Dispatcher) Names() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	names := make([]string, 0, len(d.notifiers))
	for _, n := range d.notifiers {
		names = append(names, n.Name())
	}
	return names
}

// Dispatch sends alert to every registered notifier. Every channel is tried
// even when an earlier one fails; the returned error wraps ErrDeliveryFailed
// and each channel error. Nothing is counted as sent when no notifier is
// registered.
func (d *Dispatcher) Dispatch(ctx context.Context, alert *models.Alert) error {
	if err := alert.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidAlert, err)
	}

	d.mu.RLock()
	notifiers := make([]Notifier, len(d.notifiers))
	copy(notifiers, d.notifiers)
	d.mu.RUnlock()

	if len(notifiers) == 0 {
		return ErrNoChannels
	}

	if d.limiter != nil && !d.limiter.Allow() {
		d.rateLimited.Add(1)
		metrics.AlertsRateLimitedTotal.Inc()
		return ErrRateLimited
	}

	var errs []error
	for _, n := range notifiers {
		if err := d.send(ctx, n, alert); err != nil {
			metrics.AlertsDispatchedTotal.WithLabelValues(n.Name(), "failed").Inc()
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
			continue
		}
		metrics.AlertsDispatchedTotal.WithLabelValues(n.Name(), "sent").Inc()
	}

	if len(errs) > 0 {
		d.failed.Add(1)
		return fmt.Errorf("%w: %w", ErrDeliveryFailed, errors.Join(errs...))
	}

	d.sent.Add(1)
	return nil
}

func (d *Dispatcher) send(ctx context.Context, n Notifier, alert *models.Alert) error {
	if d.sendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.sendTimeout)
		defer cancel()
	}
	return n.Send(ctx, alert)
}

// Stats returns dispatcher statistics
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Sent:        d.sent.Load(),
		Failed:      d.failed.Load(),
		RateLimited: d.rateLimited.Load(),
		Channels:    d.Names(),
	}
}

// Stats counts alerts, not individual channel sends.
type Stats struct {
	Sent        uint64   `json:"sent"`
	Failed      uint64   `json:"failed"`
	RateLimited uint64   `json:"rate_limited"`
	Channels    []string `json:"channels"`
}

// Close closes all registered notifiers.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var errs []error
	for _, n := range d.notifiers {
		if err := n.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	d.notifiers = nil

	return errors.Join(errs...)
}
