// Package monitor checks the pending package count against the alert rule.
package monitor

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"connectoralert/internal/alerts"
	"connectoralert/internal/logger"
	"connectoralert/internal/metrics"
	"connectoralert/internal/models"
	"connectoralert/internal/notifier"
	"connectoralert/internal/storage"
)

// Sender delivers an alert, e.g. *notifier.Dispatcher.
type Sender interface {
	Dispatch(ctx context.Context, alert *models.Alert) error
}

// Config holds evaluator dependencies
type Config struct {
	Reader storage.CountReader
	Sender Sender
	Rule   alerts.Rule
	// Table is reported on alerts.
	Table string

	// Optional; defaults to the "monitor" component logger and time.Now.
	Logger *zerolog.Logger
	Now    func() time.Time
}

// Result describes one evaluation cycle.
type Result struct {
	Count    int64
	Breached bool
	// Alerted is true only when every channel accepted the alert.
	Alerted bool
}

// Evaluator runs one read-compare-notify cycle per call. It keeps no state
// between cycles apart from statistics.
type Evaluator struct {
	reader storage.CountReader
	sender Sender
	rule   alerts.Rule
	table  string
	log    zerolog.Logger
	now    func() time.Time

	evaluations atomic.Uint64
	failures    atomic.Uint64
	breaches    atomic.Uint64
	lastCount   atomic.Int64
	lastAt      atomic.Int64
}

// NewEvaluator creates a new evaluator
func NewEvaluator(cfg Config) (*Evaluator, error) {
	if cfg.Reader == nil {
		return nil, errors.New("count reader is required")
	}
	if cfg.Sender == nil {
		return nil, errors.New("sender is required")
	}

	log := logger.WithComponent("monitor")
	if cfg.Logger != nil {
		log = *cfg.Logger
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	e := &Evaluator{
		reader: cfg.Reader,
		sender: cfg.Sender,
		rule:   cfg.Rule,
		table:  cfg.Table,
		log:    log,
		now:    now,
	}
	e.lastCount.Store(-1)
	metrics.AlertThreshold.Set(float64(cfg.Rule.Threshold))

	return e, nil
}

// Run implements worker.Task.
func (e *Evaluator) Run(ctx context.Context) error {
	_, err := e.Evaluate(ctx)
	return err
}

// Evaluate reads the pending count, logs it and dispatches one alert when it
// exceeds the rule threshold. A read failure is returned; a delivery failure
// is logged only.
func (e *Evaluator) Evaluate(ctx context.Context) (Result, error) {
	e.evaluations.Add(1)

	count, err := e.reader.ReadPendingCount(ctx)
	if err != nil {
		e.failures.Add(1)
		metrics.PollsTotal.WithLabelValues("failed").Inc()
		e.log.Error().
			Err(err).
			Str("table", e.table).
			Msg("failed to read pending count")
		return Result{}, err
	}

	observedAt := e.now()
	e.lastCount.Store(count)
	e.lastAt.Store(observedAt.UnixNano())
	metrics.PendingCount.Set(float64(count))

	e.log.Info().
		Int64("count", count).
		Int64("threshold", e.rule.Threshold).
		Str("table", e.table).
		Msg("pending packages counted")

	alert := e.rule.Evaluate(count, e.table, observedAt)
	if alert == nil {
		metrics.PollsTotal.WithLabelValues("ok").Inc()
		return Result{Count: count}, nil
	}

	e.breaches.Add(1)
	metrics.PollsTotal.WithLabelValues("breach").Inc()

	e.log.Warn().
		Str("alert_id", alert.ID).
		Str("rule", alert.RuleName).
		Str("severity", string(alert.Severity)).
		Int64("count", count).
		Int64("threshold", e.rule.Threshold).
		Msg("pending package threshold exceeded")

	if err := e.sender.Dispatch(ctx, alert); err != nil {
		ev := e.log.Error()
		if errors.Is(err, notifier.ErrRateLimited) || errors.Is(err, notifier.ErrNoChannels) {
			ev = e.log.Warn()
		}
		ev.Err(err).
			Str("alert_id", alert.ID).
			Msg("failed to deliver alert")
		return Result{Count: count, Breached: true}, nil
	}

	return Result{Count: count, Breached: true, Alerted: true}, nil
}

// Stats returns evaluator statistics
func (e *Evaluator) Stats() Stats {
	st := Stats{
		Evaluations: e.evaluations.Load(),
		Failures:    e.failures.Load(),
		Breaches:    e.breaches.Load(),
		Threshold:   e.rule.Threshold,
	}
	if c := e.lastCount.Load(); c >= 0 {
		st.LastCount = &c
	}
	if ns := e.lastAt.Load(); ns != 0 {
		st.LastObservedAt = time.Unix(0, ns).UTC()
	}
	return st
}

// Stats holds evaluator metrics. LastCount is nil until a read succeeds.
type Stats struct {
	Evaluations    uint64    `json:"evaluations"`
	Failures       uint64    `json:"failures"`
	Breaches       uint64    `json:"breaches"`
	Threshold      int64     `json:"threshold"`
	LastCount      *int64    `json:"last_count"`
	LastObservedAt time.Time `json:"last_observed_at"`
}
