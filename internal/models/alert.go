package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Severity represents alert severity levels
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityError    Severity = "ERROR"
	SeverityCritical Severity = "CRITICAL"
)

// Alert is one threshold breach observed by the monitor. It is built fresh
// for every breaching cycle and never stored.
type Alert struct {
	// Unique identifier for this alert occurrence
	ID string `json:"id"`

	// Rule that produced the alert
	RuleName string   `json:"rule_name"`
	Severity Severity `json:"severity"`

	// Observed pending count and the threshold it exceeded
	Count     int64 `json:"count"`
	Threshold int64 `json:"threshold"`

	// Monitored table
	Table string `json:"table"`

	// When the count was read
	ObservedAt time.Time `json:"observed_at"`

	Message string `json:"message"`
}

// Validation errors
var (
	ErrEmptyAlertID      = errors.New("alert ID cannot be empty")
	ErrEmptyRuleName     = errors.New("rule name cannot be empty")
	ErrInvalidSeverity   = errors.New("invalid severity level")
	ErrZeroObservedAt    = errors.New("observed time cannot be zero")
	ErrNegativeCount     = errors.New("count cannot be negative")
	ErrThresholdNotCross = errors.New("count does not exceed threshold")
)

// NewAlert builds an alert for a count that exceeded threshold.
func NewAlert(ruleName string, severity Severity, count, threshold int64, table string, observedAt time.Time) *Alert {
	return &Alert{
		ID:         uuid.New().String(),
		RuleName:   ruleName,
		Severity:   severity,
		Count:      count,
		Threshold:  threshold,
		Table:      table,
		ObservedAt: observedAt.UTC(),
		Message: fmt.Sprintf("%d pending packages in %s exceed the threshold of %d",
			count, table, threshold),
	}
}

// Validate checks if the Alert has all required fields and valid values
func (a *Alert) Validate() error {
	if a.ID == "" {
		return ErrEmptyAlertID
	}

	if a.RuleName == "" {
		return ErrEmptyRuleName
	}

	if !a.Severity.IsValid() {
		return ErrInvalidSeverity
	}

	if a.ObservedAt.IsZero() {
		return ErrZeroObservedAt
	}

	if a.Count < 0 {
		return ErrNegativeCount
	}

	if a.Count <= a.Threshold {
		return ErrThresholdNotCross
	}

	return nil
}

// IsValid checks if the severity level is valid
func (s Severity) IsValid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityError, SeverityCritical:
		return true
	default:
		return false
	}
}
