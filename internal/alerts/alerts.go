package alerts

import (
	"fmt"
	"time"

	"connectoralert/internal/config"
	"connectoralert/internal/models"
)

// Rule defines a threshold rule over the pending package count.
type Rule struct {
	Name      string
	Threshold int64
	Severity  models.Severity
}

// RuleFromConfig builds the monitor rule from configuration.
func RuleFromConfig(cfg config.MonitorConfig) (Rule, error) {
	severity, err := models.ParseSeverity(cfg.Severity)
	if err != nil {
		return Rule{}, fmt.Errorf("monitor.severity: %w", err)
	}

	name := cfg.RuleName
	if name == "" {
		name = "pending-packages"
	}

	return Rule{
		Name:      name,
		Threshold: cfg.AlertThreshold,
		Severity:  severity,
	}, nil
}

// Breached reports whether count exceeds the threshold. The boundary is
// exclusive: a count equal to the threshold does not alert.
func (r Rule) Breached(count int64) bool {
	return count > r.Threshold
}

// Evaluate returns an alert for a breaching count and nil otherwise.
func (r Rule) Evaluate(count int64, table string, observedAt time.Time) *models.Alert {
	if !r.Breached(count) {
		return nil
	}
	return models.NewAlert(r.Name, r.Severity, count, r.Threshold, table, observedAt)
}
