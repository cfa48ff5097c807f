package models

import (
	"fmt"
	"strings"
)

// ParseSeverity normalizes a configured severity name.
// Matching is case-insensitive and "warn" is accepted for WARNING.
func ParseSeverity(s string) (Severity, error) {
	normalized := Severity(strings.ToUpper(strings.TrimSpace(s)))
	if normalized == "WARN" {
		normalized = SeverityWarning
	}

	if !normalized.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidSeverity, s)
	}
	return normalized, nil
}
