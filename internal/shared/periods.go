package shared

import "errors"

// Period statuses reused outside the fiscal module.
const (
	PeriodStatusOpen     = "OPEN"
	PeriodStatusClosed   = "CLOSED"
	PeriodStatusArchived = "ARCHIVED"
)

// ErrInvalidPeriodTransition indicates status change not allowed.
var ErrInvalidPeriodTransition = errors.New("period transition invalid")

// ValidatePeriodTransition checks transitions according to policy: a period
// opens once, closes once, and may be archived only after closure. Closure
// and archival are one-way.
func ValidatePeriodTransition(current, target string) error {
	if current == target {
		return nil
	}
	switch current {
	case PeriodStatusOpen:
		if target == PeriodStatusClosed {
			return nil
		}
	case PeriodStatusClosed:
		if target == PeriodStatusArchived {
			return nil
		}
	}
	return ErrInvalidPeriodTransition
}
