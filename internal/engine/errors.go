package engine

import "fmt"

// ConfigurationError reports a missing rule entry or invalid configuration.
// It marks an invariant violation: under a correctly built table it is
// unreachable, so it is fatal to the triggering call and never defaulted.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration: " + e.Reason
}

func configErrorf(format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

// ValidationError reports malformed external input. The call is rejected
// and no state changes.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// RangeViolation is an internal defensive signal: a computed multiplier left
// the valid domain (non-finite or out of range). It is recovered locally by
// re-clamping and logged, never returned to callers.
type RangeViolation struct {
	Value float64
}

func (e *RangeViolation) Error() string {
	return fmt.Sprintf("range violation: multiplier %v outside valid domain", e.Value)
}
