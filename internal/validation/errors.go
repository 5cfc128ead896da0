package validation

import "fmt"

// FieldError is a single failed validation on one field, used by the admin
// API to report every violation in one response instead of stopping at the
// first one.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ConfigError wraps a validation failure that originated from monitor or
// server configuration (Settings, ServerRef) rather than an HTTP request
// body, so callers can distinguish the two without string matching.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return e.Reason }
