package domain

import "errors"

// Sentinel errors for domain-level error handling.
var (
	ErrUnknownSymbol  = errors.New("unknown_symbol")
	ErrSessionRunning = errors.New("session_running")
	ErrSessionClosed  = errors.New("session_closed")
	ErrQuotaCount     = errors.New("quota_count_mismatch")
)

// ValidationError represents a configuration validation failure.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
