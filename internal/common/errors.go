// Package common defines sentinel errors shared by the notekeeper client
// layers. Callers should match them with errors.Is.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// ErrStoreUnavailable is reported while the local store is not open
	// ("cache not ready"). The client keeps working in remote-only mode.
	ErrStoreUnavailable = errors.New("local store unavailable")

	// Service-level errors.
	ErrRequiresConnection = errors.New("operation requires a connection")
	ErrPinLimitReached    = errors.New("pinned notes limit reached")
	ErrInvalidOperation   = errors.New("invalid pending operation")
	ErrValidation         = errors.New("validation error")
)
