package transport

import "errors"

var (
	ErrNotFound          = errors.New("transport request not found")
	ErrInvalidStatus     = errors.New("invalid transport request status")
	ErrInvalidPassengers = errors.New("passenger count must be positive")
	ErrConflict          = errors.New("transport request no longer available")
	ErrIllegalTransition = errors.New("illegal status transition")
	ErrAlreadyTerminal   = errors.New("transport request already finished or cancelled")
	ErrForbidden         = errors.New("actor not allowed to modify this transport request")
	ErrNotActive         = errors.New("transport request is not in an active state")
	ErrInvalidFare       = errors.New("final fare must not be negative")

	// ErrStatusChanged is returned by Repository.Transition when the row no
	// longer holds the expected status.
	ErrStatusChanged = errors.New("transport request status changed concurrently")

	// ErrDriverBusy is returned when a driver already works another active request.
	ErrDriverBusy = errors.New("driver already has an active transport request")
)
