package nexstar

import "errors"

// Errors are split the way the protocol behaves: connection and
// precondition failures are fatal to the caller, timeouts are
// transient and retryable, and malformed replies are a routine
// operating condition that callers are expected to tolerate.
var (
	// ErrNotConnected is returned before any I/O when the executor's
	// transport has been closed or was never opened.
	ErrNotConnected = errors.New("nexstar: not connected")

	// ErrTimeout is returned when no terminator arrives within the
	// executor's timeout. The command may still have been acted on.
	ErrTimeout = errors.New("nexstar: timed out waiting for terminator")

	// ErrMalformedReply is returned when a reply arrives but does not
	// have the structure the command calls for.
	ErrMalformedReply = errors.New("nexstar: malformed reply")

	// ErrInvalidCoordinate is returned for out-of-domain coordinates
	// before any I/O is attempted.
	ErrInvalidCoordinate = errors.New("nexstar: coordinate out of range")

	// ErrOutOfRange is returned for non-coordinate arguments (rates,
	// modes, clock fields) that fail validation, before any I/O.
	ErrOutOfRange = errors.New("nexstar: argument out of range")
)
