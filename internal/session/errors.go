package session

import "errors"

var (
	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("session already started")

	// ErrInitFailed wraps a fatal-init failure: the session never reached
	// Ready and the caller must abort the connection.
	ErrInitFailed = errors.New("session initialization failed")

	// ErrNotReady is returned when Attach is called before Start succeeded.
	ErrNotReady = errors.New("session not ready")

	// ErrNotActive is returned for tool calls outside the Active state.
	ErrNotActive = errors.New("session not active")

	// ErrDraining is returned for tool calls after session end began.
	ErrDraining = errors.New("session draining, no new calls accepted")

	// ErrClosed is returned for operations on a terminal session.
	ErrClosed = errors.New("session closed")
)
