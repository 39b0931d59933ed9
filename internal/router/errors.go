package router

import "errors"

var (
	// ErrUnknownCapability is returned when no capability matches the
	// requested name. Non-fatal; the session keeps serving.
	ErrUnknownCapability = errors.New("unknown capability")

	// ErrMissingRequiredArg is returned when a required argument is absent.
	ErrMissingRequiredArg = errors.New("missing required argument")

	// ErrCapabilityNameEmpty is a construction-time validation error.
	ErrCapabilityNameEmpty = errors.New("capability name is empty")

	// ErrCapabilityHandlerNil is a construction-time validation error.
	ErrCapabilityHandlerNil = errors.New("capability handler is nil")

	// ErrDuplicateCapability is a construction-time validation error.
	ErrDuplicateCapability = errors.New("capability already defined")
)
