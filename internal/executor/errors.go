package executor

import "errors"

// Domain errors for the executor package.
var (
	// ErrUnsupported is returned for an action name or handler key that no
	// executor understands.
	ErrUnsupported = errors.New("executor: unsupported action")

	// ErrNotImplemented is returned for recognised actions that have no
	// executor support yet (hue).
	ErrNotImplemented = errors.New("executor: not implemented")

	// ErrInvalidParams is returned when an action parameter has the wrong type.
	ErrInvalidParams = errors.New("executor: invalid params")
)
