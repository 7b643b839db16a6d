package critique

import "errors"

var (
	// ErrDisabled is returned when no API key is configured.
	ErrDisabled = errors.New("critique disabled")
	// ErrCompletion wraps failures from the completion endpoint.
	ErrCompletion = errors.New("completion failed")
)
