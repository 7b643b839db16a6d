package analyzer

import "errors"

var (
	// ErrInvalidURL is returned for input that is not an http(s) URL with a host.
	ErrInvalidURL = errors.New("invalid url")
	// ErrFetch wraps transport failures and non-2xx page responses.
	ErrFetch = errors.New("fetch failed")
)
