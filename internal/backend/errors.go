package backend

import "errors"

// Sentinel errors for backend operations.
var (
	// ErrDisabled is returned when no backend is configured.
	ErrDisabled = errors.New("backend: disabled in configuration")

	// ErrAuthFailed is returned when sign-in is rejected or returns no token.
	ErrAuthFailed = errors.New("backend: authentication failed")

	// ErrUnexpectedStatus is returned for any non-2xx response.
	ErrUnexpectedStatus = errors.New("backend: unexpected response status")

	// ErrBadResponse is returned when a 2xx body cannot be decoded.
	ErrBadResponse = errors.New("backend: malformed response body")

	// ErrUnreachable wraps transport failures and timeouts.
	ErrUnreachable = errors.New("backend: unreachable")
)
