package domain

import "errors"

var (
	// ErrUnsupported means the backend does not implement the endpoint (404).
	ErrUnsupported = errors.New("endpoint not supported by backend")

	// ErrUnauthenticated means there is no token or the backend rejected it.
	ErrUnauthenticated = errors.New("not authenticated")

	// ErrThrottled means the backend rate-limited the request (429).
	ErrThrottled = errors.New("request throttled by backend")

	// ErrPermissionDenied means the OS refused notification permission.
	ErrPermissionDenied = errors.New("notification permission denied")

	// ErrCycleInProgress is returned when a cycle is requested while one runs.
	ErrCycleInProgress = errors.New("poll cycle already in progress")

	// ErrNotFound is returned by local stores for absent keys.
	ErrNotFound = errors.New("not found")
)
