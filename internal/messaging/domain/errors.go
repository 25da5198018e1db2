package domain

import "errors"

var (
	// ErrNotAuthorized means the actor has no standing for the thread.
	ErrNotAuthorized = errors.New("not_authorized")

	// ErrAmbiguousScope means a business actor omitted the vendor scope
	// while more than one vendor thread exists.
	ErrAmbiguousScope = errors.New("ambiguous_scope")

	// ErrNotFound means the project or thread does not exist.
	ErrNotFound = errors.New("not_found")

	// ErrRateLimited means the sender exceeded the message post budget.
	ErrRateLimited = errors.New("rate_limited")

	// ErrInvalidMessage means the message body failed shape validation.
	ErrInvalidMessage = errors.New("invalid_message")
)
