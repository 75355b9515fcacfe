package domain

import "errors"

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrSessionExpired indicates the storefront session is no longer valid.
	ErrSessionExpired = errors.New("session expired")
	// ErrNoActiveOrder indicates the session has no order to operate on.
	ErrNoActiveOrder = errors.New("no active order")
)
