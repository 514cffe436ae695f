// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested pass does not exist, or a device holds
	// no registrations for the requested pass type.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates a missing or mismatched ApplePass authorization header.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNoUpdates indicates registrations exist but none changed since the given time.
	ErrNoUpdates = errors.New("no updates")

	// ErrBadRequest indicates malformed client input (JSON body, timestamp).
	ErrBadRequest = errors.New("bad request")

	// ErrRateLimited indicates the client exceeded its submission budget.
	ErrRateLimited = errors.New("rate limited")
)
