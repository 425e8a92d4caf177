package auth

import "errors"

var (
	// Credential-level failures.
	ErrMalformed        = errors.New("auth: malformed credential")
	ErrInvalidSignature = errors.New("auth: invalid signature")
	ErrExpired          = errors.New("auth: credential expired")

	// Authorization-level failures.
	ErrUnauthenticated = errors.New("auth: unauthenticated")
	ErrForbidden       = errors.New("auth: forbidden")
	ErrNotFound        = errors.New("auth: not found")
)
